package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yourusername/maintenance-gate/internal/auth"
	"github.com/yourusername/maintenance-gate/internal/events"
	"github.com/yourusername/maintenance-gate/internal/logging"
	"github.com/yourusername/maintenance-gate/internal/maintenance"
)

// TokenHeader carries the credential for the event stream
const TokenHeader = "X-System-Token"

type EventsHandler struct {
	hub      *events.Hub
	verifier auth.Verifier
	upgrader websocket.Upgrader
}

func NewEventsHandler(hub *events.Hub, verifier auth.Verifier, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		hub:      hub,
		verifier: verifier,
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream upgrades to a websocket that receives maintenance results
func (h *EventsHandler) Stream(c *gin.Context) {
	if h.verifier == nil || !h.verifier.Verify(c.GetHeader(TokenHeader)) {
		status, body := maintenance.Render(maintenance.Result{Failure: &maintenance.Failure{
			Code:    maintenance.CodeInvalidToken,
			Message: "Invalid security token.",
		}})
		c.AbortWithStatusJSON(status, body)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an error response
		logging.Component("events").Warn("event_upgrade_failed", "origin", c.GetHeader("Origin"), "error", err)
		return
	}

	client := h.hub.NewClient(uuid.NewString(), conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}
