package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/maintenance-gate/internal/events"
	"github.com/yourusername/maintenance-gate/internal/logging"
	"github.com/yourusername/maintenance-gate/internal/maintenance"
	"github.com/yourusername/maintenance-gate/internal/metrics"
)

// RunRecorder stores the outcome of executed runs
type RunRecorder interface {
	RecordRun(run logging.RunRecord)
}

type MaintenanceHandler struct {
	gate     *maintenance.Gate
	executor *maintenance.Executor
	runs     RunRecorder
	metrics  *metrics.Recorder
	hub      *events.Hub
}

// NewMaintenanceHandler wires the gate and executor to HTTP. runs, recorder
// and hub are optional.
func NewMaintenanceHandler(gate *maintenance.Gate, executor *maintenance.Executor, runs RunRecorder, recorder *metrics.Recorder, hub *events.Hub) *MaintenanceHandler {
	return &MaintenanceHandler{
		gate:     gate,
		executor: executor,
		runs:     runs,
		metrics:  recorder,
		hub:      hub,
	}
}

// Handle serves every method on the maintenance path
func (h *MaintenanceHandler) Handle(c *gin.Context) {
	c.Header("Content-Type", "application/json")

	verdict := h.gate.Authorize(c.Request.Method, c.Request.Body)
	switch verdict.Kind {
	case maintenance.VerdictPreflight:
		c.Status(http.StatusOK)
		return
	case maintenance.VerdictRejected:
		h.respond(c, maintenance.Result{Failure: verdict.Failure})
		return
	}

	ip := SourceIP(c.Request)
	result := h.executor.Execute(maintenance.Requester{
		IP:        ip,
		UserAgent: c.Request.UserAgent(),
	})

	h.record(result, ip)
	h.hub.Publish(events.TypeMaintenanceResult, resultPayload(result))
	h.respond(c, result)
}

func (h *MaintenanceHandler) respond(c *gin.Context, result maintenance.Result) {
	h.metrics.ObserveOutcome(string(result.Code()))
	status, body := maintenance.Render(result)
	c.JSON(status, body)
}

func (h *MaintenanceHandler) record(result maintenance.Result, ip string) {
	if result.Success != nil {
		h.metrics.AddBackupBytes(result.Success.BackupBytes)
	}
	if h.runs == nil {
		return
	}

	run := logging.RunRecord{
		OperationID: result.OperationID(),
		Code:        string(result.Code()),
		SourceIP:    ip,
	}
	if s := result.Success; s != nil {
		run.BackupCreated = s.BackupCreated
		run.BackupReference = s.BackupReference
		run.CompletedAt = s.CompletedAt
	}
	h.runs.RecordRun(run)
}

func resultPayload(result maintenance.Result) events.ResultPayload {
	status := "error"
	if result.OK() {
		status = "success"
	}
	return events.ResultPayload{
		Status:      status,
		Code:        string(result.Code()),
		OperationID: result.OperationID(),
	}
}

// SourceIP prefers the X-Forwarded-For header over the peer address
func SourceIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
