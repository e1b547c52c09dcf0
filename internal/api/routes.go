package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/maintenance-gate/internal/api/handlers"
	"github.com/yourusername/maintenance-gate/internal/api/middleware"
	"github.com/yourusername/maintenance-gate/internal/auth"
	"github.com/yourusername/maintenance-gate/internal/config"
	"github.com/yourusername/maintenance-gate/internal/events"
	"github.com/yourusername/maintenance-gate/internal/logging"
	"github.com/yourusername/maintenance-gate/internal/maintenance"
	"github.com/yourusername/maintenance-gate/internal/metrics"
)

// SetupRouter configures and returns the HTTP router. db, audit, recorder
// and hub may be nil; the matching features are then left out.
func SetupRouter(
	cfg *config.Config,
	db *sql.DB,
	verifier auth.Verifier,
	executor *maintenance.Executor,
	audit *logging.AuditLogger,
	recorder *metrics.Recorder,
	hub *events.Hub,
) *gin.Engine {
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		logging.Component("api").Warn("invalid trusted proxies, trusting none", "error", err)
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Audit(db))
	router.Use(middleware.CORS(cfg.Security.CORS))
	router.Use(middleware.RateLimit(cfg.Security.RateLimit.Enabled, cfg.Security.RateLimit.RequestsPerMinute))
	router.Use(middleware.SecurityHeaders(cfg.Server.TLS.Enabled))

	gate := maintenance.NewGate(cfg.Maintenance.Operation, verifier)

	// avoid a typed-nil interface when the audit store is disabled
	var runs handlers.RunRecorder
	if audit != nil {
		runs = audit
	}
	maintenanceHandler := handlers.NewMaintenanceHandler(gate, executor, runs, recorder, hub)

	router.Any(cfg.Server.Path, maintenanceHandler.Handle)
	// Any covers only the standard verbs; other methods on the endpoint
	// still get the structured 405 from the gate.
	router.NoRoute(func(c *gin.Context) {
		if c.Request.URL.Path == cfg.Server.Path {
			maintenanceHandler.Handle(c)
		}
	})

	if hub != nil && cfg.Events.Enabled {
		eventsHandler := handlers.NewEventsHandler(hub, verifier, cfg.Security.CORS.AllowedOrigins)
		router.GET(strings.TrimSuffix(cfg.Server.Path, "/")+"/events", eventsHandler.Stream)
	}

	if recorder != nil && cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(recorder.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
