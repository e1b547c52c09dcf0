package middleware

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/maintenance-gate/internal/logging"
)

// Audit stores every request in http_audit. A nil db disables it.
func Audit(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if db == nil {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if path == "/health" {
			return
		}

		if _, err := db.Exec(`
			INSERT INTO http_audit (method, path, status, ip_address, user_agent)
			VALUES (?, ?, ?, ?, ?)
		`, c.Request.Method, path, c.Writer.Status(), c.ClientIP(), c.Request.UserAgent()); err != nil {
			logging.Component("http_audit").Warn("http_audit_write_failed", "path", path, "error", err)
		}
	}
}
