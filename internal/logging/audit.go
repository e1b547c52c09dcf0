package logging

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UnknownAgent stands in for a missing User-Agent header.
const UnknownAgent = "Unknown"

// AuditEntry is one line of the maintenance audit trail
type AuditEntry struct {
	Timestamp time.Time
	SourceIP  string
	UserAgent string
}

// RunRecord captures the outcome of one executed maintenance run
type RunRecord struct {
	OperationID     string
	Code            string
	BackupCreated   bool
	BackupReference string
	SourceIP        string
	CompletedAt     time.Time
}

// AuditLogger appends audit lines to a log file and mirrors them into the
// database. Every method is best-effort: failures are logged and swallowed so
// the audit trail never changes the outcome of a maintenance run.
type AuditLogger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewAuditLogger creates an audit logger. db may be nil.
func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

// FormatAuditLine renders an entry in the append-only log format
func FormatAuditLine(entry AuditEntry) string {
	agent := entry.UserAgent
	if agent == "" {
		agent = UnknownAgent
	}
	return fmt.Sprintf("%s - System maintenance initiated from IP: %s Agent: %s\n",
		entry.Timestamp.Format("2006-01-02 15:04:05"), entry.SourceIP, agent)
}

// Record appends entry to the file at logPath and to maintenance_audit.
func (al *AuditLogger) Record(logPath string, entry AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.UserAgent == "" {
		entry.UserAgent = UnknownAgent
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	if err := appendLine(logPath, FormatAuditLine(entry)); err != nil {
		Component("audit").Warn("audit_file_write_failed", "file", filepath.Base(logPath), "error", err)
	}

	if al.db == nil {
		return
	}
	if _, err := al.db.Exec(
		`INSERT INTO maintenance_audit (timestamp, source_ip, user_agent) VALUES (?, ?, ?)`,
		entry.Timestamp, entry.SourceIP, entry.UserAgent,
	); err != nil {
		Component("audit").Warn("audit_db_write_failed", "error", err)
	}
}

// RecordRun stores the outcome of an executed run.
func (al *AuditLogger) RecordRun(run RunRecord) {
	if al.db == nil {
		return
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now()
	}

	var operationID, reference interface{}
	if run.OperationID != "" {
		operationID = run.OperationID
	}
	if run.BackupReference != "" {
		reference = run.BackupReference
	}

	if _, err := al.db.Exec(`
		INSERT INTO maintenance_runs (operation_id, code, backup_created, backup_reference, source_ip, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, operationID, run.Code, run.BackupCreated, reference, run.SourceIP, run.CompletedAt); err != nil {
		Component("audit").Warn("run_record_failed", "code", run.Code, "error", err)
	}
}

func appendLine(path, line string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(line); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
