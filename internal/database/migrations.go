package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_maintenance_audit",
		Up: `
-- One row per executed maintenance attempt (after authorization)
CREATE TABLE maintenance_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    source_ip TEXT NOT NULL,
    user_agent TEXT NOT NULL
);

CREATE INDEX idx_maintenance_audit_timestamp ON maintenance_audit(timestamp);

-- Outcome of every executed run
CREATE TABLE maintenance_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_id TEXT,
    code TEXT NOT NULL,
    backup_created BOOLEAN NOT NULL DEFAULT 0,
    backup_reference TEXT,
    source_ip TEXT,
    completed_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX idx_maintenance_runs_operation ON maintenance_runs(operation_id) WHERE operation_id IS NOT NULL;
`,
	},
	{
		Version: "002_http_audit",
		Up: `
CREATE TABLE http_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    status INTEGER NOT NULL,
    ip_address TEXT,
    user_agent TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_http_audit_created ON http_audit(created_at);
`,
	},
}
