package maintenance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/maintenance-gate/internal/backup"
	"github.com/yourusername/maintenance-gate/internal/logging"
)

// AuditSink receives one entry per executed run. It has no error return:
// audit failures stay inside the sink.
type AuditSink interface {
	Record(logPath string, entry logging.AuditEntry)
}

// Options configure an Executor. Relative paths are resolved against BaseDir,
// or the working directory at call time when BaseDir is empty.
type Options struct {
	Operation     string
	BaseDir       string
	TargetFile    string
	BackupDir     string
	BackupPrefix  string
	DirMode       os.FileMode
	AuditLog      string
	RequireBackup bool

	Store  Store
	Audit  AuditSink
	Mirror *backup.Mirror
}

// Requester identifies the caller for the audit trail
type Requester struct {
	IP        string
	UserAgent string
}

// Executor backs up and removes the target file
type Executor struct {
	opts  Options
	now   func() time.Time
	newID func() string
}

// NewExecutor creates an executor. A nil Store defaults to the local
// filesystem.
func NewExecutor(opts Options) *Executor {
	if opts.Store == nil {
		opts.Store = NewFileStore()
	}
	return &Executor{
		opts:  opts,
		now:   time.Now,
		newID: newOperationID,
	}
}

// BackupDir returns the resolved backup directory
func (e *Executor) BackupDir() (string, error) {
	base, err := e.baseDir()
	if err != nil {
		return "", err
	}
	return resolve(base, e.opts.BackupDir), nil
}

// Execute runs the maintenance sequence. Every outcome, including panics
// raised along the way, is returned as a Result.
func (e *Executor) Execute(req Requester) (result Result) {
	log := logging.Component("maintenance")

	defer func() {
		if r := recover(); r != nil {
			result = e.fault(fmt.Errorf("panic: %v", r))
		}
	}()

	base, err := e.baseDir()
	if err != nil {
		return e.fault(fmt.Errorf("resolve base directory: %w", err))
	}
	target := e.opts.TargetFile
	targetPath := resolve(base, target)

	store := e.opts.Store
	store.Lock()
	defer store.Unlock()

	exists, err := store.Exists(targetPath)
	if err != nil {
		return e.fault(fmt.Errorf("stat target: %w", err))
	}
	if !exists {
		return failed(targetNotFound(target))
	}
	if !store.Writable(targetPath) {
		return failed(newFailure(CodeAccessDenied))
	}

	started := e.now()
	if e.opts.Audit != nil {
		e.opts.Audit.Record(resolve(base, e.opts.AuditLog), logging.AuditEntry{
			Timestamp: started,
			SourceIP:  req.IP,
			UserAgent: req.UserAgent,
		})
	}

	name := e.opts.BackupPrefix + started.Format("2006-01-02_15-04-05") + filepath.Ext(target)
	dest := backup.NewLocalDestination(resolve(base, e.opts.BackupDir), e.opts.DirMode)

	size, copyErr := e.copyTarget(targetPath, dest, name)
	backupCreated := copyErr == nil
	if !backupCreated {
		log.Warn("maintenance_backup_failed", "backup", name, "error", copyErr)
		if e.opts.RequireBackup {
			return failed(newFailure(CodeBackupFailed))
		}
	}

	if err := store.Remove(targetPath); err != nil {
		log.Error("maintenance_remove_failed", "target", target, "error", err)
		f := newFailure(CodeOperationFailed)
		f.Target = target
		f.Err = err
		return failed(f)
	}

	success := &Success{
		Operation:     e.opts.Operation,
		Target:        target,
		BackupCreated: backupCreated,
		OperationID:   e.newID(),
		CompletedAt:   e.now(),
	}
	if backupCreated {
		success.BackupReference = name
		success.BackupBytes = size
		e.opts.Mirror.Replicate(name, dest.Path(name))
	}

	log.Info("maintenance_completed",
		"operation_id", success.OperationID,
		"backup_created", backupCreated,
		"source_ip", req.IP,
	)
	return Result{Success: success}
}

func (e *Executor) copyTarget(targetPath string, dest *backup.LocalDestination, name string) (int64, error) {
	reader, size, err := e.opts.Store.Open(targetPath)
	if err != nil {
		return 0, fmt.Errorf("open target: %w", err)
	}
	defer reader.Close()

	if err := dest.Upload(name, reader, size); err != nil {
		return 0, err
	}
	return size, nil
}

func (e *Executor) fault(err error) Result {
	f := systemError(err)
	logging.Component("maintenance").Error("maintenance_system_error", "error_ref", f.ErrorRef, "error", err)
	return failed(f)
}

func (e *Executor) baseDir() (string, error) {
	if e.opts.BaseDir != "" {
		return e.opts.BaseDir, nil
	}
	return os.Getwd()
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func newOperationID() string {
	id := uuid.New()
	return "MAINT_" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}
