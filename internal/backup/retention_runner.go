package backup

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/yourusername/maintenance-gate/internal/config"
)

// ValidateSchedule reports whether schedule is a usable cron expression
func ValidateSchedule(schedule string) error {
	_, err := config.RetentionParser.Parse(schedule)
	return err
}

// RetentionRunner enforces retention on a cron schedule. Targets are
// resolved on every run because the local backup directory may follow the
// working directory.
type RetentionRunner struct {
	cron    *cron.Cron
	manager *RetentionManager
	targets func() []Destination
}

// NewRetentionRunner registers the retention job; call Start to begin.
func NewRetentionRunner(schedule string, manager *RetentionManager, targets func() []Destination) (*RetentionRunner, error) {
	rr := &RetentionRunner{
		cron:    cron.New(cron.WithParser(config.RetentionParser)),
		manager: manager,
		targets: targets,
	}

	if _, err := rr.cron.AddFunc(schedule, rr.RunOnce); err != nil {
		return nil, err
	}
	return rr, nil
}

// Start begins the schedule in the background
func (rr *RetentionRunner) Start() {
	rr.cron.Start()
}

// Stop halts scheduling and waits for a running job, bounded by ctx
func (rr *RetentionRunner) Stop(ctx context.Context) {
	done := rr.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("[Retention] Stop timed out waiting for running job")
	}
}

// RunOnce enforces retention on every target immediately
func (rr *RetentionRunner) RunOnce() {
	for _, dest := range rr.targets() {
		if dest == nil {
			continue
		}
		if _, err := rr.manager.Enforce(dest); err != nil {
			log.Printf("[Retention] %s: %v", dest.GetType(), err)
		}
	}
}
