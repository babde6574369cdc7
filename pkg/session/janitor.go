package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultPurgeSchedule runs the sweeper every ten minutes.
const DefaultPurgeSchedule = "*/10 * * * *"

// Janitor periodically purges expired sessions from a Store.
type Janitor struct {
	store  Store
	cron   *cron.Cron
	logger logrus.FieldLogger
}

// NewJanitor schedules store.Purge on schedule (standard five-field cron).
func NewJanitor(store Store, schedule string, logger logrus.FieldLogger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}

	j := &Janitor{
		store:  store,
		cron:   cron.New(),
		logger: logger,
	}

	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce purges expired sessions immediately.
func (j *Janitor) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.store.Purge(ctx, time.Now())
	if err != nil {
		j.logger.WithError(err).Warn("session purge failed")
		return
	}
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("purged expired sessions")
	}
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
