// Package jobs runs the periodic maintenance tasks of the API.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/paperdesk/core"
)

// Purger deletes read notifications older than a retention period.
type Purger interface {
	PurgeRead(ctx context.Context, retention time.Duration, now time.Time) (int, error)
}

type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	logger    core.Logger
	retention time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// New schedules the notification cleanup with the standard cron spec (or descriptor) of conf.
func New(conf *core.Config, purger Purger, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		purger:    purger,
		logger:    logger,
		retention: conf.Jobs.NotificationRetention,
		timeout:   time.Minute,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(conf.Jobs.NotificationCleanupSchedule, s.purgeNotifications); err != nil {
		return nil, errors.Wrapf(err, "scheduling notification cleanup %q", conf.Jobs.NotificationCleanupSchedule)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to complete, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) purgeNotifications() {
	if s.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.purger.PurgeRead(ctx, s.retention, s.now())
	if err != nil {
		s.logger.Error("purging read notifications", err)
		return
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("purged %d read notifications", n))
	}
}
