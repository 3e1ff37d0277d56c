package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/warden/pkg/observability"
)

const purgeJobName = "access_token_purge"

// ExpiredTokenStore deletes access tokens that expired at or before now
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenPurger removes expired service account access tokens
type TokenPurger struct {
	store   ExpiredTokenStore
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// NewTokenPurger creates a purger. A run is abandoned after timeout.
func NewTokenPurger(store ExpiredTokenStore, metrics *observability.Metrics, logger logrus.FieldLogger, timeout time.Duration) *TokenPurger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &TokenPurger{store: store, metrics: metrics, logger: logger, timeout: timeout, now: time.Now}
}

// Run deletes every token expired by now
func (p *TokenPurger) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	n, err := p.store.DeleteExpired(ctx, start.UTC())
	p.metrics.RecordJobRun(purgeJobName, n, err)
	if err != nil {
		return fmt.Errorf("purge expired access tokens: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"job":      purgeJobName,
		"deleted":  n,
		"duration": time.Since(start),
	}).Info("purged expired access tokens")
	return nil
}

// Scheduler runs the purger on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	logger logrus.FieldLogger
}

// NewScheduler registers purger under schedule, a standard five-field cron
// expression. An empty schedule registers nothing.
func NewScheduler(purger *TokenPurger, schedule string, logger logrus.FieldLogger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if schedule != "" {
		if _, err := c.AddFunc(schedule, func() {
			defer observability.RecoverPanic(logger, purgeJobName)
			if err := purger.Run(context.Background()); err != nil {
				logger.WithError(err).WithField("job", purgeJobName).Error("scheduled job failed")
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid schedule for %s: %w", purgeJobName, err)
		}
		logger.WithFields(logrus.Fields{"job": purgeJobName, "schedule": schedule}).Info("scheduled job")
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running job until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Entries reports how many jobs are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
