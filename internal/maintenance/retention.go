// Package maintenance runs periodic housekeeping jobs, currently pruning
// old notification log entries.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

type Config struct {
	// RetentionCron is a standard 5-field cron expression. Empty disables
	// the job.
	RetentionCron string
	// RetentionDays is how long notification log entries are kept.
	RetentionDays int
}

func (c Config) withDefaults() Config {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 90
	}
	return c
}

// Service schedules the retention job. It holds one cron runner for its
// lifetime; Start and Stop bracket it.
type Service struct {
	cfg   Config
	store storage.Store
	log   logx.Logger

	cron *cron.Cron
}

func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.withDefaults(), store: store, log: log}
}

// Start validates the schedule and begins running it. A service with no
// schedule configured is a no-op.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.RetentionCron == "" {
		s.log.Debug("log retention disabled, no schedule configured")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.cfg.RetentionCron, func() { s.prune(ctx) })
	if err != nil {
		return fmt.Errorf("maintenance: bad retention schedule %q: %w", s.cfg.RetentionCron, err)
	}
	c.Start()
	s.cron = c

	s.log.Info("log retention scheduled",
		logx.String("cron", s.cfg.RetentionCron), logx.Int("days", s.cfg.RetentionDays))
	return nil
}

// Stop halts the scheduler and waits for a running job, up to the ctx deadline.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PruneNow runs one retention pass outside the schedule.
func (s *Service) PruneNow(ctx context.Context) { s.prune(ctx) }

func (s *Service) prune(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	n, err := s.store.PruneNotificationLog(ctx, cutoff)
	if err != nil {
		s.log.Error("notification log prune failed", logx.Err(err))
		return
	}
	s.log.Info("notification log pruned",
		logx.Int64("removed", n), logx.Time("cutoff", cutoff))
}
