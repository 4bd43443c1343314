// Package reminder is the decision engine: on each tick it enumerates opted-in
// users, evaluates the per-child sleep conditions, consults the cooldown
// tracker, and hands composed notifications to the delivery pipeline.
package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sleepbot/internal/delivery"
	rtsup "sleepbot/internal/runtime/supervisor"
	"sleepbot/internal/sleep"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

// Deliverer is the slice of the delivery pipeline the engine needs.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, payload delivery.Payload) delivery.Outcome
}

// Config tunes the engine. Zero fields fall back to defaults
// (10m interval, 60m reminder cooldown, 30m bedtime cooldown).
//
// The bedtime cooldown is deliberately shorter: its trigger window is only
// ten minutes wide, and a reminder-length cooldown left over from a previous
// cycle would silently swallow it.
type Config struct {
	Enabled          bool
	Interval         time.Duration
	ReminderCooldown time.Duration
	BedtimeCooldown  time.Duration

	// WebAppURL becomes the action link on reminder messages.
	WebAppURL string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.ReminderCooldown <= 0 {
		c.ReminderCooldown = 60 * time.Minute
	}
	if c.BedtimeCooldown <= 0 {
		c.BedtimeCooldown = 30 * time.Minute
	}
	return c
}

// Service is the timer-driven scheduler loop. Ticks are serialized: a tick
// that fires while the previous pass is still running is dropped.
type Service struct {
	mu  sync.Mutex
	cfg Config

	store    storage.Store
	deliver  Deliverer
	cooldown *CooldownTracker
	log      logx.Logger

	sup     *rtsup.Supervisor
	passing atomic.Bool

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config, store storage.Store, deliver Deliverer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		deliver:  deliver,
		cooldown: NewCooldownTracker(store),
		log:      log,
		now:      time.Now,
	}
}

// Apply updates tunables at runtime (config reload). The new interval takes
// effect at the next timer arm.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start begins ticking. Idempotent; a disabled engine starts nothing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.sup != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	sup := s.sup
	s.mu.Unlock()

	sup.GoRestart("reminder.loop", func(ctx context.Context) error {
		s.log.Info("reminder loop started", logx.Duration("interval", s.snapshot().Interval))
		for {
			t := time.NewTimer(s.snapshot().Interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
				s.runPass(ctx)
			}
		}
	})
}

// Stop waits for an in-flight pass to finish, up to the ctx deadline.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()
	err := sup.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunPassNow triggers one evaluation pass outside the timer (used for manual
// test runs). It reports false when a pass is already in flight.
func (s *Service) RunPassNow(ctx context.Context) bool {
	return s.runPass(ctx)
}

// evaluatedKinds are the kinds the engine has evaluators for. Wake reminders
// exist as a preference but have no condition yet.
var evaluatedKinds = []storage.Kind{storage.KindSleepReminder, storage.KindBedtimeAlert}

func (s *Service) runPass(ctx context.Context) bool {
	// Ticks are serialized; anything arriving mid-pass is dropped.
	if !s.passing.CompareAndSwap(false, true) {
		s.log.Debug("pass already running, tick dropped")
		return false
	}
	defer s.passing.Store(false)

	cfg := s.snapshot()
	started := s.now()
	var sent, failed, cooled int

	for _, kind := range evaluatedKinds {
		users, err := s.store.ListUsersWithKindEnabled(ctx, kind)
		if err != nil {
			// Store unreachable: give up on this kind for this pass, the loop
			// itself survives and waits for the next tick.
			s.log.Error("listing users failed", logx.String("kind", string(kind)), logx.Err(err))
			continue
		}

		for _, u := range users {
			if ctx.Err() != nil {
				return true
			}
			payload, err := s.evaluateUser(ctx, cfg, u, kind)
			if err != nil {
				s.log.Warn("user evaluation failed",
					logx.Int64("user", u.ID), logx.String("kind", string(kind)), logx.Err(err))
				continue
			}
			if payload == nil {
				continue
			}

			allow, err := s.cooldown.ShouldSend(ctx, s.now(), u.ID, kind, "", cooldownFor(cfg, kind))
			if err != nil {
				s.log.Warn("cooldown check failed", logx.Int64("user", u.ID), logx.Err(err))
				continue
			}
			if !allow {
				cooled++
				s.log.Debug("notification suppressed by cooldown",
					logx.Int64("user", u.ID), logx.String("kind", string(kind)))
				continue
			}

			out := s.deliver.Deliver(ctx, u.ID, *payload)
			if out.Success {
				sent++
			} else {
				failed++
			}
		}
	}

	s.log.Info("reminder pass completed",
		logx.Int("sent", sent), logx.Int("failed", failed), logx.Int("cooldown_skips", cooled),
		logx.Duration("took", s.now().Sub(started)))
	return true
}

func cooldownFor(cfg Config, kind storage.Kind) time.Duration {
	if kind == storage.KindBedtimeAlert {
		return cfg.BedtimeCooldown
	}
	return cfg.ReminderCooldown
}

// evaluateUser runs the kind's condition over each of the user's children and
// composes one combined payload, or nil when nothing triggers.
func (s *Service) evaluateUser(ctx context.Context, cfg Config, u storage.User, kind storage.Kind) (*delivery.Payload, error) {
	children, err := s.store.GetChildren(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var reminders []reminderItem
	var bedtimes []bedtimeItem
	var childIDs []string

	for _, c := range children {
		rec := sleep.Recommend(sleep.AgeMonths(c.DateOfBirth, now))

		last, err := s.store.GetLatestClosedSession(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		var lastEnd *time.Time
		if last != nil {
			lastEnd = last.EndTime
		}

		switch kind {
		case storage.KindSleepReminder:
			if r := sleep.NeedsReminder(rec, lastEnd, now); r.Needed {
				reminders = append(reminders, reminderItem{child: c, result: r})
				childIDs = append(childIDs, c.ID)
			}
		case storage.KindBedtimeAlert:
			if b := sleep.NeedsBedtimeAlert(rec, lastEnd, now); b.Needed {
				bedtimes = append(bedtimes, bedtimeItem{child: c, result: b})
				childIDs = append(childIDs, c.ID)
			}
		}
	}

	switch {
	case len(reminders) > 0:
		return &delivery.Payload{
			Kind:        kind,
			Text:        composeReminder(reminders, now),
			ActionURL:   cfg.WebAppURL,
			ActionLabel: "\U0001f4dd Log Sleep Session",
			ChildIDs:    childIDs,
		}, nil
	case len(bedtimes) > 0:
		return &delivery.Payload{
			Kind:     kind,
			Text:     composeBedtime(bedtimes),
			ChildIDs: childIDs,
		}, nil
	default:
		return nil, nil
	}
}
