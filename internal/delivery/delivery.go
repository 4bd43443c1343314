// Package delivery pushes composed notifications through the Notifier with
// bounded rate-limit retries and records every outcome in the notification
// log. The log append happens on success and failure alike; cooldown
// correctness depends on it.
package delivery

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"sleepbot/internal/eventbus"
	"sleepbot/internal/storage"
	"sleepbot/internal/transport"
	logx "sleepbot/pkg/logx"
)

type Config struct {
	// SendDelay is the minimum spacing between outbound messages. It is a
	// scheduling throttle for platform rate limits, not a correctness knob.
	SendDelay time.Duration
	// RetryMax bounds how many times a rate-limited send is retried.
	RetryMax int
}

// Payload is one composed notification for one user. ChildIDs lists the
// children the message covers; one log entry is appended per child so
// per-child cooldown queries see them all.
type Payload struct {
	Kind        storage.Kind
	Text        string
	ActionURL   string
	ActionLabel string
	ChildIDs    []string
}

// Outcome reports what happened to a single delivery.
type Outcome struct {
	Success     bool
	MessageID   int64
	Unreachable bool
	Err         error
}

// Event is published on the bus for every delivery outcome.
type Event struct {
	UserID      int64        `json:"user_id"`
	Kind        storage.Kind `json:"kind"`
	At          time.Time    `json:"at"`
	Unreachable bool         `json:"unreachable,omitempty"`
	Error       string       `json:"error,omitempty"`
}

const (
	EventSent   = "delivery.sent"
	EventFailed = "delivery.failed"
)

type Pipeline struct {
	cfg      Config
	notifier transport.Notifier
	store    storage.Store
	bus      eventbus.Bus
	log      logx.Logger
	limiter  *rate.Limiter
}

func New(cfg Config, notifier transport.Notifier, store storage.Store, bus eventbus.Bus, log logx.Logger) *Pipeline {
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = 500 * time.Millisecond
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		cfg:      cfg,
		notifier: notifier,
		store:    store,
		bus:      bus,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(cfg.SendDelay), 1),
	}
}

// Deliver sends one notification and appends the outcome to the notification
// log. Rate-limit signals are honored by waiting the signaled duration and
// retrying, at most cfg.RetryMax times. Unreachable recipients and other
// errors are not retried.
func (p *Pipeline) Deliver(ctx context.Context, userID int64, payload Payload) Outcome {
	out := p.send(ctx, userID, payload)
	p.record(ctx, userID, payload, out)
	p.publish(userID, payload.Kind, out)
	return out
}

func (p *Pipeline) send(ctx context.Context, userID int64, payload Payload) Outcome {
	// Inter-message spacing across the whole pass.
	if err := p.limiter.Wait(ctx); err != nil {
		return Outcome{Err: err}
	}

	opt := &transport.SendOptions{
		ActionURL:   payload.ActionURL,
		ActionLabel: payload.ActionLabel,
	}

	for attempt := 0; ; attempt++ {
		ref, err := p.notifier.Send(ctx, userID, payload.Text, opt)
		if err == nil {
			return Outcome{Success: true, MessageID: int64(ref.MessageID)}
		}

		if transport.IsUnreachable(err) {
			p.log.Warn("recipient unreachable",
				logx.Int64("user", userID), logx.String("kind", string(payload.Kind)))
			return Outcome{Unreachable: true, Err: err}
		}

		after, limited := transport.IsRateLimited(err)
		if !limited || attempt >= p.cfg.RetryMax {
			return Outcome{Err: err}
		}

		p.log.Warn("rate limited, retrying",
			logx.Int64("user", userID), logx.Duration("after", after), logx.Int("attempt", attempt+1))
		t := time.NewTimer(after)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return Outcome{Err: ctx.Err()}
		}
	}
}

// record appends one log entry per covered child (or a single user-level
// entry when the payload is not child-scoped).
func (p *Pipeline) record(ctx context.Context, userID int64, payload Payload, out Outcome) {
	childIDs := payload.ChildIDs
	if len(childIDs) == 0 {
		childIDs = []string{""}
	}

	now := time.Now()
	for _, childID := range childIDs {
		e := storage.LogEntry{
			UserID:            userID,
			Kind:              payload.Kind,
			ChildID:           childID,
			Text:              payload.Text,
			SentAt:            now,
			Success:           out.Success,
			PlatformMessageID: out.MessageID,
		}
		if out.Err != nil {
			e.Error = out.Err.Error()
		}
		if err := p.store.AppendNotificationLog(ctx, e); err != nil {
			p.log.Error("notification log append failed",
				logx.Int64("user", userID), logx.String("kind", string(payload.Kind)), logx.Err(err))
		}
	}
}

func (p *Pipeline) publish(userID int64, kind storage.Kind, out Outcome) {
	if p.bus == nil {
		return
	}
	now := time.Now()
	ev := Event{UserID: userID, Kind: kind, At: now, Unreachable: out.Unreachable}
	typ := EventSent
	if !out.Success {
		typ = EventFailed
		if out.Err != nil {
			ev.Error = out.Err.Error()
		}
	}
	p.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
