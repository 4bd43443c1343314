package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SendOptions carries optional message decorations.
type SendOptions struct {
	ParseMode      string
	DisablePreview bool

	// ActionURL/ActionLabel render as a single inline button under the
	// message (the "log a sleep session" link).
	ActionURL   string
	ActionLabel string
}

// MessageRef identifies a sent message on the chat platform.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Notifier sends a text message to a user. Implementations must map platform
// failures onto the error taxonomy below so callers can decide retry policy.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, opt *SendOptions) (MessageRef, error)
}

// RateLimitedError is a transient delivery failure; the caller should wait
// RetryAfter before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ErrUnreachable marks a recipient that cannot receive messages (blocked the
// bot, deleted the account, chat gone). Permanent for this attempt; do not retry.
var ErrUnreachable = errors.New("recipient unreachable")

// IsRateLimited reports whether err is a rate-limit signal and, if so, how
// long to wait before retrying.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
