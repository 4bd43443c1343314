package reminder

import (
	"context"
	"time"

	"sleepbot/internal/storage"
)

// CooldownTracker answers "may we notify again yet?" from the notification
// log. It is a pure read; the caller is responsible for appending a log entry
// after a send, which is what makes the next read reflect it. The
// read-then-append protocol is not transactional: a single active scheduler
// instance per deployment is assumed.
type CooldownTracker struct {
	store storage.Store
}

func NewCooldownTracker(store storage.Store) *CooldownTracker {
	return &CooldownTracker{store: store}
}

// recentLogProbe bounds how far back we look for the last successful send.
// Failed attempts in between don't reset a cooldown, so a handful of entries
// is enough.
const recentLogProbe = 10

// ShouldSend reports whether the most recent successful send for
// (user, kind[, child]) is at least minInterval old. No successful send on
// record means allow. childID may be empty to consider all entries for the kind.
func (t *CooldownTracker) ShouldSend(ctx context.Context, now time.Time, userID int64, kind storage.Kind, childID string, minInterval time.Duration) (bool, error) {
	entries, err := t.store.GetNotificationLog(ctx, userID, kind, childID, recentLogProbe)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.Success {
			continue
		}
		return now.Sub(e.SentAt) >= minInterval, nil
	}
	return true, nil
}
