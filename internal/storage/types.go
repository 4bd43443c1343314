package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Kind identifies a notification category. Values match the original
// preference rows so existing databases keep working.
type Kind string

const (
	KindSleepReminder Kind = "sleep_reminders"
	KindBedtimeAlert  Kind = "bedtime_alerts"
	KindWakeReminder  Kind = "wake_reminders"
)

// AllKinds lists every kind a new user gets a default-enabled preference for.
func AllKinds() []Kind {
	return []Kind{KindSleepReminder, KindBedtimeAlert, KindWakeReminder}
}

// User is a registered bot user. The ID is the platform (Telegram) user id,
// which doubles as the chat id for direct messages.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// Child belongs to exactly one user and is immutable once created.
type Child struct {
	ID          string
	UserID      int64
	Name        string
	DateOfBirth time.Time
}

// SleepSession is one logged sleep. EndTime is nil while the session is open;
// the reminder engine only ever reads closed sessions.
type SleepSession struct {
	ID        string
	ChildID   string
	StartTime time.Time
	EndTime   *time.Time
}

// Preference is one (user, kind) toggle. Absence of a row means enabled.
type Preference struct {
	UserID    int64
	Kind      Kind
	Enabled   bool
	UpdatedAt time.Time
}

// LogEntry is one append-only delivery attempt record. The cooldown tracker
// reads these by recency; they are never mutated.
type LogEntry struct {
	ID      int64
	UserID  int64
	Kind    Kind
	ChildID string // empty when the entry is not child-scoped
	Text    string
	SentAt  time.Time
	Success bool
	Error   string
	// PlatformMessageID is the chat platform's id for the sent message (0 when
	// the send failed).
	PlatformMessageID int64
}
