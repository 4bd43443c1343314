package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "sleepbot/pkg/logx"
)

// Store is the persistence API the reminder engine depends on.
//
// Append/update operations are individually atomic; the engine's
// read-then-append cooldown protocol assumes a single active scheduler
// instance per deployment (documented precondition, not enforced here).
type Store interface {
	UpsertUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	// ListUsersWithKindEnabled returns users whose preference for kind is
	// enabled, including users with no preference row (absence means enabled).
	ListUsersWithKindEnabled(ctx context.Context, kind Kind) ([]User, error)

	AddChild(ctx context.Context, c Child) error
	GetChildren(ctx context.Context, userID int64) ([]Child, error)

	AddSleepSession(ctx context.Context, s SleepSession) error
	// GetLatestClosedSession returns the child's most recent session with a
	// non-null end time, or nil when none exists.
	GetLatestClosedSession(ctx context.Context, childID string) (*SleepSession, error)

	// GetNotificationLog returns entries for (user, kind), newest first,
	// optionally filtered to childID (empty = all), capped at limit.
	GetNotificationLog(ctx context.Context, userID int64, kind Kind, childID string, limit int) ([]LogEntry, error)
	AppendNotificationLog(ctx context.Context, e LogEntry) error
	// PruneNotificationLog deletes entries sent before cutoff and reports how
	// many were removed.
	PruneNotificationLog(ctx context.Context, cutoff time.Time) (int64, error)

	// GetPreference returns nil (no error) when no row exists for (user, kind).
	GetPreference(ctx context.Context, userID int64, kind Kind) (*Preference, error)
	SetPreference(ctx context.Context, userID int64, kind Kind, enabled bool) error

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver      string
	Path        string        // sqlite database file
	DSN         string        // postgres connection string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store. An empty driver defaults to sqlite.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
