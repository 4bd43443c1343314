package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	logx "sleepbot/pkg/logx"
)

// postgresStore mirrors the sqlite backend on pgx. Times are stored as
// timestamptz; semantics are identical.
type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id           BIGINT PRIMARY KEY,
    username     TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS children (
    id            TEXT PRIMARY KEY,
    user_id       BIGINT NOT NULL REFERENCES users(id),
    name          TEXT NOT NULL,
    date_of_birth TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_children_user ON children(user_id);

CREATE TABLE IF NOT EXISTS sleep_sessions (
    id         TEXT PRIMARY KEY,
    child_id   TEXT NOT NULL REFERENCES children(id),
    start_time TIMESTAMPTZ NOT NULL,
    end_time   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_child_end ON sleep_sessions(child_id, end_time DESC);

CREATE TABLE IF NOT EXISTS notification_prefs (
    user_id    BIGINT NOT NULL,
    kind       TEXT NOT NULL,
    enabled    BOOLEAN NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, kind)
);

CREATE TABLE IF NOT EXISTS notification_log (
    id                  BIGSERIAL PRIMARY KEY,
    user_id             BIGINT NOT NULL,
    kind                TEXT NOT NULL,
    child_id            TEXT NOT NULL DEFAULT '',
    message_text        TEXT NOT NULL DEFAULT '',
    sent_at             TIMESTAMPTZ NOT NULL,
    success             BOOLEAN NOT NULL,
    error_message       TEXT NOT NULL DEFAULT '',
    platform_message_id BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_log_user_kind_sent ON notification_log(user_id, kind, sent_at DESC);
`

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) UpsertUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users(id, username, display_name, created_at) VALUES($1,$2,$3,$4)
		 ON CONFLICT(id) DO UPDATE SET username=EXCLUDED.username, display_name=EXCLUDED.display_name`,
		u.ID, u.Username, u.DisplayName, u.CreatedAt.UTC(),
	)
	return err
}

func (s *postgresStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, display_name, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *postgresStore) ListUsersWithKindEnabled(ctx context.Context, kind Kind) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.username, u.display_name, u.created_at FROM users u
		 LEFT JOIN notification_prefs p ON p.user_id = u.id AND p.kind = $1
		 WHERE COALESCE(p.enabled, TRUE)
		 ORDER BY u.id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *postgresStore) AddChild(ctx context.Context, c Child) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO children(id, user_id, name, date_of_birth) VALUES($1,$2,$3,$4)`,
		c.ID, c.UserID, c.Name, c.DateOfBirth.UTC(),
	)
	return err
}

func (s *postgresStore) GetChildren(ctx context.Context, userID int64) ([]Child, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, date_of_birth FROM children WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Child
	for rows.Next() {
		var c Child
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.DateOfBirth); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *postgresStore) AddSleepSession(ctx context.Context, ss SleepSession) error {
	if ss.ID == "" {
		ss.ID = uuid.NewString()
	}
	var end *time.Time
	if ss.EndTime != nil {
		t := ss.EndTime.UTC()
		end = &t
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sleep_sessions(id, child_id, start_time, end_time) VALUES($1,$2,$3,$4)`,
		ss.ID, ss.ChildID, ss.StartTime.UTC(), end,
	)
	return err
}

func (s *postgresStore) GetLatestClosedSession(ctx context.Context, childID string) (*SleepSession, error) {
	var ss SleepSession
	var end time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, child_id, start_time, end_time FROM sleep_sessions
		 WHERE child_id = $1 AND end_time IS NOT NULL
		 ORDER BY end_time DESC LIMIT 1`, childID).
		Scan(&ss.ID, &ss.ChildID, &ss.StartTime, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ss.EndTime = &end
	return &ss, nil
}

func (s *postgresStore) GetNotificationLog(ctx context.Context, userID int64, kind Kind, childID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, user_id, kind, child_id, message_text, sent_at, success, error_message, platform_message_id
	      FROM notification_log WHERE user_id = $1 AND kind = $2`
	args := []any{userID, string(kind)}
	if childID != "" {
		q += ` AND child_id = $3`
		args = append(args, childID)
	}
	q += fmt.Sprintf(` ORDER BY sent_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var kindS string
		if err := rows.Scan(&e.ID, &e.UserID, &kindS, &e.ChildID, &e.Text, &e.SentAt, &e.Success, &e.Error, &e.PlatformMessageID); err != nil {
			return nil, err
		}
		e.Kind = Kind(kindS)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *postgresStore) AppendNotificationLog(ctx context.Context, e LogEntry) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notification_log(user_id, kind, child_id, message_text, sent_at, success, error_message, platform_message_id)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.UserID, string(e.Kind), e.ChildID, e.Text, e.SentAt.UTC(), e.Success, e.Error, e.PlatformMessageID,
	)
	return err
}

func (s *postgresStore) PruneNotificationLog(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notification_log WHERE sent_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *postgresStore) GetPreference(ctx context.Context, userID int64, kind Kind) (*Preference, error) {
	var p Preference
	var kindS string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, kind, enabled, updated_at FROM notification_prefs WHERE user_id = $1 AND kind = $2`,
		userID, string(kind)).
		Scan(&p.UserID, &kindS, &p.Enabled, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Kind = Kind(kindS)
	return &p, nil
}

func (s *postgresStore) SetPreference(ctx context.Context, userID int64, kind Kind, enabled bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notification_prefs(user_id, kind, enabled, updated_at) VALUES($1,$2,$3,$4)
		 ON CONFLICT(user_id, kind) DO UPDATE SET enabled=EXCLUDED.enabled, updated_at=EXCLUDED.updated_at`,
		userID, string(kind), enabled, time.Now().UTC(),
	)
	return err
}
