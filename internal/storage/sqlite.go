package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "sleepbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sqlx.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./sleepbot.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

// ---- row types (unix-millisecond times keep the driver mapping trivial) ----

type userRow struct {
	ID          int64  `db:"id"`
	Username    string `db:"username"`
	DisplayName string `db:"display_name"`
	CreatedAt   int64  `db:"created_at"`
}

func (r userRow) model() User {
	return User{ID: r.ID, Username: r.Username, DisplayName: r.DisplayName, CreatedAt: fromMillis(r.CreatedAt)}
}

type childRow struct {
	ID          string `db:"id"`
	UserID      int64  `db:"user_id"`
	Name        string `db:"name"`
	DateOfBirth int64  `db:"date_of_birth"`
}

func (r childRow) model() Child {
	return Child{ID: r.ID, UserID: r.UserID, Name: r.Name, DateOfBirth: fromMillis(r.DateOfBirth)}
}

type sessionRow struct {
	ID        string        `db:"id"`
	ChildID   string        `db:"child_id"`
	StartTime int64         `db:"start_time"`
	EndTime   sql.NullInt64 `db:"end_time"`
}

func (r sessionRow) model() SleepSession {
	ss := SleepSession{ID: r.ID, ChildID: r.ChildID, StartTime: fromMillis(r.StartTime)}
	if r.EndTime.Valid {
		t := fromMillis(r.EndTime.Int64)
		ss.EndTime = &t
	}
	return ss
}

type prefRow struct {
	UserID    int64  `db:"user_id"`
	Kind      string `db:"kind"`
	Enabled   bool   `db:"enabled"`
	UpdatedAt int64  `db:"updated_at"`
}

type logRow struct {
	ID                int64  `db:"id"`
	UserID            int64  `db:"user_id"`
	Kind              string `db:"kind"`
	ChildID           string `db:"child_id"`
	Text              string `db:"message_text"`
	SentAt            int64  `db:"sent_at"`
	Success           bool   `db:"success"`
	Error             string `db:"error_message"`
	PlatformMessageID int64  `db:"platform_message_id"`
}

func (r logRow) model() LogEntry {
	return LogEntry{
		ID: r.ID, UserID: r.UserID, Kind: Kind(r.Kind), ChildID: r.ChildID,
		Text: r.Text, SentAt: fromMillis(r.SentAt), Success: r.Success,
		Error: r.Error, PlatformMessageID: r.PlatformMessageID,
	}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }
func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// ---- users ----

func (s *sqliteStore) UpsertUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, display_name, created_at) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET username=excluded.username, display_name=excluded.display_name`,
		u.ID, u.Username, u.DisplayName, toMillis(u.CreatedAt),
	)
	return err
}

func (s *sqliteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var r userRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u := r.model()
	return &u, nil
}

func (s *sqliteStore) ListUsersWithKindEnabled(ctx context.Context, kind Kind) ([]User, error) {
	var rows []userRow
	// Absence of a preference row means enabled.
	err := s.db.SelectContext(ctx, &rows,
		`SELECT u.* FROM users u
		 LEFT JOIN notification_prefs p ON p.user_id = u.id AND p.kind = ?
		 WHERE COALESCE(p.enabled, 1) = 1
		 ORDER BY u.id`, string(kind))
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// ---- children ----

func (s *sqliteStore) AddChild(ctx context.Context, c Child) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO children(id, user_id, name, date_of_birth) VALUES(?,?,?,?)`,
		c.ID, c.UserID, c.Name, toMillis(c.DateOfBirth),
	)
	return err
}

func (s *sqliteStore) GetChildren(ctx context.Context, userID int64) ([]Child, error) {
	var rows []childRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM children WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Child, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// ---- sleep sessions ----

func (s *sqliteStore) AddSleepSession(ctx context.Context, ss SleepSession) error {
	if ss.ID == "" {
		ss.ID = uuid.NewString()
	}
	var end sql.NullInt64
	if ss.EndTime != nil {
		end = sql.NullInt64{Int64: toMillis(*ss.EndTime), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sleep_sessions(id, child_id, start_time, end_time) VALUES(?,?,?,?)`,
		ss.ID, ss.ChildID, toMillis(ss.StartTime), end,
	)
	return err
}

func (s *sqliteStore) GetLatestClosedSession(ctx context.Context, childID string) (*SleepSession, error) {
	var r sessionRow
	err := s.db.GetContext(ctx, &r,
		`SELECT * FROM sleep_sessions
		 WHERE child_id = ? AND end_time IS NOT NULL
		 ORDER BY end_time DESC LIMIT 1`, childID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ss := r.model()
	return &ss, nil
}

// ---- notification log ----

func (s *sqliteStore) GetNotificationLog(ctx context.Context, userID int64, kind Kind, childID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT * FROM notification_log WHERE user_id = ? AND kind = ?`
	args := []any{userID, string(kind)}
	if childID != "" {
		q += ` AND child_id = ?`
		args = append(args, childID)
	}
	q += ` ORDER BY sent_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *sqliteStore) AppendNotificationLog(ctx context.Context, e LogEntry) error {
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log(user_id, kind, child_id, message_text, sent_at, success, error_message, platform_message_id)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.UserID, string(e.Kind), e.ChildID, e.Text, toMillis(e.SentAt), e.Success, e.Error, e.PlatformMessageID,
	)
	return err
}

func (s *sqliteStore) PruneNotificationLog(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_log WHERE sent_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ---- preferences ----

func (s *sqliteStore) GetPreference(ctx context.Context, userID int64, kind Kind) (*Preference, error) {
	var r prefRow
	err := s.db.GetContext(ctx, &r,
		`SELECT * FROM notification_prefs WHERE user_id = ? AND kind = ?`, userID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Preference{UserID: r.UserID, Kind: Kind(r.Kind), Enabled: r.Enabled, UpdatedAt: fromMillis(r.UpdatedAt)}, nil
}

func (s *sqliteStore) SetPreference(ctx context.Context, userID int64, kind Kind, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_prefs(user_id, kind, enabled, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(user_id, kind) DO UPDATE SET enabled=excluded.enabled, updated_at=excluded.updated_at`,
		userID, string(kind), enabled, toMillis(time.Now()),
	)
	return err
}
