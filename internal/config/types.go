package config

// Config is the root of the bot configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Minute-granularity tunables are plain integers to match the deployment
// environment variables they historically came from.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Reminders controls the reminder engine (tick interval, cooldowns,
	// delivery behavior).
	Reminders RemindersConfig `json:"reminders"`

	Storage StorageConfig `json:"storage"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via the BOT_TOKEN
	// environment variable instead.
	Token string `json:"token,omitempty"`

	// WebAppURL is attached to reminder messages as an action link
	// ("log a sleep session" button target).
	WebAppURL string `json:"webapp_url,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RemindersConfig tunes the reminder engine.
//
// Defaults (when fields are omitted/zero):
//   - interval_minutes: 10
//   - reminder_cooldown_minutes: 60
//   - bedtime_cooldown_minutes: 30
//   - send_delay: "500ms"
//   - retry_max: 1
//   - disable_on_unreachable: false
//   - retention_cron: "" (retention job disabled)
//   - retention_days: 90
type RemindersConfig struct {
	Enabled bool `json:"enabled"`

	// IntervalMinutes controls pass frequency.
	IntervalMinutes int `json:"interval_minutes,omitempty"`

	ReminderCooldownMinutes int `json:"reminder_cooldown_minutes,omitempty"`
	BedtimeCooldownMinutes  int `json:"bedtime_cooldown_minutes,omitempty"`

	// SendDelay is the minimum spacing between outbound messages within a
	// pass. A scheduling throttle, not a correctness knob.
	SendDelay string `json:"send_delay,omitempty"`

	// RetryMax bounds rate-limit retries per delivery. Omitted means 1;
	// an explicit 0 disables retries.
	RetryMax *int `json:"retry_max,omitempty"`

	// DisableOnUnreachable turns a user's notification kind off after a
	// permanently unreachable recipient (blocked bot, deleted account).
	DisableOnUnreachable bool `json:"disable_on_unreachable,omitempty"`

	// RetentionCron schedules notification-log pruning (standard cron spec,
	// e.g. "0 4 * * *"). Empty disables the job.
	RetentionCron string `json:"retention_cron,omitempty"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// StorageConfig selects the persistence backend.
//
// Driver values:
//   - "sqlite": local SQLite database file (default)
//   - "postgres": PostgreSQL via DSN
type StorageConfig struct {
	Driver string `json:"driver"`
	// Path is the database file for sqlite.
	Path string `json:"path,omitempty"`
	// DSN is the connection string for postgres.
	DSN string `json:"dsn,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
