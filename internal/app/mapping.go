package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"sleepbot/internal/config"
	"sleepbot/internal/delivery"
	"sleepbot/internal/maintenance"
	"sleepbot/internal/reminder"
	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

// mapLoggingConfig translates the file config into the logx service config.
func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, nil
}

func mapReminderConfig(cfg *config.Config) reminder.Config {
	return reminder.Config{
		Enabled:          cfg.Reminders.Enabled,
		Interval:         time.Duration(cfg.Reminders.IntervalMinutes) * time.Minute,
		ReminderCooldown: time.Duration(cfg.Reminders.ReminderCooldownMinutes) * time.Minute,
		BedtimeCooldown:  time.Duration(cfg.Reminders.BedtimeCooldownMinutes) * time.Minute,
		WebAppURL:        cfg.Telegram.WebAppURL,
	}
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	delay, err := config.ParseDurationOrDefault("reminders.send_delay", cfg.Reminders.SendDelay, 500*time.Millisecond)
	if err != nil {
		return delivery.Config{}, err
	}
	retry := 1
	if cfg.Reminders.RetryMax != nil {
		retry = *cfg.Reminders.RetryMax
	}
	return delivery.Config{SendDelay: delay, RetryMax: retry}, nil
}

func mapMaintenanceConfig(cfg *config.Config) maintenance.Config {
	return maintenance.Config{
		RetentionCron: cfg.Reminders.RetentionCron,
		RetentionDays: cfg.Reminders.RetentionDays,
	}
}

// resolveToken prefers the config file, falls back to the BOT_TOKEN
// environment variable. A missing token is a startup-fatal configuration error.
func resolveToken(cfg *config.Config) (string, error) {
	if t := strings.TrimSpace(cfg.Telegram.Token); t != "" {
		return t, nil
	}
	if t := strings.TrimSpace(os.Getenv("BOT_TOKEN")); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("telegram token missing: set telegram.token or BOT_TOKEN")
}

// validateConfig rejects configs that would break a hot reload.
func validateConfig(cfg *config.Config) error {
	if cfg.Reminders.IntervalMinutes < 0 {
		return fmt.Errorf("reminders.interval_minutes must be >= 0")
	}
	if cfg.Reminders.ReminderCooldownMinutes < 0 {
		return fmt.Errorf("reminders.reminder_cooldown_minutes must be >= 0")
	}
	if cfg.Reminders.BedtimeCooldownMinutes < 0 {
		return fmt.Errorf("reminders.bedtime_cooldown_minutes must be >= 0")
	}
	if cfg.Reminders.RetryMax != nil && *cfg.Reminders.RetryMax < 0 {
		return fmt.Errorf("reminders.retry_max must be >= 0")
	}
	if cfg.Reminders.RetentionDays < 0 {
		return fmt.Errorf("reminders.retention_days must be >= 0")
	}
	if _, err := config.ParseDurationField("reminders.send_delay", cfg.Reminders.SendDelay); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", d)
	}
	return nil
}
