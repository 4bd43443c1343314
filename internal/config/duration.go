package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued config fields are Go duration strings ("500ms", "10s",
// "1m"). An empty string means unset; negatives are rejected so a reload
// can't smuggle in a value the services would misread as "no limit".

// ParseDurationField parses one such field. path names the field in error
// messages ("reminders.send_delay").
func ParseDurationField(path, raw string) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for an
// unset field.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
