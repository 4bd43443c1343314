package app

import (
	"testing"
	"time"

	"sleepbot/internal/config"
)

func TestMapDeliveryConfigRetryMax(t *testing.T) {
	t.Parallel()
	zero, two := 0, 2
	cases := []struct {
		name string
		in   *int
		want int
	}{
		{"unset defaults to one retry", nil, 1},
		{"explicit zero disables retries", &zero, 0},
		{"explicit value kept", &two, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Reminders.RetryMax = tc.in
			dc, err := mapDeliveryConfig(cfg)
			if err != nil {
				t.Fatalf("mapDeliveryConfig error: %v", err)
			}
			if dc.RetryMax != tc.want {
				t.Fatalf("RetryMax = %d, want %d", dc.RetryMax, tc.want)
			}
		})
	}
}

func TestMapDeliveryConfigSendDelay(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Reminders.SendDelay = "250ms"
	dc, err := mapDeliveryConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if dc.SendDelay != 250*time.Millisecond {
		t.Fatalf("SendDelay = %v", dc.SendDelay)
	}

	cfg.Reminders.SendDelay = ""
	dc, err = mapDeliveryConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if dc.SendDelay != 500*time.Millisecond {
		t.Fatalf("default SendDelay = %v, want 500ms", dc.SendDelay)
	}

	cfg.Reminders.SendDelay = "not-a-duration"
	if _, err := mapDeliveryConfig(cfg); err == nil {
		t.Fatal("invalid send_delay accepted")
	}
}

func TestValidateConfigRetryMax(t *testing.T) {
	t.Parallel()
	neg := -1
	cfg := &config.Config{}
	cfg.Reminders.RetryMax = &neg
	if err := validateConfig(cfg); err == nil {
		t.Fatal("negative retry_max accepted")
	}
	cfg.Reminders.RetryMax = nil
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("unset retry_max rejected: %v", err)
	}
}
