package sleep

import (
	"testing"
	"time"
)

var evalNow = time.Date(2025, time.June, 15, 14, 0, 0, 0, time.UTC)

func endedAgo(d time.Duration) *time.Time {
	t := evalNow.Add(-d)
	return &t
}

func TestNeedsReminderNoSessionsEver(t *testing.T) {
	// Two-month-old with no sessions: reminder yes, bedtime alert no.
	rec := Recommend(2)

	r := NeedsReminder(rec, nil, evalNow)
	if !r.Needed {
		t.Fatal("expected reminder for child with no sessions")
	}
	if r.LastEnd != nil {
		t.Fatal("expected nil LastEnd")
	}

	if b := NeedsBedtimeAlert(rec, nil, evalNow); b.Needed {
		t.Fatal("bedtime alert must not trigger without a closed session")
	}
}

func TestNeedsReminderStaleSession(t *testing.T) {
	// Four-month-old: sleep duration 90m, threshold 180m.
	rec := Recommend(4)

	cases := []struct {
		ago  time.Duration
		want bool
	}{
		{200 * time.Minute, true},
		{181 * time.Minute, true},
		{180 * time.Minute, false}, // strictly greater than threshold
		{80 * time.Minute, false},
	}
	for _, c := range cases {
		r := NeedsReminder(rec, endedAgo(c.ago), evalNow)
		if r.Needed != c.want {
			t.Errorf("session ended %s ago: needed = %v, want %v", c.ago, r.Needed, c.want)
		}
	}
}

func TestNeedsReminderIdempotent(t *testing.T) {
	rec := Recommend(4)
	last := endedAgo(200 * time.Minute)

	first := NeedsReminder(rec, last, evalNow)
	second := NeedsReminder(rec, last, evalNow)
	if first.Needed != second.Needed || !first.LastEnd.Equal(*second.LastEnd) {
		t.Fatalf("evaluator not idempotent: %+v vs %+v", first, second)
	}
}

func TestNeedsBedtimeAlertWindow(t *testing.T) {
	// Four-month-old: wake window 90m.
	rec := Recommend(4)

	cases := []struct {
		name        string
		ago         time.Duration
		want        bool
		wantMinutes int
	}{
		{"ten minutes out", 80 * time.Minute, true, 10},
		{"exactly now", 90 * time.Minute, true, 0},
		{"mid window", 85 * time.Minute, true, 5},
		{"one second past the window", 80*time.Minute - time.Second, false, 0},
		{"bedtime already passed", 91 * time.Minute, false, 0},
		{"long overdue", 5 * time.Hour, false, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := NeedsBedtimeAlert(rec, endedAgo(c.ago), evalNow)
			if b.Needed != c.want {
				t.Fatalf("needed = %v, want %v", b.Needed, c.want)
			}
			if b.Needed && b.MinutesUntil != c.wantMinutes {
				t.Fatalf("minutes until = %d, want %d", b.MinutesUntil, c.wantMinutes)
			}
		})
	}
}

func TestBedtimeMinutesTruncateTowardZero(t *testing.T) {
	rec := Recommend(4)
	// 9m30s until predicted bedtime -> 9 whole minutes.
	last := evalNow.Add(-rec.WakeWindow + 9*time.Minute + 30*time.Second)
	b := NeedsBedtimeAlert(rec, &last, evalNow)
	if !b.Needed {
		t.Fatal("expected alert inside window")
	}
	if b.MinutesUntil != 9 {
		t.Fatalf("minutes until = %d, want 9", b.MinutesUntil)
	}
}
