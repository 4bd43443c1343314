package reminder

import (
	"context"
	"testing"
	"time"

	"sleepbot/internal/storage"
	logx "sleepbot/pkg/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

func TestCooldownNoHistoryAllows(t *testing.T) {
	tr := NewCooldownTracker(newFakeStore())
	ok, err := tr.ShouldSend(context.Background(), passNow, 7, storage.KindSleepReminder, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("empty history must allow a send")
	}
}

func TestCooldownElapsed(t *testing.T) {
	cases := []struct {
		name string
		ago  time.Duration
		want bool
	}{
		{"well inside cooldown", 5 * time.Minute, false},
		{"one second short", 60*time.Minute - time.Second, false},
		{"exactly at interval", 60 * time.Minute, true},
		{"past interval", 90 * time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newFakeStore()
			_ = st.AppendNotificationLog(context.Background(), storage.LogEntry{
				UserID: 7, Kind: storage.KindSleepReminder,
				SentAt: passNow.Add(-tc.ago), Success: true,
			})
			tr := NewCooldownTracker(st)
			ok, err := tr.ShouldSend(context.Background(), passNow, 7, storage.KindSleepReminder, "", time.Hour)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tc.want {
				t.Fatalf("ShouldSend = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestCooldownIgnoresFailedAttempts(t *testing.T) {
	st := newFakeStore()
	// Old success, then a fresh failure. The failure must not restart the clock.
	_ = st.AppendNotificationLog(context.Background(), storage.LogEntry{
		UserID: 7, Kind: storage.KindSleepReminder,
		SentAt: passNow.Add(-2 * time.Hour), Success: true,
	})
	_ = st.AppendNotificationLog(context.Background(), storage.LogEntry{
		UserID: 7, Kind: storage.KindSleepReminder,
		SentAt: passNow.Add(-time.Minute), Success: false, Error: "flood",
	})
	tr := NewCooldownTracker(st)
	ok, err := tr.ShouldSend(context.Background(), passNow, 7, storage.KindSleepReminder, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("failed attempt restarted the cooldown")
	}
}

func TestCooldownScopedByKind(t *testing.T) {
	st := newFakeStore()
	_ = st.AppendNotificationLog(context.Background(), storage.LogEntry{
		UserID: 7, Kind: storage.KindBedtimeAlert,
		SentAt: passNow.Add(-time.Minute), Success: true,
	})
	tr := NewCooldownTracker(st)
	ok, err := tr.ShouldSend(context.Background(), passNow, 7, storage.KindSleepReminder, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("a bedtime send must not cool down sleep reminders")
	}
}
