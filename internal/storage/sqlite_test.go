package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "sleepbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(context.Background(), Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUserRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	u := User{ID: 7, Username: "ann", DisplayName: "Ann"}
	if err := st.UpsertUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetUser(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "ann" || got.DisplayName != "Ann" || got.CreatedAt.IsZero() {
		t.Fatalf("got %+v", got)
	}

	// Upsert updates without duplicating.
	u.DisplayName = "Annie"
	if err := st.UpsertUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetUser(ctx, 7)
	if got.DisplayName != "Annie" {
		t.Fatalf("display name not updated: %+v", got)
	}

	if _, err := st.GetUser(ctx, 999); err != ErrNotFound {
		t.Fatalf("missing user: err = %v, want ErrNotFound", err)
	}
}

func TestListUsersWithKindEnabled(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_ = st.UpsertUser(ctx, User{ID: 1})
	_ = st.UpsertUser(ctx, User{ID: 2})
	_ = st.UpsertUser(ctx, User{ID: 3})

	// No pref row means enabled; explicit off excludes.
	if err := st.SetPreference(ctx, 2, KindSleepReminder, false); err != nil {
		t.Fatal(err)
	}
	// An off switch for a different kind must not leak.
	if err := st.SetPreference(ctx, 3, KindBedtimeAlert, false); err != nil {
		t.Fatal(err)
	}

	users, err := st.ListUsersWithKindEnabled(ctx, KindSleepReminder)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[int64]bool{}
	for _, u := range users {
		ids[u.ID] = true
	}
	if !ids[1] || ids[2] || !ids[3] {
		t.Fatalf("enabled set = %v, want {1, 3}", ids)
	}

	// Re-enabling brings the user back.
	if err := st.SetPreference(ctx, 2, KindSleepReminder, true); err != nil {
		t.Fatal(err)
	}
	users, _ = st.ListUsersWithKindEnabled(ctx, KindSleepReminder)
	if len(users) != 3 {
		t.Fatalf("got %d users after re-enable, want 3", len(users))
	}
}

func TestLatestClosedSession(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_ = st.UpsertUser(ctx, User{ID: 1})
	child := Child{ID: "c1", UserID: 1, Name: "Mia", DateOfBirth: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := st.AddChild(ctx, child); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetLatestClosedSession(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("no sessions yet, got %+v", got)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end1 := base.Add(1 * time.Hour)
	end2 := base.Add(5 * time.Hour)
	_ = st.AddSleepSession(ctx, SleepSession{ChildID: "c1", StartTime: base, EndTime: &end1})
	_ = st.AddSleepSession(ctx, SleepSession{ChildID: "c1", StartTime: base.Add(4 * time.Hour), EndTime: &end2})
	// An open session must never win, even when started last.
	_ = st.AddSleepSession(ctx, SleepSession{ChildID: "c1", StartTime: base.Add(8 * time.Hour)})

	got, err = st.GetLatestClosedSession(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.EndTime == nil || !got.EndTime.Equal(end2) {
		t.Fatalf("got %+v, want session ending at %v", got, end2)
	}
}

func TestNotificationLog(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	add := func(childID string, at time.Time, success bool) {
		t.Helper()
		if err := st.AppendNotificationLog(ctx, LogEntry{
			UserID: 7, Kind: KindSleepReminder, ChildID: childID,
			Text: "msg", SentAt: at, Success: success,
		}); err != nil {
			t.Fatal(err)
		}
	}
	add("c1", base, true)
	add("c2", base.Add(time.Minute), true)
	add("c1", base.Add(2*time.Minute), false)

	entries, err := st.GetNotificationLog(ctx, 7, KindSleepReminder, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest first.
	if !entries[0].SentAt.After(entries[1].SentAt) || entries[0].Success {
		t.Fatalf("ordering wrong: %+v", entries)
	}

	// Child filter.
	entries, _ = st.GetNotificationLog(ctx, 7, KindSleepReminder, "c2", 10)
	if len(entries) != 1 || entries[0].ChildID != "c2" {
		t.Fatalf("child filter: %+v", entries)
	}

	// Limit.
	entries, _ = st.GetNotificationLog(ctx, 7, KindSleepReminder, "", 2)
	if len(entries) != 2 {
		t.Fatalf("limit: got %d", len(entries))
	}

	// Other kinds don't bleed in.
	entries, _ = st.GetNotificationLog(ctx, 7, KindBedtimeAlert, "", 10)
	if len(entries) != 0 {
		t.Fatalf("kind filter: %+v", entries)
	}
}

func TestPruneNotificationLog(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = st.AppendNotificationLog(ctx, LogEntry{
			UserID: 7, Kind: KindSleepReminder, SentAt: base.AddDate(0, 0, i), Success: true,
		})
	}

	n, err := st.PruneNotificationLog(ctx, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	left, _ := st.GetNotificationLog(ctx, 7, KindSleepReminder, "", 10)
	if len(left) != 3 {
		t.Fatalf("%d entries left, want 3", len(left))
	}
}

func TestPreferenceRoundtrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p, err := st.GetPreference(ctx, 7, KindWakeReminder)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatalf("absent pref should be nil, got %+v", p)
	}

	if err := st.SetPreference(ctx, 7, KindWakeReminder, false); err != nil {
		t.Fatal(err)
	}
	p, err = st.GetPreference(ctx, 7, KindWakeReminder)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Enabled || p.Kind != KindWakeReminder {
		t.Fatalf("got %+v", p)
	}

	if err := st.SetPreference(ctx, 7, KindWakeReminder, true); err != nil {
		t.Fatal(err)
	}
	p, _ = st.GetPreference(ctx, 7, KindWakeReminder)
	if p == nil || !p.Enabled {
		t.Fatalf("toggle back on failed: %+v", p)
	}
}
