package reminder

import (
	"strings"
	"testing"
	"time"

	"sleepbot/internal/sleep"
	"sleepbot/internal/storage"
)

func TestComposeReminderSingleChild(t *testing.T) {
	end := passNow.Add(-3 * time.Hour)
	got := composeReminder([]reminderItem{{
		child:  storage.Child{Name: "Mia"},
		result: sleep.ReminderResult{Needed: true, LastEnd: &end},
	}}, passNow)

	if !strings.Contains(got, "log a sleep session for Mia") {
		t.Errorf("missing child name: %q", got)
	}
	if !strings.Contains(got, "Last session was 3 hours ago.") {
		t.Errorf("missing elapsed hours: %q", got)
	}
}

func TestComposeReminderNoHistory(t *testing.T) {
	got := composeReminder([]reminderItem{{
		child:  storage.Child{Name: "Mia"},
		result: sleep.ReminderResult{Needed: true},
	}}, passNow)

	if !strings.Contains(got, "No sleep sessions recorded yet.") {
		t.Errorf("missing no-history wording: %q", got)
	}
}

func TestComposeReminderCombined(t *testing.T) {
	got := composeReminder([]reminderItem{
		{child: storage.Child{Name: "Mia"}},
		{child: storage.Child{Name: "Leo"}},
	}, passNow)

	if !strings.Contains(got, "Mia, Leo") {
		t.Errorf("combined message should list both names: %q", got)
	}
}

func TestComposeBedtime(t *testing.T) {
	now := composeBedtime([]bedtimeItem{{
		child:  storage.Child{Name: "Mia"},
		result: sleep.BedtimeResult{Needed: true, MinutesUntil: 0},
	}})
	if !strings.Contains(now, "Mia should go to bed now.") {
		t.Errorf("zero-minute wording wrong: %q", now)
	}

	later := composeBedtime([]bedtimeItem{{
		child:  storage.Child{Name: "Mia"},
		result: sleep.BedtimeResult{Needed: true, MinutesUntil: 7},
	}})
	if !strings.Contains(later, "in 7 minutes") {
		t.Errorf("countdown wording wrong: %q", later)
	}

	multi := composeBedtime([]bedtimeItem{
		{child: storage.Child{Name: "Mia"}, result: sleep.BedtimeResult{Needed: true, MinutesUntil: 3}},
		{child: storage.Child{Name: "Leo"}, result: sleep.BedtimeResult{Needed: true, MinutesUntil: 0}},
	})
	if !strings.Contains(multi, "•") || !strings.Contains(multi, "Leo") {
		t.Errorf("multi-child alert should bullet each child: %q", multi)
	}
}
