package reminder

import (
	"fmt"
	"strings"
	"time"

	"sleepbot/internal/sleep"
	"sleepbot/internal/storage"
)

// reminderItem pairs a child with its staleness result for message composition.
type reminderItem struct {
	child  storage.Child
	result sleep.ReminderResult
}

type bedtimeItem struct {
	child  storage.Child
	result sleep.BedtimeResult
}

// composeReminder builds the sleep-log reminder text. A user with several
// overdue children gets one combined message.
func composeReminder(items []reminderItem, now time.Time) string {
	if len(items) == 1 {
		it := items[0]
		var b strings.Builder
		fmt.Fprintf(&b, "⏰ Hi! It's time to log a sleep session for %s.\n\n", it.child.Name)
		if it.result.LastEnd != nil {
			hours := int(now.Sub(*it.result.LastEnd).Hours())
			fmt.Fprintf(&b, "Last session was %d hours ago. ", hours)
		} else {
			b.WriteString("No sleep sessions recorded yet. ")
		}
		b.WriteString("Don't forget to track your baby's sleep patterns! \U0001f4a4")
		return b.String()
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.child.Name)
	}
	return fmt.Sprintf("⏰ Hi! It's time to log sleep sessions for %s.\n\nDon't forget to track your babies' sleep patterns! \U0001f4a4",
		strings.Join(names, ", "))
}

// composeBedtime builds the upcoming-bedtime alert text.
func composeBedtime(items []bedtimeItem) string {
	if len(items) == 1 {
		return "\U0001f634 " + bedtimeLine(items[0])
	}

	var b strings.Builder
	b.WriteString("\U0001f634 Bedtime is coming up!\n")
	for _, it := range items {
		b.WriteString("\n• ")
		b.WriteString(bedtimeLine(it))
	}
	return b.String()
}

func bedtimeLine(it bedtimeItem) string {
	if it.result.MinutesUntil == 0 {
		return fmt.Sprintf("%s should go to bed now.", it.child.Name)
	}
	return fmt.Sprintf("%s should go to bed in %d minutes.", it.child.Name, it.result.MinutesUntil)
}
