package sleep

import "time"

const (
	// stalenessFactor scales the expected sleep duration into the
	// "overdue for a log entry" threshold.
	stalenessFactor = 2

	// bedtimeWindow is how far ahead of a predicted bedtime the alert fires.
	// The interval is closed at both ends: exactly bedtimeWindow out still alerts.
	bedtimeWindow = 10 * time.Minute
)

// ReminderResult is the outcome of the staleness check for one child.
type ReminderResult struct {
	Needed bool
	// LastEnd is the end of the most recent closed session, nil when the
	// child has none. Kept for message composition.
	LastEnd *time.Time
}

// BedtimeResult is the outcome of the upcoming-bedtime check for one child.
type BedtimeResult struct {
	Needed           bool
	PredictedBedtime time.Time
	// MinutesUntil is whole minutes until the predicted bedtime, truncated
	// toward zero; 0 means "now". Only meaningful when Needed.
	MinutesUntil int
}

// NeedsReminder reports whether the child is overdue for a sleep-session log
// entry: no closed session ever, or the last one ended more than twice the
// recommended sleep duration ago.
func NeedsReminder(rec Recommendation, lastEnd *time.Time, now time.Time) ReminderResult {
	if lastEnd == nil {
		return ReminderResult{Needed: true}
	}
	threshold := stalenessFactor * rec.SleepDuration
	return ReminderResult{
		Needed:  now.Sub(*lastEnd) > threshold,
		LastEnd: lastEnd,
	}
}

// NeedsBedtimeAlert reports whether the child's predicted bedtime (last
// session end + wake window) falls within the alert window. A child with no
// closed session has no anchor and never triggers.
func NeedsBedtimeAlert(rec Recommendation, lastEnd *time.Time, now time.Time) BedtimeResult {
	if lastEnd == nil {
		return BedtimeResult{}
	}
	predicted := lastEnd.Add(rec.WakeWindow)
	until := predicted.Sub(now)
	if until < 0 || until > bedtimeWindow {
		return BedtimeResult{PredictedBedtime: predicted}
	}
	return BedtimeResult{
		Needed:           true,
		PredictedBedtime: predicted,
		MinutesUntil:     int(until / time.Minute),
	}
}
