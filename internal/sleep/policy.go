// Package sleep holds the age-based sleep policy and the per-child condition
// evaluators. Everything here is pure: callers pass in the clock.
package sleep

import "time"

// Recommendation is the age-band sleep expectancy used by the evaluators.
// SleepDuration is the expected length of one sleep; the reminder staleness
// threshold is twice that.
type Recommendation struct {
	WakeWindow    time.Duration
	SleepDuration time.Duration
	AgeBand       string
}

type band struct {
	maxMonths int // inclusive upper bound; -1 means open-ended
	rec       Recommendation
}

// Bands are evaluated in ascending order, first match wins.
var bands = []band{
	{3, Recommendation{WakeWindow: 45 * time.Minute, SleepDuration: 120 * time.Minute, AgeBand: "newborn (0-3 months)"}},
	{6, Recommendation{WakeWindow: 90 * time.Minute, SleepDuration: 90 * time.Minute, AgeBand: "infant (3-6 months)"}},
	{12, Recommendation{WakeWindow: 120 * time.Minute, SleepDuration: 90 * time.Minute, AgeBand: "older infant (6-12 months)"}},
	{24, Recommendation{WakeWindow: 180 * time.Minute, SleepDuration: 120 * time.Minute, AgeBand: "toddler (12-24 months)"}},
	{-1, Recommendation{WakeWindow: 240 * time.Minute, SleepDuration: 90 * time.Minute, AgeBand: "young child (2+ years)"}},
}

// Recommend maps an age in months to its sleep expectancy. Total function:
// negative ages clamp to the first band.
func Recommend(ageMonths int) Recommendation {
	if ageMonths < 0 {
		ageMonths = 0
	}
	for _, b := range bands {
		if b.maxMonths < 0 || ageMonths <= b.maxMonths {
			return b.rec
		}
	}
	// Unreachable: the last band is open-ended.
	return bands[len(bands)-1].rec
}

// AgeMonths computes a child's age in whole calendar months, clamped to >= 0.
func AgeMonths(dateOfBirth, now time.Time) int {
	months := (now.Year()-dateOfBirth.Year())*12 + int(now.Month()) - int(dateOfBirth.Month())
	if months < 0 {
		return 0
	}
	return months
}
