// Package stats contains the learner statistics computations: streak
// tracking and XP/level progression. These are the client-side fallback
// formulas; the authoritative stats service computes the same numbers with
// the same rules, and the two must agree bit-for-bit.
// This is core business logic - no external dependencies.
package stats

import (
	"sort"
	"time"

	"github.com/training-hub/training-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY DAY SET
// ══════════════════════════════════════════════════════════════════════════════

// DaySet is a set of local calendar days on which the learner had at least
// one completion event. Keys are YYYY-MM-DD in the hub's local zone.
type DaySet map[string]struct{}

// NewDaySet builds a DaySet from activity timestamps. Each timestamp is
// bucketed into its own location's calendar day.
func NewDaySet(activity ...time.Time) DaySet {
	set := make(DaySet, len(activity))
	for _, t := range activity {
		set.Add(t)
	}
	return set
}

// Add records activity on t's calendar day.
func (d DaySet) Add(t time.Time) {
	d[timeutil.DayKey(t)] = struct{}{}
}

// Contains checks whether t's calendar day has recorded activity.
func (d DaySet) Contains(t time.Time) bool {
	_, ok := d[timeutil.DayKey(t)]
	return ok
}

// Days returns the set's days sorted ascending. The YYYY-MM-DD key format
// makes lexicographic order equal chronological order.
func (d DaySet) Days() []string {
	days := make([]string, 0, len(d))
	for day := range d {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK COMPUTATION
// ══════════════════════════════════════════════════════════════════════════════

// StreakRiskCutoffHour is the local hour after which an unextended streak is
// flagged at risk: from 18:00 local time onward, a learner with an active
// streak and no activity today sees the warning.
const StreakRiskCutoffHour = 18

// Streak is the derived streak state for one learner.
type Streak struct {
	// Current is the number of consecutive active days ending today
	// (or yesterday, when today has no activity yet).
	Current int `json:"current"`

	// Longest is the longest run ever observed in the activity history.
	Longest int `json:"longest"`

	// Days is the activity bitmap for the most recent 7 calendar days,
	// Monday-indexed: Days[0] is Monday's slot. Display only.
	Days [7]bool `json:"days"`

	// CompletedToday reports activity on the current calendar day.
	CompletedToday bool `json:"completed_today"`

	// AtRisk is true when an active streak has no activity today and the
	// local time is past the risk cutoff.
	AtRisk bool `json:"at_risk"`
}

// ComputeStreak derives the full streak state from the activity-day set and
// a reference "today". The computation is a pure function of (days, today):
// any number of views can run it concurrently on the same snapshot and get
// identical output, and redelivery of a snapshot is a no-op by construction.
func ComputeStreak(days DaySet, today time.Time) Streak {
	var s Streak
	if len(days) == 0 {
		return s
	}

	s.CompletedToday = days.Contains(today)

	// Current streak: walk backward day by day. When today is inactive the
	// streak is still alive until midnight, so counting starts yesterday.
	cursor := timeutil.StartOfDay(today)
	if !s.CompletedToday {
		cursor = cursor.AddDate(0, 0, -1)
	}
	for days.Contains(cursor) {
		s.Current++
		cursor = cursor.AddDate(0, 0, -1)
	}

	s.Longest = longestRun(days)
	if s.Current > s.Longest {
		s.Longest = s.Current
	}

	// 7-day bitmap: each of the 7 days ending today occupies the slot of
	// its own weekday, so the indices cover Monday..Sunday exactly once.
	for i := 0; i < 7; i++ {
		day := timeutil.StartOfDay(today).AddDate(0, 0, -i)
		s.Days[timeutil.WeekdayIndex(day)] = days.Contains(day)
	}

	s.AtRisk = s.Current > 0 && !s.CompletedToday && today.Hour() >= StreakRiskCutoffHour

	return s
}

// longestRun finds the longest consecutive-day run in the history.
func longestRun(days DaySet) int {
	sorted := days.Days()
	if len(sorted) == 0 {
		return 0
	}

	longest, run := 1, 1
	prev, _ := time.Parse(timeutil.DateFormat, sorted[0])
	for _, key := range sorted[1:] {
		day, err := time.Parse(timeutil.DateFormat, key)
		if err != nil {
			continue
		}
		if day.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = day
	}
	return longest
}
