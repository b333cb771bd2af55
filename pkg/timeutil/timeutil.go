// Package timeutil provides calendar-day utilities for streak and activity
// tracking. All streak semantics are defined over local calendar days with
// boundaries at local midnight, so every helper here works in the location
// carried by its argument rather than forcing UTC.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DateFormat is the canonical YYYY-MM-DD format for day keys.
const DateFormat = "2006-01-02"

// StartOfDay returns the start of the day (00:00:00) in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the end of the day (23:59:59.999999999) in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// DayKey returns the YYYY-MM-DD key for t in its own location.
func DayKey(t time.Time) string {
	return t.Format(DateFormat)
}

// SameDay checks whether a and b fall on the same calendar day,
// evaluated in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// IsYesterdayOf checks whether t is exactly one calendar day before ref.
func IsYesterdayOf(t, ref time.Time) bool {
	return SameDay(StartOfDay(ref).AddDate(0, 0, -1), t)
}

// DaysBetween returns the number of whole calendar days from a to b
// (positive when b is after a). Computed on day boundaries, so partial
// hours and DST shifts do not skew the count.
func DaysBetween(a, b time.Time) int {
	start := StartOfDay(a)
	end := StartOfDay(b.In(a.Location()))

	days := 0
	switch {
	case end.After(start):
		for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, 1) {
			days++
		}
	case start.After(end):
		for cur := end; cur.Before(start); cur = cur.AddDate(0, 0, 1) {
			days--
		}
	}
	return days
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in t's location.
func StartOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(t.AddDate(0, 0, -(weekday - 1)))
}

// WeekdayIndex returns the Monday-based index of t's weekday:
// Monday=0 ... Sunday=6.
func WeekdayIndex(t time.Time) int {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return weekday - 1
}

// Date creates midnight of the given date in the given location.
func Date(year, month, day int, loc *time.Location) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}
