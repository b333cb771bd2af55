package stats

import (
	"context"
	"time"
)

// ActivityDay is one day's aggregated learning activity for a learner.
// Rows are append-or-increment only; a day is never un-recorded.
type ActivityDay struct {
	// UserID identifies the learner.
	UserID string

	// Day is midnight of the local calendar day.
	Day time.Time

	// XPGained is the XP earned on that day.
	XPGained int

	// ModulesCompleted is the number of modules finished on that day.
	ModulesCompleted int
}

// ActivityRepository defines the interface for activity-day persistence.
// This interface is implemented by the infrastructure layer.
// The domain layer has no knowledge of the actual storage mechanism.
type ActivityRepository interface {
	// RecordActivity increments the activity counters for the given day,
	// creating the row when it is the day's first activity.
	RecordActivity(ctx context.Context, userID string, day time.Time, xpDelta, modulesDelta int) error

	// ActiveDays returns the calendar days with recorded activity since the
	// given time, newest-last. A zero since loads the full history; longest
	// streaks are defined over everything ever recorded, so callers that
	// feed streak math must not window the read.
	ActiveDays(ctx context.Context, userID string, since time.Time) ([]time.Time, error)

	// TotalXP sums the XP gained over the full recorded history.
	TotalXP(ctx context.Context, userID string) (int, error)

	// UsersActiveSince returns the IDs of learners with any recorded
	// activity since the given time. Used by the streak-risk job to limit
	// its scan to learners who can have a live streak at all.
	UsersActiveSince(ctx context.Context, since time.Time) ([]string, error)
}
