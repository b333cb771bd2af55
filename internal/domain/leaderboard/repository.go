package leaderboard

import (
	"context"
	"time"
)

// Repository defines the interface for the leaderboard cache.
// Implemented over Redis sorted sets; the rebuild job is the only writer.
type Repository interface {
	// Rebuild replaces the ranking with a freshly computed one.
	Rebuild(ctx context.Context, entries []Entry, at time.Time) error

	// Top returns the first n entries in rank order.
	Top(ctx context.Context, n int) ([]Entry, error)

	// Page returns entries for a zero-based page of the given size.
	Page(ctx context.Context, page, size int) ([]Entry, error)

	// UserRank returns a learner's own entry, or shared.ErrUserNotRanked.
	UserRank(ctx context.Context, userID string) (*Entry, error)

	// Count returns the number of ranked learners.
	Count(ctx context.Context) (int, error)

	// RebuiltAt returns when the ranking was last rebuilt.
	RebuiltAt(ctx context.Context) (time.Time, error)
}
