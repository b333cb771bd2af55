package badge

import (
	"context"
	"time"
)

// Repository defines the interface for badge persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// HeldBadgeIDs returns the set of badge IDs the learner already holds.
	HeldBadgeIDs(ctx context.Context, userID string) (map[string]bool, error)

	// EarnedBadges returns the learner's earned badges, oldest first.
	EarnedBadges(ctx context.Context, userID string) ([]Earned, error)

	// Award records a newly earned badge. Awarding an already-held badge
	// must be a silent no-op so redelivered events cannot duplicate rows.
	Award(ctx context.Context, userID, badgeID string, earnedAt time.Time) error
}
