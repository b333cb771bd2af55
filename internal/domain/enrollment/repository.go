package enrollment

import (
	"context"
)

// Repository defines the interface for enrollment persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// GetOrCreate returns the learner's enrollment for a campaign,
	// creating it on first access.
	GetOrCreate(ctx context.Context, userID, campaignID string) (*Enrollment, error)

	// Get returns an existing enrollment or shared.ErrEnrollmentNotFound.
	Get(ctx context.Context, userID, campaignID string) (*Enrollment, error)

	// Save persists the enrollment state.
	Save(ctx context.Context, e *Enrollment) error

	// ListByUser returns all of a learner's enrollments.
	ListByUser(ctx context.Context, userID string) ([]*Enrollment, error)

	// CountCompletedByUser counts the learner's completed campaigns.
	CountCompletedByUser(ctx context.Context, userID string) (int, error)
}
