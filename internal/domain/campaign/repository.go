package campaign

import (
	"context"
)

// Repository defines the interface for campaign reads.
// Campaigns are point reads, never streamed: content changes only on
// publish, so subscriptions would buy nothing.
type Repository interface {
	// GetByID returns a campaign by slug.
	GetByID(ctx context.Context, id string) (*Campaign, error)

	// List returns all published campaigns ordered by creation time.
	List(ctx context.Context) ([]*Campaign, error)

	// Save persists a campaign (publish or republish). Used by the
	// migration seeder and publisher tooling, not by the engine.
	Save(ctx context.Context, c *Campaign) error
}
