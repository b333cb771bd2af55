package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CAMPAIGN REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CampaignRepository implements campaign.Repository for PostgreSQL.
type CampaignRepository struct {
	conn *Connection
}

// NewCampaignRepository creates a new CampaignRepository.
func NewCampaignRepository(conn *Connection) *CampaignRepository {
	return &CampaignRepository{conn: conn}
}

// GetByID returns a campaign by slug.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*campaign.Campaign, error) {
	query := `
		SELECT id, title, items, end_date, total_items, estimated_minutes, total_xp,
		       created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)

	var c campaign.Campaign
	var itemsJSON []byte
	err := row.Scan(
		&c.ID,
		&c.Title,
		&itemsJSON,
		&c.EndDate,
		&c.Computed.TotalItems,
		&c.Computed.EstimatedMinutes,
		&c.Computed.TotalXP,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign items: %w", err)
	}

	return &c, nil
}

// List returns all published campaigns ordered by creation time.
func (r *CampaignRepository) List(ctx context.Context) ([]*campaign.Campaign, error) {
	query := `
		SELECT id, title, items, end_date, total_items, estimated_minutes, total_xp,
		       created_at, updated_at
		FROM campaigns
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*campaign.Campaign
	for rows.Next() {
		var c campaign.Campaign
		var itemsJSON []byte
		err := rows.Scan(
			&c.ID,
			&c.Title,
			&itemsJSON,
			&c.EndDate,
			&c.Computed.TotalItems,
			&c.Computed.EstimatedMinutes,
			&c.Computed.TotalXP,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal campaign items: %w", err)
		}
		campaigns = append(campaigns, &c)
	}

	return campaigns, rows.Err()
}

// Save upserts a campaign (publish or republish).
func (r *CampaignRepository) Save(ctx context.Context, c *campaign.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, title, items, end_date, total_items, estimated_minutes, total_xp,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			items = EXCLUDED.items,
			end_date = EXCLUDED.end_date,
			total_items = EXCLUDED.total_items,
			estimated_minutes = EXCLUDED.estimated_minutes,
			total_xp = EXCLUDED.total_xp,
			updated_at = EXCLUDED.updated_at
	`

	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign items: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		c.ID,
		c.Title,
		itemsJSON,
		c.EndDate,
		c.Computed.TotalItems,
		c.Computed.EstimatedMinutes,
		c.Computed.TotalXP,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}
