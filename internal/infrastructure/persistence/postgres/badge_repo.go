package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/training-hub/training-hub/internal/domain/badge"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// HeldBadgeIDs returns the set of badge IDs the learner already holds.
func (r *BadgeRepository) HeldBadgeIDs(ctx context.Context, userID string) (map[string]bool, error) {
	query := `
		SELECT badge_id
		FROM user_badges
		WHERE user_id = $1
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query held badges: %w", err)
	}
	defer rows.Close()

	held := make(map[string]bool)
	for rows.Next() {
		var badgeID string
		if err := rows.Scan(&badgeID); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		held[badgeID] = true
	}

	return held, rows.Err()
}

// EarnedBadges returns the learner's earned badges, oldest first.
func (r *BadgeRepository) EarnedBadges(ctx context.Context, userID string) ([]badge.Earned, error) {
	query := `
		SELECT badge_id, user_id, earned_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned badges: %w", err)
	}
	defer rows.Close()

	var earned []badge.Earned
	for rows.Next() {
		var e badge.Earned
		if err := rows.Scan(&e.BadgeID, &e.UserID, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		earned = append(earned, e)
	}

	return earned, rows.Err()
}

// Award records a newly earned badge. The primary key absorbs duplicate
// awards, so a redelivered evaluation is a silent no-op.
func (r *BadgeRepository) Award(ctx context.Context, userID, badgeID string, earnedAt time.Time) error {
	query := `
		INSERT INTO user_badges (user_id, badge_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`

	if _, err := r.conn.Exec(ctx, query, userID, badgeID, earnedAt); err != nil {
		return fmt.Errorf("failed to award badge: %w", err)
	}
	return nil
}
