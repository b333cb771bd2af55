package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRepository implements stats.ActivityRepository for PostgreSQL.
// The activity_days table is the ground truth for both streak math and XP
// totals; every write is an insert-or-increment on the (user, day) row.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// RecordActivity increments the activity counters for the given day,
// creating the row when it is the day's first activity.
func (r *ActivityRepository) RecordActivity(ctx context.Context, userID string, day time.Time, xpDelta, modulesDelta int) error {
	query := `
		INSERT INTO activity_days (user_id, day, xp_gained, modules_completed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, day) DO UPDATE SET
			xp_gained = activity_days.xp_gained + EXCLUDED.xp_gained,
			modules_completed = activity_days.modules_completed + EXCLUDED.modules_completed
	`

	_, err := r.conn.Exec(ctx, query, userID, day, xpDelta, modulesDelta)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ActiveDays returns the calendar days with recorded activity since the
// given time, newest-last. A zero since loads the full history.
func (r *ActivityRepository) ActiveDays(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	query := `
		SELECT day
		FROM activity_days
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR day >= $2)
		ORDER BY day
	`

	var sinceArg interface{}
	if !since.IsZero() {
		sinceArg = since
	}

	rows, err := r.conn.Query(ctx, query, userID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query active days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan active day: %w", err)
		}
		days = append(days, day)
	}

	return days, rows.Err()
}

// TotalXP sums the XP gained over the full recorded history.
func (r *ActivityRepository) TotalXP(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(xp_gained), 0)
		FROM activity_days
		WHERE user_id = $1
	`

	var total int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum xp: %w", err)
	}
	return total, nil
}

// UsersActiveSince returns the IDs of learners with any recorded activity
// since the given time.
func (r *ActivityRepository) UsersActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT user_id
		FROM activity_days
		WHERE day >= $1
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, userID)
	}

	return users, rows.Err()
}
