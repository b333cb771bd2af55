package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CELEBRATION LEDGER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CelebrationLedger implements celebration.Ledger on the celebrations table.
// The (user_id, celebration_key) primary key carries the exactly-once
// guarantee: FirstShowing is a single conflict-absorbing insert, and the
// row count tells the caller whether it won.
type CelebrationLedger struct {
	conn *Connection
}

// NewCelebrationLedger creates a new CelebrationLedger.
func NewCelebrationLedger(conn *Connection) *CelebrationLedger {
	return &CelebrationLedger{conn: conn}
}

// HasBeenShown implements celebration.Ledger.
func (l *CelebrationLedger) HasBeenShown(ctx context.Context, userID, key string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM celebrations
			WHERE user_id = $1 AND celebration_key = $2
		)
	`

	var shown bool
	if err := l.conn.QueryRow(ctx, query, userID, key).Scan(&shown); err != nil {
		return false, fmt.Errorf("failed to check celebration: %w", err)
	}
	return shown, nil
}

// MarkShown implements celebration.Ledger.
func (l *CelebrationLedger) MarkShown(ctx context.Context, userID, key string) error {
	query := `
		INSERT INTO celebrations (user_id, celebration_key, shown_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, celebration_key) DO NOTHING
	`

	if _, err := l.conn.Exec(ctx, query, userID, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark celebration shown: %w", err)
	}
	return nil
}

// FirstShowing implements celebration.Ledger. Exactly one concurrent caller
// inserts the row; everyone else conflicts and gets false.
func (l *CelebrationLedger) FirstShowing(ctx context.Context, userID, key string) (bool, error) {
	query := `
		INSERT INTO celebrations (user_id, celebration_key, shown_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, celebration_key) DO NOTHING
	`

	tag, err := l.conn.Exec(ctx, query, userID, key, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record celebration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LastCelebratedLevel returns the highest level the learner has been shown a
// level-up celebration for, or 0 when none has been shown. Level keys have
// the form "level:<n>".
func (l *CelebrationLedger) LastCelebratedLevel(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COALESCE(MAX(SPLIT_PART(celebration_key, ':', 2)::int), 0)
		FROM celebrations
		WHERE user_id = $1 AND celebration_key LIKE 'level:%'
	`

	var level int
	if err := l.conn.QueryRow(ctx, query, userID).Scan(&level); err != nil {
		return 0, fmt.Errorf("failed to read last celebrated level: %w", err)
	}
	return level, nil
}
