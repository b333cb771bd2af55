package redis

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// CELEBRATION LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// CelebrationLedger implements celebration.Ledger on a per-learner Redis set.
// SADD reports whether the member was new, which gives FirstShowing its
// exactly-once semantics across instances without a lock.
type CelebrationLedger struct {
	client *Client
}

// NewCelebrationLedger creates a new CelebrationLedger.
func NewCelebrationLedger(client *Client) *CelebrationLedger {
	return &CelebrationLedger{client: client}
}

// HasBeenShown implements celebration.Ledger.
func (l *CelebrationLedger) HasBeenShown(ctx context.Context, userID, key string) (bool, error) {
	return l.client.Redis().SIsMember(ctx, CelebrationKey(userID), key).Result()
}

// MarkShown implements celebration.Ledger.
func (l *CelebrationLedger) MarkShown(ctx context.Context, userID, key string) error {
	setKey := CelebrationKey(userID)
	if err := l.client.Redis().SAdd(ctx, setKey, key).Err(); err != nil {
		return err
	}
	return l.client.Redis().Expire(ctx, setKey, TTLCelebrationLedger).Err()
}

// FirstShowing implements celebration.Ledger. The SADD return value is the
// atomic check-and-mark: 1 for the first caller, 0 for everyone after.
func (l *CelebrationLedger) FirstShowing(ctx context.Context, userID, key string) (bool, error) {
	setKey := CelebrationKey(userID)
	added, err := l.client.Redis().SAdd(ctx, setKey, key).Result()
	if err != nil {
		return false, err
	}
	if err := l.client.Redis().Expire(ctx, setKey, TTLCelebrationLedger).Err(); err != nil {
		return false, err
	}
	return added == 1, nil
}
