// Package celebration decides whether an achievement moment (level-up,
// campaign completion, streak milestone) has already been surfaced to the
// learner. Live-subscription deliveries can repeat, so every celebration is
// identified by a deterministic key and checked against a ledger before it
// is shown; the ledger is the only mutable state in the celebration path.
package celebration

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

// LevelUpKey identifies the celebration for reaching a specific level.
// Reaching level N is celebrated once per learner, ever.
func LevelUpKey(level int) string {
	return fmt.Sprintf("level:%d", level)
}

// CampaignKey identifies the celebration for one campaign completion
// instance. The completion timestamp is part of the identity so a
// re-authored campaign completed again would celebrate again, while a
// redelivered snapshot of the same completion would not.
func CampaignKey(campaignID string, completedAt time.Time) string {
	return fmt.Sprintf("campaign:%s:%d", campaignID, completedAt.Unix())
}

// StreakMilestoneKey identifies the celebration for hitting a streak
// milestone on a given local calendar day.
func StreakMilestoneKey(days int, localDate string) string {
	return fmt.Sprintf("streak:%d:%s", days, localDate)
}

// StreakMilestones are the streak lengths worth celebrating.
var StreakMilestones = []int{3, 7, 14, 30, 60, 100}

// IsStreakMilestone checks whether a streak length is a milestone.
func IsStreakMilestone(days int) bool {
	for _, m := range StreakMilestones {
		if days == m {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger records which celebration keys have been shown to which learner.
// Implementations must make FirstShowing atomic: under concurrent calls for
// the same (userID, key), exactly one caller sees true.
type Ledger interface {
	// HasBeenShown checks whether the key was already shown to the user.
	HasBeenShown(ctx context.Context, userID, key string) (bool, error)

	// MarkShown records that the key has now been shown. Idempotent.
	MarkShown(ctx context.Context, userID, key string) error

	// FirstShowing atomically checks and marks: returns true exactly once
	// per (userID, key) across all callers and redeliveries.
	FirstShowing(ctx context.Context, userID, key string) (bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// MemoryLedger is a process-local Ledger. Suitable for tests and for
// single-instance deployments without Redis.
type MemoryLedger struct {
	mu    sync.Mutex
	shown map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{shown: make(map[string]struct{})}
}

func (l *MemoryLedger) entry(userID, key string) string {
	return userID + "|" + key
}

// HasBeenShown implements Ledger.
func (l *MemoryLedger) HasBeenShown(_ context.Context, userID, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.shown[l.entry(userID, key)]
	return ok, nil
}

// MarkShown implements Ledger.
func (l *MemoryLedger) MarkShown(_ context.Context, userID, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shown[l.entry(userID, key)] = struct{}{}
	return nil
}

// FirstShowing implements Ledger.
func (l *MemoryLedger) FirstShowing(_ context.Context, userID, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(userID, key)
	if _, ok := l.shown[e]; ok {
		return false, nil
	}
	l.shown[e] = struct{}{}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// CachedLedger layers a fast cache ledger over an authoritative one. The
// cache answers repeat lookups without touching the authority; the authority
// alone decides FirstShowing, so cache loss or expiry can never turn an old
// celebration into a new one. Cache writes are best-effort.
type CachedLedger struct {
	authority Ledger
	cache     Ledger
}

// NewCachedLedger creates a CachedLedger. Both ledgers are required.
func NewCachedLedger(authority, cache Ledger) *CachedLedger {
	return &CachedLedger{authority: authority, cache: cache}
}

// HasBeenShown implements Ledger.
func (l *CachedLedger) HasBeenShown(ctx context.Context, userID, key string) (bool, error) {
	if shown, err := l.cache.HasBeenShown(ctx, userID, key); err == nil && shown {
		return true, nil
	}

	shown, err := l.authority.HasBeenShown(ctx, userID, key)
	if err != nil {
		return false, err
	}
	if shown {
		_ = l.cache.MarkShown(ctx, userID, key)
	}
	return shown, nil
}

// MarkShown implements Ledger.
func (l *CachedLedger) MarkShown(ctx context.Context, userID, key string) error {
	if err := l.authority.MarkShown(ctx, userID, key); err != nil {
		return err
	}
	_ = l.cache.MarkShown(ctx, userID, key)
	return nil
}

// FirstShowing implements Ledger. A cache hit short-circuits to false; the
// miss path defers to the authority's atomic check-and-mark.
func (l *CachedLedger) FirstShowing(ctx context.Context, userID, key string) (bool, error) {
	if shown, err := l.cache.HasBeenShown(ctx, userID, key); err == nil && shown {
		return false, nil
	}

	first, err := l.authority.FirstShowing(ctx, userID, key)
	if err != nil {
		return false, err
	}
	_ = l.cache.MarkShown(ctx, userID, key)
	return first, nil
}
