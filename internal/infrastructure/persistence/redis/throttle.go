package redis

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATION THROTTLE
// ══════════════════════════════════════════════════════════════════════════════

// Throttle implements command.Throttle with SET NX + TTL. The first caller
// inside a window acquires the key; everyone else is deferred until it
// expires. Keys are per operation, so one learner's badge recalculation
// never throttles another's.
type Throttle struct {
	client *Client
}

// NewThrottle creates a new Throttle.
func NewThrottle(client *Client) *Throttle {
	return &Throttle{client: client}
}

// Acquire returns true if the caller won the window for the given key.
func (t *Throttle) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return t.client.SetNX(ctx, ThrottleKey(key), "1", ttl)
}
