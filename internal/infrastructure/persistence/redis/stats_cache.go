package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/training-hub/training-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotFetcher fetches a learner's stats snapshot from its source.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, userID string) (*stats.Snapshot, error)
}

// StatsCache is a read-through cache in front of the stats service client.
// Snapshot reads happen on every dashboard load, while the underlying stats
// change a few times an hour at most; a short TTL keeps the service off the
// hot path without serving stale levels for long. Cache failures are
// logged and fall through to the source.
type StatsCache struct {
	client *Client
	source SnapshotFetcher
	logger *slog.Logger
}

// NewStatsCache creates a new StatsCache around the given source.
func NewStatsCache(client *Client, source SnapshotFetcher, logger *slog.Logger) *StatsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsCache{client: client, source: source, logger: logger}
}

// FetchSnapshot implements SnapshotFetcher.
func (c *StatsCache) FetchSnapshot(ctx context.Context, userID string) (*stats.Snapshot, error) {
	key := StatsKey(userID)

	var cached stats.Snapshot
	err := c.client.GetJSON(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("stats cache read failed",
			"user_id", userID,
			"error", err,
		)
	}

	snapshot, err := c.source.FetchSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := c.client.SetJSON(ctx, key, snapshot, TTLStatsSnapshot); err != nil {
		c.logger.Warn("stats cache write failed",
			"user_id", userID,
			"error", err,
		)
	}

	return snapshot, nil
}

// Invalidate drops a learner's cached snapshot, forcing the next read to
// hit the source. Called when a local write makes the cached value stale.
func (c *StatsCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Delete(ctx, StatsKey(userID))
}
