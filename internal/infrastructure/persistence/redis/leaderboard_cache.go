package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/training-hub/training-hub/internal/domain/leaderboard"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard keys.
const (
	// keyLeaderboardXP is the sorted set of userID -> total XP.
	keyLeaderboardXP = PrefixLeaderboard + "xp"

	// keyLeaderboardInfo is the hash of userID -> entry JSON.
	keyLeaderboardInfo = PrefixLeaderboard + "info"

	// keyLeaderboardRebuiltAt records the last rebuild time.
	keyLeaderboardRebuiltAt = PrefixLeaderboard + "rebuilt_at"
)

// ErrInvalidPageParams is returned for non-positive page sizes or counts.
var ErrInvalidPageParams = errors.New("leaderboard_cache: invalid page parameters")

// LeaderboardCache implements leaderboard.Repository on Redis sorted sets.
//
// Layout:
//   - Sorted set "leaderboard:xp" maps userID to total XP, so rank lookups
//     are O(log N) and range reads are O(log N + M).
//   - Hash "leaderboard:info" carries the display fields per user.
//   - String "leaderboard:rebuilt_at" is the rebuild timestamp.
//
// The scheduler's rebuild job is the only writer; reads never mutate.
type LeaderboardCache struct {
	client *Client
}

// NewLeaderboardCache creates a new LeaderboardCache.
func NewLeaderboardCache(client *Client) *LeaderboardCache {
	return &LeaderboardCache{client: client}
}

// Rebuild replaces the ranking atomically with a freshly computed one.
func (l *LeaderboardCache) Rebuild(ctx context.Context, entries []leaderboard.Entry, at time.Time) error {
	pipe := l.client.Redis().TxPipeline()

	pipe.Del(ctx, keyLeaderboardXP, keyLeaderboardInfo)

	if len(entries) > 0 {
		zMembers := make([]redis.Z, 0, len(entries))
		hashData := make(map[string]interface{}, len(entries))

		for _, entry := range entries {
			if entry.UserID == "" {
				continue
			}
			zMembers = append(zMembers, redis.Z{
				Score:  float64(entry.TotalXP),
				Member: entry.UserID,
			})
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			hashData[entry.UserID] = data
		}

		if len(zMembers) > 0 {
			pipe.ZAdd(ctx, keyLeaderboardXP, zMembers...)
			pipe.HSet(ctx, keyLeaderboardInfo, hashData)
		}
	}

	pipe.Set(ctx, keyLeaderboardRebuiltAt, at.UTC().Format(time.RFC3339Nano), 0)

	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the first n entries in rank order.
func (l *LeaderboardCache) Top(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidPageParams
	}
	return l.rangeByRank(ctx, 0, int64(n-1))
}

// Page returns entries for a zero-based page of the given size.
func (l *LeaderboardCache) Page(ctx context.Context, page, size int) ([]leaderboard.Entry, error) {
	if page < 0 || size <= 0 {
		return nil, ErrInvalidPageParams
	}
	start := int64(page) * int64(size)
	return l.rangeByRank(ctx, start, start+int64(size)-1)
}

// UserRank returns a learner's own entry, or shared.ErrUserNotRanked.
func (l *LeaderboardCache) UserRank(ctx context.Context, userID string) (*leaderboard.Entry, error) {
	if userID == "" {
		return nil, shared.ErrUserNotRanked
	}

	rank, err := l.client.Redis().ZRevRank(ctx, keyLeaderboardXP, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrUserNotRanked
		}
		return nil, err
	}

	entry, err := l.hydrate(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry.Rank = leaderboard.Rank(rank + 1)

	return entry, nil
}

// Count returns the number of ranked learners.
func (l *LeaderboardCache) Count(ctx context.Context) (int, error) {
	count, err := l.client.Redis().ZCard(ctx, keyLeaderboardXP).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// RebuiltAt returns when the ranking was last rebuilt, or the zero time
// when no rebuild has happened yet.
func (l *LeaderboardCache) RebuiltAt(ctx context.Context) (time.Time, error) {
	raw, err := l.client.Redis().Get(ctx, keyLeaderboardRebuiltAt).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, raw)
}

// rangeByRank reads a rank window and hydrates the entries, assigning
// 1-based ranks from the window offset.
func (l *LeaderboardCache) rangeByRank(ctx context.Context, start, end int64) ([]leaderboard.Entry, error) {
	userIDs, err := l.client.Redis().ZRevRange(ctx, keyLeaderboardXP, start, end).Result()
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return []leaderboard.Entry{}, nil
	}

	raw, err := l.client.Redis().HMGet(ctx, keyLeaderboardInfo, userIDs...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, 0, len(userIDs))
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var entry leaderboard.Entry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			continue
		}
		entry.Rank = leaderboard.Rank(start + int64(i) + 1)
		entries = append(entries, entry)
	}

	return entries, nil
}

// hydrate reads one entry from the info hash.
func (l *LeaderboardCache) hydrate(ctx context.Context, userID string) (*leaderboard.Entry, error) {
	data, err := l.client.Redis().HGet(ctx, keyLeaderboardInfo, userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrUserNotRanked
		}
		return nil, err
	}

	var entry leaderboard.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return &entry, nil
}
