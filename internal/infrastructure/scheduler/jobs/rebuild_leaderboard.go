// Package jobs contains the training hub's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/training-hub/training-hub/internal/domain/leaderboard"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// HistoryWindow bounds which learners are ranked: anyone with
	// activity inside the window appears.
	HistoryWindow time.Duration

	// MinRankChangeForEvent is the smallest movement worth an event.
	// Entering the top ten is always announced.
	MinRankChangeForEvent int

	// Timeout is the maximum duration for one rebuild.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		HistoryWindow:         180 * 24 * time.Hour,
		MinRankChangeForEvent: 3,
		Timeout:               2 * time.Minute,
	}
}

// RebuildLeaderboardJob recomputes the XP ranking from the activity log and
// swaps it into the cache. The leaderboard is a derived view: learner
// actions never write to it directly, this job is the only writer.
type RebuildLeaderboardJob struct {
	activityRepo    stats.ActivityRepository
	leaderboardRepo leaderboard.Repository
	eventPublisher  shared.EventPublisher
	logger          *slog.Logger
	config          RebuildLeaderboardConfig

	now func() time.Time
}

// NewRebuildLeaderboardJob creates a new rebuild job.
func NewRebuildLeaderboardJob(
	activityRepo stats.ActivityRepository,
	leaderboardRepo leaderboard.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardJob{
		activityRepo:    activityRepo,
		leaderboardRepo: leaderboardRepo,
		eventPublisher:  eventPublisher,
		logger:          logger,
		config:          config,
		now:             func() time.Time { return time.Now() },
	}
}

// WithClock overrides the job's clock. Used in tests.
func (j *RebuildLeaderboardJob) WithClock(now func() time.Time) *RebuildLeaderboardJob {
	j.now = now
	return j
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Recomputes the XP leaderboard from the activity log"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	started := j.now()

	userIDs, err := j.activityRepo.UsersActiveSince(ctx, started.Add(-j.config.HistoryWindow))
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	entries := make([]leaderboard.Entry, 0, len(userIDs))
	previous := make(map[string]leaderboard.Rank, len(userIDs))

	for _, userID := range userIDs {
		totalXP, err := j.activityRepo.TotalXP(ctx, userID)
		if err != nil {
			j.logger.Error("skipping user in rebuild", "user_id", userID, "error", err)
			continue
		}

		if old, err := j.leaderboardRepo.UserRank(ctx, userID); err == nil {
			previous[userID] = old.Rank
		} else if !errors.Is(err, shared.ErrUserNotRanked) {
			j.logger.Warn("previous rank unavailable", "user_id", userID, "error", err)
		}

		entries = append(entries, leaderboard.Entry{
			UserID:  userID,
			TotalXP: totalXP,
			Level:   stats.ComputeLevel(totalXP).Level,
		})
	}

	// XP descending; user ID breaks ties so reruns rank identically.
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].TotalXP != entries[b].TotalXP {
			return entries[a].TotalXP > entries[b].TotalXP
		}
		return entries[a].UserID < entries[b].UserID
	})

	for i := range entries {
		newRank := leaderboard.Rank(i + 1)
		entries[i].Rank = newRank
		if oldRank, ok := previous[entries[i].UserID]; ok {
			entries[i].Change = leaderboard.RankChange(oldRank - newRank)
		}
	}

	if err := j.leaderboardRepo.Rebuild(ctx, entries, started); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	announced := j.announceRankChanges(entries, previous)

	j.logger.Info("leaderboard rebuilt",
		"ranked_users", len(entries),
		"rank_events", announced,
		"duration", j.now().Sub(started),
	)

	return nil
}

// announceRankChanges publishes RankChanged events for significant moves.
func (j *RebuildLeaderboardJob) announceRankChanges(entries []leaderboard.Entry, previous map[string]leaderboard.Rank) int {
	if j.eventPublisher == nil {
		return 0
	}

	announced := 0
	for _, entry := range entries {
		oldRank, ok := previous[entry.UserID]
		if !ok || oldRank == entry.Rank {
			continue
		}

		enteredTop10 := entry.Rank.IsTop10() && !oldRank.IsTop10()
		if entry.Change.Abs() < j.config.MinRankChangeForEvent && !enteredTop10 {
			continue
		}

		event := shared.NewRankChangedEvent(entry.UserID, int(oldRank), int(entry.Rank))
		if err := j.eventPublisher.Publish(event); err != nil {
			j.logger.Error("publish rank change failed", "user_id", entry.UserID, "error", err)
			continue
		}
		announced++
	}

	return announced
}
