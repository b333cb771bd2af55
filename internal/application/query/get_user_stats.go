package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
	"github.com/training-hub/training-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Returns the learner's gamification snapshot. The external stats service is
// authoritative; when it is down or slow the same numbers are recomputed
// locally from the activity history with the canonical formulas, and the
// snapshot is flagged as non-authoritative.
// ══════════════════════════════════════════════════════════════════════════════

// StatsProvider fetches the authoritative snapshot from the stats service.
type StatsProvider interface {
	// FetchSnapshot returns the service-computed snapshot for a learner.
	FetchSnapshot(ctx context.Context, userID string) (*stats.Snapshot, error)
}

// CelebratedLevelReader reads the highest level already celebrated for a
// learner. Backed by the celebration ledger.
type CelebratedLevelReader interface {
	LastCelebratedLevel(ctx context.Context, userID string) (int, error)
}

// GetUserStatsQuery contains the query parameters.
type GetUserStatsQuery struct {
	// UserID is the learner's ID.
	UserID string
}

// Validate validates the query.
func (q GetUserStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_user_stats: user_id is required")
	}
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return fmt.Errorf("get_user_stats: %w", err)
	}
	return nil
}

// GetUserStatsResult contains the snapshot plus sourcing metadata.
type GetUserStatsResult struct {
	// Snapshot is the full derived statistics state.
	Snapshot stats.Snapshot `json:"snapshot"`

	// FallbackReason is set when the snapshot is non-authoritative,
	// carrying the stats-service failure for diagnostics.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// GetUserStatsHandler handles the GetUserStatsQuery.
type GetUserStatsHandler struct {
	provider     StatsProvider
	activityRepo stats.ActivityRepository
	celebrated   CelebratedLevelReader
	log          *logger.Logger

	now func() time.Time
}

// NewGetUserStatsHandler creates a new GetUserStatsHandler. The provider may
// be nil, in which case every read uses the local fallback.
func NewGetUserStatsHandler(
	provider StatsProvider,
	activityRepo stats.ActivityRepository,
	celebrated CelebratedLevelReader,
	log *logger.Logger,
) *GetUserStatsHandler {
	return &GetUserStatsHandler{
		provider:     provider,
		activityRepo: activityRepo,
		celebrated:   celebrated,
		log:          log,
		now:          func() time.Time { return time.Now() },
	}
}

// WithClock overrides the handler's clock. Used in tests; the clock's
// location defines the local calendar days the streak is computed over.
func (h *GetUserStatsHandler) WithClock(now func() time.Time) *GetUserStatsHandler {
	h.now = now
	return h
}

// Handle executes the get user stats query.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStatsQuery) (*GetUserStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.provider != nil {
		snapshot, err := h.provider.FetchSnapshot(ctx, q.UserID)
		if err == nil && snapshot.IsValid() {
			snapshot.Authoritative = true
			return &GetUserStatsResult{Snapshot: *snapshot}, nil
		}

		if err == nil {
			err = errors.New("stats service returned an invalid snapshot")
		}
		h.log.Warn("stats service unavailable, using local fallback",
			logger.String("user_id", q.UserID),
			logger.Err(err),
		)

		result, ferr := h.fallback(ctx, q.UserID)
		if ferr != nil {
			return nil, ferr
		}
		result.FallbackReason = err.Error()
		return result, nil
	}

	return h.fallback(ctx, q.UserID)
}

// fallback recomputes the snapshot from the local activity history.
func (h *GetUserStatsHandler) fallback(ctx context.Context, userID string) (*GetUserStatsResult, error) {
	now := h.now()

	totalXP, err := h.activityRepo.TotalXP(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Longest streak is defined over everything ever recorded; windowing
	// the read would shrink it as old runs age out.
	days, err := h.activityRepo.ActiveDays(ctx, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	daySet := stats.NewDaySet(days...)

	lastCelebrated := 0
	if h.celebrated != nil {
		if lvl, err := h.celebrated.LastCelebratedLevel(ctx, userID); err == nil {
			lastCelebrated = lvl
		}
	}

	snapshot := stats.ComputeSnapshot(userID, totalXP, daySet, now, lastCelebrated)
	return &GetUserStatsResult{Snapshot: snapshot}, nil
}
