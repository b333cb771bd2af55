package query

import (
	"context"
	"errors"
	"time"

	"github.com/training-hub/training-hub/internal/domain/leaderboard"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns a page of the XP ranking plus the requesting learner's own row,
// which may fall outside the page. Reads only the cached ranking; the
// rebuild job is the sole writer.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// UserID is the requesting learner, empty for anonymous reads.
	UserID string

	// Limit is the page size (default 20, max 100).
	Limit int

	// Page is the zero-based page number.
	Page int
}

// Validate validates and normalizes the query.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("get_leaderboard: limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Page < 0 {
		return errors.New("get_leaderboard: page cannot be negative")
	}
	return nil
}

// GetLeaderboardResult contains one page of the ranking.
type GetLeaderboardResult struct {
	// Entries are the ranked rows for the requested page.
	Entries []leaderboard.Entry `json:"entries"`

	// Self is the requesting learner's own row, nil when unranked.
	Self *leaderboard.Entry `json:"self,omitempty"`

	// TotalCount is the number of ranked learners.
	TotalCount int `json:"total_count"`

	// Page is the zero-based page number.
	Page int `json:"page"`

	// PageSize is the page size.
	PageSize int `json:"page_size"`

	// HasMore reports whether more pages follow.
	HasMore bool `json:"has_more"`

	// RebuiltAt is when the ranking was last recomputed.
	RebuiltAt time.Time `json:"rebuilt_at"`
}

// GetLeaderboardHandler handles the GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	leaderboardRepo leaderboard.Repository
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(leaderboardRepo leaderboard.Repository) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{leaderboardRepo: leaderboardRepo}
}

// Handle executes the get leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	entries, err := h.leaderboardRepo.Page(ctx, q.Page, q.Limit)
	if err != nil {
		return nil, err
	}

	total, err := h.leaderboardRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	// An empty board that was never rebuilt is not "nobody ranked", it is
	// "ranking not computed yet". Callers render a loading state for it.
	if total == 0 {
		if at, err := h.leaderboardRepo.RebuiltAt(ctx); err != nil || at.IsZero() {
			return nil, shared.ErrSnapshotUnavailable
		}
	}

	result := &GetLeaderboardResult{
		Entries:    entries,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.Limit,
		HasMore:    (q.Page+1)*q.Limit < total,
	}

	if at, err := h.leaderboardRepo.RebuiltAt(ctx); err == nil {
		result.RebuiltAt = at
	}

	if q.UserID != "" {
		self, err := h.leaderboardRepo.UserRank(ctx, q.UserID)
		switch {
		case err == nil:
			result.Self = self
		case errors.Is(err, shared.ErrNotFound):
			// Unranked learners simply have no self row.
		default:
			return nil, err
		}
	}

	return result, nil
}
