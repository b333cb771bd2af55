// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/progress"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CAMPAIGN PROGRESS QUERY
// Derives the full display state of one enrollment: per-module ratios,
// campaign percent, tri-state status and the continue-button target. Always
// recomputed from the module map; stored counters are treated as hints.
// ══════════════════════════════════════════════════════════════════════════════

// GetCampaignProgressQuery contains the query parameters.
type GetCampaignProgressQuery struct {
	// UserID is the learner's ID.
	UserID string

	// CampaignID is the campaign slug.
	CampaignID string
}

// Validate validates the query.
func (q GetCampaignProgressQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_campaign_progress: user_id is required")
	}
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return fmt.Errorf("get_campaign_progress: %w", err)
	}
	if q.CampaignID == "" {
		return errors.New("get_campaign_progress: campaign_id is required")
	}
	if _, err := shared.NewCampaignID(q.CampaignID); err != nil {
		return fmt.Errorf("get_campaign_progress: %w", err)
	}
	return nil
}

// ModuleProgressDTO is the per-module display state.
type ModuleProgressDTO struct {
	// ModuleID identifies the module.
	ModuleID string `json:"module_id"`

	// Index is the module's position within the campaign.
	Index int `json:"index"`

	// Ratio is the completion ratio in [0,1].
	Ratio float64 `json:"ratio"`

	// VideoFinished reports the video-watched flag.
	VideoFinished bool `json:"video_finished"`

	// QuestionsAnswered is the recorded answer count (uncapped).
	QuestionsAnswered int `json:"questions_answered"`

	// QuestionTarget is the target the ratio is computed against.
	QuestionTarget int `json:"question_target"`

	// Completed reports the explicit completion flag.
	Completed bool `json:"completed"`
}

// GetCampaignProgressResult contains the derived campaign progress.
type GetCampaignProgressResult struct {
	// CampaignID is the campaign slug.
	CampaignID string `json:"campaign_id"`

	// Title is the campaign display title.
	Title string `json:"title"`

	// Status is the derived tri-state status.
	Status progress.Status `json:"status"`

	// ProgressPercent is the rounded completion percentage.
	ProgressPercent int `json:"progress_percent"`

	// CompletedModules is the map-derived completed count.
	CompletedModules int `json:"completed_modules"`

	// TotalModules is the campaign's module count.
	TotalModules int `json:"total_modules"`

	// NextModuleIndex is where the continue button lands.
	NextModuleIndex int `json:"next_module_index"`

	// Modules is the per-module display state in campaign order.
	Modules []ModuleProgressDTO `json:"modules"`

	// CompletedAt is the completion instant, when completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// GeneratedAt is when the result was derived.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetCampaignProgressHandler handles the GetCampaignProgressQuery.
type GetCampaignProgressHandler struct {
	enrollmentRepo enrollment.Repository
	campaignRepo   campaign.Repository
	aggregator     *progress.Aggregator
	log            *logger.Logger

	now func() time.Time
}

// NewGetCampaignProgressHandler creates a new GetCampaignProgressHandler.
func NewGetCampaignProgressHandler(
	enrollmentRepo enrollment.Repository,
	campaignRepo campaign.Repository,
	log *logger.Logger,
) *GetCampaignProgressHandler {
	return &GetCampaignProgressHandler{
		enrollmentRepo: enrollmentRepo,
		campaignRepo:   campaignRepo,
		aggregator:     progress.NewAggregator(),
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the get campaign progress query.
func (h *GetCampaignProgressHandler) Handle(
	ctx context.Context,
	q GetCampaignProgressQuery,
) (*GetCampaignProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	camp, err := h.campaignRepo.GetByID(ctx, q.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("get_campaign_progress: failed to get campaign: %w", err)
	}

	enr, err := h.enrollmentRepo.Get(ctx, q.UserID, q.CampaignID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("get_campaign_progress: failed to get enrollment: %w", err)
	}

	// No enrollment yet: the campaign is simply not started.
	states := map[string]*progress.ModuleState{}
	storedStatus := progress.StatusNotStarted
	if enr != nil {
		states = enr.ModuleProgress
		storedStatus = enr.Status

		if derived, consistent := enr.ConsistentCompletedCount(); !consistent {
			// The map-derived count is used below; the stale counter is
			// only reported.
			h.log.Warn("completed-module counter disagrees with module map",
				logger.String("user_id", q.UserID),
				logger.String("campaign_id", q.CampaignID),
				logger.Int("cached", enr.CompletedModules),
				logger.Int("derived", derived),
				logger.Err(shared.ErrInconsistentCache),
			)
		}
	}

	moduleIDs := camp.ModuleIDs()
	agg := h.aggregator.Aggregate(moduleIDs, states, storedStatus)

	result := &GetCampaignProgressResult{
		CampaignID:       camp.ID,
		Title:            camp.Title,
		Status:           agg.Status,
		ProgressPercent:  agg.ProgressPercent,
		CompletedModules: agg.CompletedModuleCount,
		TotalModules:     len(moduleIDs),
		NextModuleIndex:  agg.NextModuleIndex,
		Modules:          make([]ModuleProgressDTO, 0, len(moduleIDs)),
		GeneratedAt:      h.now(),
	}
	if enr != nil {
		result.CompletedAt = enr.CompletedAt
	}

	for i, id := range moduleIDs {
		state := states[id]
		dto := ModuleProgressDTO{ModuleID: id, Index: i}
		if state != nil {
			dto.VideoFinished = state.VideoFinished
			dto.QuestionsAnswered = state.QuestionsAnswered
			dto.QuestionTarget = state.QuestionTarget
			dto.Completed = state.Completed
		}
		if r, err := progress.Ratio(state); err == nil {
			dto.Ratio = r
		}
		result.Modules = append(result.Modules, dto)
	}

	return result, nil
}
