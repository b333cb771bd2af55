// Package enrollment contains the learner-campaign association that carries
// all progress state. The enrollment is the aggregate the engine recomputes
// from; its module map is the source of truth and its cached counters are
// hints only.
package enrollment

import (
	"time"

	"github.com/google/uuid"

	"github.com/training-hub/training-hub/internal/domain/progress"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment is one learner's association with one campaign.
type Enrollment struct {
	// ID is the enrollment identifier (UUID).
	ID string `json:"id"`

	// UserID identifies the learner.
	UserID string `json:"user_id"`

	// CampaignID identifies the campaign.
	CampaignID string `json:"campaign_id"`

	// Status is the stored tri-state status. Monotonic: it only moves
	// forward, and readers must tolerate it lagging behind ModuleProgress.
	Status progress.Status `json:"status"`

	// ModuleProgress maps module ID to its recorded state. Append-only.
	ModuleProgress map[string]*progress.ModuleState `json:"module_progress"`

	// CompletedModules caches count(m.Completed) and may be stale. Readers
	// recompute from the map; see ConsistentCompletedCount.
	CompletedModules int `json:"completed_modules"`

	// CompletedAt is set once, when the campaign completes.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// LastAccessedAt tracks the most recent learner interaction.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// CreatedAt is when the enrollment was created (first access).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last mutation time.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a fresh enrollment for a learner's first access to a campaign.
func New(userID, campaignID string, now time.Time) *Enrollment {
	return &Enrollment{
		ID:             uuid.NewString(),
		UserID:         userID,
		CampaignID:     campaignID,
		Status:         progress.StatusNotStarted,
		ModuleProgress: make(map[string]*progress.ModuleState),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ModuleState returns the recorded state for a module, or nil for
// "not started".
func (e *Enrollment) ModuleState(moduleID string) *progress.ModuleState {
	return e.ModuleProgress[moduleID]
}

// ensureState returns the module's state, creating it on first touch.
func (e *Enrollment) ensureState(moduleID string, questionTarget int) *progress.ModuleState {
	if e.ModuleProgress == nil {
		e.ModuleProgress = make(map[string]*progress.ModuleState)
	}
	state, ok := e.ModuleProgress[moduleID]
	if !ok {
		state = &progress.ModuleState{
			QuestionTarget: progress.EffectiveQuestionTarget(questionTarget),
		}
		e.ModuleProgress[moduleID] = state
	}
	return state
}

// RecordAnswer increments the answer count for a module, creating its state
// on first answer. Counts grow past the target on duplicate submissions;
// the ratio math caps the credit, not the record.
func (e *Enrollment) RecordAnswer(moduleID string, questionTarget int, now time.Time) {
	state := e.ensureState(moduleID, questionTarget)
	state.QuestionsAnswered++
	e.touch(now)
}

// MarkModuleFinished records the module-completion event: the video is
// finished and the module is explicitly complete. Idempotent - a redelivered
// completion changes nothing.
func (e *Enrollment) MarkModuleFinished(moduleID string, questionTarget int, now time.Time) {
	state := e.ensureState(moduleID, questionTarget)
	state.VideoFinished = true
	state.Completed = true
	e.CompletedModules = progress.CompletedCount(e.ModuleProgress)
	e.touch(now)
}

// MarkCampaignCompleted transitions to completed and stamps CompletedAt
// exactly once. A second call is a no-op so redelivery cannot move the
// completion instant (which is part of the celebration identity).
func (e *Enrollment) MarkCampaignCompleted(now time.Time) {
	if e.Status == progress.StatusCompleted {
		return
	}
	e.Status = progress.StatusCompleted
	if e.CompletedAt == nil {
		t := now
		e.CompletedAt = &t
	}
	e.UpdatedAt = now
}

// AdvanceStatus moves the stored status forward. Backward transitions are
// rejected with ErrStatusRegression.
func (e *Enrollment) AdvanceStatus(next progress.Status, now time.Time) error {
	if !e.Status.CanTransitionTo(next) {
		return shared.ErrStatusRegression
	}
	if next == progress.StatusCompleted {
		e.MarkCampaignCompleted(now)
		return nil
	}
	e.Status = next
	e.UpdatedAt = now
	return nil
}

// touch marks learner interaction and lifts a not-started enrollment into
// in-progress.
func (e *Enrollment) touch(now time.Time) {
	t := now
	e.LastAccessedAt = &t
	e.UpdatedAt = now
	if e.Status == progress.StatusNotStarted {
		e.Status = progress.StatusInProgress
	}
}

// ConsistentCompletedCount returns the map-derived completed count and
// whether the cached counter agrees with it. When they disagree the map
// wins; callers log the divergence as an InconsistentCache condition.
func (e *Enrollment) ConsistentCompletedCount() (int, bool) {
	derived := progress.CompletedCount(e.ModuleProgress)
	return derived, derived == e.CompletedModules
}
