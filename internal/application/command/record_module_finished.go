// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/progress"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD MODULE FINISHED COMMAND
// Records the module-completion signal from the player: the learner watched
// the video through and the module is done. This is the engine's main write
// path; everything downstream (XP, streaks, badges) hangs off the event it
// emits.
// ══════════════════════════════════════════════════════════════════════════════

// RecordModuleFinishedCommand contains the data to mark a module finished.
type RecordModuleFinishedCommand struct {
	// UserID is the learner's ID.
	UserID string

	// CampaignID is the campaign slug.
	CampaignID string

	// ModuleID is the module within the campaign.
	ModuleID string

	// Timestamp is when the completion happened (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordModuleFinishedCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("record_module_finished: user_id is required")
	}
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("record_module_finished: %w", err)
	}
	if c.CampaignID == "" {
		return errors.New("record_module_finished: campaign_id is required")
	}
	if _, err := shared.NewCampaignID(c.CampaignID); err != nil {
		return fmt.Errorf("record_module_finished: %w", err)
	}
	if c.ModuleID == "" {
		return errors.New("record_module_finished: module_id is required")
	}
	if !shared.ModuleID(c.ModuleID).IsValid() {
		return fmt.Errorf("record_module_finished: invalid module ID %q", c.ModuleID)
	}
	return nil
}

// RecordModuleFinishedResult contains the result of the command.
type RecordModuleFinishedResult struct {
	// Success indicates the completion was recorded (or already was).
	Success bool

	// AlreadyCompleted is true when the module was complete before this
	// call; redelivered completions are accepted silently and emit nothing.
	AlreadyCompleted bool

	// ModuleIndex is the module's position within the campaign.
	ModuleIndex int

	// CompletedModules is the campaign-wide completed count after the write.
	CompletedModules int

	// TotalModules is the campaign's module count.
	TotalModules int

	// XPAwarded is the XP this module pays out.
	XPAwarded int

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the completion was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordModuleFinishedHandler handles the RecordModuleFinishedCommand.
type RecordModuleFinishedHandler struct {
	enrollmentRepo enrollment.Repository
	campaignRepo   campaign.Repository
	eventPublisher shared.EventPublisher

	now func() time.Time
}

// NewRecordModuleFinishedHandler creates a new RecordModuleFinishedHandler.
func NewRecordModuleFinishedHandler(
	enrollmentRepo enrollment.Repository,
	campaignRepo campaign.Repository,
	eventPublisher shared.EventPublisher,
) *RecordModuleFinishedHandler {
	return &RecordModuleFinishedHandler{
		enrollmentRepo: enrollmentRepo,
		campaignRepo:   campaignRepo,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler's clock. Used in tests.
func (h *RecordModuleFinishedHandler) WithClock(now func() time.Time) *RecordModuleFinishedHandler {
	h.now = now
	return h
}

// Handle executes the record module finished command.
func (h *RecordModuleFinishedHandler) Handle(
	ctx context.Context,
	cmd RecordModuleFinishedCommand,
) (*RecordModuleFinishedResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_module_finished: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = h.now()
	}

	camp, err := h.campaignRepo.GetByID(ctx, cmd.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("record_module_finished: failed to get campaign: %w", err)
	}

	item, err := camp.Module(cmd.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("record_module_finished: %w", err)
	}
	moduleIndex := camp.ModuleIndex(cmd.ModuleID)

	enr, err := h.enrollmentRepo.GetOrCreate(ctx, cmd.UserID, cmd.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("record_module_finished: failed to get enrollment: %w", err)
	}

	result := &RecordModuleFinishedResult{
		Success:      true,
		ModuleIndex:  moduleIndex,
		TotalModules: camp.TotalModules(),
		RecordedAt:   timestamp,
		Events:       make([]shared.Event, 0, 2),
	}

	// Redelivered completion: accept, change nothing, emit nothing.
	if state := enr.ModuleState(cmd.ModuleID); state != nil && state.Completed {
		result.AlreadyCompleted = true
		result.CompletedModules = progress.CompletedCount(enr.ModuleProgress)
		return result, nil
	}

	enr.MarkModuleFinished(cmd.ModuleID, item.QuestionCount, timestamp)
	result.CompletedModules = enr.CompletedModules
	result.XPAwarded = camp.XPForModule(moduleIndex)

	if err := h.enrollmentRepo.Save(ctx, enr); err != nil {
		return nil, shared.WrapError("enrollment", "Save", shared.ErrWriteFailed,
			"record_module_finished: failed to save enrollment", err)
	}

	event := shared.NewModuleCompletedEvent(
		cmd.UserID,
		cmd.CampaignID,
		cmd.ModuleID,
		moduleIndex,
		camp.TotalModules(),
		result.XPAwarded,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)

	for _, ev := range result.Events {
		_ = h.eventPublisher.Publish(ev)
	}

	return result, nil
}
