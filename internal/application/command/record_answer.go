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
// RECORD ANSWER COMMAND
// Records one accepted quiz answer. Answers alone never complete a module -
// completion needs the explicit module-finished signal - but they move the
// partial ratio and count as learning activity for the streak.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAnswerCommand contains the data to record a quiz answer.
type RecordAnswerCommand struct {
	// UserID is the learner's ID.
	UserID string

	// CampaignID is the campaign slug.
	CampaignID string

	// ModuleID is the module the question belongs to.
	ModuleID string

	// QuestionID identifies the answered question.
	QuestionID string

	// Timestamp is when the answer was accepted (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordAnswerCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("record_answer: user_id is required")
	}
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("record_answer: %w", err)
	}
	if c.CampaignID == "" {
		return errors.New("record_answer: campaign_id is required")
	}
	if _, err := shared.NewCampaignID(c.CampaignID); err != nil {
		return fmt.Errorf("record_answer: %w", err)
	}
	if c.ModuleID == "" {
		return errors.New("record_answer: module_id is required")
	}
	if !shared.ModuleID(c.ModuleID).IsValid() {
		return fmt.Errorf("record_answer: invalid module ID %q", c.ModuleID)
	}
	if c.QuestionID == "" {
		return errors.New("record_answer: question_id is required")
	}
	return nil
}

// RecordAnswerResult contains the result of recording an answer.
type RecordAnswerResult struct {
	// Success indicates the answer was recorded.
	Success bool

	// QuestionsAnswered is the module's answer count after the write.
	QuestionsAnswered int

	// ModuleRatio is the module's completion ratio after the write.
	ModuleRatio float64

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the answer was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAnswerHandler handles the RecordAnswerCommand.
type RecordAnswerHandler struct {
	enrollmentRepo enrollment.Repository
	campaignRepo   campaign.Repository
	eventPublisher shared.EventPublisher

	now func() time.Time
}

// NewRecordAnswerHandler creates a new RecordAnswerHandler.
func NewRecordAnswerHandler(
	enrollmentRepo enrollment.Repository,
	campaignRepo campaign.Repository,
	eventPublisher shared.EventPublisher,
) *RecordAnswerHandler {
	return &RecordAnswerHandler{
		enrollmentRepo: enrollmentRepo,
		campaignRepo:   campaignRepo,
		eventPublisher: eventPublisher,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler's clock. Used in tests.
func (h *RecordAnswerHandler) WithClock(now func() time.Time) *RecordAnswerHandler {
	h.now = now
	return h
}

// Handle executes the record answer command.
func (h *RecordAnswerHandler) Handle(ctx context.Context, cmd RecordAnswerCommand) (*RecordAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_answer: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = h.now()
	}

	camp, err := h.campaignRepo.GetByID(ctx, cmd.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("record_answer: failed to get campaign: %w", err)
	}

	item, err := camp.Module(cmd.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("record_answer: %w", err)
	}

	enr, err := h.enrollmentRepo.GetOrCreate(ctx, cmd.UserID, cmd.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("record_answer: failed to get enrollment: %w", err)
	}

	enr.RecordAnswer(cmd.ModuleID, item.QuestionCount, timestamp)

	state := enr.ModuleState(cmd.ModuleID)
	ratio, err := progress.Ratio(state)
	if err != nil {
		return nil, fmt.Errorf("record_answer: %w", err)
	}

	if err := h.enrollmentRepo.Save(ctx, enr); err != nil {
		return nil, shared.WrapError("enrollment", "Save", shared.ErrWriteFailed,
			"record_answer: failed to save enrollment", err)
	}

	event := shared.NewAnswerRecordedEvent(cmd.UserID, cmd.CampaignID, item.VideoID, cmd.QuestionID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	result := &RecordAnswerResult{
		Success:           true,
		QuestionsAnswered: state.QuestionsAnswered,
		ModuleRatio:       ratio,
		Events:            []shared.Event{event},
		RecordedAt:        timestamp,
	}

	for _, ev := range result.Events {
		_ = h.eventPublisher.Publish(ev)
	}

	return result, nil
}
