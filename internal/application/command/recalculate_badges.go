package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/training-hub/training-hub/internal/domain/badge"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE BADGES COMMAND
// Re-evaluates the full badge catalog against a learner's current aggregate
// stats and awards anything newly earned. Idempotent: held badges are never
// re-awarded and never revoked. Throttled per user so a burst of completions
// triggers one evaluation, not one per event.
// ══════════════════════════════════════════════════════════════════════════════

// Throttle limits how often an operation may run for a given key.
type Throttle interface {
	// Acquire returns true when the caller won the slot for the key. The
	// slot stays taken until ttl expires.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RecalculateBadgesCommand contains the data to recalculate badges.
type RecalculateBadgesCommand struct {
	// UserID is the learner's ID.
	UserID string

	// SkillLevels carries per-skill levels from the stats service, when
	// available. Skill-criteria badges are skipped without it.
	SkillLevels map[string]int

	// Force bypasses the per-user throttle.
	Force bool

	// Timestamp is when the recalculation runs (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecalculateBadgesCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("recalculate_badges: user_id is required")
	}
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return fmt.Errorf("recalculate_badges: %w", err)
	}
	return nil
}

// RecalculateBadgesResult contains the result of the recalculation.
type RecalculateBadgesResult struct {
	// Success indicates the evaluation ran.
	Success bool

	// Throttled is true when the per-user slot was taken and nothing ran.
	Throttled bool

	// Awarded lists the newly earned badges, catalog order.
	Awarded []badge.Badge

	// Events contains domain events generated.
	Events []shared.Event

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBadgeThrottleTTL is how long a learner's badge-evaluation slot
// stays taken after a run.
const DefaultBadgeThrottleTTL = 30 * time.Second

// RecalculateBadgesHandler handles the RecalculateBadgesCommand.
type RecalculateBadgesHandler struct {
	badgeRepo      badge.Repository
	enrollmentRepo enrollment.Repository
	activityRepo   stats.ActivityRepository
	evaluator      *badge.Evaluator
	throttle       Throttle
	eventPublisher shared.EventPublisher

	throttleTTL time.Duration
	now         func() time.Time
}

// NewRecalculateBadgesHandler creates a new RecalculateBadgesHandler.
// The throttle may be nil, in which case every call evaluates.
func NewRecalculateBadgesHandler(
	badgeRepo badge.Repository,
	enrollmentRepo enrollment.Repository,
	activityRepo stats.ActivityRepository,
	throttle Throttle,
	eventPublisher shared.EventPublisher,
) *RecalculateBadgesHandler {
	return &RecalculateBadgesHandler{
		badgeRepo:      badgeRepo,
		enrollmentRepo: enrollmentRepo,
		activityRepo:   activityRepo,
		evaluator:      badge.NewEvaluator(),
		throttle:       throttle,
		eventPublisher: eventPublisher,
		throttleTTL:    DefaultBadgeThrottleTTL,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the handler's clock. Used in tests.
func (h *RecalculateBadgesHandler) WithClock(now func() time.Time) *RecalculateBadgesHandler {
	h.now = now
	return h
}

// Handle executes the recalculate badges command.
func (h *RecalculateBadgesHandler) Handle(
	ctx context.Context,
	cmd RecalculateBadgesCommand,
) (*RecalculateBadgesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("recalculate_badges: validation failed: %w", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = h.now()
	}

	result := &RecalculateBadgesResult{
		EvaluatedAt: timestamp,
		Events:      make([]shared.Event, 0),
	}

	if h.throttle != nil && !cmd.Force {
		ok, err := h.throttle.Acquire(ctx, "badges:"+cmd.UserID, h.throttleTTL)
		if err == nil && !ok {
			result.Throttled = true
			return result, nil
		}
		// A broken throttle never blocks an evaluation.
	}

	aggregate, err := h.collectStats(ctx, cmd.UserID, cmd.SkillLevels, timestamp)
	if err != nil {
		return nil, fmt.Errorf("recalculate_badges: failed to collect stats: %w", err)
	}

	held, err := h.badgeRepo.HeldBadgeIDs(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("recalculate_badges: failed to load held badges: %w", err)
	}

	newlyEarned := h.evaluator.Evaluate(aggregate, held)
	for _, b := range newlyEarned {
		if err := h.badgeRepo.Award(ctx, cmd.UserID, b.ID, timestamp); err != nil {
			if shared.IsAlreadyExists(err) {
				continue
			}
			return nil, shared.WrapError("badge", "Award", shared.ErrWriteFailed,
				fmt.Sprintf("recalculate_badges: failed to award %s", b.ID), err)
		}

		result.Awarded = append(result.Awarded, b)

		event := shared.NewBadgeEarnedEvent(cmd.UserID, b.ID, b.Name, timestamp)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, event)
	}

	for _, ev := range result.Events {
		_ = h.eventPublisher.Publish(ev)
	}

	result.Success = true
	return result, nil
}

// collectStats assembles the aggregate numbers the badge criteria read.
func (h *RecalculateBadgesHandler) collectStats(
	ctx context.Context,
	userID string,
	skillLevels map[string]int,
	now time.Time,
) (badge.AggregateStats, error) {
	totalXP, err := h.activityRepo.TotalXP(ctx, userID)
	if err != nil {
		return badge.AggregateStats{}, err
	}

	days, err := h.activityRepo.ActiveDays(ctx, userID, time.Time{})
	if err != nil {
		return badge.AggregateStats{}, err
	}
	daySet := make(stats.DaySet, len(days))
	for _, d := range days {
		daySet.Add(d)
	}
	streak := stats.ComputeStreak(daySet, now)

	completed, err := h.enrollmentRepo.CountCompletedByUser(ctx, userID)
	if err != nil {
		return badge.AggregateStats{}, err
	}

	return badge.AggregateStats{
		CurrentStreak:      streak.Current,
		CampaignsCompleted: completed,
		Level:              stats.ComputeLevel(totalXP).Level,
		SkillLevels:        skillLevels,
	}, nil
}
