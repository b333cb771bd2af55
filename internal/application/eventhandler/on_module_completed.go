// Package eventhandler contains the domain event handlers that run the
// gamification side effects after a write commits.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/celebration"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/progress"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
	"github.com/training-hub/training-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MODULE COMPLETED HANDLER
// Runs the gamification chain after a module completion commits:
//
//  1. Activity log   — the completion day is recorded for streak math
//  2. XP grant       — the module's XP share lands on the total
//  3. Level check    — crossing a 100-XP boundary emits a level-up
//  4. Streak update  — the streak is recomputed and milestones fire
//  5. Campaign check — the last module completing finishes the campaign
//
// Every step is idempotent downstream of the completion event, and the
// emitting command already swallows redeliveries, so the chain as a whole
// is safe to replay.
// ═══════════════════════════════════════════════════════════════════════════

// OnModuleCompletedHandler handles progress.module_completed events.
type OnModuleCompletedHandler struct {
	activityRepo   stats.ActivityRepository
	enrollmentRepo enrollment.Repository
	campaignRepo   campaign.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	// loc is the local zone whose midnights bound streak days.
	loc *time.Location
	now func() time.Time
}

// NewOnModuleCompletedHandler creates a new OnModuleCompletedHandler.
func NewOnModuleCompletedHandler(
	activityRepo stats.ActivityRepository,
	enrollmentRepo enrollment.Repository,
	campaignRepo campaign.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	loc *time.Location,
) *OnModuleCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}

	return &OnModuleCompletedHandler{
		activityRepo:   activityRepo,
		enrollmentRepo: enrollmentRepo,
		campaignRepo:   campaignRepo,
		eventPublisher: eventPublisher,
		logger:         logger.With("handler", "on_module_completed"),
		loc:            loc,
		now:            func() time.Time { return time.Now() },
	}
}

// WithClock overrides the handler's clock. Used in tests.
func (h *OnModuleCompletedHandler) WithClock(now func() time.Time) *OnModuleCompletedHandler {
	h.now = now
	return h
}

// Handle processes a module completed event.
// Implements the shared.EventHandler signature.
func (h *OnModuleCompletedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	completed, ok := event.(shared.ModuleCompletedEvent)
	if !ok {
		h.logger.Warn("received non-ModuleCompletedEvent", "event_type", event.EventType())
		return nil
	}

	h.logger.Info("processing module completed event",
		"user_id", completed.UserID,
		"campaign_id", completed.CampaignID,
		"module_id", completed.ModuleID,
		"xp_awarded", completed.XPAwarded,
	)

	localDay := timeutil.StartOfDay(completed.OccurredAt().In(h.loc))
	if err := h.activityRepo.RecordActivity(ctx, completed.UserID, localDay, completed.XPAwarded, 1); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	if err := h.grantXP(ctx, completed); err != nil {
		h.logger.Error("failed to grant xp", "user_id", completed.UserID, "error", err)
	}

	if err := h.updateStreak(ctx, completed.UserID); err != nil {
		h.logger.Error("failed to update streak", "user_id", completed.UserID, "error", err)
	}

	if err := h.checkCampaignCompletion(ctx, completed); err != nil {
		h.logger.Error("failed to check campaign completion",
			"user_id", completed.UserID,
			"campaign_id", completed.CampaignID,
			"error", err,
		)
	}

	return nil
}

// grantXP emits the XP gained event and a level-up when the grant crosses
// a level boundary.
func (h *OnModuleCompletedHandler) grantXP(ctx context.Context, completed shared.ModuleCompletedEvent) error {
	newTotal, err := h.activityRepo.TotalXP(ctx, completed.UserID)
	if err != nil {
		return fmt.Errorf("total xp: %w", err)
	}

	xpEvent := shared.NewXPGainedEvent(
		completed.UserID,
		completed.XPAwarded,
		newTotal,
		"module_completion",
		completed.ModuleID,
	)
	_ = h.eventPublisher.Publish(xpEvent)

	// Clamped subtraction: a lagging total must not read as negative XP.
	previousTotal := shared.XP(newTotal).Add(shared.XP(-completed.XPAwarded))
	oldLevel := stats.ComputeLevel(previousTotal.Int())
	newLevel := stats.ComputeLevel(newTotal)
	if newLevel.Level > oldLevel.Level {
		h.logger.Info("level up",
			"user_id", completed.UserID,
			"old_level", oldLevel.Level,
			"new_level", newLevel.Level,
		)
		_ = h.eventPublisher.Publish(shared.NewLevelUpEvent(
			completed.UserID, oldLevel.Level, newLevel.Level, newLevel.Title,
		))
	}

	return nil
}

// updateStreak recomputes the streak after the activity write and emits the
// update plus any milestone crossed today.
func (h *OnModuleCompletedHandler) updateStreak(ctx context.Context, userID string) error {
	today := h.now().In(h.loc)

	// Full history: the emitted longest streak must never shrink because an
	// old run aged out of a read window.
	days, err := h.activityRepo.ActiveDays(ctx, userID, time.Time{})
	if err != nil {
		return fmt.Errorf("active days: %w", err)
	}

	streak := stats.ComputeStreak(stats.NewDaySet(days...), today)
	_ = h.eventPublisher.Publish(shared.NewStreakUpdatedEvent(userID, streak.Current, streak.Longest))

	// A milestone fires only on the day the streak reaches it; the ledger
	// keys on the local date, so repeated recomputation on the same day
	// still celebrates once.
	if streak.CompletedToday && celebration.IsStreakMilestone(streak.Current) {
		_ = h.eventPublisher.Publish(shared.NewStreakMilestoneEvent(
			userID, streak.Current, timeutil.DayKey(today),
		))
	}

	return nil
}

// checkCampaignCompletion finishes the campaign when its last module just
// completed.
func (h *OnModuleCompletedHandler) checkCampaignCompletion(
	ctx context.Context,
	completed shared.ModuleCompletedEvent,
) error {
	enr, err := h.enrollmentRepo.Get(ctx, completed.UserID, completed.CampaignID)
	if err != nil {
		return fmt.Errorf("get enrollment: %w", err)
	}
	if enr.Status == progress.StatusCompleted {
		return nil
	}

	camp, err := h.campaignRepo.GetByID(ctx, completed.CampaignID)
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}

	total := camp.TotalModules()
	if total == 0 || progress.CompletedCount(enr.ModuleProgress) < total {
		return nil
	}

	enr.MarkCampaignCompleted(completed.OccurredAt())
	if err := h.enrollmentRepo.Save(ctx, enr); err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}

	h.logger.Info("campaign completed",
		"user_id", completed.UserID,
		"campaign_id", completed.CampaignID,
	)
	_ = h.eventPublisher.Publish(shared.NewCampaignCompletedEvent(
		completed.UserID,
		completed.CampaignID,
		*enr.CompletedAt,
		camp.Computed.TotalXP,
	))

	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnModuleCompletedHandler) EventType() shared.EventType {
	return shared.EventModuleCompleted
}
