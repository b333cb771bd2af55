package eventhandler

import (
	"context"
	"log/slog"

	"github.com/training-hub/training-hub/internal/application/command"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON BADGE TRIGGER HANDLER
// Re-evaluates the badge catalog when anything a badge criterion reads can
// have changed: a campaign completed, a level-up, a streak milestone. The
// evaluation itself is pure and idempotent, and the command's per-user
// throttle collapses bursts into one run, so subscribing this handler to
// every trigger type is free.
// ═══════════════════════════════════════════════════════════════════════════

// OnBadgeTriggerHandler re-runs badge evaluation after gamification events.
type OnBadgeTriggerHandler struct {
	recalculate *command.RecalculateBadgesHandler
	logger      *slog.Logger
}

// NewOnBadgeTriggerHandler creates a new OnBadgeTriggerHandler.
func NewOnBadgeTriggerHandler(
	recalculate *command.RecalculateBadgesHandler,
	logger *slog.Logger,
) *OnBadgeTriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnBadgeTriggerHandler{
		recalculate: recalculate,
		logger:      logger.With("handler", "on_badge_trigger"),
	}
}

// Handle processes a badge-relevant event. The learner is identified by the
// event's aggregate ID; no other payload matters here.
// Implements the shared.EventHandler signature.
func (h *OnBadgeTriggerHandler) Handle(event shared.Event) error {
	userID := event.AggregateID()
	if userID == "" {
		h.logger.Warn("event without aggregate id", "event_type", event.EventType())
		return nil
	}

	result, err := h.recalculate.Handle(context.Background(), command.RecalculateBadgesCommand{
		UserID: userID,
	})
	if err != nil {
		h.logger.Error("badge recalculation failed",
			"user_id", userID,
			"trigger", event.EventType(),
			"error", err,
		)
		return err
	}

	if result.Throttled {
		h.logger.Debug("badge recalculation throttled", "user_id", userID)
		return nil
	}

	if len(result.Awarded) > 0 {
		h.logger.Info("badges awarded",
			"user_id", userID,
			"count", len(result.Awarded),
			"trigger", event.EventType(),
		)
	}

	return nil
}

// EventTypes returns every event type this handler subscribes to.
func (h *OnBadgeTriggerHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventCampaignCompleted,
		shared.EventLevelUp,
		shared.EventStreakMilestone,
	}
}
