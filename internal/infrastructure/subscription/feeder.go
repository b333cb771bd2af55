package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/training-hub/training-hub/internal/application/query"
	"github.com/training-hub/training-hub/internal/domain/badge"
	"github.com/training-hub/training-hub/internal/domain/celebration"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEEDER
// ══════════════════════════════════════════════════════════════════════════════

// queryTimeout bounds the snapshot recomputation triggered by one event.
const queryTimeout = 5 * time.Second

// Celebration is the payload of a celebration message. The Key identifies
// the moment; the delivery layer checks it against the ledger so each one
// surfaces at most once.
type Celebration struct {
	// Kind is "level_up", "campaign_completed", or "streak_milestone".
	Kind string `json:"kind"`

	// Key is the deterministic celebration identity.
	Key string `json:"key"`

	// Level is set for level-up celebrations.
	Level int `json:"level,omitempty"`

	// Title is the level title for level-up celebrations.
	Title string `json:"title,omitempty"`

	// Days is set for streak milestones.
	Days int `json:"days,omitempty"`

	// CampaignID is set for campaign completions.
	CampaignID string `json:"campaign_id,omitempty"`

	// TotalXP is set for campaign completions.
	TotalXP int `json:"total_xp,omitempty"`
}

// BadgeCollection is the payload of a badges message.
type BadgeCollection struct {
	// Earned are the learner's badges, oldest first.
	Earned []badge.Earned `json:"earned"`
}

// Feeder turns domain events into hub snapshots. Each event triggers a
// fresh read through the same query handlers the HTTP endpoints use, so
// pushed and polled views can never disagree.
type Feeder struct {
	hub           *Hub
	progressQuery *query.GetCampaignProgressHandler
	statsQuery    *query.GetUserStatsHandler
	badgeRepo     badge.Repository
	logger        *slog.Logger
}

// NewFeeder creates a new Feeder.
func NewFeeder(
	hub *Hub,
	progressQuery *query.GetCampaignProgressHandler,
	statsQuery *query.GetUserStatsHandler,
	badgeRepo badge.Repository,
	logger *slog.Logger,
) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{
		hub:           hub,
		progressQuery: progressQuery,
		statsQuery:    statsQuery,
		badgeRepo:     badgeRepo,
		logger:        logger,
	}
}

// Attach subscribes the feeder to the event types it translates.
func (f *Feeder) Attach(bus shared.EventSubscriber) error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventModuleCompleted:   f.onEnrollmentChanged,
		shared.EventAnswerRecorded:    f.onEnrollmentChanged,
		shared.EventCampaignCompleted: f.onCampaignCompleted,
		shared.EventXPGained:          f.onStatsChanged,
		shared.EventLevelUp:           f.onLevelUp,
		shared.EventStreakUpdated:     f.onStatsChanged,
		shared.EventStreakMilestone:   f.onStreakMilestone,
		shared.EventBadgeEarned:       f.onBadgeEarned,
	}

	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return err
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TRANSLATION
// ══════════════════════════════════════════════════════════════════════════════

func (f *Feeder) onEnrollmentChanged(event shared.Event) error {
	userID := event.AggregateID()
	campaignID, _ := event.Payload()["campaign_id"].(string)
	if campaignID == "" {
		return nil
	}

	f.pushEnrollment(userID, campaignID)
	return nil
}

func (f *Feeder) onCampaignCompleted(event shared.Event) error {
	e, ok := event.(shared.CampaignCompletedEvent)
	if !ok {
		return nil
	}

	f.pushEnrollment(e.UserID, e.CampaignID)
	f.hub.PublishCelebration(e.UserID, Celebration{
		Kind:       "campaign_completed",
		Key:        celebration.CampaignKey(e.CampaignID, e.CompletedAt),
		CampaignID: e.CampaignID,
		TotalXP:    e.TotalXP,
	})
	return nil
}

func (f *Feeder) onStatsChanged(event shared.Event) error {
	f.pushStats(event.AggregateID())
	return nil
}

func (f *Feeder) onLevelUp(event shared.Event) error {
	e, ok := event.(shared.LevelUpEvent)
	if !ok {
		return nil
	}

	f.pushStats(e.UserID)
	f.hub.PublishCelebration(e.UserID, Celebration{
		Kind:  "level_up",
		Key:   celebration.LevelUpKey(e.NewLevel),
		Level: e.NewLevel,
		Title: e.Title,
	})
	return nil
}

func (f *Feeder) onStreakMilestone(event shared.Event) error {
	e, ok := event.(shared.StreakMilestoneEvent)
	if !ok {
		return nil
	}

	f.hub.PublishCelebration(e.UserID, Celebration{
		Kind: "streak_milestone",
		Key:  celebration.StreakMilestoneKey(e.Days, e.LocalDate),
		Days: e.Days,
	})
	return nil
}

func (f *Feeder) onBadgeEarned(event shared.Event) error {
	userID := event.AggregateID()

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	earned, err := f.badgeRepo.EarnedBadges(ctx, userID)
	if err != nil {
		f.logger.Error("badge snapshot failed", "user_id", userID, "error", err)
		return err
	}

	f.hub.PublishBadges(userID, BadgeCollection{Earned: earned})
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT PUSHES
// ══════════════════════════════════════════════════════════════════════════════

func (f *Feeder) pushEnrollment(userID, campaignID string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := f.progressQuery.Handle(ctx, query.GetCampaignProgressQuery{
		UserID:     userID,
		CampaignID: campaignID,
	})
	if err != nil {
		f.logger.Error("enrollment snapshot failed",
			"user_id", userID,
			"campaign_id", campaignID,
			"error", err,
		)
		return
	}

	f.hub.PublishEnrollment(userID, campaignID, result)
}

func (f *Feeder) pushStats(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	result, err := f.statsQuery.Handle(ctx, query.GetUserStatsQuery{UserID: userID})
	if err != nil {
		f.logger.Error("stats snapshot failed", "user_id", userID, "error", err)
		return
	}

	f.hub.PublishUserStats(userID, result)
}
