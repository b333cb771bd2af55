// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Enrollment events
	EventEnrollmentCreated EventType = "enrollment.created"
	EventEnrollmentUpdated EventType = "enrollment.updated"

	// Progress events
	EventModuleCompleted   EventType = "progress.module_completed"
	EventAnswerRecorded    EventType = "progress.answer_recorded"
	EventCampaignCompleted EventType = "progress.campaign_completed"

	// Gamification events
	EventXPGained        EventType = "gamification.xp_gained"
	EventLevelUp         EventType = "gamification.level_up"
	EventStreakUpdated   EventType = "gamification.streak_updated"
	EventStreakMilestone EventType = "gamification.streak_milestone"
	EventStreakAtRisk    EventType = "gamification.streak_at_risk"
	EventBadgeEarned     EventType = "gamification.badge_earned"

	// Leaderboard events
	EventRankChanged        EventType = "leaderboard.rank_changed"
	EventLeaderboardRebuilt EventType = "leaderboard.rebuilt"

	// Stats events
	EventStatsRefreshed EventType = "stats.refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ModuleCompletedEvent is emitted when a learner finishes one module
// (video watched and quiz target met).
type ModuleCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	CampaignID   string `json:"campaign_id"`
	ModuleID     string `json:"module_id"`
	ModuleIndex  int    `json:"module_index"`
	TotalModules int    `json:"total_modules"`
	XPAwarded    int    `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e ModuleCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"campaign_id":   e.CampaignID,
		"module_id":     e.ModuleID,
		"module_index":  e.ModuleIndex,
		"total_modules": e.TotalModules,
		"xp_awarded":    e.XPAwarded,
	}
}

// NewModuleCompletedEvent creates a new ModuleCompletedEvent.
func NewModuleCompletedEvent(userID, campaignID, moduleID string, moduleIndex, totalModules, xpAwarded int) ModuleCompletedEvent {
	return ModuleCompletedEvent{
		BaseEvent:    NewBaseEvent(EventModuleCompleted, userID),
		UserID:       userID,
		CampaignID:   campaignID,
		ModuleID:     moduleID,
		ModuleIndex:  moduleIndex,
		TotalModules: totalModules,
		XPAwarded:    xpAwarded,
	}
}

// AnswerRecordedEvent is emitted when a quiz answer is accepted by the store.
type AnswerRecordedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`
	VideoID    string `json:"video_id"`
	QuestionID string `json:"question_id"`
}

// Payload implements Event interface.
func (e AnswerRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"campaign_id": e.CampaignID,
		"video_id":    e.VideoID,
		"question_id": e.QuestionID,
	}
}

// NewAnswerRecordedEvent creates a new AnswerRecordedEvent.
func NewAnswerRecordedEvent(userID, campaignID, videoID, questionID string) AnswerRecordedEvent {
	return AnswerRecordedEvent{
		BaseEvent:  NewBaseEvent(EventAnswerRecorded, userID),
		UserID:     userID,
		CampaignID: campaignID,
		VideoID:    videoID,
		QuestionID: questionID,
	}
}

// CampaignCompletedEvent is emitted when every module of a campaign is done.
// CompletedAt is part of the celebration identity, so it rides on the event.
type CampaignCompletedEvent struct {
	BaseEvent
	UserID      string    `json:"user_id"`
	CampaignID  string    `json:"campaign_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalXP     int       `json:"total_xp"`
}

// Payload implements Event interface.
func (e CampaignCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"campaign_id":  e.CampaignID,
		"completed_at": e.CompletedAt,
		"total_xp":     e.TotalXP,
	}
}

// NewCampaignCompletedEvent creates a new CampaignCompletedEvent.
func NewCampaignCompletedEvent(userID, campaignID string, completedAt time.Time, totalXP int) CampaignCompletedEvent {
	return CampaignCompletedEvent{
		BaseEvent:   NewBaseEvent(EventCampaignCompleted, userID),
		UserID:      userID,
		CampaignID:  campaignID,
		CompletedAt: completedAt,
		TotalXP:     totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Gamification Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a learner gains XP.
type XPGainedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "module_completion", "campaign_bonus"
	ModuleID string `json:"module_id,omitempty"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
		"module_id": e.ModuleID,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, newTotal int, source, moduleID string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		ModuleID:  moduleID,
	}
}

// LevelUpEvent is emitted when a learner crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"title":     e.Title,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, title string) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Title:     title,
	}
}

// StreakUpdatedEvent is emitted when a learner's streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, longest int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventStreakUpdated, userID),
		UserID:        userID,
		CurrentStreak: current,
		LongestStreak: longest,
	}
}

// StreakMilestoneEvent is emitted when a streak hits a milestone day count.
type StreakMilestoneEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Days      int    `json:"days"`
	LocalDate string `json:"local_date"` // YYYY-MM-DD in the hub's local zone
}

// Payload implements Event interface.
func (e StreakMilestoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"days":       e.Days,
		"local_date": e.LocalDate,
	}
}

// NewStreakMilestoneEvent creates a new StreakMilestoneEvent.
func NewStreakMilestoneEvent(userID string, days int, localDate string) StreakMilestoneEvent {
	return StreakMilestoneEvent{
		BaseEvent: NewBaseEvent(EventStreakMilestone, userID),
		UserID:    userID,
		Days:      days,
		LocalDate: localDate,
	}
}

// StreakAtRiskEvent is emitted by the scheduler when an active streak has no
// activity today and the risk cutoff has passed.
type StreakAtRiskEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
}

// Payload implements Event interface.
func (e StreakAtRiskEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"current_streak": e.CurrentStreak,
	}
}

// NewStreakAtRiskEvent creates a new StreakAtRiskEvent.
func NewStreakAtRiskEvent(userID string, currentStreak int) StreakAtRiskEvent {
	return StreakAtRiskEvent{
		BaseEvent:     NewBaseEvent(EventStreakAtRisk, userID),
		UserID:        userID,
		CurrentStreak: currentStreak,
	}
}

// BadgeEarnedEvent is emitted when a badge is newly awarded.
type BadgeEarnedEvent struct {
	BaseEvent
	UserID   string    `json:"user_id"`
	BadgeID  string    `json:"badge_id"`
	Name     string    `json:"name"`
	EarnedAt time.Time `json:"earned_at"`
}

// Payload implements Event interface.
func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"badge_id":  e.BadgeID,
		"name":      e.Name,
		"earned_at": e.EarnedAt,
	}
}

// NewBadgeEarnedEvent creates a new BadgeEarnedEvent.
func NewBadgeEarnedEvent(userID, badgeID, name string, earnedAt time.Time) BadgeEarnedEvent {
	return BadgeEarnedEvent{
		BaseEvent: NewBaseEvent(EventBadgeEarned, userID),
		UserID:    userID,
		BadgeID:   badgeID,
		Name:      name,
		EarnedAt:  earnedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a learner's leaderboard rank changes.
type RankChangedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	OldRank    int    `json:"old_rank"`
	NewRank    int    `json:"new_rank"`
	RankChange int    `json:"rank_change"` // Positive = moved up, Negative = moved down
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"old_rank":    e.OldRank,
		"new_rank":    e.NewRank,
		"rank_change": e.RankChange,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(userID string, oldRank, newRank int) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:  NewBaseEvent(EventRankChanged, userID),
		UserID:     userID,
		OldRank:    oldRank,
		NewRank:    newRank,
		RankChange: oldRank - newRank, // Positive means moved up
	}
}

// MovedUp returns true if the learner moved up in rank.
func (e RankChangedEvent) MovedUp() bool {
	return e.RankChange > 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Stats Events
// ═══════════════════════════════════════════════════════════════════════════

// StatsRefreshedEvent is emitted when a fresh UserStatsSnapshot is available,
// either from the authoritative stats API or from the local fallback.
type StatsRefreshedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	TotalXP       int    `json:"total_xp"`
	Level         int    `json:"level"`
	CurrentStreak int    `json:"current_streak"`
	Authoritative bool   `json:"authoritative"`
}

// Payload implements Event interface.
func (e StatsRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"total_xp":       e.TotalXP,
		"level":          e.Level,
		"current_streak": e.CurrentStreak,
		"authoritative":  e.Authoritative,
	}
}

// NewStatsRefreshedEvent creates a new StatsRefreshedEvent.
func NewStatsRefreshedEvent(userID string, totalXP, level, currentStreak int, authoritative bool) StatsRefreshedEvent {
	return StatsRefreshedEvent{
		BaseEvent:     NewBaseEvent(EventStatsRefreshed, userID),
		UserID:        userID,
		TotalXP:       totalXP,
		Level:         level,
		CurrentStreak: currentStreak,
		Authoritative: authoritative,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
