// Package badge contains the badge catalog and the eligibility evaluator.
// Badges are append-only: once earned they are never revoked, and awarding
// the same badge twice is a no-op at every layer.
// This is core business logic - no external dependencies.
package badge

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// CriteriaKind identifies which aggregate stat a badge threshold applies to.
type CriteriaKind string

const (
	// CriteriaStreakDays - current streak reaches the threshold.
	CriteriaStreakDays CriteriaKind = "streak_days"

	// CriteriaCampaignsCompleted - completed-campaign count reaches the threshold.
	CriteriaCampaignsCompleted CriteriaKind = "campaigns_completed"

	// CriteriaLevelReached - learner level reaches the threshold.
	CriteriaLevelReached CriteriaKind = "level_reached"

	// CriteriaSkillLevel - a named skill's level reaches the threshold.
	CriteriaSkillLevel CriteriaKind = "skill_level"
)

// Criteria is a threshold predicate over the aggregate stats.
type Criteria struct {
	// Kind selects the stat the threshold applies to.
	Kind CriteriaKind `json:"kind"`

	// Threshold is the minimum value that satisfies the criteria.
	Threshold int `json:"threshold"`

	// Skill names the skill for CriteriaSkillLevel; empty otherwise.
	Skill string `json:"skill,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE
// ══════════════════════════════════════════════════════════════════════════════

// Badge is one achievement marker in the catalog.
type Badge struct {
	// ID is the stable badge identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Icon is the display icon name.
	Icon string `json:"icon"`

	// Criteria is the earning predicate.
	Criteria Criteria `json:"criteria"`
}

// Earned is a badge held by a learner. Immutable once written.
type Earned struct {
	// BadgeID references the catalog badge.
	BadgeID string `json:"badge_id"`

	// UserID identifies the holder.
	UserID string `json:"user_id"`

	// EarnedAt is when the badge was awarded.
	EarnedAt time.Time `json:"earned_at"`
}

// Catalog returns the built-in badge definitions.
func Catalog() []Badge {
	return []Badge{
		{ID: "streak-3", Name: "Warming Up", Icon: "flame", Criteria: Criteria{Kind: CriteriaStreakDays, Threshold: 3}},
		{ID: "streak-7", Name: "Week of Fire", Icon: "flame", Criteria: Criteria{Kind: CriteriaStreakDays, Threshold: 7}},
		{ID: "streak-30", Name: "Iron Will", Icon: "medal", Criteria: Criteria{Kind: CriteriaStreakDays, Threshold: 30}},
		{ID: "campaigns-1", Name: "First Finish", Icon: "target", Criteria: Criteria{Kind: CriteriaCampaignsCompleted, Threshold: 1}},
		{ID: "campaigns-5", Name: "Serial Finisher", Icon: "trophy", Criteria: Criteria{Kind: CriteriaCampaignsCompleted, Threshold: 5}},
		{ID: "campaigns-10", Name: "Completionist", Icon: "crown", Criteria: Criteria{Kind: CriteriaCampaignsCompleted, Threshold: 10}},
		{ID: "level-5", Name: "Apprentice", Icon: "book", Criteria: Criteria{Kind: CriteriaLevelReached, Threshold: 5}},
		{ID: "level-10", Name: "Journeyman", Icon: "scroll", Criteria: Criteria{Kind: CriteriaLevelReached, Threshold: 10}},
		{ID: "level-25", Name: "Scholar", Icon: "wizard", Criteria: Criteria{Kind: CriteriaLevelReached, Threshold: 25}},
	}
}

// CatalogByID indexes the catalog for lookup.
func CatalogByID() map[string]Badge {
	all := Catalog()
	byID := make(map[string]Badge, len(all))
	for _, b := range all {
		byID[b.ID] = b
	}
	return byID
}
