package statsapi

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotDTO is the stats service's user statistics document.
type SnapshotDTO struct {
	// UserID identifies the learner.
	UserID string `json:"user_id"`

	// TotalXP is the lifetime XP as the service accounts it.
	TotalXP int `json:"total_xp"`

	// Level as the service computed it. Cross-checked against the
	// canonical formula during mapping.
	Level int `json:"level"`

	// CurrentStreak is the consecutive-day streak.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak is the best streak ever.
	LongestStreak int `json:"longest_streak"`

	// WeekActivity is the Monday-first 7-day activity bitmap.
	WeekActivity []bool `json:"week_activity"`

	// CompletedToday reports activity on the service's current day.
	CompletedToday bool `json:"completed_today"`

	// StreakAtRisk flags a streak about to break at local midnight.
	StreakAtRisk bool `json:"streak_at_risk"`

	// UpdatedAt is the service-side computation time.
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorDTO is the service's error envelope.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
