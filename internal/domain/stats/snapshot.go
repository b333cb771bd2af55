package stats

import (
	"time"

	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the full derived statistics state for one learner, as shown on
// every dashboard surface. When the authoritative stats service responds it
// is the source of truth; otherwise ComputeSnapshot produces the identical
// numbers locally from the activity history.
type Snapshot struct {
	// UserID identifies the learner.
	UserID string `json:"user_id"`

	// TotalXP is the cumulative experience points.
	TotalXP int `json:"total_xp"`

	// Level is derived from TotalXP by ComputeLevel.
	Level int `json:"level"`

	// XPInCurrentLevel is progress inside the current level.
	XPInCurrentLevel int `json:"xp_in_current_level"`

	// XPToNextLevel is the remaining XP to the next level.
	XPToNextLevel int `json:"xp_to_next_level"`

	// Title is the display title for the level.
	Title string `json:"title"`

	// CurrentStreak is the active consecutive-day streak.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak is the best streak ever observed.
	LongestStreak int `json:"longest_streak"`

	// StreakDays is the Monday-indexed 7-day activity bitmap.
	StreakDays [7]bool `json:"streak_days"`

	// CompletedToday reports activity on the current day.
	CompletedToday bool `json:"completed_today"`

	// LastCelebratedLevel is the highest level for which a level-up
	// celebration has been shown. Maintained by the celebration ledger.
	LastCelebratedLevel int `json:"last_celebrated_level"`

	// StreakAtRisk flags a streak about to break at local midnight.
	StreakAtRisk bool `json:"streak_at_risk"`

	// Authoritative is true when the snapshot came from the stats service
	// rather than the local fallback computation.
	Authoritative bool `json:"authoritative"`

	// ComputedAt is when the snapshot was derived.
	ComputedAt time.Time `json:"computed_at"`
}

// ComputeSnapshot is the client-side fallback: it assembles a full snapshot
// from the activity-day set and the XP total using the same canonical
// formulas the stats service applies. Pure given (totalXP, days, today).
func ComputeSnapshot(userID string, totalXP int, days DaySet, today time.Time, lastCelebratedLevel int) Snapshot {
	level := ComputeLevel(totalXP)
	streak := ComputeStreak(days, today)

	return Snapshot{
		UserID:              userID,
		TotalXP:             totalXP,
		Level:               level.Level,
		XPInCurrentLevel:    level.XPInCurrentLevel,
		XPToNextLevel:       level.XPToNextLevel,
		Title:               level.Title,
		CurrentStreak:       streak.Current,
		LongestStreak:       streak.Longest,
		StreakDays:          streak.Days,
		CompletedToday:      streak.CompletedToday,
		LastCelebratedLevel: lastCelebratedLevel,
		StreakAtRisk:        streak.AtRisk,
		Authoritative:       false,
		ComputedAt:          today,
	}
}

// IsValid performs the lifecycle invariant checks from the data model:
// XP and level in range, non-negative streaks.
func (s *Snapshot) IsValid() bool {
	return shared.XP(s.TotalXP).IsValid() &&
		shared.Level(s.Level).IsValid() &&
		s.CurrentStreak >= 0 &&
		s.LongestStreak >= s.CurrentStreak
}
