// Package leaderboard contains the XP ranking model. The leaderboard is a
// derived view over total XP; it is rebuilt from the activity log and cached,
// never written to directly by learner actions.
package leaderboard

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK VALUE OBJECT
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position. Zero means unranked.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 reports whether the rank is in the top ten.
func (r Rank) IsTop10() bool {
	return r.IsValid() && r <= 10
}

// IsTop100 reports whether the rank is in the top hundred.
func (r Rank) IsTop100() bool {
	return r.IsValid() && r <= 100
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK CHANGE
// ══════════════════════════════════════════════════════════════════════════════

// RankChange is the signed movement between two snapshots. Positive means
// the learner climbed (previous rank minus current rank).
type RankChange int

// Direction returns the movement direction.
func (rc RankChange) Direction() Direction {
	switch {
	case rc > 0:
		return DirectionUp
	case rc < 0:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// Abs returns the magnitude of the movement.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// Direction labels which way a rank moved.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one ranked row of the leaderboard.
type Entry struct {
	// UserID identifies the learner.
	UserID string `json:"user_id"`

	// DisplayName is the learner's display name, when known.
	DisplayName string `json:"display_name,omitempty"`

	// TotalXP is the lifetime XP the rank is computed from.
	TotalXP int `json:"total_xp"`

	// Level is the level derived from TotalXP.
	Level int `json:"level"`

	// Rank is the 1-based position.
	Rank Rank `json:"rank"`

	// Change is the movement since the previous rebuild, when known.
	Change RankChange `json:"change,omitempty"`
}

// Page is one page of leaderboard entries plus the requesting learner's own
// row, which may fall outside the page.
type Page struct {
	// Entries are the ranked rows for the requested window.
	Entries []Entry `json:"entries"`

	// Total is the number of ranked learners.
	Total int `json:"total"`

	// Self is the requesting learner's row, nil when unranked or anonymous.
	Self *Entry `json:"self,omitempty"`

	// RebuiltAt is when the ranking was last recomputed.
	RebuiltAt time.Time `json:"rebuilt_at"`
}
