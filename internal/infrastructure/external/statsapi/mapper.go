package statsapi

import (
	"time"

	"github.com/training-hub/training-hub/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts wire documents into domain snapshots.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// SnapshotFromDTO maps a service document to a domain snapshot. The level
// breakdown is always recomputed from TotalXP with the canonical formula:
// the service's level field is advisory, and a service/formula disagreement
// must never leak a foreign level progression into the dashboard.
func (m *Mapper) SnapshotFromDTO(dto *SnapshotDTO) *stats.Snapshot {
	level := stats.ComputeLevel(dto.TotalXP)

	var week [7]bool
	for i := 0; i < len(dto.WeekActivity) && i < 7; i++ {
		week[i] = dto.WeekActivity[i]
	}

	computedAt := dto.UpdatedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}

	return &stats.Snapshot{
		UserID:           dto.UserID,
		TotalXP:          dto.TotalXP,
		Level:            level.Level,
		XPInCurrentLevel: level.XPInCurrentLevel,
		XPToNextLevel:    level.XPToNextLevel,
		Title:            level.Title,
		CurrentStreak:    dto.CurrentStreak,
		LongestStreak:    dto.LongestStreak,
		StreakDays:       week,
		CompletedToday:   dto.CompletedToday,
		StreakAtRisk:     dto.StreakAtRisk,
		Authoritative:    false, // the caller flips this after validation
		ComputedAt:       computedAt,
	}
}
