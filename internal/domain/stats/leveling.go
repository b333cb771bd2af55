package stats

// ══════════════════════════════════════════════════════════════════════════════
// LEVELING
// ══════════════════════════════════════════════════════════════════════════════

// XPPerLevel is the canonical level cost: a flat 100 XP per level at every
// level. This is the one and only leveling formula in the system; the
// authoritative stats service uses the same schedule, and the mapper
// cross-checks its responses against this function.
const XPPerLevel = 100

// Level titles, as a step function over level.
const (
	TitleBeginner     = "Beginner"
	TitleLearner      = "Learner"
	TitlePractitioner = "Practitioner"
	TitleExpert       = "Expert"
	TitleMaster       = "Master"
)

// LevelInfo is the derived progression state for a cumulative XP total.
type LevelInfo struct {
	// Level is the 1-based progression tier.
	Level int `json:"level"`

	// XPInCurrentLevel is how far into the current level the learner is.
	XPInCurrentLevel int `json:"xp_in_current_level"`

	// XPToNextLevel is the remaining XP until the next level.
	XPToNextLevel int `json:"xp_to_next_level"`

	// Title is the display title for the level.
	Title string `json:"title"`
}

// ComputeLevel derives level state from cumulative XP:
//
//	level = totalXP/100 + 1
//
// Negative input is treated as 0 rather than producing a level below 1.
func ComputeLevel(totalXP int) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}

	level := totalXP/XPPerLevel + 1
	inLevel := totalXP % XPPerLevel

	return LevelInfo{
		Level:            level,
		XPInCurrentLevel: inLevel,
		XPToNextLevel:    XPPerLevel - inLevel,
		Title:            TitleForLevel(level),
	}
}

// TitleForLevel maps a level to its display title.
func TitleForLevel(level int) string {
	switch {
	case level <= 5:
		return TitleBeginner
	case level <= 15:
		return TitleLearner
	case level <= 30:
		return TitlePractitioner
	case level <= 50:
		return TitleExpert
	default:
		return TitleMaster
	}
}
