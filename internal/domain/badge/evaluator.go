package badge

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE STATS
// ══════════════════════════════════════════════════════════════════════════════

// AggregateStats are the inputs badge criteria are evaluated against.
type AggregateStats struct {
	// CurrentStreak is the active consecutive-day streak.
	CurrentStreak int

	// CampaignsCompleted is the count of campaigns finished.
	CampaignsCompleted int

	// Level is the learner's current level.
	Level int

	// SkillLevels maps skill name to skill level.
	SkillLevels map[string]int
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator determines which catalog badges a learner newly qualifies for.
// It is a pure function of (stats, held): calling it again on unchanged
// inputs returns nothing, and it never revokes a badge. Callers may invoke
// it as often as they like; the session-level throttle exists only to avoid
// redundant store writes, not to protect correctness.
type Evaluator struct {
	catalog []Badge
}

// NewEvaluator creates an Evaluator over the built-in catalog.
func NewEvaluator() *Evaluator {
	return &Evaluator{catalog: Catalog()}
}

// NewEvaluatorWithCatalog creates an Evaluator over a custom catalog.
func NewEvaluatorWithCatalog(catalog []Badge) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate returns the badges newly satisfied by the stats that are not in
// the held set, in catalog order. Empty slice when nothing new.
func (e *Evaluator) Evaluate(stats AggregateStats, held map[string]bool) []Badge {
	var newlyEarned []Badge
	for _, b := range e.catalog {
		if held[b.ID] {
			continue
		}
		if satisfies(b.Criteria, stats) {
			newlyEarned = append(newlyEarned, b)
		}
	}
	return newlyEarned
}

// satisfies checks one threshold predicate. Unknown kinds never match, so a
// catalog entry from a newer release degrades to "not yet earnable" instead
// of failing the whole evaluation.
func satisfies(c Criteria, stats AggregateStats) bool {
	switch c.Kind {
	case CriteriaStreakDays:
		return stats.CurrentStreak >= c.Threshold
	case CriteriaCampaignsCompleted:
		return stats.CampaignsCompleted >= c.Threshold
	case CriteriaLevelReached:
		return stats.Level >= c.Threshold
	case CriteriaSkillLevel:
		return stats.SkillLevels[c.Skill] >= c.Threshold
	default:
		return false
	}
}
