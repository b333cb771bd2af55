package progress

import (
	"math"

	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the tri-state campaign status for one enrollment.
type Status string

const (
	// StatusNotStarted - no recorded progress.
	StatusNotStarted Status = "not-started"

	// StatusInProgress - some progress, not all modules complete.
	StatusInProgress Status = "in-progress"

	// StatusCompleted - every module complete. Terminal.
	StatusCompleted Status = "completed"
)

// IsValid checks the status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// rank orders statuses for monotonicity checks.
func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving to next is a forward transition.
// Status never moves backward; same-status writes are allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return next.rank() >= s.rank()
}

// ══════════════════════════════════════════════════════════════════════════════
// CAMPAIGN AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// CampaignProgress is the derived display state for one enrollment.
type CampaignProgress struct {
	// ProgressPercent is the rounded completion percentage in [0,100].
	ProgressPercent int `json:"progress_percent"`

	// Status is the derived tri-state status.
	Status Status `json:"status"`

	// CompletedModuleCount is the number of modules with Completed=true,
	// always recomputed from the state map, never from a cached counter.
	CompletedModuleCount int `json:"completed_module_count"`

	// FirstIncompleteIndex is the index of the first module whose state is
	// missing or not completed; -1 when every module is complete.
	FirstIncompleteIndex int `json:"first_incomplete_index"`

	// NextModuleIndex is where the "continue" button should land: the first
	// incomplete module, or the last module when everything is done.
	NextModuleIndex int `json:"next_module_index"`

	// InvalidModules counts modules whose recorded state was rejected as
	// invalid (zero question target). Their ratio contribution is 0.
	InvalidModules int `json:"invalid_modules,omitempty"`
}

// Aggregator combines per-module ratios into campaign-level display state.
// The zero value is not usable; construct with NewAggregator.
type Aggregator struct {
	ratio RatioFunc
}

// NewAggregator creates an Aggregator using the canonical Ratio function.
func NewAggregator() *Aggregator {
	return &Aggregator{ratio: Ratio}
}

// NewAggregatorWithRatio creates an Aggregator with a custom ratio function.
// Tests use this; production code has no reason to.
func NewAggregatorWithRatio(fn RatioFunc) *Aggregator {
	return &Aggregator{ratio: fn}
}

// Aggregate derives campaign completion state from the ordered module list,
// the per-module state map, and the enrollment's stored status.
//
// Status rules are evaluated in order, first match wins:
//  1. completed  - stored status says completed, or every module is complete
//     (the stored status may lag behind the map under eventual consistency;
//     the map wins and ProgressPercent is forced to 100).
//  2. in-progress - stored status says in-progress, or any nonzero percent,
//     or any recorded module state.
//  3. not-started otherwise.
//
// A campaign with zero modules is a valid edge case, not an error: percent
// is 0 and the status can never be completed. A stored "completed" status on
// a zero-module campaign degrades to in-progress rather than claiming a
// completion that has no modules to back it.
func (a *Aggregator) Aggregate(moduleIDs []string, states map[string]*ModuleState, storedStatus Status) CampaignProgress {
	total := len(moduleIDs)

	result := CampaignProgress{
		FirstIncompleteIndex: -1,
		NextModuleIndex:      0,
	}

	var ratioSum float64
	for i, id := range moduleIDs {
		state := states[id]

		r, err := a.ratio(state)
		if err != nil {
			result.InvalidModules++
			r = 0
		}
		ratioSum += r

		if state != nil && state.Completed {
			result.CompletedModuleCount++
		} else if result.FirstIncompleteIndex == -1 {
			result.FirstIncompleteIndex = i
		}
	}

	if total > 0 {
		raw := shared.Percent(math.Round(ratioSum / float64(total) * 100))
		result.ProgressPercent = raw.Clamp().Int()
	}

	if result.FirstIncompleteIndex == -1 {
		result.NextModuleIndex = total - 1
		if result.NextModuleIndex < 0 {
			result.NextModuleIndex = 0
		}
	} else {
		result.NextModuleIndex = result.FirstIncompleteIndex
	}

	allComplete := total > 0 && result.CompletedModuleCount >= total

	switch {
	case total > 0 && (storedStatus == StatusCompleted || allComplete):
		result.Status = StatusCompleted
		result.ProgressPercent = 100
	case storedStatus == StatusInProgress || storedStatus == StatusCompleted ||
		result.ProgressPercent > 0 || len(states) > 0:
		result.Status = StatusInProgress
	default:
		result.Status = StatusNotStarted
	}

	return result
}

// CompletedCount recomputes the completed-module count from the state map.
// This is the authoritative count; any cached counter is a hint only.
func CompletedCount(states map[string]*ModuleState) int {
	count := 0
	for _, s := range states {
		if s != nil && s.Completed {
			count++
		}
	}
	return count
}
