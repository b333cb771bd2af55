package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func modules(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	return ids
}

func completedState(target int) *ModuleState {
	return &ModuleState{VideoFinished: true, QuestionsAnswered: target, QuestionTarget: target, Completed: true}
}

func TestAggregate_SpecExample(t *testing.T) {
	// per-module ratios [1, 0.75, 0, 0] -> round(1.75/4*100) = 44, in-progress
	ids := modules(4)
	states := map[string]*ModuleState{
		ids[0]: completedState(3),
		ids[1]: {VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 3},
	}

	got := NewAggregator().Aggregate(ids, states, StatusInProgress)

	assert.Equal(t, 44, got.ProgressPercent)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 1, got.CompletedModuleCount)
	assert.Equal(t, 1, got.FirstIncompleteIndex)
	assert.Equal(t, 1, got.NextModuleIndex)
}

func TestAggregate_EmptyStatesIsNotStarted(t *testing.T) {
	got := NewAggregator().Aggregate(modules(3), nil, StatusNotStarted)

	assert.Equal(t, 0, got.ProgressPercent)
	assert.Equal(t, StatusNotStarted, got.Status)
	assert.Equal(t, 0, got.CompletedModuleCount)
	assert.Equal(t, 0, got.FirstIncompleteIndex)
	assert.Equal(t, 0, got.NextModuleIndex)
}

func TestAggregate_AllModulesCompleteWinsOverStaleStatus(t *testing.T) {
	// The stored status has not caught up yet; the map decides.
	ids := modules(2)
	states := map[string]*ModuleState{
		ids[0]: completedState(3),
		ids[1]: completedState(2),
	}

	got := NewAggregator().Aggregate(ids, states, StatusInProgress)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
	assert.Equal(t, 2, got.CompletedModuleCount)
	assert.Equal(t, -1, got.FirstIncompleteIndex)
	assert.Equal(t, 1, got.NextModuleIndex, "next module lands on the last module when done")
}

func TestAggregate_StoredCompletedForcesHundred(t *testing.T) {
	// Upstream says completed even though the map still looks partial;
	// rule 1 matches first and percent is forced to 100.
	ids := modules(3)
	states := map[string]*ModuleState{
		ids[0]: completedState(3),
	}

	got := NewAggregator().Aggregate(ids, states, StatusCompleted)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercent)
}

func TestAggregate_NonzeroProgressNeverNotStarted(t *testing.T) {
	ids := modules(5)
	states := map[string]*ModuleState{
		ids[3]: {VideoFinished: false, QuestionsAnswered: 1, QuestionTarget: 3},
	}

	got := NewAggregator().Aggregate(ids, states, StatusNotStarted)

	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 0, got.FirstIncompleteIndex)
}

func TestAggregate_RecordedStateWithZeroRatioStillInProgress(t *testing.T) {
	// A state map entry with no credit yet must still lift the enrollment
	// out of not-started.
	ids := modules(2)
	states := map[string]*ModuleState{
		ids[0]: {QuestionTarget: 3},
	}

	got := NewAggregator().Aggregate(ids, states, StatusNotStarted)

	assert.Equal(t, 0, got.ProgressPercent)
	assert.Equal(t, StatusInProgress, got.Status)
}

func TestAggregate_ZeroModulesNeverCompleted(t *testing.T) {
	got := NewAggregator().Aggregate(nil, nil, StatusCompleted)

	assert.Equal(t, 0, got.ProgressPercent)
	assert.NotEqual(t, StatusCompleted, got.Status)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 0, got.NextModuleIndex)

	got = NewAggregator().Aggregate(nil, nil, StatusNotStarted)
	assert.Equal(t, StatusNotStarted, got.Status)
}

func TestAggregate_InvalidModuleContributesZero(t *testing.T) {
	ids := modules(2)
	states := map[string]*ModuleState{
		ids[0]: completedState(3),
		ids[1]: {VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 0}, // invalid
	}

	got := NewAggregator().Aggregate(ids, states, StatusInProgress)

	assert.Equal(t, 50, got.ProgressPercent)
	assert.Equal(t, 1, got.InvalidModules)
	assert.Equal(t, StatusInProgress, got.Status)
}

func TestAggregate_PercentBoundsAndCompletionEquivalence(t *testing.T) {
	ids := modules(6)
	states := map[string]*ModuleState{}
	agg := NewAggregator()

	for i, id := range ids {
		states[id] = completedState(2)
		got := agg.Aggregate(ids, states, StatusInProgress)

		assert.GreaterOrEqual(t, got.ProgressPercent, 0)
		assert.LessOrEqual(t, got.ProgressPercent, 100)

		if i == len(ids)-1 {
			assert.Equal(t, 100, got.ProgressPercent)
			assert.Equal(t, StatusCompleted, got.Status)
		} else {
			assert.NotEqual(t, StatusCompleted, got.Status)
			assert.Less(t, got.ProgressPercent, 100)
		}
	}
}

func TestAggregate_IdempotentOnRedelivery(t *testing.T) {
	// Same snapshot, same numbers - no matter how many times a view recomputes.
	ids := modules(4)
	states := map[string]*ModuleState{
		ids[0]: completedState(3),
		ids[2]: {VideoFinished: true, QuestionTarget: 4},
	}
	agg := NewAggregator()

	first := agg.Aggregate(ids, states, StatusInProgress)
	second := agg.Aggregate(ids, states, StatusInProgress)
	assert.Equal(t, first, second)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusNotStarted.CanTransitionTo(StatusInProgress))
	assert.True(t, StatusInProgress.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusCompleted.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusInProgress))
	assert.False(t, StatusInProgress.CanTransitionTo(StatusNotStarted))
}

func TestCompletedCount(t *testing.T) {
	states := map[string]*ModuleState{
		"a": completedState(3),
		"b": {VideoFinished: true, QuestionTarget: 3},
		"c": nil,
		"d": completedState(1),
	}
	assert.Equal(t, 2, CompletedCount(states))
	assert.Equal(t, 0, CompletedCount(nil))
}
