// Package progress contains the module and campaign completion math for the
// training dashboard. Everything in this package is a pure function of its
// inputs: every surface that displays a completion number calls in here, so
// the same snapshot always yields the same derived values no matter which
// view asked. This is the core business logic - no external dependencies.
package progress

import (
	"github.com/training-hub/training-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MODULE PROGRESS STATE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultQuestionTarget is the fallback quiz size used when a module's actual
// question count is unknown. This is the single fallback in the codebase;
// nothing else may invent its own default.
const DefaultQuestionTarget = 3

// ModuleState is the recorded state of one module within one enrollment.
// It is append-only: fields move forward (false->true, counts grow) and the
// record is never deleted.
type ModuleState struct {
	// VideoFinished reports whether the learner watched the module video
	// to the end.
	VideoFinished bool `json:"video_finished"`

	// QuestionsAnswered is the number of quiz answers recorded. Duplicate
	// submissions still increment this, which is why ratio math caps it.
	QuestionsAnswered int `json:"questions_answered"`

	// QuestionTarget is the number of quiz questions the module carries.
	// Always >= 1 in valid data.
	QuestionTarget int `json:"question_target"`

	// Completed reports whether the module has been explicitly marked done.
	Completed bool `json:"completed"`
}

// EffectiveQuestionTarget returns the question target to use for a module:
// the known question count when positive, otherwise DefaultQuestionTarget.
func EffectiveQuestionTarget(knownQuestionCount int) int {
	if knownQuestionCount >= 1 {
		return knownQuestionCount
	}
	return DefaultQuestionTarget
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE RATIO
// ══════════════════════════════════════════════════════════════════════════════

// RatioFunc computes a completion ratio for one module state.
type RatioFunc func(state *ModuleState) (float64, error)

// Ratio computes the fractional completion credit for a single module:
//
//	r = (videoFinished + min(questionsAnswered, questionTarget)) / (questionTarget + 1)
//
// Finishing the video is worth exactly one question's credit, and answer
// credit is capped at the target so duplicate submissions cannot push r
// above 1. A nil state means "not started" and yields 0.
//
// A non-positive question target is invalid module data: the function
// returns shared.ErrInvalidModuleConfig together with a safe ratio of 0,
// never a NaN or a panic.
func Ratio(state *ModuleState) (float64, error) {
	if state == nil {
		return 0, nil
	}
	if state.QuestionTarget < 1 {
		return 0, shared.ErrInvalidModuleConfig
	}

	answered := state.QuestionsAnswered
	if answered < 0 {
		answered = 0
	}
	if answered > state.QuestionTarget {
		answered = state.QuestionTarget
	}

	credit := answered
	if state.VideoFinished {
		credit++
	}

	return float64(credit) / float64(state.QuestionTarget+1), nil
}

// IsComplete reports whether the state satisfies its own targets, regardless
// of the Completed flag. Used to detect flag/state drift.
func (s *ModuleState) IsComplete() bool {
	if s == nil {
		return false
	}
	return s.VideoFinished && s.QuestionsAnswered >= s.QuestionTarget && s.QuestionTarget >= 1
}
