package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/training-hub/training-hub/internal/domain/shared"
)

func TestRatio_NilStateMeansNotStarted(t *testing.T) {
	r, err := Ratio(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, r)
}

func TestRatio_SpecExample(t *testing.T) {
	// video done + 2 of 3 answers -> (1+2)/4 = 0.75
	r, err := Ratio(&ModuleState{VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 3})
	assert.NoError(t, err)
	assert.Equal(t, 0.75, r)
}

func TestRatio_CapsDuplicateAnswers(t *testing.T) {
	r, err := Ratio(&ModuleState{VideoFinished: true, QuestionsAnswered: 17, QuestionTarget: 3})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, r)
}

func TestRatio_NegativeAnsweredClampedToZero(t *testing.T) {
	r, err := Ratio(&ModuleState{VideoFinished: false, QuestionsAnswered: -4, QuestionTarget: 3})
	assert.NoError(t, err)
	assert.Equal(t, 0.0, r)
}

func TestRatio_ZeroTargetIsInvalidConfig(t *testing.T) {
	r, err := Ratio(&ModuleState{VideoFinished: true, QuestionsAnswered: 1, QuestionTarget: 0})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidModuleConfig))
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, 0.0, r, "invalid config must yield a safe ratio of 0")
}

func TestRatio_AlwaysWithinUnitInterval(t *testing.T) {
	for target := 1; target <= 10; target++ {
		for answered := 0; answered <= target+5; answered++ {
			for _, video := range []bool{false, true} {
				r, err := Ratio(&ModuleState{VideoFinished: video, QuestionsAnswered: answered, QuestionTarget: target})
				assert.NoError(t, err)
				assert.GreaterOrEqual(t, r, 0.0)
				assert.LessOrEqual(t, r, 1.0)
			}
		}
	}
}

func TestRatio_MonotonicInAnswersAndVideo(t *testing.T) {
	const target = 5
	prev := -1.0
	for answered := 0; answered <= target+3; answered++ {
		r, err := Ratio(&ModuleState{QuestionsAnswered: answered, QuestionTarget: target})
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, r, prev, "ratio must not decrease as answers grow")
		prev = r

		withVideo, err := Ratio(&ModuleState{VideoFinished: true, QuestionsAnswered: answered, QuestionTarget: target})
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, withVideo, r, "finishing the video must never lower the ratio")
	}
}

func TestEffectiveQuestionTarget(t *testing.T) {
	assert.Equal(t, 7, EffectiveQuestionTarget(7))
	assert.Equal(t, 1, EffectiveQuestionTarget(1))
	assert.Equal(t, DefaultQuestionTarget, EffectiveQuestionTarget(0))
	assert.Equal(t, DefaultQuestionTarget, EffectiveQuestionTarget(-2))
}

func TestModuleState_IsComplete(t *testing.T) {
	assert.False(t, (*ModuleState)(nil).IsComplete())
	assert.False(t, (&ModuleState{VideoFinished: true, QuestionsAnswered: 2, QuestionTarget: 3}).IsComplete())
	assert.False(t, (&ModuleState{VideoFinished: false, QuestionsAnswered: 3, QuestionTarget: 3}).IsComplete())
	assert.True(t, (&ModuleState{VideoFinished: true, QuestionsAnswered: 3, QuestionTarget: 3}).IsComplete())
	// zero target can never be complete
	assert.False(t, (&ModuleState{VideoFinished: true, QuestionsAnswered: 3, QuestionTarget: 0}).IsComplete())
}
