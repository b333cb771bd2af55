package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeLevel_SpecExample(t *testing.T) {
	got := ComputeLevel(250)

	assert.Equal(t, 3, got.Level)
	assert.Equal(t, 50, got.XPInCurrentLevel)
	assert.Equal(t, 50, got.XPToNextLevel)
	assert.Equal(t, TitleBeginner, got.Title)
}

func TestComputeLevel_ZeroXPIsLevelOne(t *testing.T) {
	got := ComputeLevel(0)

	assert.Equal(t, 1, got.Level)
	assert.Equal(t, 0, got.XPInCurrentLevel)
	assert.Equal(t, XPPerLevel, got.XPToNextLevel)
}

func TestComputeLevel_NegativeXPClamped(t *testing.T) {
	assert.Equal(t, ComputeLevel(0), ComputeLevel(-40))
}

func TestComputeLevel_ExactBoundary(t *testing.T) {
	// 100 XP is the first instant of level 2, with a full level ahead.
	got := ComputeLevel(100)

	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 0, got.XPInCurrentLevel)
	assert.Equal(t, XPPerLevel, got.XPToNextLevel)
}

func TestComputeLevel_InvariantSum(t *testing.T) {
	for xp := 0; xp <= 2500; xp += 37 {
		got := ComputeLevel(xp)
		assert.Equal(t, XPPerLevel, got.XPInCurrentLevel+got.XPToNextLevel)
		assert.Equal(t, xp, (got.Level-1)*XPPerLevel+got.XPInCurrentLevel)
	}
}

func TestTitleForLevel(t *testing.T) {
	cases := []struct {
		level int
		title string
	}{
		{1, TitleBeginner},
		{5, TitleBeginner},
		{6, TitleLearner},
		{15, TitleLearner},
		{16, TitlePractitioner},
		{30, TitlePractitioner},
		{31, TitleExpert},
		{50, TitleExpert},
		{51, TitleMaster},
		{120, TitleMaster},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.title, TitleForLevel(tc.level), "level %d", tc.level)
	}
}

func TestComputeSnapshot_FallbackAgreesWithFormulas(t *testing.T) {
	today := testToday()
	set := daysBack(today, 0, 1, 2)

	snap := ComputeSnapshot("user-1", 250, set, today, 2)

	level := ComputeLevel(250)
	streak := ComputeStreak(set, today)

	assert.Equal(t, level.Level, snap.Level)
	assert.Equal(t, level.XPInCurrentLevel, snap.XPInCurrentLevel)
	assert.Equal(t, level.XPToNextLevel, snap.XPToNextLevel)
	assert.Equal(t, level.Title, snap.Title)
	assert.Equal(t, streak.Current, snap.CurrentStreak)
	assert.Equal(t, streak.Days, snap.StreakDays)
	assert.Equal(t, 2, snap.LastCelebratedLevel)
	assert.False(t, snap.Authoritative)
	assert.True(t, snap.IsValid())
}

func TestSnapshot_IsValid(t *testing.T) {
	snap := Snapshot{TotalXP: 10, Level: 1, CurrentStreak: 2, LongestStreak: 1, ComputedAt: time.Now()}
	assert.False(t, snap.IsValid(), "longest streak below current streak is invalid")

	snap.LongestStreak = 2
	assert.True(t, snap.IsValid())
}
