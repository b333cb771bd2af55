package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/training-hub/training-hub/internal/domain/leaderboard"
	"github.com/training-hub/training-hub/internal/domain/shared"
)

func quietSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeActivityRepo struct {
	activeUsers []string
	xpByUser    map[string]int
	daysByUser  map[string][]time.Time
	xpErrFor    string
}

func (f *fakeActivityRepo) RecordActivity(ctx context.Context, userID string, day time.Time, xpDelta, modulesDelta int) error {
	return nil
}

func (f *fakeActivityRepo) ActiveDays(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	return f.daysByUser[userID], nil
}

func (f *fakeActivityRepo) TotalXP(ctx context.Context, userID string) (int, error) {
	if userID == f.xpErrFor {
		return 0, errors.New("boom")
	}
	return f.xpByUser[userID], nil
}

func (f *fakeActivityRepo) UsersActiveSince(ctx context.Context, since time.Time) ([]string, error) {
	return f.activeUsers, nil
}

type fakeLeaderboardRepo struct {
	ranks     map[string]leaderboard.Rank
	rebuilt   []leaderboard.Entry
	rebuiltAt time.Time
}

func (f *fakeLeaderboardRepo) Rebuild(ctx context.Context, entries []leaderboard.Entry, at time.Time) error {
	f.rebuilt = entries
	f.rebuiltAt = at
	return nil
}

func (f *fakeLeaderboardRepo) Top(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeLeaderboardRepo) Page(ctx context.Context, page, size int) ([]leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeLeaderboardRepo) UserRank(ctx context.Context, userID string) (*leaderboard.Entry, error) {
	rank, ok := f.ranks[userID]
	if !ok {
		return nil, shared.ErrUserNotRanked
	}
	return &leaderboard.Entry{UserID: userID, Rank: rank}, nil
}

func (f *fakeLeaderboardRepo) Count(ctx context.Context) (int, error) {
	return len(f.ranks), nil
}

func (f *fakeLeaderboardRepo) RebuiltAt(ctx context.Context) (time.Time, error) {
	return f.rebuiltAt, nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) ofType(t shared.EventType) []shared.Event {
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestRebuildLeaderboardJob_RanksByXPDescending(t *testing.T) {
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-a", "user-b", "user-c"},
		xpByUser:    map[string]int{"user-a": 150, "user-b": 500, "user-c": 300},
	}
	board := &fakeLeaderboardRepo{ranks: map[string]leaderboard.Rank{}}

	job := NewRebuildLeaderboardJob(activity, board, nil, quietSlog(), DefaultRebuildLeaderboardConfig())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, board.rebuilt, 3)
	assert.Equal(t, "user-b", board.rebuilt[0].UserID)
	assert.Equal(t, leaderboard.Rank(1), board.rebuilt[0].Rank)
	assert.Equal(t, 6, board.rebuilt[0].Level)
	assert.Equal(t, "user-c", board.rebuilt[1].UserID)
	assert.Equal(t, "user-a", board.rebuilt[2].UserID)
	assert.Equal(t, leaderboard.Rank(3), board.rebuilt[2].Rank)
}

func TestRebuildLeaderboardJob_TiesBreakByUserID(t *testing.T) {
	activity := &fakeActivityRepo{
		activeUsers: []string{"zeta", "alpha"},
		xpByUser:    map[string]int{"zeta": 100, "alpha": 100},
	}
	board := &fakeLeaderboardRepo{ranks: map[string]leaderboard.Rank{}}

	job := NewRebuildLeaderboardJob(activity, board, nil, quietSlog(), DefaultRebuildLeaderboardConfig())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, board.rebuilt, 2)
	assert.Equal(t, "alpha", board.rebuilt[0].UserID)
	assert.Equal(t, "zeta", board.rebuilt[1].UserID)
}

func TestRebuildLeaderboardJob_SkipsFailingUserAndRanksRest(t *testing.T) {
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-a", "user-b"},
		xpByUser:    map[string]int{"user-a": 100, "user-b": 200},
		xpErrFor:    "user-a",
	}
	board := &fakeLeaderboardRepo{ranks: map[string]leaderboard.Rank{}}

	job := NewRebuildLeaderboardJob(activity, board, nil, quietSlog(), DefaultRebuildLeaderboardConfig())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, board.rebuilt, 1)
	assert.Equal(t, "user-b", board.rebuilt[0].UserID)
}

func TestRebuildLeaderboardJob_AnnouncesBigMoves(t *testing.T) {
	activity := &fakeActivityRepo{
		activeUsers: []string{"climber", "steady"},
		xpByUser:    map[string]int{"climber": 900, "steady": 100},
	}
	// climber goes 5 -> 1, a move of 4. steady stays at rank 2 and must
	// stay silent.
	board := &fakeLeaderboardRepo{ranks: map[string]leaderboard.Rank{
		"climber": 5,
		"steady":  2,
	}}
	pub := &capturingPublisher{}

	job := NewRebuildLeaderboardJob(activity, board, pub, quietSlog(), DefaultRebuildLeaderboardConfig())
	require.NoError(t, job.Run(context.Background()))

	changed := pub.ofType(shared.EventRankChanged)
	require.Len(t, changed, 1)
	event, ok := changed[0].(shared.RankChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "climber", event.UserID)
	assert.Equal(t, 5, event.OldRank)
	assert.Equal(t, 1, event.NewRank)
	assert.Equal(t, 4, event.RankChange)
}

func TestRebuildLeaderboardJob_SmallMovesStaySilent(t *testing.T) {
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-a", "user-b"},
		xpByUser:    map[string]int{"user-a": 300, "user-b": 200},
	}
	// Both move by 1 inside the top ten they already occupied.
	board := &fakeLeaderboardRepo{ranks: map[string]leaderboard.Rank{
		"user-a": 2,
		"user-b": 1,
	}}
	pub := &capturingPublisher{}

	job := NewRebuildLeaderboardJob(activity, board, pub, quietSlog(), DefaultRebuildLeaderboardConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, pub.ofType(shared.EventRankChanged))
}

// ══════════════════════════════════════════════════════════════════════════════
// DETECT STREAK RISK
// ══════════════════════════════════════════════════════════════════════════════

func eveningOf(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 19, 30, 0, 0, time.UTC)
}

func TestDetectStreakRiskJob_WarnsStreakWithoutActivityToday(t *testing.T) {
	now := eveningOf(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-1"},
		daysByUser: map[string][]time.Time{
			"user-1": {
				now.AddDate(0, 0, -3),
				now.AddDate(0, 0, -2),
				now.AddDate(0, 0, -1),
			},
		},
	}
	pub := &capturingPublisher{}

	job := NewDetectStreakRiskJob(activity, pub, nil, quietSlog(), time.UTC, DefaultDetectStreakRiskConfig()).
		WithClock(func() time.Time { return now })
	require.NoError(t, job.Run(context.Background()))

	warnings := pub.ofType(shared.EventStreakAtRisk)
	require.Len(t, warnings, 1)
	event, ok := warnings[0].(shared.StreakAtRiskEvent)
	require.True(t, ok)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, 3, event.CurrentStreak)
}

func TestDetectStreakRiskJob_NoWarningBeforeCutoff(t *testing.T) {
	now := time.Date(2025, 3, 14, 17, 59, 0, 0, time.UTC)
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-1"},
		daysByUser: map[string][]time.Time{
			"user-1": {now.AddDate(0, 0, -1)},
		},
	}
	pub := &capturingPublisher{}

	job := NewDetectStreakRiskJob(activity, pub, nil, quietSlog(), time.UTC, DefaultDetectStreakRiskConfig()).
		WithClock(func() time.Time { return now })
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, pub.events)
}

func TestDetectStreakRiskJob_ActivityTodayMeansNoRisk(t *testing.T) {
	now := eveningOf(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-1"},
		daysByUser: map[string][]time.Time{
			"user-1": {now.AddDate(0, 0, -1), now},
		},
	}
	pub := &capturingPublisher{}

	job := NewDetectStreakRiskJob(activity, pub, nil, quietSlog(), time.UTC, DefaultDetectStreakRiskConfig()).
		WithClock(func() time.Time { return now })
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, pub.events)
}

func TestDetectStreakRiskJob_WarnsOncePerDay(t *testing.T) {
	now := eveningOf(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-1"},
		daysByUser: map[string][]time.Time{
			"user-1": {now.AddDate(0, 0, -1)},
		},
	}
	pub := &capturingPublisher{}

	job := NewDetectStreakRiskJob(activity, pub, nil, quietSlog(), time.UTC, DefaultDetectStreakRiskConfig()).
		WithClock(func() time.Time { return now })

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, pub.events, 1, "same scan on the same day stays silent")

	// Next evening the streak is at risk again and the warning re-arms.
	nextEvening := eveningOf(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	activity.daysByUser["user-1"] = append(activity.daysByUser["user-1"], now)
	job.WithClock(func() time.Time { return nextEvening })
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, pub.events, 2)
}

// sharedThrottle stands in for the redis guard two instances would share.
type sharedThrottle struct {
	taken map[string]bool
}

func (t *sharedThrottle) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if t.taken[key] {
		return false, nil
	}
	t.taken[key] = true
	return true, nil
}

func TestDetectStreakRiskJob_SharedThrottleGuardsAcrossInstances(t *testing.T) {
	now := eveningOf(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	activity := &fakeActivityRepo{
		activeUsers: []string{"user-1"},
		daysByUser: map[string][]time.Time{
			"user-1": {now.AddDate(0, 0, -1)},
		},
	}
	pub := &capturingPublisher{}
	guard := &sharedThrottle{taken: make(map[string]bool)}

	// Two instances scanning the same learner, as in a multi-node deploy.
	first := NewDetectStreakRiskJob(activity, pub, guard, quietSlog(), time.UTC, DefaultDetectStreakRiskConfig()).
		WithClock(func() time.Time { return now })
	second := NewDetectStreakRiskJob(activity, pub, guard, quietSlog(), time.UTC, DefaultDetectStreakRiskConfig()).
		WithClock(func() time.Time { return now })

	require.NoError(t, first.Run(context.Background()))
	require.NoError(t, second.Run(context.Background()))

	assert.Len(t, pub.ofType(shared.EventStreakAtRisk), 1,
		"one warning per learner per day, whichever instance scans first")
}
