package query

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/leaderboard"
	"github.com/training-hub/training-hub/internal/domain/progress"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
	"github.com/training-hub/training-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelFatal})
}

type fakeEnrollmentRepo struct {
	enrollments map[string]*enrollment.Enrollment
}

func (r *fakeEnrollmentRepo) key(userID, campaignID string) string { return userID + "/" + campaignID }

func (r *fakeEnrollmentRepo) GetOrCreate(ctx context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	return r.Get(ctx, userID, campaignID)
}

func (r *fakeEnrollmentRepo) Get(_ context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	e, ok := r.enrollments[r.key(userID, campaignID)]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return e, nil
}

func (r *fakeEnrollmentRepo) Save(_ context.Context, _ *enrollment.Enrollment) error { return nil }
func (r *fakeEnrollmentRepo) ListByUser(_ context.Context, _ string) ([]*enrollment.Enrollment, error) {
	return nil, nil
}
func (r *fakeEnrollmentRepo) CountCompletedByUser(_ context.Context, _ string) (int, error) {
	return 0, nil
}

type fakeCampaignRepo struct {
	byID map[string]*campaign.Campaign
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id string) (*campaign.Campaign, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrCampaignNotFound
	}
	return c, nil
}
func (r *fakeCampaignRepo) List(_ context.Context) ([]*campaign.Campaign, error) { return nil, nil }
func (r *fakeCampaignRepo) Save(_ context.Context, _ *campaign.Campaign) error   { return nil }

type fakeStatsProvider struct {
	snapshot *stats.Snapshot
	err      error
}

func (p *fakeStatsProvider) FetchSnapshot(_ context.Context, _ string) (*stats.Snapshot, error) {
	return p.snapshot, p.err
}

type fakeActivityRepo struct {
	totalXP int
	days    []time.Time
}

func (r *fakeActivityRepo) RecordActivity(_ context.Context, _ string, _ time.Time, _, _ int) error {
	return nil
}
func (r *fakeActivityRepo) ActiveDays(_ context.Context, _ string, since time.Time) ([]time.Time, error) {
	if since.IsZero() {
		return r.days, nil
	}
	var out []time.Time
	for _, d := range r.days {
		if !d.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}
func (r *fakeActivityRepo) TotalXP(_ context.Context, _ string) (int, error) { return r.totalXP, nil }
func (r *fakeActivityRepo) UsersActiveSince(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

type fakeLeaderboardRepo struct {
	entries   []leaderboard.Entry
	self      *leaderboard.Entry
	rebuiltAt time.Time
}

func (r *fakeLeaderboardRepo) Rebuild(_ context.Context, _ []leaderboard.Entry, _ time.Time) error {
	return nil
}
func (r *fakeLeaderboardRepo) Top(_ context.Context, n int) ([]leaderboard.Entry, error) {
	if n > len(r.entries) {
		n = len(r.entries)
	}
	return r.entries[:n], nil
}
func (r *fakeLeaderboardRepo) Page(_ context.Context, page, size int) ([]leaderboard.Entry, error) {
	start := page * size
	if start >= len(r.entries) {
		return nil, nil
	}
	end := start + size
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return r.entries[start:end], nil
}
func (r *fakeLeaderboardRepo) UserRank(_ context.Context, _ string) (*leaderboard.Entry, error) {
	if r.self == nil {
		return nil, shared.ErrUserNotRanked
	}
	return r.self, nil
}
func (r *fakeLeaderboardRepo) Count(_ context.Context) (int, error) { return len(r.entries), nil }
func (r *fakeLeaderboardRepo) RebuiltAt(_ context.Context) (time.Time, error) {
	return r.rebuiltAt, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET CAMPAIGN PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func testCampaign() *campaign.Campaign {
	return &campaign.Campaign{
		ID:    "go-basics",
		Title: "Go Basics",
		Items: []campaign.Item{
			{ID: "m1", VideoID: "v1", QuestionCount: 3},
			{ID: "m2", VideoID: "v2", QuestionCount: 4},
			{ID: "m3", VideoID: "v3", QuestionCount: 3},
			{ID: "m4", VideoID: "v4", QuestionCount: 3},
		},
		Computed: campaign.Computed{TotalItems: 4, TotalXP: 100},
	}
}

func TestGetCampaignProgress_NoEnrollmentIsNotStarted(t *testing.T) {
	h := NewGetCampaignProgressHandler(
		&fakeEnrollmentRepo{enrollments: map[string]*enrollment.Enrollment{}},
		&fakeCampaignRepo{byID: map[string]*campaign.Campaign{"go-basics": testCampaign()}},
		quietLogger(),
	)

	result, err := h.Handle(context.Background(), GetCampaignProgressQuery{UserID: "u1", CampaignID: "go-basics"})

	assert.NoError(t, err)
	assert.Equal(t, progress.StatusNotStarted, result.Status)
	assert.Equal(t, 0, result.ProgressPercent)
	assert.Equal(t, 0, result.NextModuleIndex)
	assert.Len(t, result.Modules, 4)
}

func TestGetCampaignProgress_PartialCampaign(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	e := enrollment.New("u1", "go-basics", now)
	e.MarkModuleFinished("m1", 3, now)
	e.RecordAnswer("m2", 4, now)
	e.RecordAnswer("m2", 4, now)
	e.RecordAnswer("m2", 4, now)
	// m2: video unwatched, 3 of 4 answers -> 3/5 = 0.6

	h := NewGetCampaignProgressHandler(
		&fakeEnrollmentRepo{enrollments: map[string]*enrollment.Enrollment{"u1/go-basics": e}},
		&fakeCampaignRepo{byID: map[string]*campaign.Campaign{"go-basics": testCampaign()}},
		quietLogger(),
	)

	result, err := h.Handle(context.Background(), GetCampaignProgressQuery{UserID: "u1", CampaignID: "go-basics"})

	assert.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, result.Status)
	assert.Equal(t, 40, result.ProgressPercent, "(1 + 0.6 + 0 + 0)/4 = 40%")
	assert.Equal(t, 1, result.CompletedModules)
	assert.Equal(t, 1, result.NextModuleIndex, "continue lands on the first incomplete module")
	assert.InDelta(t, 0.6, result.Modules[1].Ratio, 1e-9)
}

func TestGetCampaignProgress_CompletedForcesHundred(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	e := enrollment.New("u1", "go-basics", now)
	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		e.MarkModuleFinished(id, 3, now)
	}
	e.MarkCampaignCompleted(now)

	h := NewGetCampaignProgressHandler(
		&fakeEnrollmentRepo{enrollments: map[string]*enrollment.Enrollment{"u1/go-basics": e}},
		&fakeCampaignRepo{byID: map[string]*campaign.Campaign{"go-basics": testCampaign()}},
		quietLogger(),
	)

	result, err := h.Handle(context.Background(), GetCampaignProgressQuery{UserID: "u1", CampaignID: "go-basics"})

	assert.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, result.Status)
	assert.Equal(t, 100, result.ProgressPercent)
	assert.Equal(t, 3, result.NextModuleIndex, "continue lands on the last module when done")
	assert.NotNil(t, result.CompletedAt)
}

func TestGetCampaignProgress_UnknownCampaign(t *testing.T) {
	h := NewGetCampaignProgressHandler(
		&fakeEnrollmentRepo{enrollments: map[string]*enrollment.Enrollment{}},
		&fakeCampaignRepo{byID: map[string]*campaign.Campaign{}},
		quietLogger(),
	)

	_, err := h.Handle(context.Background(), GetCampaignProgressQuery{UserID: "u1", CampaignID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrCampaignNotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetUserStats_AuthoritativeWins(t *testing.T) {
	provider := &fakeStatsProvider{snapshot: &stats.Snapshot{
		UserID:  "u1",
		TotalXP: 250,
		Level:   3,
	}}
	h := NewGetUserStatsHandler(provider, &fakeActivityRepo{}, nil, quietLogger())

	result, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1"})

	assert.NoError(t, err)
	assert.True(t, result.Snapshot.Authoritative)
	assert.Equal(t, 250, result.Snapshot.TotalXP)
	assert.Empty(t, result.FallbackReason)
}

func TestGetUserStats_FallbackOnProviderError(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	provider := &fakeStatsProvider{err: errors.New("connection refused")}
	activity := &fakeActivityRepo{
		totalXP: 250,
		days:    []time.Time{now.AddDate(0, 0, -2), now.AddDate(0, 0, -1), now},
	}
	h := NewGetUserStatsHandler(provider, activity, nil, quietLogger()).
		WithClock(func() time.Time { return now })

	result, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1"})

	assert.NoError(t, err)
	assert.False(t, result.Snapshot.Authoritative)
	assert.Equal(t, "connection refused", result.FallbackReason)
	assert.Equal(t, 3, result.Snapshot.Level, "250 XP is level 3")
	assert.Equal(t, 50, result.Snapshot.XPToNextLevel)
	assert.Equal(t, 3, result.Snapshot.CurrentStreak)
	assert.True(t, result.Snapshot.CompletedToday)
}

func TestGetUserStats_FallbackLongestStreakSpansFullHistory(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	// A 90-day run ending 300 days ago plus a fresh 3-day streak. The old
	// run must still be the longest streak, however long ago it happened.
	var days []time.Time
	for i := 0; i < 90; i++ {
		days = append(days, now.AddDate(0, 0, -300-i))
	}
	days = append(days, now.AddDate(0, 0, -2), now.AddDate(0, 0, -1), now)

	activity := &fakeActivityRepo{totalXP: 100, days: days}
	h := NewGetUserStatsHandler(nil, activity, nil, quietLogger()).
		WithClock(func() time.Time { return now })

	result, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1"})

	assert.NoError(t, err)
	assert.Equal(t, 3, result.Snapshot.CurrentStreak)
	assert.Equal(t, 90, result.Snapshot.LongestStreak)
}

func TestGetUserStats_InvalidAuthoritativeSnapshotFallsBack(t *testing.T) {
	provider := &fakeStatsProvider{snapshot: &stats.Snapshot{UserID: "u1", Level: 0}}
	h := NewGetUserStatsHandler(provider, &fakeActivityRepo{}, nil, quietLogger())

	result, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1"})

	assert.NoError(t, err)
	assert.False(t, result.Snapshot.Authoritative)
	assert.NotEmpty(t, result.FallbackReason)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func rankedEntries(n int) []leaderboard.Entry {
	entries := make([]leaderboard.Entry, n)
	for i := range entries {
		entries[i] = leaderboard.Entry{
			UserID:  string(rune('a' + i)),
			TotalXP: (n - i) * 100,
			Rank:    leaderboard.Rank(i + 1),
		}
	}
	return entries
}

func TestGetLeaderboard_FirstPage(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(25)}
	h := NewGetLeaderboardHandler(repo)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 20})

	assert.NoError(t, err)
	assert.Len(t, result.Entries, 20)
	assert.Equal(t, 25, result.TotalCount)
	assert.True(t, result.HasMore)
	assert.Nil(t, result.Self)
}

func TestGetLeaderboard_SelfRowOutsidePage(t *testing.T) {
	self := &leaderboard.Entry{UserID: "u1", Rank: 42, TotalXP: 10}
	repo := &fakeLeaderboardRepo{entries: rankedEntries(25), self: self}
	h := NewGetLeaderboardHandler(repo)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{UserID: "u1", Limit: 10})

	assert.NoError(t, err)
	assert.NotNil(t, result.Self)
	assert.Equal(t, leaderboard.Rank(42), result.Self.Rank)
}

func TestGetLeaderboard_UnrankedSelfIsNil(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(5)}
	h := NewGetLeaderboardHandler(repo)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{UserID: "ghost"})

	assert.NoError(t, err)
	assert.Nil(t, result.Self)
}

func TestGetLeaderboard_NeverRebuiltReadsAsLoading(t *testing.T) {
	repo := &fakeLeaderboardRepo{}
	h := NewGetLeaderboardHandler(repo)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	assert.True(t, shared.IsLoading(err))

	// An empty board that has been rebuilt is a real, empty result.
	repo.rebuiltAt = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	result, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	assert.NoError(t, err)
	assert.Empty(t, result.Entries)
}

func TestGetLeaderboard_NormalizesLimit(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(5)}
	h := NewGetLeaderboardHandler(repo)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 500})
	assert.NoError(t, err)
	assert.Equal(t, 100, result.PageSize)

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Limit: -1})
	assert.Error(t, err)
}
