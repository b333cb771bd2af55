package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/training-hub/training-hub/internal/application/command"
	"github.com/training-hub/training-hub/internal/application/query"
	"github.com/training-hub/training-hub/internal/domain/badge"
	"github.com/training-hub/training-hub/internal/domain/campaign"
	"github.com/training-hub/training-hub/internal/domain/celebration"
	"github.com/training-hub/training-hub/internal/domain/enrollment"
	"github.com/training-hub/training-hub/internal/domain/leaderboard"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/infrastructure/subscription"
	"github.com/training-hub/training-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeEnrollmentRepo struct {
	enrollments map[string]*enrollment.Enrollment
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{enrollments: make(map[string]*enrollment.Enrollment)}
}

func (r *fakeEnrollmentRepo) key(userID, campaignID string) string { return userID + "/" + campaignID }

func (r *fakeEnrollmentRepo) GetOrCreate(_ context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	if e, ok := r.enrollments[r.key(userID, campaignID)]; ok {
		return e, nil
	}
	e := enrollment.New(userID, campaignID, time.Now())
	r.enrollments[r.key(userID, campaignID)] = e
	return e, nil
}

func (r *fakeEnrollmentRepo) Get(_ context.Context, userID, campaignID string) (*enrollment.Enrollment, error) {
	e, ok := r.enrollments[r.key(userID, campaignID)]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return e, nil
}

func (r *fakeEnrollmentRepo) Save(_ context.Context, e *enrollment.Enrollment) error {
	r.enrollments[r.key(e.UserID, e.CampaignID)] = e
	return nil
}

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

type fakeLeaderboardRepo struct {
	entries []leaderboard.Entry
}

func (r *fakeLeaderboardRepo) Rebuild(_ context.Context, entries []leaderboard.Entry, _ time.Time) error {
	r.entries = entries
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

func (r *fakeLeaderboardRepo) UserRank(_ context.Context, userID string) (*leaderboard.Entry, error) {
	for i := range r.entries {
		if r.entries[i].UserID == userID {
			return &r.entries[i], nil
		}
	}
	return nil, shared.ErrUserNotRanked
}

func (r *fakeLeaderboardRepo) Count(_ context.Context) (int, error) { return len(r.entries), nil }

func (r *fakeLeaderboardRepo) RebuiltAt(_ context.Context) (time.Time, error) {
	return time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC), nil
}

type fakeActivityRepo struct {
	totalXP int
	days    []time.Time
}

func (r *fakeActivityRepo) RecordActivity(_ context.Context, _ string, _ time.Time, _, _ int) error {
	return nil
}
func (r *fakeActivityRepo) ActiveDays(_ context.Context, _ string, _ time.Time) ([]time.Time, error) {
	return r.days, nil
}
func (r *fakeActivityRepo) TotalXP(_ context.Context, _ string) (int, error) { return r.totalXP, nil }
func (r *fakeActivityRepo) UsersActiveSince(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

type fakeBadgeRepo struct {
	earned []badge.Earned
}

func (r *fakeBadgeRepo) HeldBadgeIDs(_ context.Context, _ string) (map[string]bool, error) {
	held := make(map[string]bool, len(r.earned))
	for _, e := range r.earned {
		held[e.BadgeID] = true
	}
	return held, nil
}

func (r *fakeBadgeRepo) EarnedBadges(_ context.Context, _ string) ([]badge.Earned, error) {
	return r.earned, nil
}

func (r *fakeBadgeRepo) Award(_ context.Context, userID, badgeID string, earnedAt time.Time) error {
	r.earned = append(r.earned, badge.Earned{BadgeID: badgeID, UserID: userID, EarnedAt: earnedAt})
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(shared.Event) error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

func testCampaign() *campaign.Campaign {
	return &campaign.Campaign{
		ID:    "go-basics",
		Title: "Go Basics",
		Items: []campaign.Item{
			{ID: "m1", VideoID: "v1", QuestionCount: 3},
			{ID: "m2", VideoID: "v2", QuestionCount: 4},
		},
		Computed: campaign.Computed{TotalItems: 2, TotalXP: 50},
	}
}

func newTestServer(t *testing.T) (*Server, *fakeLeaderboardRepo) {
	t.Helper()

	quiet := logger.Discard()
	enrollments := newFakeEnrollmentRepo()
	campaigns := &fakeCampaignRepo{byID: map[string]*campaign.Campaign{"go-basics": testCampaign()}}
	activity := &fakeActivityRepo{totalXP: 250}
	board := &fakeLeaderboardRepo{entries: []leaderboard.Entry{
		{UserID: "user-1", Rank: 1, TotalXP: 500, Level: 6},
		{UserID: "user-2", Rank: 2, TotalXP: 250, Level: 3},
	}}

	deps := Dependencies{
		RecordModuleFinished: command.NewRecordModuleFinishedHandler(enrollments, campaigns, noopPublisher{}),
		RecordAnswer:         command.NewRecordAnswerHandler(enrollments, campaigns, noopPublisher{}),
		RecalculateBadges:    command.NewRecalculateBadgesHandler(&fakeBadgeRepo{}, enrollments, activity, nil, noopPublisher{}),
		CampaignProgress:     query.NewGetCampaignProgressHandler(enrollments, campaigns, quiet),
		UserStats:            query.NewGetUserStatsHandler(nil, activity, nil, quiet),
		Leaderboard:          query.NewGetLeaderboardHandler(board),
		BadgeRepo:            &fakeBadgeRepo{earned: []badge.Earned{{BadgeID: "first-steps", UserID: "user-1"}}},
		Hub:                  subscription.NewHub(),
		CelebrationLedger:    celebration.NewMemoryLedger(),
		Logger:               quiet,
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, deps), board
}

func doRequest(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeData(t, rec)["status"])
}

func TestServer_CampaignProgress_NotEnrolledIsNotStarted(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/campaigns/go-basics/progress?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, "not-started", data["status"])
	assert.Equal(t, float64(0), data["progress_percent"])
	assert.Equal(t, float64(2), data["total_modules"])
}

func TestServer_CampaignProgress_RequiresUserID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/campaigns/go-basics/progress", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CampaignProgress_UnknownCampaign(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/campaigns/missing/progress?user_id=user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ModuleFinished(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/progress/module-finished", moduleFinishedRequest{
		UserID:     "user-1",
		CampaignID: "go-basics",
		ModuleID:   "m1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, true, data["Success"])
	assert.Equal(t, float64(1), data["CompletedModules"])

	// The progress view reflects the write.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/campaigns/go-basics/progress?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in-progress", decodeData(t, rec)["status"])
}

func TestServer_ModuleFinished_ValidationFails(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/progress/module-finished", moduleFinishedRequest{
		UserID: "user-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_UserStats_FallbackComputation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/user-1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	snapshot, ok := data["snapshot"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(250), snapshot["total_xp"])
	assert.Equal(t, float64(3), snapshot["level"])
	assert.Equal(t, false, snapshot["authoritative"])
}

func TestServer_Leaderboard(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/leaderboard?limit=10&user_id=user-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	entries, ok := data["entries"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 2)

	self, ok := data["self"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "user-2", self["user_id"])
	assert.Equal(t, float64(2), self["rank"])
}

func TestServer_Badges(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/user-1/badges", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, float64(1), data["count"])
}

func TestServer_RequestIDPropagates(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
}
