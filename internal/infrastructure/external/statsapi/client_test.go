package statsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serviceStub(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(DefaultClientConfig(srv.URL))
}

func TestClient_FetchSnapshot(t *testing.T) {
	client := serviceStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/user-1/stats", r.URL.Path)

		_ = json.NewEncoder(w).Encode(SnapshotDTO{
			UserID:         "user-1",
			TotalXP:        250,
			Level:          3,
			CurrentStreak:  4,
			LongestStreak:  9,
			WeekActivity:   []bool{true, true, false, true, true, false, false},
			CompletedToday: true,
			UpdatedAt:      time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		})
	})

	snapshot, err := client.FetchSnapshot(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 250, snapshot.TotalXP)
	assert.Equal(t, 3, snapshot.Level)
	assert.Equal(t, 50, snapshot.XPInCurrentLevel)
	assert.Equal(t, 50, snapshot.XPToNextLevel)
	assert.Equal(t, 4, snapshot.CurrentStreak)
	assert.True(t, snapshot.StreakDays[0])
	assert.False(t, snapshot.StreakDays[2])
	assert.True(t, snapshot.CompletedToday)
	assert.False(t, snapshot.Authoritative, "the query layer flips this after validation")
}

func TestClient_FetchSnapshot_LevelIsRecomputedFromXP(t *testing.T) {
	client := serviceStub(t, func(w http.ResponseWriter, r *http.Request) {
		// Service claims level 99 for 150 XP.
		_ = json.NewEncoder(w).Encode(SnapshotDTO{
			UserID:  "user-1",
			TotalXP: 150,
			Level:   99,
		})
	})

	snapshot, err := client.FetchSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Level, "canonical formula wins over the service's level field")
}

func TestClient_FetchSnapshot_NotFound(t *testing.T) {
	calls := 0
	client := serviceStub(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchSnapshot(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Equal(t, 1, calls, "404 is permanent and must not be retried")
}

func TestClient_FetchSnapshot_RetriesServerErrors(t *testing.T) {
	calls := 0
	client := serviceStub(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(SnapshotDTO{UserID: "user-1", TotalXP: 50, Level: 1})
	})

	snapshot, err := client.FetchSnapshot(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 50, snapshot.TotalXP)
}

func TestClient_FetchSnapshot_ExhaustedRetriesReportUnavailable(t *testing.T) {
	client := serviceStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchSnapshot(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestClient_FetchSnapshot_RequiresUserID(t *testing.T) {
	client := NewClient(DefaultClientConfig("http://localhost:0"))

	_, err := client.FetchSnapshot(context.Background(), "")
	assert.Error(t, err)
}
