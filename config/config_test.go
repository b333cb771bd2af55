package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "training-hub", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "Asia/Almaty", cfg.App.Timezone)
	assert.NotNil(t, cfg.App.Location)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.NotNil(t, cfg.Features)
}

func TestLoad_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: hub-staging
  environment: staging
http:
  port: 9000
scheduler:
  rebuild_leaderboard_interval: 30m
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "hub-staging", cfg.App.Name)
	assert.Equal(t, EnvStaging, cfg.App.Environment)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.RebuildLeaderboardInterval)
	// Untouched values keep their defaults.
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.StreakRiskInterval)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 9000\n"), 0o600))

	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTP.Port)
	assert.Equal(t, time.UTC, cfg.App.Location)
}

func TestLoad_ProductionRequiresDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadFrom("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	_, err := LoadFrom("")
	assert.Error(t, err)
}

func TestFeatureFlags_EnvToggle(t *testing.T) {
	t.Setenv("FEATURE_BADGES_ENABLED", "false")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureBadges, "user-1"))
	assert.True(t, ff.IsEnabled(FeatureCelebrateLevelUp, "user-1"))
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	t.Setenv("FEATURE_LIVE_STREAMS", "40")

	ff := LoadFeatureFlags()

	first := ff.IsEnabled(FeatureLiveStreams, "user-1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureLiveStreams, "user-1"))
	}

	// Anonymous checks never land in a partial rollout.
	assert.False(t, ff.IsEnabled(FeatureLiveStreams, ""))
}

func TestFeatureFlags_Override(t *testing.T) {
	ff := LoadFeatureFlags()
	ff.SetRollout(FeatureLiveStreams, 0)

	assert.False(t, ff.IsEnabled(FeatureLiveStreams, "user-1"))

	ff.SetOverride("user-1", FeatureLiveStreams, true)
	assert.True(t, ff.IsEnabled(FeatureLiveStreams, "user-1"))
	assert.False(t, ff.IsEnabled(FeatureLiveStreams, "user-2"))

	ff.ClearOverrides("user-1")
	assert.False(t, ff.IsEnabled(FeatureLiveStreams, "user-1"))
}
