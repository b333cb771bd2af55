package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with gradual rollout. A flag can be
// fully on, fully off, or rolled out to a percentage of learners; the
// assignment is a stable hash of the user ID so a learner never flips
// between variants across sessions.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature

	// userOverrides force a flag on or off for specific learners.
	userOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent (0-100) limits an enabled flag to a stable slice of
	// the user base. 100 means everyone.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// Celebration surfaces
	FeatureCelebrateLevelUp  = "celebrate.level_up"
	FeatureCelebrateCampaign = "celebrate.campaign_completed"
	FeatureCelebrateStreak   = "celebrate.streak_milestone"

	// Streak mechanics
	FeatureStreakRiskWarning = "streak.risk_warning"

	// Leaderboard
	FeatureLeaderboardRankEvents = "leaderboard.rank_events"
	FeatureLeaderboardSelfRow    = "leaderboard.self_row"

	// Badges
	FeatureBadges = "badges.enabled"

	// Live delivery
	FeatureLiveStreams = "live.streams"

	// Stats sourcing
	FeatureAuthoritativeStats = "stats.authoritative_service"
)

// LoadFeatureFlags builds the flag set: defaults, then env overrides of the
// form FEATURE_CELEBRATE_LEVEL_UP=false or FEATURE_BADGES=25 (percent).
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{FeatureCelebrateLevelUp, "Level-up celebration overlay", true, 100},
		{FeatureCelebrateCampaign, "Campaign completion celebration", true, 100},
		{FeatureCelebrateStreak, "Streak milestone celebration", true, 100},
		{FeatureStreakRiskWarning, "Evening streak-at-risk warning", true, 100},
		{FeatureLeaderboardRankEvents, "Publish rank change events", true, 100},
		{FeatureLeaderboardSelfRow, "Show the learner's own row outside the page", true, 100},
		{FeatureBadges, "Badge evaluation and display", true, 100},
		{FeatureLiveStreams, "WebSocket snapshot streams", true, 100},
		{FeatureAuthoritativeStats, "Prefer the external stats service over local computation", true, 100},
	}

	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment applies env overrides. The env key is the flag name
// uppercased with separators replaced: "celebrate.level_up" reads
// FEATURE_CELEBRATE_LEVEL_UP. A boolean toggles the flag; an integer sets
// the rollout percentage.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(envKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

func envKey(flagName string) string {
	key := strings.NewReplacer(".", "_", "-", "_").Replace(flagName)
	return "FEATURE_" + strings.ToUpper(key)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// IsEnabled checks if a feature is enabled for the given learner. An empty
// userID evaluates global state only (rollout slices need an identity, so
// partial rollouts are off for anonymous checks).
func (ff *FeatureFlags) IsEnabled(featureName, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if userID != "" {
		if overrides, ok := ff.userOverrides[userID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if userID == "" {
		return false
	}
	return bucketOf(userID, featureName) < feature.RolloutPercent
}

// bucketOf maps (userID, feature) onto 0-99. Hashing the pair rather than
// the user alone keeps rollout populations independent across flags.
func bucketOf(userID, featureName string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(featureName))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

// SetOverride forces a flag on or off for one learner. Used for debugging
// and support.
func (ff *FeatureFlags) SetOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearOverrides removes all per-learner overrides for one learner.
func (ff *FeatureFlags) ClearOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRollout adjusts a flag's rollout percentage at runtime.
func (ff *FeatureFlags) SetRollout(featureName string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	if feature, ok := ff.features[featureName]; ok {
		feature.Enabled = percent > 0
		feature.RolloutPercent = percent
	}
}

// Snapshot returns a copy of all flags for diagnostics.
func (ff *FeatureFlags) Snapshot() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	return out
}
