package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
	"github.com/training-hub/training-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT STREAK RISK JOB
// ══════════════════════════════════════════════════════════════════════════════

// DetectStreakRiskConfig contains configuration for the streak risk job.
type DetectStreakRiskConfig struct {
	// LookbackWindow bounds how much history is loaded per learner when
	// recomputing the streak.
	LookbackWindow time.Duration

	// Timeout is the maximum duration for one scan.
	Timeout time.Duration
}

// DefaultDetectStreakRiskConfig returns sensible defaults.
func DefaultDetectStreakRiskConfig() DetectStreakRiskConfig {
	return DetectStreakRiskConfig{
		LookbackWindow: 60 * 24 * time.Hour,
		Timeout:        time.Minute,
	}
}

// Throttle limits how often an operation may run for a given key. The
// redis-backed implementation makes the once-per-day guard hold across
// every instance sharing the event bus.
type Throttle interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DetectStreakRiskJob scans for learners whose active streak has no
// activity today after the local risk cutoff, and emits one StreakAtRisk
// event per learner per day. Only learners active yesterday can be at
// risk, so the scan loads two days of candidates, not the whole user base.
type DetectStreakRiskJob struct {
	activityRepo   stats.ActivityRepository
	eventPublisher shared.EventPublisher
	throttle       Throttle
	logger         *slog.Logger
	loc            *time.Location
	config         DetectStreakRiskConfig

	now func() time.Time
}

// NewDetectStreakRiskJob creates a new streak risk job. A nil throttle
// falls back to a per-process guard, which is only safe single-instance.
func NewDetectStreakRiskJob(
	activityRepo stats.ActivityRepository,
	eventPublisher shared.EventPublisher,
	throttle Throttle,
	logger *slog.Logger,
	loc *time.Location,
	config DetectStreakRiskConfig,
) *DetectStreakRiskJob {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if throttle == nil {
		throttle = newMemoryThrottle()
	}
	return &DetectStreakRiskJob{
		activityRepo:   activityRepo,
		eventPublisher: eventPublisher,
		throttle:       throttle,
		logger:         logger,
		loc:            loc,
		config:         config,
		now:            func() time.Time { return time.Now() },
	}
}

// WithClock overrides the job's clock. Used in tests.
func (j *DetectStreakRiskJob) WithClock(now func() time.Time) *DetectStreakRiskJob {
	j.now = now
	return j
}

// Name implements scheduler.Job.
func (j *DetectStreakRiskJob) Name() string {
	return "detect_streak_risk"
}

// Description implements scheduler.Job.
func (j *DetectStreakRiskJob) Description() string {
	return "Warns learners whose streak would break at local midnight"
}

// Run implements scheduler.Job.
func (j *DetectStreakRiskJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	localNow := j.now().In(j.loc)
	if localNow.Hour() < stats.StreakRiskCutoffHour {
		return nil
	}

	// Candidates: anyone active yesterday. A streak without yesterday's
	// activity is already broken, and activity today means no risk.
	yesterday := timeutil.StartOfDay(localNow).AddDate(0, 0, -1)
	userIDs, err := j.activityRepo.UsersActiveSince(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	today := timeutil.DayKey(localNow)
	// The guard expires at local midnight, when the warning is moot anyway.
	guardTTL := timeutil.EndOfDay(localNow).Sub(localNow) + time.Second
	warned := 0

	for _, userID := range userIDs {
		days, err := j.activityRepo.ActiveDays(ctx, userID, localNow.Add(-j.config.LookbackWindow))
		if err != nil {
			j.logger.Error("streak risk scan failed for user", "user_id", userID, "error", err)
			continue
		}

		streak := stats.ComputeStreak(stats.NewDaySet(days...), localNow)
		if !streak.AtRisk {
			continue
		}

		// The slot is taken before publishing: a failed publish forfeits
		// the day's warning rather than risking duplicates from retries.
		ok, err := j.throttle.Acquire(ctx, fmt.Sprintf("streak-risk:%s:%s", userID, today), guardTTL)
		if err != nil {
			j.logger.Error("streak risk guard failed", "user_id", userID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		event := shared.NewStreakAtRiskEvent(userID, streak.Current)
		if err := j.eventPublisher.Publish(event); err != nil {
			j.logger.Error("publish streak risk failed", "user_id", userID, "error", err)
			continue
		}

		warned++
	}

	if warned > 0 {
		j.logger.Info("streak risk warnings sent", "count", warned, "local_date", today)
	}

	return nil
}

// memoryThrottle is the single-process fallback guard.
type memoryThrottle struct {
	mu    sync.Mutex
	taken map[string]time.Time
}

func newMemoryThrottle() *memoryThrottle {
	return &memoryThrottle{taken: make(map[string]time.Time)}
}

func (t *memoryThrottle) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for k, expiry := range t.taken {
		if now.After(expiry) {
			delete(t.taken, k)
		}
	}

	if _, held := t.taken[key]; held {
		return false, nil
	}
	t.taken[key] = now.Add(ttl)
	return true, nil
}
