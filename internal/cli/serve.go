package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/training-hub/training-hub/config"
	"github.com/training-hub/training-hub/internal/application/command"
	"github.com/training-hub/training-hub/internal/application/eventhandler"
	"github.com/training-hub/training-hub/internal/application/query"
	"github.com/training-hub/training-hub/internal/domain/celebration"
	"github.com/training-hub/training-hub/internal/domain/shared"
	"github.com/training-hub/training-hub/internal/domain/stats"
	"github.com/training-hub/training-hub/internal/infrastructure/external/statsapi"
	"github.com/training-hub/training-hub/internal/infrastructure/messaging"
	"github.com/training-hub/training-hub/internal/infrastructure/persistence/postgres"
	"github.com/training-hub/training-hub/internal/infrastructure/persistence/redis"
	"github.com/training-hub/training-hub/internal/infrastructure/scheduler"
	"github.com/training-hub/training-hub/internal/infrastructure/scheduler/jobs"
	"github.com/training-hub/training-hub/internal/infrastructure/subscription"
	httpapi "github.com/training-hub/training-hub/internal/interface/http"
	"github.com/training-hub/training-hub/pkg/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting training hub",
		logger.String("version", Version),
		logger.String("environment", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ── Postgres ────────────────────────────────────────────────────────────

	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required to serve")
	}

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	if cfg.IsDevelopment() {
		// Production schema changes go through the migrate command.
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	enrollments := postgres.NewEnrollmentRepository(conn)
	campaigns := postgres.NewCampaignRepository(conn)
	activity := postgres.NewActivityRepository(conn)
	badges := postgres.NewBadgeRepository(conn)
	celebrations := postgres.NewCelebrationLedger(conn)

	// ── Redis ───────────────────────────────────────────────────────────────

	rdb, err := redis.NewClient(redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	leaderboard := redis.NewLeaderboardCache(rdb)
	throttle := redis.NewThrottle(rdb)

	// Postgres decides every first showing; Redis only absorbs the repeat
	// lookups the live stream generates.
	ledger := celebration.NewCachedLedger(celebrations, redis.NewCelebrationLedger(rdb))

	// ── Event bus ───────────────────────────────────────────────────────────

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:     rdb.Redis(),
		InstanceID: uuid.NewString(),
		LocalBusConfig: messaging.InMemoryEventBusConfig{
			AsyncMode:      true,
			WorkerPoolSize: 10,
			Logger:         log,
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	defer bus.Close()

	// ── Application handlers ────────────────────────────────────────────────

	recordModuleFinished := command.NewRecordModuleFinishedHandler(enrollments, campaigns, bus)
	recordAnswer := command.NewRecordAnswerHandler(enrollments, campaigns, bus)
	recalculateBadges := command.NewRecalculateBadgesHandler(badges, enrollments, activity, throttle, bus)

	var (
		statsClient   *statsapi.Client
		statsProvider query.StatsProvider
	)
	if cfg.StatsAPI.BaseURL != "" && cfg.Features.IsEnabled(config.FeatureAuthoritativeStats, "") {
		statsClient = statsapi.NewClient(statsapi.ClientConfig{
			BaseURL: cfg.StatsAPI.BaseURL,
			APIKey:  cfg.StatsAPI.APIKey,
			Timeout: cfg.StatsAPI.RequestTimeout,
			Logger:  log,
		})
		statsProvider = redis.NewStatsCache(rdb, statsClient, log)
	}

	campaignProgress := query.NewGetCampaignProgressHandler(enrollments, campaigns, log)
	userStats := query.NewGetUserStatsHandler(statsProvider, activity, celebrations, log)
	leaderboardQuery := query.NewGetLeaderboardHandler(leaderboard)

	// ── Event handlers ──────────────────────────────────────────────────────

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{Bus: bus, Logger: log})

	onModuleCompleted := eventhandler.NewOnModuleCompletedHandler(
		activity, enrollments, campaigns, bus, log, cfg.App.Location)
	if err := dispatcher.Register(onModuleCompleted.EventType(), "on_module_completed", onModuleCompleted.Handle); err != nil {
		return err
	}

	onBadgeTrigger := eventhandler.NewOnBadgeTriggerHandler(recalculateBadges, log)
	for _, eventType := range onBadgeTrigger.EventTypes() {
		if err := dispatcher.Register(eventType, "on_badge_trigger", onBadgeTrigger.Handle); err != nil {
			return err
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	// ── Live streams ────────────────────────────────────────────────────────

	var hub *subscription.Hub
	if cfg.Features.IsEnabled(config.FeatureLiveStreams, "") {
		hub = subscription.NewHub()
		defer hub.Close()

		feeder := subscription.NewFeeder(hub, campaignProgress, userStats, badges, log)
		if err := feeder.Attach(bus); err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
	}

	// ── Background jobs ─────────────────────────────────────────────────────

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:        log,
			Timezone:      cfg.App.Location,
			EnableMetrics: true,
		})

		var rankPublisher shared.EventPublisher
		if cfg.Features.IsEnabled(config.FeatureLeaderboardRankEvents, "") {
			rankPublisher = bus
		}

		rebuildCfg := jobs.DefaultRebuildLeaderboardConfig()
		rebuildCfg.Timeout = cfg.Scheduler.JobTimeout
		rebuild := jobs.NewRebuildLeaderboardJob(activity, leaderboard, rankPublisher, log, rebuildCfg)
		if err := sched.Register(rebuild, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
			return err
		}

		if cfg.Features.IsEnabled(config.FeatureStreakRiskWarning, "") {
			riskCfg := jobs.DefaultDetectStreakRiskConfig()
			riskCfg.Timeout = cfg.Scheduler.JobTimeout
			risk := jobs.NewDetectStreakRiskJob(activity, bus, throttle, log, cfg.App.Location, riskCfg)
			if err := sched.Register(risk, streakRiskSchedule(cfg.Scheduler.StreakRiskInterval)); err != nil {
				return err
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// ── HTTP server ─────────────────────────────────────────────────────────

	healthChecks := map[string]httpapi.HealthChecker{
		"postgres": conn.Ping,
		"redis":    rdb.Ping,
	}
	if statsClient != nil {
		healthChecks["stats_api"] = statsClient.Health
	}

	var busMetrics func() messaging.EventBusMetricsSnapshot
	if cfg.App.Debug || cfg.IsDevelopment() {
		busMetrics = func() messaging.EventBusMetricsSnapshot {
			return bus.Metrics().Snapshot()
		}
	}

	serverConfig := httpapi.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpapi.NewServer(serverConfig, httpapi.Dependencies{
		RecordModuleFinished: recordModuleFinished,
		RecordAnswer:         recordAnswer,
		RecalculateBadges:    recalculateBadges,
		CampaignProgress:     campaignProgress,
		UserStats:            userStats,
		Leaderboard:          leaderboardQuery,
		BadgeRepo:            badges,
		Hub:                  hub,
		CelebrationLedger:    ledger,
		BusMetrics:           busMetrics,
		HealthChecks:         healthChecks,
		Logger:               log,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("training hub stopped")
	return err
}

// streakRiskSchedule builds the evening scan schedule: every interval, but
// only between the streak-risk cutoff hour and midnight. The job re-checks
// the cutoff itself, so a schedule firing early is harmless.
func streakRiskSchedule(interval time.Duration) scheduler.Schedule {
	minutes := int(interval.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 59 {
		return scheduler.NewIntervalSchedule(interval)
	}
	return scheduler.MustParseCronExpression(
		fmt.Sprintf("*/%d %d-23 * * *", minutes, stats.StreakRiskCutoffHour))
}
