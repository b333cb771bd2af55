package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/training-hub/training-hub/internal/infrastructure/messaging"
	"github.com/training-hub/training-hub/internal/infrastructure/persistence/postgres"
	"github.com/training-hub/training-hub/internal/infrastructure/persistence/redis"
	"github.com/training-hub/training-hub/internal/infrastructure/scheduler"
	"github.com/training-hub/training-hub/internal/infrastructure/scheduler/jobs"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run background jobs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the registered background jobs",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withJobScheduler(cmd.Context(), func(ctx context.Context, sched *scheduler.Scheduler) error {
					for _, info := range sched.ListJobs() {
						fmt.Printf("%-24s %-16s %s\n", info.Name, info.Schedule, info.Description)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "run <name>",
			Short: "Run one job immediately, ignoring its schedule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withJobScheduler(cmd.Context(), func(ctx context.Context, sched *scheduler.Scheduler) error {
					result, err := sched.RunNow(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Printf("%s finished in %s\n", result.JobName, result.Duration.Round(time.Millisecond))
					return nil
				})
			},
		},
	)

	return cmd
}

// withJobScheduler wires the background jobs against live infrastructure,
// hands the scheduler to fn without starting the loop, and tears the
// connections down again. Events a manual run publishes go over the shared
// Redis channel, so running instances pick them up.
func withJobScheduler(ctx context.Context, fn func(context.Context, *scheduler.Scheduler) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

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

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:     rdb.Redis(),
		InstanceID: uuid.NewString(),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	defer bus.Close()

	activity := postgres.NewActivityRepository(conn)
	leaderboard := redis.NewLeaderboardCache(rdb)

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	rebuildCfg := jobs.DefaultRebuildLeaderboardConfig()
	rebuildCfg.Timeout = cfg.Scheduler.JobTimeout
	rebuild := jobs.NewRebuildLeaderboardJob(activity, leaderboard, bus, log, rebuildCfg)
	if err := sched.Register(rebuild, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
		return err
	}

	riskCfg := jobs.DefaultDetectStreakRiskConfig()
	riskCfg.Timeout = cfg.Scheduler.JobTimeout
	risk := jobs.NewDetectStreakRiskJob(activity, bus, redis.NewThrottle(rdb), log, cfg.App.Location, riskCfg)
	if err := sched.Register(risk, streakRiskSchedule(cfg.Scheduler.StreakRiskInterval)); err != nil {
		return err
	}

	return fn(ctx, sched)
}
