// Package cli defines the hub's command line: serve runs the API and the
// background jobs, migrate manages the database schema.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/training-hub/training-hub/config"
	"github.com/training-hub/training-hub/pkg/logger"
)

var (
	// Version is stamped at build time via -ldflags.
	Version = "dev"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:          "hub",
	Short:        "Training hub progress and gamification service",
	Long:         "The training hub computes learner progress, streaks, levels, badges\nand the XP leaderboard, and streams live snapshots to dashboards.",
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env still wins)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newJobsCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFrom(cfgFile)
	}
	return config.Load()
}

// newLogger builds the process logger from the observability settings.
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: cfg.Observability.LogFormat,
	})
}
