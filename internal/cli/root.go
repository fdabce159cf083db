package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/dbwatch/internal/control"
	"github.com/vietddude/dbwatch/internal/core/config"
)

var (
	cfgPath  string
	isDebug  bool
	noBanner bool
)

var rootCmd = &cobra.Command{
	Use:   "dbwatch",
	Short: "Database monitoring agent",
	Long: `dbwatch connects to one database, runs the configured check queries on
a fixed cycle and hands the results to the monitoring collector.`,
	Run: runAgent,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "dbwatch.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&noBanner, "no-banner", false, "do not print the startup banner")
}

func runAgent(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	closeLog, err := setupLogging(cfg.Logging, isDebug)
	if err != nil {
		slog.Error("Failed to set up log file", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	if !noBanner {
		printBanner(os.Stdout, Version)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	agent, err := control.NewAgent(ctx, control.Config{
		App:        cfg,
		ConfigPath: cfgPath,
		Version:    Version,
	})
	if err != nil {
		slog.Error("Failed to initialize agent", "error", err)
		os.Exit(1)
	}

	slog.Info("Agent started",
		"config", cfgPath, "version", Version, "database", cfg.Database.Type,
		"driver", cfg.Database.Driver, "url", cfg.Database.URL,
		"checks", cfg.Checks.Dir, "site_checks", cfg.Checks.SiteChecks,
		"transport", cfg.Transport.Method)

	if err := agent.Run(ctx); err != nil {
		slog.Error("Agent stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
	slog.Info("Agent stopped")
}
