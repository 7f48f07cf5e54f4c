// Command server runs the market-data hub: it polls the upstream providers
// on a schedule, persists normalized prices, and serves the LAN API the
// displays poll.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tickertronix/Tickertronix-Open/internal/clients/alpaca"
	"github.com/Tickertronix/Tickertronix-Open/internal/clients/twelvedata"
	"github.com/Tickertronix/Tickertronix-Open/internal/config"
	"github.com/Tickertronix/Tickertronix-Open/internal/database"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/assets"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/devices"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/prices"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/settings"
	"github.com/Tickertronix/Tickertronix-Open/internal/scheduler"
	"github.com/Tickertronix/Tickertronix-Open/internal/server"
	"github.com/Tickertronix/Tickertronix-Open/pkg/logger"
)

var (
	flagHost     string
	flagPort     int
	flagLogLevel string
	flagDataDir  string
	flagLogDir   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tickertronix-hub",
		Short: "LAN market-data hub for embedded ticker displays",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}

	rootCmd.Flags().StringVar(&flagHost, "host", "", "listen address (overrides API_HOST)")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "listen port (overrides API_PORT)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "data directory (overrides DATA_DIR)")
	rootCmd.Flags().StringVar(&flagLogDir, "log-dir", "", "log directory (overrides LOG_DIR)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	applyFlags(cmd, cfg)

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		LogDir: cfg.LogDir,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("hub_host", cfg.HubBaseHost).
		Msg("Starting hub")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "hub.db"),
		Name: "hub",
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	settingsRepo := settings.NewRepository(db.Conn(), log)
	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		return fmt.Errorf("failed to load stored credentials: %w", err)
	}

	alpacaClient := alpaca.NewClient(alpaca.Config{
		BaseURL:        cfg.AlpacaBaseURL,
		BrokerURL:      cfg.AlpacaBrokerURL,
		RequestTimeout: cfg.RequestTimeout,
		RequestDelay:   cfg.RateLimitDelay,
	}, log)
	alpacaClient.SetCredentials(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret)

	forexClient := twelvedata.NewClient(twelvedata.Config{
		BaseURL:          cfg.TwelveDataBaseURL,
		APIKey:           cfg.TwelveDataAPIKey,
		BatchSize:        cfg.ForexBatchSize,
		BatchDelay:       cfg.ForexBatchDelay,
		RequestTimeout:   cfg.RequestTimeout,
		CreditsPerMinute: cfg.ForexCreditsPerMinute,
		CreditsPerDay:    cfg.ForexCreditsPerDay,
	}, log)

	assetRepo := assets.NewRepository(db.Conn(), log)
	priceRepo := prices.NewRepository(db.Conn(), log)
	deviceRepo := devices.NewRepository(db.Conn(), log)

	sched := scheduler.New(log)
	if err := sched.RegisterRefreshJobs(
		scheduler.NewMarketRefreshJob(assetRepo, priceRepo, alpacaClient, log),
		scheduler.NewForexRefreshJob(assetRepo, priceRepo, forexClient, log),
		cfg.UpdateInterval, cfg.ForexPoll); err != nil {
		return fmt.Errorf("failed to register refresh jobs: %w", err)
	}

	if alpacaClient.HasCredentials() || forexClient.HasAPIKey() {
		sched.Start()
		sched.TriggerRefresh()
	} else {
		log.Warn().Msg("No upstream credentials configured, scheduler not started")
	}

	srv := server.New(server.Config{
		Log:         log,
		Host:        cfg.APIHost,
		Port:        cfg.APIPort,
		DataDir:     cfg.DataDir,
		DB:          db,
		Scheduler:   sched,
		Assets:      assets.NewHandler(assetRepo, log),
		Prices:      prices.NewHandler(priceRepo, log),
		Devices:     devices.NewHandler(deviceRepo, log),
		Credentials: settings.NewHandler(settingsRepo, alpacaClient, forexClient, log),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}

	sched.Stop()
	log.Info().Msg("Hub stopped")
	return nil
}

// applyFlags lets explicit command-line flags win over the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.APIHost = flagHost
	}
	if cmd.Flags().Changed("port") {
		cfg.APIPort = flagPort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if cmd.Flags().Changed("log-dir") {
		cfg.LogDir = flagLogDir
	}
}
