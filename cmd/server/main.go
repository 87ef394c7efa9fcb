/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the milestone balancer server, and offers a few
  one-shot commands against the same database.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (defaults, YAML file, environment, flags)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Build the service with Prometheus metrics
  5. Start the redistribution scheduler
  6. Start server with graceful shutdown

COMMANDS:
  server                 Run the HTTP server (default)
  server preview --id X  Print the day-by-day distribution
  server balance --id X  Run redistribution once

FLAGS:
  --config     YAML config file (default: balancer.yaml, optional)
  --port       HTTP server port
  --db         SQLite database path, ":memory:" for in-memory
  --tz-offset  Minutes from UTC used for "today"
  --verbose    Debug logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - config/config.go: Configuration sources and env vars
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coppermind/milestone-engine/api"
	"github.com/coppermind/milestone-engine/balancer"
	"github.com/coppermind/milestone-engine/config"
	"github.com/coppermind/milestone-engine/milestone"
	"github.com/coppermind/milestone-engine/store/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	port       int
	dbPath     string
	tzOffset   int
	verbose    bool
	previewID  string
	balanceID  string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Milestone balancer - distributes long-horizon targets across days",
	Long: `Runs the milestone balancer HTTP API.

A milestone is a quantitative target over a date range (3000 pushups in
February). The balancer splits what remains across the remaining days,
tracks schedule status, and re-targets linked daily goals when recorded
progress drifts from what the goals report.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err = buildLogger(cfg.Log.Level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print a milestone's day-by-day distribution",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *milestone.Service) error {
			return printPreview(cmd.Context(), cmd.OutOrStdout(), svc, previewID, cfg.Balancer.TimezoneOffsetMinutes)
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Run redistribution for one milestone",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *milestone.Service) error {
			res, err := svc.Run(cmd.Context(), balanceID, cfg.Balancer.TimezoneOffsetMinutes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		})
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "balancer.yaml", "YAML config file")
	flags.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flags.StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	flags.IntVar(&tzOffset, "tz-offset", 0, "Minutes from UTC used for today (overrides config)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	previewCmd.Flags().StringVar(&previewID, "id", "", "Milestone ID")
	_ = previewCmd.MarkFlagRequired("id")
	balanceCmd.Flags().StringVar(&balanceID, "id", "", "Milestone ID")
	_ = balanceCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(previewCmd, balanceCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// =============================================================================
// SETUP
// =============================================================================

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Server.Port = port
	}
	if flags.Changed("db") {
		c.Database.Path = dbPath
	}
	if flags.Changed("tz-offset") {
		c.Balancer.TimezoneOffsetMinutes = tzOffset
	}
	if verbose {
		c.Log.Level = "debug"
	}

	if err := c.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

func newEngine() *balancer.Engine {
	engine := balancer.NewEngine()
	engine.Trigger.Threshold = cfg.Balancer.Threshold()
	return engine
}

// withService opens the store for a one-shot command.
func withService(fn func(*milestone.Service) error) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	svc := milestone.NewService(store,
		milestone.WithLogger(logger),
		milestone.WithEngine(newEngine()),
	)
	return fn(svc)
}

// =============================================================================
// SERVER
// =============================================================================

func runServer(ctx context.Context) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := milestone.NewPrometheusObserver("milestone_balancer", reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	svc := milestone.NewService(store,
		milestone.WithLogger(logger),
		milestone.WithEngine(newEngine()),
		milestone.WithObserver(observer),
	)

	handler := api.NewHandler(svc, store, logger)
	handler.TimezoneOffset = cfg.Balancer.TimezoneOffsetMinutes

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	scheduler := api.NewRedistributionScheduler(svc, logger)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = time.Duration(cfg.Scheduler.Interval)
	scheduler.TimezoneOffset = cfg.Balancer.TimezoneOffsetMinutes
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Database.Path),
			zap.Int("tz_offset", cfg.Balancer.TimezoneOffsetMinutes),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
