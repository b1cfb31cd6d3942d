package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/searchemu/searchemu/internal/auth"
	"github.com/searchemu/searchemu/internal/config"
	"github.com/searchemu/searchemu/internal/httpapi"
	"github.com/searchemu/searchemu/internal/indexerrun"
	"github.com/searchemu/searchemu/internal/metadata"
	"github.com/searchemu/searchemu/internal/preflight"
	"github.com/searchemu/searchemu/internal/scheduler"
	"github.com/searchemu/searchemu/internal/telemetry"
	"github.com/searchemu/searchemu/internal/textindex"
	"github.com/searchemu/searchemu/internal/vectorstore"
)

// preflightRecheckInterval bounds how often a successful preflight
// pass is trusted before running the checks again on a subsequent
// serve invocation against the same data directory.
const preflightRecheckInterval = 24 * time.Hour

func newServeCmd() *cobra.Command {
	var configPath string
	var host string
	var port int
	var dataDir string
	var devMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search emulator's HTTP API and background indexer scheduler",
		Long: `serve loads configuration, opens the control-plane metadata store and
the text/vector index managers under the configured data directory, and
starts the HTTP API together with the background indexer scheduler. It
blocks until interrupted, then shuts both down gracefully.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if dataDir != "" {
				cfg.DataDirectory = dataDir
			}
			if devMode {
				cfg.Server.DevMode = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&host, "host", "", "Override server.host")
	cmd.Flags().IntVar(&port, "port", 0, "Override server.port")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override data_directory")
	cmd.Flags().BoolVar(&devMode, "dev-mode", false, "Include innererror detail in error responses")

	return cmd
}

// runServe wires every component from cfg and serves until ctx is
// cancelled or an interrupt/TERM signal arrives.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := buildLogger(cfg.Logging)

	if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if preflight.NeedsCheck(cfg.DataDirectory) || preflight.MarkerAge(cfg.DataDirectory) > preflightRecheckInterval {
		checker := preflight.New()
		checks := checker.RunAll(ctx, cfg.DataDirectory)
		for _, result := range checks {
			logger.Info("preflight check", "name", result.Name, "status", result.Status.String(), "message", result.Message)
		}
		if checker.HasCriticalFailures(checks) {
			return fmt.Errorf("preflight checks failed: %s", checker.SummaryStatus(checks))
		}
		if err := preflight.MarkPassed(cfg.DataDirectory); err != nil {
			logger.Warn("failed to write preflight marker", "error", err)
		}
	}

	store, err := metadata.Open(filepath.Join(cfg.DataDirectory, "metadata.db"))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	texts := textindex.NewManager(cfg.DataDirectory)
	vectors := vectorstore.NewManager(cfg.DataDirectory)
	runner := indexerrun.NewRunner(store, texts, vectors, cfg.DataDirectory)

	tick, err := time.ParseDuration(cfg.Indexer.TickInterval)
	if err != nil || tick <= 0 {
		tick = scheduler.DefaultTick
	}

	var sched *scheduler.Scheduler
	if cfg.Indexer.EnableScheduler {
		sched = scheduler.New(store, runner, logger, tick, scheduler.DefaultConcurrency)
		sched.Start(ctx)
		defer sched.Stop(10 * time.Second)
	}

	chain := buildAuthChain(cfg.Auth)

	telemetryDB, err := sql.Open("sqlite", filepath.Join(cfg.DataDirectory, "telemetry.db")+"?_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("open telemetry database: %w", err)
	}
	defer func() { _ = telemetryDB.Close() }()
	if err := telemetry.InitTelemetrySchema(telemetryDB); err != nil {
		return fmt.Errorf("init telemetry schema: %w", err)
	}
	stats, err := telemetry.NewSQLiteMetricsStore(telemetryDB)
	if err != nil {
		return fmt.Errorf("open telemetry store: %w", err)
	}

	server := httpapi.New(cfg, store, texts, vectors, runner, sched, chain, stats, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// buildAuthChain constructs the pluggable handler chain from enabled
// modes; a config with no enabled modes (Validate does not reject an
// empty list, though Load keeps the default when YAML gives an empty one)
// yields an always-empty chain that denies every request.
func buildAuthChain(cfg config.AuthConfig) *auth.Chain {
	var handlers []auth.Handler
	for _, mode := range cfg.EnabledModes {
		switch mode {
		case "api_key":
			handlers = append(handlers, &auth.ApiKeyHandler{
				AdminKeys: splitNonEmpty(cfg.AdminAPIKey),
				QueryKeys: splitNonEmpty(cfg.QueryAPIKey),
			})
		case "entra_id":
			handlers = append(handlers, &auth.EntraIDHandler{SharedSecret: cfg.EntraIDSharedSecret})
		case "simulated":
			handlers = append(handlers, &auth.SimulatedHandler{Enabled: true})
		}
	}
	return auth.NewChain(cfg.APIKeyTakesPrecedence, handlers...)
}

func splitNonEmpty(key string) []string {
	if key == "" {
		return nil
	}
	return []string{key}
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	level := parseLogLevel(cfg.Level)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
