// Package cli provides common initialization utilities.
// This package consolidates the wiring shared by cmd/glidemoney and
// cmd/plan-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"glidemoney/internal/backend"
	"glidemoney/internal/cache"
	"glidemoney/internal/config"
	"glidemoney/internal/glide"
	"glidemoney/internal/log"
	"glidemoney/internal/metrics"
	"glidemoney/internal/plancache"
	"glidemoney/internal/services"
	"glidemoney/internal/storage"
	"glidemoney/internal/tax"
)

// rateSweepInterval matches the parsed rate table TTL.
const rateSweepInterval = 10 * time.Minute

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration, log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Format:    cfg.LogFormat,
		Output:    os.Stderr,
	})
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	log.SetDefault(logger)
	return logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldErrorType, log.ErrorTypeDatabase, log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// RateProvider opens the rate tables and resolves the tax year to plan with.
// A configured year of zero selects the newest table available.
func RateProvider(cfg *config.Config) (*tax.FileProvider, int, error) {
	p := tax.NewFileProvider(cfg.RatesDir)
	if cfg.TaxYear != 0 {
		years, err := p.Years()
		if err != nil {
			return nil, 0, fmt.Errorf("list rate tables: %w", err)
		}
		if !slices.Contains(years, cfg.TaxYear) {
			return nil, 0, fmt.Errorf("no rate table for tax year %d (available: %v)", cfg.TaxYear, years)
		}
		return p, cfg.TaxYear, nil
	}
	year, err := p.LatestYear()
	if err != nil {
		return nil, 0, fmt.Errorf("resolve tax year: %w", err)
	}
	return p, year, nil
}

// StartRateSweeper expires parsed rate tables so edits under RATES_DIR are
// picked up by long-running processes. Stop the returned manager on exit.
func StartRateSweeper(logger *log.Logger, p *tax.FileProvider) *cache.Manager {
	m := cache.NewManager(logger)
	m.Register("rate_tables", p)
	m.StartCleanup(rateSweepInterval)
	return m
}

// InitPlanCache connects to Redis when REDIS_ADDR is set. A cache that
// cannot be reached is skipped; plans are recomputed instead.
func InitPlanCache(ctx context.Context, logger *log.Logger, cfg *config.Config) (*plancache.Cache, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("Plan cache disabled - no REDIS_ADDR provided")
		return nil, func() error { return nil }
	}
	c, client, err := plancache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.PlanCacheTTL)
	if err != nil {
		logger.Warn("Failed to connect to Redis, continuing without plan cache",
			log.FieldErrorType, log.ErrorTypeNetwork, log.FieldError, err)
		return nil, func() error { return nil }
	}
	logger.Info("Plan cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.PlanCacheTTL)
	return c, client.Close
}

// InitExporter builds the configured export destination.
func InitExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.ExporterResult, error) {
	exportCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateExporter(ctx, exportCfg)
}

// PlannerDeps are the optional collaborators of a planner.
type PlannerDeps struct {
	Runs     services.RunLog
	Cache    *plancache.Cache
	Exporter *backend.ExporterResult
	Metrics  *metrics.Registry
}

// BuildPlanner wires a planner over source with whichever optional
// collaborators are present.
func BuildPlanner(source services.SnapshotSource, rates tax.RateTableProvider, cfg *config.Config, year int, deps PlannerDeps) *services.Planner {
	p := services.NewPlanner(source, rates, services.PlannerConfig{
		TaxYear: year,
		Glide:   glide.Options{PostingBufferDays: cfg.PostingBufferDays},
	})
	if deps.Runs != nil {
		p.WithRunLog(deps.Runs)
	}
	if deps.Cache != nil {
		p.WithCache(deps.Cache)
	}
	if deps.Exporter != nil && deps.Exporter.Exporter != nil {
		p.WithExporter(deps.Exporter.Exporter)
	}
	if deps.Metrics != nil {
		p.WithMetrics(deps.Metrics)
	}
	return p
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
