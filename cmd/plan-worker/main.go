package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"glidemoney/internal/amqp"
	"glidemoney/internal/cli"
	httpapi "glidemoney/internal/http"
	"glidemoney/internal/log"
	"glidemoney/internal/metrics"
	"glidemoney/internal/services"
	"glidemoney/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting plan-worker", log.FieldOperation, log.OpStartup)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	rates, year, err := cli.RateProvider(cfg)
	if err != nil {
		logger.Error("Failed to load rate tables", log.FieldErrorType, log.ErrorTypeConfiguration, log.FieldError, err)
		return
	}
	sweeper := cli.StartRateSweeper(logger, rates)
	defer sweeper.Stop()
	logger.Info("Rate tables loaded", log.FieldTaxYear, year)

	bootCtx := log.NewContext(context.Background(), logger)

	planCache, closeCache := cli.InitPlanCache(bootCtx, logger, cfg)
	defer closeCache()

	exporter, err := cli.InitExporter(bootCtx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldErrorType, log.ErrorTypeConfiguration, log.FieldError, err)
		return
	}
	if exporter.Cleanup != nil {
		defer exporter.Cleanup()
	}

	reg := metrics.New()
	planner := cli.BuildPlanner(sqliteRepo, rates, cfg, year, cli.PlannerDeps{
		Runs:     sqliteRepo,
		Cache:    planCache,
		Exporter: exporter,
		Metrics:  reg,
	})

	var scheduler *worker.Scheduler
	var amqpClient *amqp.Client
	var apiServer *httpapi.Server

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				logger.Warn("Scheduler did not stop cleanly", log.FieldError, err)
			}
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if apiServer != nil {
			if err := apiServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to stop plan API", log.FieldError, err)
			}
		}
	})
	ctx = log.NewContext(ctx, logger)

	if cfg.RecomputeSchedule != "" {
		processor := services.NewRecomputeProcessor(sqliteRepo, planner)
		scheduler = worker.NewScheduler(processor, cfg.RecomputeSchedule)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler", log.FieldErrorType, log.ErrorTypeConfiguration, log.FieldError, err)
			return
		}
		// Catch up on anything missed while the worker was down.
		go scheduler.RunOnce(ctx)
	} else {
		logger.Info("Scheduled recomputes disabled - no RECOMPUTE_SCHEDULE provided")
	}

	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, consuming will retry", log.FieldErrorType, log.ErrorTypeNetwork, log.FieldError, err)
			amqpClient = amqp.NewLazyClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		}
		planWorker := worker.NewPlanWorker(planner)
		go func() {
			if err := amqpClient.Consume(ctx, planWorker.HandleRecompute); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldOperation, log.OpConsume, log.FieldError, err)
			}
		}()
		logger.Info("Consuming recompute requests", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - only scheduled recomputes will run")
	}

	opts := httpapi.Options{
		Addr:              cfg.HTTPAddr,
		Planner:           planner,
		Ready:             sqliteRepo,
		Metrics:           reg.Handler(),
		Logger:            logger,
		RequestsPerMinute: cfg.APIRequestsPerMinute,
		TaxYear:           year,
	}
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}
	apiServer = httpapi.NewServer(opts)
	go func() {
		logger.Info("Plan API listening", "addr", cfg.HTTPAddr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Plan API failed", log.FieldErrorType, log.ErrorTypeNetwork, log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
