// Package main is the entrypoint for the trackdesk compliance engine.
//
// The engine is a single long-running process hosting three scheduled jobs:
// recurring task generation, SLA breach scanning with threshold
// notifications, and periodic dedup store maintenance. An ops HTTP server
// exposes health and per-job status.
//
// This file handles dependency wiring only; all business logic lives in the
// internal packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"trackdesk/internal/config"
	"trackdesk/internal/db"
	"trackdesk/internal/external"
	"trackdesk/internal/notifications"
	"trackdesk/internal/ops"
	"trackdesk/internal/scheduler"
	"trackdesk/internal/sla"
	"trackdesk/internal/types"
)

const shutdownGrace = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("compliance engine exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("compliance engine initializing",
		"env", cfg.Environment,
		"tz", cfg.Scheduler.Timezone,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	// Repositories.
	taskRepo := db.NewTaskRepository(pool)
	templateRepo := db.NewTemplateRepository(pool)
	slaConfigRepo := db.NewSLAConfigRepository(pool)
	historyRepo := db.NewJobHistoryRepository(pool)

	// SLA deadline calculation, backed by the DB-held per-priority budgets.
	deadlines := sla.NewCalculator(slaConfigRepo, logger)

	// Notification pipeline.
	clock := types.RealClock{}
	dedup := notifications.NewDedupStore(clock)

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return fmt.Errorf("parse email templates: %w", err)
	}

	mailer := external.NewMailClient(
		&http.Client{Timeout: cfg.Email.Timeout},
		external.MailClientConfig{
			APIKey: cfg.Email.APIKey,
			Logger: logger,
		},
	)

	notifier := notifications.NewThresholdNotifier(notifications.ThresholdNotifierConfig{
		Dedup:    dedup,
		Sender:   mailer,
		Renderer: renderer,
		From: types.SenderIdentity{
			Name:    cfg.Email.FromName,
			Address: cfg.Email.FromAddress,
		},
		Logger: logger,
	})

	// Engine and jobs.
	engine, err := scheduler.NewEngine(scheduler.EngineConfig{
		Timezone: cfg.Scheduler.Timezone,
		Clock:    clock,
		History:  historyRepo,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	scanner := scheduler.NewBreachScanner(taskRepo, slaConfigRepo, clock, logger)
	generator := scheduler.NewRecurringGenerator(scheduler.RecurringGeneratorConfig{
		Templates: templateRepo,
		Tasks:     taskRepo,
		Deadlines: deadlines,
		Location:  engine.Location(),
		Logger:    logger,
	})

	if err := engine.Register(cfg.Scheduler.GenerationSpec, generator); err != nil {
		return fmt.Errorf("register recurring generation job: %w", err)
	}
	if err := engine.Register(cfg.Scheduler.ScanSpec, scheduler.NewSLAScanJob(scanner, notifier)); err != nil {
		return fmt.Errorf("register sla scan job: %w", err)
	}
	if err := engine.Register(cfg.Scheduler.DedupSweepSpec, scheduler.JobFunc{
		JobName: types.JobSweepDedup,
		Fn: func(_ context.Context, _ time.Time) (int, error) {
			return dedup.Sweep(), nil
		},
	}); err != nil {
		return fmt.Errorf("register dedup sweep job: %w", err)
	}

	// Ops surface.
	opsServer := ops.NewServer(ops.ServerConfig{
		Port:   cfg.Ops.Port,
		Engine: engine,
		Dedup:  dedup,
		Probes: []ops.HealthProbe{
			ops.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
		},
		Logger: logger,
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		engine.Start()
		<-gCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		engine.Stop(stopCtx)
		return nil
	})

	g.Go(func() error {
		return opsServer.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return opsServer.Shutdown(stopCtx)
	})

	logger.Info("compliance engine running")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("compliance engine shut down cleanly")
	return nil
}

// newPool builds the pgx pool with the configured tuning applied.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	return pool, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
