package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/rewardex/backend/internal/auth"
	"github.com/rewardex/backend/internal/config"
	"github.com/rewardex/backend/internal/db"
	"github.com/rewardex/backend/internal/escrow"
	"github.com/rewardex/backend/internal/evidence"
	"github.com/rewardex/backend/internal/handlers"
	"github.com/rewardex/backend/internal/metrics"
	"github.com/rewardex/backend/internal/notify"
	"github.com/rewardex/backend/internal/repository"
	"github.com/rewardex/backend/internal/sweeper"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to connect to PostgreSQL. Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("Schema migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations (job queue tables)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	metrics.Init()

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	rewardRepo := repository.NewRewardRepo(pool)
	txRepo := repository.NewTransactionRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)

	// Escrow engine
	notifier := notify.NewLogNotifier(logger)
	engine := escrow.NewEngine(pool, userRepo, rewardRepo, txRepo, ledgerRepo, notifier, logger, cfg.RevealWindow)

	// Hourly auto-release sweep as a periodic River job.
	workers := river.NewWorkers()
	river.AddWorker(workers, sweeper.NewSweepWorker(engine, txRepo, cfg.GraceWindow, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return sweeper.SweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Auth
	authSvc := auth.NewService(userRepo, cfg.JWTSecret, cfg.StartingBalance)
	authHandler := auth.NewHandler(authSvc, logger)

	evidenceStore, err := evidence.NewDiskStore(cfg.EvidenceDir)
	if err != nil {
		slog.Error("Failed to init evidence store", "error", err)
		os.Exit(1)
	}

	txHandler := &handlers.TransactionHandler{
		Engine:   engine,
		Evidence: evidenceStore,
		Logger:   logger,
	}
	rewardHandler := &handlers.RewardHandler{
		Rewards: rewardRepo,
		Logger:  logger,
	}
	ledgerHandler := &handlers.LedgerHandler{
		Ledger: ledgerRepo,
		Logger: logger,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, authSvc, userRepo, authHandler, txHandler, rewardHandler, ledgerHandler, evidenceStore)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (runs the sweep)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
