package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/database"
	"github.com/stemsi/examforge-backend/internal/handler"
	"github.com/stemsi/examforge-backend/internal/integrity"
	"github.com/stemsi/examforge-backend/internal/logger"
	"github.com/stemsi/examforge-backend/internal/repository"
	"github.com/stemsi/examforge-backend/internal/router"
	"github.com/stemsi/examforge-backend/internal/service"
	"github.com/stemsi/examforge-backend/internal/validator"
	"github.com/stemsi/examforge-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamForge Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewExamSessionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	previewRepo := repository.NewPreviewRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	signer := integrity.NewSigner(cfg.IntegritySecret)
	authService := service.NewAuthService(cfg)
	paperService := service.NewPaperService(paperRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, paperService, log)
	attemptService := service.NewAttemptService(attemptRepo, sessionService, paperService, signer, rdb, log)
	previewService := service.NewPreviewService(previewRepo, paperService, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, attemptService),
		Attempt: handler.NewAttemptHandler(attemptService, sessionService, paperService),
		Preview: handler.NewPreviewHandler(previewService),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		System:  handler.NewSystemHandler(rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	activityWorker := worker.NewActivityWorker(pool, rdb, log)
	go activityWorker.Start(workerCtx)

	// ─── Schedule Sweeps ──────────────────────────────────────────────
	// The session sweep moves PUBLISHED sessions into their window and
	// closes expired ACTIVE ones; the preview sweep deletes lapsed TTLs.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SessionSweepSpec, func() {
		if err := sessionService.Sweep(workerCtx); err != nil {
			log.Error().Err(err).Msg("Session sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Invalid session sweep spec")
	}
	if _, err := scheduler.AddFunc(cfg.PreviewCleanupSpec, func() {
		if err := previewService.CleanupExpired(workerCtx); err != nil {
			log.Error().Err(err).Msg("Preview cleanup failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Invalid preview cleanup spec")
	}
	scheduler.Start()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the scheduler; running jobs finish on their own.
	scheduler.Stop()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
