package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/taskhub/internal/database"
	"github.com/hugh/taskhub/internal/notify"
	"github.com/hugh/taskhub/internal/tasks"
	"github.com/hugh/taskhub/pkg/config"
	"github.com/hugh/taskhub/pkg/crypto"
	"github.com/hugh/taskhub/pkg/queue"
	"github.com/hugh/taskhub/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting taskhub worker")

	if err := util.ValidateCronExpr(cfg.OTP.PurgeCron); err != nil {
		logger.Error("invalid OTP_PURGE_CRON", "cron", cfg.OTP.PurgeCron, "error", err)
		os.Exit(1)
	}

	if cfg.Encryption.Key == "" {
		logger.Error("ENCRYPTION_KEY must be set so queued codes can be opened")
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	mailer := notify.NewMailer(cfg.SMTP, logger)
	handler := tasks.NewHandler(db, logger, encryptor, mailer, cfg.OTP.PurgeGrace())

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	scheduler := queue.NewScheduler(&cfg.Redis)
	entryID, err := scheduler.Register(cfg.OTP.PurgeCron, tasks.NewOTPPurgeTask(), asynq.Queue(queue.QueueLow))
	if err != nil {
		logger.Error("failed to schedule OTP purge", "error", err)
		os.Exit(1)
	}
	logger.Info("scheduled OTP purge", "cron", cfg.OTP.PurgeCron, "entry_id", entryID)

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := queue.NewServer(&cfg.Redis, 10)
	if err := srv.Start(mux); err != nil {
		logger.Error("worker error", "error", err)
		scheduler.Shutdown()
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	if err := database.Close(db); err != nil {
		logger.Error("failed to close database", "error", err)
	}

	logger.Info("worker stopped")
}
