package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/taskhub/internal/api"
	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/internal/database"
	"github.com/hugh/taskhub/internal/membership"
	"github.com/hugh/taskhub/internal/metrics"
	"github.com/hugh/taskhub/internal/tasks"
	"github.com/hugh/taskhub/pkg/config"
	"github.com/hugh/taskhub/pkg/crypto"
	"github.com/hugh/taskhub/pkg/queue"
	"github.com/hugh/taskhub/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	logger.Info("starting taskhub server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Schema is owned by the embedded SQL migrations (cmd/migrate). In
	// development it is applied on boot.
	if cfg.Server.IsDevelopment() {
		if err := database.Migrate(cfg.Database.URL(), "up", 0); err != nil && !errors.Is(err, database.ErrNoChange) {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, OTP throttling and delivery disabled", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authOpts := []auth.Option{
		auth.WithOTPTTL(cfg.OTP.TTL()),
		auth.WithLogger(logger),
	}

	var asynqClient *asynq.Client
	if redisClient != nil {
		authOpts = append(authOpts, auth.WithLimiter(
			auth.NewThrottle(redisClient, cfg.OTP.ThrottleWindow(), cfg.OTP.ThrottleMax, cfg.OTP.Cooldown(), logger),
		))

		if cfg.Encryption.Key == "" {
			logger.Warn("ENCRYPTION_KEY not set, codes will not be queued for delivery")
		} else {
			encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
			if err != nil {
				logger.Error("failed to create encryptor", "error", err)
				os.Exit(1)
			}
			asynqClient = queue.NewClient(&cfg.Redis)
			authOpts = append(authOpts, auth.WithDispatcher(
				tasks.NewDispatcher(asynqClient, encryptor, cfg.OTP.TTL()),
			))
		}
	}

	authService := auth.NewService(db, jwtService, authOpts...)

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Members:        membership.NewService(db),
		Metrics:        metrics.New(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		AuthLimitReqs:  cfg.RateLimit.AuthRequests,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := database.Close(db); err != nil {
		logger.Error("failed to close database", "error", err)
	}

	logger.Info("server stopped")
}
