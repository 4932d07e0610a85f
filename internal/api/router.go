package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/taskhub/internal/api/handlers"
	"github.com/hugh/taskhub/internal/api/middleware"
	"github.com/hugh/taskhub/internal/auth"
	"github.com/hugh/taskhub/internal/membership"
	"github.com/hugh/taskhub/internal/metrics"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	limiters []*middleware.RateLimiter
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Members        *membership.Service
	Metrics        *metrics.Metrics
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	AuthLimitReqs  int      // Tighter per-IP limit on /auth within the same window
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	if cfg.Members == nil {
		cfg.Members = membership.NewService(cfg.DB)
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	window := time.Duration(cfg.RateLimitSecs) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(router.limiter(cfg.RateLimitReqs, window)))
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Metrics, cfg.Logger)
	userHandler := handlers.NewUserHandler(cfg.Members, cfg.Logger)
	orgMemberHandler := handlers.NewOrgMemberHandler(cfg.Members, cfg.Logger)
	orgHandler := handlers.NewOrganizationHandler(cfg.Members, cfg.Logger)
	taskHandler := handlers.NewTaskHandler(cfg.Members, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthLimitReqs > 0 {
				r.Use(middleware.RateLimit(router.limiter(cfg.AuthLimitReqs, window)))
			}
			r.Post("/signup", authHandler.Signup)
			r.Post("/verify-otp", authHandler.VerifyOTP)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				user, err := cfg.AuthService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
				if err != nil {
					http.Error(w, "User not found", http.StatusNotFound)
					return
				}
				writeJSON(w, http.StatusOK, user)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Put("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})

			r.Get("/orgmembers", orgMemberHandler.ByOrg)
			r.Get("/orgmember/byuser", orgMemberHandler.ByUser)
			r.Get("/orgmember/byuserorg", orgMemberHandler.ByUserAndOrg)
			r.Get("/user-organizations", orgHandler.ByUser)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Put("/{id}", taskHandler.Update)
				r.Delete("/{id}", taskHandler.Delete)
			})
		})
	})

	return router
}

func (rt *Router) limiter(limit int, window time.Duration) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(limit, window)
	rt.limiters = append(rt.limiters, rl)
	return rl
}

// Close stops the rate limiter sweepers.
func (rt *Router) Close() {
	for _, rl := range rt.limiters {
		rl.Stop()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
