package controller

import (
	"time"

	"github.com/cassiomorais/paysheet/internal/application/session"
	"github.com/cassiomorais/paysheet/internal/infrastructure/config"
	"github.com/cassiomorais/paysheet/internal/infrastructure/host"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/cassiomorais/paysheet/internal/infrastructure/pricing"
	customMW "github.com/cassiomorais/paysheet/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	Coordinator     *session.Coordinator
	Registry        *host.Registry
	Pricer          pricing.Pricer
	Attempts        AttemptLister
	Merchant        MerchantDefaults
	Metrics         *observability.Metrics
	Logger          zerolog.Logger
	CORSConfig      config.CORSConfig
	CouponRateLimit int
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Pool, deps.RedisClient, deps.Registry.Len)
	sessionH := NewSessionController(deps.Coordinator, deps.Registry, deps.Pricer, deps.Merchant)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/capability", sessionH.Capability)

		r.Post("/sessions", sessionH.Start)
		r.Get("/sessions/{id}", sessionH.Get)
		r.Post("/sessions/{id}/finish", sessionH.Finish)
		if deps.Attempts != nil {
			r.Get("/sessions/{id}/attempts", NewAttemptController(deps.Attempts).List)
		}

		couponRoute := r
		if deps.CouponRateLimit > 0 {
			couponRoute = r.With(customMW.CouponRateLimit(deps.CouponRateLimit))
		}
		couponRoute.Post("/sessions/{id}/coupon", sessionH.ChangeCoupon)
	})

	return r
}
