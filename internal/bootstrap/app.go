package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/paysheet/internal/infrastructure/config"
	"github.com/cassiomorais/paysheet/internal/infrastructure/observability"
	"github.com/cassiomorais/paysheet/internal/infrastructure/postgres"
	infraRedis "github.com/cassiomorais/paysheet/internal/infrastructure/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the process-wide dependencies. Pool and Redis are nil when the
// audit trail or the pricing cache is disabled.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	tracer  *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(serviceName, cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	logger.Info().Str("instance_id", cfg.InstanceID).Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	if cfg.Observability.EnableMetrics {
		app.Metrics = observability.NewMetrics(metricsNamespace, nil)
		logger.Info().Msg("Metrics initialized")
	}

	if cfg.Database.Enabled {
		app.Pool, err = postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("Connected to PostgreSQL")
	}

	if cfg.Redis.Enabled {
		app.Redis, err = infraRedis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Msg("Connected to Redis")
	}

	return app, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}
}
