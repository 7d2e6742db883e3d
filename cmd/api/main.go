package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/paysheet/internal/application/session"
	"github.com/cassiomorais/paysheet/internal/bootstrap"
	"github.com/cassiomorais/paysheet/internal/controller"
	"github.com/cassiomorais/paysheet/internal/infrastructure/host"
	"github.com/cassiomorais/paysheet/internal/infrastructure/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "paysheet-api", "paysheet")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Host surface ---
	enrolled, err := bootstrap.Networks(cfg.Merchant.EnrolledNetworks)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid merchant networks")
	}
	platform := host.NewPlatform(cfg.Merchant.PaymentsEnabled, enrolled)
	registry := host.NewRegistry(app.Logger)

	// --- Pricing ---
	pricer, err := bootstrap.NewPricer(cfg.Pricing, app.Redis, app.Metrics, app.Logger)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to configure pricing")
	}

	// --- Coordinator ---
	opts := []session.Option{
		session.WithLogger(app.Logger),
		session.WithMetrics(app.Metrics),
	}
	var attempts *postgres.AttemptRepository
	if app.Pool != nil {
		attempts = postgres.NewAttemptRepository(app.Pool)
		opts = append(opts, session.WithRecorder(attempts))
	}
	coordinator := session.NewCoordinator(platform, registry, session.Config{
		MerchantIdentifier: cfg.Merchant.Identifier,
		CountryCode:        cfg.Merchant.CountryCode,
		PricingTimeout:     cfg.Pricing.Timeout,
	}, opts...)

	// --- Build router ---
	deps := controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		Coordinator: coordinator,
		Registry:    registry,
		Pricer:      pricer,
		Merchant: controller.MerchantDefaults{
			DisplayName: cfg.Merchant.DisplayName,
			Currency:    cfg.Merchant.Currency,
		},
		Metrics:         app.Metrics,
		Logger:          app.Logger,
		CORSConfig:      cfg.Server.CORS,
		CouponRateLimit: cfg.Server.CouponRateLimit,
	}
	if attempts != nil {
		deps.Attempts = attempts
	}
	router := controller.NewRouter(deps)

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. HTTP server.
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// 2. Sweeper finishing sheets the payer walked away from.
	g.Go(func() error {
		return registry.RunSweeper(gCtx, cfg.Server.SweepInterval, cfg.Server.SessionTTL)
	})

	// 3. Shutdown on signal or on the first failure.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
		case <-quit:
			app.Logger.Info().Msg("Shutting down server...")
			cancel()
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server error")
	}
	app.Logger.Info().Msg("Server exited")
}
