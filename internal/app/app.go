// Package app wires the storefront together: configuration, database pool,
// repositories, domain services, HTTP server, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sportstyle/store/internal/api"
	"github.com/sportstyle/store/internal/domain/cart"
	"github.com/sportstyle/store/internal/domain/checkout"
	"github.com/sportstyle/store/internal/domain/loyalty"
	"github.com/sportstyle/store/internal/repository"
	"github.com/sportstyle/store/pkg/health"
	"github.com/sportstyle/store/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	rules, err := cfg.PricingRules()
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(100*time.Millisecond))

	// Checkout attempt store: Redis when configured, in-process otherwise.
	var attempts checkout.AttemptStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		defer client.Close()

		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		attempts = repository.NewRedisAttemptStore(client)
		lg.Info("Using Redis checkout attempt store")
	} else {
		memStore := checkout.NewMemoryAttemptStore()
		memStore.StartCleanup(ctx, time.Minute)
		attempts = memStore
		lg.Info("Using in-memory checkout attempt store")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	loyaltyRepo := repository.NewLoyaltyRepository(pool)

	// Domain services.
	cartSvc := cart.NewService(rules, productRepo, cartRepo)
	loyaltySvc := loyalty.NewService(rules, loyaltyRepo)
	checkoutSvc := checkout.NewService(rules, cartSvc, loyaltySvc, orderRepo, attempts,
		cfg.Checkout.ReservationTTL, cfg.Checkout.SettleBaseDelay)

	// HTTP surface: health endpoints + API routes on one server.
	h := api.NewHandler(productRepo, cartSvc, loyaltySvc, checkoutSvc)

	root := chi.NewRouter()
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Mount("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(root,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-User-Id", "X-User-Email", "X-User-Role"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("store-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
