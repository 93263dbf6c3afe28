package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/courier-pricing/internal/couponapi"
	"github.com/xenking/courier-pricing/internal/domain/cart"
	"github.com/xenking/courier-pricing/internal/domain/checkout"
	"github.com/xenking/courier-pricing/internal/domain/shipment"
	"github.com/xenking/courier-pricing/internal/handler"
	"github.com/xenking/courier-pricing/internal/mapbox"
	"github.com/xenking/courier-pricing/internal/osrm"
	"github.com/xenking/courier-pricing/internal/storage/postgres"
	redisstore "github.com/xenking/courier-pricing/internal/storage/redis"
	"github.com/xenking/courier-pricing/pkg/health"
	"github.com/xenking/courier-pricing/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis for cart snapshots.
	rdb, err := redisstore.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() { _ = rdb.Close() }()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", health.PingCheck("postgres", pool.Ping), health.WithTimeout(5*time.Second))
	healthSvc.AddReadinessCheck("redis", health.PingCheck("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}), health.WithTimeout(5*time.Second))
	healthSvc.AddLivenessCheck("goroutines", health.GoroutineCountCheck(10000), health.WithTimeout(time.Second))
	healthSvc.Start(ctx, 10*time.Second)

	// Cart sessions.
	snapshots := redisstore.NewSnapshotStore(rdb, cfg.Cart.SnapshotTTL)
	saver := cart.NewSaver(snapshots, cfg.Cart.SaveDebounce, cfg.Cart.SaveTimeout, lg.Named("cart"))
	carts := cart.NewService(snapshots, saver)
	go carts.RunEviction(ctx, cfg.Cart.EvictInterval, cfg.Cart.IdleEviction)

	// Upstream clients share the process telemetry.
	upstream := func(timeout time.Duration) *http.Client {
		return &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		}
	}

	if cfg.Geocoder.AccessToken == "" {
		lg.Warn("Geocoder access token is not set, addresses without stored coordinates cannot be quoted")
	}
	geocoder := mapbox.NewClient(cfg.Geocoder.AccessToken,
		mapbox.WithBaseURL(cfg.Geocoder.BaseURL),
		mapbox.WithCountry(cfg.Geocoder.Country),
		mapbox.WithTimeout(cfg.Geocoder.Timeout),
		mapbox.WithHTTPClient(upstream(cfg.Geocoder.Timeout)),
	)
	directions := osrm.NewClient(
		osrm.WithBaseURL(cfg.Directions.BaseURL),
		osrm.WithProfile(cfg.Directions.Profile),
		osrm.WithTimeout(cfg.Directions.Timeout),
		osrm.WithHTTPClient(upstream(cfg.Directions.Timeout)),
	)
	coupons, err := couponapi.NewClient(cfg.Coupon.URL,
		couponapi.WithTimeout(cfg.Coupon.Timeout),
		couponapi.WithHTTPClient(upstream(cfg.Coupon.Timeout)),
	)
	if err != nil {
		return errors.Wrap(err, "create coupon client")
	}

	// Domain services.
	locations := postgres.NewLocationRepository(pool)
	rules := postgres.NewPricingRuleRepository(pool)
	resolver, err := shipment.NewResolver(
		shipment.NewFallbackResolver(locations, geocoder, cfg.Geocoder.Region),
		directions,
		rules,
		shipment.WithTracerProvider(m.TracerProvider()),
		shipment.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create shipment resolver")
	}
	checkoutSvc := checkout.NewService(carts, coupons, resolver)

	clientKey := httpmiddleware.RemoteIP
	if cfg.RateLimit.TrustForwardedFor {
		clientKey = httpmiddleware.ClientIP
	}
	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Rate:    cfg.RateLimit.Rate,
		Burst:   cfg.RateLimit.Burst,
		IdleTTL: cfg.RateLimit.IdleTTL,
		KeyFunc: clientKey,
	})
	go limiter.RunPruning(ctx, time.Minute)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(carts, coupons, resolver, checkoutSvc).Mount(router, limiter.Middleware())

	routeFinder := httpmiddleware.ChiRouteFinder(router)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("courier-pricing", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
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
		if err := saver.Flush(shutdownCtx); err != nil {
			lg.Error("Flush cart snapshots", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
