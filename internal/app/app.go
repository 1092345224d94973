package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/candle-shop/internal/delivery"
	"github.com/xenking/candle-shop/internal/domain/cart"
	"github.com/xenking/candle-shop/internal/domain/order"
	"github.com/xenking/candle-shop/internal/handler"
	"github.com/xenking/candle-shop/internal/notify"
	"github.com/xenking/candle-shop/internal/notify/email"
	"github.com/xenking/candle-shop/internal/notify/telegram"
	"github.com/xenking/candle-shop/internal/session"
	"github.com/xenking/candle-shop/internal/storage/postgres"
	"github.com/xenking/candle-shop/pkg/health"
	"github.com/xenking/candle-shop/pkg/httpmiddleware"
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

	// Redis keeps session carts and the warehouse cache.
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	carts := session.NewStore(rdb, cfg.Session.TTL)

	// Domain services.
	notifier := newNotifier(lg, cfg, m)
	orderService, err := order.NewService(orderRepo, catalogRepo, notifier, m)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	cartService := cart.NewService(catalogRepo)

	warehouses := delivery.NewCached(
		delivery.NewNovaPoshta(delivery.NovaPoshtaConfig{
			APIKey: cfg.NovaPoshta.APIKey,
			URL:    cfg.NovaPoshta.URL,
		}, outboundClient(cfg.NovaPoshta.Timeout, m)),
		rdb,
		cfg.NovaPoshta.CacheTTL,
	)

	// HTTP handlers.
	h, err := handler.New(handler.Config{
		Catalog:  catalogRepo,
		Carts:    carts,
		Pricer:   cartService,
		Orders:   orderService,
		Delivery: warehouses,
		Session: handler.SessionConfig{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.Secure,
			TTL:        cfg.Session.TTL,
		},
		Telemetry: m,
	})
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, httpmiddleware.RateLimit(rdb, httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: sessionOrAddr(cfg.Session.CookieName),
	}))
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Checkout waits for the operator notification.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("candle-shop", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
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

// newNotifier combines the configured operator channels.
func newNotifier(lg *zap.Logger, cfg *Config, m *app.Telemetry) order.Notifier {
	var channels notify.Multi

	tg := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		ChatID:  cfg.Telegram.ChatID,
		BaseURL: cfg.Telegram.BaseURL,
	}, outboundClient(cfg.Telegram.Timeout, m))
	if tg.Enabled() {
		channels = append(channels, tg)
	} else {
		lg.Warn("Telegram notifications disabled: token or chat id not set")
	}

	mail := email.New(email.Config{
		APIKey:    cfg.SendGrid.APIKey,
		FromEmail: cfg.SendGrid.FromEmail,
		FromName:  cfg.SendGrid.FromName,
		To:        cfg.SendGrid.To,
	})
	if mail.Enabled() {
		channels = append(channels, mail)
	}

	if len(channels) == 0 {
		return notify.Nop{}
	}
	return channels
}

// outboundClient returns an instrumented client for third-party APIs.
func outboundClient(timeout time.Duration, m *app.Telemetry) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
}

// sessionOrAddr keys the rate limiter by session cookie, falling back to the
// client address for visitors without one.
func sessionOrAddr(cookie string) func(*http.Request) string {
	return func(r *http.Request) string {
		if c, err := r.Cookie(cookie); err == nil && session.ValidID(c.Value) {
			return "session:" + c.Value
		}
		return httpmiddleware.ClientAddr(r)
	}
}
