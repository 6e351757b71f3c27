package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/telerx/rxadmin/internal/config"
	"github.com/telerx/rxadmin/internal/domain/availability"
	"github.com/telerx/rxadmin/internal/domain/billing"
	"github.com/telerx/rxadmin/internal/domain/issues"
	"github.com/telerx/rxadmin/internal/domain/orders"
	"github.com/telerx/rxadmin/internal/domain/vitals"
	"github.com/telerx/rxadmin/internal/platform/api"
	"github.com/telerx/rxadmin/internal/platform/auth"
	"github.com/telerx/rxadmin/internal/platform/db"
	"github.com/telerx/rxadmin/internal/platform/middleware"
	"github.com/telerx/rxadmin/internal/platform/payments"
	"github.com/telerx/rxadmin/internal/platform/telemetry"
	"github.com/telerx/rxadmin/internal/platform/wearables"
)

const (
	version          = "0.1.0"
	requestTimeout   = 30 * time.Second
	poolStatInterval = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// newLogger builds the process logger. hook, when set, observes every event.
func newLogger(env string, hook zerolog.Hook) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logger := zerolog.New(out).With().Timestamp().Logger()
	if hook != nil {
		logger = logger.Hook(hook)
	}
	return logger
}

// app holds the wired services.
type app struct {
	cfg     *config.Config
	pool    *pgxpool.Pool
	metrics *telemetry.Provider
	logger  zerolog.Logger

	availability *availability.Service
	orders       *orders.Service
	billing      *billing.Service
	vitals       *vitals.Service
	monitor      *issues.Monitor
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, metrics *telemetry.Provider, errorLogs *issues.ErrorLogCounter, logger zerolog.Logger) *app {
	a := &app{cfg: cfg, pool: pool, metrics: metrics, logger: logger}

	payClient := payments.NewClient(cfg.PaymentsAPIURL, cfg.PaymentsSecretKey, cfg.HTTPClientTimeout,
		payments.WithRecorder(metrics))
	wearClient := wearables.NewClient(cfg.WearablesAPIURL, cfg.WearablesAPIKey, cfg.WearablesDevID, cfg.HTTPClientTimeout,
		wearables.WithRecorder(metrics))

	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	}
	a.availability = availability.NewService(availability.NewRepoPG(pool), inTx, logger)
	a.orders = orders.NewService(orders.NewRepoPG(pool), cfg.ReviewLease, metrics, logger)
	a.billing = billing.NewService(payClient, a.orders, billing.NewCustomerRepoPG(pool), logger)
	a.vitals = vitals.NewService(wearClient, logger)

	pgStore := issues.NewPGHistoryStore(pool)
	stores := func(string) issues.HistoryStore { return pgStore }
	if cfg.IssueHistoryStore == "memory" {
		stores = func(string) issues.HistoryStore { return issues.NewMemoryHistoryStore() }
	}
	checkers := []issues.Checker{issues.NewPingChecker("database", pool.Ping, 0)}
	if cfg.PaymentsSecretKey != "" {
		checkers = append(checkers, issues.NewPingChecker("payments", payClient.Ping, 0))
	}
	if cfg.WearablesAPIKey != "" {
		checkers = append(checkers, issues.NewPingChecker("wearables", wearClient.Ping, 0))
	}
	a.monitor = issues.NewMonitor(
		issues.MonitorConfig{
			Interval:      cfg.IssuePollInterval,
			Thresholds:    issues.Thresholds{ErrorsPerHour: cfg.IssueErrorThreshold, StuckAfter: cfg.IssueStuckAfter},
			DefaultTenant: cfg.DefaultTenant,
			Tenants: func(ctx context.Context) ([]string, error) {
				return db.ListTenants(ctx, pool)
			},
		},
		checkers,
		errorLogs,
		submittedPrescriptions(a.orders),
		stores,
		func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
			return db.InTenant(ctx, pool, tenantID, fn)
		},
		metrics,
		logger,
	)
	return a
}

// submittedPrescriptions feeds the stuck-prescription rule from the order store.
func submittedPrescriptions(svc *orders.Service) issues.PrescriptionsFunc {
	return func(ctx context.Context) ([]issues.Prescription, error) {
		list, err := svc.ListSubmitted(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]issues.Prescription, len(list))
		for i, o := range list {
			out[i] = issues.Prescription{ID: o.ID, Status: string(o.Status), SubmittedAt: o.SubmittedAt}
		}
		return out, nil
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(), nil
	}
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: key,
	}), nil
}

// router builds the HTTP server. Infrastructure endpoints sit outside the
// authenticated, tenant-scoped /api/v1 group.
func (a *app) router() (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(a.logger)

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(requestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return api.OK(c, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))
	e.GET("/metrics", a.metrics.Handler())

	authMW, err := authMiddleware(a.cfg)
	if err != nil {
		return nil, err
	}
	v1 := e.Group("/api/v1",
		authMW,
		db.TenantMiddleware(a.pool, a.cfg.DefaultTenant),
		middleware.RateLimit(rateLimitConfig(a.cfg)),
	)

	availability.NewHandler(a.availability).RegisterRoutes(v1)
	orders.NewHandler(a.orders).RegisterRoutes(v1)
	billing.NewHandler(a.billing).RegisterRoutes(v1)
	vitals.NewHandler(a.vitals).RegisterRoutes(v1)
	issues.NewHandler(a.monitor).RegisterRoutes(v1)

	return e, nil
}

// reportPoolStats publishes pool occupancy until ctx is done.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, metrics *telemetry.Provider, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		s := pool.Stat()
		metrics.SetDBPool(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	errorLogs := issues.NewErrorLogCounter()
	logger := newLogger(cfg.Env, errorLogs)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	metrics, err := telemetry.New(telemetry.Config{
		ServiceName:       "rxadmin-server",
		ServiceVersion:    version,
		Environment:       cfg.Env,
		RuntimeCollectors: true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	a := newApp(cfg, pool, metrics, errorLogs, logger)
	e, err := a.router()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	a.monitor.Start(ctx)
	defer a.monitor.Stop()
	go reportPoolStats(ctx, pool, metrics, poolStatInterval)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
