// Command dashboard serves the bot statistics dashboard API: period-scoped,
// cached statistics from the bot backend plus formatted widget views.
//
// @title       Bot Statistics Dashboard API
// @version     1.0
// @description Period-scoped, cached statistics of the Telegram bot backend, formatted for the dashboard.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-bot-dashboard/docs"
	"github.com/tbourn/go-bot-dashboard/internal/config"
	"github.com/tbourn/go-bot-dashboard/internal/domain"
	"github.com/tbourn/go-bot-dashboard/internal/format"
	httpapi "github.com/tbourn/go-bot-dashboard/internal/http"
	"github.com/tbourn/go-bot-dashboard/internal/observability"
	"github.com/tbourn/go-bot-dashboard/internal/query"
	"github.com/tbourn/go-bot-dashboard/internal/resilience"
	"github.com/tbourn/go-bot-dashboard/internal/services"
	"github.com/tbourn/go-bot-dashboard/internal/statsclient"
	"github.com/tbourn/go-bot-dashboard/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	closeLogs := sysutil.SetupLogger(sysutil.LogOptions{Level: cfg.LogLevel, Pretty: cfg.LogPretty, File: cfg.LogFile})
	defer func() { _ = closeLogs() }()

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("dashboard stopped")
		_ = closeLogs()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version, "dev")
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	client, err := statsclient.New(statsclient.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		Username: cfg.Upstream.Username,
		Password: cfg.Upstream.Password,
		Timeout:  cfg.Upstream.Timeout,
	})
	if err != nil {
		return err
	}

	stats := query.NewStatistics(client, statisticsOptions(cfg))
	defer func() { _ = stats.Close() }()

	loc, err := time.LoadLocation(cfg.Format.Timezone)
	if err != nil {
		return err
	}
	f, err := format.New(cfg.Format.Locale, format.WithLocation(loc), format.WithStrict(cfg.Development()))
	if err != nil {
		return err
	}
	dashboard := services.NewDashboardService(stats, f)

	// Warm the period the dashboard opens on.
	if err := stats.Prefetch(domain.DefaultPeriod); err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Stats: stats, Views: dashboard, Upstream: client}, cfg)

	// Request contexts derive from baseCtx so open event streams end on shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	srv.RegisterOnShutdown(cancelBase)

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			EmbedObject(cfg).
			Msg("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

// statisticsOptions maps configuration onto the query layer.
func statisticsOptions(cfg config.Config) query.StatisticsOptions {
	opts := query.StatisticsOptions{
		Cache: query.Options{
			StaleTime:       cfg.Query.StaleTime,
			RefetchInterval: cfg.Query.RefetchInterval,
			MaxEntries:      cfg.Query.MaxEntries,
		},
		Retry: resilience.RetryConfig{
			MaxRetries: cfg.Query.Retry,
			BaseDelay:  cfg.Query.RetryDelay,
			MaxDelay:   cfg.Query.RetryMaxDelay,
		},
	}
	if cfg.Query.RefetchInterval == 0 {
		opts.Cache.RefetchInterval = -1
	}
	if cfg.Query.BreakerEnabled {
		b := resilience.DefaultBreakerConfig("stats-upstream")
		b.FailureThreshold = uint32(cfg.Query.BreakerFailures)
		b.Timeout = cfg.Query.BreakerCooldown
		opts.Breaker = &b
	}
	return opts
}
