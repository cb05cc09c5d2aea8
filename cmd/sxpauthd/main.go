// Command sxpauthd serves the sxpauth engine over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sxpoptimizer/sxpauth"
	"github.com/sxpoptimizer/sxpauth/httpapi"
	"github.com/sxpoptimizer/sxpauth/internal"
	"github.com/sxpoptimizer/sxpauth/internal/audit"
)

const maintenanceInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sxpauthd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env-file", "", "optional .env file; ./.env is tried when empty")
	trustProxy := flag.Bool("trust-proxy", false, "take the client IP from X-Forwarded-For / X-Real-IP")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := sxpauth.LoadConfig(files...)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cfg.Session.Secret == "" && strings.EqualFold(cfg.Session.SigningMethod, "hs256") {
		secret, err := internal.NewOpaqueToken()
		if err != nil {
			return err
		}
		cfg.Session.Secret = secret
		logger.Warn("no session secret configured; generated one for this process, sessions will not survive a restart",
			slog.String("component", "sxpauthd"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := sxpauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithAuditSink(audit.NewLogSink(logger.With(slog.String("component", "audit")))).
		WithMetricsRegistry(reg).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.New(engine, logger, httpapi.Options{AdminToken: cfg.HTTP.AdminToken, TrustProxy: *trustProxy}).Routes(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	if cfg.HTTP.AdminToken == "" {
		logger.Info("admin routes disabled; set SXP_HTTP_ADMIN_TOKEN to enable them", slog.String("component", "sxpauthd"))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", slog.String("component", "sxpauthd"), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		maintain(gctx, engine, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.String("component", "sxpauthd"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// maintain prunes the event log and expired tokens until ctx ends.
func maintain(ctx context.Context, engine *sxpauth.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned := engine.PruneEvents(ctx)
			removed, err := engine.CleanupExpiredTokens(ctx)
			if err != nil {
				logger.WarnContext(ctx, "token cleanup failed",
					slog.String("component", "sxpauthd"),
					slog.Any("error", err))
			}
			logger.DebugContext(ctx, "maintenance done",
				slog.String("component", "sxpauthd"),
				slog.Int("events_pruned", pruned),
				slog.Int("tokens_removed", removed))
		}
	}
}

func newLogger(cfg sxpauth.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler), nil
}

// openRedis connects to cfg.Addr, or starts an in-process miniredis when no
// address is configured.
func openRedis(ctx context.Context, cfg sxpauth.RedisConfig, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.Addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start in-memory redis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger.Warn("SXP_REDIS_ADDR not set; using an in-memory store, data is lost on exit",
			slog.String("component", "sxpauthd"))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("connected to redis", slog.String("component", "sxpauthd"), slog.String("addr", cfg.Addr))
	return client, func() { _ = client.Close() }, nil
}
