package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/consultas-service/internal/api"
	"github.com/hackgods/consultas-service/internal/appointment"
	"github.com/hackgods/consultas-service/internal/config"
	"github.com/hackgods/consultas-service/internal/db"
	"github.com/hackgods/consultas-service/internal/logger"
	redisclient "github.com/hackgods/consultas-service/internal/redis"
	"github.com/hackgods/consultas-service/internal/telemetry"
)

const serviceName = "consultas-api"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("api-server starting up", "env", cfg.Env, "port", cfg.HTTPPort, "store", cfg.StoreDriver, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(ctx)
		}()
	}

	// The pool does not dial here; the database may still be starting.
	var (
		repo   appointment.Repository
		pgPool *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		repo = appointment.NewMemoryRepository()
		log.Warn("using in-memory store, data is lost on exit")
	default:
		pgPool, err = db.NewPostgresPool(rootCtx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres pool error", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()
		repo = appointment.NewPgRepository(pgPool)
	}

	locker, rdb := newLocker(rootCtx, cfg, log)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("error closing redis", "err", err)
			}
		}()
	}

	svc := appointment.NewService(repo, locker, log, cfg.LockTTL)

	checks := []api.ReadinessCheck{{Name: "store", Check: svc.Ping}}
	if rdb != nil {
		checks = append(checks, api.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	var handler http.Handler = api.NewRouter(api.RouterConfig{
		Service:        svc,
		Logger:         log,
		Checks:         checks,
		Env:            cfg.Env,
		Version:        version,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	if cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "consultas")
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.HTTPPort)
	if err != nil {
		log.Error("listen error", "err", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	log.Info("server started", "name", serviceName, "url", "http://localhost:"+cfg.HTTPPort)

	// Requests are already being accepted; until this finishes they fail
	// with store errors.
	initializer := appointment.NewInitializer(repo, locker, log, appointment.InitializerConfig{
		Mode:        appointment.InitMode(cfg.SchemaInitMode),
		RetryDelay:  cfg.SchemaInitRetryDelay,
		MaxAttempts: cfg.SchemaInitMaxAttempts,
	})
	go func() {
		if err := initializer.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("schema initializer stopped", "err", err)
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("http server error", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "err", err)
	}
	log.Info("api-server stopped")
}

// newLocker prefers Redis so that replicas share the schema lock, and falls
// back to an in-process lock when Redis is absent or unreachable.
func newLocker(ctx context.Context, cfg config.Config, log *slog.Logger) (redisclient.Locker, *redis.Client) {
	if cfg.RedisAddr == "" {
		return redisclient.NewLocalLocker(), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Warn("redis unavailable, using local schema lock", "err", err)
		return redisclient.NewLocalLocker(), nil
	}
	log.Info("connected to Redis", "addr", cfg.RedisAddr)
	return redisclient.NewRedisLocker(rdb, cfg.LockTTL), rdb
}
