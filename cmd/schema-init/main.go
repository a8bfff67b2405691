package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hackgods/consultas-service/internal/appointment"
	"github.com/hackgods/consultas-service/internal/config"
	"github.com/hackgods/consultas-service/internal/db"
	"github.com/hackgods/consultas-service/internal/logger"
	redisclient "github.com/hackgods/consultas-service/internal/redis"
)

// schema-init runs the schema initializer once, for deployments that set
// SCHEMA_INIT_MODE=skip on the api-server and prepare the table in a job.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("consultas-schema-init", cfg.LogLevel)

	mode := appointment.InitMode(cfg.SchemaInitMode)
	if mode == appointment.InitSkip {
		// skip is meant for the server; the job itself defaults to create
		mode = appointment.InitCreate
	}
	log.Info("schema-init starting", "env", cfg.Env, "mode", mode, "retry_delay", cfg.SchemaInitRetryDelay.String())

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres pool error", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var locker redisclient.Locker = redisclient.NewLocalLocker()
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Error("redis connection error", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	}

	in := appointment.NewInitializer(appointment.NewPgRepository(pool), locker, log, appointment.InitializerConfig{
		Mode:        mode,
		RetryDelay:  cfg.SchemaInitRetryDelay,
		MaxAttempts: cfg.SchemaInitMaxAttempts,
	})

	if err := in.Run(rootCtx); err != nil {
		log.Error("schema-init failed", "err", err)
		os.Exit(1)
	}
	log.Info("schema-init complete")
}
