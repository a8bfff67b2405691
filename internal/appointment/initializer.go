package appointment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redisclient "github.com/hackgods/consultas-service/internal/redis"
)

type InitMode string

const (
	// InitDropCreate discards any existing table on every start.
	InitDropCreate InitMode = "drop-create"
	// InitCreate only creates the table when it is missing.
	InitCreate InitMode = "create"
	// InitSkip leaves the schema to an external job.
	InitSkip InitMode = "skip"
)

type InitializerConfig struct {
	Mode        InitMode
	RetryDelay  time.Duration
	MaxAttempts int // 0 retries until ctx is done
}

// Initializer makes sure the consultas table exists before the service is
// usable, retrying with a fixed delay while the database is unreachable.
type Initializer struct {
	repo   Repository
	locker redisclient.Locker
	logger *slog.Logger
	cfg    InitializerConfig
}

func NewInitializer(repo Repository, locker redisclient.Locker, logger *slog.Logger, cfg InitializerConfig) *Initializer {
	if cfg.Mode == "" {
		cfg.Mode = InitDropCreate
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Initializer{
		repo:   repo,
		locker: locker,
		logger: logger.With("component", "schema-initializer"),
		cfg:    cfg,
	}
}

// Run blocks until the schema is in place, ctx is cancelled or the attempt
// budget is spent.
func (in *Initializer) Run(ctx context.Context) error {
	if in.cfg.Mode == InitSkip {
		in.logger.Info("schema initialization skipped")
		return nil
	}

	in.logger.Info("initializing database", "mode", in.cfg.Mode)

	for attempt := 1; ; attempt++ {
		err := in.locker.WithLock(ctx, SchemaLockName, in.apply)
		if err == nil {
			in.logger.Info("database initialized", "mode", in.cfg.Mode, "attempts", attempt)
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if in.cfg.MaxAttempts > 0 && attempt >= in.cfg.MaxAttempts {
			in.logger.Error("database initialization gave up", "attempts", attempt, "err", err)
			return fmt.Errorf("initialize schema after %d attempts: %w", attempt, err)
		}

		in.logger.Error("database initialization failed, retrying",
			"attempt", attempt,
			"retry_in", in.cfg.RetryDelay.String(),
			"err", err,
		)

		timer := time.NewTimer(in.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (in *Initializer) apply(ctx context.Context) error {
	switch in.cfg.Mode {
	case InitCreate:
		return in.repo.EnsureSchema(ctx)
	case InitDropCreate:
		return in.repo.ResetSchema(ctx)
	default:
		return fmt.Errorf("unknown init mode %q", in.cfg.Mode)
	}
}
