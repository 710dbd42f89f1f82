package credentials

import (
	"context"
	"fmt"

	"github.com/sanchez314c/agent-chat/config"
	"github.com/sanchez314c/agent-chat/internal/database"
	"go.uber.org/zap"
)

// Open builds the store selected by cfg.Credentials.Backend. The env
// backend is a memory store with environment overrides forced on.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "credentials"))

	var (
		backing Store
		err     error
	)
	backend := cfg.Credentials.Backend
	switch backend {
	case "", "memory", "env":
		backing = NewMemoryStore()
	case "file":
		backing, err = NewFileStore(cfg.Credentials.FilePath)
	case "sql":
		backing, err = openSQL(ctx, cfg.Database, logger)
	case "redis":
		backing, err = OpenRedisStore(ctx, cfg.Redis, cfg.Credentials.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s credential store: %w", backend, err)
	}

	logger.Info("credential store ready",
		zap.String("backend", backend),
		zap.Bool("env_override", cfg.Credentials.EnvOverride || backend == "env"),
	)

	if cfg.Credentials.EnvOverride || backend == "env" {
		return NewEnvStore(backing), nil
	}
	return backing, nil
}

func openSQL(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*SQLStore, error) {
	pool, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	store := NewSQLStore(pool)
	if err := store.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases resources held by s, if any.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
