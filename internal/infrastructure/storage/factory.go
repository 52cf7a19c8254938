package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-scoring-service/internal/domain/errors"
	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
)

// New creates the Store selected by cfg.Model.Store
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.Model.Store {
	case "file", "":
		return NewFileStore(cfg.Storage.File.Dir, logger)
	case "redis":
		return NewRedisStore(&cfg.Storage.Redis, logger)
	case "s3":
		return NewS3Store(ctx, &cfg.Storage.S3, logger)
	case "postgres":
		return NewPostgresStore(ctx, &cfg.Storage.Postgres, logger)
	default:
		return nil, errors.NewValidationError("UNKNOWN_STORE",
			fmt.Sprintf("unknown artifact store: %s", cfg.Model.Store))
	}
}
