package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
)

// PostgresStore keeps blobs in the model_artifacts table created by
// migrations/000001_create_model_artifacts. Save upserts every blob in one
// transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

const (
	selectArtifactSQL = `SELECT data FROM model_artifacts WHERE name = $1`
	upsertArtifactSQL = `
		INSERT INTO model_artifacts (name, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
)

// NewPostgresStore opens a pgx pool and pings the database
func NewPostgresStore(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	logger.Info("postgres artifact store initialized", zap.Int32("max_conns", poolCfg.MaxConns))

	return NewPostgresStoreFromPool(pool, logger), nil
}

// NewPostgresStoreFromPool wraps an existing pool; Close closes it
func NewPostgresStoreFromPool(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Load implements Store
func (s *PostgresStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.pool.QueryRow(ctx, selectArtifactSQL, name).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		s.logger.Error("postgres load failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return data, nil
}

// Save implements Store
func (s *PostgresStore) Save(ctx context.Context, blobs []Blob) error {
	if err := validateBlobs(blobs); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, b := range blobs {
			if _, err := tx.Exec(ctx, upsertArtifactSQL, b.Name, b.Data); err != nil {
				return fmt.Errorf("upserting %s: %w", b.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("postgres save failed", zap.Int("count", len(blobs)), zap.Error(err))
		return err
	}
	return nil
}

// Ping implements Store
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Backend implements Store
func (s *PostgresStore) Backend() string {
	return "postgres"
}

// Close implements Store
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
