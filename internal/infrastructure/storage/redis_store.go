package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-scoring-service/internal/infrastructure/config"
)

// RedisStore keeps blobs under <prefix><name>. Save runs in a MULTI/EXEC
// transaction so the blobs of one generation land together.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore connects and pings Redis
func NewRedisStore(cfg *config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.URL,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis artifact store initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB),
		zap.String("key_prefix", cfg.KeyPrefix))

	return &RedisStore{client: client, prefix: cfg.KeyPrefix, logger: logger}, nil
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Load implements Store
func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		s.logger.Error("redis get failed", zap.String("key", s.key(name)), zap.Error(err))
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Save implements Store
func (s *RedisStore) Save(ctx context.Context, blobs []Blob) error {
	if err := validateBlobs(blobs); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, b := range blobs {
			pipe.Set(ctx, s.key(b.Name), b.Data, 0)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("redis save failed", zap.Int("count", len(blobs)), zap.Error(err))
		return fmt.Errorf("redis save failed: %w", err)
	}
	return nil
}

// Ping implements Store
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Backend implements Store
func (s *RedisStore) Backend() string {
	return "redis"
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
