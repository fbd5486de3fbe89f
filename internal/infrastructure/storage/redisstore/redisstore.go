// Package redisstore keeps the customer Database as one JSON value under a
// single Redis key. A SET replaces the whole value atomically.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"loyalty-tracker/internal/config"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/infrastructure/monitoring"
	"loyalty-tracker/internal/pkg/apperrors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "loyalty:database"

// Client is the subset of *redis.Client used by RedisStore.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type RedisStore struct {
	client Client
	key    string
	strict bool
	logger *slog.Logger
}

var _ customer.Storage = (*RedisStore)(nil)

func NewClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Successfully connected to Redis.", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}

func New(client Client, key string, strict bool, logger *slog.Logger) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to redisstore.New, using default stderr handler")
	}
	return &RedisStore{
		client: client,
		key:    key,
		strict: strict,
		logger: logger.With("component", "RedisStore", "key", key),
	}
}

func (s *RedisStore) Load(ctx context.Context) (db *customer.Database, err error) {
	start := time.Now()
	defer func() { monitoring.ObserveStorage("redis", "load", time.Since(start).Seconds(), err) }()

	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		raw, err = s.initialize(ctx)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return customer.NewDatabase(), nil
		}
	} else if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read database key", slog.Any("error", err))
		return nil, apperrors.WrapStorageError(err, "failed to read database key")
	}

	db, decodeErr := customer.UnmarshalDatabase(raw)
	if decodeErr != nil {
		if s.strict {
			s.logger.ErrorContext(ctx, "Stored database is malformed", slog.Any("error", decodeErr))
			return nil, decodeErr
		}
		s.logger.WarnContext(ctx, "Stored database is malformed, treating as empty database", slog.Any("error", decodeErr))
		return customer.NewDatabase(), nil
	}
	return db, nil
}

// initialize stores an empty database only if the key is still absent. When
// another writer got there first it returns that writer's value instead; a nil
// result means the empty database was stored.
func (s *RedisStore) initialize(ctx context.Context) ([]byte, error) {
	body, err := customer.MarshalDatabase(customer.NewDatabase())
	if err != nil {
		return nil, apperrors.WrapStorageError(err, "failed to encode database")
	}

	created, err := s.client.SetNX(ctx, s.key, body, 0).Result()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to initialize database key", slog.Any("error", err))
		return nil, apperrors.WrapStorageError(err, "failed to initialize database key")
	}
	if created {
		s.logger.InfoContext(ctx, "Key not found, initialized empty database")
		return nil, nil
	}

	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to re-read database key", slog.Any("error", err))
		return nil, apperrors.WrapStorageError(err, "failed to read database key")
	}
	return raw, nil
}

func (s *RedisStore) Replace(ctx context.Context, db *customer.Database) (err error) {
	start := time.Now()
	defer func() { monitoring.ObserveStorage("redis", "replace", time.Since(start).Seconds(), err) }()

	if db == nil {
		return fmt.Errorf("%w: database cannot be nil", apperrors.ErrInvalidArgument)
	}
	return s.set(ctx, db)
}

func (s *RedisStore) set(ctx context.Context, db *customer.Database) error {
	body, err := customer.MarshalDatabase(db)
	if err != nil {
		return apperrors.WrapStorageError(err, "failed to encode database")
	}
	if err := s.client.Set(ctx, s.key, body, 0).Err(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write database key", slog.Any("error", err))
		return apperrors.WrapStorageError(err, "failed to write database key")
	}
	return nil
}
