package storages

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "infsite:page:"

type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// RedisStore keeps documents as plain string values without expiry.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = new(RedisStore)

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisStore{
		rdb: rdb,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	content, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}
