package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "docgen:artifact:"

// RedisIndex shares the identifier index between processes. Redis errors
// degrade to cache misses; the store stays the source of truth.
type RedisIndex struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisIndex(rdb *redis.Client, log *slog.Logger) *RedisIndex {
	if log == nil {
		log = slog.Default()
	}
	return &RedisIndex{rdb: rdb, log: log.With("component", "redis_index")}
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func indexKey(id string) string { return keyPrefix + id }

func (r *RedisIndex) Remember(ctx context.Context, id, storedName string, ttl time.Duration) error {
	return r.rdb.Set(ctx, indexKey(id), storedName, ttl).Err()
}

func (r *RedisIndex) Lookup(ctx context.Context, id string) (string, bool) {
	v, err := r.rdb.Get(ctx, indexKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("index lookup failed", "id", id, "err", err)
		}
		return "", false
	}
	return v, true
}

func (r *RedisIndex) Forget(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, indexKey(id)).Err()
}

// Ping is used by the health endpoint.
func (r *RedisIndex) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
