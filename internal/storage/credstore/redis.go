package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	// KeyPrefix namespaces every key.
	KeyPrefix string

	// TTL expires keys after each write. Zero keeps them forever.
	TTL time.Duration
}

// Redis is a Store backed by a Redis server.
type Redis struct {
	rdb    redis.UniversalClient
	cfg    RedisConfig
	ownRDB bool
}

// NewRedis wraps an existing client. The caller keeps ownership of rdb.
func NewRedis(rdb redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Redis{rdb: rdb, cfg: cfg}
}

// NewRedisFromURL dials the server named by a redis:// URL and checks it
// answers PING.
func NewRedisFromURL(ctx context.Context, rawURL string, cfg RedisConfig) (*Redis, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("credstore: redis url is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("credstore: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("credstore: redis ping: %w", err)
	}

	r := NewRedis(rdb, cfg)
	r.ownRDB = true
	return r, nil
}

func (r *Redis) key(k string) string {
	return r.cfg.KeyPrefix + k
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", r.wrap("get", err)
	}
	return v, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.wrap("set", r.rdb.Set(ctx, r.key(key), value, r.cfg.TTL).Err())
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.wrap("delete", r.rdb.Del(ctx, r.key(key)).Err())
}

// SetPair writes both keys in one MULTI/EXEC transaction.
func (r *Redis) SetPair(ctx context.Context, k1, v1, k2, v2 string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(k1), v1, r.cfg.TTL)
		pipe.Set(ctx, r.key(k2), v2, r.cfg.TTL)
		return nil
	})
	return r.wrap("set pair", err)
}

// DeletePair removes both keys in one command.
func (r *Redis) DeletePair(ctx context.Context, k1, k2 string) error {
	return r.wrap("delete pair", r.rdb.Del(ctx, r.key(k1), r.key(k2)).Err())
}

func (r *Redis) wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.ErrClosed):
		return ErrClosed
	default:
		return fmt.Errorf("credstore: redis %s: %w", op, err)
	}
}

// Close closes the client if the store created it.
func (r *Redis) Close() error {
	if !r.ownRDB {
		return nil
	}
	return r.rdb.Close()
}
