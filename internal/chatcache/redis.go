package chatcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/model"
)

// RedisClient is the subset of redis commands the cache uses.
type RedisClient interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

var _ RedisClient = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

// NewRedisClient connects and pings. addr may be host:port or a redis:// URL.
func NewRedisClient(ctx context.Context, addr, password string, db int) (RedisClient, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
		if password != "" {
			opts.Password = password
		}
		if db != 0 {
			opts.DB = db
		}
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *redClient) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redClient) Close() error { return c.cli.Close() }

// RedisCache keeps the transcript under Key with no expiry.
type RedisCache struct {
	cli RedisClient
	log *zerolog.Logger
}

func NewRedisCache(cli RedisClient, log *zerolog.Logger) *RedisCache {
	if log == nil {
		log = logging.Nop()
	}
	return &RedisCache{cli: cli, log: log}
}

func (c *RedisCache) Load(ctx context.Context) ([]model.ChatMessage, error) {
	val, err := c.cli.Get(ctx, Key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", Key, err)
	}
	return decode([]byte(val), c.log, "redis:"+Key), nil
}

func (c *RedisCache) Save(ctx context.Context, msgs []model.ChatMessage) error {
	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal chat history: %w", err)
	}
	if err := c.cli.Set(ctx, Key, b, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", Key, err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.cli.Del(ctx, Key)
}

func (c *RedisCache) Close() error { return c.cli.Close() }
