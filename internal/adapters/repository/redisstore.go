package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/weekgrid/internal/domain/recurrence"
	"github.com/okian/weekgrid/pkg/logger"
)

// RedisClient is the subset of Redis the store needs.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

// goRedisClient adapts *redis.Client to RedisClient.
type goRedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to addr.
func NewRedisClient(addr string) RedisClient {
	return &goRedisClient{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *goRedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (c *goRedisClient) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// RedisStore keeps the whole document under a single key.
type RedisStore struct {
	client RedisClient
	key    string
	logger logger.Logger
}

// NewRedisStore pings the server and returns a store writing to key.
func NewRedisStore(ctx context.Context, client RedisClient, key string, opts ...Option) (*RedisStore, error) {
	o := buildOptions(opts)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	o.logger.Info(ctx, "redis store ready", logger.String("key", key))
	return &RedisStore{client: client, key: key, logger: o.logger}, nil
}

func (s *RedisStore) Name() string { return BackendRedis }

func (s *RedisStore) Load(ctx context.Context) (store *recurrence.WeekStore, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrNotFound) {
			observe(ctx, s.logger, BackendRedis, "load", start, err)
		}
	}()

	raw, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	return Decode([]byte(raw))
}

func (s *RedisStore) Save(ctx context.Context, store *recurrence.WeekStore) (err error) {
	start := time.Now()
	defer func() { observe(ctx, s.logger, BackendRedis, "save", start, err) }()

	data, err := Encode(store)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}
