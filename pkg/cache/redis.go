package cache

import (
	"context"
	"errors"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisConfig struct {
	Address    string        `yaml:"address"`
	Password   string        `yaml:"password"`
	Database   int           `yaml:"database" validate:"gte=0"`
	Expiration time.Duration `yaml:"expiration"`
}

// ConnectRedis opens a client and checks it answers a ping.
func ConnectRedis(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	options := &redis.Options{
		Addr: config.Address,
		DB:   config.Database,
	}
	if config.Password != "" {
		options.Password = config.Password
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().Str("address", config.Address).Int("database", config.Database).Msg("Connected to Redis")

	return client, nil
}

type RedisStore struct {
	Cache *cache.Cache[string]
}

// NewRedisStore keeps entries forever when expiration is zero.
func NewRedisStore(client *redis.Client, expiration time.Duration) *RedisStore {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &RedisStore{
		Cache: cache.New[string](redisStore),
	}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	value, err := s.Cache.Get(ctx, key)
	if errors.Is(err, store.NotFound{}) || errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return []byte(value), nil
}

func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	return s.Cache.Set(ctx, key, string(value))
}
