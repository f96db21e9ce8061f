package database

import (
	"github.com/redis/go-redis/v9"

	"github.com/dbis-ilm/pipefabric-go/pkg/config"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// DefaultRedisConfig returns a default configuration for local development.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		MaxRetries: 3,
		PoolSize:   10,
	}
}

// RedisFromConfig creates a Redis config from the engine configuration.
func RedisFromConfig(cfg *config.Config) RedisConfig {
	c := DefaultRedisConfig()
	if addr := cfg.Get("table.redis.addr"); addr != "" {
		c.Addr = addr
	}
	c.DB = cfg.GetInt("table.redis.db", 0)
	return c
}

// Redis represents a Redis client used by Redis-backed tables.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a new Redis client using the provided configuration.
// The connection is verified lazily by the table constructor.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
		PoolSize:   cfg.PoolSize,
	})
	return &Redis{client: client}
}

// Client returns the underlying Redis client.
func (r *Redis) Client() *redis.Client { return r.client }

// Close closes the client connection.
func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
