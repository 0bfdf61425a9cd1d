package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/internal/cacheinfra"
)

// Clock is the time source of in-memory partitions. sturdyc.NewTestClock
// satisfies it.
type Clock = cacheinfra.Clock

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
	Clock              Clock
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs an in-memory partition using the provided configuration.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

// RedisConfig configures a redis partition. Prefix namespaces its keys.
type RedisConfig struct {
	Prefix string
	TTL    time.Duration
}

// NewRedisService constructs a partition stored in redis. The client is
// shared between partitions and stays owned by the caller.
func NewRedisService(client redis.UniversalClient, codec Codec, cfg RedisConfig, logger *zap.Logger) (CacheService, error) {
	return cacheinfra.NewRedisService(client, codec, cacheinfra.RedisConfig{
		Prefix: cfg.Prefix,
		TTL:    cfg.TTL,
	}, cacheinfra.WithRedisLogger(logger))
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		Clock:              c.Clock,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		Clock:              cfg.Clock,
	}
}
