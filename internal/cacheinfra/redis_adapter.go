package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TextCodeCacheBackend tags failures talking to the redis server.
const TextCodeCacheBackend = "CACHE_BACKEND"

// Codec turns cached values into bytes and back. Redis partitions store
// nothing else.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// RedisConfig configures one redis partition.
type RedisConfig struct {
	// Prefix namespaces every key of the partition. Required.
	Prefix string

	// TTL is applied on every write. Must be greater than 0.
	TTL time.Duration
}

// Validate checks the partition settings.
func (c RedisConfig) Validate() error {
	if strings.TrimSpace(c.Prefix) == "" {
		return &ConfigError{Field: "Prefix", Message: "cannot be blank"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	return nil
}

// RedisService is a partition stored in redis. Values go through the codec
// and expire server side.
type RedisService struct {
	client redis.UniversalClient
	codec  Codec
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// RedisOption configures a RedisService.
type RedisOption func(*RedisService)

// WithRedisLogger sets the logger used for failed cache writes.
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(s *RedisService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRedisService builds a partition over client. The client is shared and
// never closed by the partition.
func NewRedisService(client redis.UniversalClient, codec Codec, cfg RedisConfig, opts ...RedisOption) (*RedisService, error) {
	if client == nil {
		return nil, &ConfigError{Field: "client", Message: "cannot be nil"}
	}
	if codec == nil {
		return nil, &ConfigError{Field: "codec", Message: "cannot be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &RedisService{
		client: client,
		codec:  codec,
		prefix: strings.TrimSuffix(cfg.Prefix, ":") + ":",
		ttl:    cfg.TTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisService) key(k string) string {
	return s.prefix + k
}

// Get reads and decodes the entry for key.
func (s *RedisService) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendError(err, "GET", key)
	}

	v, err := s.codec.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return v, true, nil
}

// Set encodes value and writes it with the partition TTL.
func (s *RedisService) Set(ctx context.Context, key string, value any) error {
	data, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode cached %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return backendError(err, "SET", key)
	}
	return nil
}

// Delete removes the entry for key.
func (s *RedisService) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return backendError(err, "DEL", key)
	}
	return nil
}

// GetOrFetch reads key and falls back to fetchFn on a miss. A fetched value
// is written back; a failed write is logged and the value still returned.
// A failed read is reported rather than hiding an unreachable server.
func (s *RedisService) GetOrFetch(ctx context.Context, key string, fetchFn FetchFn) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}

	v, err = fetchFn(ctx)
	if err != nil {
		return v, err
	}
	if err := s.Set(ctx, key, v); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", s.key(key)), zap.Error(err))
	}
	return v, nil
}

func backendError(source error, op, key string) error {
	if errors.Is(source, context.Canceled) || errors.Is(source, context.DeadlineExceeded) {
		return source
	}
	err := goerrors.New(fmt.Sprintf("redis %s failed", op), goerrors.CategoryExternal).
		WithTextCode(TextCodeCacheBackend).
		WithMetadata(map[string]any{"key": key})
	err.Source = source
	return err
}
