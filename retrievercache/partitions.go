package retrievercache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/cache"
	"github.com/goliatone/go-entity-retriever/entity"
	"github.com/goliatone/go-entity-retriever/retriever"
)

// Partitions sizes the in-memory partition of every kind. Each kind gets its
// own capacity and TTL.
type Partitions struct {
	GuildConfig cache.Config
	AdminConfig cache.Config
	AuditConfig cache.Config
	LocalMember cache.Config
	MessageInfo cache.Config
}

// DefaultPartitions returns partitions sized for a single bot process:
// configuration kinds live long, members and messages churn faster.
func DefaultPartitions() Partitions {
	long := cache.DefaultConfig()
	long.Capacity = 5000
	long.NumShards = 16
	long.TTL = 30 * time.Minute

	churn := cache.DefaultConfig()
	churn.Capacity = 20000
	churn.NumShards = 64
	churn.TTL = 5 * time.Minute

	return Partitions{
		GuildConfig: long,
		AdminConfig: long,
		AuditConfig: long,
		LocalMember: churn,
		MessageInfo: churn,
	}
}

// Validate checks every partition and names the failing kind.
func (p Partitions) Validate() error {
	for _, part := range p.list() {
		if err := part.cfg.Validate(); err != nil {
			return fmt.Errorf("%s partition: %w", part.kind, err)
		}
	}
	return nil
}

// WithClock sets the time source of every partition.
func (p Partitions) WithClock(clock cache.Clock) Partitions {
	p.GuildConfig.Clock = clock
	p.AdminConfig.Clock = clock
	p.AuditConfig.Clock = clock
	p.LocalMember.Clock = clock
	p.MessageInfo.Clock = clock
	return p
}

type namedConfig struct {
	kind string
	cfg  cache.Config
}

func (p Partitions) list() []namedConfig {
	return []namedConfig{
		{"GuildConfig", p.GuildConfig},
		{"AdminConfig", p.AdminConfig},
		{"AuditConfig", p.AuditConfig},
		{"LocalMember", p.LocalMember},
		{"MessageInfo", p.MessageInfo},
	}
}

// Services holds the cache backing each kind.
type Services struct {
	GuildConfig cache.CacheService
	AdminConfig cache.CacheService
	AuditConfig cache.CacheService
	LocalMember cache.CacheService
	MessageInfo cache.CacheService
}

// NewMemoryServices builds an in-memory partition per kind.
func NewMemoryServices(p Partitions) (Services, error) {
	var (
		s   Services
		err error
	)
	if s.GuildConfig, err = memory("GuildConfig", p.GuildConfig); err != nil {
		return Services{}, err
	}
	if s.AdminConfig, err = memory("AdminConfig", p.AdminConfig); err != nil {
		return Services{}, err
	}
	if s.AuditConfig, err = memory("AuditConfig", p.AuditConfig); err != nil {
		return Services{}, err
	}
	if s.LocalMember, err = memory("LocalMember", p.LocalMember); err != nil {
		return Services{}, err
	}
	if s.MessageInfo, err = memory("MessageInfo", p.MessageInfo); err != nil {
		return Services{}, err
	}
	return s, nil
}

func memory(kind string, cfg cache.Config) (cache.CacheService, error) {
	svc, err := cache.NewCacheService(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s partition: %w", kind, err)
	}
	return svc, nil
}

// NewRedisServices builds a Redis partition per kind. Entries are encoded
// with the row codec of each kind and expire after the partition TTL; keys
// are prefixed with prefix and the kind namespace.
func NewRedisServices(client redis.UniversalClient, reg *entity.Registry, prefix string, p Partitions, logger *zap.Logger) (Services, error) {
	var (
		s   Services
		err error
	)
	if s.GuildConfig, err = redisPartition(client, reg, prefix, retriever.GuildConfigSchema(), p.GuildConfig.TTL, logger); err != nil {
		return Services{}, err
	}
	if s.AdminConfig, err = redisPartition(client, reg, prefix, retriever.AdminConfigSchema(), p.AdminConfig.TTL, logger); err != nil {
		return Services{}, err
	}
	if s.AuditConfig, err = redisPartition(client, reg, prefix, retriever.AuditConfigSchema(), p.AuditConfig.TTL, logger); err != nil {
		return Services{}, err
	}
	if s.LocalMember, err = redisPartition(client, reg, prefix, retriever.LocalMemberSchema(), p.LocalMember.TTL, logger); err != nil {
		return Services{}, err
	}
	if s.MessageInfo, err = redisPartition(client, reg, prefix, retriever.MessageInfoSchema(), p.MessageInfo.TTL, logger); err != nil {
		return Services{}, err
	}
	return s, nil
}

func redisPartition[T any](client redis.UniversalClient, reg *entity.Registry, prefix string, schema entity.Schema[T], ttl time.Duration, logger *zap.Logger) (cache.CacheService, error) {
	meta, err := entity.Parse(reg, schema)
	if err != nil {
		return nil, err
	}
	rows := entity.NewRowCodec(meta)
	cfg := cache.RedisConfig{Prefix: prefix, TTL: ttl}
	svc, err := cache.NewRedisService(client, cache.NewCodec(rows.Marshal, rows.Unmarshal), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s partition: %w", schema.Name, err)
	}
	return svc, nil
}
