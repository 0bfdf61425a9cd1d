package config

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/spf13/viper"

	"github.com/goliatone/go-entity-retriever/cache"
	"github.com/goliatone/go-entity-retriever/internal/sqlinfra"
	"github.com/goliatone/go-entity-retriever/retriever"
	"github.com/goliatone/go-entity-retriever/retrievercache"
	"github.com/goliatone/go-entity-retriever/snowflake"
)

// EnvPrefix prefixes every environment override, e.g. ENTITY_DATABASE_DSN.
const EnvPrefix = "ENTITY"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// TextCodeInvalidConfig tags configuration validation failures.
const TextCodeInvalidConfig = "INVALID_CONFIG"

// Config is the full runtime configuration.
type Config struct {
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// SnowflakeConfig identifies this process to the id generator.
type SnowflakeConfig struct {
	EpochMillis int64 `mapstructure:"epoch_millis"`
	WorkerID    int64 `mapstructure:"worker_id"`
	ProcessID   int64 `mapstructure:"process_id"`
}

// DatabaseConfig selects the SQL driver.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig selects the partition backend and sizes each partition.
type CacheConfig struct {
	Backend     string          `mapstructure:"backend"`
	RedisAddr   string          `mapstructure:"redis_addr"`
	RedisPrefix string          `mapstructure:"redis_prefix"`
	GuildConfig PartitionConfig `mapstructure:"guild_config"`
	AdminConfig PartitionConfig `mapstructure:"admin_config"`
	AuditConfig PartitionConfig `mapstructure:"audit_config"`
	LocalMember PartitionConfig `mapstructure:"local_member"`
	MessageInfo PartitionConfig `mapstructure:"message_info"`
}

// PartitionConfig sizes one partition. Redis partitions only use TTL.
type PartitionConfig struct {
	Capacity           int           `mapstructure:"capacity"`
	TTL                time.Duration `mapstructure:"ttl"`
	NumShards          int           `mapstructure:"num_shards"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
}

// DefaultsConfig seeds newly created entities.
type DefaultsConfig struct {
	Prefix          string        `mapstructure:"prefix"`
	Locale          string        `mapstructure:"locale"`
	Timezone        string        `mapstructure:"timezone"`
	MaxWarnings     int64         `mapstructure:"max_warnings"`
	MuteBaseDelay   time.Duration `mapstructure:"mute_base_delay"`
	WarnExpireDelay time.Duration `mapstructure:"warn_expire_delay"`
}

// Default returns the configuration used when nothing overrides it: an
// in-memory SQLite database and in-memory cache partitions.
func Default() Config {
	p := retrievercache.DefaultPartitions()
	d := retriever.DefaultSettings()
	return Config{
		Snowflake: SnowflakeConfig{EpochMillis: snowflake.DefaultEpoch},
		Database: DatabaseConfig{
			Driver: sqlinfra.DriverSQLite,
			DSN:    "file::memory:?cache=shared",
		},
		Cache: CacheConfig{
			Backend:     BackendMemory,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "entity",
			GuildConfig: partitionFrom(p.GuildConfig),
			AdminConfig: partitionFrom(p.AdminConfig),
			AuditConfig: partitionFrom(p.AuditConfig),
			LocalMember: partitionFrom(p.LocalMember),
			MessageInfo: partitionFrom(p.MessageInfo),
		},
		Defaults: DefaultsConfig{
			Prefix:          d.Prefix,
			Locale:          d.Locale,
			Timezone:        d.Timezone,
			MaxWarnings:     d.MaxWarnings,
			MuteBaseDelay:   d.MuteBaseDelay,
			WarnExpireDelay: d.WarnExpireDelay,
		},
	}
}

// Load reads path when it is not empty, applies ENTITY_* environment
// overrides on top of Default and validates the result. The file format
// follows its extension.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, loadError(err, fmt.Sprintf("cannot read config file %s", path), path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, loadError(err, "cannot decode configuration", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadError(source error, msg, path string) error {
	e := errors.New(msg, errors.CategoryBadInput).
		WithTextCode(TextCodeInvalidConfig).
		WithMetadata(map[string]any{"path": path})
	e.Source = source
	return e
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("snowflake.epoch_millis", d.Snowflake.EpochMillis)
	v.SetDefault("snowflake.worker_id", d.Snowflake.WorkerID)
	v.SetDefault("snowflake.process_id", d.Snowflake.ProcessID)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_prefix", d.Cache.RedisPrefix)
	for name, p := range d.Cache.partitions() {
		v.SetDefault("cache."+name+".capacity", p.Capacity)
		v.SetDefault("cache."+name+".ttl", p.TTL)
		v.SetDefault("cache."+name+".num_shards", p.NumShards)
		v.SetDefault("cache."+name+".eviction_percentage", p.EvictionPercentage)
	}

	v.SetDefault("defaults.prefix", d.Defaults.Prefix)
	v.SetDefault("defaults.locale", d.Defaults.Locale)
	v.SetDefault("defaults.timezone", d.Defaults.Timezone)
	v.SetDefault("defaults.max_warnings", d.Defaults.MaxWarnings)
	v.SetDefault("defaults.mute_base_delay", d.Defaults.MuteBaseDelay)
	v.SetDefault("defaults.warn_expire_delay", d.Defaults.WarnExpireDelay)
}

func (c CacheConfig) partitions() map[string]PartitionConfig {
	return map[string]PartitionConfig{
		"guild_config": c.GuildConfig,
		"admin_config": c.AdminConfig,
		"audit_config": c.AuditConfig,
		"local_member": c.LocalMember,
		"message_info": c.MessageInfo,
	}
}

// Validate checks every section. Field errors are keyed by their dotted
// path, e.g. "snowflake.worker_id".
func (c Config) Validate() error {
	errs := validation.Errors{
		"snowflake": validation.ValidateStruct(&c.Snowflake,
			validation.Field(&c.Snowflake.EpochMillis, validation.Min(int64(0))),
			validation.Field(&c.Snowflake.WorkerID,
				validation.Min(int64(0)), validation.Max(snowflake.MaxWorkerID).Error(fmt.Sprintf("must be between 0 and %d", snowflake.MaxWorkerID))),
			validation.Field(&c.Snowflake.ProcessID,
				validation.Min(int64(0)), validation.Max(snowflake.MaxProcessID).Error(fmt.Sprintf("must be between 0 and %d", snowflake.MaxProcessID))),
		),
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Driver, validation.Required,
				validation.In(sqlinfra.DriverSQLite, sqlinfra.DriverPostgres)),
			validation.Field(&c.Database.DSN, validation.Required),
		),
		"cache": validation.ValidateStruct(&c.Cache,
			validation.Field(&c.Cache.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
			validation.Field(&c.Cache.RedisAddr, validation.When(c.Cache.Backend == BackendRedis, validation.Required)),
			validation.Field(&c.Cache.RedisPrefix, validation.When(c.Cache.Backend == BackendRedis, validation.Required)),
		),
		"defaults": validation.ValidateStruct(&c.Defaults,
			validation.Field(&c.Defaults.Locale, validation.Required),
			validation.Field(&c.Defaults.Timezone, validation.Required, validation.By(validTimezone)),
			validation.Field(&c.Defaults.MaxWarnings, validation.Min(int64(0))),
			validation.Field(&c.Defaults.MuteBaseDelay, validation.Min(time.Duration(0))),
			validation.Field(&c.Defaults.WarnExpireDelay, validation.Min(time.Duration(0))),
		),
	}
	for name, p := range c.Cache.partitions() {
		if err := p.validate(); err != nil {
			errs["cache."+name] = err
		}
	}

	fields := map[string]string{}
	flatten("", errs.Filter(), fields)
	if len(fields) == 0 {
		return nil
	}
	return errors.NewValidationFromMap("invalid configuration", fields).
		WithTextCode(TextCodeInvalidConfig)
}

func (p PartitionConfig) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Capacity, validation.Required, validation.Min(1),
			validation.When(p.NumShards > 0,
				validation.Min(p.NumShards).Error("must be at least num_shards"))),
		validation.Field(&p.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&p.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&p.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

func validTimezone(value any) error {
	tz, _ := value.(string)
	if _, err := time.LoadLocation(tz); err != nil {
		return stderrors.New("must be an IANA time zone")
	}
	return nil
}

// flatten walks nested ozzo errors into dotted field paths. ozzo names struct
// fields after their json tag or, lacking one, the Go field name, so the
// mapstructure names are restored from fieldNames.
func flatten(prefix string, err error, out map[string]string) {
	if err == nil {
		return
	}
	var nested validation.Errors
	if !stderrors.As(err, &nested) {
		if prefix == "" {
			prefix = "config"
		}
		out[prefix] = err.Error()
		return
	}
	keys := make([]string, 0, len(nested))
	for k := range nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := k
		if mapped, ok := fieldNames[k]; ok {
			name = mapped
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		flatten(name, nested[k], out)
	}
}

var fieldNames = map[string]string{
	"EpochMillis":        "epoch_millis",
	"WorkerID":           "worker_id",
	"ProcessID":          "process_id",
	"Driver":             "driver",
	"DSN":                "dsn",
	"Backend":            "backend",
	"RedisAddr":          "redis_addr",
	"RedisPrefix":        "redis_prefix",
	"Capacity":           "capacity",
	"TTL":                "ttl",
	"NumShards":          "num_shards",
	"EvictionPercentage": "eviction_percentage",
	"Prefix":             "prefix",
	"Locale":             "locale",
	"Timezone":           "timezone",
	"MaxWarnings":        "max_warnings",
	"MuteBaseDelay":      "mute_base_delay",
	"WarnExpireDelay":    "warn_expire_delay",
}

// Partitions converts the cache section to partition sizes.
func (c CacheConfig) Partitions() retrievercache.Partitions {
	return retrievercache.Partitions{
		GuildConfig: c.GuildConfig.cacheConfig(),
		AdminConfig: c.AdminConfig.cacheConfig(),
		AuditConfig: c.AuditConfig.cacheConfig(),
		LocalMember: c.LocalMember.cacheConfig(),
		MessageInfo: c.MessageInfo.cacheConfig(),
	}
}

func (p PartitionConfig) cacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = p.Capacity
	cfg.TTL = p.TTL
	cfg.NumShards = p.NumShards
	cfg.EvictionPercentage = p.EvictionPercentage
	return cfg
}

func partitionFrom(cfg cache.Config) PartitionConfig {
	return PartitionConfig{
		Capacity:           cfg.Capacity,
		TTL:                cfg.TTL,
		NumShards:          cfg.NumShards,
		EvictionPercentage: cfg.EvictionPercentage,
	}
}

// Settings converts the defaults section for retriever.WithDefaults.
func (d DefaultsConfig) Settings() retriever.Defaults {
	return retriever.Defaults{
		Prefix:          d.Prefix,
		Locale:          d.Locale,
		Timezone:        d.Timezone,
		MaxWarnings:     d.MaxWarnings,
		MuteBaseDelay:   d.MuteBaseDelay,
		WarnExpireDelay: d.WarnExpireDelay,
	}
}
