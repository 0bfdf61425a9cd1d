package di

import (
	"context"
	stderrors "errors"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/cache"
	"github.com/goliatone/go-entity-retriever/config"
	"github.com/goliatone/go-entity-retriever/entity"
	"github.com/goliatone/go-entity-retriever/internal/sqlinfra"
	"github.com/goliatone/go-entity-retriever/repository"
	"github.com/goliatone/go-entity-retriever/retriever"
	"github.com/goliatone/go-entity-retriever/retrievercache"
	"github.com/goliatone/go-entity-retriever/snowflake"
)

// Container wires the data access stack from a config.Config: the id
// generator, the SQL executor, the repository factory, the base retriever
// and its cached decorator. It owns the connections it opens.
type Container struct {
	config config.Config
	logger *zap.Logger

	db         *bun.DB
	ownsDB     bool
	redis      redis.UniversalClient
	ownsRedis  bool
	executor   repository.Executor
	clock      cache.Clock
	generator  *snowflake.Generator
	factory    *repository.Factory
	store      *retriever.Store
	services   retrievercache.Services
	retriever  *retrievercache.Retriever
	keys       cache.KeySerializer
	partitions retrievercache.Partitions
}

// Option customises a Container before it is wired.
type Option func(*Container)

// WithLogger sets the logger handed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(c *Container) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDB uses db instead of opening the configured database. The caller
// keeps ownership of db.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithExecutor bypasses SQL entirely and runs statements through exec.
func WithExecutor(exec repository.Executor) Option {
	return func(c *Container) { c.executor = exec }
}

// WithRedisClient uses client for redis partitions. The caller keeps
// ownership of client.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(c *Container) { c.redis = client }
}

// WithCacheClock sets the time source of in-memory partitions.
func WithCacheClock(clock cache.Clock) Option {
	return func(c *Container) { c.clock = clock }
}

// NewContainer validates cfg and wires every component. Nothing talks to the
// database until the first call.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config: cfg,
		logger: zap.NewNop(),
		keys:   cache.NewDefaultKeySerializer(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.wire(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults wires config.Default: SQLite in memory and
// in-memory partitions.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(config.Default(), opts...)
}

func (c *Container) wire() error {
	var err error
	sf := c.config.Snowflake
	if c.generator, err = snowflake.New(sf.EpochMillis, sf.WorkerID, sf.ProcessID); err != nil {
		return err
	}

	if c.executor == nil {
		if c.db == nil {
			if c.db, err = sqlinfra.Open(c.config.Database.Driver, c.config.Database.DSN); err != nil {
				return err
			}
			c.ownsDB = true
		}
		c.executor = sqlinfra.NewBunExecutor(c.db, sqlinfra.WithLogger(c.logger))
	}

	c.factory = repository.NewFactory(c.executor,
		repository.WithGenerator(c.generator),
		repository.WithLogger(c.logger),
	)

	c.store, err = retriever.New(c.factory,
		retriever.WithDefaults(c.config.Defaults.Settings()),
		retriever.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	c.partitions = c.config.Cache.Partitions()
	if c.clock != nil {
		c.partitions = c.partitions.WithClock(c.clock)
	}

	switch c.config.Cache.Backend {
	case config.BackendRedis:
		if c.redis == nil {
			c.redis = redis.NewClient(&redis.Options{Addr: c.config.Cache.RedisAddr})
			c.ownsRedis = true
		}
		c.services, err = retrievercache.NewRedisServices(c.redis, c.factory.Registry(),
			c.config.Cache.RedisPrefix, c.partitions, c.logger)
	default:
		c.services, err = retrievercache.NewMemoryServices(c.partitions)
	}
	if err != nil {
		return err
	}

	c.retriever, err = retrievercache.New(c.store, c.services,
		retrievercache.WithKeySerializer(c.keys),
		retrievercache.WithLogger(c.logger),
	)
	return err
}

// EnsureSchema creates the table of every kind with a unique constraint on
// its lookup key. The DDL targets SQLite and is meant for tests and
// examples.
func (c *Container) EnsureSchema(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	reg := c.factory.Registry()
	return stderrors.Join(
		createTable(ctx, c.db, reg, retriever.GuildConfigSchema(), retriever.GuildKey),
		createTable(ctx, c.db, reg, retriever.AdminConfigSchema(), retriever.GuildKey),
		createTable(ctx, c.db, reg, retriever.AuditConfigSchema(), retriever.GuildKey),
		createTable(ctx, c.db, reg, retriever.LocalMemberSchema(), retriever.MemberKey),
		createTable(ctx, c.db, reg, retriever.MessageInfoSchema(), retriever.MessageKey),
	)
}

func createTable[T any](ctx context.Context, db bun.IDB, reg *entity.Registry, schema entity.Schema[T], key []string) error {
	meta, err := entity.Parse(reg, schema)
	if err != nil {
		return err
	}
	return sqlinfra.CreateTable(ctx, db, meta, key)
}

// Close releases the database and redis connections the container opened.
func (c *Container) Close() error {
	var errs []error
	if c.ownsDB && c.db != nil {
		errs = append(errs, c.db.Close())
	}
	if c.ownsRedis && c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return stderrors.Join(errs...)
}

// Retriever returns the cached retriever, the one the application should use.
func (c *Container) Retriever() retriever.EntityRetriever {
	return c.retriever
}

// Store returns the uncached retriever.
func (c *Container) Store() *retriever.Store {
	return c.store
}

// Factory returns the repository factory shared by every kind.
func (c *Container) Factory() *repository.Factory {
	return c.factory
}

// Generator returns the snowflake generator assigning ids on insert.
func (c *Container) Generator() *snowflake.Generator {
	return c.generator
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keys
}

// Services returns the cache partitions.
func (c *Container) Services() retrievercache.Services {
	return c.services
}

// Partitions returns the partition sizes in use.
func (c *Container) Partitions() retrievercache.Partitions {
	return c.partitions
}

// DB returns the database, or nil when the container runs on a custom executor.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}
