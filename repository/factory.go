package repository

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/entity"
	"github.com/goliatone/go-entity-retriever/snowflake"
)

// Factory holds what every repository shares: the metadata registry, the
// executor, the id generator and the logger.
type Factory struct {
	registry *entity.Registry
	exec     Executor
	ids      *snowflake.Generator
	logger   *zap.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithRegistry shares an existing metadata registry.
func WithRegistry(r *entity.Registry) Option {
	return func(f *Factory) {
		if r != nil {
			f.registry = r
		}
	}
}

// WithGenerator assigns snowflake ids to generated id columns on insert.
func WithGenerator(g *snowflake.Generator) Option {
	return func(f *Factory) { f.ids = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFactory builds a factory over exec.
func NewFactory(exec Executor, opts ...Option) *Factory {
	f := &Factory{
		registry: entity.NewRegistry(),
		exec:     exec,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Registry() *entity.Registry { return f.registry }
