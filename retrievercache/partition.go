package retrievercache

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/cache"
)

// partition serves one kind out of one cache service. Values are cloned on
// the way in and out so callers never alias a cached entry.
type partition[T any] struct {
	kind      string
	namespace string
	svc       cache.CacheService
	keys      cache.KeySerializer
	clone     func(*T) *T
	logger    *zap.Logger
}

func newPartition[T any](kind string, svc cache.CacheService, keys cache.KeySerializer, clone func(*T) *T, logger *zap.Logger) *partition[T] {
	return &partition[T]{
		kind:      kind,
		namespace: toSnake(kind),
		svc:       svc,
		keys:      keys,
		clone:     clone,
		logger:    logger,
	}
}

func (p *partition[T]) key(parts ...any) string {
	return p.keys.SerializeKey(p.namespace, parts...)
}

// get reads through the partition. Absent results and failures are handed
// back without being stored.
func (p *partition[T]) get(ctx context.Context, key string, load func(context.Context) (*T, bool, error)) (*T, bool, error) {
	if freshRead(ctx) {
		return p.reload(ctx, key, load)
	}

	var fetched atomic.Bool
	v, err := cache.GetOrFetch(ctx, p.svc, key, func(ctx context.Context) (*T, error) {
		e, ok, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if !ok || e == nil {
			return nil, cache.ErrNotFound
		}
		fetched.Store(true)
		return p.clone(e), nil
	})
	if err != nil {
		if cache.IsNotFound(err) {
			p.logger.Debug("cache miss, entity absent", zap.String("kind", p.kind), zap.String("key", key))
			return nil, false, nil
		}
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}

	if fetched.Load() {
		p.logger.Debug("cache populated", zap.String("kind", p.kind), zap.String("key", key))
	} else {
		p.logger.Debug("cache hit", zap.String("kind", p.kind), zap.String("key", key))
	}
	return p.clone(v), true, nil
}

func (p *partition[T]) reload(ctx context.Context, key string, load func(context.Context) (*T, bool, error)) (*T, bool, error) {
	e, ok, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok || e == nil {
		if err := p.evict(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if err := p.put(ctx, key, e); err != nil {
		return nil, false, err
	}
	p.logger.Debug("cache refreshed", zap.String("kind", p.kind), zap.String("key", key))
	return e, true, nil
}

// put replaces the entry after a successful write. When the backend rejects
// the value the entry is dropped instead, so a stale copy is never served,
// and the write error is still returned.
func (p *partition[T]) put(ctx context.Context, key string, e *T) error {
	err := p.svc.Set(ctx, key, p.clone(e))
	if err == nil {
		return nil
	}
	p.logger.Warn("cache write failed, evicting entry",
		zap.String("kind", p.kind), zap.String("key", key), zap.Error(err))
	return stderrors.Join(err, p.evict(ctx, key))
}

func (p *partition[T]) evict(ctx context.Context, key string) error {
	if err := p.svc.Delete(ctx, key); err != nil {
		p.logger.Warn("cache eviction failed",
			zap.String("kind", p.kind), zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
