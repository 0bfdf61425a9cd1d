package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-entity-retriever/internal/cacheinfra"
)

// ErrNotFound is returned by a FetchFn when the source has no record for the
// key. Such results reach the caller but are never stored.
var ErrNotFound = cacheinfra.ErrNotFound

// ErrInvalidResultType is returned when a partition holds a value of a
// different type than the caller asked for.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// KeySerializer builds a cache key from a namespace and arguments.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is one cache partition. Values are stored as any; the typed
// helpers in this package restore the static type.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error)
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

var (
	_ CacheService = (*cacheinfra.SturdycService)(nil)
	_ CacheService = (*cacheinfra.RedisService)(nil)
)

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](key, result)
}

// Get reads key and asserts the stored type.
func Get[T any](ctx context.Context, service CacheService, key string) (T, bool, error) {
	var zero T
	result, ok, err := service.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := as[T](key, result)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func as[T any](key string, result any) (T, error) {
	// A nil interface is the zero value of any interface or pointer T.
	if result == nil {
		var zero T
		return zero, nil
	}
	v, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: entry %q holds %T, want %T", ErrInvalidResultType, key, result, zero)
	}
	return v, nil
}
