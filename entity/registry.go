package entity

import (
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry caches resolved metadata per entity kind for the lifetime of the
// process. It is safe for concurrent use. Two goroutines racing on the first
// parse of a kind both resolve it and the last store wins; the values are
// Equal, so callers cannot tell the difference.
type Registry struct {
	entries *xsync.MapOf[string, any]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMapOf[string, any]()}
}

// Len returns the number of resolved kinds.
func (r *Registry) Len() int { return r.entries.Size() }

// Tables maps every resolved kind to its table name.
func (r *Registry) Tables() map[string]string {
	out := make(map[string]string, r.entries.Size())
	r.entries.Range(func(name string, v any) bool {
		if t, ok := v.(interface{ Table() string }); ok {
			out[name] = t.Table()
		}
		return true
	})
	return out
}

// Parse returns the metadata for schema, resolving and caching it on first
// use. Go methods cannot take type parameters, hence the package function.
func Parse[T any](r *Registry, schema Schema[T]) (*Metadata[T], error) {
	if v, ok := r.entries.Load(schema.Name); ok {
		return cached[T](schema.Name, v)
	}

	cols, err := schema.resolve()
	if err != nil {
		return nil, err
	}
	meta := newMetadata(schema, cols)
	r.entries.Store(schema.Name, meta)
	return meta, nil
}

// MustParse is Parse for package initialisation; it panics on error.
func MustParse[T any](r *Registry, schema Schema[T]) *Metadata[T] {
	m, err := Parse(r, schema)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns previously parsed metadata without resolving anything.
func Lookup[T any](r *Registry, name string) (*Metadata[T], bool) {
	v, ok := r.entries.Load(name)
	if !ok {
		return nil, false
	}
	m, err := cached[T](name, v)
	if err != nil {
		return nil, false
	}
	return m, true
}

func cached[T any](name string, v any) (*Metadata[T], error) {
	m, ok := v.(*Metadata[T])
	if !ok {
		return nil, errors.New(
			fmt.Sprintf("kind %q is registered for %T, not %T", name, v, (*Metadata[T])(nil)),
			errors.CategoryValidation,
		).WithTextCode(TextCodeSchemaTypeMismatch)
	}
	return m, nil
}
