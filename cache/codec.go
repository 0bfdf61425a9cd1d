package cache

import (
	"fmt"

	"github.com/goliatone/go-entity-retriever/internal/cacheinfra"
)

// Codec converts partition values to bytes for out-of-process backends.
type Codec = cacheinfra.Codec

type typedCodec[T any] struct {
	marshal   func(T) ([]byte, error)
	unmarshal func([]byte) (T, error)
}

// NewCodec adapts a pair of typed functions, such as the methods of
// entity.RowCodec, to a Codec. Encoding a value of another type fails.
func NewCodec[T any](marshal func(T) ([]byte, error), unmarshal func([]byte) (T, error)) Codec {
	return typedCodec[T]{marshal: marshal, unmarshal: unmarshal}
}

func (c typedCodec[T]) Encode(v any) ([]byte, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("cache: cannot encode %T as %T", v, zero)
	}
	return c.marshal(t)
}

func (c typedCodec[T]) Decode(data []byte) (any, error) {
	return c.unmarshal(data)
}
