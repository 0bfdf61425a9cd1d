package entity

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// RowCodec serialises entities as msgpack encoded column maps, so anything
// the metadata can extract and materialize can be stored out of process.
type RowCodec[T any] struct {
	meta *Metadata[T]
}

// NewRowCodec returns a codec for the given kind.
func NewRowCodec[T any](meta *Metadata[T]) RowCodec[T] {
	return RowCodec[T]{meta: meta}
}

func (c RowCodec[T]) Marshal(e *T) ([]byte, error) {
	row, err := c.meta.Extract(e)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(row)
}

func (c RowCodec[T]) Unmarshal(data []byte) (*T, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, mappingError(err, c.meta.Name(), "", "cannot decode cached row")
	}
	return c.meta.Materialize(row)
}
