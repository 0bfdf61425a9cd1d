package entity

// Metadata is the resolved, immutable mapping of an entity kind.
type Metadata[T any] struct {
	name       string
	table      string
	properties []*Property[T]
	byName     map[string]*Property[T]
	newFn      func() *T
}

func newMetadata[T any](s Schema[T], cols []declared[T]) *Metadata[T] {
	m := &Metadata[T]{
		name:       s.Name,
		table:      s.TableName(),
		properties: make([]*Property[T], 0, len(cols)),
		byName:     make(map[string]*Property[T], len(cols)),
		newFn:      s.New,
	}
	for _, d := range cols {
		p := &Property[T]{schema: s.Name, declaring: d.owner, col: d.col}
		m.properties = append(m.properties, p)
		m.byName[p.Name()] = p
	}
	return m
}

func (m *Metadata[T]) Name() string  { return m.name }
func (m *Metadata[T]) Table() string { return m.table }

// Properties returns every mapped property in resolution order.
func (m *Metadata[T]) Properties() []*Property[T] {
	return append([]*Property[T](nil), m.properties...)
}

// Property looks a property up by column name.
func (m *Metadata[T]) Property(name string) (*Property[T], bool) {
	p, ok := m.byName[name]
	return p, ok
}

// Columns returns the column names in resolution order.
func (m *Metadata[T]) Columns() []string {
	out := make([]string, len(m.properties))
	for i, p := range m.properties {
		out[i] = p.Name()
	}
	return out
}

func (m *Metadata[T]) IDProperties() []*Property[T] {
	return m.filter(func(p *Property[T]) bool { return p.IsID() })
}

func (m *Metadata[T]) GeneratedProperties() []*Property[T] {
	return m.filter(func(p *Property[T]) bool { return p.IsGenerated() })
}

// CandidateProperties are the columns written by insert and update: every
// property that is neither an id nor generated.
func (m *Metadata[T]) CandidateProperties() []*Property[T] {
	return m.filter(func(p *Property[T]) bool { return !p.IsID() && !p.IsGenerated() })
}

func (m *Metadata[T]) filter(keep func(*Property[T]) bool) []*Property[T] {
	var out []*Property[T]
	for _, p := range m.properties {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// HasConstructor reports whether the schema supplied New.
func (m *Metadata[T]) HasConstructor() bool { return m.newFn != nil }

// Instantiate returns a fresh instance, or nil without a constructor.
func (m *Metadata[T]) Instantiate() *T {
	if m.newFn == nil {
		return nil
	}
	return m.newFn()
}

// IsNew reports whether e has not been persisted yet: any id property is
// absent or holds the numeric sentinel -1.
func (m *Metadata[T]) IsNew(e *T) (bool, error) {
	for _, p := range m.properties {
		if !p.IsID() {
			continue
		}
		v, err := p.GetValue(e)
		if err != nil {
			return false, err
		}
		if IsUnassigned(v) {
			return true, nil
		}
	}
	return false, nil
}

// IsUnassigned reports whether an id value counts as not yet assigned: nil or
// the numeric sentinel -1.
func IsUnassigned(v any) bool {
	switch n := v.(type) {
	case nil:
		return true
	case int:
		return n == -1
	case int8:
		return n == -1
	case int16:
		return n == -1
	case int32:
		return n == -1
	case int64:
		return n == -1
	case float32:
		return n == -1
	case float64:
		return n == -1
	case *int64:
		return n == nil || *n == -1
	}
	return false
}

// Extract reads every property of e into a column map.
func (m *Metadata[T]) Extract(e *T) (map[string]any, error) {
	row := make(map[string]any, len(m.properties))
	for _, p := range m.properties {
		v, err := p.GetValue(e)
		if err != nil {
			return nil, err
		}
		row[p.Name()] = v
	}
	return row, nil
}

// Materialize builds a new instance from a row. Every mapped column must be
// present.
func (m *Metadata[T]) Materialize(row map[string]any) (*T, error) {
	if m.newFn == nil {
		return nil, mappingError(nil, m.name, "", "schema has no constructor")
	}
	e := m.Instantiate()
	for _, p := range m.properties {
		v, ok := row[p.Name()]
		if !ok {
			return nil, mappingError(nil, m.name, p.Name(), "column missing from row")
		}
		if err := p.SetValue(e, v); err != nil {
			return nil, mappingError(err, m.name, p.Name(), "conversion failed")
		}
	}
	return e, nil
}

// Equal compares kind, table and the ordered property descriptors.
func (m *Metadata[T]) Equal(o *Metadata[T]) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	if m.name != o.name || m.table != o.table || len(m.properties) != len(o.properties) {
		return false
	}
	for i := range m.properties {
		if !m.properties[i].equal(o.properties[i]) {
			return false
		}
	}
	return true
}
