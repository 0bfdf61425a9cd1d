package entity

import (
	"fmt"
)

// AccessorKind tells how a property reaches its value.
type AccessorKind int

const (
	// AccessorField reads and writes a storage slot directly.
	AccessorField AccessorKind = iota
	// AccessorMethod goes through a getter/setter pair.
	AccessorMethod
)

func (k AccessorKind) String() string {
	switch k {
	case AccessorField:
		return "field"
	case AccessorMethod:
		return "method"
	default:
		return fmt.Sprintf("AccessorKind(%d)", int(k))
	}
}

// Flag marks a column declaration.
type Flag uint8

const (
	// Col marks a method pair as a mapped column. Fields are mapped by default.
	Col Flag = 1 << iota
	// Id marks the column as part of the identity.
	Id
	// Generated marks a column whose value is produced on insert.
	Generated
	// Transient excludes the column from mapping.
	Transient
	// Static excludes the column from mapping; it belongs to the kind, not
	// the instance.
	Static
)

func (f Flag) has(o Flag) bool { return f&o != 0 }

// Column is an unresolved column declaration on a schema or trait.
type Column[T any] struct {
	name  string
	kind  AccessorKind
	flags Flag
	get   func(*T) any
	set   func(*T, any) error
}

// Name returns the column name.
func (c Column[T]) Name() string { return c.name }

// Field declares a field-backed column. slot returns the address of the
// storage for a given entity.
func Field[T, V any](name string, slot func(*T) *V, flags ...Flag) Column[T] {
	c := Column[T]{name: name, kind: AccessorField, flags: combine(flags)}
	if slot == nil {
		return c
	}
	c.get = func(e *T) any { return *slot(e) }
	c.set = func(e *T, v any) error {
		converted, err := Convert[V](v)
		if err != nil {
			return err
		}
		*slot(e) = converted
		return nil
	}
	return c
}

// OptionalField is like Field but reads the zero value of V as absent (nil).
// Used for generated keys where zero means "not assigned yet".
func OptionalField[T any, V comparable](name string, slot func(*T) *V, flags ...Flag) Column[T] {
	c := Field(name, slot, flags...)
	if slot == nil {
		return c
	}
	c.get = func(e *T) any {
		var zero V
		if v := *slot(e); v != zero {
			return v
		}
		return nil
	}
	return c
}

// Accessor declares a method-backed column from a getter and a setter,
// usually method expressions such as (*Message).Content and
// (*Message).SetContent.
func Accessor[T, V any](name string, get func(*T) V, set func(*T, V), flags ...Flag) Column[T] {
	c := Column[T]{name: name, kind: AccessorMethod, flags: combine(flags)}
	if get == nil || set == nil {
		return c
	}
	c.get = func(e *T) any { return get(e) }
	c.set = func(e *T, v any) error {
		converted, err := Convert[V](v)
		if err != nil {
			return err
		}
		set(e, converted)
		return nil
	}
	return c
}

func combine(flags []Flag) Flag {
	var out Flag
	for _, f := range flags {
		out |= f
	}
	return out
}

// Property is one resolved, mapped column of an entity kind.
type Property[T any] struct {
	schema    string
	declaring string
	col       Column[T]
}

func (p *Property[T]) Name() string       { return p.col.name }
func (p *Property[T]) Kind() AccessorKind { return p.col.kind }
func (p *Property[T]) IsID() bool         { return p.col.flags.has(Id) }
func (p *Property[T]) IsGenerated() bool  { return p.col.flags.has(Generated) }

// DeclaredBy returns the name of the schema or trait that declared the column.
func (p *Property[T]) DeclaredBy() string { return p.declaring }

// GetValue reads the property from e.
func (p *Property[T]) GetValue(e *T) (v any, err error) {
	if e == nil {
		return nil, accessError(nil, p.schema, p.col.name, "read")
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, accessError(fmt.Errorf("%v", r), p.schema, p.col.name, "read")
		}
	}()
	return p.col.get(e), nil
}

// SetValue writes v into e, converting driver values to the declared type.
func (p *Property[T]) SetValue(e *T, v any) (err error) {
	if e == nil {
		return accessError(nil, p.schema, p.col.name, "write")
	}
	defer func() {
		if r := recover(); r != nil {
			err = accessError(fmt.Errorf("%v", r), p.schema, p.col.name, "write")
		}
	}()
	if err := p.col.set(e, v); err != nil {
		return accessError(err, p.schema, p.col.name, "write")
	}
	return nil
}

func (p *Property[T]) equal(o *Property[T]) bool {
	return p.col.name == o.col.name &&
		p.col.kind == o.col.kind &&
		p.col.flags == o.col.flags &&
		p.declaring == o.declaring
}
