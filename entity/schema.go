package entity

import (
	"strings"
)

// Trait is a mapped superclass: a reusable group of columns shared by
// several entity kinds. Class-style traits chain through Super,
// interface-style traits through Interfaces.
type Trait[T any] struct {
	Name       string
	Mapped     bool
	Super      *Trait[T]
	Interfaces []*Trait[T]
	Fields     []Column[T]
	Methods    []Column[T]
}

// Schema declares how an entity kind maps to a table.
type Schema[T any] struct {
	// Name identifies the kind and is the table fallback.
	Name string
	// Entity must be set; parsing an unmarked schema is an error.
	Entity bool
	// Table overrides the table name when non-blank.
	Table string
	// Interface switches method discovery to the Interfaces graph.
	Interface bool

	Super      *Trait[T]
	Interfaces []*Trait[T]
	Fields     []Column[T]
	Methods    []Column[T]

	// New allocates an empty instance for materialization.
	New func() *T
}

// TableName resolves the table the kind maps to.
func (s Schema[T]) TableName() string {
	if strings.TrimSpace(s.Table) != "" {
		return s.Table
	}
	return s.Name
}

type declared[T any] struct {
	owner string
	col   Column[T]
}

// resolve flattens the schema into its ordered column list:
// inherited fields, inherited methods, declared fields, declared methods.
func (s Schema[T]) resolve() ([]declared[T], error) {
	if !s.Entity {
		return nil, configError(s.Name, TextCodeNotEntity, "schema %q is not marked as an entity", s.Name)
	}

	chain, err := s.superChain()
	if err != nil {
		return nil, err
	}

	var fields []declared[T]
	for _, tr := range chain {
		fields = appendFields(fields, tr.Name, tr.Fields)
	}

	var traits []*Trait[T]
	if s.Interface {
		traits, err = s.interfaceTraits()
		if err != nil {
			return nil, err
		}
	} else {
		traits = chain
	}

	var methods []declared[T]
	seen := map[[2]string]bool{}
	for _, tr := range traits {
		methods = appendMethods(methods, seen, tr.Name, tr.Methods)
	}

	out := append(fields, methods...)
	out = appendFields(out, s.Name, s.Fields)
	out = appendMethods(out, seen, s.Name, s.Methods)

	names := make(map[string]string, len(out))
	for _, d := range out {
		if d.col.get == nil || d.col.set == nil {
			return nil, configError(s.Name, TextCodeInvalidColumn,
				"column %q declared by %s has no accessor", d.col.name, d.owner)
		}
		if strings.TrimSpace(d.col.name) == "" {
			return nil, configError(s.Name, TextCodeInvalidColumn,
				"column declared by %s has an empty name", d.owner)
		}
		if prev, ok := names[d.col.name]; ok {
			return nil, configError(s.Name, TextCodeDuplicateColumn,
				"column %q declared by both %s and %s", d.col.name, prev, d.owner)
		}
		names[d.col.name] = d.owner
	}
	return out, nil
}

// superChain walks Super while traits are mapped and returns the chain
// most-base-first.
func (s Schema[T]) superChain() ([]*Trait[T], error) {
	var chain []*Trait[T]
	visited := map[*Trait[T]]bool{}
	for tr := s.Super; tr != nil && tr.Mapped; tr = tr.Super {
		if visited[tr] {
			return nil, configError(s.Name, TextCodeTraitCycle, "trait %q appears twice in the super chain", tr.Name)
		}
		visited[tr] = true
		chain = append([]*Trait[T]{tr}, chain...)
	}
	return chain, nil
}

// interfaceTraits walks mapped interface traits depth first, inserting each
// at the head of the list, so ancestors precede the traits extending them.
// Siblings come out in reverse declaration order: for Interfaces {X, Y} the
// columns of Y precede those of X.
func (s Schema[T]) interfaceTraits() ([]*Trait[T], error) {
	var (
		out     []*Trait[T]
		done    = map[*Trait[T]]bool{}
		onStack = map[*Trait[T]]bool{}
		walk    func(ifaces []*Trait[T]) error
	)
	walk = func(ifaces []*Trait[T]) error {
		for _, tr := range ifaces {
			if tr == nil || !tr.Mapped {
				continue
			}
			if onStack[tr] {
				return configError(s.Name, TextCodeTraitCycle, "trait %q extends itself", tr.Name)
			}
			if done[tr] {
				continue
			}
			onStack[tr] = true
			out = append([]*Trait[T]{tr}, out...)
			if err := walk(tr.Interfaces); err != nil {
				return err
			}
			onStack[tr] = false
			done[tr] = true
		}
		return nil
	}
	if err := walk(s.Interfaces); err != nil {
		return nil, err
	}
	return out, nil
}

func appendFields[T any](dst []declared[T], owner string, cols []Column[T]) []declared[T] {
	for _, c := range cols {
		if c.flags.has(Transient) || c.flags.has(Static) {
			continue
		}
		dst = append(dst, declared[T]{owner: owner, col: c})
	}
	return dst
}

func appendMethods[T any](dst []declared[T], seen map[[2]string]bool, owner string, cols []Column[T]) []declared[T] {
	for _, c := range cols {
		if !c.flags.has(Col | Id | Generated) {
			continue
		}
		if c.flags.has(Transient) || c.flags.has(Static) {
			continue
		}
		key := [2]string{owner, c.name}
		if seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, declared[T]{owner: owner, col: c})
	}
	return dst
}
