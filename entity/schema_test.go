package entity

import (
	"sync"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type layered struct {
	A     string
	B     string
	C     string
	Cache string
	count int
	label string
}

func (l *layered) Label() string     { return l.label }
func (l *layered) SetLabel(v string) { l.label = v }
func (l *layered) Count() int        { return l.count }
func (l *layered) SetCount(v int)    { l.count = v }

func layeredSchema() Schema[layered] {
	root := &Trait[layered]{
		Name:   "Root",
		Mapped: true,
		Fields: []Column[layered]{
			Field("a", func(l *layered) *string { return &l.A }),
		},
		Methods: []Column[layered]{
			Accessor("count", (*layered).Count, (*layered).SetCount, Col),
		},
	}
	middle := &Trait[layered]{
		Name:   "Middle",
		Mapped: true,
		Super:  root,
		Fields: []Column[layered]{
			Field("b", func(l *layered) *string { return &l.B }),
			Field("cache", func(l *layered) *string { return &l.Cache }, Transient),
		},
	}
	return Schema[layered]{
		Name:   "Layered",
		Entity: true,
		Super:  middle,
		Fields: []Column[layered]{
			Field("c", func(l *layered) *string { return &l.C }),
		},
		Methods: []Column[layered]{
			Accessor("label", (*layered).Label, (*layered).SetLabel, Col),
			Accessor("unmarked", (*layered).Label, (*layered).SetLabel),
		},
		New: func() *layered { return &layered{} },
	}
}

func TestParse_ThreeLevelChainIsMostBaseFirst(t *testing.T) {
	meta, err := Parse(NewRegistry(), layeredSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "count", "c", "label"}, meta.Columns())
	assert.Equal(t, "Layered", meta.Table(), "blank table falls back to the kind name")

	p, ok := meta.Property("count")
	require.True(t, ok)
	assert.Equal(t, AccessorMethod, p.Kind())
	assert.Equal(t, "Root", p.DeclaredBy())
}

func TestParse_UnmappedSuperStopsTheWalk(t *testing.T) {
	s := layeredSchema()
	s.Super.Mapped = false

	meta, err := Parse(NewRegistry(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "label"}, meta.Columns())
}

func TestParse_TransientAndStaticAreDropped(t *testing.T) {
	s := Schema[layered]{
		Name:   "Dropped",
		Entity: true,
		Table:  "dropped",
		Fields: []Column[layered]{
			Field("a", func(l *layered) *string { return &l.A }),
			Field("b", func(l *layered) *string { return &l.B }, Transient),
			Field("c", func(l *layered) *string { return &l.C }, Static),
		},
		Methods: []Column[layered]{
			Accessor("label", (*layered).Label, (*layered).SetLabel, Col, Transient),
		},
	}

	meta, err := Parse(NewRegistry(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, meta.Columns())
	assert.Equal(t, "dropped", meta.Table())
}

func TestParse_NotAnEntity(t *testing.T) {
	s := layeredSchema()
	s.Entity = false

	meta, err := Parse(NewRegistry(), s)
	require.Error(t, err)
	assert.Nil(t, meta)
	assert.True(t, errors.IsValidation(err))
	assert.True(t, HasTextCode(err, TextCodeNotEntity))
}

func TestParse_DuplicateColumn(t *testing.T) {
	s := layeredSchema()
	s.Fields = append(s.Fields, Field("a", func(l *layered) *string { return &l.C }))

	_, err := Parse(NewRegistry(), s)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeDuplicateColumn))
}

func TestParse_MissingAccessor(t *testing.T) {
	s := layeredSchema()
	s.Fields = append(s.Fields, Field[layered, string]("broken", nil))

	_, err := Parse(NewRegistry(), s)
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeInvalidColumn))
}

func TestParse_SuperCycle(t *testing.T) {
	a := &Trait[layered]{Name: "A", Mapped: true}
	b := &Trait[layered]{Name: "B", Mapped: true, Super: a}
	a.Super = b

	_, err := Parse(NewRegistry(), Schema[layered]{Name: "Cyclic", Entity: true, Super: b})
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeTraitCycle))
}

func TestParse_InterfaceTraitsAreAncestorFirst(t *testing.T) {
	identified := &Trait[layered]{
		Name:   "Identified",
		Mapped: true,
		Methods: []Column[layered]{
			Accessor("count", (*layered).Count, (*layered).SetCount, Id),
		},
	}
	labelled := &Trait[layered]{
		Name:       "Labelled",
		Mapped:     true,
		Interfaces: []*Trait[layered]{identified},
		Methods: []Column[layered]{
			Accessor("label", (*layered).Label, (*layered).SetLabel, Col),
		},
	}
	// Reached a second time through Labelled; must contribute once.
	diamond := &Trait[layered]{
		Name:       "Diamond",
		Mapped:     true,
		Interfaces: []*Trait[layered]{labelled, identified},
	}

	s := Schema[layered]{
		Name:       "Iface",
		Entity:     true,
		Interface:  true,
		Interfaces: []*Trait[layered]{diamond},
		Fields: []Column[layered]{
			Field("a", func(l *layered) *string { return &l.A }),
		},
	}

	meta, err := Parse(NewRegistry(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "label", "a"}, meta.Columns())

	ids := meta.IDProperties()
	require.Len(t, ids, 1)
	assert.Equal(t, "count", ids[0].Name())
}

func TestParse_SiblingInterfacesAreReversed(t *testing.T) {
	first := &Trait[layered]{
		Name:    "First",
		Mapped:  true,
		Methods: []Column[layered]{Accessor("label", (*layered).Label, (*layered).SetLabel, Col)},
	}
	second := &Trait[layered]{
		Name:    "Second",
		Mapped:  true,
		Methods: []Column[layered]{Accessor("count", (*layered).Count, (*layered).SetCount, Col)},
	}

	meta, err := Parse(NewRegistry(), Schema[layered]{
		Name:       "Siblings",
		Entity:     true,
		Interface:  true,
		Interfaces: []*Trait[layered]{first, second},
		Fields: []Column[layered]{
			Field("a", func(l *layered) *string { return &l.A }, Id),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "label", "a"}, meta.Columns())
	assert.Equal(t, "Second", meta.Properties()[0].DeclaredBy())
	assert.Equal(t, "First", meta.Properties()[1].DeclaredBy())
}

func TestParse_InterfaceCycle(t *testing.T) {
	a := &Trait[layered]{Name: "A", Mapped: true}
	b := &Trait[layered]{Name: "B", Mapped: true, Interfaces: []*Trait[layered]{a}}
	a.Interfaces = []*Trait[layered]{b}

	_, err := Parse(NewRegistry(), Schema[layered]{
		Name:       "Cyclic",
		Entity:     true,
		Interface:  true,
		Interfaces: []*Trait[layered]{a},
	})
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeTraitCycle))
}

func TestParse_TwoParsesAreEqual(t *testing.T) {
	first, err := Parse(NewRegistry(), layeredSchema())
	require.NoError(t, err)
	second, err := Parse(NewRegistry(), layeredSchema())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.True(t, first.Equal(second))

	other := layeredSchema()
	other.Table = "elsewhere"
	third, err := Parse(NewRegistry(), other)
	require.NoError(t, err)
	assert.False(t, first.Equal(third))
}

func TestRegistry_ConcurrentParsesAgree(t *testing.T) {
	reg := NewRegistry()
	schema := layeredSchema()

	const workers = 16
	results := make([]*Metadata[layered], workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := Parse(reg, schema)
			if err != nil {
				t.Errorf("parse %d: %v", i, err)
				return
			}
			results[i] = m
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.True(t, results[0].Equal(results[i]), "result %d differs", i)
	}
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, map[string]string{"Layered": "Layered"}, reg.Tables())

	cachedMeta, ok := Lookup[layered](reg, "Layered")
	require.True(t, ok)
	assert.True(t, cachedMeta.Equal(results[0]))
}

func TestRegistry_KindRegisteredForAnotherType(t *testing.T) {
	reg := NewRegistry()
	MustParse(reg, layeredSchema())

	type other struct{ X string }
	_, err := Parse(reg, Schema[other]{Name: "Layered", Entity: true})
	require.Error(t, err)
	assert.True(t, HasTextCode(err, TextCodeSchemaTypeMismatch))

	_, ok := Lookup[other](reg, "Layered")
	assert.False(t, ok)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustParse(NewRegistry(), Schema[layered]{Name: "Unmarked"})
	})
}
