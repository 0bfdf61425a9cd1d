// Package entity maps Go types to relational tables through explicit,
// declarative schemas.
//
// A Schema lists the columns of one kind as typed accessor closures. Shared
// column groups are expressed as Traits, which play the role of mapped
// superclasses:
//
//	base := &entity.Trait[Guild]{
//		Name:   "Base",
//		Mapped: true,
//		Fields: []entity.Column[Guild]{
//			entity.OptionalField("id", func(g *Guild) *int64 { return &g.ID }, entity.Id, entity.Generated),
//		},
//	}
//
//	schema := entity.Schema[Guild]{
//		Name:   "Guild",
//		Entity: true,
//		Table:  "guild",
//		Super:  base,
//		Fields: []entity.Column[Guild]{
//			entity.Field("name", func(g *Guild) *string { return &g.Name }),
//		},
//		New: func() *Guild { return &Guild{} },
//	}
//
//	meta, err := entity.Parse(registry, schema)
//
// Resolution order is a contract: inherited fields (most-base trait first),
// inherited accessor methods (ancestor traits first), declared fields, then
// declared accessor methods. Transient and static columns never make it into
// the metadata. Method columns must carry Col, Id or Generated.
//
// Parsed metadata is cached by a Registry and is immutable.
package entity
