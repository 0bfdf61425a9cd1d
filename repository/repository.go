package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/entity"
	"github.com/goliatone/go-entity-retriever/snowflake"
)

// Repository persists one entity kind through an Executor. It is stateless
// apart from its configuration and safe for concurrent use.
type Repository[T any] struct {
	meta   *entity.Metadata[T]
	exec   Executor
	ids    *snowflake.Generator
	logger *zap.Logger
}

// New parses schema through the factory registry and builds a repository
// for it.
func New[T any](f *Factory, schema entity.Schema[T]) (*Repository[T], error) {
	meta, err := entity.Parse(f.registry, schema)
	if err != nil {
		return nil, err
	}
	if len(meta.IDProperties()) == 0 {
		return nil, schemaError(meta.Name(), TextCodeNoIDProperty, "kind %s declares no id column", meta.Name())
	}
	if !meta.HasConstructor() {
		return nil, schemaError(meta.Name(), TextCodeMissingConstructor, "kind %s has no constructor", meta.Name())
	}

	return &Repository[T]{
		meta:   meta,
		exec:   f.exec,
		ids:    f.ids,
		logger: f.logger.With(zap.String("kind", meta.Name()), zap.String("table", meta.Table())),
	}, nil
}

// MustNew is New for startup wiring; it panics on error.
func MustNew[T any](f *Factory, schema entity.Schema[T]) *Repository[T] {
	r, err := New(f, schema)
	if err != nil {
		panic(err)
	}
	return r
}

// Metadata returns the resolved mapping.
func (r *Repository[T]) Metadata() *entity.Metadata[T] { return r.meta }

// FindByID loads the row whose id columns equal ids, given in id property
// order. A missing row is reported as (nil, false, nil).
func (r *Repository[T]) FindByID(ctx context.Context, ids ...any) (*T, bool, error) {
	idProps := r.meta.IDProperties()
	if len(ids) != len(idProps) {
		return nil, false, badInput(r.meta.Name(), TextCodeIDArity,
			"kind %s has %d id columns, got %d values", r.meta.Name(), len(idProps), len(ids))
	}

	where := make(map[string]any, len(ids))
	for i, p := range idProps {
		where[p.Name()] = ids[i]
	}
	return r.selectOne(ctx, where)
}

// FindOne loads the first row matching every column equality in where.
func (r *Repository[T]) FindOne(ctx context.Context, where map[string]any) (*T, bool, error) {
	for col := range where {
		if _, ok := r.meta.Property(col); !ok {
			return nil, false, badInput(r.meta.Name(), TextCodeUnknownColumn,
				"kind %s has no column %q", r.meta.Name(), col)
		}
	}
	return r.selectOne(ctx, where)
}

func (r *Repository[T]) selectOne(ctx context.Context, where map[string]any) (*T, bool, error) {
	stmt := Statement{
		Kind:    Select,
		Table:   r.meta.Table(),
		Columns: r.meta.Columns(),
		Where:   where,
		Limit:   1,
	}
	res, err := r.execute(ctx, stmt)
	if err != nil {
		return nil, false, err
	}
	if len(res.Rows) == 0 {
		return nil, false, nil
	}

	e, err := r.meta.Materialize(res.Rows[0])
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Save inserts e when it is new and updates it otherwise.
func (r *Repository[T]) Save(ctx context.Context, e *T) error {
	isNew, err := r.meta.IsNew(e)
	if err != nil {
		return err
	}
	if isNew {
		return r.Insert(ctx, e)
	}
	return r.Update(ctx, e)
}

// Insert writes e. Id values the caller supplied are written as is; absent
// generated ids get a snowflake id when the factory has a generator and are
// otherwise left to the store. Generated columns handed back by the store
// are copied onto e. Nothing is written to e unless the insert succeeds, so a
// failed insert leaves e new.
func (r *Repository[T]) Insert(ctx context.Context, e *T) error {
	values, err := r.candidateValues(e)
	if err != nil {
		return err
	}

	assigned := make(map[*entity.Property[T]]int64)

	for _, p := range r.meta.IDProperties() {
		v, err := p.GetValue(e)
		if err != nil {
			return err
		}
		if !entity.IsUnassigned(v) {
			values[p.Name()] = v
			continue
		}
		if !p.IsGenerated() {
			return badInput(r.meta.Name(), TextCodeUnassignedID,
				"id column %s of kind %s must be set before insert", p.Name(), r.meta.Name())
		}
		if r.ids == nil {
			continue
		}
		id, err := r.ids.NextID()
		if err != nil {
			return err
		}
		assigned[p] = id
		values[p.Name()] = id
	}

	generated := r.meta.GeneratedProperties()
	returning := make([]string, 0, len(generated))
	for _, p := range generated {
		returning = append(returning, p.Name())
	}

	res, err := r.execute(ctx, Statement{
		Kind:      Insert,
		Table:     r.meta.Table(),
		Values:    values,
		Returning: returning,
	})
	if err != nil {
		return err
	}
	for p, id := range assigned {
		if err := p.SetValue(e, id); err != nil {
			return err
		}
	}
	if len(res.Rows) == 0 {
		return nil
	}

	row := res.Rows[0]
	for _, p := range generated {
		v, ok := row[p.Name()]
		if !ok {
			continue
		}
		if err := p.SetValue(e, v); err != nil {
			return err
		}
	}
	return nil
}

// Update rewrites the candidate columns of the row keyed by e's ids.
func (r *Repository[T]) Update(ctx context.Context, e *T) error {
	values, err := r.candidateValues(e)
	if err != nil {
		return err
	}
	where, err := r.idValues(e)
	if err != nil {
		return err
	}

	res, err := r.execute(ctx, Statement{
		Kind:   Update,
		Table:  r.meta.Table(),
		Values: values,
		Where:  where,
	})
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return notFound(r.meta.Name(), r.meta.Table())
	}
	return nil
}

// Delete removes the row keyed by e's ids. Deleting a missing row is not an
// error.
func (r *Repository[T]) Delete(ctx context.Context, e *T) error {
	where, err := r.idValues(e)
	if err != nil {
		return err
	}
	_, err = r.execute(ctx, Statement{
		Kind:  Delete,
		Table: r.meta.Table(),
		Where: where,
	})
	return err
}

func (r *Repository[T]) candidateValues(e *T) (map[string]any, error) {
	props := r.meta.CandidateProperties()
	values := make(map[string]any, len(props)+1)
	for _, p := range props {
		v, err := p.GetValue(e)
		if err != nil {
			return nil, err
		}
		values[p.Name()] = v
	}
	return values, nil
}

func (r *Repository[T]) idValues(e *T) (map[string]any, error) {
	props := r.meta.IDProperties()
	where := make(map[string]any, len(props))
	for _, p := range props {
		v, err := p.GetValue(e)
		if err != nil {
			return nil, err
		}
		if entity.IsUnassigned(v) {
			return nil, badInput(r.meta.Name(), TextCodeUnassignedID,
				"id column %s of kind %s is not assigned", p.Name(), r.meta.Name())
		}
		where[p.Name()] = v
	}
	return where, nil
}

func (r *Repository[T]) execute(ctx context.Context, stmt Statement) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, backendError(err, stmt)
	}

	r.logger.Debug("executing statement",
		zap.Stringer("statement", stmt.Kind),
		zap.Strings("where", stmt.WhereColumns()),
	)

	res, err := r.exec.Execute(ctx, stmt)
	if err != nil {
		r.logger.Debug("statement failed", zap.Stringer("statement", stmt.Kind), zap.Error(err))
		return Result{}, backendError(err, stmt)
	}
	return res, nil
}
