package sqlinfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-retriever/repository"
)

// BunExecutor renders statement descriptors with bun and runs them.
type BunExecutor struct {
	db     bun.IDB
	logger *zap.Logger
}

var _ repository.Executor = (*BunExecutor)(nil)

// ExecutorOption configures a BunExecutor.
type ExecutorOption func(*BunExecutor)

func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *BunExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewBunExecutor wraps db, which may be a *bun.DB, a bun.Conn or a bun.Tx.
func NewBunExecutor(db bun.IDB, opts ...ExecutorOption) *BunExecutor {
	e := &BunExecutor{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements repository.Executor.
func (e *BunExecutor) Execute(ctx context.Context, stmt repository.Statement) (repository.Result, error) {
	var (
		res repository.Result
		err error
	)
	switch stmt.Kind {
	case repository.Select:
		res, err = e.selectRows(ctx, stmt)
	case repository.Insert:
		res, err = e.insert(ctx, stmt)
	case repository.Update:
		res, err = e.update(ctx, stmt)
	case repository.Delete:
		res, err = e.delete(ctx, stmt)
	default:
		return res, fmt.Errorf("sqlinfra: unsupported statement kind %s", stmt.Kind)
	}
	if err != nil {
		e.logger.Debug("statement failed",
			zap.String("table", stmt.Table),
			zap.Stringer("statement", stmt.Kind),
			zap.Error(err),
		)
		return repository.Result{}, MapError(err)
	}
	return res, nil
}

func (e *BunExecutor) selectRows(ctx context.Context, stmt repository.Statement) (repository.Result, error) {
	q := e.db.NewSelect().TableExpr("?", bun.Ident(stmt.Table))
	if len(stmt.Columns) == 0 {
		q = q.ColumnExpr("*")
	}
	for _, col := range stmt.Columns {
		q = q.ColumnExpr("?", bun.Ident(col))
	}
	for _, col := range stmt.WhereColumns() {
		q = q.Where("? = ?", bun.Ident(col), stmt.Where[col])
	}
	if stmt.Limit > 0 {
		q = q.Limit(stmt.Limit)
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return repository.Result{}, err
	}

	res := repository.Result{Rows: make([]repository.Row, 0, len(rows))}
	for _, r := range rows {
		res.Rows = append(res.Rows, repository.Row(r))
	}
	return res, nil
}

func (e *BunExecutor) insert(ctx context.Context, stmt repository.Statement) (repository.Result, error) {
	values := map[string]interface{}(stmt.Values)
	q := e.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(stmt.Table))

	if len(stmt.Returning) == 0 {
		sqlRes, err := q.Exec(ctx)
		if err != nil {
			return repository.Result{}, err
		}
		return repository.Result{RowsAffected: rowsAffected(sqlRes)}, nil
	}

	for _, col := range stmt.Returning {
		q = q.Returning("?", bun.Ident(col))
	}
	returned := map[string]interface{}{}
	if err := q.Scan(ctx, &returned); err != nil {
		return repository.Result{}, err
	}
	return repository.Result{Rows: []repository.Row{returned}, RowsAffected: 1}, nil
}

func (e *BunExecutor) update(ctx context.Context, stmt repository.Statement) (repository.Result, error) {
	values := map[string]interface{}(stmt.Values)
	q := e.db.NewUpdate().Model(&values).TableExpr("?", bun.Ident(stmt.Table))
	for _, col := range stmt.WhereColumns() {
		q = q.Where("? = ?", bun.Ident(col), stmt.Where[col])
	}
	sqlRes, err := q.Exec(ctx)
	if err != nil {
		return repository.Result{}, err
	}
	return repository.Result{RowsAffected: rowsAffected(sqlRes)}, nil
}

func (e *BunExecutor) delete(ctx context.Context, stmt repository.Statement) (repository.Result, error) {
	q := e.db.NewDelete().TableExpr("?", bun.Ident(stmt.Table))
	for _, col := range stmt.WhereColumns() {
		q = q.Where("? = ?", bun.Ident(col), stmt.Where[col])
	}
	sqlRes, err := q.Exec(ctx)
	if err != nil {
		return repository.Result{}, err
	}
	return repository.Result{RowsAffected: rowsAffected(sqlRes)}, nil
}

// rowsAffected returns -1 when the driver cannot tell.
func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
