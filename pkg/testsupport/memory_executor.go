package testsupport

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/goliatone/go-entity-retriever/repository"
)

// MemoryExecutor is an in-memory repository.Executor for tests. Rows are
// kept per table, values implementing driver.Valuer are stored in their
// driver form, and every call is counted so tests can assert when the store
// was (or was not) reached.
type MemoryExecutor struct {
	mu         sync.Mutex
	tables     map[string][]repository.Row
	nextID     int64
	calls      map[repository.Kind]int
	failures   map[repository.Kind]error
	statements []repository.Statement
}

// NewMemoryExecutor returns an empty store. Generated columns the caller
// leaves out of an INSERT are filled from a counter starting at 1.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{
		tables:   make(map[string][]repository.Row),
		nextID:   1,
		calls:    make(map[repository.Kind]int),
		failures: make(map[repository.Kind]error),
	}
}

// FailWith makes every statement of kind fail with err until cleared.
func (m *MemoryExecutor) FailWith(kind repository.Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind] = err
}

// ClearFailures removes all injected failures.
func (m *MemoryExecutor) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[repository.Kind]error)
}

// Calls returns how many statements of kind were executed, failed ones
// included.
func (m *MemoryExecutor) Calls(kind repository.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

// TotalCalls returns the number of executed statements of any kind.
func (m *MemoryExecutor) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters and the statement log.
func (m *MemoryExecutor) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[repository.Kind]int)
	m.statements = nil
}

// Statements returns a copy of the statement log.
func (m *MemoryExecutor) Statements() []repository.Statement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.Statement(nil), m.statements...)
}

// Rows returns a copy of the rows currently stored in table.
func (m *MemoryExecutor) Rows(table string) []repository.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

// Seed appends rows to table without counting a call.
func (m *MemoryExecutor) Seed(table string, rows ...repository.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		stored, err := storeRow(r)
		if err != nil {
			panic(err)
		}
		m.tables[table] = append(m.tables[table], stored)
	}
}

// SeedJSON loads a JSON array of objects from a fixture file into table.
// Numbers are decoded as int64 when integral so large ids survive.
func (m *MemoryExecutor) SeedJSON(t *testing.T, table, path string) {
	t.Helper()

	objects := LoadFixtureRows(t, path)
	rows := make([]repository.Row, 0, len(objects))
	for _, obj := range objects {
		rows = append(rows, repository.Row(obj))
	}
	m.Seed(table, rows...)
}

// Execute implements repository.Executor.
func (m *MemoryExecutor) Execute(ctx context.Context, stmt repository.Statement) (repository.Result, error) {
	if err := ctx.Err(); err != nil {
		return repository.Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[stmt.Kind]++
	m.statements = append(m.statements, stmt)
	if err := m.failures[stmt.Kind]; err != nil {
		return repository.Result{}, err
	}

	switch stmt.Kind {
	case repository.Select:
		return m.selectRows(stmt), nil
	case repository.Insert:
		return m.insertRow(stmt)
	case repository.Update:
		return m.updateRows(stmt)
	case repository.Delete:
		return m.deleteRows(stmt), nil
	default:
		return repository.Result{}, fmt.Errorf("unsupported statement kind %s", stmt.Kind)
	}
}

func (m *MemoryExecutor) selectRows(stmt repository.Statement) repository.Result {
	var res repository.Result
	for _, r := range m.tables[stmt.Table] {
		if !matches(r, stmt.Where) {
			continue
		}
		res.Rows = append(res.Rows, project(r, stmt.Columns))
		if stmt.Limit > 0 && len(res.Rows) >= stmt.Limit {
			break
		}
	}
	return res
}

func (m *MemoryExecutor) insertRow(stmt repository.Statement) (repository.Result, error) {
	row, err := storeRow(stmt.Values)
	if err != nil {
		return repository.Result{}, err
	}
	for _, col := range stmt.Returning {
		if row[col] == nil {
			row[col] = m.nextID
			m.nextID++
		}
	}
	m.tables[stmt.Table] = append(m.tables[stmt.Table], row)

	res := repository.Result{RowsAffected: 1}
	if len(stmt.Returning) > 0 {
		res.Rows = []repository.Row{project(row, stmt.Returning)}
	}
	return res, nil
}

func (m *MemoryExecutor) updateRows(stmt repository.Statement) (repository.Result, error) {
	values, err := storeRow(stmt.Values)
	if err != nil {
		return repository.Result{}, err
	}
	var res repository.Result
	for _, r := range m.tables[stmt.Table] {
		if !matches(r, stmt.Where) {
			continue
		}
		for k, v := range values {
			r[k] = v
		}
		res.RowsAffected++
	}
	return res, nil
}

func (m *MemoryExecutor) deleteRows(stmt repository.Statement) repository.Result {
	var (
		res  repository.Result
		kept []repository.Row
	)
	for _, r := range m.tables[stmt.Table] {
		if matches(r, stmt.Where) {
			res.RowsAffected++
			continue
		}
		kept = append(kept, r)
	}
	m.tables[stmt.Table] = kept
	return res
}

func matches(r repository.Row, where map[string]any) bool {
	for col, want := range where {
		got, ok := r[col]
		if !ok || !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

func project(r repository.Row, cols []string) repository.Row {
	if len(cols) == 0 {
		return copyRow(r)
	}
	out := make(repository.Row, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func copyRow(r repository.Row) repository.Row {
	out := make(repository.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// storeRow converts values to their driver form, the way a database would
// hold them.
func storeRow(values map[string]any) (repository.Row, error) {
	out := make(repository.Row, len(values))
	for k, v := range values {
		if valuer, ok := v.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", k, err)
			}
			v = dv
		}
		out[k] = v
	}
	return out, nil
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case []byte:
		return string(n)
	}
	return v
}
