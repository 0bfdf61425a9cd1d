package sqlinfra

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-retriever/entity"
)

// CreateTableSQL renders a SQLite CREATE TABLE statement for meta. Column
// types are derived from the values of a freshly constructed instance so the
// driver hands rows back in their natural Go types; a single generated id
// becomes the INTEGER PRIMARY KEY. Each entry of unique adds a UNIQUE
// constraint over those columns.
//
// This is a fixture helper for tests and examples, not a migration tool.
func CreateTableSQL[T any](meta *entity.Metadata[T], unique ...[]string) string {
	ids := meta.IDProperties()
	single := len(ids) == 1 && ids[0].IsGenerated()

	var sample map[string]any
	if e := meta.Instantiate(); e != nil {
		sample, _ = meta.Extract(e)
	}

	var defs []string
	for _, p := range meta.Properties() {
		col := quote(p.Name())
		switch {
		case single && p.Name() == ids[0].Name():
			col += " INTEGER PRIMARY KEY"
		case p.IsID() || p.IsGenerated():
			col += " INTEGER"
		default:
			if typ := sqliteType(sample[p.Name()]); typ != "" {
				col += " " + typ
			}
		}
		defs = append(defs, col)
	}
	if !single && len(ids) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteAll(propertyNames(ids))+")")
	}
	for _, cols := range unique {
		defs = append(defs, "UNIQUE ("+quoteAll(cols)+")")
	}

	return "CREATE TABLE IF NOT EXISTS " + quote(meta.Table()) + " (" + strings.Join(defs, ", ") + ")"
}

func sqliteType(v any) string {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, time.Duration:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	case bool:
		return "BOOLEAN"
	case time.Time:
		return "TIMESTAMP"
	case []byte:
		return "BLOB"
	case string, driver.Valuer:
		return "TEXT"
	default:
		return ""
	}
}

// CreateTable runs CreateTableSQL against db.
func CreateTable[T any](ctx context.Context, db bun.IDB, meta *entity.Metadata[T], unique ...[]string) error {
	if _, err := db.ExecContext(ctx, CreateTableSQL(meta, unique...)); err != nil {
		return MapError(err)
	}
	return nil
}

func propertyNames[T any](props []*entity.Property[T]) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name()
	}
	return out
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = quote(id)
	}
	return strings.Join(quoted, ", ")
}
