package sqlinfra

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	TextCodeUnsupportedDriver = "UNSUPPORTED_DRIVER"
)

// Open connects to the database and wraps it in bun with the dialect that
// matches driver. Nothing is sent to the server until the first query.
func Open(driver, dsn string) (*bun.DB, error) {
	var dialect schema.Dialect
	switch driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
	case DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, errors.New(fmt.Sprintf("unsupported database driver %q", driver), errors.CategoryValidation).
			WithTextCode(TextCodeUnsupportedDriver)
	}

	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, wrap(err, errors.CategoryExternal, TextCodeDatabase, fmt.Sprintf("cannot open %s database", driver))
	}
	// Every connection to :memory: is its own database.
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqldb, dialect), nil
}
