package repository

import (
	"context"
	"fmt"
	"sort"
)

// Kind is the shape of a statement.
type Kind int

const (
	Select Kind = iota
	Insert
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Select:
		return "SELECT"
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Statement describes one operation against a single table. It carries no
// SQL; executors render it for their backend.
type Statement struct {
	Kind  Kind
	Table string
	// Columns is the SELECT projection.
	Columns []string
	// Values holds the column values written by INSERT and UPDATE.
	Values map[string]any
	// Where is a conjunction of column equalities.
	Where map[string]any
	// Returning lists the columns an INSERT hands back.
	Returning []string
	// Limit caps SELECT results when positive.
	Limit int
}

// ValueColumns returns the keys of Values in a stable order.
func (s Statement) ValueColumns() []string { return sortedKeys(s.Values) }

// WhereColumns returns the keys of Where in a stable order.
func (s Statement) WhereColumns() []string { return sortedKeys(s.Where) }

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Row is one result row keyed by column name.
type Row map[string]any

// Result is what an executor hands back.
type Result struct {
	Rows         []Row
	RowsAffected int64
}

// Executor runs statements against a store. Implementations must be safe
// for concurrent use and honour ctx cancellation.
type Executor interface {
	Execute(ctx context.Context, stmt Statement) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, stmt Statement) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, stmt Statement) (Result, error) {
	return f(ctx, stmt)
}
