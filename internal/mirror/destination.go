// Package mirror writes transformed rows into the hosted mirror store.
package mirror

import (
	"context"

	"github.com/erauner12/odoosync/internal/syncx"
)

// Destination is a mirror store that accepts idempotent upserts keyed by a conflict column
type Destination interface {
	// Upsert inserts or updates rows in one request. Rows colliding on
	// conflictKey overwrite the stored row (last write wins).
	Upsert(ctx context.Context, table string, rows []syncx.MirrorRow, conflictKey string) error

	// Count returns the number of rows in table
	Count(ctx context.Context, table string) (int64, error)

	// Select reads rows back from table
	Select(ctx context.Context, q SelectQuery) ([]syncx.MirrorRow, error)
}

// Operators supported by Filter
const (
	OpEq  = "eq"
	OpGte = "gte"
	OpLte = "lte"
)

// Filter restricts a Select to rows where Column Op Value
type Filter struct {
	Column string
	Op     string
	Value  any
}

// SelectQuery describes a read against a mirror table.
// Limit <= 0 means no limit.
type SelectQuery struct {
	Table   string
	Columns []string // empty selects every column
	Filters []Filter
	Order   string // column name, optionally suffixed with " desc"
	Offset  int
	Limit   int
}
