package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// maxBindParams is the Postgres limit on parameters in one statement
const maxBindParams = 65535

// Querier is the subset of pgxpool.Pool the Postgres destination needs
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGDestination writes straight into the mirror database over a pgx pool
type PGDestination struct {
	db Querier
}

// NewPGDestination wraps a pool (or any Querier)
func NewPGDestination(db Querier) *PGDestination {
	return &PGDestination{db: db}
}

// Upsert writes all rows in a single INSERT ... ON CONFLICT statement
func (d *PGDestination) Upsert(ctx context.Context, table string, rows []syncx.MirrorRow, conflictKey string) error {
	if len(rows) == 0 {
		return nil
	}
	sql, args, err := buildUpsert(table, rows, conflictKey)
	if err != nil {
		return WriteError{Table: table, Message: err.Error()}
	}
	if _, err := d.db.Exec(ctx, sql, args...); err != nil {
		return pgError(table, err)
	}
	return nil
}

// Count returns count(*) over table
func (d *PGDestination) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := d.db.QueryRow(ctx, "SELECT count(*) FROM "+quoteTable(table)).Scan(&n)
	if err != nil {
		return 0, pgError(table, err)
	}
	return n, nil
}

// Select reads rows matching q
func (d *PGDestination) Select(ctx context.Context, q SelectQuery) ([]syncx.MirrorRow, error) {
	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, pgError(q.Table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, pgError(q.Table, err)
	}
	out := make([]syncx.MirrorRow, len(maps))
	for i, m := range maps {
		out[i] = syncx.MirrorRow(m)
	}
	return out, nil
}

// buildUpsert renders one multi-row INSERT. Columns are the sorted union of
// row keys; a row lacking a column binds NULL for it.
func buildUpsert(table string, rows []syncx.MirrorRow, conflictKey string) (string, []any, error) {
	if conflictKey == "" {
		return "", nil, errors.New("conflict key is required")
	}

	colSet := map[string]struct{}{conflictKey: {}}
	for _, r := range rows {
		for k := range r {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	if len(cols)*len(rows) > maxBindParams {
		return "", nil, fmt.Errorf("%d rows x %d columns exceeds %d bind parameters", len(rows), len(cols), maxBindParams)
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quoteTable(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(cols)*len(rows))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, r[c])
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args)))
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(pgx.Identifier{conflictKey}.Sanitize())
	b.WriteString(")")

	var sets []string
	for i, c := range cols {
		if c == conflictKey {
			continue
		}
		sets = append(sets, quoted[i]+" = EXCLUDED."+quoted[i])
	}
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	return b.String(), args, nil
}

func buildSelect(q SelectQuery) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = pgx.Identifier{c}.Sanitize()
		}
		b.WriteString(strings.Join(quoted, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteTable(q.Table))

	var args []any
	for i, f := range q.Filters {
		var op string
		switch f.Op {
		case OpEq:
			op = "="
		case OpGte:
			op = ">="
		case OpLte:
			op = "<="
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s %s $%d", pgx.Identifier{f.Column}.Sanitize(), op, len(args))
	}

	if fields := strings.Fields(q.Order); len(fields) > 0 {
		dir := "ASC"
		if len(fields) > 1 && strings.EqualFold(fields[1], "desc") {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", pgx.Identifier{fields[0]}.Sanitize(), dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", q.Offset)
	}
	return b.String(), args, nil
}

// quoteTable quotes a possibly schema-qualified table name
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// pgError maps authentication failures to AuthError and everything else to WriteError
func pgError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000", "42501":
			return AuthError{Message: pgErr.Code + ": " + pgErr.Message}
		}
		return WriteError{Table: table, Message: pgErr.Code + ": " + pgErr.Message}
	}
	return WriteError{Table: table, Message: err.Error()}
}
