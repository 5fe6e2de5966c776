package syncservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/erauner12/odoosync/internal/mirror"
	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/syncx"
	"golang.org/x/sync/errgroup"
)

// Credentials authenticate a run against the ERP
type Credentials struct {
	Database string
	Username string
	Password string
}

// Runner executes SyncRuns. It holds no per-run state, so one runner can
// drive many collections concurrently.
type Runner struct {
	erp    *odoo.Client
	creds  Credentials
	writer *mirror.Writer
	window syncx.Window
}

// NewRunner wires the ERP client, the mirror writer and the date window
func NewRunner(erp *odoo.Client, creds Credentials, writer *mirror.Writer, window syncx.Window) *Runner {
	return &Runner{erp: erp, creds: creds, writer: writer, window: window}
}

// Run performs one full read-transform-write pass over c.
//
// The returned error is non-nil only for fatal conditions: ERP or mirror
// authentication failure, or cancellation. A RemoteError while reading stops
// the fetch loop; whatever was read is still written and the error is carried
// in the summary. Failed upsert batches are listed in the summary.
func (r *Runner) Run(ctx context.Context, c Collection) (Summary, error) {
	run := newRun(c)
	logger := run.logger

	if err := run.transition(StateAuthenticating); err != nil {
		return run.Summary(), err
	}
	session, err := r.erp.Authenticate(ctx, r.creds.Database, r.creds.Username, r.creds.Password)
	if err != nil {
		logger.Error().Err(err).Msg("erp authentication failed")
		run.fail(err)
		return run.Summary(), err
	}

	if err := run.transition(StateReading); err != nil {
		return run.Summary(), err
	}
	recs, readErr := r.read(ctx, odoo.NewReader(r.erp, session), c)
	run.Read = len(recs)
	if readErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			run.fail(ctxErr)
			return run.Summary(), ctxErr
		}
		logger.Error().Err(readErr).Int("read", run.Read).Msg("read aborted, writing records fetched so far")
		run.Err = readErr
	} else {
		logger.Info().Int("read", run.Read).Msg("records read")
	}

	rows := make([]syncx.MirrorRow, 0, len(recs))
	for _, rec := range recs {
		row := syncx.Transform(rec, c.Map)
		if !row.HasKey(c.ConflictKey) {
			run.Dropped++
			continue
		}
		rows = append(rows, row)
	}
	rows = dedupeByKey(rows, c.ConflictKey)
	if run.Dropped > 0 {
		logger.Warn().Int("dropped", run.Dropped).Str("conflict_key", c.ConflictKey).Msg("rows without conflict key dropped")
	}

	if err := run.transition(StateWriting); err != nil {
		return run.Summary(), err
	}
	res, err := r.writer.UpsertBatch(ctx, c.Table, rows, c.ConflictKey, c.BatchSize)
	run.Written = res.Written
	run.FailedBatches = res.FailedBatches
	if err != nil {
		logger.Error().Err(err).Msg("mirror write aborted")
		run.fail(err)
		return run.Summary(), err
	}

	if err := run.transition(StateDone); err != nil {
		return run.Summary(), err
	}
	logger.Info().
		Int("read", run.Read).
		Int("written", run.Written).
		Int("dropped", run.Dropped).
		Int("failed_batches", len(run.FailedBatches)).
		Msg("sync run complete")
	return run.Summary(), nil
}

func (r *Runner) read(ctx context.Context, reader *odoo.Reader, c Collection) ([]syncx.RemoteRecord, error) {
	q := c.Query(r.window)
	if c.ReadMode == ReadIDs {
		return reader.FetchByIDs(ctx, q, c.PageSize, c.Limit)
	}
	return reader.FetchAll(ctx, q, c.PageSize, c.MaxPages)
}

// RunAll syncs collections concurrently, each with its own session and SyncRun.
// Summaries are returned in input order. A fatal error from any collection
// cancels the others and is returned.
func (r *Runner) RunAll(ctx context.Context, cols []Collection) ([]Summary, error) {
	summaries := make([]Summary, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cols {
		g.Go(func() error {
			s, err := r.Run(gctx, c)
			summaries[i] = s
			if err != nil {
				return fmt.Errorf("collection %s: %w", c.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return summaries, err
}

// CountResult compares ERP and mirror row counts for one collection
type CountResult struct {
	Collection string `json:"collection"`
	Table      string `json:"table"`
	Remote     int64  `json:"remote"`
	Mirror     int64  `json:"mirror"`
	Newest     any    `json:"newest,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Check authenticates once and compares counts per collection.
// Authentication failures are fatal; per-collection errors are reported in the result.
func (r *Runner) Check(ctx context.Context, cols []Collection) ([]CountResult, error) {
	session, err := r.erp.Authenticate(ctx, r.creds.Database, r.creds.Username, r.creds.Password)
	if err != nil {
		return nil, err
	}
	reader := odoo.NewReader(r.erp, session)

	out := make([]CountResult, 0, len(cols))
	for _, c := range cols {
		res := CountResult{Collection: c.Name, Table: c.Table}

		remote, err := reader.Count(ctx, c.Query(r.window))
		if err != nil {
			res.Error = err.Error()
		}
		res.Remote = remote

		mirrorCount, err := r.MirrorCount(ctx, c)
		if err != nil {
			if IsFatal(err) {
				return out, err
			}
			if res.Error == "" {
				res.Error = err.Error()
			}
		}
		res.Mirror = mirrorCount

		if mirrorCount > 0 {
			newest, err := r.NewestKey(ctx, c)
			if err != nil {
				if IsFatal(err) {
					return out, err
				}
				if res.Error == "" {
					res.Error = err.Error()
				}
			}
			res.Newest = newest
		}
		out = append(out, res)
	}
	return out, nil
}

// MirrorCount returns the number of rows in c's mirror table
func (r *Runner) MirrorCount(ctx context.Context, c Collection) (int64, error) {
	return r.writer.Destination().Count(ctx, c.Table)
}

// NewestKey returns the highest conflict key stored in c's mirror table, or nil
// when the table is empty
func (r *Runner) NewestKey(ctx context.Context, c Collection) (any, error) {
	rows, err := r.writer.Destination().Select(ctx, mirror.SelectQuery{
		Table:   c.Table,
		Columns: []string{c.ConflictKey},
		Order:   c.ConflictKey + " desc",
		Limit:   1,
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0][c.ConflictKey], nil
}

// IsFatal reports whether err should stop the process rather than be absorbed
func IsFatal(err error) bool {
	var odooAuth odoo.AuthError
	var mirrorAuth mirror.AuthError
	return errors.As(err, &odooAuth) || errors.As(err, &mirrorAuth)
}

// dedupeByKey keeps the last row per conflict key, preserving first-seen order.
// One upsert statement cannot touch the same key twice.
func dedupeByKey(rows []syncx.MirrorRow, key string) []syncx.MirrorRow {
	index := make(map[any]int, len(rows))
	out := rows[:0]
	for _, row := range rows {
		k := row[key]
		if i, ok := index[k]; ok {
			out[i] = row
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out
}
