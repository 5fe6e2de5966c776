package mirror

import (
	"context"
	"errors"

	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

const (
	// DefaultBatchSize is used when a caller passes a non-positive batch size
	DefaultBatchSize = 500

	// MaxBatchSize caps a single upsert request
	MaxBatchSize = 1000
)

// WriteResult summarizes an UpsertBatch call
type WriteResult struct {
	Written       int          `json:"written"`
	FailedBatches []BatchError `json:"failed_batches"`
}

// Writer upserts rows into a destination in bounded chunks.
// Chunks are written sequentially; the limiter paces requests.
type Writer struct {
	dest    Destination
	limiter ratelimit.Limiter
}

// NewWriter creates a writer. maxRPS <= 0 disables pacing.
func NewWriter(dest Destination, maxRPS int) *Writer {
	limiter := ratelimit.NewUnlimited()
	if maxRPS > 0 {
		limiter = ratelimit.New(maxRPS)
	}
	return &Writer{dest: dest, limiter: limiter}
}

// Destination returns the store the writer targets
func (w *Writer) Destination() Destination {
	return w.dest
}

// ClampBatchSize applies the default and the upper bound
func ClampBatchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return min(n, MaxBatchSize)
}

// UpsertBatch writes rows to dest without pacing
func UpsertBatch(ctx context.Context, dest Destination, table string, rows []syncx.MirrorRow, conflictKey string, batchSize int) (WriteResult, error) {
	return NewWriter(dest, 0).UpsertBatch(ctx, table, rows, conflictKey, batchSize)
}

// UpsertBatch splits rows into chunks of at most batchSize and upserts each.
// A failed chunk is recorded and the next one is attempted; only an AuthError
// stops the loop and is returned. Empty input makes no request.
func (w *Writer) UpsertBatch(ctx context.Context, table string, rows []syncx.MirrorRow, conflictKey string, batchSize int) (WriteResult, error) {
	res := WriteResult{FailedBatches: []BatchError{}}
	if len(rows) == 0 {
		return res, nil
	}
	batchSize = ClampBatchSize(batchSize)

	logger := log.With().Str("table", table).Int("batchSize", batchSize).Logger()

	for index, start := 0, 0; start < len(rows); index, start = index+1, start+batchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]

		w.limiter.Take()
		err := w.dest.Upsert(ctx, table, chunk, conflictKey)
		if err == nil {
			res.Written += len(chunk)
			logger.Debug().Int("batch", index).Int("rows", len(chunk)).Msg("batch upserted")
			continue
		}

		var authErr AuthError
		if errors.As(err, &authErr) {
			logger.Error().Err(err).Int("batch", index).Msg("mirror rejected credentials")
			return res, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}

		logger.Warn().Err(err).Int("batch", index).Int("rows", len(chunk)).Msg("batch upsert failed, continuing")
		res.FailedBatches = append(res.FailedBatches, BatchError{Index: index, Size: len(chunk), Message: err.Error()})
	}
	return res, nil
}
