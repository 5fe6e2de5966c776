package odoo

import (
	"context"
	"fmt"

	"github.com/erauner12/odoosync/internal/syncx"
	"github.com/rs/zerolog/log"
)

// Reader reads one collection's records through an authenticated session
type Reader struct {
	client  *Client
	session Session
}

// NewReader binds a client to a session
func NewReader(c *Client, s Session) *Reader {
	return &Reader{client: c, session: s}
}

// FetchPage issues one search_read. An empty slice means the collection is exhausted.
func (r *Reader) FetchPage(ctx context.Context, q Query, offset, limit int) ([]syncx.RemoteRecord, error) {
	recs, err := r.client.SearchRead(ctx, r.session, q, offset, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []syncx.RemoteRecord{}
	}
	return recs, nil
}

// FetchAll reads sequential pages until a page comes back short or maxPages
// pages have been issued. A full final page always costs one more (empty) request.
// maxPages <= 0 means unbounded.
func (r *Reader) FetchAll(ctx context.Context, q Query, pageSize, maxPages int) ([]syncx.RemoteRecord, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	logger := log.With().Str("model", q.Model).Int("pageSize", pageSize).Logger()

	var all []syncx.RemoteRecord
	for page, offset := 0, 0; ; page, offset = page+1, offset+pageSize {
		if maxPages > 0 && page >= maxPages {
			logger.Warn().
				Int("maxPages", maxPages).
				Int("read", len(all)).
				Msg("page limit reached, remaining records not read")
			break
		}
		if err := ctx.Err(); err != nil {
			return all, err
		}

		recs, err := r.FetchPage(ctx, q, offset, pageSize)
		if err != nil {
			return all, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		all = append(all, recs...)

		logger.Debug().Int("offset", offset).Int("count", len(recs)).Msg("page fetched")

		if len(recs) < pageSize {
			break
		}
	}
	return all, nil
}

// FetchByIDs searches for matching ids, then reads them in batches of batchSize.
// limit > 0 caps how many ids are searched.
func (r *Reader) FetchByIDs(ctx context.Context, q Query, batchSize, limit int) ([]syncx.RemoteRecord, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	ids, err := r.client.Search(ctx, r.session, q, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("search ids: %w", err)
	}
	log.Debug().Str("model", q.Model).Int("ids", len(ids)).Msg("ids found")

	all := make([]syncx.RemoteRecord, 0, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		end := min(start+batchSize, len(ids))

		recs, err := r.client.Read(ctx, r.session, q, ids[start:end])
		if err != nil {
			return all, fmt.Errorf("read ids %d..%d: %w", start, end, err)
		}
		all = append(all, recs...)
	}
	return all, nil
}

// Count returns the number of records matching the query
func (r *Reader) Count(ctx context.Context, q Query) (int64, error) {
	return r.client.SearchCount(ctx, r.session, q)
}
