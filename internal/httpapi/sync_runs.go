package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/erauner12/odoosync/internal/mirror"
	"github.com/erauner12/odoosync/internal/odoo"
	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/go-chi/chi/v5"
)

// syncReq is the optional body of POST /v1/sync
type syncReq struct {
	Collections []string `json:"collections"`
}

// syncResp wraps the per-collection summaries of a triggered sync
type syncResp struct {
	Summaries []syncservice.Summary `json:"summaries"`
}

// collectionInfo is one entry of GET /v1/collections
type collectionInfo struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Table     string `json:"table"`
	ReadMode  string `json:"readMode"`
	DateField string `json:"dateField,omitempty"`
	Columns   int    `json:"columns"`
}

// ListCollections handles GET /v1/collections
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols := s.Catalog.All()
	out := make([]collectionInfo, 0, len(cols))
	for _, c := range cols {
		out = append(out, collectionInfo{
			Name:      c.Name,
			Model:     c.Model,
			Table:     c.Table,
			ReadMode:  string(c.ReadMode),
			DateField: c.DateField,
			Columns:   len(c.Map.Columns) + len(c.Map.Derived),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

// SyncAll handles POST /v1/sync. An empty body or collection list syncs the whole catalog.
func (s *Server) SyncAll(w http.ResponseWriter, r *http.Request) {
	var req syncReq
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "invalid json")
			return
		}
	}
	s.runCollections(w, r, req.Collections)
}

// SyncCollection handles POST /v1/sync/{collection}
func (s *Server) SyncCollection(w http.ResponseWriter, r *http.Request) {
	s.runCollections(w, r, []string{chi.URLParam(r, "collection")})
}

func (s *Server) runCollections(w http.ResponseWriter, r *http.Request, names []string) {
	logger := requestLogger(r)

	cols, err := s.Catalog.Select(names)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	release, busy := s.acquire(cols)
	if busy != "" {
		writeError(w, r, http.StatusConflict, "collection "+busy+" is already syncing")
		return
	}
	defer release()

	logger.Info().Strs("collections", collectionNames(cols)).Msg("sync triggered")

	ctx, cancel := s.syncContext(r)
	defer cancel()
	summaries, err := s.Runner.RunAll(ctx, cols)
	if err != nil {
		logger.Error().Err(err).Msg("triggered sync failed")
		code := statusFor(err)
		writeJSON(w, code, ErrorResponse{
			Error:         err.Error(),
			Status:        code,
			CorrelationID: GetCorrelationID(r.Context()),
			Summaries:     summaries,
		})
		return
	}
	writeJSON(w, http.StatusOK, syncResp{Summaries: summaries})
}

// MirrorCount handles GET /v1/mirror/{collection}/count
func (s *Server) MirrorCount(w http.ResponseWriter, r *http.Request) {
	c, err := s.Catalog.Get(chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	n, err := s.Runner.MirrorCount(r.Context(), c)
	if err != nil {
		logger := requestLogger(r)
		logger.Error().Err(err).Str("table", c.Table).Msg("mirror count failed")
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": c.Name, "table": c.Table, "count": n})
}

// syncContext keeps the request's values (logger, correlation id) but takes
// cancellation from the server lifetime instead of the client connection
func (s *Server) syncContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	if s.Lifetime == nil {
		return ctx, cancel
	}
	if s.Lifetime.Err() != nil {
		cancel()
		return ctx, cancel
	}
	stop := context.AfterFunc(s.Lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// acquire marks cols as running. If any is already running its name is returned
// and nothing is marked.
func (s *Server) acquire(cols []syncservice.Collection) (func(), string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[string]struct{})
	}
	for _, c := range cols {
		if _, running := s.inflight[c.Name]; running {
			return nil, c.Name
		}
	}
	for _, c := range cols {
		s.inflight[c.Name] = struct{}{}
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range cols {
			delete(s.inflight, c.Name)
		}
	}, ""
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var (
		remote odoo.RemoteError
		write  mirror.WriteError
	)
	switch {
	case errors.Is(err, syncservice.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// checked first: transport errors wrap the cancellation
		return http.StatusServiceUnavailable
	case syncservice.IsFatal(err):
		return http.StatusBadGateway
	case errors.As(err, &remote), errors.As(err, &write):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func collectionNames(cols []syncservice.Collection) []string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}
