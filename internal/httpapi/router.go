package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/erauner12/odoosync/internal/auth"
	"github.com/erauner12/odoosync/internal/service/syncservice"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server holds dependencies for the trigger endpoints
type Server struct {
	Catalog         *syncservice.Catalog
	Runner          *syncservice.Runner
	RateLimitConfig RateLimitInfo
	// Lifetime bounds triggered syncs. A client dropping its connection does
	// not cancel a sync; cancelling Lifetime does. Nil means never.
	Lifetime context.Context

	mu       sync.Mutex
	inflight map[string]struct{}
}

// RateLimitInfo describes the per-subject token bucket applied to sync triggers
type RateLimitInfo struct {
	WindowSeconds int `json:"windowSeconds"`
	MaxRequests   int `json:"maxRequests"` // per window
	Burst         int `json:"burst"`       // bucket size
}

// DefaultRateLimitConfig allows a handful of manual or scheduled triggers per minute
var DefaultRateLimitConfig = RateLimitInfo{
	WindowSeconds: 60,
	MaxRequests:   6,
	Burst:         3,
}

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error         string                `json:"error"`
	Status        int                   `json:"status"`
	CorrelationID string                `json:"correlationId,omitempty"`
	Summaries     []syncservice.Summary `json:"summaries,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, ErrorResponse{
		Error:         msg,
		Status:        code,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

// Routes creates the router. Everything except /healthz requires a bearer token.
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))

		r.Get("/v1/collections", s.ListCollections)
		r.Get("/v1/mirror/{collection}/count", s.MirrorCount)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.rateLimitConfig()))
			r.Post("/v1/sync", s.SyncAll)
			r.Post("/v1/sync/{collection}", s.SyncCollection)
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

func (s *Server) rateLimitConfig() RateLimitInfo {
	cfg := s.RateLimitConfig
	if cfg.WindowSeconds <= 0 || cfg.MaxRequests <= 0 || cfg.Burst <= 0 {
		return DefaultRateLimitConfig
	}
	return cfg
}
