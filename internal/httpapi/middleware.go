package httpapi

import (
	"context"
	"net/http"

	"github.com/erauner12/odoosync/internal/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const correlationIDKey contextKey = "correlationId"

// CorrelationMiddleware reads X-Correlation-ID or generates one, echoes it on
// the response and attaches a request-scoped logger to the context
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)

		logger := log.With().
			Str("correlationId", correlationID).
			Str("requestId", middleware.GetReqID(ctx)).
			Logger()
		ctx = logger.WithContext(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

// requestLogger returns the correlation logger with the caller's subject added
func requestLogger(r *http.Request) zerolog.Logger {
	return zerolog.Ctx(r.Context()).With().Str("subject", auth.Subject(r.Context())).Logger()
}
