package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
)

type ctxKey int

const loggerKey ctxKey = iota

// traceID tags each request with a random ID, exposed in the X-Trace-ID
// header and attached to a per-request structured logger in the context.
func (s *Service) traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := make([]byte, 4)
		rand.Read(id)
		trace := hex.EncodeToString(id)

		w.Header().Set("X-Trace-ID", trace)
		logger := s.logger.With(
			"trace_id", trace,
			"method", r.Method,
			"path", r.URL.Path,
		)
		logger.Debug("request")

		ctx := context.WithValue(r.Context(), loggerKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reqLogger retrieves the per-request logger from the context, falling
// back to the service logger.
func (s *Service) reqLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

// maxBody returns middleware that caps the request body size for
// methods that carry one.
func maxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Method != http.MethodGet {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
