// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

// requestID returns the request-scoped ID attached by withRequestID, or
// "" if called outside a request this server handled.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID stamps every request with a UUID, echoed back on the
// X-Request-Id response header and threaded onto the request context so
// accessLog includes it in each access-log line, the same correlation-ID
// role the teacher's request logging assigns a counter-based ID.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs every request's method, path, status, and duration,
// ported from the teacher's loggingMiddleware.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		fields := []interface{}{"request_id", requestID(r.Context()), "method", r.Method, "path", r.URL.Path, "status", wrapped.statusCode, "duration", duration.Round(time.Millisecond)}
		switch {
		case wrapped.statusCode >= 500:
			s.logger.Error("controlapi: request", fields...)
		case wrapped.statusCode >= 400:
			s.logger.Warn("controlapi: request", fields...)
		default:
			s.logger.Info("controlapi: request", fields...)
		}
	})
}
