package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

type callerKey struct{}

// requestCaller is created by Logger and filled in by CallerScope, which
// runs after authentication further down the chain.
type requestCaller struct {
	userID   string
	tenantID string
	role     string
}

func recordCaller(ctx context.Context, userID, tenantID, role string) {
	if rc, ok := ctx.Value(callerKey{}).(*requestCaller); ok {
		rc.userID, rc.tenantID, rc.role = userID, tenantID, role
	}
}

// Logger returns structured request logging middleware. Requests on
// authenticated routes carry the caller's user, tenant and role. Message
// text and request bodies are never logged.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		caller := &requestCaller{}

		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))

		event := log.Info()
		if rw.statusCode >= 400 {
			event = log.Warn()
		}
		if rw.statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", rw.statusCode).
			Int("bytes", rw.bytes).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr)
		if caller.tenantID != "" {
			event.
				Str("user_id", caller.userID).
				Str("tenant_id", caller.tenantID).
				Str("role", caller.role)
		}
		event.Msg("request")
	})
}
