package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	pkgmw "github.com/agentoven/studyhall/pkg/middleware"
)

// CallerScope tags the request span and access log with the caller's
// tenant, user and role. Tenant always comes from the authenticated
// identity; request headers and query parameters are never consulted.
func CallerScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ec, ok := pkgmw.ExecutionContextFrom(r.Context()); ok {
			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("studyhall.tenant_id", ec.TenantID),
				attribute.String("studyhall.user_id", ec.UserID),
				attribute.String("studyhall.role", string(ec.Role)),
			)
			recordCaller(r.Context(), ec.UserID, ec.TenantID, string(ec.Role))
		}
		next.ServeHTTP(w, r)
	})
}
