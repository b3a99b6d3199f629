package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/studyhall/pkg/contracts"
	pkgmw "github.com/agentoven/studyhall/pkg/middleware"
)

// AuthMiddleware authenticates requests using the pluggable provider chain
// and stores the resulting Identity in context.
//
// Requests under /api/v1/ai always require an identity. Other paths pass
// through anonymously when no provider matches.
type AuthMiddleware struct {
	chain contracts.AuthProviderChain
}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware(chain contracts.AuthProviderChain) *AuthMiddleware {
	return &AuthMiddleware{chain: chain}
}

// Handler returns the HTTP handler middleware that authenticates requests.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := am.chain.Authenticate(r.Context(), r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		if identity == nil && requiresIdentity(r.URL.Path) {
			unauthorized(w, "authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(pkgmw.WithIdentity(r.Context(), identity)))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="studyhall"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func requiresIdentity(path string) bool {
	return path == "/api/v1/ai" || strings.HasPrefix(path, "/api/v1/ai/")
}

// isAuthPublicPath returns true for paths that should skip authentication.
func isAuthPublicPath(path string) bool {
	switch path {
	case "/health", "/version", "/metrics":
		return true
	}
	return false
}
