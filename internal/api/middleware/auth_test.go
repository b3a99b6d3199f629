package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentoven/studyhall/internal/api/middleware"
	"github.com/agentoven/studyhall/pkg/contracts"
	pkgmw "github.com/agentoven/studyhall/pkg/middleware"
	"github.com/agentoven/studyhall/pkg/models"
)

type fixedChain struct {
	identity *contracts.Identity
	err      error
}

func (c fixedChain) Authenticate(context.Context, *http.Request) (*contracts.Identity, error) {
	return c.identity, c.err
}

func (fixedChain) RegisterProvider(contracts.AuthProvider) {}

func serve(chain contracts.AuthProviderChain, path string) (*httptest.ResponseRecorder, *models.ExecutionContext) {
	var seen *models.ExecutionContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ec, ok := pkgmw.ExecutionContextFrom(r.Context()); ok {
			seen = &ec
		}
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	middleware.NewAuthMiddleware(chain).Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec, seen
}

func TestAuthStoresIdentity(t *testing.T) {
	id := &contracts.Identity{UserID: "u1", TenantID: "t1", Role: models.RoleStudent}
	rec, seen := serve(fixedChain{identity: id}, "/api/v1/ai/agents")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	if assert.NotNil(t, seen) {
		assert.Equal(t, "t1", seen.TenantID)
	}
}

func TestAuthRejectsMissingIdentityOnAIRoutes(t *testing.T) {
	rec, _ := serve(fixedChain{}, "/api/v1/ai/chat")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="studyhall"`, rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())

	rec, _ = serve(fixedChain{}, "/api/v1/other")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRejectsBadToken(t *testing.T) {
	rec, _ := serve(fixedChain{err: errors.New("signature mismatch")}, "/api/v1/ai/agents")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "signature")
}

func TestAuthSkipsPublicPaths(t *testing.T) {
	for _, p := range []string{"/health", "/version", "/metrics"} {
		rec, _ := serve(fixedChain{err: errors.New("never called")}, p)
		assert.Equal(t, http.StatusNoContent, rec.Code, p)
	}
}
