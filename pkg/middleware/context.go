// Package middleware provides shared request-context helpers: the
// authenticated identity and the execution context derived from it.
package middleware

import (
	"context"

	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	execKey     contextKey = "execution_context"
)

// WithIdentity stores the authenticated caller and its execution context.
// A nil identity leaves ctx unchanged.
func WithIdentity(ctx context.Context, identity *contracts.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, identityKey, identity)
	return context.WithValue(ctx, execKey, identity.ExecutionContext())
}

// IdentityFrom returns the caller, or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *contracts.Identity {
	if v, ok := ctx.Value(identityKey).(*contracts.Identity); ok {
		return v
	}
	return nil
}

// ExecutionContextFrom returns the caller scope used for tool permission
// checks and data-access filters.
func ExecutionContextFrom(ctx context.Context) (models.ExecutionContext, bool) {
	ec, ok := ctx.Value(execKey).(models.ExecutionContext)
	return ec, ok
}
