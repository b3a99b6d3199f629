// Package contracts: authentication interfaces for the pluggable auth layer.
//
// The auth collaborator validates the caller; the agent plane only ever sees
// the resulting Identity.
package contracts

import (
	"context"
	"net/http"
	"time"

	"github.com/agentoven/studyhall/pkg/models"
)

// ── Identity ────────────────────────────────────────────────

// Identity represents an authenticated caller.
// Produced by an AuthProvider, consumed by the tenant middleware and handlers.
type Identity struct {
	// UserID is the unique user identifier.
	UserID string `json:"user_id"`

	// TenantID scopes every data access made on behalf of this caller.
	TenantID string `json:"tenant_id"`

	// Role is the global LMS role ("student", "instructor", "admin").
	Role models.Role `json:"role"`

	// Email may be empty.
	Email string `json:"email,omitempty"`

	// Provider identifies which auth provider authenticated this identity.
	// Values: "jwt", "dev"
	Provider string `json:"provider"`

	// ExpiresAt is when this identity's token expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ExecutionContext projects the identity onto the per-request tool scope.
func (i *Identity) ExecutionContext() models.ExecutionContext {
	return models.ExecutionContext{UserID: i.UserID, TenantID: i.TenantID, Role: i.Role}
}

// ── AuthProvider ────────────────────────────────────────────

// AuthProvider authenticates an HTTP request and returns an Identity.
//
// The chain pattern:
//   - Return (*Identity, nil) → authenticated, stop chain
//   - Return (nil, nil) → this provider doesn't handle this request, try next
//   - Return (nil, error) → authentication was attempted but failed, reject
type AuthProvider interface {
	// Name returns the provider identifier (e.g. "jwt", "dev").
	Name() string

	// Authenticate inspects the request and returns an Identity.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// Enabled returns whether this provider is configured and active.
	Enabled() bool
}

// ── AuthProviderChain ───────────────────────────────────────

// AuthProviderChain tries providers in priority order until one returns an Identity.
type AuthProviderChain interface {
	// Authenticate walks the chain of providers in order.
	// Returns the first successful Identity, or (nil, nil) if no provider matched.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// RegisterProvider adds a provider to the end of the chain.
	RegisterProvider(provider AuthProvider)
}
