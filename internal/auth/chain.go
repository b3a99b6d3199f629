// Package auth provides the authentication provider chain for StudyHall.
//
// Ships:
//   - JWTProvider: HS256 bearer tokens issued by the LMS auth service
//   - DevProvider: a fixed identity for local development
package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/studyhall/pkg/contracts"
)

// ProviderChain implements contracts.AuthProviderChain.
// It walks registered providers in order until one returns an Identity.
type ProviderChain struct {
	mu        sync.RWMutex
	providers []contracts.AuthProvider
}

// NewProviderChain creates a chain over the given providers.
func NewProviderChain(providers ...contracts.AuthProvider) *ProviderChain {
	c := &ProviderChain{}
	for _, p := range providers {
		c.RegisterProvider(p)
	}
	return c
}

// RegisterProvider appends a provider. Providers are tried in registration order.
func (c *ProviderChain) RegisterProvider(provider contracts.AuthProvider) {
	c.mu.Lock()
	c.providers = append(c.providers, provider)
	c.mu.Unlock()
	log.Info().
		Str("provider", provider.Name()).
		Bool("enabled", provider.Enabled()).
		Msg("🔑 Auth provider registered")
}

// Authenticate returns the first identity produced by an enabled provider.
// A provider error stops the walk: a present but bad token is never
// retried against a weaker provider.
func (c *ProviderChain) Authenticate(ctx context.Context, r *http.Request) (*contracts.Identity, error) {
	c.mu.RLock()
	providers := append([]contracts.AuthProvider(nil), c.providers...)
	c.mu.RUnlock()

	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		identity, err := p.Authenticate(ctx, r)
		if err != nil {
			log.Debug().Str("provider", p.Name()).Err(err).Msg("Auth provider rejected request")
			return nil, err
		}
		if identity != nil {
			log.Debug().
				Str("provider", p.Name()).
				Str("user_id", identity.UserID).
				Str("tenant_id", identity.TenantID).
				Str("role", string(identity.Role)).
				Msg("Request authenticated")
			return identity, nil
		}
	}
	return nil, nil
}

// ListProviders returns the names of all registered providers.
func (c *ProviderChain) ListProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}
