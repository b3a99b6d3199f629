package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

// DevProvider authenticates every request without a bearer token as one
// fixed identity. Local development only.
type DevProvider struct {
	identity *contracts.Identity
}

// NewDevProvider parses "user:tenant:role". An empty spec yields a
// disabled provider.
func NewDevProvider(spec string) (*DevProvider, error) {
	if strings.TrimSpace(spec) == "" {
		return &DevProvider{}, nil
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("AUTH_DEV_IDENTITY must be user:tenant:role, got %q", spec)
	}
	return &DevProvider{identity: &contracts.Identity{
		UserID:   parts[0],
		TenantID: parts[1],
		Role:     models.Role(parts[2]),
		Provider: "dev",
	}}, nil
}

func (p *DevProvider) Name() string { return "dev" }

func (p *DevProvider) Enabled() bool { return p.identity != nil }

func (p *DevProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	if bearerToken(r) != "" {
		return nil, nil
	}
	id := *p.identity
	return &id, nil
}
