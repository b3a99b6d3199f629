package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

// ErrInvalidToken is returned for a bearer token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// JWTProvider verifies HS256 bearer tokens. Claims: userId (falls back to
// sub), tenantId, role.
type JWTProvider struct {
	secret []byte
	issuer string
}

// NewJWTProvider returns a provider; it is disabled when secret is empty.
func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer}
}

func (p *JWTProvider) Name() string { return "jwt" }

func (p *JWTProvider) Enabled() bool { return len(p.secret) > 0 }

// Authenticate returns (nil, nil) when no bearer token is present.
func (p *JWTProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, nil
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, p.secret),
		jwt.WithValidate(true),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}

	id := &contracts.Identity{
		UserID:    stringClaim(token, "userId"),
		TenantID:  stringClaim(token, "tenantId"),
		Role:      models.Role(stringClaim(token, "role")),
		Email:     stringClaim(token, "email"),
		Provider:  p.Name(),
		ExpiresAt: token.Expiration(),
	}
	if id.UserID == "" {
		id.UserID = token.Subject()
	}
	if id.UserID == "" || id.TenantID == "" || id.Role == "" {
		return nil, ErrInvalidToken
	}
	return id, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
