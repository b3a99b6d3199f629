package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/middleware"
	"github.com/agentoven/studyhall/pkg/models"
)

func TestWithIdentity(t *testing.T) {
	ctx := middleware.WithIdentity(context.Background(), &contracts.Identity{
		UserID: "u1", TenantID: "t1", Role: models.RoleStudent, Provider: "jwt",
	})

	assert.Equal(t, "u1", middleware.IdentityFrom(ctx).UserID)
	ec, ok := middleware.ExecutionContextFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, models.ExecutionContext{UserID: "u1", TenantID: "t1", Role: models.RoleStudent}, ec)
}

func TestAnonymousContext(t *testing.T) {
	ctx := middleware.WithIdentity(context.Background(), nil)
	assert.Nil(t, middleware.IdentityFrom(ctx))
	_, ok := middleware.ExecutionContextFrom(ctx)
	assert.False(t, ok)
}
