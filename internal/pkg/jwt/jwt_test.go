package jwt

import (
	"context"
	"testing"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndReadIdentity(t *testing.T) {
	svc := NewJWTService("test-secret", "15m")

	token, exp, err := svc.GenerateAccessToken("user-1", "Rina", RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Positive(t, exp)

	decoded, err := svc.JWTAuth().Decode(token)
	require.NoError(t, err)

	ctx := jwtauth.NewContext(context.Background(), decoded, nil)
	id, err := IdentityFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "Rina", id.Name)
	assert.True(t, id.IsAdmin())
}

func TestGenerateAccessTokenBadDuration(t *testing.T) {
	svc := NewJWTService("test-secret", "soon")
	_, _, err := svc.GenerateAccessToken("user-1", "", RoleEmployee)
	assert.Error(t, err)
}

func TestIdentityFromContextWithoutToken(t *testing.T) {
	_, err := IdentityFromContext(context.Background())
	assert.Error(t, err)
}
