package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/config"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := hasher.VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_RejectsGarbageHash(t *testing.T) {
	hasher := NewPasswordHasher()

	_, err := hasher.VerifyPassword("anything", "not-an-argon2-hash")
	assert.Error(t, err)
}

func TestJWTHandler_RoundTrip(t *testing.T) {
	handler := NewJWTHandler("test-secret", time.Hour)

	token, err := handler.GenerateAccessToken("admin", "admin")
	require.NoError(t, err)

	claims, err := handler.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTHandler_RejectsExpiredToken(t *testing.T) {
	handler := NewJWTHandler("test-secret", -time.Minute)

	token, err := handler.GenerateAccessToken("admin", "admin")
	require.NoError(t, err)

	_, err = handler.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTHandler_RejectsWrongSecret(t *testing.T) {
	handler := NewJWTHandler("test-secret", time.Hour)
	other := NewJWTHandler("different-secret", time.Hour)

	token, err := handler.GenerateAccessToken("admin", "admin")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestService_Login(t *testing.T) {
	hash, err := NewPasswordHasher().HashPassword("hunter2")
	require.NoError(t, err)

	service := NewService(config.AuthConfig{
		Enabled:        true,
		AccessTokenTTL: time.Hour,
		Users: []config.UserConfig{
			{Username: "admin", PasswordHash: hash, Role: "admin"},
		},
	}, zap.NewNop())

	token, err := service.Login("admin", "hunter2")
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)

	_, err = service.Login("admin", "wrong")
	assert.Error(t, err)

	_, err = service.Login("nobody", "hunter2")
	assert.Error(t, err)
}

func TestService_DisabledByDefault(t *testing.T) {
	service := NewService(config.AuthConfig{AccessTokenTTL: time.Hour}, zap.NewNop())
	assert.False(t, service.Enabled())
}
