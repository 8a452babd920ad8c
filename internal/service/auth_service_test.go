package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/model/dto"
	"github.com/qs3c/clone_gen_server/internal/pkg/jwt"
)

func setupAuthService(t *testing.T, password string) *AuthService {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			AdminUsername:     "admin",
			AdminPasswordHash: string(hash),
		},
		JWT: config.JWTConfig{
			Secret:      "test-secret",
			ExpireHours: 24,
		},
	}

	return NewAuthService(cfg)
}

func TestAuthService_Login(t *testing.T) {
	svc := setupAuthService(t, "correct-password")

	resp, err := svc.Login(&dto.LoginRequest{Username: "admin", Password: "correct-password"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 24*3600, resp.ExpiresIn)

	claims, err := jwt.ParseToken(resp.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc := setupAuthService(t, "correct-password")

	_, err := svc.Login(&dto.LoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_WrongUsername(t *testing.T) {
	svc := setupAuthService(t, "correct-password")

	_, err := svc.Login(&dto.LoginRequest{Username: "root", Password: "correct-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_NotConfigured(t *testing.T) {
	svc := NewAuthService(&config.Config{})

	_, err := svc.Login(&dto.LoginRequest{Username: "admin", Password: "x"})
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
}
