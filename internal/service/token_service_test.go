package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/diploma-checker-api/internal/models"
	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "diploma-checker"})
	raw := signToken(t, "secret", &models.JWTClaims{
		Username: "alice",
		Role:     models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "diploma-checker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Actor())
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "diploma-checker"})
	expired := signToken(t, "secret", &models.JWTClaims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "diploma-checker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	wrongSecret := signToken(t, "other", &models.JWTClaims{Username: "alice", RegisteredClaims: jwt.RegisteredClaims{Issuer: "diploma-checker"}})
	wrongIssuer := signToken(t, "secret", &models.JWTClaims{Username: "alice", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere"}})
	noUser := signToken(t, "secret", &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "diploma-checker"}})

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"no username":  noUser,
	} {
		_, err := svc.ValidateToken(raw)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), name)
	}
}

func TestClaimsActorFallsBackToUnknown(t *testing.T) {
	var claims *models.JWTClaims
	assert.Equal(t, models.AnonymousActor, claims.Actor())
	assert.Equal(t, "unknown", (&models.JWTClaims{}).Actor())
}
