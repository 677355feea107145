package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidateTokenAcceptsSignedClaims(t *testing.T) {
	svc := NewTokenService("secret", "contribmint")
	token := signTestToken(t, "secret", models.JWTClaims{
		UserID:         "user-1",
		Role:           models.RoleMaintainer,
		GithubUsername: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "contribmint",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleMaintainer, claims.Role)
	assert.Equal(t, "alice", claims.GithubUsername)
}

func TestValidateTokenDefaultsFromRegisteredClaims(t *testing.T) {
	svc := NewTokenService("secret", "")
	token := signTestToken(t, "secret", models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, models.RoleContributor, claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewTokenService("secret", "contribmint")
	base := jwt.RegisteredClaims{Issuer: "contribmint", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"wrong secret": signTestToken(t, "other", models.JWTClaims{UserID: "u", RegisteredClaims: base}),
		"wrong issuer": signTestToken(t, "secret", models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere"}}),
		"expired":      signTestToken(t, "secret", models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "contribmint", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}),
		"unknown role": signTestToken(t, "secret", models.JWTClaims{UserID: "u", Role: "ROOT", RegisteredClaims: base}),
		"no subject":   signTestToken(t, "secret", models.JWTClaims{RegisteredClaims: base}),
		"not a token":  "abc.def",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
