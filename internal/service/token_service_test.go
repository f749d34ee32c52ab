package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/models"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func testClaims(role models.UserRole, issuer string, ttl time.Duration) models.JWTClaims {
	now := time.Now()
	return models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		Email:  "exams@school.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"exam-api"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-identity", Audience: []string{"exam-api"}})

	claims, err := svc.ValidateToken(signTestToken(t, "secret", testClaims(models.RoleAdmin, "sma-identity", time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-identity", Audience: []string{"exam-api"}})

	cases := map[string]string{
		"wrong secret": signTestToken(t, "other", testClaims(models.RoleAdmin, "sma-identity", time.Hour)),
		"wrong issuer": signTestToken(t, "secret", testClaims(models.RoleAdmin, "elsewhere", time.Hour)),
		"expired":      signTestToken(t, "secret", testClaims(models.RoleAdmin, "sma-identity", -time.Minute)),
		"missing role": signTestToken(t, "secret", testClaims("", "sma-identity", time.Hour)),
		"not a jwt":    "abc.def",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}

func TestTokenServiceWithoutSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{}).ValidateToken("anything")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
