package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "marketplace"})

	token, err := svc.IssueToken("user-1", models.RolePsychologist, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RolePsychologist, claims.Role)
}

func TestAuthServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other"})
	token, err := issuer.IssueToken("user-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	_, err = NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"}).ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	token, err := svc.IssueToken("user-1", models.RoleAdmin, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceNormalisesRoleAndSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  "42",
		"role": "psychologist",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	parsed, err := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"}).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", parsed.UserID)
	assert.Equal(t, models.RolePsychologist, parsed.Role)
}

func TestAuthServiceRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"}).ValidateToken(token)
	assert.Error(t, err)
}
