package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{Secret: testSecret, TokenDuration: time.Hour})
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService(JWTConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)

	svc, err := NewJWTService(JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, svc.TokenDuration())
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.IssueToken("  auditor ")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "auditor", tok.Subject)
	assert.Equal(t, int64(3600), tok.ExpiresIn)

	claims, err := svc.ValidateAccessToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "auditor", claims.Subject)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestIssueRequiresSubject(t *testing.T) {
	_, err := newTestService(t).IssueToken(" ")
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidateRejects(t *testing.T) {
	svc := newTestService(t)

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("OtherSecret", func(t *testing.T) {
		other, err := NewJWTService(JWTConfig{Secret: strings.Repeat("x", 40)})
		require.NoError(t, err)
		tok, err := other.IssueToken("auditor")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(tok.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		past, err := NewJWTService(JWTConfig{Secret: testSecret, TokenDuration: time.Minute})
		require.NoError(t, err)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, err := past.IssueToken("auditor")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(tok.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongTokenType", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    DefaultIssuer,
				Subject:   "auditor",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			TokenType: "refresh",
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(signed)
		assert.ErrorIs(t, err, ErrInvalidTokenType)
	})
}
