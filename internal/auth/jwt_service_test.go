package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "tuntasinaja",
		AccessTokenTTL: time.Hour,
		Clock:          fixedClock(current),
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-123")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject())
	require.Equal(t, "tuntasinaja", claims.Issuer)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestValidateAcceptsSubjectOnlyTokens(t *testing.T) {
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "secret", Clock: fixedClock(now)})
	require.NoError(t, err)

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-sub",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	})
	signed, err := raw.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(signed)
	require.NoError(t, err)
	require.Equal(t, "user-sub", claims.Subject())
}

func TestValidateAccessTokenRejections(t *testing.T) {
	now := time.Date(2025, 7, 14, 13, 0, 0, 0, time.UTC)

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Issuer: "auth", AccessTokenTTL: time.Minute, Clock: fixedClock(now)})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken("user-123")
	require.NoError(t, err)

	t.Run("signature", func(t *testing.T) {
		verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", Clock: fixedClock(now)})
		require.NoError(t, err)
		_, err = verifier.ValidateAccessToken(token)
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("issuer", func(t *testing.T) {
		verifier, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Issuer: "someone-else", Clock: fixedClock(now)})
		require.NoError(t, err)
		_, err = verifier.ValidateAccessToken(token)
		require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		verifier, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Issuer: "auth", Clock: fixedClock(now.Add(2 * time.Minute))})
		require.NoError(t, err)
		_, err = verifier.ValidateAccessToken(token)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := issuer.ValidateAccessToken("")
		require.Error(t, err)
	})
}
