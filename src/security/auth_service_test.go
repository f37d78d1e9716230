package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(testSecret)

	token, err := svc.GenerateAccessToken("42", time.Minute)
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", userID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(testSecret)

	token, err := svc.GenerateRefreshToken("42", time.Hour)
	require.NoError(t, err)

	userID, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", userID)
}

func TestTokenTypeMismatchRejected(t *testing.T) {
	svc := NewAuthService(testSecret)

	access, err := svc.GenerateAccessToken("42", time.Minute)
	require.NoError(t, err)
	refresh, err := svc.GenerateRefreshToken("42", time.Hour)
	require.NoError(t, err)

	// A refresh token must not pass as an access token, nor the reverse.
	_, err = svc.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
	_, err = svc.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewAuthService(testSecret)

	token, err := svc.GenerateAccessToken("42", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	svc := NewAuthService(testSecret)
	other := NewAuthService("another-secret-that-is-also-32-bytes")

	token, err := other.GenerateAccessToken("42", time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := NewAuthService(testSecret)

	_, err := svc.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
