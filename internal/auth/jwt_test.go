package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-secret-key-for-testing", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "chatapp", claims.Issuer)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := m.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestTokenTypes_NotInterchangeable(t *testing.T) {
	m := newTestManager()

	access, err := m.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)
	refresh, err := m.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	_, err = m.ValidateRefreshToken(access)
	assert.Error(t, err)
	_, err = m.ValidateAccessToken(refresh)
	assert.Error(t, err)
}

func TestValidate_WrongSecret(t *testing.T) {
	m := newTestManager()
	other := NewJWTManager("a-completely-different-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := m.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidate_ExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret-key-for-testing", -time.Minute, -time.Minute)

	token, err := m.GenerateAccessToken("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	m := newTestManager()

	_, err := m.ValidateAccessToken("not-a-jwt")
	assert.Error(t, err)
	_, err = m.ValidateRefreshToken("")
	assert.Error(t, err)
}
