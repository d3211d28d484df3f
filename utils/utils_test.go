package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateAndParseJWT(t *testing.T) {
	secret := []byte("test-secret")

	token, exp, err := GenerateJWT(secret, "user-1", Claims{Email: "a@b.c", Kind: "access"}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseJWT(secret, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, "access", claims.Kind)

	_, err = ParseJWT([]byte("other"), token)
	assert.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	secret := []byte("test-secret")
	token, _, err := GenerateJWT(secret, "user-1", Claims{}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(secret, token)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	token, exp, err := GenerateJWT([]byte("k"), "u", Claims{}, 30*time.Minute)
	require.NoError(t, err)

	got, ok := TokenExpiry(token)
	require.True(t, ok)
	assert.Equal(t, exp.Unix(), got.Unix())

	_, ok = TokenExpiry("not-a-token")
	assert.False(t, ok)
}
