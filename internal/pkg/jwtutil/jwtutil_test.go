package jwtutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("s3cret", time.Hour, "batch-client")
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "batch-client", claims.Client)
	assert.Equal(t, "batch-client", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
}

func TestParseToken_Rejects(t *testing.T) {
	token, err := GenerateToken("s3cret", time.Hour, "c")
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("s3cret", "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("s3cret", -time.Minute, "c")
	require.NoError(t, err)
	_, err = ParseToken("s3cret", expired)
	assert.NoError(t, err, "non-positive expiration means no expiry")
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	_, err := GenerateToken("", time.Hour, "c")
	assert.Error(t, err)
}
