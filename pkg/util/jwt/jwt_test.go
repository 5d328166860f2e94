package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	Init("test-secret-test-secret-test-secret", 10)

	token, tokenID, err := GenerateAccessToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, tokenID)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, tokenID, claims.TokenID)
	assert.Equal(t, SubjectAccessToken, claims.Subject)
	assert.InDelta(t, (10 * time.Minute).Seconds(), claims.RemainingTTL().Seconds(), 5)
}

func TestParseTokenRejectsWrongSecretAndExpired(t *testing.T) {
	Init("secret-one-secret-one-secret-one", 10)
	token, _, err := GenerateAccessToken(1)
	require.NoError(t, err)

	Init("secret-two-secret-two-secret-two", 10)
	_, err = ParseToken(token)
	assert.Error(t, err)

	Init("secret-two-secret-two-secret-two", -1)
	expired, _, err := GenerateAccessToken(1)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
