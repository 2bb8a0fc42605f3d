package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/pkg/domerr"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-key", "docextract-test")

	token, err := svc.GenerateToken("reviewer-1", "reviewer@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", claims.ReviewerID)
	assert.Equal(t, "reviewer@example.com", claims.Email)
	assert.Equal(t, "docextract-test", claims.Issuer)
}

func TestValidateRejections(t *testing.T) {
	svc := NewService("test-key", "docextract-test")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateToken("reviewer-1", "", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, domerr.HasCode(err, domerr.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("other-key", "docextract-test")
		token, err := other.GenerateToken("reviewer-1", "", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, domerr.HasCode(err, domerr.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		require.Error(t, err)
		assert.True(t, domerr.HasCode(err, domerr.CodeUnauthorized))
	})
}
