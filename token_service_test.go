package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_GenerateAndVerify(t *testing.T) {
	service := identity.NewTokenService([]byte("test-key"), time.Hour, "test-issuer", nil, nil)

	t.Run("round trip", func(t *testing.T) {
		token, err := service.Generate("user-123")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := service.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject)
		assert.Equal(t, "test-issuer", claims.Issuer)
		assert.Len(t, claims.ID, 64)
	})

	t.Run("every token gets a fresh jti", func(t *testing.T) {
		first, err := service.Generate("user-123")
		require.NoError(t, err)
		second, err := service.Generate("user-123")
		require.NoError(t, err)

		a, err := service.Decode(first)
		require.NoError(t, err)
		b, err := service.Decode(second)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("wrong key fails verification", func(t *testing.T) {
		other := identity.NewTokenService([]byte("other-key"), time.Hour, "test-issuer", nil, nil)

		token, err := other.Generate("user-123")
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer fails verification", func(t *testing.T) {
		other := identity.NewTokenService([]byte("test-key"), time.Hour, "someone-else", nil, nil)

		token, err := other.Generate("user-123")
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := identity.NewTokenService([]byte("test-key"), -time.Minute, "test-issuer", nil, nil)

		token, err := expired.Generate("user-123")
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.ErrorIs(t, err, identity.ErrTokenExpired)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := service.Verify("not.a.token")
		assert.Error(t, err)
	})

	t.Run("rejects unsigned algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.Verify(token)
		assert.Error(t, err)
	})
}

func TestTokenService_Decode(t *testing.T) {
	service := identity.NewTokenService([]byte("test-key"), -time.Minute, "test-issuer", nil, nil)

	t.Run("decodes without checking expiration", func(t *testing.T) {
		token, err := service.Generate("user-123")
		require.NoError(t, err)

		claims, err := service.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := service.Decode("garbage")
		assert.Error(t, err)
	})
}

func TestTokenService_Blacklist(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked tokens are reported", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		service := identity.NewTokenService([]byte("test-key"), time.Hour, "test-issuer", repo.Blacklist(), nil)

		token, err := service.Generate("user-123")
		require.NoError(t, err)

		revoked, err := service.IsBlacklisted(ctx, token)
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, service.Blacklist(ctx, token))

		revoked, err = service.IsBlacklisted(ctx, token)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("revoking twice is a no-op", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		service := identity.NewTokenService([]byte("test-key"), time.Hour, "test-issuer", repo.Blacklist(), nil)

		token, err := service.Generate("user-123")
		require.NoError(t, err)

		require.NoError(t, service.Blacklist(ctx, token))
		require.NoError(t, service.Blacklist(ctx, token))
	})

	t.Run("no store configured", func(t *testing.T) {
		service := identity.NewTokenService([]byte("test-key"), time.Hour, "test-issuer", nil, nil)

		token, err := service.Generate("user-123")
		require.NoError(t, err)

		assert.Error(t, service.Blacklist(ctx, token))
		_, err = service.IsBlacklisted(ctx, token)
		assert.Error(t, err)
	})
}
