package social_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-identity/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedStateManager_RoundTrip(t *testing.T) {
	manager := social.NewSignedStateManager([]byte("state-secret"), time.Minute)

	t.Run("encode and decode", func(t *testing.T) {
		encoded, err := manager.Encode(&social.State{
			Provider:    "google",
			RedirectURL: "/dashboard",
		})
		require.NoError(t, err)
		require.NotEmpty(t, encoded)

		state, err := manager.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, "google", state.Provider)
		assert.Equal(t, "/dashboard", state.RedirectURL)
		assert.NotEmpty(t, state.Nonce)
		assert.Greater(t, state.ExpiresAt, state.IssuedAt)
	})

	t.Run("every encode gets a fresh nonce", func(t *testing.T) {
		first, err := manager.Encode(&social.State{Provider: "google"})
		require.NoError(t, err)
		second, err := manager.Encode(&social.State{Provider: "google"})
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("nil state", func(t *testing.T) {
		_, err := manager.Encode(nil)
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})
}

func TestSignedStateManager_Decode(t *testing.T) {
	manager := social.NewSignedStateManager([]byte("state-secret"), time.Minute)

	t.Run("tampered payload", func(t *testing.T) {
		encoded, err := manager.Encode(&social.State{Provider: "google"})
		require.NoError(t, err)

		_, err = manager.Decode("x" + encoded)
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := social.NewSignedStateManager([]byte("other-secret"), time.Minute)

		encoded, err := other.Encode(&social.State{Provider: "google"})
		require.NoError(t, err)

		_, err = manager.Decode(encoded)
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := manager.Decode("just-a-payload")
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := manager.Decode("")
		assert.ErrorIs(t, err, social.ErrInvalidState)
	})

	t.Run("expired state", func(t *testing.T) {
		encoded, err := manager.Encode(&social.State{
			Provider:  "google",
			ExpiresAt: time.Now().Add(-time.Minute).Unix(),
		})
		require.NoError(t, err)

		_, err = manager.Decode(encoded)
		assert.ErrorIs(t, err, social.ErrStateExpired)
	})
}
