package identity_test

import (
	"context"
	"testing"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestUsersRepository_SelectCriteria(t *testing.T) {
	ctx := context.Background()
	sm, repo, _, mailer := newSessionManager(t)

	verified := registerVerified(t, sm, mailer, "crit@example.com", "secret123")
	_, err := sm.Register(ctx, identity.RegisterInput{Email: "pending@example.com", Password: "secret123"})
	require.NoError(t, err)

	verifiedOnly := func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.is_verified = ?", true)
	}

	t.Run("count honors criteria", func(t *testing.T) {
		total, err := repo.Users().Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		n, err := repo.Users().Count(ctx, verifiedOnly)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("identifier lookup honors criteria", func(t *testing.T) {
		user, err := repo.Users().GetByIdentifier(ctx, "crit@example.com", verifiedOnly)
		require.NoError(t, err)
		assert.Equal(t, verified.ID, user.ID)

		_, err = repo.Users().GetByIdentifier(ctx, "pending@example.com", verifiedOnly)
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})
}
