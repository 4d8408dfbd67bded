package httpapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/httpapi"
)

func TestRequireSession(t *testing.T) {
	t.Run("valid token reaches the handler", func(t *testing.T) {
		f := newFixture(t)
		f.registerVerified(t, "mw@example.com", "secret123")

		pair, err := f.sessions.Login(context.Background(), "mw@example.com", "secret123")
		require.NoError(t, err)

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("GetString", "Authorization", "").Return("Bearer " + pair.AccessToken)

		var stored *identity.User
		ctx.On("Locals", httpapi.UserContextKey, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(1).(*identity.User)
		}).Return(nil)

		called := false
		handler := f.controller.RequireSession()(func(ctx router.Context) error {
			called = true
			return nil
		})

		require.NoError(t, handler(ctx))
		require.True(t, called)
		require.NotNil(t, stored)
		require.Equal(t, "mw@example.com", stored.Email)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		f := newFixture(t)

		var status int
		var payload map[string]any
		ctx := newJSONContext(&status, &payload)
		ctx.On("GetString", "Authorization", "").Return("")

		handler := f.controller.RequireSession()(func(ctx router.Context) error {
			t.Fatal("handler must not run")
			return nil
		})

		require.NoError(t, handler(ctx))
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("revoked session is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.registerVerified(t, "rev@example.com", "secret123")

		pair, err := f.sessions.Login(context.Background(), "rev@example.com", "secret123")
		require.NoError(t, err)
		require.NoError(t, f.sessions.Logout(context.Background(), pair.AccessToken, pair.RefreshToken))

		var status int
		var payload map[string]any
		ctx := newJSONContext(&status, &payload)
		ctx.On("GetString", "Authorization", "").Return("Bearer " + pair.AccessToken)

		handler := f.controller.RequireSession()(func(ctx router.Context) error {
			t.Fatal("handler must not run")
			return nil
		})

		require.NoError(t, handler(ctx))
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, identity.TextCodeTokenRevoked, payload["text_code"])
	})

	t.Run("header without a space after the scheme falls back to the cookie", func(t *testing.T) {
		f := newFixture(t)
		f.registerVerified(t, "glued@example.com", "secret123")

		pair, err := f.sessions.Login(context.Background(), "glued@example.com", "secret123")
		require.NoError(t, err)

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("GetString", "Authorization", "").Return("Bearer" + pair.AccessToken)
		ctx.CookiesM[httpapi.AccessTokenCookie] = pair.AccessToken
		ctx.On("Locals", httpapi.UserContextKey, mock.Anything).Return(nil)

		called := false
		handler := f.controller.RequireSession()(func(ctx router.Context) error {
			called = true
			return nil
		})

		require.NoError(t, handler(ctx))
		require.True(t, called)
	})

	t.Run("token from the session cookie", func(t *testing.T) {
		f := newFixture(t)
		f.registerVerified(t, "cookie@example.com", "secret123")

		pair, err := f.sessions.Login(context.Background(), "cookie@example.com", "secret123")
		require.NoError(t, err)

		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("GetString", "Authorization", "").Return("")
		ctx.CookiesM[httpapi.AccessTokenCookie] = pair.AccessToken
		ctx.On("Locals", httpapi.UserContextKey, mock.Anything).Return(nil)

		called := false
		handler := f.controller.RequireSession()(func(ctx router.Context) error {
			called = true
			return nil
		})

		require.NoError(t, handler(ctx))
		require.True(t, called)
	})
}

func TestRequireRoles(t *testing.T) {
	grantAdmin := func(t *testing.T, f *fixture, user *identity.User) *identity.User {
		t.Helper()
		ctx := context.Background()
		err := f.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			role, err := f.repo.Roles().GetByNameTx(ctx, tx, identity.RoleAdmin)
			if err != nil {
				return err
			}
			return f.repo.Roles().AttachTx(ctx, tx, user.ID, role.ID)
		})
		require.NoError(t, err)

		reloaded, err := f.repo.Users().GetWithRelations(ctx, user.ID)
		require.NoError(t, err)
		return reloaded
	}

	t.Run("holder passes", func(t *testing.T) {
		f := newFixture(t)
		admin := grantAdmin(t, f, f.registerVerified(t, "admin@example.com", "secret123"))

		ctx := router.NewMockContext()
		ctx.LocalsMock[httpapi.UserContextKey] = admin

		called := false
		handler := f.controller.RequireRoles(identity.RoleAdmin)(func(ctx router.Context) error {
			called = true
			return nil
		})

		require.NoError(t, handler(ctx))
		require.True(t, called)
	})

	t.Run("missing role is forbidden", func(t *testing.T) {
		f := newFixture(t)
		plain := f.registerVerified(t, "plain@example.com", "secret123")

		var status int
		var payload map[string]any
		ctx := newJSONContext(&status, &payload)
		ctx.LocalsMock[httpapi.UserContextKey] = plain

		handler := f.controller.RequireRoles(identity.RoleAdmin)(func(ctx router.Context) error {
			t.Fatal("handler must not run")
			return nil
		})

		require.NoError(t, handler(ctx))
		require.Equal(t, http.StatusForbidden, status)
		require.Equal(t, identity.TextCodeMissingRole, payload["text_code"])
	})

	t.Run("no session at all", func(t *testing.T) {
		f := newFixture(t)

		var status int
		var payload map[string]any
		ctx := newJSONContext(&status, &payload)

		handler := f.controller.RequireRoles(identity.RoleAdmin)(func(ctx router.Context) error {
			t.Fatal("handler must not run")
			return nil
		})

		require.NoError(t, handler(ctx))
		require.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestCurrentUser(t *testing.T) {
	user := &identity.User{Username: "someone"}

	ctx := router.NewMockContext()
	ctx.LocalsMock[httpapi.UserContextKey] = user

	got, ok := httpapi.CurrentUser(ctx)
	require.True(t, ok)
	require.Equal(t, user, got)

	empty := router.NewMockContext()
	_, ok = httpapi.CurrentUser(empty)
	require.False(t, ok)
}
