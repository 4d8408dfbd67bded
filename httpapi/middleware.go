package httpapi

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	identity "github.com/goliatone/go-identity"
)

const (
	// AccessTokenCookie and RefreshTokenCookie are the session cookie names.
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	// UserContextKey is where the authenticated user lands in request locals.
	UserContextKey = "identity:user"

	authScheme = "Bearer"
)

// CurrentUser returns the authenticated account stored by RequireSession.
func CurrentUser(ctx router.Context) (*identity.User, bool) {
	user, ok := ctx.Locals(UserContextKey).(*identity.User)
	return user, ok
}

// extractAccessToken reads the bearer token from the Authorization header,
// falling back to the session cookie.
func extractAccessToken(ctx router.Context) string {
	header := ctx.GetString("Authorization", "")
	if token, ok := strings.CutPrefix(header, authScheme+" "); ok && token != "" {
		return token
	}
	return ctx.Cookies(AccessTokenCookie)
}

// RequireSession verifies the access token, rejects revoked sessions, loads
// the account, and stores it in request locals.
func (c *Controller) RequireSession() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token := extractAccessToken(ctx)
			if token == "" {
				return c.writeError(ctx, identity.ErrTokenInvalid)
			}

			claims, err := c.AccessTokens.Verify(token)
			if err != nil {
				return c.writeError(ctx, err)
			}

			revoked, err := c.Repo.Blacklist().Exists(ctx.Context(), claims.ID)
			if err != nil {
				return c.writeError(ctx, err)
			}
			if revoked {
				return c.writeError(ctx, identity.ErrTokenRevoked)
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return c.writeError(ctx, identity.ErrTokenInvalid)
			}

			user, err := c.Repo.Users().GetWithRelations(ctx.Context(), userID)
			if err != nil {
				return c.writeError(ctx, identity.ErrTokenInvalid)
			}

			ctx.Locals(UserContextKey, user)
			return next(ctx)
		}
	}
}

// RequireRoles gates a route on the caller holding at least one of the
// given roles. Must run after RequireSession.
func (c *Controller) RequireRoles(required ...identity.RoleName) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, ok := CurrentUser(ctx)
			if !ok {
				return c.writeError(ctx, identity.ErrTokenInvalid)
			}

			if err := identity.RequireRoles(user, required...); err != nil {
				return c.writeError(ctx, err)
			}

			return next(ctx)
		}
	}
}

// requireSelfOrRole allows the account owner or any caller holding the role.
func (c *Controller) requireSelfOrRole(ctx router.Context, identifier string, role identity.RoleName) (*identity.User, error) {
	caller, ok := CurrentUser(ctx)
	if !ok {
		return nil, identity.ErrTokenInvalid
	}

	// routes resolve accounts by id, username, or email, so self has to
	// match on any of the three
	if caller.ID.String() == identifier || caller.Username == identifier || caller.Email == identifier {
		return caller, nil
	}

	if identity.MatchRoles([]identity.RoleName{role}, caller.RoleNames()) {
		return caller, nil
	}

	return nil, goerrors.New("not allowed to manage this account", goerrors.CategoryAuth).
		WithTextCode(identity.TextCodeMissingRole).
		WithCode(goerrors.CodeForbidden)
}
