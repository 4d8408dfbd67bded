package identity

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// MatchRoles reports whether held satisfies required. An empty required
// list always passes; otherwise holding any one of the required roles
// is enough.
func MatchRoles(required, held []RoleName) bool {
	if len(required) == 0 {
		return true
	}

	for _, want := range required {
		for _, have := range held {
			if want == have {
				return true
			}
		}
	}

	return false
}

// RequireRoles returns nil when the user holds at least one of the
// required roles, and a forbidden error naming them otherwise.
func RequireRoles(user *User, required ...RoleName) error {
	if user == nil {
		return ErrUserNotFound
	}

	if MatchRoles(required, user.RoleNames()) {
		return nil
	}

	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}

	return goerrors.New(
		"requires role: "+strings.Join(names, ", "),
		goerrors.CategoryAuth,
	).WithTextCode(TextCodeMissingRole).
		WithCode(goerrors.CodeForbidden)
}
