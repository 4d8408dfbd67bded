package identity_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRoles(t *testing.T) {
	tests := []struct {
		name     string
		required []identity.RoleName
		held     []identity.RoleName
		want     bool
	}{
		{
			name:     "no requirement passes",
			required: nil,
			held:     nil,
			want:     true,
		},
		{
			name:     "holding the required role",
			required: []identity.RoleName{identity.RoleAdmin},
			held:     []identity.RoleName{identity.RoleUser, identity.RoleAdmin},
			want:     true,
		},
		{
			name:     "any one of several is enough",
			required: []identity.RoleName{identity.RoleAdmin, identity.RoleUser},
			held:     []identity.RoleName{identity.RoleUser},
			want:     true,
		},
		{
			name:     "missing role",
			required: []identity.RoleName{identity.RoleAdmin},
			held:     []identity.RoleName{identity.RoleUser},
			want:     false,
		},
		{
			name:     "no roles held",
			required: []identity.RoleName{identity.RoleAdmin},
			held:     nil,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.MatchRoles(tt.required, tt.held))
		})
	}
}

func TestRequireRoles(t *testing.T) {
	admin := &identity.User{Roles: []*identity.Role{{Name: identity.RoleAdmin}}}
	plain := &identity.User{Roles: []*identity.Role{{Name: identity.RoleUser}}}

	t.Run("nil user", func(t *testing.T) {
		err := identity.RequireRoles(nil, identity.RoleAdmin)
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})

	t.Run("holder passes", func(t *testing.T) {
		assert.NoError(t, identity.RequireRoles(admin, identity.RoleAdmin))
	})

	t.Run("missing role is forbidden", func(t *testing.T) {
		err := identity.RequireRoles(plain, identity.RoleAdmin)
		require.Error(t, err)

		var richErr *goerrors.Error
		require.ErrorAs(t, err, &richErr)
		assert.Equal(t, goerrors.CodeForbidden, richErr.Code)
		assert.Equal(t, identity.TextCodeMissingRole, richErr.TextCode)
		assert.Contains(t, richErr.Message, string(identity.RoleAdmin))
	})
}
