package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleName is the name of a role in the fixed role set
type RoleName = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser RoleName = "USER"
	// RoleAdmin grants administrative operations
	RoleAdmin RoleName = "ADMIN"
)

// AllRoles returns the fixed role set in seeding order
func AllRoles() []RoleName {
	return []RoleName{RoleUser, RoleAdmin}
}

// User is the account model
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	GoogleID            *string    `bun:"google_id,unique,nullzero" json:"google_id,omitempty"`
	Username            string     `bun:"username,notnull,unique" json:"username,omitempty"`
	DisplayName         *string    `bun:"display_name,nullzero" json:"display_name,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone               *string    `bun:"phone,nullzero" json:"phone,omitempty"`
	PasswordHash        *string    `bun:"password_hash,nullzero" json:"-"`
	IsVerified          bool       `bun:"is_verified" json:"is_verified"`
	Roles               []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	PictureID           *uuid.UUID `bun:"picture_id,nullzero,type:uuid" json:"-"`
	Picture             *Picture   `bun:"rel:belongs-to,join:picture_id=id" json:"picture,omitempty"`
	VerificationTokenID *uuid.UUID `bun:"verification_token_id,nullzero,type:uuid" json:"-"`
	VerificationToken   *Token     `bun:"rel:belongs-to,join:verification_token_id=id" json:"-"`
	ResetTokenID        *uuid.UUID `bun:"reset_token_id,nullzero,type:uuid" json:"-"`
	ResetToken          *Token     `bun:"rel:belongs-to,join:reset_token_id=id" json:"-"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether the account can authenticate with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsExternal reports whether the account was created through an OAuth provider
func (u *User) IsExternal() bool {
	return u.GoogleID != nil && *u.GoogleID != ""
}

// RoleNames returns the names of the roles held by the user
func (u *User) RoleNames() []RoleName {
	names := make([]RoleName, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// Role is a named capability grouping, many-to-many with users
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          RoleName   `bun:"name,notnull,unique" json:"name,omitempty"`
	Users         []*User    `bun:"m2m:user_roles,join:Role=User" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserRole is the users<->roles join table
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id"`
}

// Token is an ephemeral, store-looked-up token used for email verification
// and password reset. Content is hex of 32 random bytes and doubles as the
// lookup key.
type Token struct {
	bun.BaseModel  `bun:"table:tokens,alias:tok"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Content        string     `bun:"content,notnull,unique" json:"-"`
	ExpirationDate time.Time  `bun:"expiration_date,notnull" json:"expiration_date,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token is past its expiration date
func (t *Token) Expired(now time.Time) bool {
	return t.ExpirationDate.Before(now)
}

// BlacklistEntry marks a signed token's jti as revoked. A matching entry makes
// the bearer token invalid even while its signature and expiry still check out.
type BlacklistEntry struct {
	bun.BaseModel `bun:"table:token_blacklist,alias:tbl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	JTI           string     `bun:"jti,notnull,unique" json:"jti,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Picture is a profile picture stored in the blob store
type Picture struct {
	bun.BaseModel `bun:"table:pictures,alias:pic"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	URL           string     `bun:"url,notnull" json:"url,omitempty"`
	StorageKey    *string    `bun:"storage_key,nullzero" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
