// Package social implements OAuth sign-in against external identity
// providers. Providers normalize their userinfo responses into Profile;
// the state manager protects the redirect roundtrip.
package social

import (
	"context"
	"time"
)

// Provider is an OAuth2 identity provider.
type Provider interface {
	// Name returns the provider identifier, e.g. "google".
	Name() string

	// AuthCodeURL returns the URL users are redirected to for consent.
	// The state value rides along for CSRF protection.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*Token, error)

	// UserInfo fetches the user's profile with the access token.
	UserInfo(ctx context.Context, token *Token) (*Profile, error)
}

// Token is a provider token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}

// Profile is the normalized identity a provider reports.
type Profile struct {
	ProviderUserID string
	Provider       string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}
