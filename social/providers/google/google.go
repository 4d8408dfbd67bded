// Package google implements social.Provider for Google OAuth2 sign-in.
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/goliatone/go-identity/social"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Config holds Google OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// UserInfoURL overrides the userinfo endpoint, test use mostly.
	UserInfoURL string

	// Verifier, when set, lets UserInfo validate the ID token locally
	// instead of calling the userinfo endpoint.
	Verifier *IDTokenVerifier
}

// DefaultScopes returns the default Google scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements social.Provider for Google.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	verifier    *IDTokenVerifier
}

var _ social.Provider = (*Provider)(nil)

// New creates a new Google provider.
func New(cfg Config) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
		verifier:    cfg.Verifier,
	}
}

func (p *Provider) Name() string {
	return "google"
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *Provider) Exchange(ctx context.Context, code string) (*social.Token, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, social.ErrTokenExchangeFailed
	}

	idToken, _ := tok.Extra("id_token").(string)

	return &social.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

// UserInfo queries the userinfo endpoint and normalizes the response.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if token == nil {
		return nil, social.ErrUserInfoFailed
	}

	if p.verifier != nil && token.IDToken != "" {
		return p.verifier.Verify(token.IDToken)
	}

	if token.AccessToken == "" {
		return nil, social.ErrUserInfoFailed
	}

	client := p.oauth.Client(ctx, &oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.ExpiresAt,
	})
	client.Timeout = 10 * time.Second

	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, social.ErrUserInfoFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, social.ErrUserInfoFailed
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, social.ErrUserInfoFailed
	}

	if info.Email == "" {
		return nil, social.ErrEmailMissing
	}

	return &social.Profile{
		ProviderUserID: info.Sub,
		Provider:       p.Name(),
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           info.Name,
		AvatarURL:      info.Picture,
	}, nil
}

// userInfoResponse is the OIDC userinfo payload shape.
type userInfoResponse struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}
