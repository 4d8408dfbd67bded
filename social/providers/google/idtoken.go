package google

import (
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-identity/social"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// IDTokenClaims is the subset of Google ID token claims the sign-in flow
// reads.
type IDTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// IDTokenVerifier validates Google ID tokens against Google's published
// JWKS, with background key refresh.
type IDTokenVerifier struct {
	jwks     *keyfunc.JWKS
	audience string
}

// NewIDTokenVerifier fetches the Google JWKS and keeps it refreshed. The
// audience is the OAuth client ID the tokens must be minted for.
func NewIDTokenVerifier(audience string) (*IDTokenVerifier, error) {
	jwks, err := keyfunc.Get(googleJWKSURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to refresh google JWKS: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}

	return &IDTokenVerifier{
		jwks:     jwks,
		audience: audience,
	}, nil
}

// Verify checks the token signature, issuer, audience, and expiry, and
// returns a normalized profile.
func (v *IDTokenVerifier) Verify(idToken string) (*social.Profile, error) {
	claims := &IDTokenClaims{}

	token, err := jwt.ParseWithClaims(idToken, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, social.ErrIDTokenInvalid
	}

	issuerOK := false
	for _, iss := range googleIssuers {
		if claims.Issuer == iss {
			issuerOK = true
			break
		}
	}
	if !issuerOK {
		return nil, social.ErrIDTokenInvalid
	}

	if claims.Email == "" {
		return nil, social.ErrEmailMissing
	}

	return &social.Profile{
		ProviderUserID: claims.Subject,
		Provider:       "google",
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
		Name:           claims.Name,
		AvatarURL:      claims.Picture,
	}, nil
}

// Close stops the background JWKS refresh.
func (v *IDTokenVerifier) Close() {
	v.jwks.EndBackground()
}
