package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// tokenEntropyBytes is the number of random bytes behind every jti and every
// ephemeral token content. Hex encoded, so the wire form is twice as long.
const tokenEntropyBytes = 32

// TokenClaims is the payload carried by signed bearer tokens: subject,
// issued-at, expiration, and a per-signing-call unique jti.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenService mints and validates one class of signed bearer token. Access
// and refresh tokens use two instances with independent secrets and TTLs.
type TokenService interface {
	// Generate signs a token whose only meaningful claim is subject=userID.
	// The jti is freshly randomized on every call.
	Generate(userID string) (string, error)
	// Verify checks signature and expiration. It fails closed: no claims are
	// ever returned for invalid or expired input.
	Verify(tokenString string) (*TokenClaims, error)
	// Decode parses without verification. Used only where the caller already
	// trusts the token's origin or wants the jti of a possibly expired token
	// for revocation bookkeeping.
	Decode(tokenString string) (*TokenClaims, error)
	// Blacklist decodes the token and persists its jti so the token is
	// rejected from now on, whatever its signature says.
	Blacklist(ctx context.Context, tokenString string) error
	// IsBlacklisted reports whether the token's jti has been revoked.
	IsBlacklisted(ctx context.Context, tokenString string) (bool, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	blacklist  Blacklist
	logger     Logger
}

// NewTokenService creates a new TokenService instance. blacklist may be nil
// for purely stateless verification, in which case Blacklist/IsBlacklisted
// report an operation error.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, blacklist Blacklist, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		blacklist:  blacklist,
		logger:     logger,
	}
}

func (ts *TokenServiceImpl) Generate(userID string) (string, error) {
	jti, err := randomHex(tokenEntropyBytes)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token id")
	}

	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    ts.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

func (ts *TokenServiceImpl) Verify(tokenString string) (*TokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims")
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (ts *TokenServiceImpl) Decode(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, goerrors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}
	return claims, nil
}

func (ts *TokenServiceImpl) Blacklist(ctx context.Context, tokenString string) error {
	if ts.blacklist == nil {
		return goerrors.New("token service has no blacklist store", goerrors.CategoryOperation)
	}

	claims, err := ts.Decode(tokenString)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(ts.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return ts.blacklist.Add(ctx, claims.ID, expiresAt)
}

func (ts *TokenServiceImpl) IsBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	if ts.blacklist == nil {
		return false, goerrors.New("token service has no blacklist store", goerrors.CategoryOperation)
	}

	claims, err := ts.Decode(tokenString)
	if err != nil {
		return false, err
	}

	return ts.blacklist.Exists(ctx, claims.ID)
}

// randomHex returns n random bytes hex encoded. Used for jti claims and for
// ephemeral token content; both must be unguessable.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
