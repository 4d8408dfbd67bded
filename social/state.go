package social

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// StateManager encodes and verifies the OAuth state parameter.
type StateManager interface {
	Encode(state *State) (string, error)
	Decode(token string) (*State, error)
}

// State is the payload carried through the OAuth redirect roundtrip.
type State struct {
	Nonce       string `json:"n"`
	Provider    string `json:"p"`
	RedirectURL string `json:"r,omitempty"`
	IssuedAt    int64  `json:"iat"`
	ExpiresAt   int64  `json:"exp"`
}

// SignedStateManager signs states with HMAC-SHA256. The payload is not
// secret, only tamper-evident.
type SignedStateManager struct {
	key []byte
	ttl time.Duration
}

var _ StateManager = (*SignedStateManager)(nil)

func NewSignedStateManager(key []byte, ttl time.Duration) *SignedStateManager {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &SignedStateManager{
		key: key,
		ttl: ttl,
	}
}

// Encode stamps, signs, and serializes the state.
func (sm *SignedStateManager) Encode(state *State) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := time.Now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		nonce, err := generateNonce()
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate state nonce")
		}
		state.Nonce = nonce
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal state")
	}

	sig := sm.sign(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode verifies the signature and expiry, then unpacks the state.
func (sm *SignedStateManager) Decode(token string) (*State, error) {
	dot := strings.IndexByte(token, '.')
	if dot < 0 {
		return nil, ErrInvalidState
	}

	payload, err := base64.RawURLEncoding.DecodeString(token[:dot])
	if err != nil {
		return nil, ErrInvalidState
	}

	sig, err := base64.RawURLEncoding.DecodeString(token[dot+1:])
	if err != nil {
		return nil, ErrInvalidState
	}

	if !hmac.Equal(sig, sm.sign(payload)) {
		return nil, ErrInvalidState
	}

	state := &State{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, ErrInvalidState
	}

	if state.ExpiresAt > 0 && time.Now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return state, nil
}

func (sm *SignedStateManager) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, sm.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func generateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
