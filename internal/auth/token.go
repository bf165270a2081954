// Package auth provides the identity contract the sync engine consumes.
//
// The engine never talks to the identity provider directly; it only needs to
// know whether a session exists, the bearer token to attach to remote calls,
// and the numeric user id baked into that token.
package auth

import (
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider exposes the current session to the sync engine.
// "Authenticated" is a precondition for any remote operation.
type TokenProvider interface {
	// IsAuthenticated reports whether a session token is held.
	IsAuthenticated() bool

	// Token returns the raw bearer token, or "" when signed out.
	Token() string

	// UserID extracts the numeric user id from the held token without a
	// network call. Fails when signed out or the token has no usable claim.
	UserID() (int64, error)
}

// TokenHolder is a TokenProvider over a JWT issued by the remote identity
// provider. The token is NOT validated here; signature verification is the
// server's job. The client only decodes claims to learn who it is.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// NewTokenHolder creates a holder, optionally pre-seeded with a token.
func NewTokenHolder(token string) *TokenHolder {
	return &TokenHolder{token: token}
}

// SetToken installs a new session token.
func (h *TokenHolder) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Clear drops the session token (logout).
func (h *TokenHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = ""
}

// IsAuthenticated implements TokenProvider.
func (h *TokenHolder) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token != ""
}

// Token implements TokenProvider.
func (h *TokenHolder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// UserID implements TokenProvider. The id is read from the "user_id" claim,
// falling back to a numeric "sub".
func (h *TokenHolder) UserID() (int64, error) {
	h.mu.RLock()
	token := h.token
	h.mu.RUnlock()

	if token == "" {
		return 0, fmt.Errorf("not authenticated")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("failed to decode token: %w", err)
	}

	if id, ok := claimInt64(claims["user_id"]); ok {
		return id, nil
	}
	if id, ok := claimInt64(claims["sub"]); ok {
		return id, nil
	}

	return 0, fmt.Errorf("token carries no numeric user id claim")
}

// claimInt64 coerces the JSON representations a user id claim shows up as.
func claimInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case int64:
		return val, true
	case string:
		var id int64
		if _, err := fmt.Sscanf(val, "%d", &id); err == nil {
			return id, true
		}
	}
	return 0, false
}
