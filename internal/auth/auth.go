// Package auth provides optional player authentication for table connections.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
)

var (
	// ErrInvalidToken indicates the token is missing, malformed, expired or
	// signed with the wrong key.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Identity is the authenticated player behind a connection.
type Identity struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name,omitempty"`
}

// Validator validates authentication tokens.
type Validator interface {
	// Validate checks a token and returns the player identity.
	// Returns:
	//   - (*Identity, nil) if the token is valid
	//   - (nil, ErrInvalidToken) if it is not
	//   - (nil, nil) if auth is disabled (NoopValidator only)
	Validate(ctx context.Context, token string) (*Identity, error)
}

// JWTValidator accepts HS256 tokens whose sub claim is the player id. An
// optional name claim becomes the display name.
type JWTValidator struct {
	ja *jwtauth.JWTAuth
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{ja: jwtauth.New("HS256", []byte(secret), nil)}
}

func (v *JWTValidator) Validate(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	tok, err := jwtauth.VerifyToken(v.ja, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	id := &Identity{PlayerID: tok.Subject()}
	if name, ok := tok.Get("name"); ok {
		id.Name, _ = name.(string)
	}
	return id, nil
}

// Issue signs a token for playerID expiring after ttl. A zero ttl never expires.
func (v *JWTValidator) Issue(playerID, name string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{"sub": playerID}
	if name != "" {
		claims["name"] = name
	}
	if ttl != 0 {
		jwtauth.SetExpiryIn(claims, ttl)
	}
	_, s, err := v.ja.Encode(claims)
	return s, err
}

// NoopValidator allows all connections without validation (dev mode).
type NoopValidator struct{}

func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (v *NoopValidator) Validate(context.Context, string) (*Identity, error) {
	return nil, nil
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter since browsers cannot set headers on a
// websocket handshake.
func TokenFromRequest(r *http.Request) string {
	if tok := jwtauth.TokenFromHeader(r); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}
