// ABOUTME: Issued-token types and the TokenStore interface
// ABOUTME: Only credentials are persisted; room and event state never is

package store

import (
	"context"
	"errors"
	"time"
)

// Token errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrTokenExpired  = errors.New("token expired")
)

// IssuedToken describes a bearer token issued by this gateway.
// The plaintext is returned exactly once at creation; only its
// SHA-256 hash is stored.
type IssuedToken struct {
	ID        string
	Label     string
	CreatedAt time.Time
	ExpiresAt *time.Time
	RevokedAt *time.Time
}

// TokenStore persists issued bearer tokens.
type TokenStore interface {
	// CreateToken issues a new token with the given label. A zero ttl
	// means the token never expires. Returns the token record and the
	// plaintext token.
	CreateToken(ctx context.Context, label string, ttl time.Duration) (*IssuedToken, string, error)

	// ListTokens returns all issued tokens, newest first.
	ListTokens(ctx context.Context) ([]*IssuedToken, error)

	// RevokeToken marks a token as revoked by ID.
	RevokeToken(ctx context.Context, id string) error

	// Verify reports whether the plaintext token is live (issued, not
	// expired, not revoked). Satisfies the auth.Verifier interface.
	Verify(token string) error

	Close() error
}
