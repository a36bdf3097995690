// ABOUTME: Bearer token verification for authenticating websocket handshakes
// ABOUTME: Chains static, stored, HS256, and structural verifiers

package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Verifier checks a bearer token presented on the websocket handshake.
// Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(token string) error
}

// Static accepts exactly the gateway's locally configured token.
type Static struct {
	token string
}

// NewStatic creates a verifier that matches the given local token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

func (v *Static) Verify(token string) error {
	if v.token == "" || token != v.token {
		return ErrInvalidToken
	}
	return nil
}

// Structural accepts any token with the shape of a JWT: three dot-separated
// base64url segments whose payload carries no "exp" claim or one in the
// future. It performs no signature verification, only shape and expiry;
// deployments that need integrity should configure HMAC instead.
type Structural struct{}

// NewStructural creates the shape-and-expiry verifier.
func NewStructural() *Structural {
	return &Structural{}
}

func (v *Structural) Verify(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Tolerate standard encoding and padded segments from older clients.
		payload, err = base64.StdEncoding.DecodeString(pad(parts[1]))
		if err != nil {
			return fmt.Errorf("%w: decoding payload: %v", ErrInvalidToken, err)
		}
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fmt.Errorf("%w: parsing payload: %v", ErrInvalidToken, err)
	}

	if claims.Exp != 0 && claims.Exp < time.Now().Unix() {
		return ErrExpiredToken
	}
	return nil
}

// pad restores base64 padding stripped from a JWT segment.
func pad(s string) string {
	if m := len(s) % 4; m != 0 {
		return s + strings.Repeat("=", 4-m)
	}
	return s
}

// HMAC verifies HS256-signed JWTs with a shared secret. It is the
// signature-checking substitute for Structural.
type HMAC struct {
	secret []byte
}

// NewHMAC creates a new HS256 verifier with the given secret.
func NewHMAC(secret []byte) *HMAC {
	return &HMAC{secret: secret}
}

func (v *HMAC) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// Generate creates a new HS256 JWT for the given subject with expiration.
func (v *HMAC) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Chain tries each verifier in order and succeeds on the first match.
type Chain struct {
	verifiers []Verifier
}

// NewChain creates a verifier that accepts a token any member accepts.
func NewChain(verifiers ...Verifier) *Chain {
	return &Chain{verifiers: verifiers}
}

func (c *Chain) Verify(token string) error {
	if len(c.verifiers) == 0 {
		return ErrInvalidToken
	}
	var lastErr error
	for _, v := range c.verifiers {
		if err := v.Verify(token); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}
