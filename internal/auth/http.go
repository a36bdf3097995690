// ABOUTME: Bearer token extraction from websocket handshake requests
// ABOUTME: Reads the Authorization header presented at connection establishment

package auth

import (
	"net/http"
	"strings"
)

// BearerToken extracts a bearer token from the request's Authorization
// header. Returns the token and an error message (empty if successful).
func BearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}
