// Package auth provides bearer-credential verification for bylexa-gateway.
//
// # Authentication Methods
//
// A connection presents a bearer token on the websocket handshake
// (Authorization: Bearer <token>). The gateway builds a Chain of
// verifiers from its configuration and accepts the connection if any
// member accepts the token:
//
//   - Static: the token equals the gateway's locally configured token.
//   - Stored (internal/store): the token was issued by this gateway's
//     token CLI and is neither expired nor revoked.
//   - HMAC: the token is an HS256 JWT signed with auth.jwt_secret.
//   - Structural: the token merely has JWT shape with an unexpired
//     payload. No signature verification, so it exists only for
//     compatibility with legacy clients. Disable with
//     auth.allow_structural: false in any deployment that cares about
//     integrity.
//
// The Verifier interface keeps the gateway itself ignorant of which
// check admitted a connection, so stricter implementations can be
// substituted without touching gateway code.
package auth
