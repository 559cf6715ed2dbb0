// Package sessionauth issues and verifies the short-lived session token a
// proxy hands a remote controller after a successful init handshake, so a
// reconnecting controller can resume without re-presenting basic
// credentials. Tokens are signed HMAC-SHA256 JWTs.
package sessionauth
