// Package proxyauth implements the credential encoding a remote controller
// and a proxy server share on the connection's authorization header: plain
// base64 "user:pass" when no passphrase is configured, or an
// AES-256-GCM-sealed token keyed by a PBKDF2-derived key from the
// passphrase when one is.
package proxyauth
