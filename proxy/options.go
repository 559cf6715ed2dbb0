package proxy

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// BasicAuth is the credential set a proxy checks on every upgrade request
// when configured. Passphrase, if set, switches the wire encoding between
// plain base64 and a PBKDF2-keyed AES-GCM seal (see internal/proxyauth).
type BasicAuth struct {
	User       string
	Pass       string
	Passphrase string
}

// Option configures a Server built with New.
type Option func(*config)

type config struct {
	root                string
	maxConcurrentSlaves int
	killSlavesAfter     time.Duration
	shutdownGrace       time.Duration
	authorizedIPs       []string
	basicAuth           *BasicAuth
	sessionTokenKey     []byte
	sessionTokenTTL     time.Duration
	log                 *slog.Logger
}

// WithScriptRoot sets the directory spawn paths resolve against. Required;
// New returns ErrBadScriptRoot if it does not exist or is not a directory.
func WithScriptRoot(root string) Option {
	return func(c *config) { c.root = root }
}

// WithMaxConcurrentSlaves caps the total number of worker processes this
// proxy will host at once, across every session. Zero (the default) means
// unlimited.
func WithMaxConcurrentSlaves(n int) Option {
	return func(c *config) { c.maxConcurrentSlaves = n }
}

// WithKillSlavesAfter bounds a forked worker's lifetime: the proxy sends it
// SIGTERM once the TTL elapses regardless of activity. Zero (the default)
// disables the TTL.
func WithKillSlavesAfter(d time.Duration) Option {
	return func(c *config) { c.killSlavesAfter = d }
}

// WithShutdownGrace overrides the default 500ms bound on how long Stop waits
// for the HTTP server to shut down after sessions have been torn down.
func WithShutdownGrace(d time.Duration) Option {
	return func(c *config) { c.shutdownGrace = d }
}

// WithAuthorizedIPs sets the regular expressions a connecting peer's
// address must match at least one of. An empty list (the default) admits
// any address.
func WithAuthorizedIPs(patterns []string) Option {
	return func(c *config) { c.authorizedIPs = patterns }
}

// WithBasicAuth requires user/pass credentials, optionally sealed with
// passphrase, on every upgrade request's Authorization header.
func WithBasicAuth(user, pass, passphrase string) Option {
	return func(c *config) { c.basicAuth = &BasicAuth{User: user, Pass: pass, Passphrase: passphrase} }
}

// WithServerLogger attaches a logger. Defaults to a discard logger.
func WithServerLogger(log *slog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithSessionTokenKey sets the HMAC key used to sign the short-lived session
// tokens handed back to controllers after a successful handshake, letting a
// reconnecting remote.Session skip re-presenting basic credentials. Defaults
// to a random per-process key, which means tokens do not survive a proxy
// restart; set this explicitly to share validity across restarts or a
// multi-instance deployment.
func WithSessionTokenKey(key []byte) Option {
	return func(c *config) { c.sessionTokenKey = key }
}

// WithSessionTokenTTL overrides the default 1h lifetime of a session
// resumption token.
func WithSessionTokenTTL(d time.Duration) Option {
	return func(c *config) { c.sessionTokenTTL = d }
}

func (c *config) compileAuthorizedIPs() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(c.authorizedIPs))
	for _, pattern := range c.authorizedIPs {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("proxy: compile authorized ip pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}
