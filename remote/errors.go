package remote

import "errors"

// Sentinel errors for the remote session and handle.
var (
	// ErrDialFailed marks a Session that could not establish or re-establish
	// its websocket connection to the proxy.
	ErrDialFailed = errors.New("remote: dial failed")

	// ErrReconnectExhausted is returned, and used to fail every pending
	// request as Disconnected, once a Session has retried its connection
	// reconnectAttempts times without success.
	ErrReconnectExhausted = errors.New("remote: reconnection attempts exhausted")

	// ErrSessionClosed is returned by any operation attempted on a Session
	// that has already disconnected.
	ErrSessionClosed = errors.New("remote: session closed")

	// ErrSpawnFailed marks an init request the proxy could not satisfy.
	ErrSpawnFailed = errors.New("remote: spawn failed")
)
