package proxy

import "errors"

var (
	// ErrUnauthorized is returned by the server's authorization check when
	// the peer fails the IP whitelist or basic-auth check; the upgrade
	// handler then answers 401 Unauthorized. No worker is spawned.
	ErrUnauthorized = errors.New("proxy: unauthorized")

	// ErrCapacityExceeded marks an init request that would push the
	// server past maxConcurrentSlaves; the caller must queue client-side.
	ErrCapacityExceeded = errors.New("proxy: concurrent slave capacity exceeded")

	// ErrBadScriptRoot is returned by NewServer when the configured root
	// does not exist or is not a directory.
	ErrBadScriptRoot = errors.New("proxy: script root is not a directory")

	// ErrServerAlreadyRunning is returned by Start on a Server already
	// listening.
	ErrServerAlreadyRunning = errors.New("proxy: server already running")

	// ErrNotRunning is returned by Stop on a Server that was never
	// started or has already stopped.
	ErrNotRunning = errors.New("proxy: server not running")
)

// RemoteSlaveError is the frame a session sends back for a malformed
// request it could not route: an unknown worker id or a frame missing a
// required field. The session itself is left open.
type RemoteSlaveError struct {
	WorkerID uint64
	Reason   string
}

func (e *RemoteSlaveError) Error() string {
	return "proxy: remote slave error: " + e.Reason
}
