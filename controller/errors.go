package controller

import "errors"

// Sentinel errors for the controller and local handle. Names mirror the
// semantic error kinds a handle or dispatch operation can fail with.
var (
	// ErrDuplicateAlias is returned when a spawned handle's alias collides
	// with a live handle already in the registry.
	ErrDuplicateAlias = errors.New("controller: duplicate alias")

	// ErrSpawnFailed marks a handle that failed to start its child process.
	ErrSpawnFailed = errors.New("controller: spawn failed")

	// ErrDisconnected names the disconnect kind. The dispatcher does not
	// return it: a pending request whose handle's transport went away is
	// completed with a Response whose Err.Name is "Disconnected".
	ErrDisconnected = errors.New("controller: disconnected")

	// ErrTimeout names the timeout kind. The dispatcher does not return it:
	// a pending request whose TTL elapsed is completed with a Response whose
	// Err.Name is "Timeout".
	ErrTimeout = errors.New("controller: timeout")

	// ErrClosed is returned by any operation attempted on a handle that has
	// already closed, is closing, or exited.
	ErrClosed = errors.New("controller: closed")
)
