// Package controller implements the request/response correlation and
// lifecycle engine that runs inside a distio controller process: the
// dispatcher (rid allocation, timeout timers, catchAll policy), the
// registry (worker indexes by id/alias/group/path), and the local worker
// handle that owns a forked child's stdio transport.
//
// Everything here is single-controller scoped: a *Controller value owns its
// own registry and dispatcher, and concurrent access is serialized the way
// the controller's own cooperative scheduling model requires — by a mutex
// inside the dispatcher and registry, never by ad hoc goroutine races.
package controller
