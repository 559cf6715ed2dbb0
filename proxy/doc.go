// Package proxy implements the long-running server a remote controller
// dials into: it authenticates the upgrade request, then forks local
// worker processes on the connecting controller's behalf and relays the
// same wire frames a local controller would exchange with its own
// children, multiplexed as remote.Envelope values over one websocket per
// session.
package proxy
