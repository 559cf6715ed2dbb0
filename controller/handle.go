package controller

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/distio/wire"
)

// HandleState is a worker handle's lifecycle state, tracked by the
// controller and consulted by the registry and dispatcher.
type HandleState int32

const (
	HandleCreated HandleState = iota
	HandleSpawning
	HandleReady
	HandleClosing
	HandleClosed
	HandleExited
	HandleSpawnFailed
)

func (s HandleState) String() string {
	switch s {
	case HandleCreated:
		return "created"
	case HandleSpawning:
		return "spawning"
	case HandleReady:
		return "ready"
	case HandleClosing:
		return "closing"
	case HandleClosed:
		return "closed"
	case HandleExited:
		return "exited"
	case HandleSpawnFailed:
		return "spawn-failed"
	default:
		return "unknown"
	}
}

// registered reports whether a handle in this state still belongs in the
// registry's indexes.
func (s HandleState) registered() bool {
	switch s {
	case HandleClosed, HandleExited, HandleSpawnFailed:
		return false
	default:
		return true
	}
}

// Handle is the common interface the dispatcher, registry, and
// orchestration patterns program against; LocalHandle and remote.Handle
// both satisfy it.
type Handle interface {
	ID() uint64
	Alias() string
	Group() string
	Path() string
	State() HandleState
	Sent() uint64
	Received() uint64
	DefaultTimeout() (timeout time.Duration, ok bool)

	// Deliver hands req to the transport. Implementations increment Sent.
	Deliver(req wire.Request) error
}

// handleState is the small atomic-backed state machine embedded in both
// LocalHandle and remote.Handle-equivalent implementations.
type handleState struct {
	v atomic.Int32
}

func (h *handleState) load() HandleState { return HandleState(h.v.Load()) }
func (h *handleState) store(s HandleState) { h.v.Store(int32(s)) }
func (h *handleState) cas(from, to HandleState) bool {
	return h.v.CompareAndSwap(int32(from), int32(to))
}

// FormatHandle renders the contract form: "Slave id=<n>, alias=<a>, sent=<s>, received=<r>".
func FormatHandle(h Handle) string {
	return fmt.Sprintf("Slave id=%d, alias=%s, sent=%d, received=%d", h.ID(), h.Alias(), h.Sent(), h.Received())
}
