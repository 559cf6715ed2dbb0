package remote

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// Handle is the controller-side object representing one worker hosted by a
// proxy.Server and reached through a Session's websocket connection. It
// satisfies controller.Handle exactly as LocalHandle does, so orchestration
// patterns and the dispatcher cannot tell the two apart.
type Handle struct {
	id    uint64
	alias string
	group string
	path  string

	state    atomic.Int32
	sent     atomic.Uint64
	received atomic.Uint64

	defaultTimeout time.Duration
	catchAll       *bool

	session *Session

	onStderr            func([]byte)
	onUncaughtException func(wire.ResponseError)
}

func newHandle(id uint64, alias, group, path string, session *Session) *Handle {
	h := &Handle{id: id, alias: alias, group: group, path: path, session: session}
	if group == "" {
		h.group = "global"
	}
	h.setState(controller.HandleSpawning)
	return h
}

func (h *Handle) setState(s controller.HandleState) { h.state.Store(int32(s)) }
func (h *Handle) casState(from, to controller.HandleState) bool {
	return h.state.CompareAndSwap(int32(from), int32(to))
}

// ID, Alias, Group, Path, State, Sent, Received implement controller.Handle.
func (h *Handle) ID() uint64                   { return h.id }
func (h *Handle) Alias() string                { return h.alias }
func (h *Handle) Group() string                { return h.group }
func (h *Handle) Path() string                 { return h.path }
func (h *Handle) State() controller.HandleState { return controller.HandleState(h.state.Load()) }
func (h *Handle) Sent() uint64                  { return h.sent.Load() }
func (h *Handle) Received() uint64              { return h.received.Load() }

// DefaultTimeout implements controller.Handle.
func (h *Handle) DefaultTimeout() (time.Duration, bool) {
	return h.defaultTimeout, h.defaultTimeout > 0
}

// WithRemoteTimeout sets the handle-scope default request TTL.
func (h *Handle) WithRemoteTimeout(d time.Duration) *Handle {
	h.defaultTimeout = d
	return h
}

// WithRemoteCatchAll overrides the controller-scope catchAll default for
// every request issued through this handle.
func (h *Handle) WithRemoteCatchAll(catchAll bool) *Handle {
	h.catchAll = &catchAll
	return h
}

// OnStderr registers a callback fed the child's stderr bytes as relayed by
// the proxy.
func (h *Handle) OnStderr(fn func([]byte)) { h.onStderr = fn }

// OnUncaughtException registers a callback for exception frames the worker
// reports out-of-band, not tied to any pending rid.
func (h *Handle) OnUncaughtException(fn func(wire.ResponseError)) { h.onUncaughtException = fn }

func (h *Handle) refusesSend() bool {
	switch h.State() {
	case controller.HandleClosing, controller.HandleClosed, controller.HandleExited, controller.HandleSpawnFailed:
		return true
	default:
		return false
	}
}

// Deliver implements controller.Handle: it wraps req in a KindMessage
// Envelope and writes it to the session's websocket.
// The one request let through while closing is the EXIT that Close sends.
func (h *Handle) Deliver(req wire.Request) error {
	if h.refusesSend() && !(req.Command == wire.CommandExit && h.State() == controller.HandleClosing) {
		return controller.ErrClosed
	}
	frame := req.ToFrame()
	if err := h.session.deliver(h.id, frame); err != nil {
		return err
	}
	h.sent.Add(1)
	return nil
}

// Exec dispatches command with data and meta, returning a future for the
// worker's reply.
func (h *Handle) Exec(command string, data any, meta wire.Meta) *controller.Future[wire.Response] {
	if h.refusesSend() {
		f := controller.NewFuture[wire.Response]()
		f.Reject(controller.ErrClosed)
		return f
	}
	return h.session.dispatcher.Dispatch(h, wire.Command(command), data, meta, h.catchAll)
}

// Ack sends the ACK sentinel and returns its future.
func (h *Handle) Ack() *controller.Future[wire.Response] {
	return h.session.dispatcher.Dispatch(h, wire.CommandAck, nil, wire.Meta{}, h.catchAll)
}

// Noop sends the NULL sentinel and returns its future.
func (h *Handle) Noop() *controller.Future[wire.Response] {
	return h.session.dispatcher.Dispatch(h, wire.CommandNull, nil, wire.Meta{}, h.catchAll)
}

// Close sends EXIT, awaits the reply bounded by ctx, and tears the handle
// down. Idempotent: calls after the first observe the handle already past
// HandleReady and return immediately.
func (h *Handle) Close(ctx context.Context) error {
	if !h.casState(controller.HandleReady, controller.HandleClosing) {
		return nil
	}
	future := h.session.dispatcher.Dispatch(h, wire.CommandExit, nil, wire.Meta{}, h.catchAll)
	_, err := future.Await(ctx)
	h.teardown()
	return err
}

// Kill asks the proxy to terminate the remote worker's underlying process by
// sending a REMOTE_KILL_<signal> sentinel; the proxy, not this handle, owns
// the process. Every pending request for this handle is completed as
// Disconnected once the proxy confirms the kill.
func (h *Handle) Kill(sig string) error {
	cmd := wire.RemoteKillCommand(sig)
	_ = h.session.dispatcher.Dispatch(h, cmd, nil, wire.Meta{}, h.catchAll)
	return nil
}

// teardown removes the handle from the registry, cancels its pending
// requests via the shared dispatcher, and marks it exited. Safe to call more
// than once.
func (h *Handle) teardown() {
	h.session.registry.Remove(h, h.path)
	h.session.dispatcher.CancelForHandle(h.id)
	h.setState(controller.HandleExited)
}

// String renders the contract form used in logs and tests.
func (h *Handle) String() string { return controller.FormatHandle(h) }
