package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/distio/internal/ipc"
	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/wire"
)

// defaultCloseTimeout is the bound close() waits for an EXIT reply before
// giving up and killing the child outright.
const defaultCloseTimeout = 10 * time.Second

// LocalHandle is the controller-side object representing one forked child
// process. It owns the child's stdio pipes and is the only writer to them.
type LocalHandle struct {
	id    uint64
	alias string
	group string
	path  string

	handleState
	sent     atomic.Uint64
	received atomic.Uint64

	defaultTimeout time.Duration
	catchAll       *bool

	cmd  *exec.Cmd
	conn ipc.Conn

	dispatcher *Dispatcher
	registry   *Registry

	log *slog.Logger

	closeTimeout time.Duration
	closeOnce    sync.Once
	closeFuture  *Future[bool]

	readyFuture *Future[bool]

	onStderr            func([]byte)
	onUncaughtException func(wire.ResponseError)

	spawnErr error
}

// LocalHandleOption configures a LocalHandle built with Spawn.
type LocalHandleOption func(*LocalHandle)

// WithGroup sets the handle's group; default "global".
func WithGroup(group string) LocalHandleOption {
	return func(h *LocalHandle) { h.group = group }
}

// WithHandleTimeout sets the handle-scope default request TTL.
func WithHandleTimeout(d time.Duration) LocalHandleOption {
	return func(h *LocalHandle) { h.defaultTimeout = d }
}

// WithHandleCatchAll overrides the controller-scope catchAll default for
// every request issued through this handle.
func WithHandleCatchAll(catchAll bool) LocalHandleOption {
	return func(h *LocalHandle) { h.catchAll = &catchAll }
}

// WithCloseTimeout overrides the default 10s bound close() waits for an
// EXIT reply.
func WithCloseTimeout(d time.Duration) LocalHandleOption {
	return func(h *LocalHandle) { h.closeTimeout = d }
}

// WithHandleLogger attaches a logger. Defaults to a discard logger.
func WithHandleLogger(log *slog.Logger) LocalHandleOption {
	return func(h *LocalHandle) { h.log = log }
}

// WithStderr registers a callback fed the child's stderr bytes. The child's
// stdout is reserved for the frame protocol and is not available as a
// passthrough stream.
func WithStderr(fn func([]byte)) LocalHandleOption {
	return func(h *LocalHandle) { h.onStderr = fn }
}

// WithUncaughtException registers a callback for exception frames the
// worker reports out-of-band, not tied to any pending rid.
func WithUncaughtException(fn func(wire.ResponseError)) LocalHandleOption {
	return func(h *LocalHandle) { h.onUncaughtException = fn }
}

// Spawn forks scriptPath as a child process with argv
// "<userArgs...> --slave-id=<id> --slave-alias=<alias> [--slave-title=<title>]",
// wires its stdio, and starts the handle's reader loop.
//
// On exec failure the returned handle is non-nil but in HandleSpawnFailed;
// every operation on it fails with ErrSpawnFailed. Callers distinguish this
// from a transport error by checking h.State().
func Spawn(ctx context.Context, id uint64, alias, title, scriptPath string, userArgs []string, dispatcher *Dispatcher, registry *Registry, opts ...LocalHandleOption) *LocalHandle {
	h := &LocalHandle{
		id:           id,
		alias:        alias,
		group:        "global",
		path:         scriptPath,
		dispatcher:   dispatcher,
		registry:     registry,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		closeTimeout: defaultCloseTimeout,
		closeFuture:  NewFuture[bool](),
		readyFuture:  NewFuture[bool](),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.store(HandleSpawning)

	argv := append([]string{}, userArgs...)
	argv = append(argv, fmt.Sprintf("--slave-id=%d", id), fmt.Sprintf("--slave-alias=%s", alias))
	if title != "" {
		argv = append(argv, fmt.Sprintf("--slave-title=%s", title))
	}

	cmd := exec.CommandContext(ctx, scriptPath, argv...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.failSpawn(err)
		return h
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.failSpawn(err)
		return h
	}

	var stderrBuf io.Writer = io.Discard
	if h.onStderr != nil {
		stderrBuf = stderrWriter{fn: h.onStderr}
	}
	cmd.Stderr = stderrBuf

	if err := cmd.Start(); err != nil {
		h.failSpawn(err)
		return h
	}

	h.cmd = cmd
	h.conn = ipc.NewPipeConn(stdout, stdin, stdin)
	h.store(HandleReady)
	h.readyFuture.Resolve(true)

	go h.readLoop()
	go h.reapOnExit()

	return h
}

type stderrWriter struct{ fn func([]byte) }

func (w stderrWriter) Write(p []byte) (int, error) {
	cp := bytes.Clone(p)
	w.fn(cp)
	return len(p), nil
}

func (h *LocalHandle) failSpawn(err error) {
	h.spawnErr = err
	h.store(HandleSpawnFailed)
	h.readyFuture.Reject(fmt.Errorf("%w: %v", ErrSpawnFailed, err))
	h.closeFuture.Resolve(true)
}

// ID, Alias, Group, Path, State, Sent, Received implement Handle.
func (h *LocalHandle) ID() uint64         { return h.id }
func (h *LocalHandle) Alias() string      { return h.alias }
func (h *LocalHandle) Group() string      { return h.group }
func (h *LocalHandle) Path() string       { return h.path }
func (h *LocalHandle) State() HandleState { return h.load() }
func (h *LocalHandle) Sent() uint64       { return h.sent.Load() }
func (h *LocalHandle) Received() uint64   { return h.received.Load() }

// DefaultTimeout implements Handle.
func (h *LocalHandle) DefaultTimeout() (time.Duration, bool) {
	return h.defaultTimeout, h.defaultTimeout > 0
}

// Ready resolves once the spawn attempt has concluded, successfully or not.
func (h *LocalHandle) Ready() *Future[bool] { return h.readyFuture }

// Then lets a caller await spawn completion uniformly with Close: fn is
// invoked once Ready resolves or rejects.
func (h *LocalHandle) Then(fn func(err error)) {
	go func() {
		_, err := h.readyFuture.Await(context.Background())
		fn(err)
	}()
}

// String renders the contract form used in logs and tests.
func (h *LocalHandle) String() string { return FormatHandle(h) }

// refusesSend reports whether the handle's current state rejects new
// outbound requests.
func (h *LocalHandle) refusesSend() bool {
	switch h.load() {
	case HandleClosing, HandleClosed, HandleExited, HandleSpawnFailed:
		return true
	default:
		return false
	}
}

// Deliver implements Handle: it writes req to the child's stdin and
// increments Sent. Callers refuse to reach here if the handle is closed;
// Deliver itself re-checks state for safety against races with Close/Kill.
// The one request let through while closing is the EXIT that Close sends.
func (h *LocalHandle) Deliver(req wire.Request) error {
	if h.refusesSend() && !(req.Command == wire.CommandExit && h.load() == HandleClosing) {
		return ErrClosed
	}
	if err := h.conn.WriteFrame(req.ToFrame()); err != nil {
		return err
	}
	h.sent.Add(1)
	return nil
}

// Exec dispatches command with data and meta, returning a future for the
// worker's reply.
func (h *LocalHandle) Exec(command string, data any, meta wire.Meta) *Future[wire.Response] {
	if h.refusesSend() {
		f := NewFuture[wire.Response]()
		f.Reject(ErrClosed)
		return f
	}
	return h.dispatcher.Dispatch(h, wire.Command(command), data, meta, h.catchAll)
}

// Ack sends the ACK sentinel and returns its future.
func (h *LocalHandle) Ack() *Future[wire.Response] {
	return h.dispatcher.Dispatch(h, wire.CommandAck, nil, wire.Meta{}, h.catchAll)
}

// Noop sends the NULL sentinel and returns its future.
func (h *LocalHandle) Noop() *Future[wire.Response] {
	return h.dispatcher.Dispatch(h, wire.CommandNull, nil, wire.Meta{}, h.catchAll)
}

// Close sends EXIT, awaits the reply (bounded by the handle's close
// timeout), and tears the handle down. It is idempotent: the second and
// later calls observe and share the first call's future without sending a
// second EXIT.
func (h *LocalHandle) Close() *Future[bool] {
	h.closeOnce.Do(func() {
		if !h.cas(HandleReady, HandleClosing) {
			// Already past ready (spawning/spawn-failed/exited): nothing to
			// gracefully close.
			h.closeFuture.Resolve(true)
			return
		}
		go h.runClose()
	})
	return h.closeFuture
}

func (h *LocalHandle) runClose() {
	ctx, cancel := context.WithTimeout(context.Background(), h.closeTimeout)
	defer cancel()

	future := h.dispatcher.Dispatch(h, wire.CommandExit, nil, wire.Meta{}, h.catchAll)
	_, err := future.Await(ctx)
	if err != nil {
		h.log.Warn("close: EXIT reply not received before timeout, killing", obslog.WorkerID(h.id), obslog.Error(err))
		if h.cmd != nil && h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
		}
	}
	h.teardown()
	h.closeFuture.Resolve(true)
}

// Kill forcefully terminates the child without an EXIT round-trip. Every
// pending request for this handle is completed as Disconnected.
func (h *LocalHandle) Kill(sig string) error {
	h.store(HandleExited)
	h.teardown()
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// teardown removes the handle from the registry, cancels its pending
// requests, and marks it exited. Safe to call more than once.
func (h *LocalHandle) teardown() {
	h.registry.Remove(h, h.path)
	h.dispatcher.CancelForHandle(h.id)
	h.store(HandleExited)
	if h.conn != nil {
		_ = h.conn.Close()
	}
}

func (h *LocalHandle) reapOnExit() {
	if h.cmd == nil {
		return
	}
	_ = h.cmd.Wait()
	if h.load() != HandleExited {
		h.teardown()
	}
}

func (h *LocalHandle) readLoop() {
	for {
		var f wire.InboundFrame
		if err := h.conn.ReadFrame(&f); err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.Debug("read loop ended", obslog.WorkerID(h.id), obslog.Error(err))
			}
			return
		}

		switch {
		case f.IsResponse():
			rf := f.AsResponseFrame()
			secretID, secretNumber := h.dispatcher.Secret()
			if !rf.Verify(secretID, secretNumber) {
				continue
			}
			h.received.Add(1)
			resp := wire.Response{
				RID:          rf.Request.RID,
				FromWorkerID: h.id,
				SentAt:       time.UnixMilli(rf.Sent),
				ReceivedAt:   time.Now(),
				Value:        rf.Data,
				Err:          rf.Err,
				Command:      rf.Request.Command,
			}
			h.dispatcher.Complete(resp)
		case f.IsException():
			if h.onUncaughtException != nil {
				h.onUncaughtException(f.AsExceptionFrame().Err)
			}
		}
	}
}
