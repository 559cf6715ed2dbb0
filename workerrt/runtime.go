package workerrt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/distio/internal/ipc"
	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/wire"
)

// Runtime is the single-child-process task registry and dispatch loop. The
// zero value is not usable; construct one with New.
type Runtime struct {
	workerID uint64
	alias    string
	title    string

	log *slog.Logger

	mu       sync.RWMutex
	handlers map[wire.Command]HandlerFunc
	started  bool

	stateVal atomic.Int32

	startedAt time.Time
	received  atomic.Uint64
	responded atomic.Uint64
}

// Option configures a Runtime built with New.
type Option func(*Runtime)

// WithLogger attaches a logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// New builds a Runtime identifying itself with the given worker id, alias,
// and optional title (normally parsed from this process's own argv by
// ParseSelfArgs).
func New(workerID uint64, alias, title string, opts ...Option) *Runtime {
	r := &Runtime{
		workerID: workerID,
		alias:    alias,
		title:    title,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		handlers: make(map[wire.Command]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.stateVal.Store(int32(StateRunning))
	return r
}

// Register binds name to fn. It fails with ErrDuplicateTask if name is
// already registered or collides with a reserved sentinel command, and with
// ErrAlreadyRunning once Run has started.
func (r *Runtime) Register(name string, fn HandlerFunc) error {
	cmd := wire.Command(name)
	if wire.IsSentinel(cmd) {
		return fmt.Errorf("%w: %q is a reserved sentinel command", ErrDuplicateTask, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyRunning
	}
	if _, exists := r.handlers[cmd]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, name)
	}
	r.handlers[cmd] = fn
	return nil
}

// State reports the runtime's current dispatch state.
func (r *Runtime) State() State {
	return State(r.stateVal.Load())
}

// Pause moves the runtime to StatePaused: every inbound message receives an
// immediate NotAcceptingMessages error without reaching a handler.
func (r *Runtime) Pause() {
	r.stateVal.CompareAndSwap(int32(StateRunning), int32(StatePaused))
}

// Resume moves the runtime back to StateRunning from StatePaused.
func (r *Runtime) Resume() {
	r.stateVal.CompareAndSwap(int32(StatePaused), int32(StateRunning))
}

// Received returns the number of requests this runtime has accepted for
// dispatch, whether or not a response has been sent yet.
func (r *Runtime) Received() uint64 { return r.received.Load() }

// Responded returns the number of responses this runtime has sent.
func (r *Runtime) Responded() uint64 { return r.responded.Load() }

// Run starts the dispatch loop over conn and blocks until EXIT is handled,
// conn is closed by the peer, ctx is canceled, or a transport error occurs.
func (r *Runtime) Run(ctx context.Context, conn ipc.Conn) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("workerrt: Run called twice")
	}
	r.started = true
	r.startedAt = time.Now()
	r.mu.Unlock()

	type readResult struct {
		frame wire.RequestFrame
		err   error
	}
	frames := make(chan readResult)

	go func() {
		defer close(frames)
		for {
			var f wire.RequestFrame
			err := conn.ReadFrame(&f)
			select {
			case frames <- readResult{frame: f, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-frames:
			if !ok {
				return nil
			}
			if res.err != nil {
				return res.err
			}
			if r.State() == StateDetaching {
				continue
			}
			if r.handleFrame(ctx, conn, res.frame) {
				return nil
			}
		}
	}
}

// handleFrame dispatches a single inbound frame. It returns true when the
// runtime has entered StateDetaching and Run should stop.
func (r *Runtime) handleFrame(ctx context.Context, conn ipc.Conn, f wire.RequestFrame) (done bool) {
	if !f.Valid() {
		return false
	}
	r.received.Add(1)
	req := wire.FromFrame(f)

	defer func() {
		if rec := recover(); rec != nil {
			r.reportException(conn, fmt.Errorf("panic in task %q: %v", req.Command, rec))
		}
	}()

	if r.State() == StatePaused {
		r.respondError(conn, f, &wire.ResponseError{
			Name:    wire.ErrNameNotAccepting,
			Message: fmt.Sprintf("Slave #%d is not accepting messages", r.workerID),
		})
		return false
	}

	if wire.IsSentinel(req.Command) {
		return r.dispatchSentinel(conn, f, req)
	}

	r.mu.RLock()
	fn, ok := r.handlers[req.Command]
	r.mu.RUnlock()
	if !ok {
		r.respondError(conn, f, &wire.ResponseError{
			Name:    wire.ErrNameReference,
			Message: fmt.Sprintf("Slave #%d does not listen to task %q", r.workerID, req.Command),
		})
		return false
	}

	fn(req.Data, r.completer(conn, f), req.Meta, req)
	return false
}

func (r *Runtime) dispatchSentinel(conn ipc.Conn, f wire.RequestFrame, req wire.Request) (done bool) {
	switch req.Command {
	case wire.CommandAck:
		r.respondValue(conn, f, map[string]any{
			"message": fmt.Sprintf(
				"Slave acknowledgement from=%d, received=%d, responded=%d, started=%d, uptime=%d",
				r.workerID, r.received.Load(), r.responded.Load(), r.startedAt.UnixMilli(),
				time.Since(r.startedAt).Milliseconds(),
			),
		})
		return false
	case wire.CommandNull:
		r.respondValue(conn, f, nil)
		return false
	case wire.CommandExit:
		r.stateVal.Store(int32(StateDetaching))
		r.respondValue(conn, f, true)
		return true
	}
	if sig, ok := wire.SignalFromRemoteKill(req.Command); ok {
		r.log.Info("received remote kill sentinel on local transport, ignoring",
			obslog.WorkerID(r.workerID), slog.String("signal", sig))
		r.respondValue(conn, f, true)
		return false
	}
	return false
}

func (r *Runtime) completer(conn ipc.Conn, f wire.RequestFrame) CompleteFunc {
	var once sync.Once
	return func(result any) {
		once.Do(func() {
			if err, ok := result.(error); ok {
				r.respondError(conn, f, &wire.ResponseError{Name: wire.ErrNameWorker, Message: err.Error()})
				return
			}
			r.respondValue(conn, f, result)
		})
	}
}

func (r *Runtime) respondValue(conn ipc.Conn, f wire.RequestFrame, value any) {
	frame := wire.NewResponseFrame(f, value, nil, time.Now())
	r.send(conn, frame)
}

func (r *Runtime) respondError(conn ipc.Conn, f wire.RequestFrame, errv *wire.ResponseError) {
	frame := wire.NewResponseFrame(f, nil, errv, time.Now())
	r.send(conn, frame)
}

func (r *Runtime) send(conn ipc.Conn, frame wire.ResponseFrame) {
	if err := conn.WriteFrame(frame); err != nil {
		r.log.Error("failed to write response frame", obslog.Error(err), obslog.WorkerID(r.workerID))
		return
	}
	r.responded.Add(1)
}

func (r *Runtime) reportException(conn ipc.Conn, err error) {
	frame := wire.NewExceptionFrame(r.workerID, wire.ResponseError{
		Name:    "Error",
		Message: err.Error(),
	}, time.Now())
	if werr := conn.WriteFrame(frame); werr != nil {
		r.log.Error("failed to write exception frame", obslog.Error(werr), obslog.WorkerID(r.workerID))
	}
}
