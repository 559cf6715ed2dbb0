package controller

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/distio/wire"
)

// pendingKey is the correlation table's key: a request is uniquely
// identified by the handle it targets plus its rid.
type pendingKey struct {
	workerID uint64
	rid      uint64
}

type pendingEntry struct {
	req      wire.Request
	future   *Future[wire.Response]
	timer    *time.Timer
	catchAll bool
}

// Dispatcher is the single logical service shared by every handle in a
// controller: it owns the correlation table, the rid allocator, and the
// request-level timeout timers.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[pendingKey]*pendingEntry

	ridCounter atomic.Uint64

	secretID     string
	secretNumber uint64

	defaultTimeout  time.Duration
	defaultCatchAll bool

	onTimeout      func(wire.Response)
	onDisconnected func(wire.Response)

	log *slog.Logger
}

// DispatcherOption configures a Dispatcher built with NewDispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefaultTimeout sets the controller-scope TTL used when neither a
// request nor its handle specifies one.
func WithDefaultTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.defaultTimeout = d }
}

// WithDefaultCatchAll sets the controller-scope catchAll default.
func WithDefaultCatchAll(catchAll bool) DispatcherOption {
	return func(disp *Dispatcher) { disp.defaultCatchAll = catchAll }
}

// WithDispatcherLogger attaches a logger. Defaults to a discard logger.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) { disp.log = log }
}

// WithTimeoutHook registers fn to be invoked with the synthesized
// TimeoutResponse whenever a request's TTL elapses, in addition to
// completing the waiting future. Intended for observability, not control
// flow: fn runs after the future is already settled.
func WithTimeoutHook(fn func(wire.Response)) DispatcherOption {
	return func(disp *Dispatcher) { disp.onTimeout = fn }
}

// WithDisconnectHook registers fn to be invoked with each synthesized
// Disconnected response produced by CancelForHandle.
func WithDisconnectHook(fn func(wire.Response)) DispatcherOption {
	return func(disp *Dispatcher) { disp.onDisconnected = fn }
}

// NewDispatcher builds a Dispatcher with a fresh per-controller secret pair.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pending: make(map[pendingKey]*pendingEntry),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	d.secretID = uuid.NewString()
	d.secretNumber = randomUint64()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uuid.New().ID()
	}
	return binary.BigEndian.Uint64(b[:])
}

// Secret returns the per-controller secret pair attached to every outbound
// request; a handle's transport uses it to build requests, and verifies it
// on every inbound response.
func (d *Dispatcher) Secret() (id string, number uint64) {
	return d.secretID, d.secretNumber
}

// Dispatch resolves a TTL, allocates an rid, records the pending entry, and
// hands the built Request to h's transport. It never blocks on the
// response; the caller awaits the returned future.
func (d *Dispatcher) Dispatch(h Handle, cmd wire.Command, data any, meta wire.Meta, handleCatchAll *bool) *Future[wire.Response] {
	future := NewFuture[wire.Response]()

	handleTimeout, _ := h.DefaultTimeout()
	ttl := wire.ResolveTimeout(meta.Timeout, handleTimeout, d.defaultTimeout)
	catchAll := wire.ResolveCatchAll(meta.CatchAll, handleCatchAll, d.defaultCatchAll)

	rid := d.ridCounter.Add(1)
	now := time.Now()
	secretID, secretNumber := d.Secret()

	req := wire.Request{
		RID:            rid,
		TargetWorkerID: h.ID(),
		Command:        cmd,
		Data:           data,
		Meta:           meta,
		CreatedAt:      now,
		SentAt:         now,
		TTL:            ttl,
		SecretID:       secretID,
		SecretNumber:   secretNumber,
	}

	key := pendingKey{workerID: h.ID(), rid: rid}
	entry := &pendingEntry{req: req, future: future, catchAll: catchAll}

	d.mu.Lock()
	d.pending[key] = entry
	if ttl > 0 {
		entry.timer = time.AfterFunc(ttl, func() { d.fireTimeout(key) })
	}
	d.mu.Unlock()

	if err := h.Deliver(req); err != nil {
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		if entry.timer != nil {
			entry.timer.Stop()
		}
		future.Reject(err)
	}

	return future
}

// Complete matches an inbound Response to its pending entry and resolves or
// rejects the waiting future per the resolved catchAll policy. Before
// settling, it sets the Response's SentAt to the originating request's send
// time, so Duration measures the full round trip. It reports false if no
// pending entry matched (response already timed out, or was never sent by
// this dispatcher).
func (d *Dispatcher) Complete(resp wire.Response) bool {
	key := pendingKey{workerID: resp.FromWorkerID, rid: resp.RID}

	d.mu.Lock()
	entry, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}

	resp.SentAt = entry.req.SentAt
	d.settle(entry, resp)
	return true
}

func (d *Dispatcher) settle(entry *pendingEntry, resp wire.Response) {
	if resp.IsError() && entry.catchAll {
		entry.future.Reject(resp.Err)
		return
	}
	entry.future.Resolve(resp)
}

func (d *Dispatcher) fireTimeout(key pendingKey) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	resp := wire.NewTimeoutResponse(entry.req, time.Now(), entry.req.TTL)
	d.settle(entry, resp)
	if d.onTimeout != nil {
		d.onTimeout(resp)
	}
}

// CancelForHandle completes every pending request targeting workerID with a
// Disconnected response, respecting each request's resolved catchAll
// policy. Call this when a handle transitions to exited or spawn-failed.
func (d *Dispatcher) CancelForHandle(workerID uint64) {
	d.mu.Lock()
	var matched []*pendingEntry
	for key, entry := range d.pending {
		if key.workerID != workerID {
			continue
		}
		matched = append(matched, entry)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	now := time.Now()
	for _, entry := range matched {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		resp := wire.NewDisconnectedResponse(entry.req, now)
		d.settle(entry, resp)
		if d.onDisconnected != nil {
			d.onDisconnected(resp)
		}
	}
}

// Pending reports the number of outstanding requests targeting workerID.
func (d *Dispatcher) Pending(workerID uint64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for key := range d.pending {
		if key.workerID == workerID {
			n++
		}
	}
	return n
}
