package controller_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// fakeHandle is a minimal controller.Handle whose Deliver optionally replies
// synchronously (or never), letting tests drive the dispatcher directly
// without a real transport.
type fakeHandle struct {
	id      uint64
	alias   string
	group   string
	path    string
	state   controller.HandleState
	timeout time.Duration

	sent     atomic.Uint64
	received atomic.Uint64

	mu      sync.Mutex
	onSend  func(req wire.Request)
	failErr error
}

func newFakeHandle(id uint64) *fakeHandle {
	return &fakeHandle{id: id, alias: "worker", state: controller.HandleReady}
}

func (h *fakeHandle) ID() uint64      { return h.id }
func (h *fakeHandle) Alias() string   { return h.alias }
func (h *fakeHandle) Group() string   { return h.group }
func (h *fakeHandle) Path() string    { return h.path }
func (h *fakeHandle) State() controller.HandleState { return h.state }
func (h *fakeHandle) Sent() uint64     { return h.sent.Load() }
func (h *fakeHandle) Received() uint64 { return h.received.Load() }
func (h *fakeHandle) DefaultTimeout() (time.Duration, bool) {
	return h.timeout, h.timeout > 0
}

func (h *fakeHandle) Deliver(req wire.Request) error {
	h.mu.Lock()
	fail := h.failErr
	cb := h.onSend
	h.mu.Unlock()
	if fail != nil {
		return fail
	}
	h.sent.Add(1)
	if cb != nil {
		cb(req)
	}
	return nil
}

func TestDispatchCompleteResolvesFuture(t *testing.T) {
	d := controller.NewDispatcher()
	h := newFakeHandle(1)

	h.onSend = func(req wire.Request) {
		go func() {
			secretID, secretNumber := d.Secret()
			resp := wire.Response{
				RID: req.RID, FromWorkerID: h.ID(), Value: "ok",
			}
			_ = secretID
			_ = secretNumber
			d.Complete(resp)
		}()
	}

	future := d.Dispatch(h, "render", map[string]any{"x": 1}, wire.Meta{}, nil)
	resp, err := future.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Value)
	assert.Equal(t, uint64(1), h.Sent())
}

func TestDispatchDeliverFailureRejectsFuture(t *testing.T) {
	d := controller.NewDispatcher()
	h := newFakeHandle(2)
	h.failErr = assertErr

	future := d.Dispatch(h, "render", nil, wire.Meta{}, nil)
	_, err := future.Await(context.Background())
	assert.ErrorIs(t, err, assertErr)
}

func TestDispatchTimeoutFiresTimeoutResponse(t *testing.T) {
	var gotTimeout wire.Response
	var once sync.Once
	done := make(chan struct{})

	d := controller.NewDispatcher(
		controller.WithTimeoutHook(func(resp wire.Response) {
			once.Do(func() { gotTimeout = resp; close(done) })
		}),
	)
	h := newFakeHandle(3)

	future := d.Dispatch(h, "slow", nil, wire.Meta{Timeout: 10 * time.Millisecond}, nil)
	resp, err := future.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.IsTimeout())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout hook never fired")
	}
	assert.True(t, gotTimeout.IsTimeout())
}

func TestCompleteReturnsFalseForUnknownRequest(t *testing.T) {
	d := controller.NewDispatcher()
	ok := d.Complete(wire.Response{FromWorkerID: 99, RID: 1})
	assert.False(t, ok)
}

func TestCatchAllRejectsFutureOnError(t *testing.T) {
	d := controller.NewDispatcher(controller.WithDefaultCatchAll(true))
	h := newFakeHandle(4)

	h.onSend = func(req wire.Request) {
		go d.Complete(wire.Response{
			RID: req.RID, FromWorkerID: h.ID(),
			Err: &wire.ResponseError{Name: wire.ErrNameWorker, Message: "bad"},
		})
	}

	future := d.Dispatch(h, "fail", nil, wire.Meta{}, nil)
	_, err := future.Await(context.Background())
	require.Error(t, err)
	assert.Equal(t, "bad", err.Error())
}

func TestCatchAllOffResolvesWithErrorResponse(t *testing.T) {
	d := controller.NewDispatcher()
	h := newFakeHandle(5)

	h.onSend = func(req wire.Request) {
		go d.Complete(wire.Response{
			RID: req.RID, FromWorkerID: h.ID(),
			Err: &wire.ResponseError{Name: wire.ErrNameWorker, Message: "bad"},
		})
	}

	future := d.Dispatch(h, "fail", nil, wire.Meta{}, nil)
	resp, err := future.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.IsError())
}

func TestCancelForHandleCompletesPendingWithDisconnected(t *testing.T) {
	var gotDisconnect wire.Response
	done := make(chan struct{})

	d := controller.NewDispatcher(controller.WithDisconnectHook(func(resp wire.Response) {
		gotDisconnect = resp
		close(done)
	}))
	h := newFakeHandle(6)
	h.onSend = func(wire.Request) {} // never replies

	future := d.Dispatch(h, "hang", nil, wire.Meta{}, nil)
	d.CancelForHandle(h.ID())

	resp, err := future.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.IsDisconnected())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disconnect hook never fired")
	}
	assert.True(t, gotDisconnect.IsDisconnected())
}

func TestPendingCountsOutstandingRequests(t *testing.T) {
	d := controller.NewDispatcher()
	h := newFakeHandle(7)
	h.onSend = func(wire.Request) {}

	assert.Equal(t, 0, d.Pending(h.ID()))
	d.Dispatch(h, "a", nil, wire.Meta{}, nil)
	d.Dispatch(h, "b", nil, wire.Meta{}, nil)
	assert.Equal(t, 2, d.Pending(h.ID()))

	d.CancelForHandle(h.ID())
	assert.Equal(t, 0, d.Pending(h.ID()))
}
