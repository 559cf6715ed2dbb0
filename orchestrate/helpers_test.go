package orchestrate

import (
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// fakeHandle is a controller.Handle double that answers every Deliver call
// in-process through a handler function, standing in for a worker process
// end-to-end across the orchestration tests.
type fakeHandle struct {
	id    uint64
	alias string
	group string

	sent       atomic.Uint64
	received   atomic.Uint64
	dispatcher *controller.Dispatcher
	handler    func(req wire.Request) (any, *wire.ResponseError)
}

func newFakeHandle(id uint64, alias string, dispatcher *controller.Dispatcher, handler func(wire.Request) (any, *wire.ResponseError)) *fakeHandle {
	return &fakeHandle{id: id, alias: alias, group: "global", dispatcher: dispatcher, handler: handler}
}

func (h *fakeHandle) ID() uint64                   { return h.id }
func (h *fakeHandle) Alias() string                { return h.alias }
func (h *fakeHandle) Group() string                { return h.group }
func (h *fakeHandle) Path() string                 { return "" }
func (h *fakeHandle) State() controller.HandleState { return controller.HandleReady }
func (h *fakeHandle) Sent() uint64                  { return h.sent.Load() }
func (h *fakeHandle) Received() uint64              { return h.received.Load() }
func (h *fakeHandle) DefaultTimeout() (time.Duration, bool) { return 0, false }

func (h *fakeHandle) Deliver(req wire.Request) error {
	h.sent.Add(1)
	go func() {
		val, errv := h.handler(req)
		h.received.Add(1)
		resp := wire.Response{
			RID:          req.RID,
			FromWorkerID: h.id,
			SentAt:       req.SentAt,
			ReceivedAt:   time.Now(),
			Value:        val,
			Err:          errv,
			Command:      req.Command,
		}
		h.dispatcher.Complete(resp)
	}()
	return nil
}

// echoHandler replies with whatever data it was sent.
func echoHandler(req wire.Request) (any, *wire.ResponseError) { return req.Data, nil }
