package orchestrate

import (
	"context"
	"sync"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// Workpool is an idle-aware round-robin dispatcher over a fixed, non-empty
// set of handles, with a FIFO queue of pending slots. At most one request
// from this pool is ever pending against a given handle at a time; other
// workpools or direct Exec calls against the same handle are independent.
type Workpool struct {
	dispatcher *controller.Dispatcher

	mu      sync.Mutex
	handles []controller.Handle
	busy    map[uint64]bool
	queue   []*workpoolSlot
	rr      int
}

type workpoolSlot struct {
	command string
	data    any
	meta    wire.Meta
	future  *controller.Future[wire.Response]
}

// NewWorkpool builds a Workpool over handles, a non-empty set S per the
// contract; an empty set makes every Do future reject with ErrNoTargets.
func NewWorkpool(dispatcher *controller.Dispatcher, handles []controller.Handle) *Workpool {
	return &Workpool{
		dispatcher: dispatcher,
		handles:    handles,
		busy:       make(map[uint64]bool),
	}
}

// Do enqueues a slot; the scheduler consumes the next idle handle in
// round-robin order, wrapping at end-of-list. If no handle in S is idle, the
// slot waits at the head of the queue until one frees up.
func (w *Workpool) Do(command string, data any, meta wire.Meta) *controller.Future[wire.Response] {
	future := controller.NewFuture[wire.Response]()

	if len(w.handles) == 0 {
		future.Reject(ErrNoTargets)
		return future
	}

	w.mu.Lock()
	w.queue = append(w.queue, &workpoolSlot{command: command, data: data, meta: meta, future: future})
	w.mu.Unlock()

	w.tick()
	return future
}

// tick dispatches the head of the queue to the next idle handle in
// round-robin order, if there is one; it dispatches at most one slot per
// call. Every Do and every completion calls tick again, so the scheduler
// never stalls on a handle that frees up later.
func (w *Workpool) tick() {
	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return
	}

	n := len(w.handles)
	for i := 0; i < n; i++ {
		idx := (w.rr + i) % n
		h := w.handles[idx]
		if w.busy[h.ID()] {
			continue
		}

		slot := w.queue[0]
		w.queue = w.queue[1:]
		w.busy[h.ID()] = true
		w.rr = (idx + 1) % n
		w.mu.Unlock()

		future := w.dispatcher.Dispatch(h, wire.Command(slot.command), slot.data, slot.meta, nil)
		go w.await(h, slot, future)
		return
	}
	w.mu.Unlock()
}

func (w *Workpool) await(h controller.Handle, slot *workpoolSlot, future *controller.Future[wire.Response]) {
	resp, err := future.Await(context.Background())

	w.mu.Lock()
	delete(w.busy, h.ID())
	w.mu.Unlock()

	if err != nil {
		slot.future.Reject(err)
	} else {
		slot.future.Resolve(resp)
	}
	w.tick()
}

// While returns a builder for the "enqueue while predicate holds" form.
func (w *Workpool) While(pred func(i int, responses ResponseArray) bool) *WorkpoolWhile {
	return &WorkpoolWhile{w: w, pred: pred}
}

// WorkpoolWhile is the builder returned by Workpool.While.
type WorkpoolWhile struct {
	w    *Workpool
	pred func(i int, responses ResponseArray) bool
}

// Do repeatedly enqueues slots while the predicate holds, dispatching and
// awaiting one slot at a time so each predicate evaluation sees every
// response collected so far. It resolves once the predicate first returns
// false.
func (b *WorkpoolWhile) Do(command string, data any, meta wire.Meta) *controller.Future[ResponseArray] {
	future := controller.NewFuture[ResponseArray]()

	go func() {
		var responses ResponseArray
		i := 0
		for b.pred(i, responses) {
			resp, err := b.w.Do(command, data, meta).Await(context.Background())
			if err != nil {
				future.Reject(err)
				return
			}
			responses = append(responses, resp)
			i++
		}
		future.Resolve(responses)
	}()

	return future
}
