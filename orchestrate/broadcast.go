package orchestrate

import (
	"context"
	"sync"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// Broadcast fans one command out to a resolved set of handles and aggregates
// the results into a ResponseArray sorted by from-worker-id ascending.
type Broadcast struct {
	registry   *controller.Registry
	dispatcher *controller.Dispatcher
	command    string
	data       any
	meta       wire.Meta
}

// NewBroadcast builds a Broadcast; call To to resolve targets and send.
func NewBroadcast(registry *controller.Registry, dispatcher *controller.Dispatcher, command string, data any, meta wire.Meta) *Broadcast {
	return &Broadcast{registry: registry, dispatcher: dispatcher, command: command, data: data, meta: meta}
}

// To resolves targets against the registry and dispatches command to every
// matched handle concurrently. An empty resolution resolves an empty
// ResponseArray, not an error.
func (b *Broadcast) To(ctx context.Context, targets ...controller.Target) *controller.Future[ResponseArray] {
	future := controller.NewFuture[ResponseArray]()

	handles := controller.List(targets...).Resolve(b.registry)
	if len(handles) == 0 {
		future.Resolve(nil)
		return future
	}

	go func() {
		results := make([]wire.Response, len(handles))
		var wg sync.WaitGroup
		wg.Add(len(handles))
		for i, h := range handles {
			go func(i int, h controller.Handle) {
				defer wg.Done()
				resp, err := b.dispatcher.Dispatch(h, wire.Command(b.command), b.data, b.meta, nil).Await(ctx)
				if err != nil {
					resp = wire.Response{FromWorkerID: h.ID(), Command: wire.Command(b.command), Err: &wire.ResponseError{Message: err.Error()}}
				}
				results[i] = resp
			}(i, h)
		}
		wg.Wait()
		future.Resolve(ResponseArray(results).SortByFromAscending())
	}()

	return future
}

// Tell is an alias for To kept for readers of the source terminology;
// "broadcast(cmd).tell(selector)" and "...to(selector)" are the same
// operation.
func (b *Broadcast) Tell(ctx context.Context, targets ...controller.Target) *controller.Future[ResponseArray] {
	return b.To(ctx, targets...)
}
