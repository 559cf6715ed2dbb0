package orchestrate

import (
	"context"
	"sync"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// Scatter distributes items across workers and executes command for each as
// an independent request, gathering every response into a ResponseArray in
// item order. With meta.Chunk set, items are pre-batched into len(workers)
// contiguous slices and each worker receives one request for its slice
// instead of one request per item.
func Scatter(ctx context.Context, dispatcher *controller.Dispatcher, command string, items []any, workers []controller.Handle, meta wire.Meta) *controller.Future[ResponseArray] {
	future := controller.NewFuture[ResponseArray]()

	if len(items) == 0 {
		future.Resolve(nil)
		return future
	}
	if len(workers) == 0 {
		future.Reject(ErrNoTargets)
		return future
	}

	if meta.Chunk {
		go scatterChunked(ctx, dispatcher, command, items, workers, meta, future)
		return future
	}
	go scatterRoundRobin(ctx, dispatcher, command, items, workers, meta, future)
	return future
}

func scatterRoundRobin(ctx context.Context, dispatcher *controller.Dispatcher, command string, items []any, workers []controller.Handle, meta wire.Meta, future *controller.Future[ResponseArray]) {
	results := make([]wire.Response, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		w := workers[i%len(workers)]
		go func(i int, item any, w controller.Handle) {
			defer wg.Done()
			resp, err := dispatcher.Dispatch(w, wire.Command(command), item, meta, nil).Await(ctx)
			if err != nil {
				resp = wire.Response{FromWorkerID: w.ID(), Command: wire.Command(command), Err: &wire.ResponseError{Message: err.Error()}}
			}
			results[i] = resp
		}(i, item, w)
	}
	wg.Wait()
	future.Resolve(ResponseArray(results))
}

func scatterChunked(ctx context.Context, dispatcher *controller.Dispatcher, command string, items []any, workers []controller.Handle, meta wire.Meta, future *controller.Future[ResponseArray]) {
	chunks := chunkItems(items, len(workers))

	type indexed struct {
		idx  int
		resp wire.Response
	}
	out := make(chan indexed, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, chunk []any, w controller.Handle) {
			defer wg.Done()
			resp, err := dispatcher.Dispatch(w, wire.Command(command), chunk, meta, nil).Await(ctx)
			if err != nil {
				resp = wire.Response{FromWorkerID: w.ID(), Command: wire.Command(command), Err: &wire.ResponseError{Message: err.Error()}}
			}
			out <- indexed{idx: i, resp: resp}
		}(i, chunk, workers[i])
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]wire.Response, len(chunks))
	for r := range out {
		results[r.idx] = r.resp
	}
	future.Resolve(ResponseArray(results))
}

// chunkItems splits items into n contiguous, near-equal slices, in order.
func chunkItems(items []any, n int) [][]any {
	chunks := make([][]any, n)
	base := len(items) / n
	rem := len(items) % n
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		chunks[i] = items[pos : pos+size]
		pos += size
	}
	return chunks
}
