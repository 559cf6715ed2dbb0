package orchestrate

import (
	"context"
	"sync"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// Parallel is a declarative bag of (command, data, meta, handle, times)
// entries executed together. Tasks run concurrently within a round; when
// any task declares times>1, the whole bag repeats that many rounds.
type Parallel struct {
	dispatcher *controller.Dispatcher

	mu        sync.Mutex
	tasks     []*parallelTask
	nextToken int
}

type parallelTask struct {
	token   int
	command string
	data    any
	meta    wire.Meta
	handle  controller.Handle
	times   int
}

// NewParallel builds an empty Parallel bag.
func NewParallel(dispatcher *controller.Dispatcher) *Parallel {
	return &Parallel{dispatcher: dispatcher}
}

// ParallelTask is the builder returned by AddTask, chaining For and Times.
type ParallelTask struct {
	p *Parallel
	t *parallelTask
}

// AddTask appends a task to the bag and returns a builder for its target and
// repeat count.
func (p *Parallel) AddTask(command string, data any, meta wire.Meta) *ParallelTask {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := &parallelTask{token: p.nextToken, command: command, data: data, meta: meta, times: 1}
	p.nextToken++
	p.tasks = append(p.tasks, t)
	return &ParallelTask{p: p, t: t}
}

// For assigns the task's target handle.
func (pt *ParallelTask) For(h controller.Handle) *ParallelTask {
	pt.t.handle = h
	return pt
}

// Times sets how many rounds the entire bag repeats. The bag-wide round
// count is the maximum Times set across all tasks.
func (pt *ParallelTask) Times(n int) *ParallelTask {
	if n > 0 {
		pt.t.times = n
	}
	return pt
}

// Token identifies this task for RemoveTask.
func (pt *ParallelTask) Token() int { return pt.t.token }

// RemoveTask removes the task identified by token, if present.
func (p *Parallel) RemoveTask(token int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.tasks {
		if t.token == token {
			p.tasks = append(p.tasks[:i], p.tasks[i+1:]...)
			return
		}
	}
}

// Execute dispatches every task to its handle. Zero tasks resolves an empty
// result; a task with no assigned handle rejects with ErrMissingTarget
// before any send.
func (p *Parallel) Execute(ctx context.Context) *controller.Future[[]ResponseArray] {
	future := controller.NewFuture[[]ResponseArray]()

	p.mu.Lock()
	tasks := append([]*parallelTask{}, p.tasks...)
	p.mu.Unlock()

	if len(tasks) == 0 {
		future.Resolve(nil)
		return future
	}
	for _, t := range tasks {
		if t.handle == nil {
			future.Reject(ErrMissingTarget)
			return future
		}
	}

	rounds := 1
	for _, t := range tasks {
		if t.times > rounds {
			rounds = t.times
		}
	}

	go func() {
		out := make([]ResponseArray, rounds)
		for round := 0; round < rounds; round++ {
			results := make([]wire.Response, len(tasks))
			var wg sync.WaitGroup
			wg.Add(len(tasks))
			for i, t := range tasks {
				go func(i int, t *parallelTask) {
					defer wg.Done()
					resp, err := p.dispatcher.Dispatch(t.handle, wire.Command(t.command), t.data, t.meta, nil).Await(ctx)
					if err != nil {
						resp = wire.Response{FromWorkerID: t.handle.ID(), Command: wire.Command(t.command), Err: &wire.ResponseError{Message: err.Error()}}
					}
					results[i] = resp
				}(i, t)
			}
			wg.Wait()
			out[round] = ResponseArray(results)
		}
		future.Resolve(out)
	}()

	return future
}
