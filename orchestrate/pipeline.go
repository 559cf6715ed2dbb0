package orchestrate

import (
	"context"

	"github.com/dmitrymomot/distio/controller"
	"github.com/dmitrymomot/distio/wire"
)

// Interceptor observes a pipeline task's Response after it arrives and
// before it feeds the next task. It may mutate resp.Value in place; a
// non-nil error rejects the pipeline outright, and stop=true resolves the
// pipeline early with resp as the final result (the Go-idiomatic rendering
// of the source's throw-or-exit(value|error|nothing) callback).
type Interceptor func(resp *wire.Response) (stop bool, err error)

type pipelineTask struct {
	command   string
	handle    controller.Handle
	intercept Interceptor
}

// Pipeline is an ordered sequence of tasks where each task's response value
// becomes the next task's input payload.
type Pipeline struct {
	dispatcher *controller.Dispatcher
	tasks      []*pipelineTask
}

// NewPipeline builds an empty Pipeline.
func NewPipeline(dispatcher *controller.Dispatcher) *Pipeline {
	return &Pipeline{dispatcher: dispatcher}
}

// PipelineTask is the builder returned by AddTask, chaining For, Intercept,
// and further AddTask calls.
type PipelineTask struct {
	p *Pipeline
	t *pipelineTask
}

// AddTask appends a task to the pipeline and returns a builder for its
// target and optional intercept.
func (p *Pipeline) AddTask(command string) *PipelineTask {
	t := &pipelineTask{command: command}
	p.tasks = append(p.tasks, t)
	return &PipelineTask{p: p, t: t}
}

// For assigns the task's target handle.
func (pt *PipelineTask) For(h controller.Handle) *PipelineTask {
	pt.t.handle = h
	return pt
}

// Intercept registers an Interceptor run on this task's response.
func (pt *PipelineTask) Intercept(fn Interceptor) *PipelineTask {
	pt.t.intercept = fn
	return pt
}

// AddTask chains a further task onto the same pipeline, letting callers
// write pipeline.AddTask("auth").For(a).AddTask("get").For(b) in one
// expression.
func (pt *PipelineTask) AddTask(command string) *PipelineTask {
	return pt.p.AddTask(command)
}

// Execute feeds initialData to the first task and threads each task's
// response value into the next. An empty pipeline resolves a zero Response.
// A task with no assigned handle rejects with ErrMissingTarget before any
// send.
func (p *Pipeline) Execute(ctx context.Context, initialData any) *controller.Future[wire.Response] {
	future := controller.NewFuture[wire.Response]()

	if len(p.tasks) == 0 {
		future.Resolve(wire.Response{Value: nil})
		return future
	}
	for _, t := range p.tasks {
		if t.handle == nil {
			future.Reject(ErrMissingTarget)
			return future
		}
	}

	go func() {
		data := initialData
		var current wire.Response
		for _, t := range p.tasks {
			resp, err := p.dispatcher.Dispatch(t.handle, wire.Command(t.command), data, wire.Meta{}, nil).Await(ctx)
			if err != nil {
				future.Reject(err)
				return
			}
			current = resp

			if t.intercept != nil {
				stop, ierr := t.intercept(&current)
				if ierr != nil {
					future.Reject(ierr)
					return
				}
				if stop {
					future.Resolve(current)
					return
				}
			}

			data = current.Value
		}
		future.Resolve(current)
	}()

	return future
}
