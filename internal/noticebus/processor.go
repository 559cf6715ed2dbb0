package noticebus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// eventSource is the narrow interface a Processor drains from.
type eventSource interface {
	Events() <-chan Event
}

// Processor fans events pulled from an eventSource out to the Handlers
// registered for each event's name, each handler running in its own
// goroutine.
type Processor struct {
	handlers map[string][]Handler
	source   eventSource
	fallback func(Event) error

	shutdownTimeout time.Duration
	log             *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	active    atomic.Int32
}

// ProcessorOption configures a Processor built with NewProcessor.
type ProcessorOption func(*Processor)

// WithHandler registers one or more handlers, keyed by each one's EventName.
func WithHandler(handlers ...Handler) ProcessorOption {
	return func(p *Processor) {
		for _, h := range handlers {
			p.handlers[h.EventName()] = append(p.handlers[h.EventName()], h)
		}
	}
}

// WithEventSource sets the source a Processor pulls events from. Required.
func WithEventSource(source eventSource) ProcessorOption {
	return func(p *Processor) { p.source = source }
}

// WithFallbackHandler sets a handler invoked for events with no name match
// in the registered handlers, useful for logging unhandled notices.
func WithFallbackHandler(fn func(Event) error) ProcessorOption {
	return func(p *Processor) { p.fallback = fn }
}

// WithShutdownTimeout bounds how long Stop waits for in-flight handlers.
// Default 30s.
func WithShutdownTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}

// WithProcessorLogger attaches a logger. Defaults to a discard logger.
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProcessor builds a Processor from opts.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		handlers:        make(map[string][]Handler),
		shutdownTimeout: 30 * time.Second,
		log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start drains the configured event source until ctx is canceled or the
// source closes. Blocking; run it in its own goroutine.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	if p.source == nil {
		p.mu.Unlock()
		return ErrNoEventSource
	}
	if len(p.handlers) == 0 && p.fallback == nil {
		p.mu.Unlock()
		return ErrNoHandlers
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	events := p.source.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			p.dispatch(evt)
		}
	}
}

// Stop cancels processing and waits up to the configured shutdown timeout
// for in-flight handlers to finish.
func (p *Processor) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	done := make(chan struct{})
	go func() { p.wg.Wait(); close(done) }()

	select {
	case <-done:
		return nil
	case <-time.After(p.shutdownTimeout):
		return fmt.Errorf("noticebus: shutdown timeout exceeded after %s", p.shutdownTimeout)
	}
}

func (p *Processor) dispatch(evt Event) {
	p.mu.Lock()
	handlers := p.handlers[evt.Name]
	fallback := p.fallback
	p.mu.Unlock()

	if len(handlers) == 0 {
		if fallback == nil {
			return
		}
		p.run(evt, "fallback", func() error { return fallback(evt) })
		return
	}
	for _, h := range handlers {
		h := h
		p.run(evt, h.EventName(), func() error { return h.Handle(evt.Payload) })
	}
}

func (p *Processor) run(evt Event, label string, fn func() error) {
	p.wg.Add(1)
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				p.failed.Add(1)
				p.log.Error("notice handler panicked",
					slog.String("event_id", evt.ID), slog.String("handler", label), slog.Any("panic", r))
			}
		}()

		if err := fn(); err != nil {
			p.failed.Add(1)
			p.log.Error("notice handler failed",
				slog.String("event_id", evt.ID), slog.String("handler", label), slog.String("error", err.Error()))
			return
		}
		p.processed.Add(1)
	}()
}

// Stats reports running counters for observability.
type Stats struct {
	Processed int64
	Failed    int64
	Active    int32
	Running   bool
}

// Stats returns a snapshot of the processor's counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	running := p.cancel != nil
	p.mu.Unlock()
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Active:    p.active.Load(),
		Running:   running,
	}
}

// Healthcheck reports an error if the processor is not running.
func (p *Processor) Healthcheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !p.Stats().Running {
		return errors.New("noticebus: processor not running")
	}
	return nil
}
