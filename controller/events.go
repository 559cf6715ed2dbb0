package controller

import (
	"context"
	"io"
	"log/slog"

	"github.com/dmitrymomot/distio/internal/noticebus"
	"github.com/dmitrymomot/distio/pkg/broadcast"
	"github.com/dmitrymomot/distio/wire"
)

// WorkerException is published when a worker reports an uncaught exception
// not tied to any pending rid.
type WorkerException struct {
	WorkerID uint64
	Error    wire.ResponseError
}

// WorkerTimeout is published when a request's TTL elapses before a
// response arrives.
type WorkerTimeout struct {
	WorkerID uint64
	RID      uint64
	Command  wire.Command
}

// WorkerDisconnected is published when a handle tears down with requests
// still pending.
type WorkerDisconnected struct {
	WorkerID uint64
	RID      uint64
	Command  wire.Command
}

// LifecycleEvent is a handle-level notification broadcast to any number of
// subscribers, independent of the structured Notices stream above. The
// Controller publishes only stderr passthrough (Kind "stderr") for the
// handles it spawns; it emits no stdout, closed or exited events.
type LifecycleEvent struct {
	WorkerID uint64
	Alias    string
	Kind     string
	Data     []byte
}

// Events bundles the two observability channels a Controller exposes: a
// structured, typed Notices stream for the three failure kinds above (built
// on internal/noticebus's channel bus and publisher), and a raw Lifecycle
// broadcast of handle notifications, which the Controller fills with stderr
// passthrough only (built on pkg/broadcast). Both are optional; a Controller built without subscribers
// still has a functioning Events, so publishing is always safe.
type Events struct {
	bus       *noticebus.ChannelBus
	publisher *noticebus.Publisher
	Lifecycle *broadcast.MemoryBroadcaster[LifecycleEvent]
}

// NewEvents builds an Events bundle with the given channel buffer size.
func NewEvents(bufferSize int) *Events {
	bus := noticebus.NewChannelBus(noticebus.WithBufferSize(bufferSize))
	return &Events{
		bus:       bus,
		publisher: noticebus.NewPublisher(bus),
		Lifecycle: broadcast.NewMemoryBroadcaster[LifecycleEvent](bufferSize),
	}
}

// Subscribe starts processing Notices with handlers, returning once ctx is
// canceled. Intended to run in its own goroutine.
func (e *Events) Subscribe(ctx context.Context, handlers ...noticebus.Handler) error {
	proc := noticebus.NewProcessor(
		noticebus.WithEventSource(e.bus),
		noticebus.WithHandler(handlers...),
		noticebus.WithProcessorLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return proc.Start(ctx)
}

// publish best-efforts a Notices event; failures are swallowed since
// observability must never perturb the request path.
func (e *Events) publish(ctx context.Context, payload any) {
	_ = e.publisher.Publish(ctx, payload)
}

// Close releases the underlying channel bus and lifecycle broadcaster.
func (e *Events) Close() {
	_ = e.bus.Close()
	_ = e.Lifecycle.Close()
}
