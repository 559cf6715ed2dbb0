package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/distio/internal/obslog"
	"github.com/dmitrymomot/distio/pkg/broadcast"
	"github.com/dmitrymomot/distio/wire"
)

// Controller is the explicit value user code creates to own a registry, a
// dispatcher, and the workers spawned through it. There is no process-wide
// singleton; callers that want one may hold their own package-level
// *Controller.
type Controller struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Events     *Events

	idCounter atomic.Uint64
	log       *slog.Logger
}

// Option configures a Controller built with New.
type Option func(*controllerConfig)

type controllerConfig struct {
	defaultTimeout  time.Duration
	defaultCatchAll bool
	log             *slog.Logger
}

// WithControllerTimeout sets the controller-scope default request TTL used
// when neither a request nor its handle specifies one.
func WithControllerTimeout(d time.Duration) Option {
	return func(c *controllerConfig) { c.defaultTimeout = d }
}

// WithControllerCatchAll sets the controller-scope catchAll default.
func WithControllerCatchAll(catchAll bool) Option {
	return func(c *controllerConfig) { c.defaultCatchAll = catchAll }
}

// WithControllerLogger attaches a logger. Defaults to a discard logger.
func WithControllerLogger(log *slog.Logger) Option {
	return func(c *controllerConfig) { c.log = log }
}

// New builds a Controller with its own registry and dispatcher.
func New(opts ...Option) *Controller {
	cfg := &controllerConfig{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	events := NewEvents(defaultEventBufferSize)

	return &Controller{
		Registry: NewRegistry(),
		Dispatcher: NewDispatcher(
			WithDefaultTimeout(cfg.defaultTimeout),
			WithDefaultCatchAll(cfg.defaultCatchAll),
			WithDispatcherLogger(cfg.log),
			WithTimeoutHook(func(resp wire.Response) {
				events.publish(context.Background(), WorkerTimeout{
					WorkerID: resp.FromWorkerID, RID: resp.RID, Command: resp.Command,
				})
			}),
			WithDisconnectHook(func(resp wire.Response) {
				events.publish(context.Background(), WorkerDisconnected{
					WorkerID: resp.FromWorkerID, RID: resp.RID, Command: resp.Command,
				})
			}),
		),
		Events: events,
		log:    cfg.log,
	}
}

// defaultEventBufferSize bounds the controller's internal Notices channel.
const defaultEventBufferSize = 256

// NextID allocates the next monotonic worker id for this controller.
func (c *Controller) NextID() uint64 { return c.idCounter.Add(1) }

// CreateSlaves forks n copies of scriptPath, assigning each a distinct
// alias "<aliasPrefix>-<k>" for k in [1,n], and registers the ones that
// spawn successfully. n<=0 performs no spawn and returns an empty slice.
func (c *Controller) CreateSlaves(ctx context.Context, n int, scriptPath, aliasPrefix string, userArgs []string, opts ...LocalHandleOption) ([]*LocalHandle, error) {
	if n <= 0 {
		return nil, nil
	}

	out := make([]*LocalHandle, 0, n)
	for i := 1; i <= n; i++ {
		alias := fmt.Sprintf("%s-%d", aliasPrefix, i)
		h, err := c.CreateSlave(ctx, scriptPath, alias, userArgs, opts...)
		if err != nil {
			return out, err
		}
		out = append(out, h)
	}
	return out, nil
}

// CreateSlave forks one copy of scriptPath under alias and registers it.
// A spawn failure still returns the handle (in HandleSpawnFailed) alongside
// a non-nil error, per the async SpawnFailed kind.
func (c *Controller) CreateSlave(ctx context.Context, scriptPath, alias string, userArgs []string, opts ...LocalHandleOption) (*LocalHandle, error) {
	id := c.NextID()
	defaults := []LocalHandleOption{
		WithHandleLogger(c.log),
		WithStderr(func(b []byte) {
			_ = c.Events.Lifecycle.Broadcast(context.Background(), broadcast.Message[LifecycleEvent]{
				Data: LifecycleEvent{WorkerID: id, Alias: alias, Kind: "stderr", Data: b},
			})
		}),
		WithUncaughtException(func(e wire.ResponseError) {
			c.Events.publish(context.Background(), WorkerException{WorkerID: id, Error: e})
		}),
	}
	opts = append(defaults, opts...)
	h := Spawn(ctx, id, alias, "", scriptPath, userArgs, c.Dispatcher, c.Registry, opts...)

	if !h.State().registered() {
		return h, fmt.Errorf("%w: %v", ErrSpawnFailed, h.spawnErr)
	}
	if err := c.Registry.Add(h, scriptPath); err != nil {
		_ = h.Kill("SIGKILL")
		return h, err
	}
	return h, nil
}

// Healthcheck reports an error if any registered handle is not ready, or if
// more than half the registered handles have pending requests outstanding
// at the moment of the call — a coarse liveness signal, not a guarantee.
func (c *Controller) Healthcheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	handles := c.Registry.All()
	if len(handles) == 0 {
		return nil
	}

	busy := 0
	for _, h := range handles {
		if h.State() != HandleReady {
			return fmt.Errorf("controller: handle %s is not ready (state=%s)", FormatHandle(h), h.State())
		}
		if c.Dispatcher.Pending(h.ID()) > 0 {
			busy++
		}
	}
	if busy*2 > len(handles) {
		c.log.Warn("healthcheck: majority of handles busy", obslog.Count("busy", busy), obslog.Count("total", len(handles)))
		return fmt.Errorf("controller: %d of %d handles have pending requests", busy, len(handles))
	}
	return nil
}
