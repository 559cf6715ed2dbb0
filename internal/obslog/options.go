package obslog

import (
	"io"
	"log/slog"
	"os"
)

type config struct {
	level      slog.Leveler
	json       bool
	out        io.Writer
	attrs      []slog.Attr
	handlerOpt *slog.HandlerOptions
	service    string
}

// Option configures a logger built with New.
type Option func(*config)

// WithLevel sets the minimum level a record must meet to be emitted.
func WithLevel(level slog.Leveler) Option {
	return func(c *config) { c.level = level }
}

// WithJSONFormatter switches the handler from text to JSON output.
func WithJSONFormatter() Option {
	return func(c *config) { c.json = true }
}

// WithOutput sets the writer records are emitted to. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithAttr attaches static attributes to every record, such as a service
// name or build version.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// WithHandlerOptions overrides the slog.HandlerOptions passed to the
// underlying handler, for callers that need AddSource or a ReplaceAttr hook.
func WithHandlerOptions(opt *slog.HandlerOptions) Option {
	return func(c *config) { c.handlerOpt = opt }
}

// WithDevelopment configures a text-formatted, debug-level logger writing to
// stdout, tagged with service.
func WithDevelopment(service string) Option {
	return func(c *config) {
		c.service = service
		c.json = false
		c.level = slog.LevelDebug
		c.out = os.Stdout
	}
}

// WithProduction configures a JSON-formatted, info-level logger writing to
// stdout, tagged with service.
func WithProduction(service string) Option {
	return func(c *config) {
		c.service = service
		c.json = true
		c.level = slog.LevelInfo
		c.out = os.Stdout
	}
}

// New builds a *slog.Logger from opts, applied in order. Defaults to a
// text-formatted, info-level logger on stdout with no static attributes.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, out: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}

	handlerOpt := c.handlerOpt
	if handlerOpt == nil {
		handlerOpt = &slog.HandlerOptions{Level: c.level}
	}

	var handler slog.Handler
	if c.json {
		handler = slog.NewJSONHandler(c.out, handlerOpt)
	} else {
		handler = slog.NewTextHandler(c.out, handlerOpt)
	}

	attrs := c.attrs
	if c.service != "" {
		attrs = append([]slog.Attr{slog.String("service", c.service)}, attrs...)
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return slog.New(handler)
}
