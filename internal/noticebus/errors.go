package noticebus

import "errors"

var (
	// ErrBusClosed is returned by ChannelBus.Publish once Close has run.
	ErrBusClosed = errors.New("noticebus: bus closed")

	// ErrNoEventSource is returned by Processor.Start when built without
	// WithEventSource.
	ErrNoEventSource = errors.New("noticebus: no event source configured")

	// ErrNoHandlers is returned by Processor.Start when built with neither a
	// handler nor a fallback handler.
	ErrNoHandlers = errors.New("noticebus: no handlers registered")

	// ErrAlreadyStarted is returned by Start on a Processor already running.
	ErrAlreadyStarted = errors.New("noticebus: processor already started")

	// ErrNotStarted is returned by Stop on a Processor that was never
	// started or has already stopped.
	ErrNotStarted = errors.New("noticebus: processor not started")
)
