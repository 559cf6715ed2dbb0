package ipc

import "errors"

// ErrClosed is returned by WriteFrame once Close has been called. ReadFrame
// does not check it; after Close it fails with the underlying transport's
// error or io.EOF.
var ErrClosed = errors.New("ipc: connection closed")

// Conn is a bidirectional framed-JSON channel. Implementations are safe for
// one concurrent reader and one concurrent writer; WriteFrame itself is
// additionally safe to call from multiple goroutines.
type Conn interface {
	// ReadFrame decodes the next frame into v. It blocks until a frame
	// arrives, the peer closes the connection, or Close is called.
	ReadFrame(v any) error

	// WriteFrame encodes v and sends it as a single frame.
	WriteFrame(v any) error

	// Close releases the underlying transport. Safe to call more than once.
	Close() error
}
