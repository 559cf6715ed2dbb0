package ipc

import (
	"sync"

	"github.com/gorilla/websocket"
)

// SocketConn frames JSON values as individual websocket text messages, the
// shape a proxy's connection to a remote worker process gives us.
type SocketConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// NewSocketConn wraps an established websocket connection as a Conn.
func NewSocketConn(conn *websocket.Conn) *SocketConn {
	return &SocketConn{conn: conn}
}

func (c *SocketConn) ReadFrame(v any) error {
	return c.conn.ReadJSON(v)
}

func (c *SocketConn) WriteFrame(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.conn.WriteJSON(v)
}

func (c *SocketConn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Underlying exposes the raw websocket connection for callers that need
// transport-level operations, such as setting ping/pong handlers or read
// deadlines on the proxy side.
func (c *SocketConn) Underlying() *websocket.Conn {
	return c.conn
}
