// Package ipc provides a single framed-JSON transport abstraction used on
// both sides of a controller/worker connection: a local pipe (os.Pipe /
// exec.Cmd stdio) and a remote socket (gorilla/websocket). Callers read and
// write Go values; this package owns encoding, newline framing on pipes, and
// message framing on sockets.
package ipc
