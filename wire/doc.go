// Package wire defines the immutable message records exchanged between a
// controller and a worker: requests, responses, the sentinel command set, and
// the JSON frame shapes that carry them over a pipe or a socket.
//
// Nothing in this package blocks or allocates a goroutine; it is pure data
// plus the small amount of logic needed to validate and convert frames.
package wire
