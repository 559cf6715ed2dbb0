// Package workerrt is the runtime a worker binary links against. It holds
// the task registry, the inbound dispatch loop, and the sentinel command
// handlers (ACK, NULL, EXIT) every worker gets for free.
//
// A worker program registers its task handlers, then calls Runtime.Run with
// a transport (normally an ipc.Conn over stdio) to start servicing requests
// until EXIT is handled or the transport closes.
package workerrt
