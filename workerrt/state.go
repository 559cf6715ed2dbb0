package workerrt

// State is the dispatch loop's own lifecycle, distinct from any handle-side
// view of the worker the controller holds.
type State int32

const (
	// StateRunning dispatches every inbound message to its handler.
	StateRunning State = iota
	// StatePaused answers every inbound message with NotAcceptingMessages
	// without invoking a handler.
	StatePaused
	// StateDetaching is entered once EXIT has been handled; no further
	// message is dispatched and Run returns once the EXIT reply is flushed.
	StateDetaching
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDetaching:
		return "detaching"
	default:
		return "unknown"
	}
}
