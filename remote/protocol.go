package remote

import "github.com/dmitrymomot/distio/wire"

// Kind tags the multiplexed events a Session and a proxy session exchange
// over one websocket connection, per spec's external interface: the wire
// frames stay the same shape as the local transport, carried inside an
// Envelope addressed to a specific remote worker id.
type Kind string

const (
	KindInit         Kind = "init"
	KindMessage      Kind = "message"
	KindStdout       Kind = "stdout"
	KindStderr       Kind = "stderr"
	KindSlaveExited  Kind = "slave exited"
	KindSlaveClosed  Kind = "slave closed"
	KindRemoteKilled Kind = "remote killed"
	KindDisconnect   Kind = "disconnect"
)

// Envelope is the single JSON shape multiplexed over the websocket in both
// directions; Kind selects which of the optional fields is meaningful.
type Envelope struct {
	Kind     Kind   `json:"kind"`
	WorkerID uint64 `json:"workerId,omitempty"`

	Init     *InitPayload `json:"init,omitempty"`
	InitAck  *InitAck     `json:"initAck,omitempty"`
	Request  *wire.RequestFrame  `json:"request,omitempty"`
	Response *wire.ResponseFrame `json:"response,omitempty"`
	Exception *wire.ExceptionFrame `json:"exception,omitempty"`

	Data   []byte `json:"data,omitempty"`
	Signal string `json:"signal,omitempty"`
	Error  string `json:"error,omitempty"`
}

// InitPayload is the session-setup request a controller sends to fork n
// workers from path on the proxy.
type InitPayload struct {
	Count   int         `json:"count"`
	Path    string      `json:"path"`
	Options InitOptions `json:"options"`
}

// InitOptions carries the per-worker naming/arguments a controller supplies
// for an init request.
type InitOptions struct {
	AliasPrefix string   `json:"aliasPrefix,omitempty"`
	Group       string   `json:"group,omitempty"`
	Args        []string `json:"args,omitempty"`
}

// InitAck is the proxy's reply to an init request: the remote worker ids it
// assigned, one per spawned child, in request order. Error is set instead
// when none could be spawned (auth already happened at the upgrade, so this
// is reserved for script/spawn failures).
type InitAck struct {
	WorkerIDs []uint64 `json:"workerIds"`
	Error     string   `json:"error,omitempty"`
}
