package wire

import "time"

// Request is the immutable record a controller sends to a worker. RID plus
// TargetWorkerID is the correlation key used to match a future reply.
type Request struct {
	RID            uint64        `json:"rid"`
	TargetWorkerID uint64        `json:"for"`
	Command        Command       `json:"command"`
	Data           any           `json:"data,omitempty"`
	Meta           Meta          `json:"meta"`
	CreatedAt      time.Time     `json:"created"`
	SentAt         time.Time     `json:"sent"`
	TTL            time.Duration `json:"-"`

	// SecretID/SecretNumber are attached by the dispatcher to every outbound
	// request and must be echoed back on the Response; see ResponseFrame.
	SecretID     string `json:"secretId"`
	SecretNumber uint64 `json:"secretNumber"`
}

// requestFrameTitle is the literal magic token a worker requires on every
// inbound frame.
const requestFrameTitle = "MasterIOMessage"

// RequestFrame is the JSON shape of a Request as it crosses the wire to a
// worker.
type RequestFrame struct {
	Title        string        `json:"title"`
	RID          uint64        `json:"rid"`
	For          uint64        `json:"for"`
	Command      Command       `json:"command"`
	Data         any           `json:"data,omitempty"`
	Meta         Meta          `json:"meta"`
	Created      int64         `json:"created"`
	Sent         int64         `json:"sent"`
	SecretID     string        `json:"secretId"`
	SecretNumber uint64        `json:"secretNumber"`
}

// ToFrame renders r as the wire frame a worker expects.
func (r Request) ToFrame() RequestFrame {
	return RequestFrame{
		Title:        requestFrameTitle,
		RID:          r.RID,
		For:          r.TargetWorkerID,
		Command:      r.Command,
		Data:         r.Data,
		Meta:         r.Meta,
		Created:      r.CreatedAt.UnixMilli(),
		Sent:         r.SentAt.UnixMilli(),
		SecretID:     r.SecretID,
		SecretNumber: r.SecretNumber,
	}
}

// Valid reports whether f carries the controller magic token plus the
// required numeric rid and target id; a frame missing any of these is
// dropped before it reaches the task dispatcher.
func (f RequestFrame) Valid() bool {
	return f.Title == requestFrameTitle && f.RID != 0 && f.For != 0
}

// FromFrame reconstructs a Request from its wire frame.
func FromFrame(f RequestFrame) Request {
	return Request{
		RID:            f.RID,
		TargetWorkerID: f.For,
		Command:        f.Command,
		Data:           f.Data,
		Meta:           f.Meta,
		CreatedAt:      time.UnixMilli(f.Created),
		SentAt:         time.UnixMilli(f.Sent),
		SecretID:       f.SecretID,
		SecretNumber:   f.SecretNumber,
	}
}
