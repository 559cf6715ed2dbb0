package wire

import (
	"fmt"
	"time"
)

// ResponseError is the error shape a worker attaches to a Response, or that
// the controller synthesizes for a Timeout/Disconnected response. Name is a
// semantic kind, not a Go type.
type ResponseError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *ResponseError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Well-known ResponseError.Name values.
const (
	ErrNameTimeout      = "Timeout"
	ErrNameDisconnected = "Disconnected"
	ErrNameReference    = "ReferenceError"
	ErrNameWorker       = "WorkerError"
	ErrNameNotAccepting = "NotAcceptingMessages"
)

// Response is the immutable record a controller builds when a worker replies,
// or synthesizes itself for a timeout.
type Response struct {
	TXID         uint64         `json:"txid"`
	RID          uint64         `json:"rid"`
	FromWorkerID uint64         `json:"from"`
	SentAt       time.Time      `json:"-"`
	ReceivedAt   time.Time      `json:"-"`
	Value        any            `json:"data"`
	Err          *ResponseError `json:"error"`
	Command      Command        `json:"command"`
}

// Duration is received-ts minus the originating request's sent-ts.
func (r Response) Duration() time.Duration {
	return r.ReceivedAt.Sub(r.SentAt)
}

// IsError reports whether the response carries a worker- or controller-
// synthesized error.
func (r Response) IsError() bool {
	return r.Err != nil
}

func (r Response) String() string {
	return fmt.Sprintf("Response: from=%d, txid=%d, rid=%d, received=%d, error=%t",
		r.FromWorkerID, r.TXID, r.RID, r.ReceivedAt.UnixMilli(), r.IsError())
}

// IsTimeout reports whether r is a TimeoutResponse (a Response subtype
// produced by the controller itself when the TTL elapses).
func (r Response) IsTimeout() bool {
	return r.Err != nil && r.Err.Name == ErrNameTimeout
}

// IsDisconnected reports whether r was synthesized because the transport
// went away while the request was pending.
func (r Response) IsDisconnected() bool {
	return r.Err != nil && r.Err.Name == ErrNameDisconnected
}

// NewTimeoutResponse builds the Response the dispatcher completes a future
// with when a request's TTL elapses.
func NewTimeoutResponse(req Request, fired time.Time, ttl time.Duration) Response {
	return Response{
		RID:          req.RID,
		FromWorkerID: req.TargetWorkerID,
		SentAt:       req.SentAt,
		ReceivedAt:   fired,
		Command:      req.Command,
		Err: &ResponseError{
			Name: ErrNameTimeout,
			Message: fmt.Sprintf("Request #%d with command %q timed out after %s.",
				req.RID, req.Command, formatMillis(ttl)),
		},
	}
}

// NewDisconnectedResponse builds the Response the dispatcher completes a
// future with when the owning handle is torn down while the request is
// still pending.
func NewDisconnectedResponse(req Request, at time.Time) Response {
	return Response{
		RID:          req.RID,
		FromWorkerID: req.TargetWorkerID,
		SentAt:       req.SentAt,
		ReceivedAt:   at,
		Command:      req.Command,
		Err: &ResponseError{
			Name:    ErrNameDisconnected,
			Message: fmt.Sprintf("Worker #%d disconnected with request #%d pending.", req.TargetWorkerID, req.RID),
		},
	}
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// ResponseFrame is the JSON shape of a Response as it crosses the wire from a
// worker. EchoedRequest is the original request with the secret pair
// scrubbed.
type ResponseFrame struct {
	Title        string         `json:"title"`
	Sent         int64          `json:"sent"`
	Request      EchoedRequest  `json:"request"`
	Err          *ResponseError `json:"error"`
	Data         any            `json:"data"`
	SecretID     string         `json:"secretId"`
	SecretNumber uint64         `json:"secretNumber"`
}

const responseFrameTitle = "SlaveIOResponse"

// EchoedRequest is the subset of a Request a worker echoes back on its
// Response, with the secret pair scrubbed after verification.
type EchoedRequest struct {
	RID     uint64  `json:"rid"`
	For     uint64  `json:"for"`
	Command Command `json:"command"`
}

// NewResponseFrame builds the wire frame a worker sends back for req.
func NewResponseFrame(req RequestFrame, value any, errv *ResponseError, sentAt time.Time) ResponseFrame {
	return ResponseFrame{
		Title: responseFrameTitle,
		Sent:  sentAt.UnixMilli(),
		Request: EchoedRequest{
			RID:     req.RID,
			For:     req.For,
			Command: req.Command,
		},
		Err:          errv,
		Data:         value,
		SecretID:     req.SecretID,
		SecretNumber: req.SecretNumber,
	}
}

// Verify reports whether f's title and echoed secret pair match what the
// controller attached to the originating request. A frame failing
// verification is discarded silently.
func (f ResponseFrame) Verify(wantSecretID string, wantSecretNumber uint64) bool {
	return f.Title == responseFrameTitle && f.SecretID == wantSecretID && f.SecretNumber == wantSecretNumber
}

// ExceptionFrame is the out-of-band frame a worker sends for an uncaught
// exception not tied to any rid.
type ExceptionFrame struct {
	Title string        `json:"title"`
	From  uint64        `json:"from"`
	Sent  int64         `json:"sent"`
	Err   ResponseError `json:"error"`
}

const exceptionFrameTitle = "SlaveIOException"

// NewExceptionFrame builds the out-of-band exception frame for workerID.
func NewExceptionFrame(workerID uint64, err ResponseError, at time.Time) ExceptionFrame {
	return ExceptionFrame{Title: exceptionFrameTitle, From: workerID, Sent: at.UnixMilli(), Err: err}
}

// IsExceptionFrame reports whether title matches the exception frame magic.
func IsExceptionFrame(title string) bool { return title == exceptionFrameTitle }

// IsResponseFrame reports whether title matches the response frame magic.
func IsResponseFrame(title string) bool { return title == responseFrameTitle }

// InboundFrame is the superset shape a handle's reader decodes every
// worker-originated frame into before branching on Title, since a response
// and an exception frame otherwise have incompatible field sets.
type InboundFrame struct {
	Title        string         `json:"title"`
	Sent         int64          `json:"sent"`
	Request      EchoedRequest  `json:"request"`
	Err          *ResponseError `json:"error"`
	Data         any            `json:"data"`
	SecretID     string         `json:"secretId"`
	SecretNumber uint64         `json:"secretNumber"`
	From         uint64         `json:"from"`
}

// IsResponse reports whether f is a response frame.
func (f InboundFrame) IsResponse() bool { return f.Title == responseFrameTitle }

// IsException reports whether f is an out-of-band exception frame.
func (f InboundFrame) IsException() bool { return f.Title == exceptionFrameTitle }

// AsResponseFrame projects f onto a ResponseFrame.
func (f InboundFrame) AsResponseFrame() ResponseFrame {
	return ResponseFrame{
		Title:        f.Title,
		Sent:         f.Sent,
		Request:      f.Request,
		Err:          f.Err,
		Data:         f.Data,
		SecretID:     f.SecretID,
		SecretNumber: f.SecretNumber,
	}
}

// AsExceptionFrame projects f onto an ExceptionFrame.
func (f InboundFrame) AsExceptionFrame() ExceptionFrame {
	errv := ResponseError{}
	if f.Err != nil {
		errv = *f.Err
	}
	return ExceptionFrame{Title: f.Title, From: f.From, Sent: f.Sent, Err: errv}
}
