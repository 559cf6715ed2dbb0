package workerrt

import "github.com/dmitrymomot/distio/wire"

// CompleteFunc resolves a pending request. If result is an error, the
// response carries it as a ResponseError; otherwise result becomes the
// response's data payload.
type CompleteFunc func(result any)

// HandlerFunc services one request. data is the request payload, meta
// carries the recognized per-request options, and raw is the full decoded
// request in case a handler needs its rid or target id.
type HandlerFunc func(data any, complete CompleteFunc, meta wire.Meta, raw wire.Request)
