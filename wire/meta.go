package wire

import "time"

// Meta carries the recognized per-request options a caller can attach to a
// dispatch: a TTL override, a catchAll override, and a scatter hint.
type Meta struct {
	// Timeout is the request-level TTL. Zero means "use the handle or
	// controller default, or no timeout if neither is set".
	Timeout time.Duration `json:"timeout,omitempty"`

	// CatchAll, if non-nil, overrides handle and controller scope: true
	// makes an error-bearing Response reject the awaiting future, false
	// resolves the future with it. A nil value means "not set at request
	// scope" and defers to handle/controller scope.
	CatchAll *bool `json:"catchAll,omitempty"`

	// Chunk, meaningful only to orchestrate.Scatter, requests pre-batching
	// of the payload across workers instead of one request per item.
	Chunk bool `json:"chunk,omitempty"`
}

// ResolveTimeout picks the first non-zero TTL among the request-level,
// handle-level, and controller-level defaults, in that precedence order.
func ResolveTimeout(requestLevel, handleLevel, controllerLevel time.Duration) time.Duration {
	switch {
	case requestLevel > 0:
		return requestLevel
	case handleLevel > 0:
		return handleLevel
	default:
		return controllerLevel
	}
}

// ResolveCatchAll applies the catchAll override order: request meta overrides
// handle scope, handle scope overrides controller scope, and the default
// (all three unset) is off.
func ResolveCatchAll(request, handle *bool, controller bool) bool {
	if request != nil {
		return *request
	}
	if handle != nil {
		return *handle
	}
	return controller
}
