package orchestrate

import "errors"

// Sentinel errors for the orchestration patterns.
var (
	// ErrMissingTarget rejects the returned future before any send when a
	// Parallel or Pipeline task has no handle assigned.
	ErrMissingTarget = errors.New("orchestrate: missing target")

	// ErrNoTargets rejects the returned future before any send when Scatter
	// or a Workpool is given an empty worker list.
	ErrNoTargets = errors.New("orchestrate: no targets")
)
