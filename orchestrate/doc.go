// Package orchestrate implements the four higher-level choreographies built
// on top of a controller.Dispatcher and controller.Registry: Broadcast
// (fan-out with an aggregated, from-id-sorted result), Workpool (idle-aware
// round-robin dispatch with a pending-slot queue), Parallel (a declarative
// task bag executed once or in repeated rounds), and Pipeline (an ordered
// task chain where each response feeds the next request). Scatter is a
// standalone helper that distributes a data set across a worker list using
// the same primitives.
package orchestrate
