// Package remote is the controller-side counterpart of a proxy-hosted
// worker: it speaks the same Request/Response contract as controller.Handle,
// but tunnels it over a websocket to a proxy.Server instead of a local
// child process's stdio pipes.
//
// A Session owns one websocket connection to a proxy and multiplexes any
// number of remote workers spawned on it through CreateWorkers. Each
// resulting Handle satisfies controller.Handle and plugs into the same
// Dispatcher and Registry a LocalHandle would.
package remote
