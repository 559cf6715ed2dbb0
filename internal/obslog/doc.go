// Package obslog builds the structured logger used across the controller,
// worker runtime, and proxy. It is a thin functional-options wrapper around
// log/slog plus a set of domain attribute helpers (worker id, rid, alias,
// command) so every package logs the same shape of record.
//
//	log := obslog.New(
//		obslog.WithProduction("distio-proxy"),
//		obslog.WithAttr(slog.String("version", version)),
//	)
//	log.Info("worker registered", obslog.WorkerID(7), obslog.Alias("render-1"))
package obslog
