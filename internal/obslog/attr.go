package obslog

import (
	"log/slog"
	"time"
)

// WorkerID creates an attribute for a worker's numeric id.
func WorkerID(id uint64) slog.Attr {
	return slog.Uint64("worker_id", id)
}

// RID creates an attribute for a request's correlation id.
func RID(rid uint64) slog.Attr {
	return slog.Uint64("rid", rid)
}

// Alias creates an attribute for a worker's registered alias. Returns an
// empty Attr when alias is unset, so callers can log it unconditionally.
func Alias(alias string) slog.Attr {
	if alias == "" {
		return slog.Attr{}
	}
	return slog.String("alias", alias)
}

// Group creates a group of attributes under a single key.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Command creates an attribute for a task command name.
func Command(cmd string) slog.Attr {
	return slog.String("command", cmd)
}

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for a nil error, enabling safe use without a nil
// check at the call site.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed logs the duration since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// RemoteAddr creates an attribute for a remote peer's address, used by the
// proxy for connecting workers.
func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

// Event creates an attribute for a named lifecycle event (init, disconnect,
// remote-killed, and similar).
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
