package clientip

import (
	"net"
	"net/http"
	"strings"
)

// headerPriority lists the headers GetIP checks, in priority order, before
// falling back to the connection's own remote address.
var headerPriority = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP extracts the real client address from r, checking proxy headers in
// priority order before falling back to r.RemoteAddr. Invalid or zero
// addresses are skipped; if nothing valid is found the raw RemoteAddr is
// returned unparsed.
func GetIP(r *http.Request) string {
	for _, header := range headerPriority {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		for _, candidate := range strings.Split(value, ",") {
			if ip := normalize(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalize(host); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// normalize validates and canonicalizes candidate, rejecting the sentinel
// 0.0.0.0 address that indicates no real client was identified.
func normalize(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	parsed := net.ParseIP(candidate)
	if parsed == nil || parsed.IsUnspecified() {
		return ""
	}
	return parsed.String()
}
