package proxy

import (
	"net/http"

	"github.com/dmitrymomot/distio/internal/proxyauth"
	"github.com/dmitrymomot/distio/pkg/clientip"
)

// authorize checks the IP whitelist and basic-auth requirements configured
// on s, both optional and composable with AND. A request satisfying neither
// restriction (none configured) is always authorized.
func (s *Server) authorize(r *http.Request) error {
	if len(s.authorizedIPs) > 0 {
		ip := clientip.GetIP(r)
		matched := false
		for _, re := range s.authorizedIPs {
			if re.MatchString(ip) {
				matched = true
				break
			}
		}
		if !matched {
			return ErrUnauthorized
		}
	}

	if s.basicAuth != nil && !s.hasValidSessionToken(r) {
		token := r.Header.Get("Authorization")
		if token == "" {
			return ErrUnauthorized
		}
		user, pass, err := proxyauth.Decode(token, s.basicAuth.Passphrase)
		if err != nil || user != s.basicAuth.User || pass != s.basicAuth.Pass {
			return ErrUnauthorized
		}
	}

	return nil
}

// hasValidSessionToken reports whether r carries a still-valid resumption
// token from a prior successful handshake, letting a reconnecting
// remote.Session skip re-presenting basic credentials.
func (s *Server) hasValidSessionToken(r *http.Request) bool {
	token := r.Header.Get(sessionTokenHeader)
	if token == "" {
		return false
	}
	_, err := s.sessionTokens.Parse(token)
	return err == nil
}
