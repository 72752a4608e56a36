package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
)

// keyHeader carries the shared key when the client cannot use a query
// parameter.
const keyHeader = "X-Gateway-Key"

// Gatekeeper decides whether an inbound connection may open a session.
// Two independent checks: the Origin header against the allow-list, and
// the shared key when one is configured.
type Gatekeeper struct {
	cfg config.SecurityConfig
}

// NewGatekeeper creates a gatekeeper from the security configuration.
func NewGatekeeper(cfg config.SecurityConfig) *Gatekeeper {
	return &Gatekeeper{cfg: cfg}
}

// Admit reports whether the request may proceed. The reason is safe to
// return to the client; it never echoes the configured key or origins.
//
// A missing Origin header passes the origin check: non-browser clients
// (curl, native wrappers) send none, and the header is trivially
// forgeable outside a browser anyway. The check exists to stop hostile
// web pages riding on the browser's same-machine network access.
func (g *Gatekeeper) Admit(r *http.Request) (bool, string) {
	if origin := r.Header.Get("Origin"); origin != "" && !g.originAllowed(origin) {
		return false, "origin not allowed"
	}

	if g.cfg.SharedKey != "" {
		key := r.URL.Query().Get("key")
		if key == "" {
			key = r.Header.Get(keyHeader)
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(g.cfg.SharedKey)) != 1 {
			return false, "invalid or missing key"
		}
	}

	return true, ""
}

// originAllowed matches by prefix so "http://localhost" covers any port.
func (g *Gatekeeper) originAllowed(origin string) bool {
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
