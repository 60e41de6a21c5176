package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/url"
	"strings"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Accept", "Accept-Language", "Content-Type", "Authorization", RequestIDHeader}, ", ")
)

// originPolicy is a compiled CORS allow list. Patterns are exact origins
// ("https://plotter.example.com:8443"), subdomain wildcards ("*.example.com",
// which excludes example.com itself) or "*".
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string // ".example.com"
}

// newOriginPolicy compiles patterns. It returns nil for an empty list.
func newOriginPolicy(patterns []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{})}
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		switch {
		case pat == "":
		case pat == "*":
			p.any = true
		case strings.HasPrefix(pat, "*."):
			p.suffixes = append(p.suffixes, strings.ToLower(pat[1:]))
		default:
			p.exact[strings.TrimSuffix(pat, "/")] = struct{}{}
		}
	}
	if !p.any && len(p.exact) == 0 && len(p.suffixes) == 0 {
		return nil
	}
	return p
}

// allows reports whether origin passes the policy. A nil policy allows
// nothing.
func (p *originPolicy) allows(origin string) bool {
	if p == nil || origin == "" {
		return false
	}
	if p.any {
		return true
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	host := strings.ToLower(extractHost(origin))
	for _, suffix := range p.suffixes {
		if len(host) > len(suffix) && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// corsMiddleware answers preflights and decorates responses for allowed
// origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Add("Vary", "Origin")

		if origin := r.Header.Get("Origin"); s.origins.allows(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkWebSocketOrigin applies the CORS allow list to websocket upgrades.
// Without an allow list only same-host origins may connect.
func (s *Server) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.origins != nil {
		return s.origins.allows(origin)
	}
	return strings.EqualFold(extractHost(origin), extractHost(r.Host))
}

// extractHost returns the host name of an origin or host:port string,
// without port or path.
func extractHost(origin string) string {
	if !strings.Contains(origin, "://") {
		origin = "//" + origin
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
