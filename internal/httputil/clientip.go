package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the address a request came from, for rate limiting
// and request logs. With trustProxy set, forwarding headers win over the
// socket address: the leftmost X-Forwarded-For entry, then X-Real-IP.
// Leave trustProxy off unless a trusted reverse proxy sets those headers,
// since clients can forge them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
