package common

import (
	"net"
	"net/http"
	"strings"
)

// RemoteIP returns the host part of r.RemoteAddr. Forwarding headers are not
// read here; behind a trusted proxy middleware.RealIP has already rewritten
// RemoteAddr before this runs.
func RemoteIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
