package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP for rate limiting and request logs.
//
// It reads r.RemoteAddr only. Behind a proxy, chi's RealIP middleware has
// already rewritten RemoteAddr from X-Real-IP / X-Forwarded-For, and in that
// case the value carries no port.
func RealClientIP(r *http.Request) string {
	return Normalize(r.RemoteAddr)
}

// Normalize strips the port, IPv6 brackets and zone from addr. Values that do
// not parse as an IP are returned trimmed so they still key a limiter.
func Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
