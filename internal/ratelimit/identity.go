package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// LoopbackIdentity is used when a request carries no usable address at all.
const LoopbackIdentity = "127.0.0.1"

var identityHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
}

// ClientIdentity derives the rate-limit identity of a request: the first usable
// forwarding header, then the peer address, then a loopback placeholder.
func ClientIdentity(r *http.Request) string {
	for _, h := range identityHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		// X-Forwarded-For is a list; the left-most entry is the original client.
		first := strings.TrimSpace(strings.Split(v, ",")[0])
		if first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return LoopbackIdentity
}
