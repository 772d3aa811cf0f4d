package netutil

import (
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const (
	forwardedForHeaderName = "X-Forwarded-For"
)

// GetClientIPFromRequest gets the originating client IP for an HTTP request.
//
// The X-Forwarded-For header set by the trusted edge proxy takes priority.
// The value is never read from a request body, so clients cannot spoof the
// IP the rate limiter keys on.
func GetClientIPFromRequest(r *http.Request) (string, error) {
	forwardedFor := r.Header.Get(forwardedForHeaderName)
	if len(forwardedFor) > 0 {
		// The first entry is the originating client when the header is set
		// by a trusted proxy.
		parts := strings.Split(forwardedFor, ",")
		ip := strings.TrimSpace(parts[0])
		if net.ParseIP(ip) == nil {
			return "", errors.New("forwarded-for header is not an ip address")
		}
		return ip, nil
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may already be a bare IP in tests
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr, nil
		}
		return "", errors.Wrap(err, "cannot parse remote address")
	}

	if net.ParseIP(host) == nil {
		return "", errors.New("remote address is not an ip address")
	}
	return host, nil
}
