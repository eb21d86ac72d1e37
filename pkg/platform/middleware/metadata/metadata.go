// Package metadata records where a request came from.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"clocklayer/pkg/requestcontext"
)

// Proxies is the set of peers allowed to report the client address through
// X-Forwarded-For or X-Real-IP. Headers from any other peer are ignored,
// since a client could otherwise pick its own rate-limit key.
type Proxies struct {
	prefixes []netip.Prefix
}

// ParseProxies accepts CIDR ranges and bare addresses.
func ParseProxies(entries []string) (*Proxies, error) {
	p := &Proxies{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			p.prefixes = append(p.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

func (p *Proxies) trusts(addr netip.Addr) bool {
	if p == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientMetadata stores the client IP and User-Agent in the request context.
// Signup stamps the User-Agent on new user records and rate limiting keys on
// the IP, so it must run before those routes.
func ClientMetadata(proxies *Proxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), proxies.ClientIP(r), r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the socket peer unless it is a trusted proxy. Behind a
// trusted proxy the X-Forwarded-For chain is read right to left and the
// first hop that is not itself a trusted proxy is the client.
func (p *Proxies) ClientIP(r *http.Request) string {
	peer := peerAddress(r.RemoteAddr)
	if peer == "" {
		return "unknown"
	}
	if !p.trusts(parseAddr(peer)) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := parseAddr(strings.TrimSpace(hops[i]))
		if !hop.IsValid() {
			continue
		}
		if !p.trusts(hop) {
			return hop.String()
		}
	}
	if realIP := parseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); realIP.IsValid() {
		return realIP.String()
	}
	return peer
}

func peerAddress(remote string) string {
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		// No port, e.g. a unix socket peer or a bare address.
		return strings.Trim(remote, "[]")
	}
	return host
}

func parseAddr(s string) netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}
