package locate

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ParseTrustedProxies parses a comma-separated list of CIDR prefixes or bare
// addresses. Blank entries are skipped.
func ParseTrustedProxies(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.Contains(item, "/") {
			addr, err := netip.ParseAddr(item)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(item)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// ClientAddr returns the address a request should be attributed to. The
// X-Forwarded-For chain is honoured only when the direct peer is a trusted
// proxy; it is walked from the right and the first untrusted hop wins.
func ClientAddr(peer, forwardedFor string, trusted []netip.Prefix) string {
	addr, ok := hostAddr(peer)
	if !ok || !isTrusted(addr, trusted) || strings.TrimSpace(forwardedFor) == "" {
		return peer
	}
	hops := strings.Split(forwardedFor, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		a, ok := hostAddr(hop)
		if !ok {
			// Unparseable hop: fall back to the peer.
			return addr.String()
		}
		if i == 0 || !isTrusted(a, trusted) {
			return a.String()
		}
	}
	return peer
}

func hostAddr(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func isTrusted(a netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
