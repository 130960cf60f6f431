package netutil

import "net"

// MustParseCIDRs parses CIDR strings into []*net.IPNet. Invalid entries are
// skipped rather than aborting startup.
func MustParseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, s := range cidrs {
		if _, n, err := net.ParseCIDR(s); err == nil && n != nil {
			out = append(out, n)
		}
	}
	return out
}
