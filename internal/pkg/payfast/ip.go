package payfast

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// DefaultValidCIDRs are the published PayFast notification source ranges.
var DefaultValidCIDRs = []string{
	"197.97.145.144/28",
	"41.74.179.192/27",
	"102.216.36.0/28",
	"102.216.36.128/28",
	"144.126.193.139/32",
}

// IPAllowList matches notification sender addresses against CIDR ranges.
type IPAllowList struct {
	prefixes []netip.Prefix
}

// NewIPAllowList parses CIDRs or bare addresses. An empty list falls back to DefaultValidCIDRs.
func NewIPAllowList(cidrs []string) (*IPAllowList, error) {
	if len(cidrs) == 0 {
		cidrs = DefaultValidCIDRs
	}

	l := &IPAllowList{}
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid payfast ip %q: %w", raw, err)
			}
			l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid payfast cidr %q: %w", raw, err)
		}
		l.prefixes = append(l.prefixes, prefix.Masked())
	}
	return l, nil
}

// Allowed reports whether remote (an IP, optionally with port) is inside the list.
func (l *IPAllowList) Allowed(remote string) bool {
	if l == nil {
		return false
	}
	host := strings.TrimSpace(remote)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
