package ssrf

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/netip"
)

// cloud-metadata endpoints get named checks: they are the highest-value
// SSRF target and must never depend on range classification alone
var metadataAddrs = []netip.Addr{
	netip.MustParseAddr("169.254.169.254"),
	netip.MustParseAddr("fd00:ec2::254"),
}

// Resolver resolves hostnames to addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// DNSValidator re-resolves a hostname at request time and rejects any
// resolution that includes a forbidden address. Results are deliberately
// never cached: a hostname that resolved publicly a moment ago may resolve
// privately now (DNS rebinding), so every call performs a fresh lookup.
type DNSValidator struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewDNSValidator creates a DNS validator. A nil resolver uses the system
// resolver; a nil logger discards logs.
func NewDNSValidator(resolver Resolver, logger *slog.Logger) *DNSValidator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DNSValidator{resolver: resolver, logger: logger}
}

// Resolve looks up host and returns its addresses only if every one of them
// is publicly routable. A single forbidden address rejects the whole
// resolution, since the dialer cannot control which address a later
// connection would use.
func (d *DNSValidator) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	addrs, err := d.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, reject("dns resolution for %q failed: %v", host, err)
	}
	if len(addrs) == 0 {
		return nil, reject("dns resolution for %q returned no addresses", host)
	}

	for _, addr := range addrs {
		if why := forbiddenAddr(addr); why != "" {
			d.logger.Warn("dns resolution rejected",
				"host", host, "addr", addr.String(), "reason", why)
			return nil, reject("host %q resolves to %s address %s", host, why, addr)
		}
	}
	return addrs, nil
}

// forbiddenAddr classifies an address; the empty string means the address
// is acceptable for an outbound request
func forbiddenAddr(addr netip.Addr) string {
	addr = addr.Unmap()

	for _, meta := range metadataAddrs {
		if addr == meta {
			return "cloud-metadata"
		}
	}

	switch {
	case addr.IsLoopback():
		return "loopback"
	case addr.IsPrivate():
		return "private"
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return "link-local"
	case addr.IsMulticast():
		return "multicast"
	case addr.IsUnspecified():
		return "unspecified"
	}

	if addr.Is4() {
		if reservedRange4(addr) {
			return "reserved"
		}
	}
	return ""
}

// reservedRange4 covers IPv4 ranges that netip does not classify: carrier
// NAT, documentation, benchmarking, and class E
var reserved4 = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),   // carrier-grade NAT
	netip.MustParsePrefix("192.0.0.0/24"),    // IETF protocol assignments
	netip.MustParsePrefix("192.0.2.0/24"),    // documentation (TEST-NET-1)
	netip.MustParsePrefix("198.18.0.0/15"),   // benchmarking
	netip.MustParsePrefix("198.51.100.0/24"), // documentation (TEST-NET-2)
	netip.MustParsePrefix("203.0.113.0/24"),  // documentation (TEST-NET-3)
	netip.MustParsePrefix("240.0.0.0/4"),     // class E
}

func reservedRange4(addr netip.Addr) bool {
	for _, p := range reserved4 {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
