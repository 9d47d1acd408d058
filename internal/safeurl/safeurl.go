package safeurl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned for URLs that cannot be parsed, use a
	// disallowed scheme, or lack a resolvable host.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsafeTarget is returned for URLs pointing at loopback, private, or
	// link-local targets that an outbound fetch must never reach.
	ErrUnsafeTarget = errors.New("unsafe url target")
)

// deniedHosts are literal hostnames rejected without resolving.
var deniedHosts = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
}

// Resolver looks up the IP addresses of a hostname. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Gate validates user-supplied URLs before any outbound fetch is allowed.
type Gate struct {
	resolver Resolver
}

// New creates a Gate using the system DNS resolver.
func New() *Gate {
	return &Gate{resolver: net.DefaultResolver}
}

// NewWithResolver creates a Gate with a custom resolver, for tests.
func NewWithResolver(r Resolver) *Gate {
	return &Gate{resolver: r}
}

// Validate checks that raw is an http(s) URL whose host is a public address,
// and returns the canonical URL string. Hostnames are resolved here, at
// validation time, and every resolved address is re-checked; resolution is
// never cached across requests, which closes the DNS-rebinding window
// between an earlier lookup and the fetch.
func (g *Gate) Validate(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: only http and https are allowed", ErrInvalidURL)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if _, denied := deniedHosts[host]; denied {
		return "", fmt.Errorf("%w: %s", ErrUnsafeTarget, host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !isPublic(addr) {
			return "", fmt.Errorf("%w: %s", ErrUnsafeTarget, host)
		}
		return u.String(), nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("%w: host %q does not resolve", ErrInvalidURL, host)
	}
	for _, addr := range addrs {
		if !isPublic(addr) {
			return "", fmt.Errorf("%w: %s resolves to %s", ErrUnsafeTarget, host, addr)
		}
	}

	return u.String(), nil
}

// isPublic rejects every address class an attacker could use to reach the
// host itself or its internal network.
func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified():
		return false
	}
	return true
}
