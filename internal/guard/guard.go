// Package guard validates user-supplied URLs before any fetch is attempted.
// It rejects non-web schemes, known internal hostnames, and any address
// (literal or DNS-resolved) that falls in a private, loopback, link-local,
// or carrier-NAT range.
package guard

import (
	"context"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Validation failure classes. Callers distinguish them with errors.Is.
var (
	ErrInvalidURL     = eris.New("guard: invalid url")
	ErrBlockedHost    = eris.New("guard: blocked host")
	ErrBlockedNetwork = eris.New("guard: blocked network range")
)

// blockedHosts are rejected by exact hostname match.
var blockedHosts = map[string]bool{
	"localhost":                 true,
	"127.0.0.1":                 true,
	"0.0.0.0":                   true,
	"::1":                       true,
	"169.254.169.254":           true,
	"metadata.google.internal":  true,
	"metadata.goog":             true,
	"instance-data":             true,
}

// blockedSuffixes reject internal-domain naming conventions.
var blockedSuffixes = []string{
	".localhost",
	".local",
	".internal",
	".corp",
	".home",
	".lan",
	".intranet",
}

// blockedRanges are the address ranges a target may never resolve into.
var blockedRanges = func() []netip.Prefix {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // private
		"172.16.0.0/12",  // private
		"192.168.0.0/16", // private
		"169.254.0.0/16", // link-local (incl. cloud metadata)
		"100.64.0.0/10",  // carrier-grade NAT
		"0.0.0.0/8",      // "this network"
		"::1/128",        // loopback
		"fe80::/10",      // link-local
		"fc00::/7",       // unique-local
		"::ffff:0:0/96",  // IPv4-mapped, checked again after unmapping
	}
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		prefixes = append(prefixes, netip.MustParsePrefix(c))
	}
	return prefixes
}()

// Guard validates target URLs. The zero Resolver is the system resolver.
type Guard struct {
	resolver   *net.Resolver
	dnsTimeout time.Duration
}

// New creates a Guard using the system DNS resolver.
func New() *Guard {
	return &Guard{
		resolver:   net.DefaultResolver,
		dnsTimeout: 5 * time.Second,
	}
}

// NewWithResolver creates a Guard with an injected resolver, for tests and
// for environments with a dedicated validating resolver.
func NewWithResolver(r *net.Resolver) *Guard {
	g := New()
	if r != nil {
		g.resolver = r
	}
	return g
}

// Validate checks a raw URL against the scheme allowlist, the blocked-host
// tables, and the blocked network ranges, resolving the hostname first so
// a public name pointing at an internal address is caught before the fetch.
//
// The later render step re-resolves independently; the answer at fetch time
// is not re-validated. Pinning the validated address through the headless
// browser is out of scope here.
//
// DNS failures that are not themselves a block-rule hit are swallowed: the
// fetch will fail on its own, with a clearer error.
func (g *Guard) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return eris.Wrapf(ErrInvalidURL, "parse %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return eris.Wrapf(ErrInvalidURL, "scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return eris.Wrap(ErrInvalidURL, "missing host")
	}

	if blockedHosts[host] {
		return eris.Wrapf(ErrBlockedHost, "host %q", host)
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return eris.Wrapf(ErrBlockedHost, "host %q matches %q", host, suffix)
		}
	}

	// Literal IP: check directly, no DNS needed.
	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return eris.Wrapf(ErrBlockedNetwork, "address %s", addr)
		}
		return nil
	}

	return g.checkResolved(ctx, host)
}

// checkResolved performs forward A/AAAA resolution and rejects when any
// resolved address is in a blocked range.
func (g *Guard) checkResolved(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, g.dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		// Unresolvable hosts are not a validation failure; let the fetch
		// surface the real error.
		return nil
	}
	for _, addr := range addrs {
		if isBlockedAddr(addr) {
			return eris.Wrapf(ErrBlockedNetwork, "host %q resolves to %s", host, addr)
		}
	}
	return nil
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
