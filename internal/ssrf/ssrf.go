// Package ssrf guards outbound HTTP fetches against server-side request
// forgery: it resolves a target URL's hostname and rejects anything that
// points at loopback, link-local, private, or cloud-metadata addresses
// before a single byte is fetched.
package ssrf

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Error reports why a URL was rejected.
type Error struct {
	URL    string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("ssrf: rejected %q: %s", e.URL, e.Reason) }

func reject(rawURL, reason string) error { return &Error{URL: rawURL, Reason: reason} }

// Target is a URL that has passed SSRF validation.
type Target struct {
	Hostname   string
	ResolvedIP net.IP
	Port       string
	Scheme     string
}

var blockedHostnames = map[string]bool{
	"localhost":             true,
	"localhost.localdomain": true,
	"ip6-localhost":         true,
	"ip6-loopback":          true,
	"0.0.0.0":               true,
}

var metadataAddr = net.ParseIP("169.254.169.254")

var privateBlocks = mustParseCIDRs(
	"127.0.0.0/8",
	"169.254.0.0/16",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
	"fec0::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// Resolver resolves a hostname to IP addresses. net.DefaultResolver
// satisfies this; tests can substitute a fake.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates URLs before they are fetched.
type Guard struct {
	resolver Resolver
}

// Option configures a Guard.
type Option func(*Guard)

// WithResolver overrides the DNS resolver used for hostname lookups.
func WithResolver(r Resolver) Option {
	return func(g *Guard) { g.resolver = r }
}

// New constructs a Guard using net.DefaultResolver unless overridden.
func New(opts ...Option) *Guard {
	g := &Guard{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate parses rawURL, resolves its hostname if necessary, and returns
// the validated Target or an *Error describing the rejection.
func (g *Guard) Validate(ctx context.Context, rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, reject(rawURL, "unparseable url")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, reject(rawURL, "scheme must be http or https")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return Target{}, reject(rawURL, "missing hostname")
	}
	if blockedHostnames[strings.ToLower(hostname)] {
		return Target{}, reject(rawURL, "hostname is blocklisted")
	}

	port := u.Port()
	if port == "" {
		if scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if err := checkAddr(ip); err != nil {
			return Target{}, reject(rawURL, err.Error())
		}
		return Target{Hostname: hostname, ResolvedIP: ip, Port: port, Scheme: scheme}, nil
	}

	addrs, err := g.resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		return Target{}, reject(rawURL, "dns resolution failed: "+err.Error())
	}
	if len(addrs) == 0 {
		return Target{}, reject(rawURL, "dns resolution returned no addresses")
	}
	resolved := addrs[0].IP
	if err := checkAddr(resolved); err != nil {
		return Target{}, reject(rawURL, err.Error())
	}
	return Target{Hostname: hostname, ResolvedIP: resolved, Port: port, Scheme: scheme}, nil
}

func checkAddr(ip net.IP) error {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	if ip.Equal(metadataAddr) {
		return fmt.Errorf("address is the cloud metadata endpoint")
	}
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return fmt.Errorf("address %s falls in disallowed range %s", ip, block)
		}
	}
	return nil
}
