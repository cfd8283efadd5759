package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultPublicServers are queried when the system resolver cannot resolve
// the relay host. Cloudflare, Google and Quad9.
var DefaultPublicServers = []string{
	"1.1.1.1",
	"1.0.0.1",
	"[2606:4700:4700::1111]",
	"8.8.8.8",
	"8.8.4.4",
	"[2001:4860:4860::8888]",
	"9.9.9.9",
	"149.112.112.112",
}

const (
	localTimeout  = 1 * time.Second
	remoteTimeout = 2 * time.Second
)

// Resolver resolves relay hosts, falling back to public DNS servers when the
// local resolver fails (captive portals, broken hotspot DNS).
type Resolver struct {
	// Servers are the fallback DNS servers. Nil means DefaultPublicServers.
	Servers []string

	local *net.Resolver
}

// NewResolver returns a Resolver with the default fallback servers.
func NewResolver() *Resolver {
	return &Resolver{Servers: DefaultPublicServers}
}

// Lookup resolves host to a single IP address, preferring IPv4. Literal IP
// addresses are returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	localCtx, cancel := context.WithTimeout(ctx, localTimeout)
	ip, err := lookupWith(localCtx, r.localResolver(), host)
	cancel()
	if err == nil {
		return ip, nil
	}

	servers := r.Servers
	if servers == nil {
		servers = DefaultPublicServers
	}
	if len(servers) == 0 {
		return "", err
	}
	return raceLookup(ctx, host, servers)
}

func (r *Resolver) localResolver() *net.Resolver {
	if r.local != nil {
		return r.local
	}
	return net.DefaultResolver
}

// raceLookup queries every server concurrently and returns the first answer.
func raceLookup(ctx context.Context, host string, servers []string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	results := make(chan result, len(servers))
	for _, server := range servers {
		go func(server string) {
			ip, err := lookupWith(ctx, serverResolver(server), host)
			results <- result{ip: ip, err: err}
		}(server)
	}

	failures := 0
	for range servers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: public DNS race timed out", host)
		}
	}
	return "", fmt.Errorf("resolve %s: all %d public DNS servers failed", host, failures)
}

func serverResolver(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

func lookupWith(ctx context.Context, r *net.Resolver, host string) (string, error) {
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("no addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
