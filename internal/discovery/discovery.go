// Package discovery advertises a relay on the local network and finds one
// without configuration.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// Service is the DNS-SD service type of a relay.
	Service = "_multiplay._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultBrowseTimeout bounds Browse when ctx has no deadline.
	DefaultBrowseTimeout = 3 * time.Second
)

// ErrNoRelay is returned when no relay answered on the local network.
var ErrNoRelay = errors.New("no relay found on the local network")

// Server is a running mDNS registration.
type Server interface {
	Shutdown()
}

// Registrar publishes a service. The default uses grandcat/zeroconf.
type Registrar interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error)
}

type zeroconfRegistrar struct{}

func (zeroconfRegistrar) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Browser finds services. The default uses grandcat/zeroconf.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfBrowser struct{}

func (zeroconfBrowser) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	return r.Browse(ctx, service, domain, entries)
}

// AdvertiseConfig describes the relay being advertised.
type AdvertiseConfig struct {
	// Instance defaults to "multiplay-<hostname>".
	Instance string
	Port     int
	Path     string
	Version  string

	Registrar Registrar
	Logger    *slog.Logger
}

// Advertise publishes the relay until Shutdown is called on the result.
func Advertise(cfg AdvertiseConfig) (Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Instance == "" {
		host, _ := os.Hostname()
		cfg.Instance = "multiplay-" + host
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	registrar := cfg.Registrar
	if registrar == nil {
		registrar = zeroconfRegistrar{}
	}

	txt := []string{"path=" + cfg.Path}
	if cfg.Version != "" {
		txt = append(txt, "version="+cfg.Version)
	}

	server, err := registrar.Register(cfg.Instance, Service, Domain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns registration failed: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("advertising relay", "instance", cfg.Instance, "port", cfg.Port)
	}
	return server, nil
}

// Relay is a relay found on the local network.
type Relay struct {
	Instance string
	Host     string
	Port     int
	IPs      []net.IP
	Path     string
}

// URL returns the websocket URL of the relay, preferring IPv4.
func (r Relay) URL() string {
	host := strings.TrimSuffix(r.Host, ".")
	for _, ip := range r.IPs {
		if ip.To4() != nil {
			host = ip.String()
			break
		}
	}
	if host == "" && len(r.IPs) > 0 {
		host = r.IPs[0].String()
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(r.Port)) + r.Path
}

func fromEntry(e *zeroconf.ServiceEntry) Relay {
	r := Relay{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
		Path:     "/ws",
	}
	r.IPs = append(r.IPs, e.AddrIPv4...)
	r.IPs = append(r.IPs, e.AddrIPv6...)
	for _, kv := range e.Text {
		if v, ok := strings.CutPrefix(kv, "path="); ok && v != "" {
			r.Path = v
		}
	}
	return r
}

func browse(ctx context.Context, browser Browser) (<-chan *zeroconf.ServiceEntry, error) {
	if browser == nil {
		browser = zeroconfBrowser{}
	}
	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := browser.Browse(ctx, Service, Domain, entries); err != nil {
		return nil, fmt.Errorf("mdns browse failed: %w", err)
	}
	return entries, nil
}

func withBrowseTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, DefaultBrowseTimeout)
}

// Browse returns the relays that answer before ctx is done. A nil browser
// uses mDNS.
func Browse(ctx context.Context, browser Browser) ([]Relay, error) {
	ctx, cancel := withBrowseTimeout(ctx)
	defer cancel()

	entries, err := browse(ctx, browser)
	if err != nil {
		return nil, err
	}

	var relays []Relay
	seen := make(map[string]bool)
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return relays, nil
			}
			if e == nil || seen[e.Instance] {
				continue
			}
			seen[e.Instance] = true
			relays = append(relays, fromEntry(e))
		case <-ctx.Done():
			return relays, nil
		}
	}
}

// Find returns the first relay that answers.
func Find(ctx context.Context, browser Browser) (Relay, error) {
	ctx, cancel := withBrowseTimeout(ctx)
	defer cancel()

	entries, err := browse(ctx, browser)
	if err != nil {
		return Relay{}, err
	}
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return Relay{}, ErrNoRelay
			}
			if e != nil {
				return fromEntry(e), nil
			}
		case <-ctx.Done():
			return Relay{}, ErrNoRelay
		}
	}
}
