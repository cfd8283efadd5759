package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	"gopkg.in/yaml.v3"
)

// Default configuration values (production)
const (
	DefaultDomain             = "multiplay.qzz.io"
	DefaultSTUN               = "stun:stun.l.google.com:19302"
	DefaultListenAddr         = ":8080"
	DefaultWaitForPeerTimeout = 5 * time.Minute
	DefaultNegotiationTimeout = 30 * time.Second
)

// Config holds application configuration
type Config struct {
	// Domain is the relay domain
	Domain string

	// RelayURL is the websocket endpoint, derived from Domain unless set
	RelayURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates.
	ForceRelay bool

	// BinaryFrames sends data channel messages as msgpack.
	BinaryFrames bool

	WaitForPeerTimeout time.Duration
	NegotiationTimeout time.Duration

	// DNSServers are tried when the system resolver cannot find the relay.
	DNSServers []string

	Relay RelayConfig
}

// RelayConfig configures `multiplay relay`.
type RelayConfig struct {
	ListenAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Advertise     bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigFile string
	Domain     string
	RelayURL   string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	Binary     bool
}

// fileConfig is the YAML config file layout.
type fileConfig struct {
	Domain             string   `yaml:"domain"`
	RelayURL           string   `yaml:"relay_url"`
	STUNServer         string   `yaml:"stun_server"`
	TURNServer         string   `yaml:"turn_server"`
	TURNUser           string   `yaml:"turn_username"`
	TURNPass           string   `yaml:"turn_password"`
	ForceRelay         bool     `yaml:"force_relay"`
	BinaryFrames       bool     `yaml:"binary_frames"`
	WaitForPeerTimeout string   `yaml:"wait_for_peer_timeout"`
	NegotiationTimeout string   `yaml:"negotiation_timeout"`
	DNSServers         []string `yaml:"dns_servers"`
	Relay              struct {
		Listen        string `yaml:"listen"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		Advertise     bool   `yaml:"advertise"`
	} `yaml:"relay"`
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	if p := os.Getenv("MULTIPLAY_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "multiplay", "config.yaml")
}

func readFile(path string, required bool) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

// first returns the first non-empty value.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// boolean resolves a switch. A set flag wins; otherwise the environment
// variable, when present, overrides the file.
func boolean(env string, flag, file bool) (bool, error) {
	if flag {
		return true, nil
	}
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid %s %q: %w", env, v, err)
		}
		return b, nil
	}
	return file, nil
}

func duration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Config file
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	path := opts.ConfigFile
	required := path != ""
	if path == "" {
		path = DefaultPath()
	}
	fc, err := readFile(path, required)
	if err != nil {
		return nil, err
	}

	domain := first(opts.Domain, os.Getenv("DOMAIN"), fc.Domain, DefaultDomain)

	relayURL := first(opts.RelayURL, os.Getenv("RELAY_URL"), fc.RelayURL)
	if relayURL == "" {
		relayURL = fmt.Sprintf("wss://%s/ws", domain)
	}

	forceRelay, err := boolean("FORCE_RELAY", opts.ForceRelay, fc.ForceRelay)
	if err != nil {
		return nil, err
	}
	binary, err := boolean("BINARY_FRAMES", opts.Binary, fc.BinaryFrames)
	if err != nil {
		return nil, err
	}

	waitForPeer, err := duration("wait_for_peer_timeout", fc.WaitForPeerTimeout, DefaultWaitForPeerTimeout)
	if err != nil {
		return nil, err
	}
	negotiation, err := duration("negotiation_timeout", fc.NegotiationTimeout, DefaultNegotiationTimeout)
	if err != nil {
		return nil, err
	}

	return &Config{
		Domain:             domain,
		RelayURL:           relayURL,
		STUNServer:         first(opts.STUNServer, os.Getenv("STUN_SERVER"), fc.STUNServer, DefaultSTUN),
		TURNServer:         first(opts.TURNServer, os.Getenv("TURN_SERVER"), fc.TURNServer),
		TURNUser:           first(opts.TURNUser, os.Getenv("TURN_USERNAME"), fc.TURNUser),
		TURNPass:           first(opts.TURNPass, os.Getenv("TURN_PASSWORD"), fc.TURNPass),
		ForceRelay:         forceRelay,
		BinaryFrames:       binary,
		WaitForPeerTimeout: waitForPeer,
		NegotiationTimeout: negotiation,
		DNSServers:         fc.DNSServers,
		Relay: RelayConfig{
			ListenAddr:    first(os.Getenv("LISTEN_ADDR"), fc.Relay.Listen, DefaultListenAddr),
			RedisAddr:     first(os.Getenv("REDIS_ADDR"), fc.Relay.RedisAddr),
			RedisPassword: first(os.Getenv("REDIS_PASSWORD"), fc.Relay.RedisPassword),
			RedisDB:       fc.Relay.RedisDB,
			Advertise:     fc.Relay.Advertise,
		},
	}, nil
}

// behindTunnel is replaced in tests.
var behindTunnel = mpwebrtc.BehindTunnel

// PeerConfig returns the ICE settings for a peer connection. With a TURN
// server configured, relay-only ICE is also selected when a VPN or CGNAT
// interface is detected, since direct paths rarely work there.
func (c *Config) PeerConfig() mpwebrtc.PeerConfig {
	var stun []string
	if c.STUNServer != "" {
		stun = []string{c.STUNServer}
	}
	force := c.ForceRelay
	if !force && c.TURNServer != "" && behindTunnel() {
		force = true
	}
	return mpwebrtc.PeerConfig{
		ICEServers: mpwebrtc.ICEServers(stun, c.TURNServer, c.TURNUser, c.TURNPass),
		ForceRelay: force && c.TURNServer != "",
	}
}
