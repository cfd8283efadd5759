package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DOMAIN", "RELAY_URL", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD", "FORCE_RELAY", "BINARY_FRAMES", "LISTEN_ADDR", "REDIS_ADDR", "REDIS_PASSWORD"} {
		t.Setenv(k, "")
	}
	t.Setenv("MULTIPLAY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Domain != DefaultDomain || cfg.RelayURL != "wss://"+DefaultDomain+"/ws" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.STUNServer != DefaultSTUN || cfg.TURNServer != "" {
		t.Fatalf("ice = %s %s", cfg.STUNServer, cfg.TURNServer)
	}
	if cfg.WaitForPeerTimeout != DefaultWaitForPeerTimeout || cfg.NegotiationTimeout != DefaultNegotiationTimeout {
		t.Fatalf("timeouts = %v %v", cfg.WaitForPeerTimeout, cfg.NegotiationTimeout)
	}
	if cfg.Relay.ListenAddr != DefaultListenAddr {
		t.Fatalf("listen = %q", cfg.Relay.ListenAddr)
	}
}

func TestLoad_Priority(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
domain: file.example
stun_server: stun:file.example:3478
turn_server: turn.file.example
negotiation_timeout: 45s
relay:
  listen: ":9000"
  advertise: true
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOMAIN", "env.example")
	t.Setenv("TURN_SERVER", "turn.env.example")

	cfg, err := Load(Options{ConfigFile: path, TURNServer: "turn.flag.example"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Domain != "env.example" {
		t.Errorf("domain = %q, want env value", cfg.Domain)
	}
	if cfg.RelayURL != "wss://env.example/ws" {
		t.Errorf("relay url = %q", cfg.RelayURL)
	}
	if cfg.STUNServer != "stun:file.example:3478" {
		t.Errorf("stun = %q, want file value", cfg.STUNServer)
	}
	if cfg.TURNServer != "turn.flag.example" {
		t.Errorf("turn = %q, want flag value", cfg.TURNServer)
	}
	if cfg.NegotiationTimeout != 45*time.Second {
		t.Errorf("negotiation timeout = %v", cfg.NegotiationTimeout)
	}
	if cfg.Relay.ListenAddr != ":9000" || !cfg.Relay.Advertise {
		t.Errorf("relay = %+v", cfg.Relay)
	}
}

func TestLoad_Switches(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("binary_frames: true\nforce_relay: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{ConfigFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.BinaryFrames || !cfg.ForceRelay {
		t.Fatalf("file switches = %v %v", cfg.BinaryFrames, cfg.ForceRelay)
	}

	t.Setenv("BINARY_FRAMES", "false")
	cfg, err = Load(Options{ConfigFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BinaryFrames {
		t.Error("BINARY_FRAMES=false did not override the file")
	}

	cfg, err = Load(Options{ConfigFile: path, Binary: true})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.BinaryFrames {
		t.Error("flag did not override the environment")
	}

	t.Setenv("BINARY_FRAMES", "sometimes")
	if _, err := Load(Options{ConfigFile: path}); err == nil {
		t.Error("expected error for invalid BINARY_FRAMES")
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	clearEnv(t)
	if _, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("wait_for_peer_timeout: soon\n"), 0o644)
	if _, err := Load(Options{ConfigFile: path}); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestPeerConfig(t *testing.T) {
	orig := behindTunnel
	t.Cleanup(func() { behindTunnel = orig })

	tests := []struct {
		name      string
		cfg       Config
		tunnel    bool
		wantRelay bool
		wantICE   int
	}{
		{"stun only", Config{STUNServer: DefaultSTUN}, false, false, 1},
		{"turn direct", Config{STUNServer: DefaultSTUN, TURNServer: "turn.example"}, false, false, 2},
		{"turn behind tunnel", Config{STUNServer: DefaultSTUN, TURNServer: "turn.example"}, true, true, 2},
		{"forced without turn", Config{ForceRelay: true}, false, false, 0},
		{"forced with turn", Config{TURNServer: "turn.example", ForceRelay: true}, false, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			behindTunnel = func() bool { return tt.tunnel }
			pc := tt.cfg.PeerConfig()
			if pc.ForceRelay != tt.wantRelay {
				t.Errorf("ForceRelay = %v, want %v", pc.ForceRelay, tt.wantRelay)
			}
			if len(pc.ICEServers) != tt.wantICE {
				t.Errorf("ICE servers = %d, want %d", len(pc.ICEServers), tt.wantICE)
			}
		})
	}
}
