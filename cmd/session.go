package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/multiplay/internal/config"
	"github.com/BioHazard786/multiplay/internal/discovery"
	"github.com/BioHazard786/multiplay/internal/dns"
	"github.com/BioHazard786/multiplay/internal/multiplay"
	"github.com/BioHazard786/multiplay/internal/session"
	"github.com/BioHazard786/multiplay/internal/ui"
)

func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: flagConfig,
		Domain:     flagDomain,
		RelayURL:   flagRelayURL,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagForceRelay,
		Binary:     flagBinary,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// sessionOptions builds the options shared by host and join. With
// --discover the relay URL comes from mDNS instead of the config.
func sessionOptions(ctx context.Context, cfg *config.Config) (multiplay.Options, error) {
	logger := slog.Default()

	relayURL := cfg.RelayURL
	if flagDiscover {
		sp := ui.NewConnectionSpinner("Looking for a relay on the local network...")
		sp.Start()
		found, err := discovery.Find(ctx, nil)
		if err != nil {
			sp.Error("No relay found")
			return multiplay.Options{}, fmt.Errorf("discover relay: %w", err)
		}
		relayURL = found.URL()
		sp.Success(fmt.Sprintf("Found relay %s", found.Instance))
	}

	resolver := dns.NewResolver()
	if len(cfg.DNSServers) > 0 {
		resolver.Servers = cfg.DNSServers
	}

	return multiplay.Options{
		RelayURL:           relayURL,
		Dial:               multiplay.RelayDialer(resolver, logger),
		Peer:               cfg.PeerConfig(),
		WaitForPeerTimeout: cfg.WaitForPeerTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		BinaryFrames:       cfg.BinaryFrames,
		Logger:             logger,
	}, nil
}

// followSession prints transitions after current until the session rests.
// Cancelling ctx leaves the room.
func followSession(ctx context.Context, current session.Status, updates <-chan session.Status, disconnect func()) session.Status {
	last := current
	for {
		select {
		case st := <-updates:
			if st.Since.Before(last.Since) || st.State == last.State {
				continue
			}
			last = st
			line := fmt.Sprintf("%s %s", ui.IconConnect, ui.StateBadge(st.State))
			if st.Reason != "" {
				line += " " + ui.MutedStyle.Render(st.Reason)
			}
			fmt.Println(line)
			if st.State.Resting() {
				return st
			}
		case <-ctx.Done():
			disconnect()
			ctx = context.Background()
		}
	}
}

func renderSummary(title string, s multiplay.Summary) {
	ui.RenderSessionSummary(title, ui.SessionSummary{
		Role:      string(s.Role),
		RoomCode:  s.RoomCode,
		State:     string(s.State),
		Reason:    s.Reason,
		Sent:      s.Sent,
		Received:  s.Received,
		Connected: s.Connected,
	})
}
