// Package multiplay contains the host and client controllers that sit on top
// of a peer session.
package multiplay

import (
	"context"
	"log/slog"
	"time"

	"github.com/BioHazard786/multiplay/internal/dns"
	"github.com/BioHazard786/multiplay/internal/logging"
	"github.com/BioHazard786/multiplay/internal/session"
	"github.com/BioHazard786/multiplay/internal/signaling"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
)

// Options are shared by Host and Client.
type Options struct {
	RelayURL string

	// Dial opens the relay connection. Nil dials with signaling.Dial.
	Dial session.Dialer

	// NewPeer creates peer connections. Nil uses PeerFactory with Peer.
	NewPeer session.PeerFactory
	Peer    mpwebrtc.PeerConfig

	WaitForPeerTimeout time.Duration
	NegotiationTimeout time.Duration

	// BinaryFrames sends messages as msgpack instead of JSON text.
	BinaryFrames bool

	Logger *slog.Logger
}

// RelayDialer returns a Dialer that connects with signaling.Dial, resolving
// the relay host through resolver when it is not nil.
func RelayDialer(resolver *dns.Resolver, logger *slog.Logger) session.Dialer {
	return func(ctx context.Context, url string) (session.Transport, error) {
		c, err := signaling.Dial(ctx, url, signaling.Options{Resolver: resolver, Logger: logger})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// PeerFactory returns a factory for pion peer connections built from cfg.
func PeerFactory(cfg mpwebrtc.PeerConfig) session.PeerFactory {
	return func() (session.Peer, error) {
		p, err := mpwebrtc.NewPeer(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) sessionConfig(role session.Role, feed *statusFeed) session.Config {
	logger := o.logger()

	dial := o.Dial
	if dial == nil {
		dial = RelayDialer(nil, logger)
	}
	newPeer := o.NewPeer
	if newPeer == nil {
		peerCfg := o.Peer
		if peerCfg.LoggerFactory == nil {
			peerCfg.LoggerFactory = logging.NewPionFactory(logger)
		}
		newPeer = PeerFactory(peerCfg)
	}

	return session.Config{
		Role:               role,
		RelayURL:           o.RelayURL,
		Dial:               dial,
		NewPeer:            newPeer,
		WaitForPeerTimeout: o.WaitForPeerTimeout,
		NegotiationTimeout: o.NegotiationTimeout,
		BinaryFrames:       o.BinaryFrames,
		Logger:             logger,
		OnStatus:           feed.publish,
	}
}
