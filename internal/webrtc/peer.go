package webrtc

import (
	"net"

	"github.com/pion/logging"
	pion "github.com/pion/webrtc/v4"
)

// DataChannelLabel is the label of the single session data channel.
const DataChannelLabel = "multiplay"

// DataChannel is the subset of a pion data channel the session uses.
type DataChannel interface {
	Label() string
	ReadyState() pion.DataChannelState
	SendText(text string) error
	Send(data []byte) error
	OnOpen(f func())
	OnClose(f func())
	OnMessage(f func(msg pion.DataChannelMessage))
	Close() error
}

var _ DataChannel = (*pion.DataChannel)(nil)

// PeerConfig configures a peer connection.
type PeerConfig struct {
	ICEServers []pion.ICEServer

	// ForceRelay restricts ICE to TURN relay candidates.
	ForceRelay bool

	// LoopbackOnly gathers only loopback host candidates. Used by tests that
	// connect two peers in one process.
	LoopbackOnly bool

	LoggerFactory logging.LoggerFactory
}

// Peer wraps a pion peer connection with trickle ICE.
type Peer struct {
	pc *pion.PeerConnection
}

// NewPeer creates a peer connection from cfg.
func NewPeer(cfg PeerConfig) (*Peer, error) {
	se := pion.SettingEngine{}
	if cfg.LoggerFactory != nil {
		se.LoggerFactory = cfg.LoggerFactory
	}
	if cfg.LoopbackOnly {
		se.SetIncludeLoopbackCandidate(true)
		se.SetIPFilter(func(ip net.IP) bool { return ip.IsLoopback() })
		se.SetNetworkTypes([]pion.NetworkType{pion.NetworkTypeUDP4})
	}

	policy := pion.ICETransportPolicyAll
	if cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	api := pion.NewAPI(pion.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:         cfg.ICEServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, err
	}
	return &Peer{pc: pc}, nil
}

// OnICECandidate registers f for every locally gathered candidate. The
// end-of-gathering marker is not reported.
func (p *Peer) OnICECandidate(f func(pion.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		f(c.ToJSON())
	})
}

// OnConnectionStateChange registers f for peer connection state changes.
func (p *Peer) OnConnectionStateChange(f func(pion.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

// OnDataChannel registers f for data channels opened by the remote peer.
func (p *Peer) OnDataChannel(f func(DataChannel)) {
	p.pc.OnDataChannel(func(dc *pion.DataChannel) {
		f(dc)
	})
}

// CreateDataChannel opens an ordered, reliable data channel.
func (p *Peer) CreateDataChannel(label string) (DataChannel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, err
	}
	return dc, nil
}

// CreateOffer creates an offer and sets it as the local description. ICE
// candidates are trickled through OnICECandidate.
func (p *Peer) CreateOffer() (pion.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return pion.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return pion.SessionDescription{}, err
	}
	return *p.pc.LocalDescription(), nil
}

// CreateAnswer creates an answer to the current remote offer and sets it as
// the local description.
func (p *Peer) CreateAnswer() (pion.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return pion.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return pion.SessionDescription{}, err
	}
	return *p.pc.LocalDescription(), nil
}

// SetRemoteDescription applies the remote peer's description.
func (p *Peer) SetRemoteDescription(desc pion.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

// AddICECandidate applies a remote candidate.
func (p *Peer) AddICECandidate(c pion.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

// Close tears down the peer connection.
func (p *Peer) Close() error {
	return p.pc.Close()
}
