package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/multiplay/internal/signaling"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	pion "github.com/pion/webrtc/v4"
)

// Default timeouts.
const (
	DefaultDialTimeout        = 15 * time.Second
	DefaultAckTimeout         = 15 * time.Second
	DefaultWaitForPeerTimeout = 5 * time.Minute
	DefaultNegotiationTimeout = 30 * time.Second
)

// Transport is a connection to the signaling relay.
type Transport interface {
	Send(env *signaling.Envelope) error
	Incoming() <-chan *signaling.Envelope
	Err() error
	Close() error
}

// Dialer opens a Transport to the relay.
type Dialer func(ctx context.Context, url string) (Transport, error)

// Peer is a peer connection with trickle ICE.
type Peer interface {
	OnICECandidate(f func(pion.ICECandidateInit))
	OnConnectionStateChange(f func(pion.PeerConnectionState))
	OnDataChannel(f func(mpwebrtc.DataChannel))
	CreateDataChannel(label string) (mpwebrtc.DataChannel, error)
	CreateOffer() (pion.SessionDescription, error)
	CreateAnswer() (pion.SessionDescription, error)
	SetRemoteDescription(desc pion.SessionDescription) error
	AddICECandidate(c pion.ICECandidateInit) error
	Close() error
}

// PeerFactory creates a fresh Peer for each negotiation.
type PeerFactory func() (Peer, error)

// Config configures a Session.
type Config struct {
	Role     Role
	RelayURL string

	Dial    Dialer
	NewPeer PeerFactory

	// Timeouts. Zero selects the default; a negative value disables the
	// timer.
	DialTimeout        time.Duration
	AckTimeout         time.Duration
	WaitForPeerTimeout time.Duration
	NegotiationTimeout time.Duration

	Logger *slog.Logger

	// OnStatus is called on the engine goroutine after every transition. It
	// must not block.
	OnStatus func(Status)

	// OnChannelOpen is called on the engine goroutine when the data channel
	// opens and the session becomes connected.
	OnChannelOpen func(*Channel)

	// BinaryFrames sends outgoing messages as msgpack binary frames instead
	// of JSON text. Incoming frames of either kind are always accepted.
	BinaryFrames bool

	// OnMessage receives every data channel message in arrival order.
	OnMessage func(mpwebrtc.Message)
}

func timeoutOrDefault(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// Session drives one peer session through signaling, negotiation and
// teardown. Every stimulus is an event processed by a single goroutine, so
// the fields below the mailbox are only touched by that goroutine.
type Session struct {
	cfg    Config
	logger *slog.Logger
	box    *mailbox

	statusMu sync.RWMutex
	status   Status

	stopOnce sync.Once
	stopped  chan struct{}

	// Owned by the engine goroutine.
	state      State
	gen        uint64
	roomCode   string
	transport  Transport
	peer       Peer
	channel    *Channel
	pending    []pion.ICECandidateInit
	remoteSet  bool
	offerSent  bool
	timer      *time.Timer
	dialCancel context.CancelFunc
}

// New creates a session and starts its engine goroutine.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.DialTimeout = timeoutOrDefault(cfg.DialTimeout, DefaultDialTimeout)
	cfg.AckTimeout = timeoutOrDefault(cfg.AckTimeout, DefaultAckTimeout)
	cfg.WaitForPeerTimeout = timeoutOrDefault(cfg.WaitForPeerTimeout, DefaultWaitForPeerTimeout)
	cfg.NegotiationTimeout = timeoutOrDefault(cfg.NegotiationTimeout, DefaultNegotiationTimeout)

	s := &Session{
		cfg:     cfg,
		logger:  logger.With("component", "session", "role", string(cfg.Role)),
		box:     newMailbox(),
		stopped: make(chan struct{}),
		state:   StateIdle,
		status:  Status{State: StateIdle, Role: cfg.Role, Since: time.Now()},
	}
	go s.run()
	return s
}

// Status returns the latest published status.
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Create asks the relay for a new room. Only hosts create rooms. A call
// while a session is already active is ignored; after disconnected or
// failed it starts over.
func (s *Session) Create() error {
	if s.cfg.Role != RoleHost {
		return newError("create room", ErrWrongRole)
	}
	if !s.box.post(cmdCreate{}) {
		return newError("create room", ErrClosed)
	}
	return nil
}

// Join asks the relay to join the room identified by code. The code is
// validated before anything is sent.
func (s *Session) Join(code string) error {
	if s.cfg.Role != RoleClient {
		return newError("join room", ErrWrongRole)
	}
	normalized, err := signaling.NormalizeRoomCode(code)
	if err != nil {
		return wrapError("join room", err, code)
	}
	if !s.box.post(cmdJoin{code: normalized}) {
		return newError("join room", ErrClosed)
	}
	return nil
}

// Disconnect tears the session down and returns it to idle. It is safe to
// call in any state and any number of times.
func (s *Session) Disconnect() {
	s.box.post(cmdDisconnect{})
}

// Close disconnects and stops the engine goroutine. It blocks until the
// teardown has completed.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		s.box.post(cmdStop{})
		s.box.close()
	})
	<-s.stopped
}

func (s *Session) run() {
	defer close(s.stopped)
	for range s.box.notify {
		for _, ev := range s.box.take() {
			if _, ok := ev.(cmdStop); ok {
				s.disconnect()
				return
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case cmdCreate:
		s.start("")
	case cmdJoin:
		s.start(ev.code)
	case cmdDisconnect:
		s.disconnect()

	case evDialed:
		s.handleDialed(ev)
	case evEnvelope:
		if ev.gen == s.gen {
			s.handleEnvelope(ev.env)
		}
	case evTransportClosed:
		if ev.gen == s.gen && !s.state.Resting() {
			s.logger.Warn("relay connection lost", "state", s.state, "error", ev.err)
			// Before the relay acknowledged the room the attempt itself failed.
			to := StateDisconnected
			if !s.state.inRoom() {
				to = StateFailed
			}
			s.terminate(to, wrapError("signaling", ErrTransportClosed, errString(ev.err)))
		}
	case evLocalCandidate:
		if ev.gen == s.gen {
			s.sendSignal(signaling.SignalPayload{Candidate: &ev.candidate})
		}
	case evPeerState:
		if ev.gen == s.gen {
			s.handlePeerState(ev.state)
		}
	case evRemoteChannel:
		s.handleRemoteChannel(ev)
	case evChannelOpen:
		if ev.gen == s.gen {
			s.handleChannelOpen()
		}
	case evChannelClosed:
		if ev.gen == s.gen && s.state == StateConnected {
			s.terminate(StateDisconnected, newError("data channel", ErrPeerDisconnected))
		}
	case evTimeout:
		if ev.gen == s.gen && ev.state == s.state {
			s.terminate(StateFailed, wrapError(string(ev.state), ErrTimeout, "timeout"))
		}
	}
}

// start begins a new create (code empty) or join attempt.
func (s *Session) start(code string) {
	if !s.state.Resting() {
		s.logger.Info("session already active, ignoring request", "state", s.state)
		return
	}

	s.gen++
	gen := s.gen
	s.roomCode = code
	s.setState(StateConnecting, nil)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	s.dialCancel = cancel
	go func() {
		defer cancel()
		t, err := s.cfg.Dial(ctx, s.cfg.RelayURL)
		if !s.box.post(evDialed{gen: gen, transport: t, err: err}) && t != nil {
			t.Close()
		}
	}()
}

func (s *Session) handleDialed(ev evDialed) {
	if ev.gen != s.gen || s.state != StateConnecting {
		if ev.transport != nil {
			ev.transport.Close()
		}
		return
	}
	s.dialCancel = nil
	if ev.err != nil {
		s.terminate(StateFailed, newError("connect to relay", ev.err))
		return
	}

	s.transport = ev.transport
	go s.pump(s.gen, ev.transport)
	s.setState(StateSignalingConnected, nil)
	// The relay must answer create or join before AckTimeout.
	s.armTimer(s.cfg.AckTimeout)

	var env *signaling.Envelope
	if s.cfg.Role == RoleHost {
		env = signaling.MustEnvelope(signaling.TypeCreate, nil)
	} else {
		env = signaling.MustEnvelope(signaling.TypeJoin, signaling.RoomPayload{RoomCode: s.roomCode})
	}
	if err := s.transport.Send(env); err != nil {
		s.terminate(StateFailed, newError("send "+env.Type, err))
	}
}

// pump forwards relay envelopes into the mailbox in arrival order.
func (s *Session) pump(gen uint64, t Transport) {
	for env := range t.Incoming() {
		if !s.box.post(evEnvelope{gen: gen, env: env}) {
			return
		}
	}
	s.box.post(evTransportClosed{gen: gen, err: t.Err()})
}

func (s *Session) handleEnvelope(env *signaling.Envelope) {
	switch env.Type {
	case signaling.TypeRoomCreated:
		s.handleRoomCreated(env)
	case signaling.TypeJoinSuccess:
		s.handleJoinSuccess()
	case signaling.TypeJoinFailed:
		s.handleJoinFailed(env)
	case signaling.TypePeerJoined:
		s.handlePeerJoined()
	case signaling.TypeSignal:
		s.handleSignal(env)
	case signaling.TypePeerDisconnected:
		if !s.state.Resting() {
			s.terminate(StateDisconnected, newError("peer", ErrPeerDisconnected))
		}
	default:
		s.logger.Debug("ignoring relay message", "type", env.Type)
	}
}

func (s *Session) handleRoomCreated(env *signaling.Envelope) {
	if s.cfg.Role != RoleHost || s.state != StateSignalingConnected {
		s.logger.Warn("unexpected room-created", "state", s.state)
		return
	}
	var room signaling.RoomPayload
	if err := env.Decode(&room); err != nil {
		s.terminate(StateFailed, wrapError("create room", ErrProtocolViolation, err.Error()))
		return
	}
	code, err := signaling.NormalizeRoomCode(room.RoomCode)
	if err != nil {
		s.terminate(StateFailed, wrapError("create room", ErrProtocolViolation, "relay sent invalid room code"))
		return
	}
	s.roomCode = code
	s.setState(StateWaitingForPeer, nil)
	s.armTimer(s.cfg.WaitForPeerTimeout)
}

func (s *Session) handleJoinSuccess() {
	if s.cfg.Role != RoleClient || s.state != StateSignalingConnected {
		s.logger.Warn("unexpected join-success", "state", s.state)
		return
	}
	if err := s.openPeer(); err != nil {
		s.terminate(StateFailed, newError("create peer connection", err))
		return
	}
	s.setState(StateWaitingForPeer, nil)
	s.armTimer(s.cfg.WaitForPeerTimeout)
}

func (s *Session) handleJoinFailed(env *signaling.Envelope) {
	if s.cfg.Role != RoleClient || s.state != StateSignalingConnected {
		s.logger.Warn("unexpected join-failed", "state", s.state)
		return
	}
	var failed signaling.JoinFailedPayload
	if err := env.Decode(&failed); err != nil || failed.Reason == "" {
		failed.Reason = "room unavailable"
	}
	s.logger.Info("join refused by relay", "room", s.roomCode, "reason", failed.Reason)
	s.terminate(StateIdle, wrapError("join room", ErrJoinFailed, failed.Reason))
}

func (s *Session) handlePeerJoined() {
	if s.cfg.Role != RoleHost || s.state != StateWaitingForPeer {
		s.logger.Warn("unexpected peer-joined", "state", s.state)
		return
	}
	s.setState(StateNegotiating, nil)
	s.armTimer(s.cfg.NegotiationTimeout)

	if err := s.openPeer(); err != nil {
		s.terminate(StateFailed, newError("create peer connection", err))
		return
	}

	dc, err := s.peer.CreateDataChannel(mpwebrtc.DataChannelLabel)
	if err != nil {
		s.terminate(StateFailed, newError("create data channel", err))
		return
	}
	s.channel = s.wrapChannel(s.gen, dc)

	offer, err := s.peer.CreateOffer()
	if err != nil {
		s.terminate(StateFailed, wrapError("create offer", ErrNegotiation, err.Error()))
		return
	}
	s.offerSent = true
	s.sendSignal(signaling.SignalPayload{SDP: offer.SDP, SDPType: offer.Type.String()})
}

// openPeer creates the peer connection and routes its callbacks into the
// mailbox tagged with the current generation.
func (s *Session) openPeer() error {
	peer, err := s.cfg.NewPeer()
	if err != nil {
		return err
	}
	gen := s.gen
	peer.OnICECandidate(func(c pion.ICECandidateInit) {
		s.box.post(evLocalCandidate{gen: gen, candidate: c})
	})
	peer.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		s.box.post(evPeerState{gen: gen, state: state})
	})
	if s.cfg.Role == RoleClient {
		peer.OnDataChannel(func(dc mpwebrtc.DataChannel) {
			// Callbacks are registered here, before pion starts reading, so
			// a message sent right after open is not lost.
			s.box.post(evRemoteChannel{gen: gen, channel: s.wrapChannel(gen, dc)})
		})
	}
	s.peer = peer
	return nil
}

func (s *Session) wrapChannel(gen uint64, dc mpwebrtc.DataChannel) *Channel {
	c := newChannel(dc, s.logger, s.cfg.OnMessage,
		func() { s.box.post(evChannelOpen{gen: gen}) },
		func() { s.box.post(evChannelClosed{gen: gen}) },
	)
	c.binary = s.cfg.BinaryFrames
	return c
}

func (s *Session) handleSignal(env *signaling.Envelope) {
	if !s.state.inRoom() {
		s.logger.Warn("dropping signal outside a room", "state", s.state)
		return
	}
	var payload signaling.SignalPayload
	if err := env.Decode(&payload); err != nil {
		s.logger.Warn("dropping malformed signal", "error", err)
		return
	}

	switch {
	case payload.IsDescription():
		desc, err := payload.Description()
		if err != nil {
			s.logger.Warn("dropping signal", "error", err)
			return
		}
		s.handleRemoteDescription(desc)
	case payload.Candidate != nil:
		s.handleRemoteCandidate(*payload.Candidate)
	default:
		s.logger.Warn("dropping empty signal")
	}
}

func (s *Session) handleRemoteDescription(desc pion.SessionDescription) {
	if s.remoteSet {
		s.terminate(StateFailed, wrapError("set remote description", ErrProtocolViolation, "remote description replaced"))
		return
	}

	switch s.cfg.Role {
	case RoleHost:
		if desc.Type == pion.SDPTypeOffer {
			s.terminate(StateFailed, wrapError("negotiate", ErrProtocolViolation, "simultaneous offer"))
			return
		}
		if !s.offerSent {
			s.terminate(StateFailed, wrapError("negotiate", ErrProtocolViolation, "answer without offer"))
			return
		}
		if err := s.peer.SetRemoteDescription(desc); err != nil {
			s.terminate(StateFailed, wrapError("set remote description", ErrNegotiation, err.Error()))
			return
		}
		s.remoteSet = true
		s.drainCandidates()

	case RoleClient:
		if desc.Type != pion.SDPTypeOffer {
			s.terminate(StateFailed, wrapError("negotiate", ErrProtocolViolation, "client received "+desc.Type.String()))
			return
		}
		if s.state == StateWaitingForPeer {
			s.setState(StateNegotiating, nil)
			s.armTimer(s.cfg.NegotiationTimeout)
		}
		if err := s.peer.SetRemoteDescription(desc); err != nil {
			s.terminate(StateFailed, wrapError("set remote description", ErrNegotiation, err.Error()))
			return
		}
		s.remoteSet = true
		s.drainCandidates()

		answer, err := s.peer.CreateAnswer()
		if err != nil {
			s.terminate(StateFailed, wrapError("create answer", ErrNegotiation, err.Error()))
			return
		}
		s.sendSignal(signaling.SignalPayload{SDP: answer.SDP, SDPType: answer.Type.String()})
	}
}

// handleRemoteCandidate applies c, or queues it until the remote description
// is set.
func (s *Session) handleRemoteCandidate(c pion.ICECandidateInit) {
	if s.peer == nil || !s.remoteSet {
		s.pending = append(s.pending, c)
		s.logger.Debug("queued remote candidate", "queued", len(s.pending))
		return
	}
	s.applyCandidate(c)
}

func (s *Session) drainCandidates() {
	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		s.applyCandidate(c)
	}
}

func (s *Session) applyCandidate(c pion.ICECandidateInit) {
	if err := s.peer.AddICECandidate(c); err != nil {
		s.logger.Warn("rejected remote candidate", "candidate", c.Candidate, "error", err)
	}
}

func (s *Session) handlePeerState(state pion.PeerConnectionState) {
	s.logger.Debug("peer connection state", "state", state.String())
	if state != pion.PeerConnectionStateFailed {
		return
	}
	switch s.state {
	case StateWaitingForPeer, StateNegotiating:
		s.terminate(StateFailed, wrapError("negotiate", ErrNegotiation, "no direct path"))
	case StateConnected:
		s.terminate(StateDisconnected, wrapError("peer connection", ErrPeerDisconnected, "direct path lost"))
	}
}

func (s *Session) handleRemoteChannel(ev evRemoteChannel) {
	if ev.gen != s.gen || s.state.Resting() || s.channel != nil {
		ev.channel.Close()
		return
	}
	if ev.channel.Label() != mpwebrtc.DataChannelLabel {
		s.logger.Warn("ignoring unexpected data channel", "label", ev.channel.Label())
		ev.channel.Close()
		return
	}
	s.channel = ev.channel
	if ev.channel.Open() {
		s.handleChannelOpen()
	}
}

func (s *Session) handleChannelOpen() {
	if s.state != StateNegotiating || s.channel == nil {
		return
	}
	s.stopTimer()
	s.setState(StateConnected, nil)
	if s.cfg.OnChannelOpen != nil {
		s.cfg.OnChannelOpen(s.channel)
	}
}

// sendSignal forwards a negotiation payload to the relay, tagged with the
// room code.
func (s *Session) sendSignal(payload signaling.SignalPayload) {
	if s.transport == nil {
		return
	}
	payload.RoomCode = s.roomCode
	if err := s.transport.Send(signaling.MustEnvelope(signaling.TypeSignal, payload)); err != nil {
		s.logger.Warn("failed to send signal", "error", err)
	}
}

func (s *Session) armTimer(d time.Duration) {
	s.stopTimer()
	if d < 0 {
		return
	}
	gen, state := s.gen, s.state
	s.timer = time.AfterFunc(d, func() {
		s.box.post(evTimeout{gen: gen, state: state})
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// release closes the data channel, the peer connection and the transport,
// in that order, and invalidates every in-flight callback.
func (s *Session) release(sendLeave bool) {
	s.stopTimer()
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	// Later events from the released resources carry a stale generation.
	s.gen++

	if s.channel != nil {
		s.channel.Close()
		s.channel = nil
	}
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			s.logger.Debug("closing peer connection", "error", err)
		}
		s.peer = nil
	}
	if s.transport != nil {
		if sendLeave && s.roomCode != "" {
			s.transport.Send(signaling.MustEnvelope(signaling.TypeLeave, signaling.RoomPayload{RoomCode: s.roomCode}))
		}
		s.transport.Close()
		s.transport = nil
	}

	s.pending = nil
	s.remoteSet = false
	s.offerSent = false
	s.roomCode = ""
}

// terminate releases everything and moves to a resting state.
func (s *Session) terminate(to State, err error) {
	s.release(false)
	s.setState(to, err)
}

func (s *Session) disconnect() {
	if s.state == StateIdle {
		return
	}
	s.release(s.state.inRoom())
	s.setState(StateIdle, nil)
}

func (s *Session) setState(to State, err error) {
	from := s.state
	s.state = to

	st := Status{
		State:      to,
		Role:       s.cfg.Role,
		RoomCode:   s.roomCode,
		Err:        err,
		Generation: s.gen,
		Since:      time.Now(),
	}
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) && serr.Details != "" {
			st.Reason = serr.Details
		} else {
			st.Reason = err.Error()
		}
	}

	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()

	s.logger.Debug("state transition", "from", from, "to", to, "room", s.roomCode, "reason", st.Reason)
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}

func errString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}
