package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/multiplay/internal/signaling"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	pion "github.com/pion/webrtc/v4"
)

const waitTimeout = 2 * time.Second

// closeLog records the order in which fakes are first closed.
type closeLog struct {
	mu    sync.Mutex
	order []string
}

func (l *closeLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.order = append(l.order, name)
	l.mu.Unlock()
}

func (l *closeLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

type fakeTransport struct {
	in     chan *signaling.Envelope
	out    chan *signaling.Envelope
	sent   chan *signaling.Envelope
	closed chan struct{}
	log    *closeLog

	once sync.Once
	mu   sync.Mutex
	err  error
}

func newFakeTransport() *fakeTransport {
	t := &fakeTransport{
		in:     make(chan *signaling.Envelope, 64),
		out:    make(chan *signaling.Envelope),
		sent:   make(chan *signaling.Envelope, 64),
		closed: make(chan struct{}),
	}
	go t.forward()
	return t
}

func (t *fakeTransport) forward() {
	defer close(t.out)
	for {
		select {
		case env := <-t.in:
			select {
			case t.out <- env:
			case <-t.closed:
				return
			}
		case <-t.closed:
			return
		}
	}
}

func (t *fakeTransport) Send(env *signaling.Envelope) error {
	select {
	case <-t.closed:
		return signaling.ErrClosed
	default:
	}
	t.sent <- env
	return nil
}

func (t *fakeTransport) Incoming() <-chan *signaling.Envelope { return t.out }

func (t *fakeTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() {
		t.log.add("transport")
		close(t.closed)
	})
	return nil
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// drop simulates the relay connection going away.
func (t *fakeTransport) drop(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	t.Close()
}

func (t *fakeTransport) push(tb testing.TB, msgType string, payload any) {
	tb.Helper()
	env, err := signaling.NewEnvelope(msgType, payload)
	if err != nil {
		tb.Fatalf("NewEnvelope(%s): %v", msgType, err)
	}
	t.in <- env
}

func (t *fakeTransport) next(tb testing.TB) *signaling.Envelope {
	tb.Helper()
	select {
	case env := <-t.sent:
		return env
	case <-time.After(waitTimeout):
		tb.Fatal("timed out waiting for an outgoing envelope")
		return nil
	}
}

func (t *fakeTransport) expectSignal(tb testing.TB) signaling.SignalPayload {
	tb.Helper()
	env := t.next(tb)
	if env.Type != signaling.TypeSignal {
		tb.Fatalf("sent %q, want signal", env.Type)
	}
	var p signaling.SignalPayload
	if err := env.Decode(&p); err != nil {
		tb.Fatalf("decode signal: %v", err)
	}
	return p
}

func (t *fakeTransport) expectNothing(tb testing.TB) {
	tb.Helper()
	select {
	case env := <-t.sent:
		tb.Fatalf("unexpected outgoing %q", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeDataChannel struct {
	label string
	state atomic.Value

	mu      sync.Mutex
	onOpen  func()
	onClose func()
	onMsg   func(pion.DataChannelMessage)
	texts   []string
	closes  int
	log     *closeLog
}

func newFakeDataChannel(label string) *fakeDataChannel {
	dc := &fakeDataChannel{label: label}
	dc.state.Store(pion.DataChannelStateConnecting)
	return dc
}

func (d *fakeDataChannel) Label() string { return d.label }

func (d *fakeDataChannel) ReadyState() pion.DataChannelState {
	return d.state.Load().(pion.DataChannelState)
}

func (d *fakeDataChannel) SendText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return nil
}

func (d *fakeDataChannel) Send(data []byte) error { return d.SendText(string(data)) }

func (d *fakeDataChannel) OnOpen(f func()) {
	d.mu.Lock()
	d.onOpen = f
	d.mu.Unlock()
}

func (d *fakeDataChannel) OnClose(f func()) {
	d.mu.Lock()
	d.onClose = f
	d.mu.Unlock()
}

func (d *fakeDataChannel) OnMessage(f func(pion.DataChannelMessage)) {
	d.mu.Lock()
	d.onMsg = f
	d.mu.Unlock()
}

func (d *fakeDataChannel) Close() error {
	d.mu.Lock()
	d.closes++
	if d.closes == 1 {
		d.log.add("data-channel")
	}
	d.mu.Unlock()
	d.state.Store(pion.DataChannelStateClosed)
	return nil
}

func (d *fakeDataChannel) open() {
	d.state.Store(pion.DataChannelStateOpen)
	d.mu.Lock()
	f := d.onOpen
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

func (d *fakeDataChannel) remoteClose() {
	d.state.Store(pion.DataChannelStateClosed)
	d.mu.Lock()
	f := d.onClose
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

func (d *fakeDataChannel) receive(text string) {
	d.mu.Lock()
	f := d.onMsg
	d.mu.Unlock()
	f(pion.DataChannelMessage{IsString: true, Data: []byte(text)})
}

func (d *fakeDataChannel) sentTexts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

func (d *fakeDataChannel) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// fakePeer records every call as a string on calls.
type fakePeer struct {
	calls chan string

	mu            sync.Mutex
	onCandidate   func(pion.ICECandidateInit)
	onState       func(pion.PeerConnectionState)
	onDataChannel func(mpwebrtc.DataChannel)
	dc            *fakeDataChannel
	closed        bool
	log           *closeLog
}

func newFakePeer() *fakePeer {
	return &fakePeer{calls: make(chan string, 64)}
}

func (p *fakePeer) OnICECandidate(f func(pion.ICECandidateInit)) {
	p.mu.Lock()
	p.onCandidate = f
	p.mu.Unlock()
}

func (p *fakePeer) OnConnectionStateChange(f func(pion.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = f
	p.mu.Unlock()
}

func (p *fakePeer) OnDataChannel(f func(mpwebrtc.DataChannel)) {
	p.mu.Lock()
	p.onDataChannel = f
	p.mu.Unlock()
}

func (p *fakePeer) CreateDataChannel(label string) (mpwebrtc.DataChannel, error) {
	dc := newFakeDataChannel(label)
	p.mu.Lock()
	dc.log = p.log
	p.dc = dc
	p.mu.Unlock()
	p.calls <- "create-data-channel"
	return dc, nil
}

func (p *fakePeer) CreateOffer() (pion.SessionDescription, error) {
	p.calls <- "create-offer"
	return pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer() (pion.SessionDescription, error) {
	p.calls <- "create-answer"
	return pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (p *fakePeer) SetRemoteDescription(desc pion.SessionDescription) error {
	p.calls <- "set-remote:" + desc.Type.String()
	return nil
}

func (p *fakePeer) AddICECandidate(c pion.ICECandidateInit) error {
	p.calls <- "add-candidate:" + c.Candidate
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.log.add("peer")
	}
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) dataChannel() *fakeDataChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dc
}

func (p *fakePeer) setState(s pion.PeerConnectionState) {
	p.mu.Lock()
	f := p.onState
	p.mu.Unlock()
	f(s)
}

func (p *fakePeer) gather(candidate string) {
	p.mu.Lock()
	f := p.onCandidate
	p.mu.Unlock()
	f(pion.ICECandidateInit{Candidate: candidate})
}

func (p *fakePeer) remoteDataChannel(dc *fakeDataChannel) {
	p.mu.Lock()
	f := p.onDataChannel
	p.mu.Unlock()
	f(dc)
}

func (p *fakePeer) expectCalls(tb testing.TB, want ...string) {
	tb.Helper()
	for _, w := range want {
		select {
		case got := <-p.calls:
			if got != w {
				tb.Fatalf("peer call = %q, want %q", got, w)
			}
		case <-time.After(waitTimeout):
			tb.Fatalf("timed out waiting for peer call %q", w)
		}
	}
}

func (p *fakePeer) expectNoCalls(tb testing.TB) {
	tb.Helper()
	select {
	case got := <-p.calls:
		tb.Fatalf("unexpected peer call %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	*Session
	statuses   chan Status
	transports chan *fakeTransport
	peers      chan *fakePeer
	opened     chan *Channel
	messages   chan mpwebrtc.Message
	closes     *closeLog
	dials      atomic.Int32
}

func newHarness(t *testing.T, role Role, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		statuses:   make(chan Status, 64),
		transports: make(chan *fakeTransport, 8),
		peers:      make(chan *fakePeer, 8),
		opened:     make(chan *Channel, 8),
		messages:   make(chan mpwebrtc.Message, 64),
		closes:     &closeLog{},
	}
	cfg := Config{
		Role:     role,
		RelayURL: "ws://relay.test/ws",
		Dial: func(ctx context.Context, url string) (Transport, error) {
			h.dials.Add(1)
			tr := newFakeTransport()
			tr.log = h.closes
			h.transports <- tr
			return tr, nil
		},
		NewPeer: func() (Peer, error) {
			p := newFakePeer()
			p.log = h.closes
			h.peers <- p
			return p, nil
		},
		Logger:        newTestLogger(),
		OnStatus:      func(s Status) { h.statuses <- s },
		OnChannelOpen: func(c *Channel) { h.opened <- c },
		OnMessage:     func(m mpwebrtc.Message) { h.messages <- m },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.Session = New(cfg)
	t.Cleanup(h.Close)
	return h
}

func (h *harness) waitState(tb testing.TB, want State) Status {
	tb.Helper()
	for {
		select {
		case st := <-h.statuses:
			if st.State == want {
				return st
			}
		case <-time.After(waitTimeout):
			tb.Fatalf("timed out waiting for state %s (current %s)", want, h.Status().State)
			return Status{}
		}
	}
}

func (h *harness) expectNoTransition(tb testing.TB) {
	tb.Helper()
	select {
	case st := <-h.statuses:
		tb.Fatalf("unexpected transition to %s", st.State)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *harness) transport(tb testing.TB) *fakeTransport {
	tb.Helper()
	select {
	case tr := <-h.transports:
		return tr
	case <-time.After(waitTimeout):
		tb.Fatal("timed out waiting for dial")
		return nil
	}
}

func (h *harness) peer(tb testing.TB) *fakePeer {
	tb.Helper()
	select {
	case p := <-h.peers:
		return p
	case <-time.After(waitTimeout):
		tb.Fatal("timed out waiting for peer connection")
		return nil
	}
}

func (h *harness) noPeer(tb testing.TB) {
	tb.Helper()
	select {
	case <-h.peers:
		tb.Fatal("peer connection created too early")
	default:
	}
}

var errRelayGone = errors.New("relay went away")
