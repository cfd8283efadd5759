package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BioHazard786/multiplay/internal/signaling"
	"golang.org/x/time/rate"
)

// Reasons sent in join-failed.
const (
	ReasonNotFound    = "room not found"
	ReasonFull        = "room is full"
	ReasonInvalidCode = "invalid room code"
)

const (
	codeAttempts = 16
	storeTimeout = 2 * time.Second
)

// Options tunes a Hub.
type Options struct {
	// Codes reserves room codes. Nil keeps reservations in memory.
	Codes CodeStore

	// MessageRate and MessageBurst limit inbound messages per connection.
	MessageRate  rate.Limit
	MessageBurst int

	Logger *slog.Logger
}

type inbound struct {
	conn *Conn
	env  *signaling.Envelope
}

type lookup struct {
	code  string
	reply chan lookupResult
}

type lookupResult struct {
	info RoomInfo
	ok   bool
}

// Hub owns every room and connection. All state is touched only by the
// goroutine running Run.
type Hub struct {
	opts   Options
	logger *slog.Logger

	rooms map[string]*Room
	conns map[*Conn]struct{}

	register   chan *Conn
	unregister chan *Conn
	inbound    chan inbound
	lookups    chan lookup
	done       chan struct{}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts Options) *Hub {
	if opts.Codes == nil {
		opts.Codes = NewMemoryCodes()
	}
	if opts.MessageRate == 0 {
		opts.MessageRate = 50
	}
	if opts.MessageBurst == 0 {
		opts.MessageBurst = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		opts:       opts,
		logger:     logger.With("component", "relay"),
		rooms:      make(map[string]*Room),
		conns:      make(map[*Conn]struct{}),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		inbound:    make(chan inbound),
		lookups:    make(chan lookup),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case c := <-h.register:
			h.conns[c] = struct{}{}
			c.logger.Debug("connection registered")

		case c := <-h.unregister:
			if _, ok := h.conns[c]; !ok {
				continue
			}
			h.drop(c)
			c.logger.Debug("connection unregistered")

		case in := <-h.inbound:
			if _, ok := h.conns[in.conn]; ok {
				h.handle(in.conn, in.env)
			}

		case l := <-h.lookups:
			room, ok := h.rooms[l.code]
			if ok {
				l.reply <- lookupResult{info: room.info(), ok: true}
			} else {
				l.reply <- lookupResult{}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.conns {
		close(c.send)
	}
	h.conns = nil
	for code := range h.rooms {
		h.releaseCode(code)
	}
	h.rooms = nil
	h.logger.Info("relay stopped")
}

func (h *Hub) releaseCode(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.opts.Codes.Release(ctx, code); err != nil {
		h.logger.Warn("failed to release room code", "room", code, "error", err)
	}
}

// attach registers c. It reports false once the hub has stopped.
func (h *Hub) attach(c *Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Lookup returns the public view of the room with code.
func (h *Hub) Lookup(ctx context.Context, code string) (RoomInfo, bool, error) {
	reply := make(chan lookupResult, 1)
	select {
	case h.lookups <- lookup{code: code, reply: reply}:
	case <-h.done:
		return RoomInfo{}, false, errors.New("relay stopped")
	case <-ctx.Done():
		return RoomInfo{}, false, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.info, res.ok, nil
	case <-ctx.Done():
		return RoomInfo{}, false, ctx.Err()
	}
}

func (h *Hub) handle(c *Conn, env *signaling.Envelope) {
	switch env.Type {
	case signaling.TypeCreate:
		h.create(c)
	case signaling.TypeJoin:
		h.join(c, env)
	case signaling.TypeSignal:
		h.relaySignal(c, env)
	case signaling.TypeLeave:
		h.leave(c)
	default:
		c.logger.Warn("unknown message type", "type", env.Type)
	}
}

func (h *Hub) create(c *Conn) {
	if c.room != "" {
		c.logger.Warn("create from a connection already in a room", "room", c.room)
		return
	}

	code, err := h.newCode()
	if err != nil {
		// There is no failure reply for create, so the host learns of it
		// through the closed connection.
		c.logger.Error("failed to allocate room code", "error", err)
		h.drop(c)
		return
	}

	h.rooms[code] = &Room{Code: code, Host: c, Created: time.Now()}
	c.room = code
	c.logger.Info("room created", "room", code)
	h.deliver(c, signaling.MustEnvelope(signaling.TypeRoomCreated, signaling.RoomPayload{RoomCode: code}))
}

func (h *Hub) newCode() (string, error) {
	for range codeAttempts {
		code, err := signaling.GenerateRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.rooms[code]; taken {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		ok, err := h.opts.Codes.Reserve(ctx, code)
		cancel()
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", errors.New("no free room code")
}

func (h *Hub) join(c *Conn, env *signaling.Envelope) {
	var req signaling.RoomPayload
	if err := env.Decode(&req); err != nil {
		h.refuse(c, ReasonInvalidCode)
		return
	}
	code, err := signaling.NormalizeRoomCode(req.RoomCode)
	if err != nil {
		h.refuse(c, ReasonInvalidCode)
		return
	}
	if c.room != "" {
		c.logger.Warn("join from a connection already in a room", "room", c.room)
		h.refuse(c, ReasonFull)
		return
	}

	room, ok := h.rooms[code]
	if !ok {
		h.refuse(c, ReasonNotFound)
		return
	}
	if room.Client != nil {
		h.refuse(c, ReasonFull)
		return
	}

	room.Client = c
	c.room = code
	c.logger.Info("joined room", "room", code)
	h.deliver(c, signaling.MustEnvelope(signaling.TypeJoinSuccess, signaling.RoomPayload{RoomCode: code}))
	h.deliver(room.Host, signaling.MustEnvelope(signaling.TypePeerJoined, signaling.RoomPayload{RoomCode: code}))
}

func (h *Hub) refuse(c *Conn, reason string) {
	c.logger.Info("join refused", "reason", reason)
	h.deliver(c, signaling.MustEnvelope(signaling.TypeJoinFailed, signaling.JoinFailedPayload{Reason: reason}))
}

// relaySignal forwards a negotiation message to the other room member
// unchanged.
func (h *Hub) relaySignal(c *Conn, env *signaling.Envelope) {
	room, ok := h.rooms[c.room]
	if !ok {
		c.logger.Warn("signal from a connection outside any room")
		return
	}
	target := room.peer(c)
	if target == nil {
		c.logger.Debug("no peer to relay signal to", "room", room.Code)
		return
	}
	h.deliver(target, env)
}

// leave removes c from its room. A departing host closes the room; either
// departure notifies the remaining member.
func (h *Hub) leave(c *Conn) {
	room, ok := h.rooms[c.room]
	c.room = ""
	if !ok {
		return
	}

	other := room.peer(c)
	if c == room.Host {
		delete(h.rooms, room.Code)
		h.releaseCode(room.Code)
		if other != nil {
			other.room = ""
		}
		h.logger.Info("room closed", "room", room.Code)
	} else {
		room.Client = nil
	}

	if other != nil {
		h.deliver(other, signaling.MustEnvelope(signaling.TypePeerDisconnected, signaling.RoomPayload{RoomCode: room.Code}))
	}
}

// deliver queues env for c. A connection that cannot keep up is dropped.
func (h *Hub) deliver(c *Conn, env *signaling.Envelope) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	select {
	case c.send <- env:
	default:
		c.logger.Warn("send buffer full, closing connection")
		h.drop(c)
	}
}

// drop removes c from its room and the hub. Closing c.send makes the write
// pump send a close frame.
func (h *Hub) drop(c *Conn) {
	h.leave(c)
	delete(h.conns, c)
	close(c.send)
}
