package relay

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/multiplay/internal/signaling"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Large enough for an SDP with many codecs.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Conn is one websocket connection to the relay.
type Conn struct {
	ID string

	hub     *Hub
	ws      *websocket.Conn
	logger  *slog.Logger
	limiter *rate.Limiter

	// send is closed by the hub when the connection is unregistered.
	send chan *signaling.Envelope

	// Owned by the hub goroutine.
	room string
}

func newConn(hub *Hub, ws *websocket.Conn) *Conn {
	id := uuid.NewString()
	return &Conn{
		ID:      id,
		hub:     hub,
		ws:      ws,
		logger:  hub.logger.With("conn", id, "remote", ws.RemoteAddr().String()),
		limiter: rate.NewLimiter(hub.opts.MessageRate, hub.opts.MessageBurst),
		send:    make(chan *signaling.Envelope, sendBuffer),
	}
}

// readPump forwards envelopes from the websocket to the hub. It is the only
// reader of the connection.
func (c *Conn) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		env, err := signaling.ParseEnvelope(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		if !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded, dropping message", "type", env.Type)
			continue
		}

		select {
		case c.hub.inbound <- inbound{conn: c, env: env}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump writes queued envelopes and pings. It is the only writer of the
// connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
