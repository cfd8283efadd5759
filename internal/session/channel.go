package session

import (
	"log/slog"
	"sync"
	"sync/atomic"

	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	pion "github.com/pion/webrtc/v4"
)

// Channel is the ordered, reliable message stream between the two peers.
// Messages are delivered to the session's OnMessage callback in arrival
// order, from the start of the channel, so nothing pushed right after open
// is missed.
type Channel struct {
	dc      mpwebrtc.DataChannel
	logger  *slog.Logger
	handler func(mpwebrtc.Message)
	binary  bool

	closeOnce sync.Once
	closed    atomic.Bool
	sent      atomic.Int64
	received  atomic.Int64
}

// newChannel wraps dc and registers its callbacks. onOpen and onClose are
// called from pion goroutines.
func newChannel(dc mpwebrtc.DataChannel, logger *slog.Logger, handler func(mpwebrtc.Message), onOpen, onClose func()) *Channel {
	c := &Channel{
		dc:      dc,
		logger:  logger,
		handler: handler,
	}
	dc.OnMessage(c.deliver)
	dc.OnOpen(func() {
		if !c.closed.Load() {
			onOpen()
		}
	})
	dc.OnClose(func() {
		if !c.closed.Load() {
			onClose()
		}
	})
	return c
}

// Label returns the channel label.
func (c *Channel) Label() string {
	return c.dc.Label()
}

// Open reports whether the channel is ready to send.
func (c *Channel) Open() bool {
	return !c.closed.Load() && c.dc.ReadyState() == pion.DataChannelStateOpen
}

// Send transmits msg as a text frame, or as a msgpack binary frame when the
// session was configured with BinaryFrames. If the channel is not open the
// message is dropped with a warning; it is never buffered for later delivery.
func (c *Channel) Send(msg mpwebrtc.Message) error {
	if !c.Open() {
		c.logger.Warn("data channel not open, dropping message", "type", msg.Type)
		return nil
	}
	if c.binary {
		data, err := mpwebrtc.EncodeBinary(msg)
		if err != nil {
			return newError("encode message", err)
		}
		if err := c.dc.Send(data); err != nil {
			return newError("send message", err)
		}
	} else {
		data, err := mpwebrtc.Encode(msg)
		if err != nil {
			return newError("encode message", err)
		}
		if err := c.dc.SendText(string(data)); err != nil {
			return newError("send message", err)
		}
	}
	c.sent.Add(1)
	return nil
}

func (c *Channel) deliver(raw pion.DataChannelMessage) {
	if c.closed.Load() {
		return
	}
	var msg mpwebrtc.Message
	if raw.IsString {
		msg = mpwebrtc.DecodeText(raw.Data)
	} else {
		msg = mpwebrtc.DecodeBinary(raw.Data)
	}
	c.received.Add(1)
	if c.handler != nil {
		c.handler(msg)
	}
}

// Stats returns the number of messages sent and received.
func (c *Channel) Stats() (sent, received int64) {
	return c.sent.Load(), c.received.Load()
}

// Close closes the channel. Callbacks stop firing once Close is called.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.dc.Close()
	})
	return err
}
