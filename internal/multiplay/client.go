package multiplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BioHazard786/multiplay/internal/session"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
)

// ErrInvalidInput is returned for an input event type other than keydown,
// keyup or mouse.
var ErrInvalidInput = errors.New("invalid input event type")

// Client joins a host's room and sends it input.
type Client struct {
	logger  *slog.Logger
	session *session.Session
	feed    *statusFeed

	onMetadata func(mpwebrtc.ProjectMetadata)

	mu      sync.Mutex
	channel *session.Channel
	meta    *mpwebrtc.ProjectMetadata
}

// NewClient creates a client. onMetadata, if not nil, is called when the
// host's project metadata arrives.
func NewClient(opts Options, onMetadata func(mpwebrtc.ProjectMetadata)) *Client {
	c := &Client{
		logger:     opts.logger().With("role", "client"),
		feed:       newStatusFeed(session.RoleClient),
		onMetadata: onMetadata,
	}

	cfg := opts.sessionConfig(session.RoleClient, c.feed)
	cfg.OnChannelOpen = c.handleChannelOpen
	cfg.OnMessage = c.handleMessage
	c.session = session.New(cfg)
	return c
}

// JoinRoom joins the room identified by code and waits until the relay
// accepts or refuses. An invalid code is rejected before anything is sent.
func (c *Client) JoinRoom(ctx context.Context, code string) (session.Status, error) {
	st, version, _ := c.feed.snapshot()
	if !st.State.Resting() {
		c.logger.Info("already in a room", "state", st.State, "room", st.RoomCode)
		return st, nil
	}
	if err := c.session.Join(code); err != nil {
		return st, err
	}
	return c.feed.await(ctx, version)
}

func (c *Client) handleChannelOpen(ch *session.Channel) {
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()
}

func (c *Client) handleMessage(msg mpwebrtc.Message) {
	switch {
	case msg.Metadata != nil:
		c.mu.Lock()
		meta := *msg.Metadata
		c.meta = &meta
		c.mu.Unlock()
		c.logger.Info("received project metadata", "id", meta.ID, "title", meta.Title)
		if c.onMetadata != nil {
			c.onMetadata(meta)
		}
	case msg.Input != nil:
		c.logger.Warn("ignoring input event from host", "type", msg.Input.Type)
	default:
		c.logger.Info("message from host", "type", msg.Type, "text", msg.Raw)
	}
}

// SendKeyEvent sends a key or mouse event to the host. Events sent while the
// channel is not open are dropped with a warning.
func (c *Client) SendKeyEvent(key, eventType string, coords *mpwebrtc.Coords) error {
	if !mpwebrtc.IsInputType(eventType) {
		return fmt.Errorf("%w: %q", ErrInvalidInput, eventType)
	}

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		c.logger.Warn("not connected, dropping input", "key", key, "type", eventType)
		return nil
	}
	return ch.Send(mpwebrtc.NewInputMessage(mpwebrtc.InputEvent{Key: key, Type: eventType, Coords: coords}))
}

// SendMouse sends a pointer position in stage coordinates.
func (c *Client) SendMouse(x, y float64) error {
	return c.SendKeyEvent("", mpwebrtc.MessageTypeMouse, &mpwebrtc.Coords{X: x, Y: y})
}

// Metadata returns the host's project metadata once it has arrived.
func (c *Client) Metadata() (mpwebrtc.ProjectMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meta == nil {
		return mpwebrtc.ProjectMetadata{}, false
	}
	return *c.meta, true
}

// Status returns the latest session status.
func (c *Client) Status() session.Status {
	return c.session.Status()
}

// Updates delivers session transitions. Old updates are dropped when the
// reader falls behind.
func (c *Client) Updates() <-chan session.Status {
	return c.feed.updates
}

// Summary reports traffic for the session so far.
func (c *Client) Summary() Summary {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	return summarize(session.RoleClient, c.session.Status(), ch, c.feed)
}

// Disconnect leaves the room. It is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.session.Disconnect()
}

// Close disconnects and releases all resources.
func (c *Client) Close() error {
	c.session.Close()
	return nil
}
