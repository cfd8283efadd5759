package multiplay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/BioHazard786/multiplay/internal/metadata"
	"github.com/BioHazard786/multiplay/internal/session"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
)

const inputQueueSize = 256

// Host runs a program and lets one remote client drive it.
type Host struct {
	logger    *slog.Logger
	session   *session.Session
	feed      *statusFeed
	provider  metadata.Provider
	projectID int64
	runtime   Runtime

	inputs chan mpwebrtc.InputEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	meta    *mpwebrtc.ProjectMetadata
	channel *session.Channel

	closeOnce sync.Once
}

// NewHost creates a host for projectID. Metadata is fetched from provider
// when the room is created; rt receives the client's input events.
func NewHost(opts Options, provider metadata.Provider, projectID int64, rt Runtime) *Host {
	logger := opts.logger().With("role", "host")
	if rt == nil {
		rt = LogRuntime{Logger: logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		logger:    logger,
		feed:      newStatusFeed(session.RoleHost),
		provider:  provider,
		projectID: projectID,
		runtime:   rt,
		inputs:    make(chan mpwebrtc.InputEvent, inputQueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	cfg := opts.sessionConfig(session.RoleHost, h.feed)
	cfg.OnChannelOpen = h.handleChannelOpen
	cfg.OnMessage = h.handleMessage
	h.session = session.New(cfg)

	h.wg.Add(1)
	go h.applyInputs()
	return h
}

// CreateRoom fetches the project metadata, asks the relay for a room and
// waits until the room code is known. A call while a session is already
// active returns the current status without creating a second room.
func (h *Host) CreateRoom(ctx context.Context) (session.Status, error) {
	st, version, _ := h.feed.snapshot()
	if !st.State.Resting() {
		h.logger.Info("room already active", "state", st.State, "room", st.RoomCode)
		return st, nil
	}

	if err := h.loadMetadata(ctx); err != nil {
		return st, err
	}
	if err := h.session.Create(); err != nil {
		return st, err
	}
	return h.feed.await(ctx, version)
}

func (h *Host) loadMetadata(ctx context.Context) error {
	h.mu.Lock()
	loaded := h.meta != nil
	h.mu.Unlock()
	if loaded || h.provider == nil {
		return nil
	}

	meta, err := h.provider.Fetch(ctx, h.projectID)
	if err != nil {
		return fmt.Errorf("failed to load project metadata: %w", err)
	}
	h.mu.Lock()
	h.meta = &meta
	h.mu.Unlock()
	return nil
}

// Metadata returns the metadata sent to clients.
func (h *Host) Metadata() (mpwebrtc.ProjectMetadata, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.meta == nil {
		return mpwebrtc.ProjectMetadata{}, false
	}
	return *h.meta, true
}

// handleChannelOpen runs on the session goroutine. ch is published only
// after the metadata is on the wire, so the metadata is always the first
// message the client sees.
func (h *Host) handleChannelOpen(ch *session.Channel) {
	h.mu.Lock()
	meta := h.meta
	h.mu.Unlock()

	if meta == nil {
		h.logger.Warn("no project metadata to send")
	} else if err := ch.Send(mpwebrtc.NewMetadataMessage(*meta)); err != nil {
		h.logger.Error("failed to send project metadata", "error", err)
	}

	h.mu.Lock()
	h.channel = ch
	h.mu.Unlock()
}

// handleMessage runs on the data channel goroutine. Input is queued so a slow
// runtime never stalls the channel.
func (h *Host) handleMessage(msg mpwebrtc.Message) {
	switch {
	case msg.Input != nil:
		select {
		case h.inputs <- *msg.Input:
		default:
			h.logger.Warn("input queue full, dropping event", "type", msg.Input.Type)
		}
	case msg.Metadata != nil:
		h.logger.Warn("ignoring project metadata from client")
	default:
		h.logger.Info("message from client", "type", msg.Type, "text", msg.Raw)
	}
}

func (h *Host) applyInputs() {
	defer h.wg.Done()
	for {
		select {
		case ev := <-h.inputs:
			if err := h.runtime.Apply(h.ctx, ev); err != nil {
				h.logger.Warn("runtime rejected input", "type", ev.Type, "error", err)
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// SendKeyEvent is a no-op on the host: input only flows from the client to
// the program.
func (h *Host) SendKeyEvent(key, eventType string, coords *mpwebrtc.Coords) error {
	h.logger.Debug("host does not send input events", "key", key, "type", eventType)
	return nil
}

// Status returns the latest session status.
func (h *Host) Status() session.Status {
	return h.session.Status()
}

// Updates delivers session transitions. Old updates are dropped when the
// reader falls behind.
func (h *Host) Updates() <-chan session.Status {
	return h.feed.updates
}

// Summary reports traffic for the session so far.
func (h *Host) Summary() Summary {
	h.mu.Lock()
	ch := h.channel
	h.mu.Unlock()
	return summarize(session.RoleHost, h.session.Status(), ch, h.feed)
}

// Disconnect tears down the room. It is safe to call repeatedly.
func (h *Host) Disconnect() {
	h.session.Disconnect()
}

// Close disconnects, stops the runtime and releases all resources.
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.session.Close()
		h.cancel()
		h.wg.Wait()
		if c, ok := h.runtime.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
