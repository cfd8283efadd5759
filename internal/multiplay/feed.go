package multiplay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BioHazard786/multiplay/internal/session"
)

const updatesBuffer = 32

// ErrAborted is returned by CreateRoom and JoinRoom when the attempt is
// disconnected before it reaches a room.
var ErrAborted = errors.New("session ended before reaching a room")

// statusFeed fans session transitions out to a buffered channel for the UI
// and to waiters blocked in CreateRoom or JoinRoom.
type statusFeed struct {
	updates chan session.Status

	mu      sync.Mutex
	latest  session.Status
	version uint64
	changed chan struct{}

	lastRoom     string
	connectedAt  time.Time
	connectedFor time.Duration
}

func newStatusFeed(role session.Role) *statusFeed {
	return &statusFeed{
		updates: make(chan session.Status, updatesBuffer),
		latest:  session.Status{State: session.StateIdle, Role: role},
		changed: make(chan struct{}),
	}
}

// publish runs on the session goroutine and never blocks. When the UI falls
// behind, the oldest update is discarded.
func (f *statusFeed) publish(st session.Status) {
	f.mu.Lock()
	if st.State == session.StateConnected {
		f.connectedAt = st.Since
	} else if !f.connectedAt.IsZero() {
		f.connectedFor += st.Since.Sub(f.connectedAt)
		f.connectedAt = time.Time{}
	}
	if st.RoomCode != "" {
		f.lastRoom = st.RoomCode
	}
	f.latest = st
	f.version++
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()

	for {
		select {
		case f.updates <- st:
			return
		default:
		}
		select {
		case <-f.updates:
		default:
		}
	}
}

func (f *statusFeed) snapshot() (session.Status, uint64, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.version, f.changed
}

func (f *statusFeed) room() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRoom
}

// connected returns the total time spent connected, including the current
// connection if there is one.
func (f *statusFeed) connected() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.connectedFor
	if !f.connectedAt.IsZero() {
		d += time.Since(f.connectedAt)
	}
	return d
}

// await blocks until a transition newer than version reaches a room (success)
// or a resting state (the attempt ended).
func (f *statusFeed) await(ctx context.Context, version uint64) (session.Status, error) {
	for {
		st, v, changed := f.snapshot()
		if v > version {
			switch st.State {
			case session.StateWaitingForPeer, session.StateNegotiating, session.StateConnected:
				return st, nil
			case session.StateIdle, session.StateDisconnected, session.StateFailed:
				if st.Err != nil {
					return st, st.Err
				}
				return st, ErrAborted
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}
