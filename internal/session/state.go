package session

import "time"

// State is the authoritative connection state of a session.
type State string

const (
	StateIdle               State = "idle"
	StateConnecting         State = "connecting"
	StateSignalingConnected State = "signaling-connected"
	StateWaitingForPeer     State = "waiting-for-peer"
	StateNegotiating        State = "negotiating"
	StateConnected          State = "connected"
	StateDisconnected       State = "disconnected"
	StateFailed             State = "failed"
)

// Resting reports whether no resources are held in state s.
func (s State) Resting() bool {
	return s == StateIdle || s == StateDisconnected || s == StateFailed
}

// inRoom reports whether the relay knows us as a room member in state s.
func (s State) inRoom() bool {
	return s == StateWaitingForPeer || s == StateNegotiating || s == StateConnected
}

// Role is the side of the session.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Status is a snapshot of a session, published on every transition.
type Status struct {
	State    State
	Role     Role
	RoomCode string

	// Reason is a human-readable explanation for idle (after join-failed),
	// disconnected and failed.
	Reason string

	// Err is set when the transition was caused by an error.
	Err error

	// Generation identifies the create/join attempt the status belongs to.
	Generation uint64

	// Since is when the session entered State.
	Since time.Time
}
