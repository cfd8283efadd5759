package multiplay

import (
	"time"

	"github.com/BioHazard786/multiplay/internal/session"
)

// Summary describes a session for the end-of-session report.
type Summary struct {
	Role      session.Role
	RoomCode  string
	State     session.State
	Reason    string
	Sent      int64
	Received  int64
	Connected time.Duration
}

func summarize(role session.Role, st session.Status, ch *session.Channel, feed *statusFeed) Summary {
	s := Summary{
		Role:      role,
		RoomCode:  feed.room(),
		State:     st.State,
		Reason:    st.Reason,
		Connected: feed.connected(),
	}
	if ch != nil {
		s.Sent, s.Received = ch.Stats()
	}
	return s
}
