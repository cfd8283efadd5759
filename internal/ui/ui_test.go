package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/multiplay/internal/session"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	tea "github.com/charmbracelet/bubbletea"
)

type recordingSink struct {
	keys   []string
	points [][2]float64
	err    error
}

func (r *recordingSink) SendKeyEvent(key, eventType string, coords *mpwebrtc.Coords) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, eventType+":"+key)
	return nil
}

func (r *recordingSink) SendMouse(x, y float64) error {
	r.points = append(r.points, [2]float64{x, y})
	return nil
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		msg  tea.KeyMsg
		want string
		ok   bool
	}{
		{tea.KeyMsg{Type: tea.KeyUp}, "ArrowUp", true},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, " ", true},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}, "a", true},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}, Alt: true}, "", false},
		{tea.KeyMsg{Type: tea.KeyF5}, "", false},
	}
	for _, tt := range tests {
		got, ok := KeyName(tt.msg)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KeyName(%v) = %q, %v; want %q, %v", tt.msg, got, ok, tt.want, tt.ok)
		}
	}
}

func TestController_KeyPressSendsDownAndUp(t *testing.T) {
	sink := &recordingSink{}
	c := NewController("test", sink, session.Status{State: session.StateConnected}, nil)
	c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})

	want := []string{"keydown:w", "keyup:w"}
	if strings.Join(sink.keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys = %v, want %v", sink.keys, want)
	}
	if !strings.Contains(c.View(), "keys sent: 1") {
		t.Errorf("view missing key count:\n%s", c.View())
	}
}

func TestController_SendErrorShown(t *testing.T) {
	sink := &recordingSink{err: errors.New("channel gone")}
	c := NewController("test", sink, session.Status{State: session.StateConnected}, nil)
	c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(c.View(), "channel gone") {
		t.Errorf("view missing error:\n%s", c.View())
	}
}

func TestController_MouseMapsToStage(t *testing.T) {
	sink := &recordingSink{}
	c := NewController("test", sink, session.Status{State: session.StateConnected}, nil)
	c.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	c.Update(tea.MouseMsg{X: 50, Y: 25, Action: tea.MouseActionMotion})
	c.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionMotion})
	c.Update(tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress})

	if len(sink.points) != 2 {
		t.Fatalf("points = %v, want 2 motion updates", sink.points)
	}
	if sink.points[0] != [2]float64{0, 0} {
		t.Errorf("center = %v", sink.points[0])
	}
	if sink.points[1] != [2]float64{-StageWidth / 2, StageHeight / 2} {
		t.Errorf("top-left = %v", sink.points[1])
	}
}

func TestController_QuitsWhenSessionRests(t *testing.T) {
	c := NewController("test", &recordingSink{}, session.Status{State: session.StateConnected}, nil)
	_, cmd := c.Update(statusMsg(session.Status{State: session.StateNegotiating}))
	if cmd == nil || c.done {
		t.Fatal("expected to keep listening while active")
	}
	_, cmd = c.Update(statusMsg(session.Status{State: session.StateDisconnected}))
	if cmd == nil || !c.done {
		t.Fatal("expected quit on disconnected")
	}
	if c.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestSessionSummaryView(t *testing.T) {
	out := SessionSummaryView("Session", SessionSummary{
		Role:      "host",
		RoomCode:  "AB12CD",
		State:     "disconnected",
		Reason:    "peer disconnected",
		Sent:      12345,
		Received:  3,
		Connected: 90 * time.Second,
	})
	for _, want := range []string{"AB12CD", "12,345", "1m30s", "peer disconnected"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestMetadataView(t *testing.T) {
	out := MetadataView(mpwebrtc.ProjectMetadata{
		ID:           42,
		Title:        "Pong",
		Author:       "someone",
		Instructions: "Use arrows\nto move",
		Stats:        mpwebrtc.ProjectStats{Views: 1500},
	})
	for _, want := range []string{"42", "Pong", "1,500", "Use arrows"} {
		if !strings.Contains(out, want) {
			t.Errorf("metadata missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "to move") {
		t.Error("instructions should show only the first line")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}

func TestStateBadge(t *testing.T) {
	for _, s := range []session.State{
		session.StateIdle,
		session.StateWaitingForPeer,
		session.StateConnected,
		session.StateFailed,
	} {
		if got := StateBadge(s); !strings.Contains(got, string(s)) {
			t.Errorf("StateBadge(%s) = %q", s, got)
		}
	}
}

func TestRoomInfoView(t *testing.T) {
	out := NewRoomInfo("AB12CD", "wss://relay.test/ws").View()
	for _, want := range []string{"AB12CD", "wss://relay.test/ws", "multiplay join AB12CD"} {
		if !strings.Contains(out, want) {
			t.Errorf("room info missing %q:\n%s", want, out)
		}
	}
}
