package webrtc

import (
	"testing"
)

func TestDecodeText_InputEvents(t *testing.T) {
	tests := []struct {
		frame string
		want  InputEvent
	}{
		{`{"key":"ArrowUp","type":"keydown"}`, InputEvent{Key: "ArrowUp", Type: MessageTypeKeyDown}},
		{`{"key":" ","type":"keyup"}`, InputEvent{Key: " ", Type: MessageTypeKeyUp}},
		{`{"key":"","type":"mouse","coords":{"x":12.5,"y":-3}}`, InputEvent{Type: MessageTypeMouse, Coords: &Coords{X: 12.5, Y: -3}}},
	}

	for _, tt := range tests {
		msg := DecodeText([]byte(tt.frame))
		if msg.Input == nil {
			t.Fatalf("DecodeText(%s) did not decode an input event: %+v", tt.frame, msg)
		}
		got := *msg.Input
		if got.Key != tt.want.Key || got.Type != tt.want.Type {
			t.Errorf("DecodeText(%s) = %+v, want %+v", tt.frame, got, tt.want)
		}
		if (got.Coords == nil) != (tt.want.Coords == nil) {
			t.Errorf("DecodeText(%s) coords = %v, want %v", tt.frame, got.Coords, tt.want.Coords)
		} else if got.Coords != nil && *got.Coords != *tt.want.Coords {
			t.Errorf("DecodeText(%s) coords = %v, want %v", tt.frame, *got.Coords, *tt.want.Coords)
		}
	}
}

func TestDecodeText_PassesThroughPlainText(t *testing.T) {
	for _, frame := range []string{"hello host", "42", `"quoted"`, `{"unknown":true}`} {
		msg := DecodeText([]byte(frame))
		if !msg.IsRaw() {
			t.Errorf("DecodeText(%q) decoded as %+v, want raw", frame, msg)
		}
		if msg.Raw != frame {
			t.Errorf("DecodeText(%q).Raw = %q", frame, msg.Raw)
		}
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	parent := int64(7)
	meta := ProjectMetadata{
		ID:           1234,
		Title:        "Pong",
		Author:       "griffpatch",
		Instructions: "Use arrow keys",
		Stats:        ProjectStats{Views: 10, Loves: 2},
		History:      ProjectHistory{Created: "2024-01-02T03:04:05Z"},
		Remix:        ProjectRemix{Parent: &parent},
	}

	data, err := Encode(NewMetadataMessage(meta))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	msg := DecodeText(data)
	if msg.Metadata == nil {
		t.Fatalf("DecodeText(%s) did not decode metadata", data)
	}
	if msg.Type != MessageTypeProjectMetadata {
		t.Errorf("type = %q", msg.Type)
	}
	got := msg.Metadata
	if got.ID != 1234 || got.Title != "Pong" || got.Stats.Loves != 2 || got.Remix.Parent == nil || *got.Remix.Parent != 7 {
		t.Errorf("metadata = %+v", got)
	}
}

func TestEncode_InputWireFormat(t *testing.T) {
	data, err := Encode(NewInputMessage(InputEvent{Key: "a", Type: MessageTypeKeyDown}))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if string(data) != `{"key":"a","type":"keydown"}` {
		t.Errorf("Encode = %s", data)
	}
}

func TestDecodeBinary(t *testing.T) {
	data, err := EncodeBinary(NewInputMessage(InputEvent{Type: MessageTypeMouse, Coords: &Coords{X: 1, Y: 2}}))
	if err != nil {
		t.Fatalf("EncodeBinary error: %v", err)
	}
	msg := DecodeBinary(data)
	if msg.Input == nil || msg.Input.Coords == nil || msg.Input.Coords.Y != 2 {
		t.Errorf("DecodeBinary = %+v", msg)
	}

	data, err = EncodeBinary(NewMetadataMessage(ProjectMetadata{ID: 9, Title: "Maze"}))
	if err != nil {
		t.Fatalf("EncodeBinary error: %v", err)
	}
	msg = DecodeBinary(data)
	if msg.Metadata == nil || msg.Metadata.Title != "Maze" {
		t.Errorf("DecodeBinary metadata = %+v", msg)
	}

	msg = DecodeBinary([]byte("plain bytes"))
	if !msg.IsRaw() || msg.Raw != "plain bytes" {
		t.Errorf("DecodeBinary(plain) = %+v", msg)
	}
}

func TestIsTunnelName(t *testing.T) {
	for name, want := range map[string]bool{
		"wg0": true, "tun0": true, "utun3": true, "eth0": false, "en0": false, "wlan0": false,
	} {
		if got := isTunnelName(name); got != want {
			t.Errorf("isTunnelName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestICEServers(t *testing.T) {
	servers := ICEServers([]string{"stun:stun.l.google.com:19302"}, "turn.example.com", "u", "p")
	if len(servers) != 2 {
		t.Fatalf("len(servers) = %d, want 2", len(servers))
	}
	if len(servers[1].URLs) != 3 || servers[1].Username != "u" {
		t.Errorf("turn server = %+v", servers[1])
	}
	if got := ICEServers(nil, "", "", ""); len(got) != 0 {
		t.Errorf("ICEServers(empty) = %+v", got)
	}
}
