package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Envelope is the JSON frame exchanged with the relay.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope type constants.
const (
	TypeCreate = "create"
	TypeJoin   = "join"
	TypeLeave  = "leave"
	TypeSignal = "signal"

	TypeRoomCreated      = "room-created"
	TypeJoinSuccess      = "join-success"
	TypeJoinFailed       = "join-failed"
	TypePeerJoined       = "peer-joined"
	TypePeerDisconnected = "peer-disconnected"
)

// RoomPayload carries a room code (create ack, join, leave).
type RoomPayload struct {
	RoomCode string `json:"roomCode"`
}

// JoinFailedPayload is sent by the relay when a join is refused.
type JoinFailedPayload struct {
	Reason string `json:"reason"`
}

// SignalPayload carries either a session description or an ICE candidate.
type SignalPayload struct {
	RoomCode  string                   `json:"roomCode"`
	SDP       string                   `json:"sdp,omitempty"`
	SDPType   string                   `json:"sdpType,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// IsDescription reports whether the payload carries an SDP.
func (p *SignalPayload) IsDescription() bool {
	return p.SDP != ""
}

// Description converts the payload into a pion session description.
func (p *SignalPayload) Description() (webrtc.SessionDescription, error) {
	switch p.SDPType {
	case "offer":
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP}, nil
	case "answer":
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unexpected sdp type %q", p.SDPType)
	}
}

// NewEnvelope builds an envelope with a JSON-encoded payload. A nil payload
// is encoded as an empty object.
func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Type: msgType, Payload: json.RawMessage(`{}`)}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Envelope{Type: msgType, Payload: b}, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to encode.
func MustEnvelope(msgType string, payload any) *Envelope {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ParseEnvelope decodes a raw frame. Frames that are not JSON objects or have
// no type are rejected.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return &env, nil
}
