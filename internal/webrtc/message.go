package webrtc

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Data channel message types.
const (
	MessageTypeKeyDown         = "keydown"
	MessageTypeKeyUp           = "keyup"
	MessageTypeMouse           = "mouse"
	MessageTypeProjectMetadata = "PROJECT_METADATA"
)

// Coords is a pointer position in stage coordinates.
type Coords struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// InputEvent is a key or mouse event sent from the client to the host.
type InputEvent struct {
	Key    string  `json:"key" msgpack:"key"`
	Type   string  `json:"type" msgpack:"type"`
	Coords *Coords `json:"coords,omitempty" msgpack:"coords,omitempty"`
}

// IsInputType reports whether t names an input event.
func IsInputType(t string) bool {
	switch t {
	case MessageTypeKeyDown, MessageTypeKeyUp, MessageTypeMouse:
		return true
	}
	return false
}

// ProjectStats are the public counters of a project.
type ProjectStats struct {
	Views     int `json:"views" msgpack:"views" yaml:"views"`
	Loves     int `json:"loves" msgpack:"loves" yaml:"loves"`
	Favorites int `json:"favorites" msgpack:"favorites" yaml:"favorites"`
	Remixes   int `json:"remixes" msgpack:"remixes" yaml:"remixes"`
}

// ProjectHistory holds the project timestamps as RFC 3339 strings.
type ProjectHistory struct {
	Created  string `json:"created,omitempty" msgpack:"created,omitempty" yaml:"created"`
	Modified string `json:"modified,omitempty" msgpack:"modified,omitempty" yaml:"modified"`
	Shared   string `json:"shared,omitempty" msgpack:"shared,omitempty" yaml:"shared"`
}

// ProjectRemix links a remix to the project it came from.
type ProjectRemix struct {
	Parent *int64 `json:"parent" msgpack:"parent" yaml:"parent"`
	Root   *int64 `json:"root" msgpack:"root" yaml:"root"`
}

// ProjectMetadata describes the program the host is running. It is pushed
// once when the data channel opens.
type ProjectMetadata struct {
	ID           int64          `json:"id" msgpack:"id" yaml:"id"`
	Title        string         `json:"title" msgpack:"title" yaml:"title"`
	Author       string         `json:"author" msgpack:"author" yaml:"author"`
	Instructions string         `json:"instructions" msgpack:"instructions" yaml:"instructions"`
	Description  string         `json:"description" msgpack:"description" yaml:"description"`
	Stats        ProjectStats   `json:"stats" msgpack:"stats" yaml:"stats"`
	History      ProjectHistory `json:"history" msgpack:"history" yaml:"history"`
	Remix        ProjectRemix   `json:"remix" msgpack:"remix" yaml:"remix"`
}

// Message is a decoded data channel message. Exactly one of Input, Metadata
// or Raw is set. Raw carries frames that are not a known message, verbatim.
type Message struct {
	Type     string
	Input    *InputEvent
	Metadata *ProjectMetadata
	Raw      string
}

// NewInputMessage wraps an input event.
func NewInputMessage(ev InputEvent) Message {
	return Message{Type: ev.Type, Input: &ev}
}

// NewMetadataMessage wraps project metadata.
func NewMetadataMessage(meta ProjectMetadata) Message {
	return Message{Type: MessageTypeProjectMetadata, Metadata: &meta}
}

// NewRawMessage wraps a plain text payload.
func NewRawMessage(text string) Message {
	return Message{Raw: text}
}

// IsRaw reports whether the message was not decoded into a known type.
func (m Message) IsRaw() bool {
	return m.Input == nil && m.Metadata == nil
}

type wireMessage struct {
	Type    string           `json:"type"`
	Key     string           `json:"key,omitempty"`
	Coords  *Coords          `json:"coords,omitempty"`
	Payload *ProjectMetadata `json:"payload,omitempty"`
}

type binaryWireMessage struct {
	Type    string             `msgpack:"type"`
	Key     string             `msgpack:"key"`
	Coords  *Coords            `msgpack:"coords"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Encode renders m in the JSON wire format. Raw messages are sent verbatim.
func Encode(m Message) ([]byte, error) {
	switch {
	case m.Input != nil:
		return json.Marshal(m.Input)
	case m.Metadata != nil:
		return json.Marshal(wireMessage{Type: MessageTypeProjectMetadata, Payload: m.Metadata})
	default:
		return []byte(m.Raw), nil
	}
}

// DecodeText parses a text frame. Anything that is not a known JSON message
// is returned as a raw message rather than discarded.
func DecodeText(data []byte) Message {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return NewRawMessage(string(data))
	}
	switch {
	case IsInputType(w.Type):
		return NewInputMessage(InputEvent{Key: w.Key, Type: w.Type, Coords: w.Coords})
	case w.Type == MessageTypeProjectMetadata && w.Payload != nil:
		return NewMetadataMessage(*w.Payload)
	}
	return Message{Type: w.Type, Raw: string(data)}
}

// DecodeBinary parses a msgpack frame, falling back to a raw message.
func DecodeBinary(data []byte) Message {
	var w binaryWireMessage
	if err := msgpack.Unmarshal(data, &w); err != nil || w.Type == "" {
		return NewRawMessage(string(data))
	}
	switch {
	case IsInputType(w.Type):
		return NewInputMessage(InputEvent{Key: w.Key, Type: w.Type, Coords: w.Coords})
	case w.Type == MessageTypeProjectMetadata && len(w.Payload) > 0:
		var meta ProjectMetadata
		if err := msgpack.Unmarshal(w.Payload, &meta); err != nil {
			return Message{Type: w.Type, Raw: string(data)}
		}
		return NewMetadataMessage(meta)
	}
	return Message{Type: w.Type, Raw: string(data)}
}

// EncodeBinary renders m as msgpack, for peers that prefer binary frames.
func EncodeBinary(m Message) ([]byte, error) {
	switch {
	case m.Input != nil:
		return msgpack.Marshal(binaryWireMessage{Type: m.Input.Type, Key: m.Input.Key, Coords: m.Input.Coords})
	case m.Metadata != nil:
		payload, err := msgpack.Marshal(m.Metadata)
		if err != nil {
			return nil, err
		}
		return msgpack.Marshal(binaryWireMessage{Type: MessageTypeProjectMetadata, Payload: payload})
	default:
		return []byte(m.Raw), nil
	}
}
