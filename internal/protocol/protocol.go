// Package protocol defines the JSON messages exchanged over a room's
// websocket connection. Every frame is an Envelope naming the event and
// carrying the event's payload verbatim.
package protocol

import (
	"encoding/json"
	"fmt"

	"coderoom/internal/language"
)

// Event names a message type on the wire.
type Event string

const (
	// Client to server.
	EventJoinRoom       Event = "join-room"
	EventCodeChange     Event = "code-change"
	EventLanguageChange Event = "language-change"

	// Server to client.
	EventRoomState      Event = "room-state"
	EventCodeUpdate     Event = "code-update"
	EventLanguageUpdate Event = "language-update"
)

// Envelope wraps an event name and its raw payload.
type Envelope struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoom is sent by a client to register room membership.
// The reply is a RoomState snapshot.
type JoinRoom struct {
	RoomID string `json:"roomId"`
}

// RoomState is the one-time snapshot sent to a client on join: every
// per-language buffer plus the room's active language.
type RoomState struct {
	Code     map[language.Language]string `json:"codeByLanguage"`
	Language language.Language            `json:"activeLanguage"`
}

// CodeChange is a client edit scoped to one room and one language.
type CodeChange struct {
	RoomID   string            `json:"roomId"`
	Code     string            `json:"code"`
	Language language.Language `json:"language"`
}

// CodeUpdate is the rebroadcast of a CodeChange to the rest of the room.
type CodeUpdate struct {
	Code     string            `json:"code"`
	Language language.Language `json:"language"`
}

// LanguageChange is a client switching the room's active language.
type LanguageChange struct {
	RoomID   string            `json:"roomId"`
	Language language.Language `json:"language"`
}

// LanguageUpdate is the rebroadcast of a LanguageChange. The payload is the
// bare language string.
type LanguageUpdate = language.Language

// Encode marshals an event and payload into a wire frame.
func Encode(event Event, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// Decode unmarshals a wire frame into its envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("frame missing event name")
	}
	return env, nil
}
