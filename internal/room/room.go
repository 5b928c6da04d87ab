// Package room holds the authoritative state for collaboration rooms: one
// code buffer per supported language plus the room's active language.
package room

import (
	"coderoom/internal/language"
)

// Room is a named collaboration session. A room always carries one buffer
// for every supported language, so switching languages never loses work in
// the other language's buffer.
type Room struct {
	ID     string
	Code   map[language.Language]string
	Active language.Language
}

func newRoom(id string) *Room {
	return &Room{
		ID:     id,
		Code:   language.Templates(),
		Active: language.Default,
	}
}

// snapshot returns a copy of the room's buffers safe to hand outside the
// registry's goroutine.
func (r *Room) snapshot() Snapshot {
	code := make(map[language.Language]string, len(r.Code))
	for lang, text := range r.Code {
		code[lang] = text
	}
	return Snapshot{Code: code, Active: r.Active}
}

// Snapshot is the full per-language code state plus the active language,
// sent once to a client joining a room.
type Snapshot struct {
	Code   map[language.Language]string
	Active language.Language
}
