package room

import (
	"log"

	"coderoom/internal/language"
	"coderoom/internal/protocol"
)

// Outbox delivers an encoded frame to one connection. Implementations must
// not block; the server backs each outbox with a buffered channel.
type Outbox interface {
	Deliver(frame []byte)
}

// Registry owns the mapping from room id to room state and the broadcast
// group of each room. Rooms are created lazily on first join or first edit
// and live for the process lifetime; there is no eviction.
//
// All methods must be called from a single goroutine (the server's hub
// loop serializes every mutation, so concurrent edits resolve by arrival
// order and the later write wins). The registry itself takes no locks.
type Registry struct {
	rooms   map[string]*Room
	members map[string]*membership
}

type membership struct {
	roomID string
	connID string
	out    Outbox
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[string]*membership),
	}
}

func (reg *Registry) getOrCreate(roomID string) *Room {
	if r, ok := reg.rooms[roomID]; ok {
		return r
	}
	r := newRoom(roomID)
	reg.rooms[roomID] = r
	log.Printf("room %s created", roomID)
	return r
}

// Join registers the connection as a member of the room's broadcast group,
// creating the room with default templates if it has never been seen, and
// returns the room snapshot. Join never fails.
//
// A connection already in another room is moved: membership is keyed by
// connection id and a connection belongs to at most one room.
func (reg *Registry) Join(roomID, connID string, out Outbox) Snapshot {
	r := reg.getOrCreate(roomID)
	reg.members[connID] = &membership{roomID: roomID, connID: connID, out: out}
	return r.snapshot()
}

// Leave removes the connection from whatever room it was in. No broadcast
// is sent. Leaving twice is a no-op.
func (reg *Registry) Leave(connID string) {
	delete(reg.members, connID)
}

// ApplyCodeChange overwrites the room's buffer for one language with the
// new text (last write wins, no merge) and rebroadcasts the change to every
// other member of the room. The originating connection is excluded so an
// editor never re-receives its own keystroke.
func (reg *Registry) ApplyCodeChange(roomID string, lang language.Language, code string, originConnID string) {
	r := reg.getOrCreate(roomID)
	r.Code[lang] = code

	reg.broadcast(roomID, originConnID, protocol.EventCodeUpdate, protocol.CodeUpdate{
		Code:     code,
		Language: lang,
	})
}

// ApplyLanguageChange sets the room's active language and rebroadcasts it
// to every other member of the room.
func (reg *Registry) ApplyLanguageChange(roomID string, lang language.Language, originConnID string) {
	r := reg.getOrCreate(roomID)
	r.Active = lang

	reg.broadcast(roomID, originConnID, protocol.EventLanguageUpdate, lang)
}

// Lookup returns a snapshot of an existing room without creating it.
func (reg *Registry) Lookup(roomID string) (Snapshot, bool) {
	r, ok := reg.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// RoomCount returns the number of rooms ever created in this process.
func (reg *Registry) RoomCount() int {
	return len(reg.rooms)
}

// MemberCount returns the number of connections currently in the room.
func (reg *Registry) MemberCount(roomID string) int {
	n := 0
	for _, m := range reg.members {
		if m.roomID == roomID {
			n++
		}
	}
	return n
}

func (reg *Registry) broadcast(roomID, originConnID string, event protocol.Event, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("room %s: encoding %s broadcast: %v", roomID, event, err)
		return
	}
	for _, m := range reg.members {
		if m.roomID != roomID || m.connID == originConnID {
			continue
		}
		m.out.Deliver(frame)
	}
}
