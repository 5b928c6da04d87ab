package server

import (
	"encoding/json"
	"log"
	"sync"

	"coderoom/internal/protocol"
	"coderoom/internal/room"
)

// Hub serializes all room mutations onto one goroutine. Every inbound
// frame, disconnect, and read query funnels through Run's select loop, so
// the registry needs no locking and concurrent edits resolve strictly by
// arrival order.
type Hub struct {
	registry *room.Registry

	inbound    chan inboundFrame
	unregister chan *Client
	queries    chan query
	quit       chan struct{}
	stopOnce   sync.Once
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// query is a read-only request answered by the hub goroutine.
type query struct {
	roomID string // empty for stats
	reply  chan queryReply
}

type queryReply struct {
	snapshot room.Snapshot
	found    bool
	rooms    int
	members  int
}

// NewHub creates a hub with an empty registry.
func NewHub() *Hub {
	return &Hub{
		registry:   room.NewRegistry(),
		inbound:    make(chan inboundFrame, 64),
		unregister: make(chan *Client),
		queries:    make(chan query),
		quit:       make(chan struct{}),
	}
}

// Run processes hub traffic until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case frame := <-h.inbound:
			h.dispatch(frame.client, frame.data)

		case c := <-h.unregister:
			h.registry.Leave(c.id)
			c.closeSend()
			if c.roomID != "" {
				log.Printf("client %s left room %s", c.id, c.roomID)
			}

		case q := <-h.queries:
			if q.roomID == "" {
				q.reply <- queryReply{rooms: h.registry.RoomCount()}
				continue
			}
			snap, ok := h.registry.Lookup(q.roomID)
			q.reply <- queryReply{
				snapshot: snap,
				found:    ok,
				members:  h.registry.MemberCount(q.roomID),
			}

		case <-h.quit:
			return
		}
	}
}

// Stop terminates the Run loop. Safe to call more than once; senders
// blocked on hub channels select on quit, so none of them hang once the
// loop is gone.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// dispatch applies one client frame to the registry.
func (h *Hub) dispatch(c *Client, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Printf("client %s: %v", c.id, err)
		return
	}

	switch env.Event {
	case protocol.EventJoinRoom:
		var join protocol.JoinRoom
		if err := json.Unmarshal(env.Payload, &join); err != nil || join.RoomID == "" {
			// Bare string payloads are accepted too; the original wire
			// format sent the room id without an object wrapper.
			var roomID string
			if err := json.Unmarshal(env.Payload, &roomID); err != nil || roomID == "" {
				log.Printf("client %s: malformed join-room payload", c.id)
				return
			}
			join.RoomID = roomID
		}
		snap := h.registry.Join(join.RoomID, c.id, c)
		c.roomID = join.RoomID
		log.Printf("client %s joined room %s (members: %d)", c.id, join.RoomID, h.registry.MemberCount(join.RoomID))

		frame, err := protocol.Encode(protocol.EventRoomState, protocol.RoomState{
			Code:     snap.Code,
			Language: snap.Active,
		})
		if err != nil {
			log.Printf("encoding room-state for %s: %v", join.RoomID, err)
			return
		}
		c.Deliver(frame)

	case protocol.EventCodeChange:
		var change protocol.CodeChange
		if err := json.Unmarshal(env.Payload, &change); err != nil || change.RoomID == "" {
			log.Printf("client %s: malformed code-change payload", c.id)
			return
		}
		h.registry.ApplyCodeChange(change.RoomID, change.Language, change.Code, c.id)

	case protocol.EventLanguageChange:
		var change protocol.LanguageChange
		if err := json.Unmarshal(env.Payload, &change); err != nil || change.RoomID == "" {
			log.Printf("client %s: malformed language-change payload", c.id)
			return
		}
		h.registry.ApplyLanguageChange(change.RoomID, change.Language, c.id)

	default:
		log.Printf("client %s: unknown event %q", c.id, env.Event)
	}
}

// ask submits a query to the hub goroutine. A stopped hub answers nothing,
// so the send and the wait both bail out on quit rather than blocking a
// request goroutine forever.
func (h *Hub) ask(q query) (queryReply, bool) {
	select {
	case h.queries <- q:
	case <-h.quit:
		return queryReply{}, false
	}
	select {
	case rep := <-q.reply:
		return rep, true
	case <-h.quit:
		return queryReply{}, false
	}
}

// Snapshot asks the hub goroutine for a room's current state.
func (h *Hub) Snapshot(roomID string) (room.Snapshot, int, bool) {
	rep, ok := h.ask(query{roomID: roomID, reply: make(chan queryReply, 1)})
	if !ok {
		return room.Snapshot{}, 0, false
	}
	return rep.snapshot, rep.members, rep.found
}

// RoomCount reports how many rooms exist.
func (h *Hub) RoomCount() int {
	rep, _ := h.ask(query{reply: make(chan queryReply, 1)})
	return rep.rooms
}
