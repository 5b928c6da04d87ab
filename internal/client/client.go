// Package client implements the synchronizing side of a room connection:
// it keeps one local buffer per language seeded from the join snapshot,
// applies remote broadcasts that match the selected language, and emits
// exactly one change event per local edit.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"coderoom/internal/language"
	"coderoom/internal/protocol"
)

// State is the connection lifecycle of a sync client.
type State int

const (
	Disconnected State = iota
	Joining
	Synced
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Synced:
		return "synced"
	default:
		return "disconnected"
	}
}

// Client mirrors one room over a websocket connection. All exported
// methods are safe for concurrent use.
type Client struct {
	url    string
	roomID string

	mu       sync.Mutex
	writeMu  sync.Mutex // serializes writes; gorilla allows one writer
	conn     *websocket.Conn
	state    State
	selected language.Language
	buffers  map[language.Language]string

	// OnBufferChange fires when a remote edit lands in the currently
	// visible buffer. Remote edits in other languages update their cached
	// buffer silently.
	OnBufferChange func(code string)
	// OnLanguageUpdate fires when another member switches the room's
	// language; the local selection follows it.
	OnLanguageUpdate func(lang language.Language)
	// OnDisconnect fires once when the connection is lost. The owner
	// decides whether to Reconnect.
	OnDisconnect func(err error)
}

// Dial connects to a relay at url (e.g. ws://host:8080/ws), joins roomID,
// and returns once the join snapshot has been applied, with the client in
// the Synced state and every per-language buffer populated. Language
// switches after that never need a server round trip.
func Dial(ctx context.Context, url, roomID string) (*Client, error) {
	c := &Client{
		url:      url,
		roomID:   roomID,
		selected: language.Default,
		buffers:  make(map[language.Language]string),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials, joins, and waits for the room-state snapshot.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	c.state = Joining
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}

	join, err := protocol.Encode(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: c.roomID})
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		conn.Close()
		return fmt.Errorf("joining room %s: %w", c.roomID, err)
	}

	// The snapshot is the first frame the server sends a joiner. Applying
	// it for every language up front is what makes later switches local.
	state, err := readSnapshot(conn)
	if err != nil {
		conn.Close()
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		return fmt.Errorf("joining room %s: %w", c.roomID, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = Synced
	c.selected = state.Language
	c.buffers = make(map[language.Language]string, len(state.Code))
	for lang, code := range state.Code {
		c.buffers[lang] = code
	}
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func readSnapshot(conn *websocket.Conn) (protocol.RoomState, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return protocol.RoomState{}, err
		}
		env, err := protocol.Decode(data)
		if err != nil {
			return protocol.RoomState{}, err
		}
		if env.Event != protocol.EventRoomState {
			// Broadcasts can race the snapshot; they are superseded by it.
			continue
		}
		var state protocol.RoomState
		if err := json.Unmarshal(env.Payload, &state); err != nil {
			return protocol.RoomState{}, err
		}
		return state, nil
	}
}

// Reconnect re-joins the room after a lost connection. The fresh snapshot
// replaces all local buffers: edits made while disconnected are discarded.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return fmt.Errorf("reconnect from state %s", c.state)
	}
	c.mu.Unlock()
	return c.connect(ctx)
}

// readLoop applies server frames until the connection dies.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			// Only the active connection moves the state; a stale loop
			// from before a reconnect must not clobber it.
			active := c.conn == conn
			if active {
				c.state = Disconnected
				c.conn = nil
			}
			cb := c.OnDisconnect
			c.mu.Unlock()
			if active && cb != nil {
				cb(err)
			}
			return
		}
		c.apply(data)
	}
}

// apply routes one server frame into the local buffers.
func (c *Client) apply(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Printf("sync client: %v", err)
		return
	}

	switch env.Event {
	case protocol.EventCodeUpdate:
		var upd protocol.CodeUpdate
		if err := json.Unmarshal(env.Payload, &upd); err != nil {
			log.Printf("sync client: malformed code-update: %v", err)
			return
		}
		c.mu.Lock()
		c.buffers[upd.Language] = upd.Code
		visible := upd.Language == c.selected
		cb := c.OnBufferChange
		c.mu.Unlock()
		// An update for another language stays cached for a future switch;
		// rendering it now would clobber the buffer the user is looking at.
		if visible && cb != nil {
			cb(upd.Code)
		}

	case protocol.EventLanguageUpdate:
		var lang language.Language
		if err := json.Unmarshal(env.Payload, &lang); err != nil {
			log.Printf("sync client: malformed language-update: %v", err)
			return
		}
		c.mu.Lock()
		c.selected = lang
		code := c.buffers[lang]
		langCb := c.OnLanguageUpdate
		bufCb := c.OnBufferChange
		c.mu.Unlock()
		if langCb != nil {
			langCb(lang)
		}
		if bufCb != nil {
			bufCb(code)
		}

	case protocol.EventRoomState:
		// A duplicate snapshot (server resend) overwrites everything.
		var state protocol.RoomState
		if err := json.Unmarshal(env.Payload, &state); err != nil {
			return
		}
		c.mu.Lock()
		for lang, code := range state.Code {
			c.buffers[lang] = code
		}
		c.mu.Unlock()

	default:
		log.Printf("sync client: unknown event %q", env.Event)
	}
}

// Edit records a local edit to the visible buffer and emits exactly one
// change event for it. Remote updates never come back through Edit, so no
// echo loop can form.
func (c *Client) Edit(code string) error {
	c.mu.Lock()
	if c.state != Synced {
		c.mu.Unlock()
		return fmt.Errorf("edit in state %s", c.state)
	}
	lang := c.selected
	c.buffers[lang] = code
	conn := c.conn
	c.mu.Unlock()

	frame, err := protocol.Encode(protocol.EventCodeChange, protocol.CodeChange{
		RoomID:   c.roomID,
		Code:     code,
		Language: lang,
	})
	if err != nil {
		return err
	}
	return c.write(conn, frame)
}

// SwitchLanguage changes the local selection and announces it to the room.
// The visible buffer flips to the cached one for lang immediately; no
// snapshot is re-fetched.
func (c *Client) SwitchLanguage(lang language.Language) error {
	c.mu.Lock()
	if c.state != Synced {
		c.mu.Unlock()
		return fmt.Errorf("language switch in state %s", c.state)
	}
	c.selected = lang
	conn := c.conn
	c.mu.Unlock()

	frame, err := protocol.Encode(protocol.EventLanguageChange, protocol.LanguageChange{
		RoomID:   c.roomID,
		Language: lang,
	})
	if err != nil {
		return err
	}
	return c.write(conn, frame)
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Language returns the currently selected language.
func (c *Client) Language() language.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Buffer returns the visible buffer (the selected language's code).
func (c *Client) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[c.selected]
}

// BufferFor returns the cached buffer for any language.
func (c *Client) BufferFor(lang language.Language) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[lang]
}

// Close tears the connection down. OnDisconnect is not invoked for a
// deliberate close.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.OnDisconnect = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
