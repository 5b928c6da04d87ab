package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coderoom/internal/config"
	"coderoom/internal/executor"
	"coderoom/internal/language"
	"coderoom/internal/protocol"
	"coderoom/internal/server"
)

// fakeRelay is a scripted server end: it answers every join with a fixed
// snapshot and records every other frame a client sends, so tests control
// exactly which broadcasts the client sees and when.
type fakeRelay struct {
	ts       *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	snapshot protocol.RoomState

	frames chan protocol.Envelope
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	f := &fakeRelay{
		snapshot: protocol.RoomState{
			Code: map[language.Language]string{
				language.JavaScript: "js-initial",
				language.Python:     "py-initial",
			},
			Language: language.JavaScript,
		},
		frames: make(chan protocol.Envelope, 16),
	}
	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(data)
			if err != nil {
				continue
			}
			if env.Event == protocol.EventJoinRoom {
				f.mu.Lock()
				frame, _ := protocol.Encode(protocol.EventRoomState, f.snapshot)
				f.mu.Unlock()
				conn.WriteMessage(websocket.TextMessage, frame)
				continue
			}
			f.frames <- env
		}
	}))
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fakeRelay) url() string {
	return "ws" + strings.TrimPrefix(f.ts.URL, "http")
}

// push sends a frame to the most recent client connection.
func (f *fakeRelay) push(t *testing.T, event protocol.Event, payload any) {
	t.Helper()
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	conn := f.conns[len(f.conns)-1]
	f.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}
}

// dropConnection closes the current server-side connection, simulating
// network loss.
func (f *fakeRelay) dropConnection() {
	f.mu.Lock()
	conn := f.conns[len(f.conns)-1]
	f.mu.Unlock()
	conn.Close()
}

func (f *fakeRelay) nextFrame(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-f.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from client")
		return protocol.Envelope{}
	}
}

func (f *fakeRelay) expectNoFrame(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case env := <-f.frames:
		t.Fatalf("unexpected frame from client: %s", env.Event)
	case <-time.After(window):
	}
}

func dialFake(t *testing.T, f *fakeRelay) *Client {
	t.Helper()
	c, err := Dial(context.Background(), f.url(), "test-room")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDialSeedsEveryBuffer(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	if c.State() != Synced {
		t.Errorf("state = %s, want synced", c.State())
	}
	if c.Language() != language.JavaScript {
		t.Errorf("language = %s", c.Language())
	}
	if c.Buffer() != "js-initial" {
		t.Errorf("visible buffer = %q", c.Buffer())
	}
	if c.BufferFor(language.Python) != "py-initial" {
		t.Errorf("python buffer = %q", c.BufferFor(language.Python))
	}
}

func TestRemoteEditForVisibleLanguageIsRendered(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	rendered := make(chan string, 1)
	c.OnBufferChange = func(code string) { rendered <- code }

	f.push(t, protocol.EventCodeUpdate, protocol.CodeUpdate{
		Code: "js-v2", Language: language.JavaScript,
	})

	select {
	case code := <-rendered:
		if code != "js-v2" {
			t.Errorf("rendered %q", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnBufferChange never fired")
	}
	if c.Buffer() != "js-v2" {
		t.Errorf("buffer = %q", c.Buffer())
	}
}

func TestRemoteEditForOtherLanguageIsCachedNotRendered(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	c.OnBufferChange = func(code string) {
		t.Errorf("rendered %q for a non-visible language", code)
	}

	f.push(t, protocol.EventCodeUpdate, protocol.CodeUpdate{
		Code: "py-v2", Language: language.Python,
	})

	waitFor(t, "python buffer cache", func() bool {
		return c.BufferFor(language.Python) == "py-v2"
	})
	if c.Buffer() != "js-initial" {
		t.Errorf("visible buffer changed to %q", c.Buffer())
	}
}

func TestLanguageUpdateFollowsRoom(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	switched := make(chan language.Language, 1)
	c.OnLanguageUpdate = func(lang language.Language) { switched <- lang }

	f.push(t, protocol.EventLanguageUpdate, language.Python)

	select {
	case lang := <-switched:
		if lang != language.Python {
			t.Errorf("switched to %s", lang)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnLanguageUpdate never fired")
	}
	if c.Buffer() != "py-initial" {
		t.Errorf("visible buffer = %q, want cached python buffer", c.Buffer())
	}
}

func TestEditEmitsExactlyOneChangeEvent(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	if err := c.Edit("js-edited"); err != nil {
		t.Fatal(err)
	}

	env := f.nextFrame(t)
	if env.Event != protocol.EventCodeChange {
		t.Fatalf("client sent %s", env.Event)
	}
	var change protocol.CodeChange
	if err := json.Unmarshal(env.Payload, &change); err != nil {
		t.Fatal(err)
	}
	if change.RoomID != "test-room" || change.Code != "js-edited" || change.Language != language.JavaScript {
		t.Errorf("change = %+v", change)
	}
	f.expectNoFrame(t, 200*time.Millisecond)
}

func TestRemoteUpdateDoesNotEchoBack(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	f.push(t, protocol.EventCodeUpdate, protocol.CodeUpdate{
		Code: "remote", Language: language.JavaScript,
	})
	waitFor(t, "remote apply", func() bool { return c.Buffer() == "remote" })

	// Applying a remote update must not emit a change event.
	f.expectNoFrame(t, 300*time.Millisecond)
}

func TestSwitchLanguageIsLocalAndAnnounced(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	if err := c.SwitchLanguage(language.Python); err != nil {
		t.Fatal(err)
	}

	// The switch is effective immediately, from the cached buffer.
	if c.State() != Synced {
		t.Errorf("state = %s", c.State())
	}
	if c.Buffer() != "py-initial" {
		t.Errorf("buffer = %q", c.Buffer())
	}

	env := f.nextFrame(t)
	if env.Event != protocol.EventLanguageChange {
		t.Fatalf("client sent %s", env.Event)
	}
	var change protocol.LanguageChange
	json.Unmarshal(env.Payload, &change)
	if change.Language != language.Python || change.RoomID != "test-room" {
		t.Errorf("change = %+v", change)
	}
}

func TestReconnectDiscardsLocalEdits(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	lost := make(chan struct{})
	c.OnDisconnect = func(error) { close(lost) }

	if err := c.Edit("local-only"); err != nil {
		t.Fatal(err)
	}
	f.nextFrame(t) // drain the change event

	f.dropConnection()
	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect never fired")
	}
	if c.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}

	if err := c.Reconnect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.State() != Synced {
		t.Errorf("state = %s, want synced", c.State())
	}
	// The fresh snapshot wins over anything typed while offline.
	if c.Buffer() != "js-initial" {
		t.Errorf("buffer = %q, want snapshot content", c.Buffer())
	}
}

func TestEditWhileDisconnectedFails(t *testing.T) {
	f := newFakeRelay(t)
	c := dialFake(t, f)

	done := make(chan struct{})
	c.OnDisconnect = func(error) { close(done) }
	f.dropConnection()
	<-done

	if err := c.Edit("too late"); err == nil {
		t.Error("expected error editing while disconnected")
	}
}

// End-to-end against the real relay: two clients in one room converge.
func TestTwoClientsConverge(t *testing.T) {
	cfg := &config.Config{}
	host := executor.New(executor.Options{})
	srv := server.New(cfg, host, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	alice, err := Dial(context.Background(), url, "pair")
	if err != nil {
		t.Fatal(err)
	}
	defer alice.Close()
	bob, err := Dial(context.Background(), url, "pair")
	if err != nil {
		t.Fatal(err)
	}
	defer bob.Close()

	if err := alice.Edit(`console.log("from alice");`); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "bob to receive alice's edit", func() bool {
		return bob.Buffer() == `console.log("from alice");`
	})
	// Alice's own buffer keeps her local copy; no echo arrived to disturb it.
	if alice.Buffer() != `console.log("from alice");` {
		t.Errorf("alice buffer = %q", alice.Buffer())
	}
}
