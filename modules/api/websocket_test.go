package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"testing"
	"time"

	msgdomain "github.com/example/chat-app/domain/message"
	domain "github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/events"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gorilla/websocket"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any)         {}
func (l *testLogger) Info(msg string, args ...any)          {}
func (l *testLogger) Warn(msg string, args ...any)          {}
func (l *testLogger) Error(msg string, args ...any)         {}
func (l *testLogger) With(args ...any) types.Logger         { return l }
func (l *testLogger) WithError(err error) types.Logger      { return l }
func (l *testLogger) WithModule(module string) types.Logger { return l }

// eventPublisher stands in for the message module on the event bus.
type eventPublisher struct {
	bus mono.EventBus
}

func (p *eventPublisher) Name() string                  { return "publisher" }
func (p *eventPublisher) Start(context.Context) error   { return nil }
func (p *eventPublisher) Stop(context.Context) error    { return nil }
func (p *eventPublisher) SetEventBus(bus mono.EventBus) { p.bus = bus }
func (p *eventPublisher) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{events.MessageSentV1.ToBase()}
}

func (p *eventPublisher) send(t *testing.T, id, from, to, text string) {
	t.Helper()
	err := events.MessageSentV1.Publish(p.bus, events.MessageSentEvent{
		MessageID:  id,
		SenderID:   from,
		ReceiverID: to,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}, nil)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

var bob = &domain.Profile{ID: "bob-id", Email: "bob@example.com", FullName: "Bob"}

type realtimeServer struct {
	wsURL     string
	registry  *presence.Registry
	publisher *eventPublisher
}

// startRealtimeServer runs the presence module on a mono app and the
// HTTP routes on a real listener. Tokens "alice-token" and "bob-token"
// resolve to alice and bob.
func startRealtimeServer(t *testing.T) *realtimeServer {
	t.Helper()

	app, err := mono.NewMonoApplication(mono.WithLogLevel(mono.LogLevelError))
	if err != nil {
		t.Fatalf("NewMonoApplication() error = %v", err)
	}
	publisher := &eventPublisher{}
	presenceModule := presence.NewModule(&testLogger{})
	for _, m := range []mono.Module{publisher, presenceModule} {
		if err := app.Register(m); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name(), err)
		}
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Stop(context.Background()) })

	authPort := &mockAuthPort{
		validateTokenFunc: func(_ context.Context, token string) (*domain.Profile, error) {
			switch token {
			case "alice-token":
				return alice, nil
			case "bob-token":
				return bob, nil
			}
			return nil, auth.ErrInvalidToken
		},
	}
	h := NewHandlers(authPort, &mockMessagePort{}, nil, false)
	server := newApp(DefaultConfig(), h, authPort, presenceModule.Registry())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go func() { _ = server.Listener(ln) }()
	t.Cleanup(func() { _ = server.Shutdown() })

	return &realtimeServer{
		wsURL:     "ws://" + ln.Addr().String() + "/ws",
		registry:  presenceModule.Registry(),
		publisher: publisher,
	}
}

func (s *realtimeServer) dial(t *testing.T, token, userID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL+"?userId="+userID, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// nextFrame reads frames until one named event arrives.
func nextFrame(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f wireFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event {
			return f.Data
		}
	}
}

// waitOnline reads online lists until one equals want.
func waitOnline(t *testing.T, conn *websocket.Conn, want ...string) {
	t.Helper()
	for {
		var ids []string
		if err := json.Unmarshal(nextFrame(t, conn, presence.EventOnlineUsers), &ids); err != nil {
			t.Fatalf("online list: %v", err)
		}
		if slices.Equal(ids, want) {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRealtime_PresenceAndDelivery(t *testing.T) {
	srv := startRealtimeServer(t)

	bobConn := srv.dial(t, "bob-token", bob.ID)
	waitOnline(t, bobConn, bob.ID)

	aliceConn := srv.dial(t, "alice-token", alice.ID)
	waitOnline(t, aliceConn, alice.ID, bob.ID)
	waitOnline(t, bobConn, alice.ID, bob.ID)

	// alice sends "hi": the event reaches bob's socket as newMessage.
	srv.publisher.send(t, "m1", alice.ID, bob.ID, "hi")
	var got msgdomain.Message
	if err := json.Unmarshal(nextFrame(t, bobConn, presence.EventNewMessage), &got); err != nil {
		t.Fatalf("newMessage payload: %v", err)
	}
	if got.ID != "m1" || got.SenderID != alice.ID || got.ReceiverID != bob.ID || got.Text != "hi" {
		t.Errorf("newMessage = %+v", got)
	}

	// alice leaves: bob sees the shrunken list and alice is deregistered.
	_ = aliceConn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = aliceConn.Close()
	waitOnline(t, bobConn, bob.ID)
	waitFor(t, "alice to go offline", func() bool { return !srv.registry.IsOnline(alice.ID) })

	// A message for the departed user is dropped; bob's socket still works.
	srv.publisher.send(t, "m2", bob.ID, alice.ID, "gone")
	srv.publisher.send(t, "m3", alice.ID, bob.ID, "after")
	if err := json.Unmarshal(nextFrame(t, bobConn, presence.EventNewMessage), &got); err != nil {
		t.Fatalf("newMessage payload: %v", err)
	}
	if got.ID != "m3" {
		t.Errorf("next newMessage id = %q, want m3", got.ID)
	}
}

func TestRealtime_ReconnectReplacesOldSocket(t *testing.T) {
	srv := startRealtimeServer(t)

	first := srv.dial(t, "bob-token", bob.ID)
	waitOnline(t, first, bob.ID)

	second := srv.dial(t, "bob-token", bob.ID)
	waitOnline(t, second, bob.ID)

	// The replaced socket is closed by the server.
	_ = first.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.Fatal("replaced socket was not closed")
			}
			break
		}
	}

	// Its late disconnect must not remove the newer connection.
	time.Sleep(100 * time.Millisecond)
	if !srv.registry.IsOnline(bob.ID) || srv.registry.Count() != 1 {
		t.Fatalf("online = %v, want only bob", srv.registry.OnlineUsers())
	}
	srv.publisher.send(t, "m1", alice.ID, bob.ID, "still here")
	nextFrame(t, second, presence.EventNewMessage)
}
