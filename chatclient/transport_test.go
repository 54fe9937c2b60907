package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/chat-app/domain/apperr"
	"github.com/example/chat-app/domain/message"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeServer serves a minimal subset of the REST API and the push
// endpoint. Frames sent on push are written to the connected socket.
func newFakeServer(t *testing.T, push <-chan any) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication","message":"invalid credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "session-token", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"id":"bob","email":"bob@example.com","fullName":"Bob"}`))
	})

	mux.HandleFunc("/api/messages/users", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("jwt"); err != nil || c.Value != "session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authorization","message":"no token provided"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"alice","fullName":"Alice"}]`))
	})

	mux.HandleFunc("/api/messages/alice", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "" && r.URL.Query().Get("limit") != "10" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token" || r.URL.Query().Get("userId") != "bob" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for v := range push {
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_LoginKeepsSession(t *testing.T) {
	srv := newFakeServer(t, nil)
	client, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.ListUsers(ctx)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = client.Login(ctx, "bob@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "invalid credentials")

	profile, err := client.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", profile.ID)
	assert.Equal(t, "session-token", client.SessionToken())

	users, err := client.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].ID)

	msgs, err := client.ListMessages(ctx, "alice", message.Page{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = client.ListMessages(ctx, "alice", message.Page{Limit: 3})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "status-only errors fall back to the status code")
}

func TestHTTPClient_WebSocketURL(t *testing.T) {
	client, err := NewHTTPClient("https://chat.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws?userId=bob", client.WebSocketURL("bob"))

	client, err = NewHTTPClient("http://localhost:3000")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3000/ws?userId=a+b", client.WebSocketURL("a b"))
}

func TestSocket_FeedsStore(t *testing.T) {
	push := make(chan any, 4)
	srv := newFakeServer(t, push)
	client, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	socket, err := DialSocket(ctx, client.WebSocketURL("bob"), client.SessionToken())
	require.NoError(t, err)
	defer socket.Close()

	store := NewStore(client, socket)
	defer store.Close()
	socket.Start()
	require.NoError(t, store.SelectPeer(ctx, "alice"))
	assert.Equal(t, 1, socket.Listeners(EventNewMessage))

	push <- frame{Event: EventOnlineUsers, Data: json.RawMessage(`["bob","alice"]`)}
	push <- frame{Event: EventNewMessage, Data: json.RawMessage(`{"id":"m1","senderId":"alice","receiverId":"bob","text":"hi","createdAt":"2025-01-01T12:00:00Z"}`)}

	require.Eventually(t, func() bool {
		snap := store.Snapshot()
		return len(snap.Messages) == 1 && len(snap.OnlineUsers) == 2
	}, 2*time.Second, 10*time.Millisecond)

	snap := store.Snapshot()
	assert.Equal(t, "hi", snap.Messages[0].Text)
	assert.Equal(t, []string{"alice", "bob"}, snap.OnlineUsers)

	close(push)
	select {
	case <-socket.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop after server close")
	}
	assert.NoError(t, socket.Err())
}

func TestDialSocket_Rejected(t *testing.T) {
	srv := newFakeServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=bob"

	_, err := DialSocket(context.Background(), wsURL, "forged")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
