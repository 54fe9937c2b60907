// Package chatclient is the client side of the chat backend: an explicit
// state cache fed by HTTP requests and websocket push, plus the transports
// that feed it.
package chatclient

import (
	"context"
	"encoding/json"
	"cmp"
	"log"
	"slices"
	"sync"

	"github.com/example/chat-app/domain/apperr"
	"github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/domain/user"
)

// Push event names, as emitted by the server.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Status is the loading state of a cached collection.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

var errNoPeer = apperr.Validation("no conversation selected")

// API is the request/response surface the store reads through.
type API interface {
	ListUsers(ctx context.Context) ([]user.Profile, error)
	ListMessages(ctx context.Context, peerID string, page message.Page) ([]message.Message, error)
	SendMessage(ctx context.Context, peerID, text, image string) (*message.Message, error)
}

// PushSource delivers server push events. Subscribe returns a function
// that detaches the listener.
type PushSource interface {
	Subscribe(event string, fn func(data json.RawMessage)) (unsubscribe func())
}

// Snapshot is a copy of the store's state.
type Snapshot struct {
	Users          []user.Profile
	UsersStatus    Status
	OnlineUsers    []string
	PeerID         string
	Messages       []message.Message
	MessagesStatus Status
	Err            error
}

// IsOnline reports whether userID is in the snapshot's online set.
func (s Snapshot) IsOnline(userID string) bool {
	_, found := slices.BinarySearch(s.OnlineUsers, userID)
	return found
}

// Store caches the active conversation, the user directory and the online
// set. It is safe for concurrent use.
type Store struct {
	api  API
	push PushSource

	mu             sync.Mutex
	users          []user.Profile
	usersStatus    Status
	online         []string
	peerID         string
	messages       []message.Message
	messagesStatus Status
	lastErr        error

	// generation increases on every conversation load and peer change.
	// A fetch whose generation is stale on return is discarded.
	generation uint64
	// pending holds messages appended while a load is in flight. They are
	// merged into the fetched list when it lands.
	pending []message.Message

	unsubMessages func()
	unsubOnline   func()

	// notifyMu is held from snapshot to dispatch so watchers see states in
	// order. It is always taken before mu.
	notifyMu    sync.Mutex
	watchers    map[int]func(Snapshot)
	nextWatcher int
}

// NewStore creates a Store and starts tracking the online set.
func NewStore(api API, push PushSource) *Store {
	s := &Store{
		api:            api,
		push:           push,
		usersStatus:    StatusIdle,
		messagesStatus: StatusIdle,
		watchers:       make(map[int]func(Snapshot)),
	}
	s.unsubOnline = push.Subscribe(EventOnlineUsers, s.onOnlineUsers)
	return s
}

// LoadUsers replaces the user directory. On failure the previous list is
// kept.
func (s *Store) LoadUsers(ctx context.Context) error {
	s.mu.Lock()
	s.usersStatus = StatusLoading
	s.mu.Unlock()
	s.notify()

	users, err := s.api.ListUsers(ctx)

	s.mu.Lock()
	if err != nil {
		s.usersStatus = StatusError
		s.lastErr = err
	} else {
		s.users = users
		s.usersStatus = StatusReady
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// SelectPeer makes peerID the active conversation: the old push listener
// is detached, the cached list is cleared, a listener for the new peer is
// attached and the conversation is loaded. An empty peerID closes the
// conversation.
func (s *Store) SelectPeer(ctx context.Context, peerID string) error {
	s.Unsubscribe()

	s.mu.Lock()
	if s.peerID != peerID {
		s.peerID = peerID
		s.messages = nil
		s.pending = nil
		s.messagesStatus = StatusIdle
		s.generation++
	}
	s.mu.Unlock()

	if peerID == "" {
		s.notify()
		return nil
	}
	s.Subscribe()
	return s.LoadMessages(ctx, peerID)
}

// LoadMessages replaces the cached conversation with peerID by a fresh
// fetch. Messages pushed or sent while the fetch is in flight survive it.
// Loading a different peer than the active one switches to it without
// touching listeners.
func (s *Store) LoadMessages(ctx context.Context, peerID string) error {
	s.mu.Lock()
	if s.peerID != peerID {
		s.peerID = peerID
		s.messages = nil
		s.pending = nil
	}
	s.generation++
	gen := s.generation
	s.messagesStatus = StatusLoading
	s.mu.Unlock()
	s.notify()

	msgs, err := s.api.ListMessages(ctx, peerID, message.Page{})

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.messagesStatus = StatusError
		s.lastErr = err
	} else {
		s.messages = mergeMessages(msgs, s.pending)
		s.messagesStatus = StatusReady
	}
	s.pending = nil
	s.mu.Unlock()
	s.notify()
	return err
}

// AppendPushedMessage adds msg to the cached conversation when it comes
// from the active peer. It reports whether the message was appended.
func (s *Store) AppendPushedMessage(msg message.Message) bool {
	s.mu.Lock()
	if s.peerID == "" || msg.SenderID != s.peerID || s.containsLocked(msg.ID) {
		s.mu.Unlock()
		return false
	}
	s.appendLocked(msg)
	s.mu.Unlock()
	s.notify()
	return true
}

// SendMessage sends to the active peer and appends the stored message.
func (s *Store) SendMessage(ctx context.Context, text, image string) (*message.Message, error) {
	s.mu.Lock()
	peerID := s.peerID
	s.mu.Unlock()
	if peerID == "" {
		return nil, errNoPeer
	}

	msg, err := s.api.SendMessage(ctx, peerID, text, image)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		return nil, err
	}

	s.mu.Lock()
	appended := false
	if s.peerID == peerID && !s.containsLocked(msg.ID) {
		s.appendLocked(*msg)
		appended = true
	}
	s.mu.Unlock()
	if appended {
		s.notify()
	}
	return msg, nil
}

// Subscribe attaches the newMessage listener. It is a no-op while a
// listener is attached.
func (s *Store) Subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubMessages != nil || s.peerID == "" {
		return
	}
	s.unsubMessages = s.push.Subscribe(EventNewMessage, s.onNewMessage)
}

// Unsubscribe detaches the newMessage listener.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	unsub := s.unsubMessages
	s.unsubMessages = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Watch registers fn to receive a snapshot after every state change.
// Snapshots are delivered one at a time in the order the changes happened.
// fn may call Snapshot but must not call a method that changes the store;
// that deadlocks. The returned function removes it.
func (s *Store) Watch(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close detaches every push listener and watcher.
func (s *Store) Close() {
	s.Unsubscribe()

	s.mu.Lock()
	unsub := s.unsubOnline
	s.unsubOnline = nil
	s.watchers = make(map[int]func(Snapshot))
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *Store) onNewMessage(data json.RawMessage) {
	var msg message.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[chatclient] dropping malformed %s frame: %v", EventNewMessage, err)
		return
	}
	s.AppendPushedMessage(msg)
}

func (s *Store) onOnlineUsers(data json.RawMessage) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Printf("[chatclient] dropping malformed %s frame: %v", EventOnlineUsers, err)
		return
	}
	slices.Sort(ids)

	s.mu.Lock()
	s.online = ids
	s.mu.Unlock()
	s.notify()
}

func (s *Store) appendLocked(msg message.Message) {
	s.messages = append(s.messages, msg)
	if s.messagesStatus == StatusLoading {
		s.pending = append(s.pending, msg)
	}
}

// mergeMessages adds the pending messages missing from fetched and orders
// the result by creation time, then id.
func mergeMessages(fetched, pending []message.Message) []message.Message {
	if len(pending) == 0 {
		return fetched
	}
	merged := slices.Clone(fetched)
	for _, m := range pending {
		if !slices.ContainsFunc(merged, func(f message.Message) bool { return f.ID == m.ID }) {
			merged = append(merged, m)
		}
	}
	slices.SortStableFunc(merged, func(a, b message.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return merged
}

func (s *Store) containsLocked(id string) bool {
	return slices.ContainsFunc(s.messages, func(m message.Message) bool { return m.ID == id })
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Users:          slices.Clone(s.users),
		UsersStatus:    s.usersStatus,
		OnlineUsers:    slices.Clone(s.online),
		PeerID:         s.peerID,
		Messages:       slices.Clone(s.messages),
		MessagesStatus: s.messagesStatus,
		Err:            s.lastErr,
	}
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if len(s.watchers) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
