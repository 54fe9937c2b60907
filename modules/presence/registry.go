package presence

import (
	"slices"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// Real-time event names.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 5 * time.Second

// Conn is the write side of a live client connection.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Frame is the envelope of every server-to-client message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Registry maps each online user to their single live connection.
// A later Connect for the same user replaces the earlier connection.
//
// All writes happen under mu, so a Conn never sees concurrent writers.
// Each write carries a deadline, and a connection whose write fails is
// closed so its read loop ends and deregisters it.
type Registry struct {
	mu           sync.Mutex
	conns        map[string]Conn
	writeTimeout time.Duration
	logger       types.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger types.Logger) *Registry {
	return &Registry{
		conns:        make(map[string]Conn),
		writeTimeout: DefaultWriteTimeout,
		logger:       logger,
	}
}

// Connect registers conn as userID's live connection and broadcasts the
// new online list to everyone.
func (r *Registry) Connect(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[userID]; ok && old != conn {
		_ = old.Close()
		r.logger.Info("Replaced connection", "user_id", userID)
	}
	r.conns[userID] = conn
	r.logger.Info("User connected", "user_id", userID, "online", len(r.conns))

	r.broadcastOnlineLocked()
}

// Disconnect removes userID if conn is still the registered connection and
// broadcasts the new online list. It reports whether anything was removed;
// a stale connection closing after being replaced removes nothing.
func (r *Registry) Disconnect(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, userID)
	r.logger.Info("User disconnected", "user_id", userID, "online", len(r.conns))

	r.broadcastOnlineLocked()
	return true
}

// Push sends an event to userID's connection. It reports whether the frame
// was written; an offline user is a silent drop.
func (r *Registry) Push(userID, event string, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[userID]
	if !ok {
		return false
	}
	if err := r.writeLocked(conn, Frame{Event: event, Data: payload}); err != nil {
		r.logger.Warn("Push failed", "user_id", userID, "event", event, "error", err)
		return false
	}
	return true
}

// OnlineUsers returns the ids of connected users in ascending order.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

// IsOnline reports whether userID has a live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every connection and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range r.conns {
		_ = conn.Close()
	}
	r.conns = make(map[string]Conn)
}

func (r *Registry) onlineLocked() []string {
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) broadcastOnlineLocked() {
	frame := Frame{Event: EventOnlineUsers, Data: r.onlineLocked()}
	for id, conn := range r.conns {
		if err := r.writeLocked(conn, frame); err != nil {
			r.logger.Warn("Broadcast failed", "user_id", id, "event", EventOnlineUsers, "error", err)
		}
	}
}

// writeLocked writes one frame with a deadline. A failed write leaves the
// connection unusable, so it is closed.
func (r *Registry) writeLocked(conn Conn, frame Frame) error {
	err := conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
	if err == nil {
		err = conn.WriteJSON(frame)
	}
	if err != nil {
		_ = conn.Close()
	}
	return err
}
