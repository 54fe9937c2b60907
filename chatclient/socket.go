package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// frame is the envelope of every push message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Socket is a websocket connection to /ws that fans push frames out to
// subscribers by event name. It implements PushSource.
type Socket struct {
	conn *websocket.Conn

	mu       sync.Mutex
	handlers map[string]map[int]func(json.RawMessage)
	nextID   int

	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	err       error
}

// DialSocket connects to wsURL with the session token. Frames are not read
// until Start, so listeners attached in between see the first broadcast.
func DialSocket(ctx context.Context, wsURL, token string) (*Socket, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return &Socket{
		conn:     conn,
		handlers: make(map[string]map[int]func(json.RawMessage)),
		done:     make(chan struct{}),
	}, nil
}

// Start begins dispatching frames. Later calls do nothing.
func (s *Socket) Start() {
	s.startOnce.Do(func() { go s.readLoop() })
}

// Subscribe registers fn for event. The returned function detaches it.
func (s *Socket) Subscribe(event string, fn func(json.RawMessage)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.handlers[event] == nil {
		s.handlers[event] = make(map[int]func(json.RawMessage))
	}
	s.handlers[event][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers[event], id)
		})
	}
}

// Listeners returns the number of handlers attached to event.
func (s *Socket) Listeners(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[event])
}

// Done is closed when the read loop ends.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the read loop, if any.
func (s *Socket) Err() error {
	<-s.done
	return s.err
}

// Close sends a close frame and closes the connection.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = s.conn.Close()
	})
	return err
}

func (s *Socket) readLoop() {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.err = err
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("[chatclient] dropping malformed frame: %v", err)
			continue
		}
		s.dispatch(f)
	}
}

func (s *Socket) dispatch(f frame) {
	s.mu.Lock()
	fns := make([]func(json.RawMessage), 0, len(s.handlers[f.Event]))
	for _, fn := range s.handlers[f.Event] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if len(fns) == 0 {
		log.Printf("[chatclient] no listener for %s", f.Event)
		return
	}
	for _, fn := range fns {
		fn(f.Data)
	}
}
