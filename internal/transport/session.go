package transport

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kydenul/wordrank/internal/wire"
)

// sendBufferSize mirrors the teacher-adjacent relay's per-connection
// buffered Send channel (sessions.go uses 256); broadcasts that can't
// keep up are dropped rather than blocking the room's lock.
const sendBufferSize = 256

// session is one client's connection, per spec.md §9's "Session. A
// single client's connection." It owns the socket handle; Rooms never
// see it directly (spec.md §9's cyclic-reference note), only the
// session id.
type session struct {
	id   string
	conn *websocket.Conn
	send chan wire.Envelope

	mtx   sync.Mutex
	rooms map[string]bool // room ids this session has joined
}

func newSession(id string, conn *websocket.Conn) *session {
	return &session{
		id:    id,
		conn:  conn,
		send:  make(chan wire.Envelope, sendBufferSize),
		rooms: make(map[string]bool),
	}
}

// enqueue is a non-blocking send, grounded on the relay's
// BroadcastToClients: a full buffer means a slow client, and the
// broadcast is dropped for that one client rather than stalling the
// room's mutation lock for everyone else.
func (s *session) enqueue(env wire.Envelope) {
	select {
	case s.send <- env:
	default:
	}
}

// writePump drains s.send onto the socket until the connection closes.
func (s *session) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.send:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, s.conn, env); err != nil {
				return
			}
		}
	}
}

func (s *session) joinedRooms() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

func (s *session) markJoined(roomID string) {
	s.mtx.Lock()
	s.rooms[roomID] = true
	s.mtx.Unlock()
}

func (s *session) markLeft(roomID string) {
	s.mtx.Lock()
	delete(s.rooms, roomID)
	s.mtx.Unlock()
}
