// Package transport implements spec.md §4.5's Session Router: accepting
// client connections, dispatching inbound events to Room operations,
// and broadcasting outbound events, all over a WebSocket transport.
//
// The HTTP bootstrap (gorilla/mux router, http.Server with explicit
// timeouts, signal-driven graceful shutdown) is grounded on
// SeamusWaldron's internal/web/server.go. The per-connection
// accept/read/write loop is grounded on wingthing's relay handler
// (internal/relay/handler.go, workers.go): websocket.Accept, a blocking
// Read loop per connection, and a buffered Send channel drained by a
// writer goroutine (internal/relay/sessions.go's SessionManager).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kydenul/wordrank/internal/config"
	"github.com/kydenul/wordrank/internal/logging"
	"github.com/kydenul/wordrank/internal/registry"
	"github.com/kydenul/wordrank/internal/room"
	"github.com/kydenul/wordrank/internal/wire"
)

// Server is the Session Router: it owns every socket handle and
// resolves both session->rooms and room->sessions, per spec.md §9's
// design note that Rooms only ever hold session ids.
type Server struct {
	cfg    *config.Config
	reg    *registry.Registry
	logger logging.Logger

	router     *mux.Router
	httpServer *http.Server

	mtx          sync.RWMutex
	sessions     map[string]*session // session id -> session
	roomSessions map[string][]string // room id -> session ids currently joined
}

var _ room.Outbox = (*Server)(nil)

// New constructs a Server. Call SetRegistry before serving any
// requests — the Registry itself needs the Server as its room.Outbox, so
// construction is necessarily two-phase (see cmd/wordrank-server).
func New(cfg *config.Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.DiscardLogger{}
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		sessions:     make(map[string]*session),
		roomSessions: make(map[string][]string),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.BackendBindAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetRegistry wires the Room Registry this Server dispatches events to.
func (s *Server) SetRegistry(reg *registry.Registry) {
	s.reg = reg
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Use(s.corsMiddleware)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"rooms":  s.reg.Count(),
	})
}

// corsMiddleware is grounded on the teacher-adjacent repo's
// func(http.Handler) http.Handler middleware shape
// (SeamusWaldron's internal/web/middleware package), adapted from an
// authentication gate to an allow-listed origin check driven by
// cors_allow_origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSAllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.CORSAllowOrigins,
	})
	if err != nil {
		s.logger.Warnf("websocket accept failed, error: %v", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	sess := newSession(uuid.NewString(), conn)
	s.registerSession(sess)
	defer s.unregisterSession(sess)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go sess.writePump(ctx)

	s.readLoop(ctx, sess)
}

func (s *Server) registerSession(sess *session) {
	s.mtx.Lock()
	s.sessions[sess.id] = sess
	s.mtx.Unlock()
}

func (s *Server) unregisterSession(sess *session) {
	s.mtx.Lock()
	delete(s.sessions, sess.id)
	s.mtx.Unlock()

	for _, roomID := range sess.joinedRooms() {
		s.leaveRoom(sess, roomID)
	}
}

// readLoop is the blocking per-connection Read loop, grounded on
// wingthing's relay handler.go: one JSON message per Read, dispatched
// to the matching Room operation.
func (s *Server) readLoop(ctx context.Context, sess *session) {
	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, sess.conn, &env); err != nil {
			return
		}
		s.dispatch(sess, env)
	}
}

func (s *Server) dispatch(sess *session, env wire.Envelope) {
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return
	}

	switch env.Type {
	case wire.EventJoinRoom:
		var p wire.JoinRoomPayload
		if json.Unmarshal(raw, &p) != nil {
			return
		}
		s.joinRoom(sess, p.RoomID, p.PlayerName)

	case wire.EventMakeGuess:
		var p wire.MakeGuessPayload
		if json.Unmarshal(raw, &p) != nil {
			return
		}
		s.makeGuess(sess, p.RoomID, p.PlayerName, p.Guess)

	case wire.EventRequestHint:
		var p wire.RequestHintPayload
		if json.Unmarshal(raw, &p) != nil {
			return
		}
		s.requestHint(sess, p.RoomID)
	}
}

func (s *Server) joinRoom(sess *session, roomID, playerName string) {
	roomID = strings.ToLower(roomID)
	r := s.reg.GetOrCreate(roomID)

	s.mtx.Lock()
	s.roomSessions[roomID] = append(s.roomSessions[roomID], sess.id)
	s.mtx.Unlock()
	sess.markJoined(roomID)

	r.Join(sess.id, playerName)
}

func (s *Server) makeGuess(sess *session, roomID, playerName, guess string) {
	roomID = strings.ToLower(roomID)
	r, ok := s.reg.Get(roomID)
	if !ok {
		s.ToSession(sess.id, wire.Envelope{
			Type:    wire.EventGuessError,
			Payload: wire.GuessErrorPayload{Msg: room.ErrorMessage(room.ErrUnknownRoom)},
		})
		return
	}
	r.SubmitGuess(sess.id, playerName, guess)
}

func (s *Server) requestHint(sess *session, roomID string) {
	roomID = strings.ToLower(roomID)
	r, ok := s.reg.Get(roomID)
	if !ok {
		s.ToSession(sess.id, wire.Envelope{
			Type:    wire.EventGuessError,
			Payload: wire.GuessErrorPayload{Msg: room.ErrorMessage(room.ErrUnknownRoom)},
		})
		return
	}
	r.RequestHint(sess.id, s.cfg.HintAuthor)
}

func (s *Server) leaveRoom(sess *session, roomID string) {
	r, ok := s.reg.Get(roomID)
	if ok {
		r.Leave(sess.id)
		s.reg.DropIfEmpty(roomID)
	}

	s.mtx.Lock()
	ids := s.roomSessions[roomID]
	for i, id := range ids {
		if id == sess.id {
			s.roomSessions[roomID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	s.mtx.Unlock()
	sess.markLeft(roomID)
}

// ToSession implements room.Outbox.
func (s *Server) ToSession(sessionID string, env wire.Envelope) {
	s.mtx.RLock()
	sess, ok := s.sessions[sessionID]
	s.mtx.RUnlock()
	if !ok {
		return
	}
	sess.enqueue(env)
}

// ToRoom implements room.Outbox. Ordering is guaranteed by the fact that
// the Room holds its own lock across the mutation that produces env, so
// concurrent ToRoom calls for the same room never interleave.
func (s *Server) ToRoom(roomID string, env wire.Envelope) {
	s.mtx.RLock()
	ids := append([]string(nil), s.roomSessions[roomID]...)
	s.mtx.RUnlock()

	for _, id := range ids {
		s.ToSession(id, env)
	}
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("starting server, addr: %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server, grounded on the
// teacher-adjacent repo's signal-driven shutdown
// (SeamusWaldron's server.go Start, wingthing's GracefulShutdown).
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("wordrank: server shutdown: %w", err)
	}
	return nil
}
