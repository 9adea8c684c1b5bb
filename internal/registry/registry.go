// Package registry implements spec.md §4.4's Room Registry: the
// process-wide room id -> Room map behind one mutex.
package registry

import (
	"strings"
	"sync"

	"github.com/kydenul/wordrank/internal/logging"
	"github.com/kydenul/wordrank/internal/oracle"
	"github.com/kydenul/wordrank/internal/room"
	"github.com/kydenul/wordrank/internal/vocab"
	"github.com/kydenul/wordrank/internal/workerpool"
)

// Registry is spec.md §4.4's mapping room_id -> Room.
type Registry struct {
	loader *vocab.Loader
	orc    oracle.Oracle
	pool   *workerpool.Pool
	outbox room.Outbox
	logger logging.Logger

	mtx   sync.Mutex
	rooms map[string]*room.Room
}

func New(loader *vocab.Loader, orc oracle.Oracle, pool *workerpool.Pool, outbox room.Outbox, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.DiscardLogger{}
	}
	return &Registry{
		loader: loader,
		orc:    orc,
		pool:   pool,
		outbox: outbox,
		logger: logger,
		rooms:  make(map[string]*room.Room),
	}
}

// GetOrCreate implements spec.md §4.4's get_or_create(room_id). Room ids
// are lowercased before lookup.
func (reg *Registry) GetOrCreate(roomID string) *room.Room {
	roomID = strings.ToLower(roomID)

	reg.mtx.Lock()
	defer reg.mtx.Unlock()

	if r, ok := reg.rooms[roomID]; ok {
		return r
	}

	r := room.New(roomID, reg.loader, reg.orc, reg.pool, reg.outbox, reg.logger)
	reg.rooms[roomID] = r
	return r
}

// Get returns the room for roomID if it exists, without creating it.
func (reg *Registry) Get(roomID string) (*room.Room, bool) {
	roomID = strings.ToLower(roomID)
	reg.mtx.Lock()
	defer reg.mtx.Unlock()
	r, ok := reg.rooms[roomID]
	return r, ok
}

// DropIfEmpty implements spec.md §4.4's drop_if_empty(room_id).
func (reg *Registry) DropIfEmpty(roomID string) {
	roomID = strings.ToLower(roomID)

	reg.mtx.Lock()
	defer reg.mtx.Unlock()

	r, ok := reg.rooms[roomID]
	if !ok {
		return
	}
	if r.IsDestroyed() {
		delete(reg.rooms, roomID)
	}
}

// Count returns the number of live rooms, primarily for diagnostics.
func (reg *Registry) Count() int {
	reg.mtx.Lock()
	defer reg.mtx.Unlock()
	return len(reg.rooms)
}
