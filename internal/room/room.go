// Package room implements spec.md §4.3's Room: the per-room state
// machine, membership, guess log, and the background precomputation
// that turns a freshly created room into a ready one.
//
// Structurally this plays the role the teacher's semanticMatcher plays
// in semantic_matcher.go — a struct behind one mutex, coordinating a
// handful of collaborators (here: the Vocabulary Cache, the Ranking
// Engine, and a worker pool instead of the teacher's single in-process
// call) — generalized from "compute once per call" to "compute once per
// room, then serve many guesses against the cached result".
package room

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kydenul/wordrank/internal/guess"
	"github.com/kydenul/wordrank/internal/logging"
	"github.com/kydenul/wordrank/internal/oracle"
	"github.com/kydenul/wordrank/internal/ranking"
	"github.com/kydenul/wordrank/internal/vocab"
	"github.com/kydenul/wordrank/internal/wire"
	"github.com/kydenul/wordrank/internal/workerpool"
)

// State is spec.md §4.3's room state machine.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateWon
)

// maxBuildRetries is spec.md §7's "Build failure" retry budget: if the
// selected target unexpectedly has no vector, pick a new one and retry
// up to this many times before giving up on the room.
const maxBuildRetries = 3

// Outbox is how a Room emits spec.md §4.5's outbound events without
// knowing anything about sockets; the Session Router supplies the
// concrete implementation.
type Outbox interface {
	ToSession(sessionID string, env wire.Envelope)
	ToRoom(roomID string, env wire.Envelope)
}

// Error kinds from spec.md §7, each carrying the exact user-visible
// guess_error message the spec prescribes.
var (
	ErrNotReady       = errors.New("game not ready yet")
	ErrGameOver       = errors.New("game already won")
	ErrUnknownRoom    = errors.New("unknown room")
	ErrMalformedGuess = errors.New("not a legal guess")
	ErrUnknownWord    = errors.New("word not known")
)

var errMessages = map[error]string{
	ErrNotReady:       "Game not ready yet.",
	ErrGameOver:       "Game already won.",
	ErrUnknownRoom:    "Unknown room.",
	ErrMalformedGuess: "Not a legal guess.",
	ErrUnknownWord:    "Word not known.",
}

// ErrorMessage returns the user-visible guess_error text for one of this
// package's sentinel errors, so callers outside the package (the Session
// Router, for an unknown-room rejection) can report it consistently.
func ErrorMessage(err error) string {
	if msg, ok := errMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// guessRecord is spec.md §3's Guess record, plus the server-side
// TimesGuessed counter spec.md §9's "Open questions" resolves in favor
// of (a server-side counter over a client-side-only toast).
type guessRecord struct {
	word         string
	playerName   string
	similarity   float64
	rank         int
	isCorrect    bool
	timesGuessed int
}

// Room is spec.md §3's per-room stateful aggregate.
type Room struct {
	id     string
	loader *vocab.Loader
	cache  *vocab.Cache // set once the loader's build completes
	orc    oracle.Oracle
	pool   *workerpool.Pool
	outbox Outbox
	logger logging.Logger

	mtx          sync.Mutex
	state        State
	players      []string          // ordered by join time
	sockets      map[string]string // session id -> player name
	guesses      []*guessRecord
	guessIndex   map[string]int // surface word -> index into guesses
	target       string
	engine       *ranking.Output
	hintsGiven   map[string]bool
	destroyed    bool
	buildEpoch   int // bumped when the room empties so an in-flight build's completion is discarded
}

// New constructs a Room in the CREATED state. It does not start
// precomputation — that happens on the first Join, per spec.md §4.3.
func New(id string, loader *vocab.Loader, orc oracle.Oracle, pool *workerpool.Pool, outbox Outbox, logger logging.Logger) *Room {
	if logger == nil {
		logger = logging.DiscardLogger{}
	}
	return &Room{
		id:         strings.ToLower(id),
		loader:     loader,
		orc:        orc,
		pool:       pool,
		outbox:     outbox,
		logger:     logger,
		state:      StateCreated,
		sockets:    make(map[string]string),
		guessIndex: make(map[string]int),
		hintsGiven: make(map[string]bool),
	}
}

// ID returns the room's lowercased identifier.
func (r *Room) ID() string { return r.id }

// Join implements spec.md §4.3's join operation.
func (r *Room) Join(sessionID, playerName string) {
	r.mtx.Lock()

	firstJoin := len(r.sockets) == 0 && r.state == StateCreated
	r.sockets[sessionID] = playerName
	r.players = append(r.players, playerName)

	snapshot := r.stateSnapshotLocked()
	playersCopy := append([]string(nil), r.players...)
	loaderPending := !r.loader.Ready()

	if firstJoin {
		r.state = StateInitializing
		r.scheduleBuildLocked()
	}

	r.mtx.Unlock()

	if loaderPending {
		r.outbox.ToSession(sessionID, wire.Envelope{
			Type:    wire.EventRoomLoading,
			Payload: wire.RoomLoadingPayload{Msg: "Loading vocabulary, this may take a moment."},
		})
	}

	r.outbox.ToSession(sessionID, wire.Envelope{Type: wire.EventRoomState, Payload: snapshot})
	r.outbox.ToRoom(r.id, wire.Envelope{
		Type:    wire.EventPlayerJoined,
		Payload: wire.PlayerJoinedPayload{PlayerName: playerName, Players: playersCopy},
	})
}

// Leave implements spec.md §4.3's leave operation. It reports whether
// the room is now empty, so the Room Registry can destroy it.
func (r *Room) Leave(sessionID string) (empty bool) {
	r.mtx.Lock()

	playerName, ok := r.sockets[sessionID]
	if !ok {
		r.mtx.Unlock()
		return len(r.sockets) == 0
	}
	delete(r.sockets, sessionID)
	r.removePlayerLocked(playerName)

	playersCopy := append([]string(nil), r.players...)
	empty = len(r.sockets) == 0
	if empty {
		r.destroyed = true
		r.buildEpoch++ // discard any in-flight build result
	}

	r.mtx.Unlock()

	r.outbox.ToRoom(r.id, wire.Envelope{
		Type:    wire.EventPlayerLeft,
		Payload: wire.PlayerLeftPayload{PlayerName: playerName, Players: playersCopy},
	})
	return empty
}

func (r *Room) removePlayerLocked(playerName string) {
	for i, p := range r.players {
		if p == playerName {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}

// scheduleBuildLocked must be called with mtx held. It offloads the
// Ranking Engine build to the shared worker pool so join_room never
// suspends on the build's completion, per spec.md §5.
func (r *Room) scheduleBuildLocked() {
	epoch := r.buildEpoch
	r.pool.Submit(func(ctx context.Context) {
		r.runBuild(epoch)
	})
}

// runBuild executes the Ranking Engine build, with spec.md §7's retry
// policy. epoch identifies the build attempt: if the room has moved on
// (destroyed, or a newer build scheduled) by the time this completes,
// the result is discarded.
func (r *Room) runBuild(epoch int) {
	cache, err := r.loader.Get()
	if err != nil {
		r.logger.Errorf("vocabulary cache unavailable, room_id: %s, error: %v", r.id, err)
		r.abandonBuild(epoch)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= maxBuildRetries; attempt++ {
		target, err := ranking.SelectTarget(cache, r.orc, "")
		if err != nil {
			lastErr = err
			continue
		}
		out, err := ranking.Build(cache, r.orc, target)
		if err != nil {
			lastErr = err
			continue
		}
		r.completeBuild(epoch, cache, out)
		return
	}

	r.logger.Errorf("room build failed after retries, room_id: %s, error: %v", r.id, lastErr)
	r.abandonBuild(epoch)
}

func (r *Room) completeBuild(epoch int, cache *vocab.Cache, out *ranking.Output) {
	r.mtx.Lock()
	if r.destroyed || r.buildEpoch != epoch {
		r.mtx.Unlock()
		return
	}
	r.cache = cache
	r.target = out.TargetWord
	r.engine = out
	r.state = StateReady
	snapshot := r.stateSnapshotLocked()
	r.mtx.Unlock()

	r.outbox.ToRoom(r.id, wire.Envelope{Type: wire.EventRoomState, Payload: snapshot})
}

func (r *Room) abandonBuild(epoch int) {
	r.mtx.Lock()
	if r.destroyed || r.buildEpoch != epoch {
		r.mtx.Unlock()
		return
	}
	r.destroyed = true
	r.mtx.Unlock()

	r.outbox.ToRoom(r.id, wire.Envelope{
		Type:    wire.EventGuessError,
		Payload: wire.GuessErrorPayload{Msg: "Room could not be initialized."},
	})
}

// IsDestroyed reports whether the room has been torn down (either
// naturally via Leave, or because build retries were exhausted).
func (r *Room) IsDestroyed() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.destroyed
}

func (r *Room) stateSnapshotLocked() wire.RoomStatePayload {
	totalWords := 0
	if r.engine != nil {
		totalWords = r.engine.TotalWords
	}
	guesses := make([]wire.GuessPayload, 0, len(r.guesses))
	for _, g := range r.guesses {
		guesses = append(guesses, toGuessPayload(g))
	}
	return wire.RoomStatePayload{
		Ready:      r.state == StateReady || r.state == StateWon,
		TotalWords: totalWords,
		Guesses:    guesses,
		Players:    append([]string(nil), r.players...),
	}
}

func toGuessPayload(g *guessRecord) wire.GuessPayload {
	return wire.GuessPayload{
		Word:         g.word,
		Similarity:   g.similarity,
		Rank:         g.rank,
		PlayerName:   g.playerName,
		IsCorrect:    g.isCorrect,
		TimesGuessed: g.timesGuessed,
	}
}

// SubmitGuess implements spec.md §4.3's submit_guess operation.
func (r *Room) SubmitGuess(sessionID, playerName, raw string) {
	normalized, err := guess.Normalize(raw)
	if err != nil {
		r.emitGuessError(sessionID, ErrMalformedGuess)
		return
	}

	r.mtx.Lock()

	switch r.state {
	case StateCreated, StateInitializing:
		r.mtx.Unlock()
		r.emitGuessError(sessionID, ErrNotReady)
		return
	case StateWon:
		r.mtx.Unlock()
		r.emitGuessError(sessionID, ErrGameOver)
		return
	}

	res, err := ranking.Resolve(r.engine, r.cache, r.orc, normalized)
	if err != nil {
		r.mtx.Unlock()
		r.emitGuessError(sessionID, ErrUnknownWord)
		return
	}

	var payload wire.GuessPayload
	if idx, ok := r.guessIndex[normalized]; ok {
		rec := r.guesses[idx]
		rec.timesGuessed++
		payload = toGuessPayload(rec)

		if res.IsCorrect {
			r.state = StateWon
			payload.Top10 = r.top10Locked()
		}
	} else {
		rec := &guessRecord{
			word:         normalized,
			playerName:   playerName,
			similarity:   res.Similarity,
			rank:         res.Rank,
			isCorrect:    res.IsCorrect,
			timesGuessed: 1,
		}
		r.guessIndex[normalized] = len(r.guesses)
		r.guesses = append(r.guesses, rec)
		payload = toGuessPayload(rec)

		if res.IsCorrect {
			r.state = StateWon
			payload.Top10 = r.top10Locked()
		}
	}

	r.mtx.Unlock()

	r.outbox.ToRoom(r.id, wire.Envelope{Type: wire.EventNewGuess, Payload: payload})
}

func (r *Room) emitGuessError(sessionID string, err error) {
	r.outbox.ToSession(sessionID, wire.Envelope{
		Type:    wire.EventGuessError,
		Payload: wire.GuessErrorPayload{Msg: ErrorMessage(err)},
	})
}

func (r *Room) top10Locked() []wire.Top10Entry {
	n := len(r.engine.Ranked)
	if n > 10 {
		n = 10
	}
	out := make([]wire.Top10Entry, 0, n)
	for i := 0; i < n; i++ {
		entry := r.engine.Ranked[i]
		out = append(out, wire.Top10Entry{Word: entry.Representative, Rank: i + 1, Similarity: entry.Similarity})
	}
	return out
}

// RequestHint implements spec.md §4.2's hint algorithm as a Room
// operation: it is broadcast to the room and entered into the guess log
// attributed to hintAuthor.
func (r *Room) RequestHint(sessionID, hintAuthor string) {
	r.mtx.Lock()

	if r.state != StateReady {
		r.mtx.Unlock()
		r.emitGuessError(sessionID, ErrNotReady)
		return
	}

	bestRank := r.engine.TotalWords
	for _, g := range r.guesses {
		if g.rank < bestRank {
			bestRank = g.rank
		}
	}

	entry, ok := ranking.Hint(r.engine, bestRank, r.hintsGiven)
	if !ok {
		r.mtx.Unlock()
		r.outbox.ToSession(sessionID, wire.Envelope{
			Type:    wire.EventGuessError,
			Payload: wire.GuessErrorPayload{Msg: "No more hints available."},
		})
		return
	}
	r.hintsGiven[entry.Representative] = true

	rec := &guessRecord{
		word:         entry.Representative,
		playerName:   hintAuthor,
		similarity:   entry.Similarity,
		rank:         r.engine.RankOfFamily[entry.FamilyKey],
		isCorrect:    false,
		timesGuessed: 1,
	}
	r.guessIndex[entry.Representative] = len(r.guesses)
	r.guesses = append(r.guesses, rec)
	payload := toGuessPayload(rec)

	r.mtx.Unlock()

	r.outbox.ToRoom(r.id, wire.Envelope{Type: wire.EventNewGuess, Payload: payload})
}
