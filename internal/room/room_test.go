package room

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kydenul/wordrank/internal/oracle"
	"github.com/kydenul/wordrank/internal/vocab"
	"github.com/kydenul/wordrank/internal/wire"
	"github.com/kydenul/wordrank/internal/workerpool"
)

type fakeOracle struct {
	vectors map[string][]float32
	pos     map[string]oracle.PartOfSpeech
	lemma   map[string]string
}

func (f *fakeOracle) HasVector(word string) bool { _, ok := f.vectors[word]; return ok }
func (f *fakeOracle) Vector(word string) ([]float32, bool) {
	v, ok := f.vectors[word]
	return v, ok
}

func (f *fakeOracle) POS(word string) oracle.PartOfSpeech {
	if p, ok := f.pos[word]; ok {
		return p
	}
	return oracle.POSOther
}

func (f *fakeOracle) Lemma(word string) string {
	if l, ok := f.lemma[word]; ok {
		return l
	}
	return word
}

func (f *fakeOracle) Dimension() int { return 3 }

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		vectors: map[string][]float32{
			"cat":  {1, 0, 0},
			"cats": {0.98, 0.15, 0},
			"dog":  {0.9, 0.1, 0},
			"run":  {0, 0.9, 0.1},
		},
		pos: map[string]oracle.PartOfSpeech{
			"cat": oracle.POSNoun, "cats": oracle.POSNoun, "dog": oracle.POSNoun, "run": oracle.POSVerb,
		},
		lemma: map[string]string{
			"cat": "cat", "cats": "cat", "dog": "dog", "run": "run",
		},
	}
}

func buildLoader(t *testing.T, orc oracle.Oracle, words []string) *vocab.Loader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	content := ""
	for _, w := range words {
		content += w + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write word list: %v", err)
	}
	vocabResetForTesting()
	cache, err := vocab.EnsureInitialized(path, orc, 2000, 0, 0, nil)
	if err != nil {
		t.Fatalf("EnsureInitialized returned error: %v", err)
	}
	return vocab.NewReadyLoader(cache)
}

// recordingOutbox captures every emitted envelope for assertions, and
// also lets tests block until a particular event type has been seen.
type recordingOutbox struct {
	mtx    sync.Mutex
	events []recordedEvent
	notify chan struct{}
}

type recordedEvent struct {
	sessionID string // empty for room-wide broadcasts
	roomID    string
	env       wire.Envelope
}

func newRecordingOutbox() *recordingOutbox {
	return &recordingOutbox{notify: make(chan struct{}, 1024)}
}

func (o *recordingOutbox) ToSession(sessionID string, env wire.Envelope) {
	o.mtx.Lock()
	o.events = append(o.events, recordedEvent{sessionID: sessionID, env: env})
	o.mtx.Unlock()
	o.notify <- struct{}{}
}

func (o *recordingOutbox) ToRoom(roomID string, env wire.Envelope) {
	o.mtx.Lock()
	o.events = append(o.events, recordedEvent{roomID: roomID, env: env})
	o.mtx.Unlock()
	o.notify <- struct{}{}
}

func (o *recordingOutbox) waitForType(t *testing.T, eventType string, timeout time.Duration) recordedEvent {
	t.Helper()
	deadline := time.After(timeout)
	for {
		o.mtx.Lock()
		for _, e := range o.events {
			if e.env.Type == eventType {
				o.mtx.Unlock()
				return e
			}
		}
		o.mtx.Unlock()

		select {
		case <-o.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for event type %q", eventType)
		}
	}
}

func TestRoom_JoinTriggersReadyTransition(t *testing.T) {
	orc := newFakeOracle()
	loader := buildLoader(t, orc, []string{"cat", "cats", "dog", "run"})
	pool := workerpool.New(2)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("bacu42", loader, orc, pool, outbox, nil)
	r.Join("sess-a", "A")

	stateEv := outbox.waitForType(t, wire.EventRoomState, 2*time.Second)
	payload := stateEv.env.Payload.(wire.RoomStatePayload)
	if payload.Ready {
		t.Error("expected initial room_state to report ready=false")
	}

	readyEv := outbox.waitForType(t, wire.EventRoomState, 2*time.Second)
	_ = readyEv

	// Poll for the ready transition specifically, since both the initial
	// snapshot and the ready broadcast share the same event type.
	deadline := time.After(2 * time.Second)
	for {
		if r.state == StateReady {
			break
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for room to become ready")
		}
	}
}

func TestRoom_JoinEmitsRoomLoadingWhileCacheBuilds(t *testing.T) {
	orc := newFakeOracle()
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("cat\ncats\ndog\nrun\n"), 0o644); err != nil {
		t.Fatalf("failed to write word list: %v", err)
	}
	vocabResetForTesting()
	loader := vocab.NewLoader(path, orc, 2000, 0, 0, nil)

	pool := workerpool.New(2)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("bacu42", loader, orc, pool, outbox, nil)
	r.Join("sess-a", "A")

	loadingEv := outbox.waitForType(t, wire.EventRoomLoading, 2*time.Second)
	if loadingEv.sessionID != "sess-a" {
		t.Errorf("expected room_loading to target the joining session, got %q", loadingEv.sessionID)
	}

	waitReady(t, r)
}

func TestRoom_DuplicateGuessIncrementsCounterNotLog(t *testing.T) {
	orc := newFakeOracle()
	loader := buildLoader(t, orc, []string{"cat", "cats", "dog", "run"})
	pool := workerpool.New(2)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("bacu42", loader, orc, pool, outbox, nil)
	r.Join("sess-a", "A")
	waitReady(t, r)

	// Guessing the target would end the game and reject the repeat, so
	// use a word outside the target's family.
	word := "dog"
	r.mtx.Lock()
	if r.engine.TargetWord == word {
		word = "run"
	}
	r.mtx.Unlock()

	r.SubmitGuess("sess-a", "A", word)
	r.SubmitGuess("sess-a", "A", word)

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if len(r.guesses) != 1 {
		t.Fatalf("expected duplicate guesses to share one log entry, got %d", len(r.guesses))
	}
	if r.guesses[0].timesGuessed != 2 {
		t.Errorf("expected times_guessed=2, got %d", r.guesses[0].timesGuessed)
	}
}

func TestRoom_GuessBeforeReadyRejected(t *testing.T) {
	orc := newFakeOracle()
	loader := buildLoader(t, orc, []string{"cat", "dog"})
	pool := workerpool.New(1)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("room1", loader, orc, pool, outbox, nil)
	// Force state without letting the build complete.
	r.mtx.Lock()
	r.state = StateInitializing
	r.sockets["s1"] = "A"
	r.mtx.Unlock()

	r.SubmitGuess("s1", "A", "dog")

	ev := outbox.waitForType(t, wire.EventGuessError, 2*time.Second)
	payload := ev.env.Payload.(wire.GuessErrorPayload)
	if payload.Msg != "Game not ready yet." {
		t.Errorf("expected 'Game not ready yet.' got %q", payload.Msg)
	}
}

func TestRoom_GuessAfterWinRejected(t *testing.T) {
	orc := newFakeOracle()
	loader := buildLoader(t, orc, []string{"cat", "dog"})
	pool := workerpool.New(1)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("room1", loader, orc, pool, outbox, nil)
	r.Join("s1", "A")
	waitReady(t, r)

	r.mtx.Lock()
	r.target = r.engine.TargetWord
	r.mtx.Unlock()

	r.SubmitGuess("s1", "A", r.target)

	r.mtx.Lock()
	state := r.state
	r.mtx.Unlock()
	if state != StateWon {
		t.Fatalf("expected room to transition to WON after guessing the target")
	}

	r.SubmitGuess("s1", "B", "dog")
	ev := outbox.waitForType(t, wire.EventGuessError, 2*time.Second)
	payload := ev.env.Payload.(wire.GuessErrorPayload)
	if payload.Msg != "Game already won." {
		t.Errorf("expected 'Game already won.' got %q", payload.Msg)
	}
}

func TestRoom_UnknownWordRejected(t *testing.T) {
	orc := newFakeOracle()
	loader := buildLoader(t, orc, []string{"cat", "dog"})
	pool := workerpool.New(1)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("room1", loader, orc, pool, outbox, nil)
	r.Join("s1", "A")
	waitReady(t, r)

	r.SubmitGuess("s1", "A", "abracadabra")
	ev := outbox.waitForType(t, wire.EventGuessError, 2*time.Second)
	payload := ev.env.Payload.(wire.GuessErrorPayload)
	if payload.Msg != "Word not known." {
		t.Errorf("expected 'Word not known.' got %q", payload.Msg)
	}
}

func TestRoom_LeaveEmptiesRoom(t *testing.T) {
	orc := newFakeOracle()
	loader := buildLoader(t, orc, []string{"cat", "dog"})
	pool := workerpool.New(1)
	defer pool.Close()
	outbox := newRecordingOutbox()

	r := New("room1", loader, orc, pool, outbox, nil)
	r.Join("s1", "A")

	empty := r.Leave("s1")
	if !empty {
		t.Error("expected room to report empty after its only member leaves")
	}
}

func waitReady(t *testing.T, r *Room) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mtx.Lock()
		ready := r.state == StateReady
		r.mtx.Unlock()
		if ready {
			return
		}
		select {
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for room to become ready")
		}
	}
}

// vocabResetForTesting is a tiny indirection over vocab.ResetForTesting so
// this package's tests can reset the Vocabulary Cache singleton between
// cases.
func vocabResetForTesting() {
	vocab.ResetForTesting()
}
