package oracle

import "sync"

// vectorStore is a thread-safe hash-map store of raw word vectors. It is
// the teacher's vectorModel (vector_model.go) trimmed to single-word
// lookups: the teacher's character-level OOV fallback and mean-pooling
// exist to vectorize multi-word paragraphs, which never happens here —
// every Oracle lookup is one already-tokenized vocabulary word, so a plain
// hit/miss is the whole contract.
type vectorStore struct {
	mtx       sync.RWMutex
	vectors   map[string][]float32
	dimension int
}

func newVectorStore(dimension int) *vectorStore {
	return &vectorStore{
		vectors:   make(map[string][]float32),
		dimension: dimension,
	}
}

func (vs *vectorStore) add(word string, vector []float32) {
	vs.mtx.Lock()
	defer vs.mtx.Unlock()

	if len(vector) != vs.dimension {
		return // silently ignore vectors with the wrong dimension
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)
	vs.vectors[word] = cp
}

func (vs *vectorStore) get(word string) ([]float32, bool) {
	vs.mtx.RLock()
	defer vs.mtx.RUnlock()

	v, ok := vs.vectors[word]
	if !ok {
		return nil, false
	}
	cp := make([]float32, len(v))
	copy(cp, v)
	return cp, true
}

func (vs *vectorStore) size() int {
	vs.mtx.RLock()
	defer vs.mtx.RUnlock()
	return len(vs.vectors)
}
