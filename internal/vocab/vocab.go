// Package vocab implements the process-wide Vocabulary Cache: spec.md
// §4.1's one-time-initialized word list, meaningful target pool,
// unit-normalized vector matrix, and per-word family keys.
//
// The shape mirrors the teacher's vectorModel (vector_model.go): a
// single struct built once, read by every room thereafter without
// further locking.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"
	"unsafe"

	"github.com/kydenul/wordrank/internal/logging"
	"github.com/kydenul/wordrank/internal/oracle"
)

var lettersOnly = regexp.MustCompile(`^[a-z]+$`)

// ErrMemoryLimitExceeded is the teacher's memory_limit_bytes sentinel
// (config.go's MemoryLimit check), reused here: the Vocabulary Cache's
// normalized vector matrix is the one allocation big enough to matter,
// so it's what gets measured against the configured ceiling.
var ErrMemoryLimitExceeded = errors.New("vocabulary cache would exceed memory_limit_bytes")

// Cache is the immutable-after-initialization Vocabulary Cache described
// in spec.md §3.
type Cache struct {
	Words      []string
	Meaningful []string
	Vecs       [][]float32
	VecWords   []string
	FamilyKey  map[string]string

	vecIndex map[string]int
}

// IndexOf returns word's row index in Vecs/VecWords, and false if word
// has no vector in the cache.
func (c *Cache) IndexOf(word string) (int, bool) {
	i, ok := c.vecIndex[word]
	return i, ok
}

var (
	once     sync.Once
	instance *Cache
	initErr  error
)

// EnsureInitialized performs spec.md §4.1's ensure_initialized()
// contract: idempotent, coalesces concurrent first calls so exactly one
// goroutine does the work. A failure here is fatal to the room(s) waiting
// on it, per spec.md §7 ("Fatal init"); memoryLimitBytes <= 0 disables
// the check.
func EnsureInitialized(
	vocabPath string,
	orc oracle.Oracle,
	meaningfulPoolSize, vocabRankSize int,
	memoryLimitBytes int64,
	logger logging.Logger,
) (*Cache, error) {
	once.Do(func() {
		instance, initErr = build(vocabPath, orc, meaningfulPoolSize, vocabRankSize, memoryLimitBytes, logger)
	})
	return instance, initErr
}

func build(
	vocabPath string,
	orc oracle.Oracle,
	meaningfulPoolSize, vocabRankSize int,
	memoryLimitBytes int64,
	logger logging.Logger,
) (*Cache, error) {
	if logger == nil {
		logger = logging.DiscardLogger{}
	}

	logger.Infof("building vocabulary cache, vocab_path: %s", vocabPath)

	words, err := loadWordList(vocabPath)
	if err != nil {
		return nil, err
	}
	logger.Infof("vocabulary word list loaded, word_count: %d", len(words))

	if vocabRankSize > 0 && vocabRankSize < len(words) {
		words = words[:vocabRankSize]
	}

	cache := &Cache{
		Words:     words,
		FamilyKey: make(map[string]string, len(words)),
		vecIndex:  make(map[string]int),
	}

	for i, w := range words {
		cache.FamilyKey[w] = orc.Lemma(w)

		vec, ok := orc.Vector(w)
		if !ok {
			continue
		}
		norm := l2Normalize(vec)

		cache.VecWords = append(cache.VecWords, w)
		cache.Vecs = append(cache.Vecs, norm)
		cache.vecIndex[w] = len(cache.VecWords) - 1

		if i < meaningfulPoolSize && orc.POS(w).Meaningful() {
			cache.Meaningful = append(cache.Meaningful, w)
		}
	}

	logger.Infof("vocabulary cache built, vec_words: %d, meaningful: %d", len(cache.VecWords), len(cache.Meaningful))

	if memoryLimitBytes > 0 {
		usage := memoryUsage(cache)
		if usage > memoryLimitBytes {
			logger.Warnf(
				"vocabulary cache exceeds memory_limit_bytes, usage_bytes: %d, limit_bytes: %d, usage_mb: %.2f, limit_mb: %.2f",
				usage, memoryLimitBytes, float64(usage)/(1024*1024), float64(memoryLimitBytes)/(1024*1024))
			return nil, ErrMemoryLimitExceeded
		}
		logger.Infof("vocabulary cache memory usage within limit, usage_mb: %.2f, limit_mb: %.2f",
			float64(usage)/(1024*1024), float64(memoryLimitBytes)/(1024*1024))
	}

	if len(cache.Meaningful) == 0 {
		return nil, fmt.Errorf("wordrank: no meaningful target words found in the first %d entries", meaningfulPoolSize)
	}

	return cache, nil
}

func loadWordList(path string) ([]string, error) {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("wordrank: opening vocabulary file: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w == "" || !lettersOnly.MatchString(w) {
			continue
		}
		words = append(words, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wordrank: reading vocabulary file: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("wordrank: vocabulary file %q contains no usable words", path)
	}
	return words, nil
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// memoryUsage estimates the cache's resident size, grounded on the
// teacher's vectorModel.updateMemoryUsage: string header + data for each
// word, slice header + float32 data for each vector, plus a flat map
// overhead per entry. Vecs/VecWords dominate; Words/FamilyKey are
// included for completeness.
func memoryUsage(c *Cache) int64 {
	const (
		stringHeader = int64(unsafe.Sizeof(""))
		sliceHeader  = int64(unsafe.Sizeof([]float32(nil)))
		mapOverhead  = int64(48)
	)

	var total int64
	for _, w := range c.Words {
		total += stringHeader + int64(len(w))
	}
	for i, w := range c.VecWords {
		total += stringHeader + int64(len(w))
		total += sliceHeader + int64(len(c.Vecs[i])*4)
		total += mapOverhead
	}
	return total
}

// resetForTesting discards the singleton so package tests can exercise
// EnsureInitialized more than once within a single test binary.
func resetForTesting() {
	once = sync.Once{}
	instance = nil
	initErr = nil
}

// ResetForTesting is resetForTesting exported for other packages' tests
// (room, registry) that need a fresh Vocabulary Cache per test case.
// Production code never calls this.
func ResetForTesting() {
	resetForTesting()
}

// Loader defers the process-wide Vocabulary Cache build until the first
// room actually needs it, per spec.md §4.5's room_loading event: the
// cache only starts building on the first-ever room's join, not at
// process bootstrap, so the Session Router can tell the joining session
// it's being built.
//
// Loader itself carries no process-wide state — EnsureInitialized's
// sync.Once still guarantees the real build happens exactly once even
// if multiple Rooms hold their own Loader pointed at the same path.
type Loader struct {
	vocabPath          string
	orc                oracle.Oracle
	meaningfulPoolSize int
	vocabRankSize      int
	memoryLimitBytes   int64
	logger             logging.Logger

	mtx   sync.RWMutex
	done  bool
	cache *Cache
	err   error
}

// NewLoader builds a Loader that calls EnsureInitialized on first Get.
func NewLoader(
	vocabPath string,
	orc oracle.Oracle,
	meaningfulPoolSize, vocabRankSize int,
	memoryLimitBytes int64,
	logger logging.Logger,
) *Loader {
	return &Loader{
		vocabPath:          vocabPath,
		orc:                orc,
		meaningfulPoolSize: meaningfulPoolSize,
		vocabRankSize:      vocabRankSize,
		memoryLimitBytes:   memoryLimitBytes,
		logger:             logger,
	}
}

// NewReadyLoader wraps an already-built Cache, for tests and any other
// caller that wants to bypass the lazy-build path.
func NewReadyLoader(cache *Cache) *Loader {
	return &Loader{done: true, cache: cache}
}

// Get blocks until the cache is built, returning immediately once it has
// been (successfully or not).
func (l *Loader) Get() (*Cache, error) {
	l.mtx.RLock()
	if l.done {
		cache, err := l.cache, l.err
		l.mtx.RUnlock()
		return cache, err
	}
	l.mtx.RUnlock()

	cache, err := EnsureInitialized(l.vocabPath, l.orc, l.meaningfulPoolSize, l.vocabRankSize, l.memoryLimitBytes, l.logger)

	l.mtx.Lock()
	l.cache, l.err, l.done = cache, err, true
	l.mtx.Unlock()

	return cache, err
}

// Ready reports whether the cache has already been built, without
// triggering a build.
func (l *Loader) Ready() bool {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.done
}
