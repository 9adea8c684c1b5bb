package oracle

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/kydenul/wordrank/internal/logging"
)

// FileOracle is the one concrete Oracle adapter this repo ships. It loads
// a .vec-format vector file — identical header and row format to the
// teacher's embeding_loader.go ("word_count dimension" header line, then
// "word v1 v2 ... vN" rows) — plus a sidecar lemma/POS table.
type FileOracle struct {
	store  *vectorStore
	lemma  map[string]string
	pos    map[string]PartOfSpeech
	logger logging.Logger
}

// LoadFileOracle loads vectorPath (required) and lemmaPath (optional; a
// missing or empty path just means every word defaults to lemma=word,
// pos=OTHER, per spec.md §6).
func LoadFileOracle(vectorPath, lemmaPath string, logger logging.Logger) (*FileOracle, error) {
	if logger == nil {
		logger = logging.DiscardLogger{}
	}

	store, err := loadVectorFile(vectorPath, logger)
	if err != nil {
		return nil, err
	}

	o := &FileOracle{
		store:  store,
		lemma:  make(map[string]string),
		pos:    make(map[string]PartOfSpeech),
		logger: logger,
	}

	if lemmaPath != "" {
		if err := o.loadLemmaFile(lemmaPath); err != nil {
			return nil, err
		}
	}

	return o, nil
}

func loadVectorFile(path string, logger logging.Logger) (*vectorStore, error) {
	logger.Infof("loading vector file, path: %s", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrVectorFileNotFound
	}

	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("wordrank: opening vector file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	if !scanner.Scan() {
		return nil, ErrInvalidVectorFormat
	}
	header := strings.Fields(strings.TrimSpace(scanner.Text()))
	if len(header) != 2 {
		return nil, fmt.Errorf("%w: first line must contain word count and dimension", ErrInvalidVectorFormat)
	}

	wordCount, err := cast.ToIntE(header[0])
	if err != nil || wordCount <= 0 {
		return nil, fmt.Errorf("%w: invalid word count", ErrInvalidVectorFormat)
	}
	dimension, err := cast.ToIntE(header[1])
	if err != nil || dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension", ErrInvalidVectorFormat)
	}

	logger.Infof("vector file header parsed, word_count: %d, dimension: %d", wordCount, dimension)

	store := newVectorStore(dimension)
	lineNumber := 1
	loaded := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != dimension+1 {
			logger.Warnf("skipping invalid line, line_number: %d, expected_parts: %d, actual_parts: %d",
				lineNumber, dimension+1, len(parts))
			continue
		}

		word := parts[0]
		vector := make([]float32, dimension)
		parseError := false
		for i := 1; i <= dimension; i++ {
			val, err := cast.ToFloat64E(parts[i])
			if err != nil {
				logger.Warnf("skipping line with invalid float value, line_number: %d, word: %s", lineNumber, word)
				parseError = true
				break
			}
			vector[i-1] = float32(val)
		}
		if parseError {
			continue
		}

		store.add(word, vector)
		loaded++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wordrank: reading vector file: %w", err)
	}

	logger.Infof("vector loading completed, loaded_vectors: %d, expected_vectors: %d, dimension: %d",
		loaded, wordCount, dimension)
	if loaded != wordCount {
		logger.Warnf("loaded vector count differs from header, expected: %d, actual: %d", wordCount, loaded)
	}

	return store, nil
}

// loadLemmaFile reads a TSV of word<TAB>lemma<TAB>pos rows.
func (o *FileOracle) loadLemmaFile(path string) error {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			o.logger.Warnf("lemma file not found, defaulting lemma=word pos=OTHER, path: %s", path)
			return nil
		}
		return fmt.Errorf("wordrank: opening lemma file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			continue
		}
		word := strings.ToLower(cols[0])
		lemma := strings.ToLower(cols[1])
		o.lemma[word] = lemma
		if len(cols) >= 3 {
			o.pos[word] = ParsePOS(cols[2])
		}
	}
	return scanner.Err()
}

func (o *FileOracle) HasVector(word string) bool {
	_, ok := o.store.get(word)
	return ok
}

func (o *FileOracle) Vector(word string) ([]float32, bool) {
	return o.store.get(word)
}

func (o *FileOracle) POS(word string) PartOfSpeech {
	if p, ok := o.pos[strings.ToLower(word)]; ok {
		return p
	}
	return POSOther
}

func (o *FileOracle) Lemma(word string) string {
	word = strings.ToLower(word)
	if l, ok := o.lemma[word]; ok {
		return l
	}
	return word
}

func (o *FileOracle) Dimension() int {
	return o.store.dimension
}

// VocabularySize returns the number of words the Oracle has vectors for.
func (o *FileOracle) VocabularySize() int {
	return o.store.size()
}
