// Package guess validates and normalizes raw guess strings per spec.md
// §7's "Malformed guess" rule: non-empty, lowercase letters only.
//
// This is the teacher's text_processor.go narrowed to its English-only
// branch: the teacher detects and segments mixed Chinese/English text
// with go-ego/gse because its callers feed it free-form paragraphs. A
// guess here is always one already-typed word, so the Chinese-detection
// and segmentation machinery has no call site — only the plain-ASCII
// validation survives, adapted from spec.md §7's stricter single-word
// contract rather than the teacher's tokenizer.
package guess

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedGuess is spec.md §7's "Malformed guess" error kind.
var ErrMalformedGuess = errors.New("not a legal guess")

var lettersOnly = regexp.MustCompile(`^[a-z]+$`)

// Normalize trims surrounding whitespace from raw and validates the rest
// (non-empty, lowercase letters only). Whitespace-only, mixed case,
// digits, and unicode all fail.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrMalformedGuess
	}

	if !lettersOnly.MatchString(trimmed) {
		return "", ErrMalformedGuess
	}

	return trimmed, nil
}
