package ranking

import "errors"

var (
	// ErrNoVectorForTarget is returned by Build when the Oracle has no
	// vector for the requested target word — spec.md §7's "Build failure"
	// kind, which the Room retries with a new target up to 3 times.
	ErrNoVectorForTarget = errors.New("target word has no vector")

	// ErrUnknownWord is returned by Resolve when the Oracle has no vector
	// for the guessed word — spec.md §7's "Unknown word" kind.
	ErrUnknownWord = errors.New("word not known")
)
