package oracle

import "errors"

// Error sentinels carried over from the teacher library's errors.go,
// scoped to vector-file loading.
var (
	ErrVectorFileNotFound  = errors.New("vector file not found")
	ErrInvalidVectorFormat = errors.New("invalid vector file format")
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")
)
