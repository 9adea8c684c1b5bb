package config

import "errors"

// ErrInvalidConfiguration indicates configuration parameters are invalid.
// Carried over from the teacher's errors.go sentinel of the same name.
var ErrInvalidConfiguration = errors.New("invalid configuration")
