package contract

import "errors"

// ErrDuplicateKey is returned by any repository when a write violates a
// unique constraint.
var ErrDuplicateKey = errors.New("duplicate key")
