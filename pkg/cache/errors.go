package cache

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Backend when no entry exists for a key.
// The Store never surfaces it: a miss is reported through the found flag.
var ErrNotFound = errors.New("cache entry not found")

// StoreError reports a failure of the durable collaborator. It is never a miss.
type StoreError struct {
	Cache string
	Op    string
	Key   string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s: %s %s: %v", e.Cache, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// GenerationError wraps the error returned by a generator passed to
// GetOrGenerate or Regenerate. Nothing is written when it is returned.
type GenerationError struct {
	Cache string
	Key   string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("cache %s: generate %s: %v", e.Cache, e.Key, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
