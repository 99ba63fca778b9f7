package cache

import (
	"errors"
	"fmt"

	"github.com/IvanBrykalov/valuecache/store"
)

var (
	// ErrEmptyCache is returned when eviction is attempted on zero entries.
	ErrEmptyCache = errors.New("cache: evict on empty cache")

	// ErrStoreUnavailable wraps every persistent store failure.
	ErrStoreUnavailable = errors.New("cache: persistent store unavailable")

	// ErrPartialFlush matches a *PartialFlushError.
	ErrPartialFlush = errors.New("cache: partial flush")

	// ErrInvalidKey is returned for a zero key or a key of the wrong shape.
	ErrInvalidKey = errors.New("cache: invalid key")

	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("cache: closed")
)

// PartialFlushError reports the items of a bulk flush the store rejected.
// The corresponding entries stay dirty and are retried by the next flush.
type PartialFlushError struct {
	Attempted int
	Failures  []store.ItemResult
}

func (e *PartialFlushError) Error() string {
	msg := fmt.Sprintf("cache: partial flush: %d of %d entries failed", len(e.Failures), e.Attempted)
	if len(e.Failures) > 0 && e.Failures[0].Err != nil {
		msg += ": " + e.Failures[0].Err.Error()
	}
	return msg
}

// Is reports whether target is ErrPartialFlush.
func (e *PartialFlushError) Is(target error) bool { return target == ErrPartialFlush }

// Unwrap exposes the per-item errors to errors.Is and errors.As.
func (e *PartialFlushError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
