package cache

import (
	"context"

	"github.com/IvanBrykalov/valuecache/state"
)

// Cache is the tiered state-value cache.
// All methods are safe for concurrent use; operations are serialized.
//
// Memory lookups are O(1) expected (a hash index confirmed by exact key
// equality). Store round trips happen only on a memory miss, on eviction
// of a dirty entry and on flush.
type Cache interface {
	// Find returns the value for key from memory, else the store, else def.
	// The Lookup tells which tier answered; it never mutates state.
	Find(ctx context.Context, key state.Key, def float64) (Lookup, error)

	// FindMany resolves every key like Find, returning values in input order.
	FindMany(ctx context.Context, keys []state.Key, def float64) ([]float64, error)

	// Store writes key→value with write-back semantics; def is the value
	// assumed for a key found nowhere. Writing the current value is a no-op.
	Store(ctx context.Context, key state.Key, value, def float64) error

	// FlushDirty bulk-writes every dirty entry to the store.
	FlushDirty(ctx context.Context) (FlushReport, error)

	// Load warms memory from the store's most recently touched records.
	Load(ctx context.Context) (int, error)

	// Len returns the number of resident entries.
	Len() int

	// Dirty returns the number of resident entries not yet persisted.
	Dirty() int

	// Close stops the flusher and performs a final flush. If that flush
	// fails the cache stays open and Close may be retried.
	Close(ctx context.Context) error
}

var _ Cache = (*Coordinator)(nil)
