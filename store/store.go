// Package store defines the durable tier behind the value cache: point
// lookup, single upsert and an unordered batch upsert with per-item outcomes.
package store

import (
	"context"
	"errors"

	"github.com/IvanBrykalov/valuecache/state"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("store: record not found")

// Record is the durable representation of a state value.
type Record struct {
	Key   state.Key
	Value float64
}

// Store is the persistent store contract. Implementations must be safe for
// concurrent use and identify records by the key's canonical encoding.
type Store interface {
	// Get returns the record for key or ErrNotFound.
	Get(ctx context.Context, key state.Key) (Record, error)

	// Upsert inserts or overwrites the record for key. Idempotent.
	Upsert(ctx context.Context, key state.Key, value float64) error

	// BulkUpsert writes many records as one unordered batch. A failing item
	// does not abort the others; BulkResult.Items[i] reports the outcome of
	// records[i]. A non-nil error means the batch was not applied and no item
	// is known to have succeeded.
	BulkUpsert(ctx context.Context, records []Record) (BulkResult, error)

	// LoadRecent returns up to limit records whose value differs from skip,
	// most recently touched first.
	LoadRecent(ctx context.Context, limit int, skip float64) ([]Record, error)

	// Close releases any resources held by the store.
	Close() error
}

// ItemResult is the outcome of one record in a batch.
type ItemResult struct {
	Key state.Key
	Err error
}

// OK reports whether the item was written.
func (r ItemResult) OK() bool { return r.Err == nil }

// BulkResult holds per-item outcomes in input order.
type BulkResult struct {
	Items []ItemResult
}

// NewBulkResult returns a result with one successful item per record.
func NewBulkResult(records []Record) BulkResult {
	items := make([]ItemResult, len(records))
	for i, r := range records {
		items[i] = ItemResult{Key: r.Key}
	}
	return BulkResult{Items: items}
}

// Succeeded returns the number of items written.
func (r BulkResult) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.OK() {
			n++
		}
	}
	return n
}

// Failed returns the failed items in input order.
func (r BulkResult) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if !it.OK() {
			out = append(out, it)
		}
	}
	return out
}

// OK reports whether every item was written.
func (r BulkResult) OK() bool { return r.Succeeded() == len(r.Items) }
