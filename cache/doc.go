// Package cache provides a tiered value cache for decision-process states:
// a bounded in-memory tier with dirty tracking in front of a slower
// persistent store (package store), with read-through on miss, write-back
// on eviction, and periodic bulk flushes.
//
// Design
//
//   - Memory tier: an insertion-ordered sequence of (key, value, dirty)
//     entries. Eviction removes the oldest-inserted entry (FIFO, not LRU).
//     A hash index over state.Key.Hash, confirmed with Key.Equal, keeps
//     lookups O(1) with exact-match semantics.
//
//   - Reads: Find consults memory, then the store, then the caller's default.
//     The returned Lookup says which tier answered; only a memory hit has a
//     Slot. Reads never populate memory.
//
//   - Writes: Store is write-back. A write equal to the current value is
//     suppressed. A new key is appended dirty; when the memory tier exceeds
//     Capacity, the oldest entries are evicted, clean ones discarded and
//     dirty ones upserted first.
//
//   - Failure: a failed write-back restores the evictee as the oldest entry
//     (still dirty) and returns ErrStoreUnavailable; nothing is dropped.
//     FlushDirty clears dirty flags only for items the store confirmed and
//     reports the rest as a *PartialFlushError.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Flush/Size signals.
//     By default NoopMetrics is used; see package metrics/prom.
//
// Basic usage
//
//	shape := state.Shape{Rows: 3, Cols: 3}
//	c := cache.New(memstore.New(), cache.Options{
//	    Capacity:      100_000,
//	    Shape:         shape,
//	    FlushInterval: 30 * time.Second,
//	})
//	defer c.Close(ctx)
//
//	k := state.MustNew(shape, 0, 0, 0, 0, 1, 0, 0, 0, 0)
//	if err := c.Store(ctx, k, 0.5, 0); err != nil {
//	    // the write is in memory; a dirty evictee could not be persisted
//	}
//	l, _ := c.Find(ctx, k, 0) // l.Value == 0.5, l.Source == cache.FromMemory
//
// Thread-safety
//
// All methods are safe for concurrent use. Operations are serialized under
// one lock held for the whole operation, store round trips included.
// Options.StoreTimeout bounds each round trip.
package cache
