package cache

import (
	"log/slog"
	"time"

	"github.com/IvanBrykalov/valuecache/state"
)

// EvictOutcome tells what happened to an evicted entry.
type EvictOutcome int

const (
	// EvictClean: the entry was clean and discarded without a store call.
	EvictClean EvictOutcome = iota
	// EvictPersisted: the entry was dirty and written back before removal.
	EvictPersisted
	// EvictFailed: the write-back failed; the entry was restored as oldest.
	EvictFailed
)

func (o EvictOutcome) String() string {
	switch o {
	case EvictClean:
		return "clean"
	case EvictPersisted:
		return "persisted"
	case EvictFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Hit and Miss count memory lookups.
	Hit()
	Miss()
	Evict(outcome EvictOutcome)
	// Flush reports one bulk flush by item outcome.
	Flush(persisted, failed int)
	Size(resident, dirty int)
}

// DefaultLookupConcurrency bounds concurrent store reads in FindMany.
const DefaultLookupConcurrency = 8

// Options configures a Coordinator. Zero values are safe except Capacity and
// Shape; defaults are applied in New():
//   - LoadSize <= 0          => Capacity
//   - LookupConcurrency <= 0 => DefaultLookupConcurrency
//   - nil Metrics            => NoopMetrics
//   - nil Logger             => discard
type Options struct {
	// Capacity is the maximum number of resident entries before eviction.
	Capacity int

	// Shape every key must have.
	Shape state.Shape

	// LoadSize is how many recent records Load brings into memory (capped at Capacity).
	LoadSize int

	// Default is the value treated as "never learned"; Load skips records holding it.
	Default float64

	// FlushInterval starts a background flusher when > 0.
	FlushInterval time.Duration

	// StoreTimeout bounds each store round trip when > 0.
	StoreTimeout time.Duration

	// LookupConcurrency bounds concurrent store reads issued by FindMany.
	LookupConcurrency int

	// OnEvict is called for every eviction under the coordinator lock; keep it lightweight.
	OnEvict func(key state.Key, value float64, outcome EvictOutcome)

	Metrics Metrics
	Logger  *slog.Logger
}
