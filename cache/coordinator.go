package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/valuecache/internal/singleflight"
	"github.com/IvanBrykalov/valuecache/state"
	"github.com/IvanBrykalov/valuecache/store"
)

// Source tells where a Lookup's value came from.
type Source uint8

const (
	// FromDefault: neither memory nor the store had the key.
	FromDefault Source = iota
	// FromStore: read through from the persistent store.
	FromStore
	// FromMemory: resident in memory.
	FromMemory
)

func (s Source) String() string {
	switch s {
	case FromMemory:
		return "memory"
	case FromStore:
		return "store"
	default:
		return "default"
	}
}

// Lookup is the result of Find. Only a FromMemory lookup carries a slot.
type Lookup struct {
	Value  float64
	Source Source
	slot   int
}

// Resident reports whether the key is held in memory.
func (l Lookup) Resident() bool { return l.Source == FromMemory }

// Slot returns the memory position of a resident key.
func (l Lookup) Slot() (int, bool) {
	if !l.Resident() {
		return 0, false
	}
	return l.slot, true
}

// FlushReport summarizes one FlushDirty call.
type FlushReport struct {
	Attempted int
	Persisted int
}

// Coordinator is the tiered value cache: a bounded FIFO memory tier with
// dirty tracking in front of a store.Store, written back on eviction and
// by bulk flushes.
//
// Each operation holds the coordinator lock from start to finish, store
// round trips included, so the background flusher and a caller never
// interleave inside an operation.
type Coordinator struct {
	mu     sync.Mutex
	mem    *memory
	st     store.Store
	opt    Options
	log    *slog.Logger
	closed bool

	// sf coalesces duplicate store reads issued by FindMany.
	sf singleflight.Group[string, float64]

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New constructs a Coordinator over st. It panics if st is nil, Capacity is
// not positive or Shape is invalid. A positive FlushInterval starts the
// background flusher; Close stops it.
func New(st store.Store, opt Options) *Coordinator {
	if st == nil {
		panic("cache: nil store")
	}
	if opt.Capacity <= 0 {
		panic("cache: Capacity must be > 0")
	}
	if !opt.Shape.Valid() {
		panic(fmt.Sprintf("cache: invalid shape %s", opt.Shape))
	}
	if opt.LoadSize <= 0 || opt.LoadSize > opt.Capacity {
		opt.LoadSize = opt.Capacity
	}
	if opt.LookupConcurrency <= 0 {
		opt.LookupConcurrency = DefaultLookupConcurrency
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Coordinator{
		mem: newMemory(opt.Capacity),
		st:  st,
		opt: opt,
		log: logger.With(slog.String("component", "valuecache")),
	}
	c.startFlusher()
	return c
}

// Find returns the value for key: from memory, else from the store, else def.
// It never mutates state.
func (c *Coordinator) Find(ctx context.Context, key state.Key, def float64) (Lookup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(key); err != nil {
		return Lookup{}, err
	}
	return c.findLocked(ctx, key, def)
}

// FindMany resolves every key like Find and returns the values in input
// order. Memory misses are read from the store concurrently; a key repeated
// in keys is read from the store once.
func (c *Coordinator) FindMany(ctx context.Context, keys []state.Key, def float64) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if err := c.checkLocked(k); err != nil {
			return nil, err
		}
	}

	out := make([]float64, len(keys))
	var misses []int
	for i, k := range keys {
		if j, ok := c.mem.findIndex(k); ok {
			c.opt.Metrics.Hit()
			out[i] = c.mem.at(j).val
			continue
		}
		c.opt.Metrics.Miss()
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	// One store read per distinct key; repeats share its result.
	byKey := make(map[string][]int, len(misses))
	var order []string
	for _, i := range misses {
		enc := keys[i].String()
		if _, ok := byKey[enc]; !ok {
			order = append(order, enc)
		}
		byKey[enc] = append(byKey[enc], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opt.LookupConcurrency)
	for _, enc := range order {
		idx := byKey[enc]
		k := keys[idx[0]]
		g.Go(func() error {
			v, _, err := c.sf.Do(gctx, enc, func() (float64, error) {
				rec, err := c.get(gctx, k)
				if errors.Is(err, store.ErrNotFound) {
					return def, nil
				}
				if err != nil {
					return 0, err
				}
				return rec.Value, nil
			})
			if err != nil {
				return err
			}
			for _, i := range idx {
				out[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeErr("get", err)
	}
	return out, nil
}

// Store writes value for key with write-back semantics. A write equal to the
// current value is a no-op. A resident key is updated in place; a new key is
// appended dirty, and the oldest entries are evicted while the memory tier
// is over capacity. Dirty evictees are upserted; if that fails the evictee is
// restored as the oldest entry, still dirty, and the error is returned. The
// caller's own write is kept in memory either way.
func (c *Coordinator) Store(ctx context.Context, key state.Key, value, def float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(key); err != nil {
		return err
	}
	l, err := c.findLocked(ctx, key, def)
	if err != nil {
		return err
	}
	if l.Value == value {
		return nil
	}
	if i, ok := l.Slot(); ok {
		c.mem.updateAt(i, value)
		c.reportSizeLocked()
		return nil
	}

	c.mem.append(key, value, true)
	err = c.trimLocked(ctx)
	c.reportSizeLocked()
	return err
}

// FlushDirty bulk-writes every dirty entry. Entries are marked clean only
// when the store confirms their item. Rejected items come back as a
// *PartialFlushError and stay dirty for the next flush. With nothing dirty
// no store call is made.
func (c *Coordinator) FlushDirty(ctx context.Context) (FlushReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return FlushReport{}, ErrClosed
	}
	return c.flushLocked(ctx)
}

// Load fills free memory slots with the most recently touched records that
// do not hold Options.Default, at most Options.LoadSize of them, in the order
// the store returns them. Records of a foreign shape and keys already resident
// are skipped. It returns the number of entries loaded.
func (c *Coordinator) Load(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}
	limit := min(c.opt.LoadSize, c.opt.Capacity-c.mem.size())
	if limit <= 0 {
		return 0, nil
	}

	sctx, cancel := c.withTimeout(ctx)
	recs, err := c.st.LoadRecent(sctx, limit, c.opt.Default)
	cancel()
	if err != nil {
		return 0, storeErr("load recent", err)
	}

	n := 0
	for _, r := range recs {
		if n == limit {
			break
		}
		if r.Key.IsZero() || r.Key.Shape() != c.opt.Shape {
			c.log.LogAttrs(ctx, slog.LevelWarn, "skipping record of foreign shape",
				slog.String("key", r.Key.String()))
			continue
		}
		if _, ok := c.mem.findIndex(r.Key); ok {
			continue
		}
		c.mem.append(r.Key, r.Value, false)
		n++
	}
	c.reportSizeLocked()
	c.log.LogAttrs(ctx, slog.LevelInfo, "warm start", slog.Int("loaded", n))
	return n, nil
}

// Len returns the number of resident entries.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.size()
}

// Dirty returns the number of resident entries not yet persisted.
func (c *Coordinator) Dirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem.dirtyCount()
}

// Close stops the background flusher, flushes outstanding dirty entries and
// marks the coordinator closed. If the final flush fails the coordinator
// stays open with the failed entries dirty, so Close (or FlushDirty) can be
// retried. The store is left open; its owner closes it. Calling Close after
// a successful Close returns nil.
func (c *Coordinator) Close(ctx context.Context) error {
	c.stopFlusher()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if _, err := c.flushLocked(ctx); err != nil {
		return err
	}
	c.closed = true
	return nil
}

// ---- internals (mu held) ----

func (c *Coordinator) checkLocked(key state.Key) error {
	if c.closed {
		return ErrClosed
	}
	if key.IsZero() {
		return fmt.Errorf("%w: zero key", ErrInvalidKey)
	}
	if key.Shape() != c.opt.Shape {
		return fmt.Errorf("%w: shape %s, want %s", ErrInvalidKey, key.Shape(), c.opt.Shape)
	}
	return nil
}

func (c *Coordinator) findLocked(ctx context.Context, key state.Key, def float64) (Lookup, error) {
	if i, ok := c.mem.findIndex(key); ok {
		c.opt.Metrics.Hit()
		return Lookup{Value: c.mem.at(i).val, Source: FromMemory, slot: i}, nil
	}
	c.opt.Metrics.Miss()

	rec, err := c.get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Lookup{Value: def, Source: FromDefault}, nil
	case err != nil:
		return Lookup{}, storeErr("get", err)
	}
	return Lookup{Value: rec.Value, Source: FromStore}, nil
}

// trimLocked evicts oldest entries until the memory tier is within capacity.
func (c *Coordinator) trimLocked(ctx context.Context) error {
	for c.mem.size() > c.opt.Capacity {
		e, err := c.mem.evictOldest()
		if err != nil {
			return err
		}
		if !e.dirty {
			c.evicted(ctx, e, EvictClean)
			continue
		}

		sctx, cancel := c.withTimeout(ctx)
		err = c.st.Upsert(sctx, e.key, e.val)
		cancel()
		if err != nil {
			c.mem.restoreOldest(e)
			c.evicted(ctx, e, EvictFailed)
			c.log.LogAttrs(ctx, slog.LevelWarn, "write-back failed; entry kept dirty",
				slog.String("key", e.key.String()),
				slog.Float64("value", e.val),
				slog.Any("error", err))
			return storeErr("write back "+e.key.String(), err)
		}
		c.evicted(ctx, e, EvictPersisted)
	}
	return nil
}

func (c *Coordinator) evicted(ctx context.Context, e *entry, outcome EvictOutcome) {
	c.opt.Metrics.Evict(outcome)
	if cb := c.opt.OnEvict; cb != nil {
		cb(e.key, e.val, outcome)
	}
	c.log.LogAttrs(ctx, slog.LevelDebug, "evicted",
		slog.String("key", e.key.String()),
		slog.String("outcome", outcome.String()))
}

func (c *Coordinator) flushLocked(ctx context.Context) (FlushReport, error) {
	dirty := c.mem.dirty()
	if len(dirty) == 0 {
		return FlushReport{}, nil
	}
	rep := FlushReport{Attempted: len(dirty)}

	recs := make([]store.Record, len(dirty))
	for i, e := range dirty {
		recs[i] = store.Record{Key: e.key, Value: e.val}
	}

	sctx, cancel := c.withTimeout(ctx)
	res, err := c.st.BulkUpsert(sctx, recs)
	cancel()
	if err != nil {
		c.opt.Metrics.Flush(0, len(dirty))
		return rep, storeErr("bulk upsert", err)
	}

	var failures []store.ItemResult
	for i, e := range dirty {
		if i < len(res.Items) && res.Items[i].OK() {
			c.mem.markClean(e)
			rep.Persisted++
			continue
		}
		f := store.ItemResult{Key: e.key, Err: errors.New("store: no result for item")}
		if i < len(res.Items) {
			f.Err = res.Items[i].Err
		}
		failures = append(failures, f)
	}
	c.opt.Metrics.Flush(rep.Persisted, len(failures))
	c.reportSizeLocked()

	if len(failures) > 0 {
		c.log.LogAttrs(ctx, slog.LevelWarn, "partial flush",
			slog.Int("attempted", rep.Attempted),
			slog.Int("failed", len(failures)))
		return rep, &PartialFlushError{Attempted: rep.Attempted, Failures: failures}
	}
	c.log.LogAttrs(ctx, slog.LevelDebug, "flushed", slog.Int("persisted", rep.Persisted))
	return rep, nil
}

func (c *Coordinator) get(ctx context.Context, key state.Key) (store.Record, error) {
	sctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.st.Get(sctx, key)
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opt.StoreTimeout > 0 {
		return context.WithTimeout(ctx, c.opt.StoreTimeout)
	}
	return ctx, func() {}
}

func (c *Coordinator) reportSizeLocked() {
	c.opt.Metrics.Size(c.mem.size(), c.mem.dirtyCount())
}
