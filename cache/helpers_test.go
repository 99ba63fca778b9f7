package cache

import (
	"context"
	"sync"

	"github.com/IvanBrykalov/valuecache/state"
	"github.com/IvanBrykalov/valuecache/store"
	"github.com/IvanBrykalov/valuecache/store/memstore"
)

var board = state.Shape{Rows: 3, Cols: 3}

// key returns the n-th distinct 3x3 board (n in base 3 over the cells).
func key(n int) state.Key {
	cells := make([]int8, 9)
	for i := range cells {
		cells[i] = int8(n%3) - 1
		n /= 3
	}
	return state.MustNew(board, cells...)
}

var (
	keyA = key(0)
	keyB = key(1)
	keyC = key(2)
)

// spyStore wraps a memstore, counts calls and injects failures.
type spyStore struct {
	*memstore.Store

	mu         sync.Mutex
	gets       int
	upserts    int
	bulks      int
	bulkItems  int
	failGet    error
	failUpsert error
	failBulk   error
	reject     map[string]error // per-item BulkUpsert rejections by canonical key
}

func newSpy() *spyStore { return &spyStore{Store: memstore.New(), reject: map[string]error{}} }

func (s *spyStore) Get(ctx context.Context, k state.Key) (store.Record, error) {
	s.mu.Lock()
	s.gets++
	fail := s.failGet
	s.mu.Unlock()
	if fail != nil {
		return store.Record{}, fail
	}
	return s.Store.Get(ctx, k)
}

func (s *spyStore) Upsert(ctx context.Context, k state.Key, v float64) error {
	s.mu.Lock()
	s.upserts++
	fail := s.failUpsert
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.Store.Upsert(ctx, k, v)
}

func (s *spyStore) BulkUpsert(ctx context.Context, recs []store.Record) (store.BulkResult, error) {
	s.mu.Lock()
	s.bulks++
	s.bulkItems += len(recs)
	fail := s.failBulk
	reject := make(map[string]error, len(s.reject))
	for k, v := range s.reject {
		reject[k] = v
	}
	s.mu.Unlock()
	if fail != nil {
		return store.BulkResult{}, fail
	}

	res := store.NewBulkResult(recs)
	var ok []store.Record
	for i, r := range recs {
		if err := reject[r.Key.String()]; err != nil {
			res.Items[i].Err = err
			continue
		}
		ok = append(ok, r)
	}
	if _, err := s.Store.BulkUpsert(ctx, ok); err != nil {
		return store.BulkResult{}, err
	}
	return res, nil
}

func (s *spyStore) set(f func(s *spyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

func (s *spyStore) counts() (gets, upserts, bulks, bulkItems int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.upserts, s.bulks, s.bulkItems
}

// persisted reads k straight from the backing memstore.
func (s *spyStore) persisted(k state.Key) (float64, bool) {
	rec, err := s.Store.Get(context.Background(), k)
	if err != nil {
		return 0, false
	}
	return rec.Value, true
}

// countingMetrics records Metrics calls.
type countingMetrics struct {
	mu                 sync.Mutex
	hits, misses       int
	evicts             map[EvictOutcome]int
	flushed, flushFail int
	resident, dirty    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{evicts: map[EvictOutcome]int{}}
}

func (m *countingMetrics) Hit()  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) Miss() { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) Evict(o EvictOutcome) {
	m.mu.Lock()
	m.evicts[o]++
	m.mu.Unlock()
}
func (m *countingMetrics) Flush(persisted, failed int) {
	m.mu.Lock()
	m.flushed += persisted
	m.flushFail += failed
	m.mu.Unlock()
}
func (m *countingMetrics) Size(resident, dirty int) {
	m.mu.Lock()
	m.resident, m.dirty = resident, dirty
	m.mu.Unlock()
}
