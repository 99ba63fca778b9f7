// Package memstore is a map-backed store.Store for tests and ephemeral runs.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/IvanBrykalov/valuecache/state"
	"github.com/IvanBrykalov/valuecache/store"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("memstore: closed")

type record struct {
	key     state.Key
	value   float64
	touched uint64
}

// Store keeps records in memory keyed by the canonical key encoding.
// Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	m      map[string]record
	seq    uint64
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{m: make(map[string]record)}
}

// InitSchema is a no-op; it exists so all drivers share a setup step.
func (s *Store) InitSchema(context.Context) error { return nil }

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key state.Key) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Record{}, ErrClosed
	}
	r, ok := s.m[key.String()]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return store.Record{Key: r.key, Value: r.value}, nil
}

// Upsert implements store.Store.
func (s *Store) Upsert(ctx context.Context, key state.Key, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.putLocked(key, value)
	return nil
}

// BulkUpsert implements store.Store. Every item succeeds unless the store is
// closed or ctx is done.
func (s *Store) BulkUpsert(ctx context.Context, records []store.Record) (store.BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return store.BulkResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.BulkResult{}, ErrClosed
	}
	for _, r := range records {
		s.putLocked(r.Key, r.Value)
	}
	return store.NewBulkResult(records), nil
}

// LoadRecent implements store.Store.
func (s *Store) LoadRecent(ctx context.Context, limit int, skip float64) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rs := make([]record, 0, len(s.m))
	for _, r := range s.m {
		if r.value != skip {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].touched > rs[j].touched })
	if limit >= 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]store.Record, len(rs))
	for i, r := range rs {
		out[i] = store.Record{Key: r.key, Value: r.value}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Close implements store.Store. Closing twice is harmless.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) putLocked(key state.Key, value float64) {
	s.seq++
	s.m[key.String()] = record{key: key, value: value, touched: s.seq}
}

var _ store.Store = (*Store)(nil)
