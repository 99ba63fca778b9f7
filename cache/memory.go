package cache

import "github.com/IvanBrykalov/valuecache/state"

// memory is the ordered, bounded in-memory tier. Entries keep insertion
// order; only the oldest entry (position 0) is ever removed.
//
// Positions are derived from sequence numbers: entries[i].seq == base+i.
// A hash index keyed by state.Key.Hash gives O(1) findIndex while every
// candidate is still confirmed with Key.Equal.
//
// memory does no locking; the Coordinator serializes access.
type memory struct {
	entries []*entry
	base    int64
	index   map[uint64][]*entry
	dirtyN  int
}

func newMemory(capacity int) *memory {
	return &memory{
		entries: make([]*entry, 0, capacity+1),
		index:   make(map[uint64][]*entry, capacity+1),
	}
}

// append adds a new entry at the end. It does not check uniqueness; callers
// look the key up first.
func (m *memory) append(k state.Key, v float64, dirty bool) *entry {
	e := &entry{key: k, val: v, dirty: dirty, seq: m.base + int64(len(m.entries))}
	m.entries = append(m.entries, e)
	m.link(e)
	if dirty {
		m.dirtyN++
	}
	return e
}

// evictOldest removes and returns the entry at position 0.
func (m *memory) evictOldest() (*entry, error) {
	if len(m.entries) == 0 {
		return nil, ErrEmptyCache
	}
	e := m.entries[0]
	m.entries[0] = nil
	m.entries = m.entries[1:]
	m.base++
	m.unlink(e)
	if e.dirty {
		m.dirtyN--
	}
	return e, nil
}

// restoreOldest puts a previously evicted entry back at position 0.
func (m *memory) restoreOldest(e *entry) {
	m.base--
	e.seq = m.base
	m.entries = append(m.entries, nil)
	copy(m.entries[1:], m.entries)
	m.entries[0] = e
	m.link(e)
	if e.dirty {
		m.dirtyN++
	}
}

// findIndex returns the position of the entry whose key equals k.
func (m *memory) findIndex(k state.Key) (int, bool) {
	for _, e := range m.index[k.Hash()] {
		if e.key.Equal(k) {
			return int(e.seq - m.base), true
		}
	}
	return 0, false
}

// at returns the entry at position i.
func (m *memory) at(i int) *entry { return m.entries[i] }

// updateAt overwrites the value at position i and marks it dirty.
func (m *memory) updateAt(i int, v float64) {
	e := m.entries[i]
	e.val = v
	if !e.dirty {
		e.dirty = true
		m.dirtyN++
	}
}

// markClean clears the dirty flag of a resident entry.
func (m *memory) markClean(e *entry) {
	if e.dirty {
		e.dirty = false
		m.dirtyN--
	}
}

// dirty returns the dirty entries in insertion order.
func (m *memory) dirty() []*entry {
	out := make([]*entry, 0, m.dirtyN)
	for _, e := range m.entries {
		if e.dirty {
			out = append(out, e)
		}
	}
	return out
}

func (m *memory) size() int       { return len(m.entries) }
func (m *memory) dirtyCount() int { return m.dirtyN }

func (m *memory) link(e *entry) {
	h := e.key.Hash()
	m.index[h] = append(m.index[h], e)
}

func (m *memory) unlink(e *entry) {
	h := e.key.Hash()
	bucket := m.index[h]
	for i, x := range bucket {
		if x == e {
			bucket[i] = bucket[len(bucket)-1]
			bucket[len(bucket)-1] = nil
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		delete(m.index, h)
		return
	}
	m.index[h] = bucket
}
