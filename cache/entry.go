package cache

import "github.com/IvanBrykalov/valuecache/state"

// entry is a resident (key, value, dirty) triple owned by memory.
type entry struct {
	key state.Key
	val float64

	// dirty means val has not been confirmed written to the store.
	dirty bool

	// Insertion sequence number; position in memory is seq - memory.base.
	seq int64
}
