// Package util contains internal helpers shared by the key model and the cache.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Fnv64a is a streaming 64-bit FNV-1a hasher over small integers.
// The zero value is not ready for use; start from NewFnv64a.
type Fnv64a uint64

// NewFnv64a returns a hasher seeded with the FNV offset basis.
func NewFnv64a() Fnv64a { return Fnv64a(fnvOffset64) }

// Byte mixes a single byte.
func (h Fnv64a) Byte(b byte) Fnv64a {
	x := uint64(h)
	x ^= uint64(b)
	x *= fnvPrime64
	return Fnv64a(x)
}

// Uint64 mixes the 8 little-endian bytes of u without allocating.
func (h Fnv64a) Uint64(u uint64) Fnv64a {
	for i := 0; i < 8; i++ {
		h = h.Byte(byte(u))
		u >>= 8
	}
	return h
}

// Int8s mixes every element of cells in order.
func (h Fnv64a) Int8s(cells []int8) Fnv64a {
	for _, c := range cells {
		h = h.Byte(byte(c))
	}
	return h
}

// Sum returns the current hash value.
func (h Fnv64a) Sum() uint64 { return uint64(h) }

// HashBytes hashes b with 64-bit FNV-1a.
func HashBytes(b []byte) uint64 {
	h := NewFnv64a()
	for _, c := range b {
		h = h.Byte(c)
	}
	return h.Sum()
}
