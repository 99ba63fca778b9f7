// Package state defines the decision-process state key: a fixed-shape grid
// of small integers compared by exact, elementwise equality.
package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/valuecache/internal/util"
)

var (
	// ErrShape reports a grid whose dimensions or cell count are inconsistent.
	ErrShape = errors.New("state: invalid shape")
	// ErrEncoding reports a canonical string that cannot be parsed.
	ErrEncoding = errors.New("state: invalid encoding")
)

// MaxDim bounds each grid dimension.
const MaxDim = 256

// Shape is the dimensionality of a grid.
type Shape struct {
	Rows int
	Cols int
}

// Valid reports whether both dimensions are in [1, MaxDim].
func (s Shape) Valid() bool {
	return s.Rows > 0 && s.Cols > 0 && s.Rows <= MaxDim && s.Cols <= MaxDim
}

// Cells returns Rows*Cols.
func (s Shape) Cells() int { return s.Rows * s.Cols }

func (s Shape) String() string { return strconv.Itoa(s.Rows) + "x" + strconv.Itoa(s.Cols) }

// Key is an immutable Rows x Cols grid. The zero Key has no shape and is
// rejected by the cache.
type Key struct {
	shape Shape
	cells []int8 // row-major, len == shape.Cells(); never mutated after construction
	hash  uint64
}

// New builds a key from row-major cells. Cells are copied.
func New(shape Shape, cells ...int8) (Key, error) {
	if !shape.Valid() {
		return Key{}, fmt.Errorf("%w: %s", ErrShape, shape)
	}
	if len(cells) != shape.Cells() {
		return Key{}, fmt.Errorf("%w: %s needs %d cells, got %d", ErrShape, shape, shape.Cells(), len(cells))
	}
	cp := make([]int8, len(cells))
	copy(cp, cells)
	return newKey(shape, cp), nil
}

// FromRows builds a key from a rectangular slice of rows.
func FromRows(rows [][]int8) (Key, error) {
	if len(rows) == 0 {
		return Key{}, fmt.Errorf("%w: no rows", ErrShape)
	}
	shape := Shape{Rows: len(rows), Cols: len(rows[0])}
	cells := make([]int8, 0, shape.Cells())
	for i, r := range rows {
		if len(r) != shape.Cols {
			return Key{}, fmt.Errorf("%w: row %d has %d cells, want %d", ErrShape, i, len(r), shape.Cols)
		}
		cells = append(cells, r...)
	}
	return New(shape, cells...)
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(shape Shape, cells ...int8) Key {
	k, err := New(shape, cells...)
	if err != nil {
		panic(err)
	}
	return k
}

func newKey(shape Shape, cells []int8) Key {
	h := util.NewFnv64a().
		Uint64(uint64(shape.Rows)).
		Uint64(uint64(shape.Cols)).
		Int8s(cells)
	return Key{shape: shape, cells: cells, hash: h.Sum()}
}

// Shape returns the grid dimensions.
func (k Key) Shape() Shape { return k.shape }

// IsZero reports whether k was never constructed.
func (k Key) IsZero() bool { return k.cells == nil }

// At returns the cell at row r, column c. It panics when out of range.
func (k Key) At(r, c int) int8 {
	if r < 0 || r >= k.shape.Rows || c < 0 || c >= k.shape.Cols {
		panic(fmt.Sprintf("state: index (%d,%d) out of range for %s", r, c, k.shape))
	}
	return k.cells[r*k.shape.Cols+c]
}

// Cells returns a copy of the row-major cells.
func (k Key) Cells() []int8 {
	cp := make([]int8, len(k.cells))
	copy(cp, k.cells)
	return cp
}

// With returns a copy of k with cell (r, c) set to v.
func (k Key) With(r, c int, v int8) Key {
	_ = k.At(r, c)
	cp := k.Cells()
	cp[r*k.shape.Cols+c] = v
	return newKey(k.shape, cp)
}

// Hash returns a content hash. Equal keys have equal hashes; the converse
// does not hold, so lookups must confirm with Equal.
func (k Key) Hash() uint64 { return k.hash }

// Equal reports exact elementwise equality, shape included.
func (k Key) Equal(o Key) bool {
	if k.shape != o.shape || len(k.cells) != len(o.cells) {
		return false
	}
	if k.hash != o.hash {
		return false
	}
	for i := range k.cells {
		if k.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// String returns the canonical encoding "RxC:c0,c1,...". It is the durable
// identity of a key in persistent stores.
func (k Key) String() string {
	var b strings.Builder
	b.Grow(8 + 3*len(k.cells))
	b.WriteString(k.shape.String())
	b.WriteByte(':')
	for i, c := range k.cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(c)))
	}
	return b.String()
}

// Parse decodes the canonical encoding produced by String. Any other
// spelling of the same key (signs, leading zeros) is rejected.
func Parse(s string) (Key, error) {
	head, body, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: missing ':' in %q", ErrEncoding, s)
	}
	rs, cs, ok := strings.Cut(head, "x")
	if !ok {
		return Key{}, fmt.Errorf("%w: missing 'x' in shape %q", ErrEncoding, head)
	}
	rows, err := strconv.Atoi(rs)
	if err != nil {
		return Key{}, fmt.Errorf("%w: rows: %w", ErrEncoding, err)
	}
	cols, err := strconv.Atoi(cs)
	if err != nil {
		return Key{}, fmt.Errorf("%w: cols: %w", ErrEncoding, err)
	}
	shape := Shape{Rows: rows, Cols: cols}
	if !shape.Valid() {
		return Key{}, fmt.Errorf("%w: %s", ErrShape, shape)
	}
	parts := strings.Split(body, ",")
	if len(parts) != shape.Cells() {
		return Key{}, fmt.Errorf("%w: %s needs %d cells, got %d", ErrShape, shape, shape.Cells(), len(parts))
	}
	cells := make([]int8, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 8)
		if err != nil {
			return Key{}, fmt.Errorf("%w: cell %d: %w", ErrEncoding, i, err)
		}
		cells[i] = int8(v)
	}
	k := newKey(shape, cells)
	if k.String() != s {
		return Key{}, fmt.Errorf("%w: %q is not canonical, want %q", ErrEncoding, s, k.String())
	}
	return k, nil
}
