// Package tictactoe is the m,n,k-game the command trains on: players place
// marks on a Rows x Cols board and the first to line up K in a row wins.
// Cells hold X (+1), O (-1) or Empty (0).
package tictactoe

import "github.com/IvanBrykalov/valuecache/state"

const (
	Empty int8 = 0
	X     int8 = 1
	O     int8 = -1
)

// Move is a candidate placement and the board it produces.
type Move struct {
	Row, Col int
	Next     state.Key
}

// NewBoard returns an empty board of the given shape.
func NewBoard(shape state.Shape) state.Key {
	return state.MustNew(shape, make([]int8, shape.Cells())...)
}

// InRow is the line length needed to win on shape: min(Rows, Cols), capped at 3.
func InRow(shape state.Shape) int {
	return min(shape.Rows, shape.Cols, 3)
}

// Moves lists every placement of mark on an empty cell, row-major.
func Moves(b state.Key, mark int8) []Move {
	s := b.Shape()
	var out []Move
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			if b.At(r, c) == Empty {
				out = append(out, Move{Row: r, Col: c, Next: b.With(r, c, mark)})
			}
		}
	}
	return out
}

// Winner returns the mark holding k in a row, or Empty.
func Winner(b state.Key, k int) int8 {
	s := b.Shape()
	dirs := [][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			m := b.At(r, c)
			if m == Empty {
				continue
			}
			for _, d := range dirs {
				n := 1
				for ; n < k; n++ {
					rr, cc := r+d[0]*n, c+d[1]*n
					if rr < 0 || rr >= s.Rows || cc < 0 || cc >= s.Cols || b.At(rr, cc) != m {
						break
					}
				}
				if n == k {
					return m
				}
			}
		}
	}
	return Empty
}

// Full reports whether no empty cell is left.
func Full(b state.Key) bool {
	for _, v := range b.Cells() {
		if v == Empty {
			return false
		}
	}
	return true
}

// Reward scores reaching b: +1 when X has won, -1 when O has, else 0.
func Reward(b state.Key, k int) float64 {
	return float64(Winner(b, k))
}
