package main

import (
	"context"

	"github.com/IvanBrykalov/valuecache/internal/tictactoe"
	"github.com/IvanBrykalov/valuecache/policy"
	"github.com/IvanBrykalov/valuecache/state"
)

// episode is the outcome of one self-play game.
type episode struct {
	winner   int8
	moves    int
	explored int
}

// playEpisode runs one game on shape: X maximizes and O minimizes the shared
// value table, and every move's quality is learned as the value of the
// position it was chosen from.
func playEpisode(ctx context.Context, shape state.Shape, x, o *policy.Policy) (episode, error) {
	need := tictactoe.InRow(shape)
	b := tictactoe.NewBoard(shape)
	mark := tictactoe.X

	var ep episode
	for {
		if err := ctx.Err(); err != nil {
			return ep, err
		}
		if w := tictactoe.Winner(b, need); w != tictactoe.Empty {
			ep.winner = w
			return ep, nil
		}
		if tictactoe.Full(b) {
			return ep, nil
		}

		moves := tictactoe.Moves(b, mark)
		cands := make([]policy.Candidate, len(moves))
		for i, m := range moves {
			cands[i] = policy.Candidate{Next: m.Next, Reward: tictactoe.Reward(m.Next, need)}
		}

		p := x
		if mark == tictactoe.O {
			p = o
		}
		d, err := p.Choose(ctx, cands)
		if err != nil {
			return ep, err
		}
		if err := p.Learn(ctx, b, d); err != nil {
			return ep, err
		}
		if d.Explored {
			ep.explored++
		}

		b = moves[d.Index].Next
		mark = -mark
		ep.moves++
	}
}
