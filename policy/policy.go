// Package policy implements an epsilon-greedy decision policy over a
// state-value table: each candidate action leads to a successor state whose
// learned value is read from a Values source (typically *cache.Coordinator),
// and the chosen action's quality is written back with Learn.
package policy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/IvanBrykalov/valuecache/state"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultGamma = 0.9
	DefaultTau   = 0.1
)

// Values is the state-value table the policy reads and updates.
type Values interface {
	FindMany(ctx context.Context, keys []state.Key, def float64) ([]float64, error)
	Store(ctx context.Context, key state.Key, value, def float64) error
}

// Candidate is one available action: the state it leads to and the
// immediate reward for taking it.
type Candidate struct {
	Next   state.Key
	Reward float64
}

// Decision is the outcome of Choose.
type Decision struct {
	// Index into the candidate slice.
	Index int
	// Quality is the Bellman quality of the chosen action.
	Quality float64
	// Explored is true when the action was picked at random.
	Explored bool
}

// Options configures a Policy. Zero values take defaults:
//   - Gamma == 0 => DefaultGamma
//   - Tau == 0   => DefaultTau; a negative Tau disables exploration
//   - Seed == 0  => time-based
type Options struct {
	Gamma   float64
	Tau     float64
	Default float64
	Method  Method
	Seed    int64
}

// Policy chooses actions and learns state values. Safe for concurrent use.
type Policy struct {
	values Values
	opt    Options

	mu  sync.Mutex
	rnd *rand.Rand
}

// New builds a Policy over values. It panics if values is nil.
func New(values Values, opt Options) *Policy {
	if values == nil {
		panic("policy: nil values")
	}
	if opt.Gamma == 0 {
		opt.Gamma = DefaultGamma
	}
	if opt.Tau == 0 {
		opt.Tau = DefaultTau
	}
	seed := opt.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Policy{values: values, opt: opt, rnd: rand.New(rand.NewSource(seed))}
}

// Gamma returns the discount factor in use.
func (p *Policy) Gamma() float64 { return p.opt.Gamma }

// Tau returns the exploration rate in use.
func (p *Policy) Tau() float64 { return p.opt.Tau }

// Choose picks one of cands. With probability Tau it explores: a uniformly
// random action and its quality. Otherwise it exploits: a uniformly random
// action among those with optimal quality under the policy's Method.
func (p *Policy) Choose(ctx context.Context, cands []Candidate) (Decision, error) {
	if len(cands) == 0 {
		return Decision{}, fmt.Errorf("policy: no candidate actions")
	}

	keys := make([]state.Key, len(cands))
	rewards := make([]float64, len(cands))
	for i, c := range cands {
		keys[i] = c.Next
		rewards[i] = c.Reward
	}
	next, err := p.values.FindMany(ctx, keys, p.opt.Default)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: read successor values: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rnd.Float64() < p.opt.Tau {
		i := p.rnd.Intn(len(cands))
		return Decision{
			Index:    i,
			Quality:  BellmanQuality(rewards[i], p.opt.Gamma, next[i]),
			Explored: true,
		}, nil
	}
	idx, q := BellmanValue(rewards, p.opt.Gamma, next, p.opt.Method)
	return Decision{Index: idx[p.rnd.Intn(len(idx))], Quality: q}, nil
}

// Learn records d's quality as the value of from.
func (p *Policy) Learn(ctx context.Context, from state.Key, d Decision) error {
	if err := p.values.Store(ctx, from, d.Quality, p.opt.Default); err != nil {
		return fmt.Errorf("policy: learn %s: %w", from, err)
	}
	return nil
}
