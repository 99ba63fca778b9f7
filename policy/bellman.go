package policy

// Method selects which optimum BellmanValue looks for.
type Method uint8

const (
	// Max picks the highest quality (the learner's own move).
	Max Method = iota
	// Min picks the lowest quality (an adversary's move).
	Min
)

func (m Method) String() string {
	if m == Min {
		return "min"
	}
	return "max"
}

// BellmanQuality is the one-step quality of taking an action:
// Q(s,a) = R(s,a) + gamma * V(s').
func BellmanQuality(reward, gamma, next float64) float64 {
	return reward + gamma*next
}

// BellmanValue computes the quality of every action and returns the indexes
// of all actions attaining the optimum under m, in ascending order, together
// with that optimum. rewards and next must have equal length; with no actions
// it returns (nil, 0).
func BellmanValue(rewards []float64, gamma float64, next []float64, m Method) ([]int, float64) {
	if len(rewards) != len(next) {
		panic("policy: rewards and next values differ in length")
	}
	if len(rewards) == 0 {
		return nil, 0
	}

	best := BellmanQuality(rewards[0], gamma, next[0])
	idx := []int{0}
	for i := 1; i < len(rewards); i++ {
		q := BellmanQuality(rewards[i], gamma, next[i])
		switch {
		case q == best:
			idx = append(idx, i)
		case (m == Max && q > best) || (m == Min && q < best):
			best = q
			idx = idx[:0]
			idx = append(idx, i)
		}
	}
	return idx, best
}
