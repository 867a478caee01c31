package domain

import "errors"

// ErrNoHealthyBackend is the distinguished error every selection policy
// must return when the healthy set is empty.
var ErrNoHealthyBackend = errors.New("no healthy backend available")

// StrategyType names a selection policy kind.
type StrategyType string

const (
	// StrategyRandom draws a uniformly distributed backend from the
	// healthy set on every call; it holds no cursor.
	StrategyRandom StrategyType = "random"
	// StrategyRoundRobin walks the healthy set in order, wrapping.
	StrategyRoundRobin StrategyType = "round_robin"
	// StrategyWeightedRoundRobin walks a virtual ring sized to the sum of
	// backend weights, visiting backend i exactly w_i times per window.
	StrategyWeightedRoundRobin StrategyType = "weighted_round_robin"
)

// SelectionPolicy is a pure function from (healthy set) to the next
// backend. Implementations own their private selection state (a cursor for
// round-robin variants; nothing for random) and must be safe for concurrent
// calls — this is the data-plane hot path.
type SelectionPolicy interface {
	// NextServer returns the next backend to use and its index within the
	// healthy set snapshot passed in, or ErrNoHealthyBackend if healthy is
	// empty.
	NextServer(healthy []*Backend) (*Backend, int, error)
	// Name returns the policy's strategy type, for logging.
	Name() StrategyType
}
