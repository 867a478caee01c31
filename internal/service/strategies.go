package service

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/arvikar/glb/internal/domain"
)

// randIntn is a package-level indirection so tests can substitute a
// deterministic source without threading a *rand.Rand through every call.
var randIntn = rand.Intn

// RandomPolicy draws a uniformly distributed backend from the healthy set
// on every call. It holds no cursor, so concurrent calls need no
// coordination beyond the math/rand global source's own locking.
type RandomPolicy struct{}

// NewRandomPolicy constructs the random selection policy.
func NewRandomPolicy() *RandomPolicy {
	return &RandomPolicy{}
}

// NextServer implements domain.SelectionPolicy.
func (p *RandomPolicy) NextServer(healthy []*domain.Backend) (*domain.Backend, int, error) {
	if len(healthy) == 0 {
		return nil, -1, domain.ErrNoHealthyBackend
	}
	idx := randIntn(len(healthy))
	return healthy[idx], idx, nil
}

// Name implements domain.SelectionPolicy.
func (p *RandomPolicy) Name() domain.StrategyType {
	return domain.StrategyRandom
}

// RoundRobinPolicy walks the healthy set in order, wrapping around, using a
// single atomic cursor shared across every call.
type RoundRobinPolicy struct {
	cursor uint64
}

// NewRoundRobinPolicy constructs the round-robin selection policy.
func NewRoundRobinPolicy() *RoundRobinPolicy {
	return &RoundRobinPolicy{}
}

// NextServer implements domain.SelectionPolicy. The cursor is advanced
// unconditionally on every call, including calls that observe an empty
// healthy set, and is interpreted modulo the current healthy set's length,
// so rotation continues from the shared cursor rather than restarting at
// index 0 when the healthy set changes.
func (p *RoundRobinPolicy) NextServer(healthy []*domain.Backend) (*domain.Backend, int, error) {
	next := atomic.AddUint64(&p.cursor, 1)
	if len(healthy) == 0 {
		return nil, -1, domain.ErrNoHealthyBackend
	}
	idx := int((next - 1) % uint64(len(healthy)))
	return healthy[idx], idx, nil
}

// Name implements domain.SelectionPolicy.
func (p *RoundRobinPolicy) Name() domain.StrategyType {
	return domain.StrategyRoundRobin
}

// WeightedRoundRobinPolicy selects backends using the smooth weighted
// round-robin scheme: each backend accumulates its own weight every call,
// the backend with the highest accumulated value is chosen, and that
// backend's accumulator is then reduced by the sum of all weights. Over a
// full window of calls this visits backend i exactly w_i times while
// keeping consecutive picks of a high-weight backend spread apart rather
// than bunched at the start of the window.
type WeightedRoundRobinPolicy struct {
	mu      sync.Mutex
	current map[*domain.Backend]*int64
}

// NewWeightedRoundRobinPolicy constructs the weighted round-robin
// selection policy.
func NewWeightedRoundRobinPolicy() *WeightedRoundRobinPolicy {
	return &WeightedRoundRobinPolicy{current: make(map[*domain.Backend]*int64)}
}

// NextServer implements domain.SelectionPolicy.
func (p *WeightedRoundRobinPolicy) NextServer(healthy []*domain.Backend) (*domain.Backend, int, error) {
	if len(healthy) == 0 {
		return nil, -1, domain.ErrNoHealthyBackend
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	totalWeight := 0
	for _, b := range healthy {
		if _, ok := p.current[b]; !ok {
			p.current[b] = new(int64)
		}
		totalWeight += b.Weight()
	}

	var selected *domain.Backend
	selectedIdx := -1
	maxCurrent := int64(minInt64)

	for i, b := range healthy {
		c := atomic.AddInt64(p.current[b], int64(b.Weight()))
		if c > maxCurrent {
			maxCurrent = c
			selected = b
			selectedIdx = i
		}
	}

	atomic.AddInt64(p.current[selected], -int64(totalWeight))
	return selected, selectedIdx, nil
}

// Name implements domain.SelectionPolicy.
func (p *WeightedRoundRobinPolicy) Name() domain.StrategyType {
	return domain.StrategyWeightedRoundRobin
}

// Reset zeroes every backend's accumulated weight. The health checker calls
// this whenever the healthy set changes membership, so a backend that just
// recovered doesn't inherit a stale accumulator from before it went
// unhealthy.
func (p *WeightedRoundRobinPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for b := range p.current {
		p.current[b] = new(int64)
	}
}

const minInt64 = -1 << 63

// NewPolicy builds the selection policy named by strategy.
func NewPolicy(strategy domain.StrategyType) (domain.SelectionPolicy, error) {
	switch strategy {
	case domain.StrategyRandom:
		return NewRandomPolicy(), nil
	case domain.StrategyRoundRobin:
		return NewRoundRobinPolicy(), nil
	case domain.StrategyWeightedRoundRobin:
		return NewWeightedRoundRobinPolicy(), nil
	default:
		return nil, fmt.Errorf("service: unsupported strategy %q", strategy)
	}
}
