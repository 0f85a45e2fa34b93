package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/KromDaniel/redos/internal/nfa"
)

// LoopEliminator removes every epsilon cycle from a graph. Implementations
// never modify their input, keep every accept state reachable and never
// invent character transitions.
type LoopEliminator interface {
	Eliminate(ctx context.Context, g *nfa.Graph) (*nfa.Graph, error)
}

// NewLoopEliminator returns the eliminator for a strategy. maxStates <= 0
// disables the size check.
func NewLoopEliminator(s LoopStrategy, maxStates int) (LoopEliminator, error) {
	switch s {
	case Merging:
		return &MergingEliminator{MaxStates: maxStates}, nil
	case Flattening:
		return &FlatteningEliminator{MaxStates: maxStates}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
}

// epsilonComponents groups the states of a graph by epsilon-only strongly
// connected component. Members of each component are sorted by entry order:
// breadth-first discovery order from the start state.
type epsilonComponents struct {
	compOf     []int
	members    [][]nfa.StateID
	nonTrivial []bool
	entryOrder []int
}

func findEpsilonComponents(g *nfa.Graph) *epsilonComponents {
	n := g.NumStates()
	c := &epsilonComponents{
		compOf:     make([]int, n),
		entryOrder: bfsOrder(g),
	}

	for _, comp := range g.EpsilonSCCs() {
		idx := len(c.members)
		members := append([]nfa.StateID(nil), comp...)
		sort.Slice(members, func(i, j int) bool {
			return c.entryOrder[members[i]] < c.entryOrder[members[j]]
		})

		trivial := len(members) == 1
		for _, s := range members {
			c.compOf[s] = idx
		}
		if trivial {
			for _, t := range g.Out(members[0]) {
				if t.Epsilon && t.To == members[0] {
					trivial = false
				}
			}
		}
		c.members = append(c.members, members)
		c.nonTrivial = append(c.nonTrivial, !trivial)
	}

	// Components are numbered by the entry order of their first member so
	// the derived graph is laid out deterministically.
	order := make([]int, len(c.members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return c.entryOrder[c.members[order[i]][0]] < c.entryOrder[c.members[order[j]][0]]
	})
	renumber := make([]int, len(order))
	members := make([][]nfa.StateID, len(order))
	nonTrivial := make([]bool, len(order))
	for newIdx, oldIdx := range order {
		renumber[oldIdx] = newIdx
		members[newIdx] = c.members[oldIdx]
		nonTrivial[newIdx] = c.nonTrivial[oldIdx]
	}
	for s := range c.compOf {
		c.compOf[s] = renumber[c.compOf[s]]
	}
	c.members, c.nonTrivial = members, nonTrivial
	return c
}

// internal reports whether t is an epsilon transition that stays inside the
// component of from.
func (c *epsilonComponents) internal(from nfa.StateID, t nfa.Transition) bool {
	return t.Epsilon && c.compOf[from] == c.compOf[t.To]
}

// bfsOrder numbers states in breadth-first order from start, following
// transitions in priority order. Unreachable states get math.MaxInt.
func bfsOrder(g *nfa.Graph) []int {
	order := make([]int, g.NumStates())
	for i := range order {
		order[i] = math.MaxInt
	}
	start := g.Start()
	order[start] = 0
	next := 1
	queue := []nfa.StateID{start}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, t := range g.Out(s) {
			if order[t.To] == math.MaxInt {
				order[t.To] = next
				next++
				queue = append(queue, t.To)
			}
		}
	}
	return order
}

// finish trims a derived graph and enforces the state budget.
func finish(ctx context.Context, g *nfa.Graph, maxStates int) (*nfa.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g = g.Trim()
	if maxStates > 0 && g.NumStates() > maxStates {
		return nil, fmt.Errorf("%w: %d states after loop elimination (limit %d)", ErrResourceExhausted, g.NumStates(), maxStates)
	}
	if g.HasEpsilonCycle() {
		return nil, fmt.Errorf("%w: epsilon cycle survived elimination", nfa.ErrMalformedGraph)
	}
	return g, nil
}
