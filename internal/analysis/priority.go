package analysis

import (
	"fmt"

	"github.com/KromDaniel/redos/internal/nfa"
)

// PriorityReducer optionally discards transition priorities. It runs once,
// after loop elimination and before the detectors, and never modifies its input.
type PriorityReducer interface {
	Reduce(g *nfa.Graph) *nfa.Graph
}

// NewPriorityReducer returns the reducer for a strategy.
func NewPriorityReducer(s PriorityStrategy) (PriorityReducer, error) {
	switch s {
	case Unprioritise:
		return UnprioritiseReducer{}, nil
	case Preserve:
		return PreserveReducer{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
}

// UnprioritiseReducer gives every transition the same priority. Detection
// then over-approximates: any ambiguity reachable under the real order is
// still found.
type UnprioritiseReducer struct{}

// Reduce implements PriorityReducer.
func (UnprioritiseReducer) Reduce(g *nfa.Graph) *nfa.Graph {
	out := nfa.New()
	for s := 0; s < g.NumStates(); s++ {
		out.AddState()
	}
	for s := 0; s < g.NumStates(); s++ {
		id := nfa.StateID(s)
		if g.IsAccept(id) {
			out.SetAccept(id)
		}
		for _, t := range g.Out(id) {
			t.Priority = 0
			out.AddRaw(id, t)
		}
	}
	out.SetStart(g.Start())
	out.SetPrioritised(false)
	return out
}

// PreserveReducer keeps the transition order. The detectors then only report
// ambiguity a backtracking matcher can actually reach: one whose pumped state
// still has a suffix that makes the match fail.
type PreserveReducer struct{}

// Reduce implements PriorityReducer.
func (PreserveReducer) Reduce(g *nfa.Graph) *nfa.Graph {
	out := g.Clone()
	out.SetPrioritised(true)
	return out
}
