// Package nfa models the nondeterministic automata the ReDoS analysis runs on.
package nfa

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedGraph is returned when a graph violates a structural invariant:
// no start state, no accept state, an accept state that cannot be reached, or
// a transition pointing outside the graph.
var ErrMalformedGraph = errors.New("malformed NFA graph")

// StateID identifies a state within a single Graph.
type StateID int

// NoState is the StateID of an unset start state.
const NoState StateID = -1

// Transition is an outgoing edge of a state. Epsilon transitions consume no
// input; all others consume one rune from Set.
type Transition struct {
	To       StateID
	Epsilon  bool
	Set      CharSet
	Priority int

	// Loop is one more than the ID of the loop header this transition
	// enters, or zero. Back marks a transition that closes the loop. Both
	// are set by MarkLoops and travel with copies of the transition, so they
	// keep naming states of the graph they were computed on.
	Loop int
	Back bool
}

// State is a node of the graph. Out is ordered by priority: the first
// transition is the one a backtracking matcher tries first.
type State struct {
	Accept bool
	Out    []Transition
}

// Graph is an arena of states with one start state.
type Graph struct {
	states      []State
	start       StateID
	prioritised bool
}

// New creates an empty, prioritised graph.
func New() *Graph {
	return &Graph{start: NoState, prioritised: true}
}

// AddState appends a state and returns its ID.
func (g *Graph) AddState() StateID {
	g.states = append(g.states, State{})
	return StateID(len(g.states) - 1)
}

// SetStart marks s as the start state.
func (g *Graph) SetStart(s StateID) {
	g.start = s
}

// Start returns the start state, or NoState.
func (g *Graph) Start() StateID {
	return g.start
}

// SetAccept marks s as accepting.
func (g *Graph) SetAccept(s StateID) {
	g.states[s].Accept = true
}

// IsAccept reports whether s is accepting.
func (g *Graph) IsAccept(s StateID) bool {
	return g.states[s].Accept
}

// Accepts returns every accepting state in ID order.
func (g *Graph) Accepts() []StateID {
	var out []StateID
	for i := range g.states {
		if g.states[i].Accept {
			out = append(out, StateID(i))
		}
	}
	return out
}

// AddEpsilon appends an epsilon transition with the next priority of from.
func (g *Graph) AddEpsilon(from, to StateID) {
	g.addTransition(from, Transition{To: to, Epsilon: true, Priority: len(g.states[from].Out)})
}

// AddTransition appends a transition consuming one rune of set.
func (g *Graph) AddTransition(from, to StateID, set CharSet) {
	g.addTransition(from, Transition{To: to, Set: set, Priority: len(g.states[from].Out)})
}

// AddRaw appends t unchanged, keeping its priority.
func (g *Graph) AddRaw(from StateID, t Transition) {
	g.addTransition(from, t)
}

func (g *Graph) addTransition(from StateID, t Transition) {
	g.states[from].Out = append(g.states[from].Out, t)
}

// Out returns the ordered transitions of s. The slice must not be modified.
func (g *Graph) Out(s StateID) []Transition {
	return g.states[s].Out
}

// NumStates returns the number of states, including unreachable ones.
func (g *Graph) NumStates() int {
	return len(g.states)
}

// NumTransitions returns the total number of transitions.
func (g *Graph) NumTransitions() int {
	n := 0
	for i := range g.states {
		n += len(g.states[i].Out)
	}
	return n
}

// Prioritised reports whether transition order is significant.
func (g *Graph) Prioritised() bool {
	return g.prioritised
}

// SetPrioritised records whether transition order is significant.
func (g *Graph) SetPrioritised(p bool) {
	g.prioritised = p
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		states:      make([]State, len(g.states)),
		start:       g.start,
		prioritised: g.prioritised,
	}
	for i, s := range g.states {
		c.states[i] = State{Accept: s.Accept, Out: make([]Transition, len(s.Out))}
		for j, t := range s.Out {
			t.Set = append(CharSet(nil), t.Set...)
			c.states[i].Out[j] = t
		}
	}
	return c
}

// Reachable marks every state reachable from the start state.
func (g *Graph) Reachable() []bool {
	seen := make([]bool, len(g.states))
	if g.start == NoState {
		return seen
	}
	queue := []StateID{g.start}
	seen[g.start] = true
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, t := range g.states[s].Out {
			if !seen[t.To] {
				seen[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}
	return seen
}

// CoReachable marks every state from which an accept state can be reached.
func (g *Graph) CoReachable() []bool {
	preds := make([][]StateID, len(g.states))
	var queue []StateID
	seen := make([]bool, len(g.states))
	for i, s := range g.states {
		for _, t := range s.Out {
			preds[t.To] = append(preds[t.To], StateID(i))
		}
		if s.Accept {
			seen[i] = true
			queue = append(queue, StateID(i))
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, p := range preds[s] {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen
}

// Prune removes states unreachable from start.
func (g *Graph) Prune() *Graph {
	return g.keep(g.Reachable())
}

// Trim removes states unreachable from start and states that cannot reach an
// accept state. The start state is always kept.
func (g *Graph) Trim() *Graph {
	pruned := g.Prune()
	keep := pruned.CoReachable()
	if pruned.start != NoState {
		keep[pruned.start] = true
	}
	return pruned.keep(keep)
}

// keep builds a renumbered graph holding only states with keep[i] set.
// Relative order of states and transitions is preserved.
func (g *Graph) keep(keep []bool) *Graph {
	remap := make([]StateID, len(g.states))
	out := &Graph{start: NoState, prioritised: g.prioritised}
	for i := range g.states {
		remap[i] = NoState
		if keep[i] {
			remap[i] = out.AddState()
			out.states[remap[i]].Accept = g.states[i].Accept
		}
	}
	for i, s := range g.states {
		if !keep[i] {
			continue
		}
		for _, t := range s.Out {
			if keep[t.To] {
				t.To = remap[t.To]
				out.addTransition(remap[i], t)
			}
		}
	}
	if g.start != NoState {
		out.start = remap[g.start]
	}
	return out
}

// HasEpsilonCycle reports whether some state can return to itself through
// epsilon transitions alone.
func (g *Graph) HasEpsilonCycle() bool {
	for _, comp := range g.EpsilonSCCs() {
		if len(comp) > 1 {
			return true
		}
		s := comp[0]
		for _, t := range g.states[s].Out {
			if t.Epsilon && t.To == s {
				return true
			}
		}
	}
	return false
}

// EpsilonSCCs returns the strongly connected components of the epsilon-only
// subgraph over all states, in reverse topological order.
func (g *Graph) EpsilonSCCs() [][]StateID {
	roots := make([]StateID, len(g.states))
	for i := range roots {
		roots[i] = StateID(i)
	}
	comps, _ := StronglyConnected(roots, func(s StateID) ([]StateID, error) {
		var next []StateID
		for _, t := range g.states[s].Out {
			if t.Epsilon {
				next = append(next, t.To)
			}
		}
		return next, nil
	})
	return comps
}

// Validate checks the structural invariants the analysis relies on.
func (g *Graph) Validate() error {
	if g.start == NoState || int(g.start) >= len(g.states) {
		return fmt.Errorf("%w: no start state", ErrMalformedGraph)
	}
	for i, s := range g.states {
		for j, t := range s.Out {
			if t.To < 0 || int(t.To) >= len(g.states) {
				return fmt.Errorf("%w: state %d transition %d targets %d", ErrMalformedGraph, i, j, t.To)
			}
			if !t.Epsilon && t.Set.IsEmpty() {
				return fmt.Errorf("%w: state %d transition %d has an empty character set", ErrMalformedGraph, i, j)
			}
			if j > 0 && t.Priority < s.Out[j-1].Priority {
				return fmt.Errorf("%w: state %d transitions out of priority order", ErrMalformedGraph, i)
			}
		}
	}
	if len(g.Accepts()) == 0 {
		return fmt.Errorf("%w: no accept state", ErrMalformedGraph)
	}
	if !g.CoReachable()[g.start] {
		return fmt.Errorf("%w: no accept state reachable from start", ErrMalformedGraph)
	}
	return nil
}

// String renders the graph one state per line, for verbose logs and tests.
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "start=%d states=%d prioritised=%t\n", g.start, len(g.states), g.prioritised)
	for i, s := range g.states {
		marker := " "
		if s.Accept {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s%d:", marker, i)
		for _, t := range s.Out {
			if t.Epsilon {
				fmt.Fprintf(&b, " ε->%d", t.To)
			} else {
				fmt.Fprintf(&b, " %s->%d", t.Set, t.To)
			}
			if g.prioritised {
				fmt.Fprintf(&b, "@%d", t.Priority)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
