package analysis

import (
	"context"
	"fmt"

	"github.com/KromDaniel/redos/internal/nfa"
)

// FlatteningEliminator unrolls every epsilon cycle once.
//
// For each entry point of a non-trivial component (a member reached by a
// transition that is not an internal epsilon edge, or the start state) the
// component is laid out twice. A depth-first search from the entry
// classifies the internal epsilon edges: edges closing a cycle lead from the
// first layer into the second and are dropped in the second, every other
// internal edge is mirrored in both layers. Each cycle can therefore be taken
// at most once between two input symbols, and every copy keeps the priority
// order of the state it was copied from.
type FlatteningEliminator struct {
	MaxStates int
}

// unrolled holds the two layers of one component for one entry.
type unrolled struct {
	layer [2]map[nfa.StateID]nfa.StateID
	back  map[edgeRef]bool
}

type edgeRef struct {
	from nfa.StateID
	idx  int
}

// Eliminate implements LoopEliminator.
func (f *FlatteningEliminator) Eliminate(ctx context.Context, g *nfa.Graph) (*nfa.Graph, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g = g.Trim()
	comps := findEpsilonComponents(g)

	out := nfa.New()
	out.SetPrioritised(g.Prioritised())

	single := make(map[nfa.StateID]nfa.StateID)
	for i, members := range comps.members {
		if !comps.nonTrivial[i] {
			single[members[0]] = out.AddState()
		}
	}

	entries := f.entries(g, comps)
	copies := make(map[nfa.StateID]*unrolled, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := comps.members[comps.compOf[entry]]
		u := &unrolled{back: backEdges(g, comps, entry)}
		for l := range u.layer {
			u.layer[l] = make(map[nfa.StateID]nfa.StateID, len(members))
			for _, s := range members {
				u.layer[l][s] = out.AddState()
			}
		}
		if f.MaxStates > 0 && out.NumStates() > 4*f.MaxStates {
			return nil, fmt.Errorf("%w: loop unrolling exceeds %d states", ErrResourceExhausted, 4*f.MaxStates)
		}
		copies[entry] = u
	}

	target := func(s nfa.StateID) nfa.StateID {
		if u, ok := copies[s]; ok {
			return u.layer[0][s]
		}
		return single[s]
	}

	for s, id := range single {
		if g.IsAccept(s) {
			out.SetAccept(id)
		}
		for _, t := range g.Out(s) {
			t.To = target(t.To)
			out.AddRaw(id, t)
		}
	}

	for _, entry := range entries {
		u := copies[entry]
		for _, s := range comps.members[comps.compOf[entry]] {
			for l := range u.layer {
				from := u.layer[l][s]
				if g.IsAccept(s) {
					out.SetAccept(from)
				}
				for idx, t := range g.Out(s) {
					switch {
					case !comps.internal(s, t):
						t.To = target(t.To)
					case u.back[edgeRef{s, idx}]:
						if l == 1 {
							continue
						}
						t.To = u.layer[1][t.To]
					default:
						t.To = u.layer[l][t.To]
					}
					out.AddRaw(from, t)
				}
			}
		}
	}

	out.SetStart(target(g.Start()))
	return finish(ctx, out, f.MaxStates)
}

// entries lists the members of non-trivial components that can be entered
// from outside the component's epsilon cycle, in entry order.
func (f *FlatteningEliminator) entries(g *nfa.Graph, comps *epsilonComponents) []nfa.StateID {
	isEntry := make(map[nfa.StateID]bool)
	if comps.nonTrivial[comps.compOf[g.Start()]] {
		isEntry[g.Start()] = true
	}
	for s := 0; s < g.NumStates(); s++ {
		from := nfa.StateID(s)
		for _, t := range g.Out(from) {
			if comps.nonTrivial[comps.compOf[t.To]] && !comps.internal(from, t) {
				isEntry[t.To] = true
			}
		}
	}

	var entries []nfa.StateID
	for i, members := range comps.members {
		if !comps.nonTrivial[i] {
			continue
		}
		for _, s := range members {
			if isEntry[s] {
				entries = append(entries, s)
			}
		}
	}
	return entries
}

// backEdges runs a depth-first search over the internal epsilon edges of the
// component of root, in priority order, and returns the edges that point at
// a state still on the search stack.
func backEdges(g *nfa.Graph, comps *epsilonComponents, root nfa.StateID) map[edgeRef]bool {
	type frame struct {
		state nfa.StateID
		next  int
	}

	back := make(map[edgeRef]bool)
	visited := map[nfa.StateID]bool{root: true}
	onStack := map[nfa.StateID]bool{root: true}
	stack := []frame{{state: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := g.Out(top.state)
		if top.next >= len(out) {
			onStack[top.state] = false
			stack = stack[:len(stack)-1]
			continue
		}

		idx := top.next
		t := out[idx]
		top.next++
		if !comps.internal(top.state, t) {
			continue
		}
		switch {
		case onStack[t.To]:
			back[edgeRef{top.state, idx}] = true
		case !visited[t.To]:
			visited[t.To] = true
			onStack[t.To] = true
			stack = append(stack, frame{state: t.To})
		}
	}
	return back
}
