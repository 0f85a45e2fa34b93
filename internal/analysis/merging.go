package analysis

import (
	"context"

	"github.com/KromDaniel/redos/internal/nfa"
)

// MergingEliminator collapses every epsilon-only strongly connected component
// into one representative state.
//
// The representative carries the non-internal transitions of all members,
// concatenated in entry order. A non-trivial component lists them twice: once
// for leaving the loop directly and once for leaving it after another empty
// pass through it. Without the second copy (a*)* would collapse into a*.
type MergingEliminator struct {
	MaxStates int
}

// Eliminate implements LoopEliminator.
func (m *MergingEliminator) Eliminate(ctx context.Context, g *nfa.Graph) (*nfa.Graph, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g = g.Trim()
	comps := findEpsilonComponents(g)

	out := nfa.New()
	out.SetPrioritised(g.Prioritised())
	rep := make([]nfa.StateID, len(comps.members))
	for i := range comps.members {
		rep[i] = out.AddState()
	}

	for i, members := range comps.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var merged []nfa.Transition
		for _, s := range members {
			if g.IsAccept(s) {
				out.SetAccept(rep[i])
			}
			for _, t := range g.Out(s) {
				if comps.internal(s, t) {
					continue
				}
				t.To = rep[comps.compOf[t.To]]
				merged = append(merged, t)
			}
		}
		if comps.nonTrivial[i] {
			merged = append(merged, merged...)
		}

		for p, t := range merged {
			if g.Prioritised() {
				t.Priority = p
			}
			out.AddRaw(rep[i], t)
		}
	}

	out.SetStart(rep[comps.compOf[g.Start()]])
	return finish(ctx, out, m.MaxStates)
}
