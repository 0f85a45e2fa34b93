package analysis

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/redos/internal/compiler"
	"github.com/KromDaniel/redos/internal/nfa"
)

// accepts simulates g on input.
func accepts(g *nfa.Graph, input string) bool {
	closure := func(set map[nfa.StateID]bool) map[nfa.StateID]bool {
		stack := make([]nfa.StateID, 0, len(set))
		for s := range set {
			stack = append(stack, s)
		}
		for len(stack) > 0 {
			s := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, t := range g.Out(s) {
				if t.Epsilon && !set[t.To] {
					set[t.To] = true
					stack = append(stack, t.To)
				}
			}
		}
		return set
	}

	cur := closure(map[nfa.StateID]bool{g.Start(): true})
	for _, r := range input {
		next := make(map[nfa.StateID]bool)
		for s := range cur {
			for _, t := range g.Out(s) {
				if !t.Epsilon && t.Set.Contains(r) {
					next[t.To] = true
				}
			}
		}
		cur = closure(next)
	}
	for s := range cur {
		if g.IsAccept(s) {
			return true
		}
	}
	return false
}

var eliminationPatterns = []struct {
	pattern string
	inputs  []string
}{
	{`(a*)*`, []string{"", "a", "aaa", "b"}},
	{`(a*b*)*c`, []string{"c", "abc", "bac", "ab", "aabbac"}},
	{`((a|)*|b)*x`, []string{"x", "ax", "bx", "abx", "a"}},
	{`(a?)+b`, []string{"b", "ab", "aab", "a"}},
	{`^(a+)+$`, []string{"a", "aa", "", "ab"}},
	{`(?:(?:a*)*b*)*`, []string{"", "ab", "ba", "abab", "c"}},
	{`x(y*|z*)*`, []string{"x", "xy", "xyz", "xzy", "y"}},
	{emailPattern, []string{"a@b.cd", "a.b@c.de", "a@b", "ab_c@de.fgh.ijk"}},
}

func TestEliminatorsPreserveLanguage(t *testing.T) {
	for _, tt := range eliminationPatterns {
		for _, mode := range allModes {
			for _, loop := range allLoops {
				t.Run(tt.pattern+"/"+mode.String()+"/"+loop.String(), func(t *testing.T) {
					g := compile(t, tt.pattern, mode)
					e, err := NewLoopEliminator(loop, 0)
					require.NoError(t, err)

					out, err := e.Eliminate(context.Background(), g)
					require.NoError(t, err)
					require.NoError(t, out.Validate())
					assert.False(t, out.HasEpsilonCycle())
					assert.Equal(t, g.Prioritised(), out.Prioritised())

					re := regexp.MustCompile(`^(?:` + tt.pattern + `)$`)
					for _, in := range tt.inputs {
						assert.Equal(t, re.MatchString(in), accepts(out, in), "input %q", in)
					}
				})
			}
		}
	}
}

func TestEliminatorsDoNotInventLabels(t *testing.T) {
	labels := func(g *nfa.Graph) map[string]bool {
		seen := make(map[string]bool)
		for s := 0; s < g.NumStates(); s++ {
			for _, t := range g.Out(nfa.StateID(s)) {
				if !t.Epsilon {
					seen[t.Set.String()] = true
				}
			}
		}
		return seen
	}

	for _, loop := range allLoops {
		t.Run(loop.String(), func(t *testing.T) {
			g := compile(t, `([a-c]*|x*)*\d`, compiler.ModeProgram)
			e, err := NewLoopEliminator(loop, 0)
			require.NoError(t, err)
			out, err := e.Eliminate(context.Background(), g)
			require.NoError(t, err)

			before := labels(g)
			for label := range labels(out) {
				assert.True(t, before[label], "label %s was invented", label)
			}
		})
	}
}

func TestEliminatorsKeepInputUnchanged(t *testing.T) {
	for _, loop := range allLoops {
		t.Run(loop.String(), func(t *testing.T) {
			g := compile(t, `(a*)*b`, compiler.ModeProgram)
			before := g.String()
			e, err := NewLoopEliminator(loop, 0)
			require.NoError(t, err)
			_, err = e.Eliminate(context.Background(), g)
			require.NoError(t, err)
			assert.Equal(t, before, g.String())
		})
	}
}

func TestMergingDoublesLoopExits(t *testing.T) {
	// 0 -ε-> 1 -ε-> 0 forms one component with a single exit on 'a'.
	g := nfa.New()
	s0 := g.AddState()
	s1 := g.AddState()
	end := g.AddState()
	g.SetStart(s0)
	g.SetAccept(end)
	g.AddEpsilon(s0, s1)
	g.AddEpsilon(s1, s0)
	g.AddTransition(s1, end, nfa.Single('a'))

	out, err := (&MergingEliminator{}).Eliminate(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, 2, out.NumStates())

	exits := out.Out(out.Start())
	require.Len(t, exits, 2)
	for i, tr := range exits {
		assert.Equal(t, i, tr.Priority)
		assert.True(t, tr.Set.Equal(nfa.Single('a')))
	}
}

func TestFlatteningUnrollsOnce(t *testing.T) {
	g := compile(t, `(a*)*`, compiler.ModeProgram)
	out, err := (&FlatteningEliminator{}).Eliminate(context.Background(), g)
	require.NoError(t, err)

	m, err := buildMultigraph(newCanceller(context.Background(), 0), out)
	require.NoError(t, err)
	parallel := false
	for p := range m.out {
		self := 0
		for _, e := range m.out[p] {
			if e.to == p {
				self++
			}
		}
		parallel = parallel || self >= 2
	}
	assert.True(t, parallel, "expected two distinct loops on one position")
}

func TestEliminatorBudget(t *testing.T) {
	for _, loop := range allLoops {
		t.Run(loop.String(), func(t *testing.T) {
			e, err := NewLoopEliminator(loop, 2)
			require.NoError(t, err)
			_, err = e.Eliminate(context.Background(), compile(t, `(a*b*)*c`, compiler.ModeProgram))
			assert.ErrorIs(t, err, ErrResourceExhausted)
		})
	}
}

func TestEliminatorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, loop := range allLoops {
		t.Run(loop.String(), func(t *testing.T) {
			e, err := NewLoopEliminator(loop, 0)
			require.NoError(t, err)
			_, err = e.Eliminate(ctx, compile(t, `(a*)*`, compiler.ModeProgram))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestPriorityReducers(t *testing.T) {
	g := compile(t, `(a|b)*c`, compiler.ModeProgram)

	un, err := NewPriorityReducer(Unprioritise)
	require.NoError(t, err)
	flat := un.Reduce(g)
	assert.False(t, flat.Prioritised())
	for s := 0; s < flat.NumStates(); s++ {
		for _, tr := range flat.Out(nfa.StateID(s)) {
			assert.Zero(t, tr.Priority)
		}
	}
	assert.True(t, g.Prioritised(), "input must keep its priorities")

	keep, err := NewPriorityReducer(Preserve)
	require.NoError(t, err)
	kept := keep.Reduce(g)
	assert.True(t, kept.Prioritised())
	assert.Equal(t, g.String(), kept.String())

	_, err = NewPriorityReducer(PriorityStrategy(9))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
