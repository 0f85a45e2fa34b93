package nfa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkLoops(t *testing.T) {
	g, _ := buildStar(t)
	require.Equal(t, 1, g.MarkLoops())

	in := g.Out(0)
	require.Len(t, in, 1)
	assert.Equal(t, 2, in[0].Loop, "entry into the header")
	assert.False(t, in[0].Back)

	self := g.Out(1)[0]
	assert.True(t, self.Back)
	assert.Equal(t, 2, self.Loop)

	exit := g.Out(1)[1]
	assert.False(t, exit.Back)
	assert.Zero(t, exit.Loop)
}

func TestMarkLoopsNested(t *testing.T) {
	// s0 -ε-> outer -ε-> inner -a-> inner, inner -ε-> tail -ε-> outer,
	// tail -ε-> accept.
	g := New()
	s0, outer, inner, tail, acc := g.AddState(), g.AddState(), g.AddState(), g.AddState(), g.AddState()
	g.SetStart(s0)
	g.SetAccept(acc)
	g.AddEpsilon(s0, outer)
	g.AddEpsilon(outer, inner)
	g.AddTransition(inner, inner, Single('a'))
	g.AddEpsilon(inner, tail)
	g.AddEpsilon(tail, outer)
	g.AddEpsilon(tail, acc)

	assert.Equal(t, 2, g.MarkLoops())

	closing := g.Out(tail)[0]
	assert.True(t, closing.Back)
	assert.Equal(t, int(outer)+1, closing.Loop)

	entry := g.Out(outer)[0]
	assert.False(t, entry.Back)
	assert.Equal(t, int(inner)+1, entry.Loop)

	// Annotations survive renumbering; they still name the original header.
	trimmed := g.Clone().Trim()
	var backs int
	for s := 0; s < trimmed.NumStates(); s++ {
		for _, tr := range trimmed.Out(StateID(s)) {
			if tr.Back {
				backs++
			}
		}
	}
	assert.Equal(t, 2, backs)
}

func TestMarkLoopsAcyclic(t *testing.T) {
	g := New()
	a, b, c := g.AddState(), g.AddState(), g.AddState()
	g.SetStart(a)
	g.SetAccept(c)
	g.AddEpsilon(a, b)
	g.AddEpsilon(a, c)
	g.AddTransition(b, c, Single('x'))

	assert.Zero(t, g.MarkLoops())
	for s := 0; s < g.NumStates(); s++ {
		for _, tr := range g.Out(StateID(s)) {
			assert.Zero(t, tr.Loop)
		}
	}
}
