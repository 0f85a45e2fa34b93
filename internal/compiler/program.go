package compiler

import (
	"regexp/syntax"

	"github.com/KromDaniel/redos/internal/nfa"
)

// fromProgram maps a compiled instruction program onto a graph, one state per
// instruction. Alternations keep the order a backtracking matcher tries them
// in: Out first, then Arg. Empty-width assertions become epsilon transitions.
func fromProgram(prog *syntax.Prog) *nfa.Graph {
	g := nfa.New()
	for range prog.Inst {
		g.AddState()
	}
	g.SetStart(nfa.StateID(prog.Start))

	for i := range prog.Inst {
		inst := &prog.Inst[i]
		from := nfa.StateID(i)
		out := nfa.StateID(inst.Out)

		switch inst.Op {
		case syntax.InstAlt, syntax.InstAltMatch:
			g.AddEpsilon(from, out)
			g.AddEpsilon(from, nfa.StateID(inst.Arg))
		case syntax.InstCapture, syntax.InstNop, syntax.InstEmptyWidth:
			g.AddEpsilon(from, out)
		case syntax.InstRune:
			fold := syntax.Flags(inst.Arg)&syntax.FoldCase != 0
			g.AddTransition(from, out, runeSet(inst.Rune, fold))
		case syntax.InstRune1:
			g.AddTransition(from, out, nfa.Single(inst.Rune[0]))
		case syntax.InstRuneAny:
			g.AddTransition(from, out, nfa.AnyChar())
		case syntax.InstRuneAnyNotNL:
			g.AddTransition(from, out, nfa.AnyCharNotNL())
		case syntax.InstMatch:
			g.SetAccept(from)
		case syntax.InstFail:
			// no way out
		}
	}
	return g
}
