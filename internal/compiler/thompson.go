package compiler

import (
	"regexp/syntax"

	"github.com/KromDaniel/redos/internal/nfa"
)

// frag is a partially built automaton with a single entry and a single exit.
type frag struct {
	start, end nfa.StateID
}

// thompson builds a Thompson automaton from a syntax tree.
type thompson struct {
	g *nfa.Graph
}

// fromSyntax builds the Thompson automaton of an expanded syntax tree.
// Repetition and alternation get dedicated branch states whose transition
// order follows greediness, so priorities match a backtracking matcher.
func fromSyntax(re *syntax.Regexp) *nfa.Graph {
	t := &thompson{g: nfa.New()}
	f := t.build(re)
	t.g.SetStart(f.start)
	t.g.SetAccept(f.end)
	return t.g
}

func (t *thompson) empty() frag {
	s := t.g.AddState()
	return frag{s, s}
}

func (t *thompson) build(re *syntax.Regexp) frag {
	switch re.Op {
	case syntax.OpNoMatch:
		return frag{t.g.AddState(), t.g.AddState()}

	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return t.empty()

	case syntax.OpLiteral:
		f := t.empty()
		for _, r := range re.Rune {
			next := t.g.AddState()
			t.g.AddTransition(f.end, next, literalSet(r, re.Flags))
			f.end = next
		}
		return f

	case syntax.OpCharClass:
		return t.single(runeSet(re.Rune, false))

	case syntax.OpAnyCharNotNL:
		return t.single(nfa.AnyCharNotNL())

	case syntax.OpAnyChar:
		return t.single(nfa.AnyChar())

	case syntax.OpCapture:
		return t.build(re.Sub[0])

	case syntax.OpConcat:
		f := t.empty()
		for _, sub := range re.Sub {
			sf := t.build(sub)
			t.g.AddEpsilon(f.end, sf.start)
			f.end = sf.end
		}
		return f

	case syntax.OpAlternate:
		start, end := t.g.AddState(), t.g.AddState()
		for _, sub := range re.Sub {
			sf := t.build(sub)
			t.g.AddEpsilon(start, sf.start)
			t.g.AddEpsilon(sf.end, end)
		}
		return frag{start, end}

	case syntax.OpStar:
		loop, exit := t.g.AddState(), t.g.AddState()
		body := t.build(re.Sub[0])
		t.branch(loop, body.start, exit, re.Flags)
		t.g.AddEpsilon(body.end, loop)
		return frag{loop, exit}

	case syntax.OpPlus:
		body := t.build(re.Sub[0])
		loop, exit := t.g.AddState(), t.g.AddState()
		t.g.AddEpsilon(body.end, loop)
		t.branch(loop, body.start, exit, re.Flags)
		return frag{body.start, exit}

	case syntax.OpQuest:
		split, exit := t.g.AddState(), t.g.AddState()
		body := t.build(re.Sub[0])
		t.branch(split, body.start, exit, re.Flags)
		t.g.AddEpsilon(body.end, exit)
		return frag{split, exit}

	case syntax.OpRepeat:
		return t.build(expandNode(re))
	}

	// Unknown operators match nothing.
	return frag{t.g.AddState(), t.g.AddState()}
}

func (t *thompson) single(set nfa.CharSet) frag {
	s, e := t.g.AddState(), t.g.AddState()
	if !set.IsEmpty() {
		t.g.AddTransition(s, e, set)
	}
	return frag{s, e}
}

// branch adds the two epsilon choices of a quantifier, greedy choice first.
func (t *thompson) branch(from, body, exit nfa.StateID, flags syntax.Flags) {
	if flags&syntax.NonGreedy != 0 {
		t.g.AddEpsilon(from, exit)
		t.g.AddEpsilon(from, body)
		return
	}
	t.g.AddEpsilon(from, body)
	t.g.AddEpsilon(from, exit)
}
