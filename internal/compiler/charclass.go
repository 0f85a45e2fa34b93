package compiler

import (
	"regexp/syntax"

	"github.com/KromDaniel/redos/internal/nfa"
)

// runeSet converts the rune list of an instruction or syntax node into a
// character set. A single rune stands for itself; longer lists are lo/hi pairs.
func runeSet(runes []rune, fold bool) nfa.CharSet {
	var set nfa.CharSet
	if len(runes) == 1 {
		set = nfa.Single(runes[0])
	} else {
		set = nfa.NewCharSet(runes...)
	}
	if fold {
		set = set.FoldCase()
	}
	return set
}

// literalSet returns the set matching one rune of a literal.
func literalSet(r rune, flags syntax.Flags) nfa.CharSet {
	return runeSet([]rune{r}, flags&syntax.FoldCase != 0)
}
