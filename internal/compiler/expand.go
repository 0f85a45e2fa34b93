package compiler

import (
	"fmt"
	"regexp/syntax"
)

// expandRepeats rewrites every counted repetition x{n,m} into stars, pluses,
// quests and concatenations, the forms syntax.Compile and the Thompson
// construction understand. Sub-expressions are shared between copies, not
// cloned; both constructions walk the tree and create fresh states per visit.
func expandRepeats(re *syntax.Regexp) (*syntax.Regexp, error) {
	out := expandNode(re)
	if n := treeSize(out, make(map[*syntax.Regexp]int)); n > MaxExpandedNodes {
		return nil, fmt.Errorf("pattern expands to %d nodes (limit %d)", n, MaxExpandedNodes)
	}
	return out, nil
}

func expandNode(re *syntax.Regexp) *syntax.Regexp {
	if len(re.Sub) > 0 {
		subs := make([]*syntax.Regexp, len(re.Sub))
		changed := false
		for i, sub := range re.Sub {
			subs[i] = expandNode(sub)
			if subs[i] != sub {
				changed = true
			}
		}
		if changed {
			cp := *re
			cp.Sub = subs
			re = &cp
		}
	}

	if re.Op != syntax.OpRepeat {
		return re
	}
	return repeat(re.Sub[0], re.Min, re.Max, re.Flags&syntax.NonGreedy)
}

// repeat builds x{min,max}. max == -1 means unbounded. The optional tail of a
// bounded repeat nests, x{2,4} => xx(x(x)?)?, so no two branches can skip the
// same copy.
func repeat(sub *syntax.Regexp, min, max int, flags syntax.Flags) *syntax.Regexp {
	if max == -1 {
		if min == 0 {
			return unary(syntax.OpStar, flags, sub)
		}
		parts := make([]*syntax.Regexp, 0, min)
		for i := 0; i < min-1; i++ {
			parts = append(parts, sub)
		}
		return concat(append(parts, unary(syntax.OpPlus, flags, sub)))
	}
	if max == 0 {
		return &syntax.Regexp{Op: syntax.OpEmptyMatch}
	}

	parts := make([]*syntax.Regexp, 0, min+1)
	for i := 0; i < min; i++ {
		parts = append(parts, sub)
	}
	if max > min {
		var tail *syntax.Regexp
		for i := min; i < max; i++ {
			body := sub
			if tail != nil {
				body = concat([]*syntax.Regexp{sub, tail})
			}
			tail = unary(syntax.OpQuest, flags, body)
		}
		parts = append(parts, tail)
	}
	return concat(parts)
}

func unary(op syntax.Op, flags syntax.Flags, sub *syntax.Regexp) *syntax.Regexp {
	return &syntax.Regexp{Op: op, Flags: flags, Sub: []*syntax.Regexp{sub}}
}

func concat(parts []*syntax.Regexp) *syntax.Regexp {
	switch len(parts) {
	case 0:
		return &syntax.Regexp{Op: syntax.OpEmptyMatch}
	case 1:
		return parts[0]
	}
	return &syntax.Regexp{Op: syntax.OpConcat, Sub: parts}
}

// treeSize counts nodes as the constructions will visit them, so a shared
// sub-expression counts once per reference.
func treeSize(re *syntax.Regexp, memo map[*syntax.Regexp]int) int {
	if n, ok := memo[re]; ok {
		return n
	}
	n := 1
	for _, sub := range re.Sub {
		n += treeSize(sub, memo)
		if n > MaxExpandedNodes {
			break
		}
	}
	memo[re] = n
	return n
}
