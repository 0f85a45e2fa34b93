package compiler

import "regexp/syntax"

// Unbounded is the Max of a LengthBounds whose language is infinite.
const Unbounded = -1

// LengthBounds is the range of input lengths, in runes, the pattern accepts.
// Zero-width assertions count as empty. A pattern whose Max is bounded has
// no loops and so cannot be ambiguous to any super-linear degree.
type LengthBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Bounded reports whether every match has a finite length.
func (b LengthBounds) Bounded() bool {
	return b.Max != Unbounded
}

// MatchLength computes the bounds of re.
func MatchLength(re *syntax.Regexp) LengthBounds {
	if re == nil {
		return LengthBounds{}
	}
	lo, hi := lengths(re)
	return LengthBounds{Min: lo, Max: hi}
}

func lengths(re *syntax.Regexp) (lo, hi int) {
	switch re.Op {
	case syntax.OpLiteral:
		return len(re.Rune), len(re.Rune)
	case syntax.OpCharClass:
		if len(re.Rune) == 0 {
			return 0, 0
		}
		return 1, 1
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return 1, 1
	case syntax.OpCapture:
		return lengths(re.Sub[0])
	case syntax.OpStar:
		return 0, Unbounded
	case syntax.OpPlus:
		lo, _ = lengths(re.Sub[0])
		return lo, Unbounded
	case syntax.OpQuest:
		_, hi = lengths(re.Sub[0])
		return 0, hi
	case syntax.OpRepeat:
		lo, hi = lengths(re.Sub[0])
		lo *= re.Min
		if re.Max == -1 || hi == Unbounded {
			return lo, Unbounded
		}
		return lo, hi * re.Max
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			l, h := lengths(sub)
			lo += l
			if hi != Unbounded {
				if h == Unbounded {
					hi = Unbounded
				} else {
					hi += h
				}
			}
		}
		return lo, hi
	case syntax.OpAlternate:
		for i, sub := range re.Sub {
			l, h := lengths(sub)
			if i == 0 || l < lo {
				lo = l
			}
			if hi != Unbounded && (h == Unbounded || h > hi) {
				hi = h
			}
		}
		return lo, hi
	}
	// empty match, no match and the zero-width assertions
	return 0, 0
}
