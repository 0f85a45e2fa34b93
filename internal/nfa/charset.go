package nfa

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// maxFoldSpan bounds the size of a range that FoldCase expands rune by rune.
// Wider ranges already cover most of their case variants.
const maxFoldSpan = 4096

// Range is an inclusive interval of runes.
type Range struct {
	Lo, Hi rune
}

// CharSet is a character predicate: a sorted list of disjoint, non-adjacent
// rune ranges. The zero value is the empty set.
type CharSet []Range

// NewCharSet builds a set from lo/hi pairs, the layout regexp/syntax uses for
// Inst.Rune and Regexp.Rune.
func NewCharSet(pairs ...rune) CharSet {
	ranges := make([]Range, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		ranges = append(ranges, Range{Lo: pairs[i], Hi: pairs[i+1]})
	}
	return normalize(ranges)
}

// Single returns the set containing only r.
func Single(r rune) CharSet {
	return CharSet{{Lo: r, Hi: r}}
}

// AnyChar returns the set of all runes.
func AnyChar() CharSet {
	return CharSet{{Lo: 0, Hi: unicode.MaxRune}}
}

// AnyCharNotNL returns the set of all runes except '\n'.
func AnyCharNotNL() CharSet {
	return CharSet{{Lo: 0, Hi: '\n' - 1}, {Lo: '\n' + 1, Hi: unicode.MaxRune}}
}

func normalize(ranges []Range) CharSet {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Lo <= r.Hi {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })

	out := make(CharSet, 0, len(sorted))
	for _, r := range sorted {
		if n := len(out); n > 0 && r.Lo <= out[n-1].Hi+1 {
			if r.Hi > out[n-1].Hi {
				out[n-1].Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// IsEmpty reports whether the set matches no rune.
func (s CharSet) IsEmpty() bool {
	return len(s) == 0
}

// Contains reports whether r is in the set.
func (s CharSet) Contains(r rune) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].Hi >= r })
	return i < len(s) && s[i].Lo <= r
}

// Intersect returns the runes present in both sets.
func (s CharSet) Intersect(t CharSet) CharSet {
	var out CharSet
	i, j := 0, 0
	for i < len(s) && j < len(t) {
		lo := max(s[i].Lo, t[j].Lo)
		hi := min(s[i].Hi, t[j].Hi)
		if lo <= hi {
			out = append(out, Range{Lo: lo, Hi: hi})
		}
		if s[i].Hi < t[j].Hi {
			i++
		} else {
			j++
		}
	}
	return out
}

// Overlaps reports whether the sets share at least one rune.
func (s CharSet) Overlaps(t CharSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(t) {
		if max(s[i].Lo, t[j].Lo) <= min(s[i].Hi, t[j].Hi) {
			return true
		}
		if s[i].Hi < t[j].Hi {
			i++
		} else {
			j++
		}
	}
	return false
}

// Union returns the runes present in either set.
func (s CharSet) Union(t CharSet) CharSet {
	merged := make([]Range, 0, len(s)+len(t))
	merged = append(merged, s...)
	merged = append(merged, t...)
	return normalize(merged)
}

// Complement returns every rune not in the set.
func (s CharSet) Complement() CharSet {
	var out CharSet
	next := rune(0)
	for _, r := range s {
		if r.Lo > next {
			out = append(out, Range{Lo: next, Hi: r.Lo - 1})
		}
		next = r.Hi + 1
	}
	if next <= unicode.MaxRune {
		out = append(out, Range{Lo: next, Hi: unicode.MaxRune})
	}
	return out
}

// Min returns the smallest rune of the set. It panics on an empty set.
func (s CharSet) Min() rune {
	return s[0].Lo
}

// Equal reports whether both sets contain exactly the same runes.
func (s CharSet) Equal(t CharSet) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// IsFull reports whether the set contains every rune.
func (s CharSet) IsFull() bool {
	return len(s) == 1 && s[0].Lo == 0 && s[0].Hi == unicode.MaxRune
}

// FoldCase adds the simple case-fold variants of every rune in the set.
func (s CharSet) FoldCase() CharSet {
	extra := make([]Range, 0, len(s))
	for _, r := range s {
		if r.Hi-r.Lo > maxFoldSpan {
			continue
		}
		for c := r.Lo; c <= r.Hi; c++ {
			for f := unicode.SimpleFold(c); f != c; f = unicode.SimpleFold(f) {
				extra = append(extra, Range{Lo: f, Hi: f})
			}
		}
	}
	if len(extra) == 0 {
		return s
	}
	return s.Union(normalize(extra))
}

// Partition splits the union of sets into atoms: disjoint ranges such that
// every atom lies either fully inside or fully outside each input set.
func Partition(sets []CharSet) []Range {
	var cuts []rune
	for _, s := range sets {
		for _, r := range s {
			cuts = append(cuts, r.Lo, r.Hi+1)
		}
	}
	if len(cuts) == 0 {
		return nil
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i] < cuts[j] })

	var atoms []Range
	for i := 0; i+1 < len(cuts); i++ {
		lo, hi := cuts[i], cuts[i+1]-1
		if lo > hi {
			continue
		}
		for _, s := range sets {
			if s.Contains(lo) {
				atoms = append(atoms, Range{Lo: lo, Hi: hi})
				break
			}
		}
	}
	return atoms
}

// String renders the set in regex class notation, naming the common classes.
func (s CharSet) String() string {
	switch {
	case len(s) == 0:
		return "[]"
	case s.IsFull():
		return "(?s:.)"
	case s.Equal(AnyCharNotNL()):
		return "."
	case len(s) == 1 && s[0].Lo == s[0].Hi:
		return quoteRune(s[0].Lo)
	}
	if name := detectCharacterClass(s); name != "" {
		return name
	}

	var b strings.Builder
	b.WriteByte('[')
	for _, r := range s {
		b.WriteString(classRune(r.Lo))
		if r.Hi > r.Lo {
			if r.Hi > r.Lo+1 {
				b.WriteByte('-')
			}
			b.WriteString(classRune(r.Hi))
		}
	}
	b.WriteByte(']')
	return b.String()
}

// detectCharacterClass names the set when it is one of the common classes.
func detectCharacterClass(s CharSet) string {
	switch {
	case s.Equal(NewCharSet('0', '9', 'A', 'Z', '_', '_', 'a', 'z')):
		return `\w`
	case s.Equal(NewCharSet('0', '9')):
		return `\d`
	case s.Equal(NewCharSet('\t', '\n', '\f', '\r', ' ', ' ')):
		return `\s`
	case s.Equal(NewCharSet('a', 'z')):
		return "[a-z]"
	case s.Equal(NewCharSet('A', 'Z')):
		return "[A-Z]"
	case s.Equal(NewCharSet('A', 'Z', 'a', 'z')):
		return "[a-zA-Z]"
	}
	return ""
}

func quoteRune(r rune) string {
	if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
		return `\` + string(r)
	}
	return printable(r)
}

func classRune(r rune) string {
	if strings.ContainsRune(`\[]^-`, r) {
		return `\` + string(r)
	}
	return printable(r)
}

func printable(r rune) string {
	if unicode.IsPrint(r) {
		return string(r)
	}
	if r <= 0xFF {
		return fmt.Sprintf(`\x%02X`, r)
	}
	return fmt.Sprintf(`\x{%X}`, r)
}
