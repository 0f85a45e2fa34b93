package compiler

import "regexp/syntax"

// extractCaptureNames extracts capture group names from the regex AST.
func extractCaptureNames(re *syntax.Regexp) []string {
	var names []string
	names = append(names, "") // Group 0 is always the full match (unnamed)

	var walk func(*syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		if r.Op == syntax.OpCapture {
			names = append(names, r.Name)
		}
		for _, sub := range r.Sub {
			walk(sub)
		}
	}

	walk(re)
	return names
}

// hasRepeatingCaptures checks if the regex has any capture groups in repeating context.
// Repeating contexts include *, +, ?, and {n,m} quantifiers.
func hasRepeatingCaptures(re *syntax.Regexp) bool {
	return walkCheckRepeating(re, false)
}

// walkCheckRepeating recursively walks the AST to detect captures in repeating context.
func walkCheckRepeating(re *syntax.Regexp, inRepeat bool) bool {
	if re.Op == syntax.OpCapture && inRepeat {
		return true
	}

	for _, sub := range re.Sub {
		if walkCheckRepeating(sub, inRepeat || isUnbounded(re) || re.Op == syntax.OpQuest) {
			return true
		}
	}

	return false
}

// detectNestedQuantifiers reports whether an unbounded quantifier contains
// another quantifier, as in (a+)+ or (a?)*. This is only a
// syntactic hint for logs and labels; the verdict comes from the automaton.
func detectNestedQuantifiers(re *syntax.Regexp) bool {
	return walkNested(re, false)
}

func walkNested(re *syntax.Regexp, inLoop bool) bool {
	if inLoop && isQuantifier(re) {
		return true
	}
	loop := isUnbounded(re)
	for _, sub := range re.Sub {
		if walkNested(sub, inLoop || loop) {
			return true
		}
	}
	return false
}

func isQuantifier(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		return true
	}
	return false
}

// isUnbounded reports whether the node repeats its operand without limit.
func isUnbounded(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		return true
	case syntax.OpRepeat:
		return re.Max == -1 || re.Max > 1
	}
	return false
}

// hasAnchor checks if the regex contains a line or text anchor.
func hasAnchor(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText:
		return true
	}
	for _, sub := range re.Sub {
		if hasAnchor(sub) {
			return true
		}
	}
	return false
}

// hasWordBoundary checks if the regex uses \b or \B.
func hasWordBoundary(re *syntax.Regexp) bool {
	if re.Op == syntax.OpWordBoundary || re.Op == syntax.OpNoWordBoundary {
		return true
	}
	for _, sub := range re.Sub {
		if hasWordBoundary(sub) {
			return true
		}
	}
	return false
}
