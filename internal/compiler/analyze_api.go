package compiler

import (
	"regexp/syntax"
	"sort"
	"strings"
)

// featureLabels extracts feature labels from the pattern structure.
// Labels are sorted alphabetically.
func featureLabels(pattern string, ast *syntax.Regexp) []string {
	var labels []string

	if hasAnchor(ast) {
		labels = append(labels, LabelAnchored)
	}

	if hasAlternation(ast) {
		labels = append(labels, LabelAlternation)
	}

	if len(extractCaptureNames(ast)) > 1 {
		labels = append(labels, LabelCaptures)
	}

	if hasCharClass(pattern, ast) {
		labels = append(labels, LabelCharClass)
	}

	if hasMultibyte(pattern) {
		labels = append(labels, LabelMultibyte)
	}

	if strings.Contains(pattern, "(?:") {
		labels = append(labels, LabelNonCapturing)
	}

	if hasQuantifiers(ast) {
		labels = append(labels, LabelQuantifiers)
	}

	if detectNestedQuantifiers(ast) {
		labels = append(labels, LabelNestedQuantifiers)
	}

	if hasRepeatingCaptures(ast) {
		labels = append(labels, LabelRepeatingCaptures)
	}

	if hasWordBoundary(ast) {
		labels = append(labels, LabelWordBoundary)
	}

	if hasUnicodeCharClass(ast) {
		labels = append(labels, LabelUnicodeCharClass)
	}

	if len(labels) == 0 {
		labels = append(labels, LabelSimple)
	}

	sort.Strings(labels)
	return labels
}

// hasAlternation checks if the AST contains alternation (|).
func hasAlternation(re *syntax.Regexp) bool {
	if re == nil {
		return false
	}
	if re.Op == syntax.OpAlternate {
		return true
	}
	for _, sub := range re.Sub {
		if hasAlternation(sub) {
			return true
		}
	}
	return false
}

// hasCharClass checks if the pattern uses character classes.
func hasCharClass(pattern string, ast *syntax.Regexp) bool {
	if strings.ContainsAny(pattern, "[]") {
		return true
	}
	for _, esc := range []string{`\d`, `\D`, `\w`, `\W`, `\s`, `\S`} {
		if strings.Contains(pattern, esc) {
			return true
		}
	}
	return hasCharClassInAST(ast)
}

// hasCharClassInAST checks if the AST contains character class operations.
func hasCharClassInAST(re *syntax.Regexp) bool {
	if re == nil {
		return false
	}
	if re.Op == syntax.OpCharClass || re.Op == syntax.OpAnyCharNotNL || re.Op == syntax.OpAnyChar {
		return true
	}
	for _, sub := range re.Sub {
		if hasCharClassInAST(sub) {
			return true
		}
	}
	return false
}

// hasMultibyte checks if the pattern contains non-ASCII characters.
func hasMultibyte(pattern string) bool {
	for _, r := range pattern {
		if r >= MaxASCIIRune {
			return true
		}
	}
	return false
}

// hasQuantifiers checks if the AST contains quantifier operations.
func hasQuantifiers(re *syntax.Regexp) bool {
	if re == nil {
		return false
	}
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		return true
	}
	for _, sub := range re.Sub {
		if hasQuantifiers(sub) {
			return true
		}
	}
	return false
}

// hasUnicodeCharClass checks if a character class reaches beyond ASCII.
// Negated ASCII classes such as [^a] are not counted.
func hasUnicodeCharClass(re *syntax.Regexp) bool {
	if re.Op == syntax.OpCharClass {
		for i := 0; i+1 < len(re.Rune); i += 2 {
			lo, hi := re.Rune[i], re.Rune[i+1]
			if lo >= MaxASCIIRune && hi < 0x10FFFF {
				return true
			}
		}
	}
	for _, sub := range re.Sub {
		if hasUnicodeCharClass(sub) {
			return true
		}
	}
	return false
}
