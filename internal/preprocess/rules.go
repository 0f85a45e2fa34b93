package preprocess

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// Building blocks shared by the rule expressions. escapeRun captures an even
// run of backslashes, so the escape that follows it is not itself escaped;
// replacements put it back as $1.
const (
	escapeRun    = `(?<!\\)((?:\\\\)*)`
	insideClass  = `(?<=(?<!\\)\[(?:[^\]\\]|\\.)*)`
	outsideClass = `(?<!(?<!\\)\[(?:[^\]\\]|\\.)*)`
)

// horizontalSpace is the class body of \h.
const horizontalSpace = `\t\x20\x{A0}\x{1680}\x{180E}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}`

// lineBreak is the expansion of \R.
const lineBreak = `(?:\r\n|[\n\x0B\f\r\x{85}\x{2028}\x{2029}])`

const posixClasses = `Lower|Upper|ASCII|Alpha|Digit|Alnum|Punct|Graph|Print|Blank|Cntrl|XDigit|Space`

type ruleSpec struct {
	name        string
	expr        string
	replacement string
	eval        regexp2.MatchEvaluator
}

func buildRules(specs []ruleSpec) ([]rule, error) {
	rules := make([]rule, 0, len(specs))
	for _, s := range specs {
		re, err := compileRule(s.expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule{name: s.name, re: re, replacement: s.replacement, eval: s.eval})
	}
	return rules, nil
}

// buildPreciseRules returns rewrites that keep the matched language.
func buildPreciseRules() ([]rule, error) {
	return buildRules([]ruleSpec{
		{name: "end-before-final-newline", expr: escapeRun + `\\Z`, replacement: `$1(?:\n?\z)`},
		{name: "escape-char", expr: escapeRun + `\\e`, replacement: `$1\x1B`},
		{name: "control-char", expr: escapeRun + `\\c([A-Za-z])`, eval: controlChar},
		{name: "hspace-in-class", expr: insideClass + escapeRun + `\\h`, replacement: `$1` + horizontalSpace},
		{name: "hspace", expr: escapeRun + `\\h`, replacement: `$1[` + horizontalSpace + `]`},
		{name: "non-hspace", expr: outsideClass + escapeRun + `\\H`, replacement: `$1[^` + horizontalSpace + `]`},
		{name: "linebreak", expr: outsideClass + escapeRun + `\\R`, replacement: `$1` + lineBreak},
		{name: "posix-in-class", expr: insideClass + escapeRun + `\\([pP])\{(` + posixClasses + `)\}`, eval: posixClass(true)},
		{name: "posix", expr: escapeRun + `\\([pP])\{(` + posixClasses + `)\}`, eval: posixClass(false)},
		{name: "unicode-is-prefix", expr: escapeRun + `\\([pP])\{Is(\p{Lu}\w*)\}`, replacement: `$1\$2{$3}`},
		{name: "quoted-group-name", expr: outsideClass + escapeRun + `\(\?'(\w+)'`, replacement: `$1(?P<$2>`},
	})
}

// buildNonpreciseRules returns rewrites that may widen the matched language.
func buildNonpreciseRules() ([]rule, error) {
	return buildRules([]ruleSpec{
		{name: "atomic-group", expr: outsideClass + escapeRun + `\(\?>`, replacement: `$1(?:`},
		{name: "possessive", expr: outsideClass + escapeRun + `([*+?}])\+`, replacement: `$1$2`},
		{name: "last-match-anchor", expr: escapeRun + `\\G`, replacement: `$1`},
	})
}

// controlChar rewrites \cX into the hex escape of the control character.
func controlChar(m regexp2.Match) string {
	run := m.GroupByNumber(1).String()
	letter := []rune(m.GroupByNumber(2).String())[0]
	return fmt.Sprintf(`%s\x%02X`, run, unicode.ToUpper(letter)^0x40)
}

// posixClass rewrites \p{Alpha} into [:alpha:] inside a bracket class and
// [[:alpha:]] outside one. \P negates.
func posixClass(inside bool) regexp2.MatchEvaluator {
	return func(m regexp2.Match) string {
		run := m.GroupByNumber(1).String()
		neg := ""
		if m.GroupByNumber(2).String() == "P" {
			neg = "^"
		}
		class := "[:" + neg + strings.ToLower(m.GroupByNumber(3).String()) + ":]"
		if inside {
			return run + class
		}
		return run + "[" + class + "]"
	}
}
