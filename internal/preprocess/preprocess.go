// Package preprocess rewrites patterns written for other regex dialects into
// syntax the compiler accepts.
package preprocess

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

var (
	// ErrPreprocess is returned when a rewrite rule fails or the pattern is
	// structurally broken (for example unbalanced parentheses).
	ErrPreprocess = errors.New("failed to preprocess pattern")

	// ErrUnknownType is returned by ParseType for an unrecognised name.
	ErrUnknownType = errors.New("unknown preprocessing type")
)

// ruleTimeout bounds each rewrite rule on a single pattern.
const ruleTimeout = time.Second

// Type selects a rule set.
type Type int

const (
	// TypeNone leaves patterns untouched.
	TypeNone Type = iota
	// TypePrecise only applies rewrites that keep the matched language.
	TypePrecise
	// TypeNonprecise additionally removes constructs the compiler cannot
	// express, replacing each with a construct that matches at least as much.
	TypeNonprecise
)

// String returns the upper-case type name.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypePrecise:
		return "PRECISE"
	case TypeNonprecise:
		return "NONPRECISE"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType parses a type name, case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE", "":
		return TypeNone, nil
	case "PRECISE":
		return TypePrecise, nil
	case "NONPRECISE", "NON_PRECISE", "NON-PRECISE":
		return TypeNonprecise, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Preprocessor rewrites a pattern before compilation.
type Preprocessor interface {
	ApplyRules(pattern string) (string, error)
}

// ForType returns the preprocessor of the given type.
func ForType(t Type) Preprocessor {
	switch t {
	case TypePrecise:
		return precise{}
	case TypeNonprecise:
		return nonprecise{}
	default:
		return none{}
	}
}

type none struct{}

func (none) ApplyRules(pattern string) (string, error) {
	return pattern, nil
}

type precise struct{}

func (precise) ApplyRules(pattern string) (string, error) {
	rules, err := loadRules()
	if err != nil {
		return "", err
	}
	return applyAll(pattern, rules.precise)
}

type nonprecise struct{}

func (nonprecise) ApplyRules(pattern string) (string, error) {
	rules, err := loadRules()
	if err != nil {
		return "", err
	}

	out, err := applyAll(pattern, rules.precise)
	if err != nil {
		return "", err
	}
	if out, err = inlineBackreferences(out, rules.backref); err != nil {
		return "", err
	}
	if out, err = removeLookarounds(out); err != nil {
		return "", err
	}
	return applyAll(out, rules.nonprecise)
}

// rule is a single regexp2 rewrite. Either replacement or eval is set.
type rule struct {
	name        string
	re          *regexp2.Regexp
	replacement string
	eval        regexp2.MatchEvaluator
}

func (r rule) apply(pattern string) (string, error) {
	var (
		out string
		err error
	)
	if r.eval != nil {
		out, err = r.re.ReplaceFunc(pattern, r.eval, -1, -1)
	} else {
		out, err = r.re.Replace(pattern, r.replacement, -1, -1)
	}
	if err != nil {
		return "", fmt.Errorf("%w: rule %s: %w", ErrPreprocess, r.name, err)
	}
	return out, nil
}

func applyAll(pattern string, rules []rule) (string, error) {
	var err error
	for _, r := range rules {
		if pattern, err = r.apply(pattern); err != nil {
			return "", err
		}
	}
	return pattern, nil
}

type ruleSets struct {
	precise    []rule
	nonprecise []rule
	backref    *regexp2.Regexp
}

var loadRules = sync.OnceValues(func() (*ruleSets, error) {
	precise, err := buildPreciseRules()
	if err != nil {
		return nil, err
	}
	nonprecise, err := buildNonpreciseRules()
	if err != nil {
		return nil, err
	}
	backref, err := compileRule(outsideClass + escapeRun + `\\(?:([1-9])|k<(\w+)>)`)
	if err != nil {
		return nil, err
	}
	return &ruleSets{precise: precise, nonprecise: nonprecise, backref: backref}, nil
})

func compileRule(expr string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid rule %q: %w", ErrPreprocess, expr, err)
	}
	re.MatchTimeout = ruleTimeout
	return re, nil
}
