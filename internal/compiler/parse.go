package compiler

import (
	"fmt"
	"regexp/syntax"
	"strings"
)

// regexp/syntax factors alternations while parsing: a|a becomes a, \w|\d
// becomes one class and abc|abd becomes ab[cd]. Each branch is a separate
// path for a backtracking matcher, so the parser is only ever handed one
// branch at a time. Nested groups are swapped for empty named captures,
// parsed on their own and spliced back into the tree.

// placeholderPrefix names the empty captures standing in for groups. User
// group names never reach the parser, so they cannot collide.
const placeholderPrefix = "redos_group_"

// flagSet is the subset of inline flags that changes how a branch parses.
type flagSet struct {
	fold, multiLine, dotNL, ungreedy bool
}

// directive renders f as an inline flag group, or "" when no flag is set.
func (f flagSet) directive() string {
	var b strings.Builder
	for _, fl := range []struct {
		on bool
		c  byte
	}{{f.fold, 'i'}, {f.multiLine, 'm'}, {f.dotNL, 's'}, {f.ungreedy, 'U'}} {
		if fl.on {
			b.WriteByte(fl.c)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}

// apply updates f with flag text such as "i-s".
func (f *flagSet) apply(text string) {
	on := true
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '-':
			on = false
		case 'i':
			f.fold = on
		case 'm':
			f.multiLine = on
		case 's':
			f.dotNL = on
		case 'U':
			f.ungreedy = on
		}
	}
}

// branchParser splits a pattern that regexp/syntax already accepted.
type branchParser struct {
	src  string
	caps int
}

// parseBranches parses pattern, which must be valid, keeping every
// alternation branch as its own subexpression.
func parseBranches(pattern string) (*syntax.Regexp, error) {
	p := &branchParser{src: pattern}
	re, end, err := p.alternation(0, flagSet{})
	if err != nil {
		return nil, err
	}
	if end != len(pattern) {
		return nil, fmt.Errorf("unexpected ) at offset %d", end)
	}
	return re, nil
}

// alternation parses from i up to the closing parenthesis of the enclosing
// group, or the end of the pattern. Flags set inline carry across branches.
func (p *branchParser) alternation(i int, flags flagSet) (*syntax.Regexp, int, error) {
	var branches []*syntax.Regexp
	for {
		re, end, err := p.branch(i, &flags)
		if err != nil {
			return nil, 0, err
		}
		branches = append(branches, re)
		if end < len(p.src) && p.src[end] == '|' {
			i = end + 1
			continue
		}
		if len(branches) == 1 {
			return branches[0], end, nil
		}
		return &syntax.Regexp{Op: syntax.OpAlternate, Sub: branches}, end, nil
	}
}

// branch parses one branch starting at i and returns the offset of the '|'
// or ')' that ends it.
func (p *branchParser) branch(i int, flags *flagSet) (*syntax.Regexp, int, error) {
	var text strings.Builder
	text.WriteString(flags.directive())
	groups := make(map[string]*syntax.Regexp)

scan:
	for i < len(p.src) {
		switch p.src[i] {
		case '|', ')':
			break scan
		case '\\':
			j := skipEscape(p.src, i)
			text.WriteString(p.src[i:j])
			i = j
		case '[':
			j := skipClass(p.src, i)
			text.WriteString(p.src[i:j])
			i = j
		case '(':
			if set, j, ok := flagDirective(p.src, i); ok {
				flags.apply(set)
				text.WriteString(p.src[i:j])
				i = j
				continue
			}
			group, j, err := p.group(i, *flags)
			if err != nil {
				return nil, 0, err
			}
			name := fmt.Sprintf("%s%d", placeholderPrefix, len(groups))
			groups[name] = group
			text.WriteString("(?P<" + name + ">)")
			i = j
		default:
			text.WriteByte(p.src[i])
			i++
		}
	}

	re, err := syntax.Parse(text.String(), syntax.Perl)
	if err != nil {
		return nil, 0, err
	}
	return splice(re, groups), i, nil
}

// group parses the group opening at i and returns the offset after its
// closing parenthesis.
func (p *branchParser) group(i int, flags flagSet) (*syntax.Regexp, int, error) {
	j := i + 1
	capture, name := true, ""
	rest := p.src[j:]
	switch {
	case strings.HasPrefix(rest, "?P<"), strings.HasPrefix(rest, "?<"):
		k := strings.IndexByte(rest, '>')
		if k < 0 {
			return nil, 0, fmt.Errorf("unterminated group name at offset %d", i)
		}
		name = rest[strings.IndexByte(rest, '<')+1 : k]
		j += k + 1
	case strings.HasPrefix(rest, "?"):
		k := strings.IndexByte(rest, ':')
		if k < 0 {
			return nil, 0, fmt.Errorf("unsupported group at offset %d", i)
		}
		flags.apply(rest[1:k])
		capture = false
		j += k + 1
	}

	var index int
	if capture {
		p.caps++
		index = p.caps
	}
	sub, end, err := p.alternation(j, flags)
	if err != nil {
		return nil, 0, err
	}
	if end >= len(p.src) || p.src[end] != ')' {
		return nil, 0, fmt.Errorf("missing ) for group at offset %d", i)
	}
	if !capture {
		return sub, end + 1, nil
	}
	return &syntax.Regexp{Op: syntax.OpCapture, Cap: index, Name: name, Sub: []*syntax.Regexp{sub}}, end + 1, nil
}

// splice replaces the placeholder captures of re with their groups.
func splice(re *syntax.Regexp, groups map[string]*syntax.Regexp) *syntax.Regexp {
	if re.Op == syntax.OpCapture {
		if g, ok := groups[re.Name]; ok {
			return g
		}
	}
	for i, sub := range re.Sub {
		re.Sub[i] = splice(sub, groups)
	}
	return re
}

// flagDirective recognises a flag-only group such as (?i) or (?-s) at i.
func flagDirective(s string, i int) (set string, end int, ok bool) {
	if !strings.HasPrefix(s[i:], "(?") {
		return "", 0, false
	}
	j := i + 2
	for j < len(s) && strings.IndexByte("imsU-", s[j]) >= 0 {
		j++
	}
	if j == i+2 || j >= len(s) || s[j] != ')' {
		return "", 0, false
	}
	return s[i+2 : j], j + 1, true
}

// skipEscape returns the offset after the escape sequence at i. \Q quotes
// everything up to \E or the end of the pattern.
func skipEscape(s string, i int) int {
	if i+1 >= len(s) {
		return len(s)
	}
	if s[i+1] == 'Q' {
		if k := strings.Index(s[i+2:], `\E`); k >= 0 {
			return i + 2 + k + 2
		}
		return len(s)
	}
	return i + 2
}

// skipClass returns the offset after the bracket expression at i.
func skipClass(s string, i int) int {
	j := i + 1
	if j < len(s) && s[j] == '^' {
		j++
	}
	if j < len(s) && s[j] == ']' {
		j++
	}
	for j < len(s) {
		switch {
		case s[j] == '\\':
			j += 2
		case strings.HasPrefix(s[j:], "[:"):
			if k := strings.Index(s[j+2:], ":]"); k >= 0 {
				j += k + 4
			} else {
				j++
			}
		case s[j] == ']':
			return j + 1
		default:
			j++
		}
	}
	return len(s)
}
