package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// maxInlineDepth bounds how many times backreferences inside inlined group
// bodies are expanded again.
const maxInlineDepth = 4

// unresolvedBackref replaces a backreference that cannot be inlined. It
// matches any text, so the rewrite never narrows the language.
const unresolvedBackref = `(?s:.*)`

type groupKind int

const (
	groupPlain groupKind = iota // (?:...), (?i) and friends
	groupCapture
	groupLookaround
	groupAtomic
)

// group is one parenthesised construct of a pattern. Offsets are byte indexes.
type group struct {
	open, close int // '(' and ')'
	body        int // first byte after the group header
	kind        groupKind
	number      int // capture number, 0 when not capturing
	name        string
}

// scanGroups lists the groups of a pattern in order of their opening
// parenthesis. It understands escapes, \Q...\E quoting and bracket classes.
func scanGroups(p string) ([]group, error) {
	var (
		groups     []group
		stack      []int
		classDepth int
		captures   int
	)

	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\':
			if i+1 < len(p) && p[i+1] == 'Q' {
				end := strings.Index(p[i+2:], `\E`)
				if end < 0 {
					return groups, nil
				}
				i += 2 + end + 1
				continue
			}
			i++

		case classDepth > 0:
			switch {
			case c == '[' && strings.HasPrefix(p[i:], "[:"):
				if end := strings.Index(p[i:], ":]"); end > 0 {
					i += end + 1
				}
			case c == '[':
				classDepth++
			case c == ']':
				classDepth--
			}

		case c == '[':
			classDepth = 1
			if i+1 < len(p) && p[i+1] == '^' {
				i++
			}
			if i+1 < len(p) && p[i+1] == ']' {
				i++
			}

		case c == '(':
			g := group{open: i, close: -1, body: i + 1}
			rest := p[i+1:]
			switch {
			case !strings.HasPrefix(rest, "?"):
				captures++
				g.kind, g.number = groupCapture, captures
			case strings.HasPrefix(rest, "?=") || strings.HasPrefix(rest, "?!"):
				g.kind, g.body = groupLookaround, i+3
			case strings.HasPrefix(rest, "?<=") || strings.HasPrefix(rest, "?<!"):
				g.kind, g.body = groupLookaround, i+4
			case strings.HasPrefix(rest, "?>"):
				g.kind, g.body = groupAtomic, i+3
			case strings.HasPrefix(rest, "?<") || strings.HasPrefix(rest, "?P<") || strings.HasPrefix(rest, "?'"):
				start := strings.IndexAny(rest, "<'") + 1
				end := strings.IndexAny(rest[start:], ">'")
				if end < 0 {
					return nil, fmt.Errorf("%w: unterminated group name at offset %d", ErrPreprocess, i)
				}
				captures++
				g.kind, g.number = groupCapture, captures
				g.name = rest[start : start+end]
				g.body = i + 1 + start + end + 1
			default:
				if colon := strings.IndexAny(rest, ":)"); colon >= 0 {
					g.body = i + 1 + colon + 1
				}
			}
			stack = append(stack, len(groups))
			groups = append(groups, g)

		case c == ')':
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' at offset %d", ErrPreprocess, i)
			}
			groups[stack[len(stack)-1]].close = i
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: unbalanced '(' at offset %d", ErrPreprocess, groups[stack[len(stack)-1]].open)
	}
	return groups, nil
}

// inlineBackreferences replaces \N and \k<name> with a non-capturing copy of
// the referenced group. References inside the copies are expanded again up
// to maxInlineDepth times; whatever remains matches any text.
func inlineBackreferences(pattern string, ref *regexp2.Regexp) (string, error) {
	for depth := 0; ; depth++ {
		found, err := ref.MatchString(pattern)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPreprocess, err)
		}
		if !found {
			return pattern, nil
		}

		groups, err := scanGroups(pattern)
		if err != nil {
			return "", err
		}
		byNumber := make(map[int]group)
		byName := make(map[string]group)
		for _, g := range groups {
			if g.kind == groupCapture {
				byNumber[g.number] = g
				if g.name != "" {
					byName[g.name] = g
				}
			}
		}

		src := pattern
		exhausted := depth >= maxInlineDepth
		pattern, err = ref.ReplaceFunc(src, func(m regexp2.Match) string {
			run := m.GroupByNumber(1).String()
			if exhausted {
				return run + unresolvedBackref
			}

			var (
				g  group
				ok bool
			)
			if num := m.GroupByNumber(2).String(); num != "" {
				n, _ := strconv.Atoi(num)
				g, ok = byNumber[n]
			} else {
				g, ok = byName[m.GroupByNumber(3).String()]
			}
			if !ok {
				return run + unresolvedBackref
			}
			return run + "(?:" + uncapture(src[g.body:g.close]) + ")"
		}, -1, -1)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPreprocess, err)
		}
	}
}

// uncapture turns every capturing group of a fragment into a non-capturing
// one, so copies never shift the numbering of later groups.
func uncapture(fragment string) string {
	groups, err := scanGroups(fragment)
	if err != nil {
		return fragment
	}

	var b strings.Builder
	last := 0
	for _, g := range groups {
		if g.kind != groupCapture {
			continue
		}
		b.WriteString(fragment[last:g.open])
		b.WriteString("(?:")
		last = g.body
	}
	b.WriteString(fragment[last:])
	return b.String()
}

// removeLookarounds deletes every lookahead and lookbehind. Dropping an
// assertion can only let more strings match.
func removeLookarounds(pattern string) (string, error) {
	groups, err := scanGroups(pattern)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	last := 0
	for _, g := range groups {
		if g.kind != groupLookaround || g.open < last {
			continue
		}
		b.WriteString(pattern[last:g.open])
		last = g.close + 1
	}
	b.WriteString(pattern[last:])
	return b.String(), nil
}
