package analysis

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/KromDaniel/redos/internal/nfa"
)

// maxSuffixSubsets bounds the subset search for a rejected suffix.
const maxSuffixSubsets = 4096

// Witness is an attack string family: Prefix + Pump*n + Suffix. Matching time
// grows exponentially (EDA) or polynomially (IDA) in n.
type Witness struct {
	Prefix string `json:"prefix"`
	Pump   string `json:"pump"`
	Suffix string `json:"suffix"`
}

// Exploit returns the attack string with the pump repeated n times.
func (w *Witness) Exploit(n int) string {
	if n < 0 {
		n = 0
	}
	return w.Prefix + strings.Repeat(w.Pump, n) + w.Suffix
}

func (w *Witness) String() string {
	return fmt.Sprintf("%q + %q*n + %q", w.Prefix, w.Pump, w.Suffix)
}

type suffixStatus int

const (
	suffixFound suffixStatus = iota
	// suffixNone: every continuation is accepted.
	suffixNone
	// suffixUnknown: the subset search ran out of budget.
	suffixUnknown
)

// alphabet returns one representative rune per class of characters the
// multigraph cannot tell apart. ok is false when every rune is on some edge.
func (m *multigraph) alphabet() (reps []rune, outside rune, ok bool) {
	var sets []nfa.CharSet
	var union nfa.CharSet
	for _, out := range m.out {
		for _, e := range out {
			sets = append(sets, e.set)
			union = union.Union(e.set)
		}
	}
	for _, atom := range nfa.Partition(sets) {
		reps = append(reps, atom.Lo)
	}
	if rest := union.Complement(); !rest.IsEmpty() {
		return reps, rest.Min(), true
	}
	return reps, 0, false
}

// step returns the sorted set of positions reached from set on r.
func (m *multigraph) step(set []int, r rune) []int {
	var next []int
	for _, p := range set {
		for _, e := range m.out[p] {
			if e.set.Contains(r) {
				next = append(next, e.to)
			}
		}
	}
	slices.Sort(next)
	return slices.Compact(next)
}

// run feeds input to the subset automaton starting at set.
func (m *multigraph) run(set []int, input string) []int {
	for _, r := range input {
		set = m.step(set, r)
	}
	return set
}

func (m *multigraph) accepting(set []int) bool {
	for _, p := range set {
		if m.accept[p] {
			return true
		}
	}
	return false
}

func subsetKey(set []int) string {
	var b strings.Builder
	for _, p := range set {
		b.WriteString(strconv.Itoa(p))
		b.WriteByte(',')
	}
	return b.String()
}

// rejectingSuffix searches breadth-first for a shortest input that leads the
// subset automaton from set to a non-accepting subset. A rune no edge
// consumes is preferred: it rejects however often the pump is repeated.
func (m *multigraph) rejectingSuffix(c *canceller, set []int) (string, suffixStatus, error) {
	reps, outside, ok := m.alphabet()
	if ok {
		return string(outside), suffixFound, nil
	}
	if !m.accepting(set) {
		return "", suffixFound, nil
	}

	type node struct {
		set    []int
		parent int
		r      rune
	}
	nodes := []node{{set: set, parent: -1}}
	seen := map[string]bool{subsetKey(set): true}
	for i := 0; i < len(nodes); i++ {
		if err := c.check(); err != nil {
			return "", suffixUnknown, err
		}
		for _, r := range reps {
			next := m.step(nodes[i].set, r)
			if !m.accepting(next) {
				runes := []rune{r}
				for j := i; nodes[j].parent >= 0; j = nodes[j].parent {
					runes = append(runes, nodes[j].r)
				}
				slices.Reverse(runes)
				return string(runes), suffixFound, nil
			}
			key := subsetKey(next)
			if seen[key] {
				continue
			}
			if len(nodes) >= maxSuffixSubsets {
				return "", suffixUnknown, nil
			}
			seen[key] = true
			nodes = append(nodes, node{set: next, parent: i, r: r})
		}
	}
	return "", suffixNone, nil
}

// complete fills in the suffix of a witness whose prefix and pump are set.
// It reports false when priorities are preserved and no suffix can make the
// match fail: a backtracking matcher then succeeds on its first path and
// never explores the ambiguity.
func (d *detector) complete(w *Witness) (bool, error) {
	pumped := d.m.run([]int{d.m.start}, w.Prefix+w.Pump)
	suffix, status, err := d.m.rejectingSuffix(d.c, pumped)
	if err != nil {
		return false, err
	}
	switch status {
	case suffixFound:
		w.Suffix = suffix
	case suffixNone:
		if d.preserve {
			d.log.Log("Discarding pump %q: every continuation matches", w.Pump)
			return false, nil
		}
	case suffixUnknown:
		d.log.Log("Suffix search for pump %q exceeded %d subsets", w.Pump, maxSuffixSubsets)
	}
	return true, nil
}
