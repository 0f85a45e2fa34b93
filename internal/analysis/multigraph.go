package analysis

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/KromDaniel/redos/internal/nfa"
)

// maxPathMultiplicity caps how many distinct epsilon paths are kept between a
// position and one consuming transition. Two are enough to witness ambiguity.
const maxPathMultiplicity = 2

// edge is one consuming step of the multigraph. Parallel edges are distinct
// values with distinct ids.
type edge struct {
	id   int
	from int
	to   int
	set  nfa.CharSet
	rank int
}

// multigraph is the epsilon-free view of a loop-free graph. Its nodes are
// positions: the start state and every target of a character transition.
// Each distinct epsilon path from a position to a character transition
// becomes its own edge.
type multigraph struct {
	state  []nfa.StateID
	accept []bool
	out    [][]edge
	start  int
	edges  int
}

// buildMultigraph computes the multigraph of g, which must have no epsilon
// cycle, and trims it to positions that are reachable and can still accept.
func buildMultigraph(c *canceller, g *nfa.Graph) (*multigraph, error) {
	m := &multigraph{}
	posOf := make(map[nfa.StateID]int)
	position := func(s nfa.StateID) int {
		if p, ok := posOf[s]; ok {
			return p
		}
		p := len(m.state)
		posOf[s] = p
		m.state = append(m.state, s)
		m.accept = append(m.accept, false)
		m.out = append(m.out, nil)
		return p
	}

	m.start = position(g.Start())
	for p := 0; p < len(m.state); p++ {
		if err := c.check(); err != nil {
			return nil, err
		}

		order, count, err := epsilonPaths(g, m.state[p])
		if err != nil {
			return nil, err
		}
		rank := 0
		for _, s := range order {
			if count[s] == 0 {
				continue
			}
			if g.IsAccept(s) {
				m.accept[p] = true
			}
			for _, t := range g.Out(s) {
				if t.Epsilon {
					continue
				}
				to := position(t.To)
				for k := 0; k < count[s]; k++ {
					m.out[p] = append(m.out[p], edge{id: m.edges, from: p, to: to, set: t.Set, rank: rank})
					m.edges++
					rank++
				}
			}
		}
	}

	return m.trim(), nil
}

// epsilonPaths explores the epsilon closure of from in priority order. It
// returns the closure in discovery order and, per state, the number of
// distinct epsilon paths reaching it, capped at maxPathMultiplicity. On a
// prioritised graph a path that repeats a loop iteration without consuming
// input is not counted, and a state only such paths reach counts zero.
func epsilonPaths(g *nfa.Graph, from nfa.StateID) ([]nfa.StateID, map[nfa.StateID]int, error) {
	type frame struct {
		state nfa.StateID
		next  int
	}

	var order, post []nfa.StateID
	visited := map[nfa.StateID]bool{from: true}
	onStack := map[nfa.StateID]bool{from: true}
	stack := []frame{{state: from}}
	order = append(order, from)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := g.Out(top.state)
		if top.next >= len(out) {
			post = append(post, top.state)
			onStack[top.state] = false
			stack = stack[:len(stack)-1]
			continue
		}
		t := out[top.next]
		top.next++
		if !t.Epsilon {
			continue
		}
		if onStack[t.To] {
			return nil, nil, fmt.Errorf("%w: epsilon cycle through state %d", nfa.ErrMalformedGraph, t.To)
		}
		if !visited[t.To] {
			visited[t.To] = true
			onStack[t.To] = true
			order = append(order, t.To)
			stack = append(stack, frame{state: t.To})
		}
	}

	if g.Prioritised() {
		return order, nonEmptyIterations(g, from, post), nil
	}

	// Reverse postorder is a topological order of the closure.
	count := map[nfa.StateID]int{from: 1}
	for i := len(post) - 1; i >= 0; i-- {
		s := post[i]
		for _, t := range g.Out(s) {
			if t.Epsilon {
				count[t.To] = min(maxPathMultiplicity, count[t.To]+count[s])
			}
		}
	}
	return order, count, nil
}

// maxLoopSets caps the distinct sets of entered loops tracked per state.
// Beyond it paths are merged into the empty set, which only forgets
// constraints.
const maxLoopSets = 16

// nonEmptyIterations counts epsilon paths from from like epsilonPaths, but
// drops a path that closes a loop it entered earlier on the same walk. Such a
// path has run a whole iteration on no input, and a backtracking matcher
// stops the loop there instead of trying another iteration. post must be the
// closure in postorder.
func nonEmptyIterations(g *nfa.Graph, from nfa.StateID, post []nfa.StateID) map[nfa.StateID]int {
	paths := map[nfa.StateID]map[string]int{from: {"": 1}}
	count := make(map[nfa.StateID]int)
	for i := len(post) - 1; i >= 0; i-- {
		s := post[i]
		for entered, n := range paths[s] {
			count[s] = min(maxPathMultiplicity, count[s]+n)
			for _, t := range g.Out(s) {
				if !t.Epsilon {
					continue
				}
				next := entered
				if t.Loop != 0 {
					if t.Back && hasLoop(entered, t.Loop) {
						continue
					}
					next = withLoop(entered, t.Loop)
				}
				dst := paths[t.To]
				if dst == nil {
					dst = make(map[string]int)
					paths[t.To] = dst
				}
				if _, ok := dst[next]; !ok && len(dst) >= maxLoopSets {
					next = ""
				}
				dst[next] = min(maxPathMultiplicity, dst[next]+n)
			}
		}
	}
	return count
}

// hasLoop reports whether the loop set contains loop.
func hasLoop(set string, loop int) bool {
	return slices.Contains(strings.Split(set, ","), strconv.Itoa(loop))
}

// withLoop returns the loop set with loop added. Sets are sorted, comma
// separated IDs so equal sets compare equal.
func withLoop(set string, loop int) string {
	if hasLoop(set, loop) {
		return set
	}
	ids := []string{strconv.Itoa(loop)}
	if set != "" {
		ids = append(ids, strings.Split(set, ",")...)
	}
	slices.Sort(ids)
	return strings.Join(ids, ",")
}

// trim keeps the positions reachable from start that can reach an accepting
// position, renumbering them and their edges.
func (m *multigraph) trim() *multigraph {
	n := len(m.state)
	reach := make([]bool, n)
	reach[m.start] = true
	queue := []int{m.start}
	preds := make([][]int, n)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, e := range m.out[p] {
			preds[e.to] = append(preds[e.to], p)
			if !reach[e.to] {
				reach[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}

	co := make([]bool, n)
	for p := range m.accept {
		if m.accept[p] && reach[p] {
			co[p] = true
			queue = append(queue, p)
		}
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, q := range preds[p] {
			if !co[q] {
				co[q] = true
				queue = append(queue, q)
			}
		}
	}

	remap := make([]int, n)
	out := &multigraph{}
	for p := 0; p < n; p++ {
		remap[p] = -1
		if (reach[p] && co[p]) || p == m.start {
			remap[p] = len(out.state)
			out.state = append(out.state, m.state[p])
			out.accept = append(out.accept, m.accept[p])
			out.out = append(out.out, nil)
		}
	}
	for p := 0; p < n; p++ {
		if remap[p] < 0 {
			continue
		}
		for _, e := range m.out[p] {
			if remap[e.to] < 0 || !co[e.to] {
				continue
			}
			e.id = out.edges
			e.from, e.to = remap[p], remap[e.to]
			out.out[e.from] = append(out.out[e.from], e)
			out.edges++
		}
	}
	out.start = remap[m.start]
	return out
}

// successors returns the targets of the edges leaving p.
func (m *multigraph) successors(p int) []int {
	next := make([]int, 0, len(m.out[p]))
	for _, e := range m.out[p] {
		next = append(next, e.to)
	}
	return next
}

// components returns the strongly connected components of the multigraph in
// reverse topological order, with the component index of every position.
func (m *multigraph) components() ([][]int, []int) {
	roots := make([]int, len(m.state))
	for i := range roots {
		roots[i] = i
	}
	comps, _ := nfa.StronglyConnected(roots, func(p int) ([]int, error) {
		return m.successors(p), nil
	})
	compOf := make([]int, len(m.state))
	for i, comp := range comps {
		for _, p := range comp {
			compOf[p] = i
		}
	}
	return comps, compOf
}

// cyclic reports whether the component has an internal edge.
func (m *multigraph) cyclic(comp []int, compOf []int) bool {
	for _, p := range comp {
		for _, e := range m.out[p] {
			if compOf[e.to] == compOf[p] {
				return true
			}
		}
	}
	return false
}

// shortestPrefix returns a shortest input leading from start to position p.
func (m *multigraph) shortestPrefix(p int) string {
	if p == m.start {
		return ""
	}
	via := make([]*edge, len(m.state))
	seen := make([]bool, len(m.state))
	seen[m.start] = true
	queue := []int{m.start}
	for len(queue) > 0 && !seen[p] {
		q := queue[0]
		queue = queue[1:]
		for i := range m.out[q] {
			e := &m.out[q][i]
			if !seen[e.to] {
				seen[e.to] = true
				via[e.to] = e
				queue = append(queue, e.to)
			}
		}
	}

	var runes []rune
	for q := p; q != m.start && via[q] != nil; q = via[q].from {
		runes = append(runes, via[q].set.Min())
	}
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
