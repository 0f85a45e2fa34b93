package analysis

import (
	"slices"

	"github.com/KromDaniel/redos/internal/nfa"
)

// maxWitnessCandidates bounds how many ambiguous cycles of one product
// component are checked before moving on.
const maxWitnessCandidates = 8

// detector holds the multigraph shared by the EDA and IDA searches.
type detector struct {
	m        *multigraph
	c        *canceller
	preserve bool
	log      Logger

	comps  [][]int
	compOf []int
}

func newDetector(m *multigraph, c *canceller, preserve bool, log Logger) *detector {
	comps, compOf := m.components()
	return &detector{m: m, c: c, preserve: preserve, log: log, comps: comps, compOf: compOf}
}

type pair struct{ a, b int }

// findEDA looks for a position p with two distinct paths from p back to p
// that read the same word. It returns nil when there is none.
func (d *detector) findEDA() (*Witness, error) {
	// Components come sinks first; search from the start side.
	for ci := len(d.comps) - 1; ci >= 0; ci-- {
		comp := d.comps[ci]
		if !d.m.cyclic(comp, d.compOf) {
			continue
		}
		w, err := d.edaInComponent(ci, comp)
		if err != nil || w != nil {
			return w, err
		}
	}
	return nil, nil
}

// pairEdges calls fn for every pair of edges leaving n whose labels overlap
// and whose targets stay in component ci. fn returns false to stop.
func (d *detector) pairEdges(ci int, n pair, fn func(e1, e2 *edge) bool) {
	for i := range d.m.out[n.a] {
		e1 := &d.m.out[n.a][i]
		if d.compOf[e1.to] != ci {
			continue
		}
		for j := range d.m.out[n.b] {
			e2 := &d.m.out[n.b][j]
			if d.compOf[e2.to] != ci || !e1.set.Overlaps(e2.set) {
				continue
			}
			if !fn(e1, e2) {
				return
			}
		}
	}
}

func (d *detector) edaInComponent(ci int, comp []int) (*Witness, error) {
	members := slices.Clone(comp)
	slices.Sort(members)
	roots := make([]pair, len(members))
	for i, p := range members {
		roots[i] = pair{p, p}
	}

	pcomps, err := nfa.StronglyConnected(roots, func(n pair) ([]pair, error) {
		if err := d.c.spend(1); err != nil {
			return nil, err
		}
		var next []pair
		d.pairEdges(ci, n, func(e1, e2 *edge) bool {
			next = append(next, pair{e1.to, e2.to})
			return true
		})
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	for _, pc := range pcomps {
		diag := -1
		in := make(map[pair]bool, len(pc))
		for _, n := range pc {
			in[n] = true
			if n.a == n.b && (diag < 0 || n.a < diag) {
				diag = n.a
			}
		}
		if diag < 0 {
			continue
		}

		tried := 0
		var found *Witness
		var ferr error
		for _, n := range pc {
			d.pairEdges(ci, n, func(e1, e2 *edge) bool {
				to := pair{e1.to, e2.to}
				if e1.id == e2.id || !in[to] {
					return true
				}
				tried++
				w := d.edaWitness(ci, diag, n, to, e1.set.Intersect(e2.set).Min(), in)
				ok, err := d.complete(w)
				if err != nil {
					ferr = err
					return false
				}
				if ok {
					found = w
					return false
				}
				return tried < maxWitnessCandidates
			})
			if ferr != nil {
				return nil, ferr
			}
			if found != nil {
				d.log.Log("Ambiguous cycle at position %d (state %d): pump %q", diag, d.m.state[diag], found.Pump)
				return found, nil
			}
			if tried >= maxWitnessCandidates {
				break
			}
		}
	}
	return nil, nil
}

// edaWitness builds the pump (p,p) ~> from -> to ~> (p,p) inside one
// product component.
func (d *detector) edaWitness(ci, p int, from, to pair, r rune, in map[pair]bool) *Witness {
	diag := pair{p, p}
	pump := d.pairPath(ci, diag, from, in)
	pump = append(pump, r)
	pump = append(pump, d.pairPath(ci, to, diag, in)...)
	return &Witness{Prefix: d.m.shortestPrefix(p), Pump: string(pump)}
}

// pairPath returns the word of a shortest product path from src to dst that
// stays inside in.
func (d *detector) pairPath(ci int, src, dst pair, in map[pair]bool) []rune {
	if src == dst {
		return nil
	}
	type step struct {
		prev pair
		r    rune
	}
	via := map[pair]step{src: {}}
	queue := []pair{src}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		d.pairEdges(ci, n, func(e1, e2 *edge) bool {
			to := pair{e1.to, e2.to}
			if _, ok := via[to]; ok || !in[to] {
				return true
			}
			via[to] = step{prev: n, r: e1.set.Intersect(e2.set).Min()}
			queue = append(queue, to)
			return to != dst
		})
		if _, ok := via[dst]; ok {
			break
		}
	}
	if _, ok := via[dst]; !ok {
		return nil
	}

	var word []rune
	for n := dst; n != src; n = via[n].prev {
		word = append(word, via[n].r)
	}
	slices.Reverse(word)
	return word
}
