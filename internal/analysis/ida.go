package analysis

import (
	"context"
	"errors"
	"slices"
)

// bitset is a fixed-size set of small non-negative integers.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int)      { b[i/64] |= 1 << (i % 64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<(i%64)) != 0 }

func (b bitset) or(o bitset) {
	for i := range b {
		b[i] |= o[i]
	}
}

type triple struct{ x, y, z int }

// idaResult is the outcome of the polynomial search.
type idaResult struct {
	witness *Witness
	degree  int
	partial bool
}

// findIDA looks for positions p and q in different cyclic components with a
// word v such that p reads v back to p, p reads v to q and q reads v back to
// q. The degree is the length of the longest chain of components linked that
// way. It returns nil when there is no such pair.
func (d *detector) findIDA() (*idaResult, error) {
	n := len(d.comps)
	cyclic := make([]bool, n)
	for ci, comp := range d.comps {
		cyclic[ci] = d.m.cyclic(comp, d.compOf)
	}

	// reach[ci] holds every component reachable from ci, ci included.
	// Successor components always have a smaller index.
	reach := make([]bitset, n)
	for ci, comp := range d.comps {
		reach[ci] = newBitset(n)
		reach[ci].set(ci)
		for _, p := range comp {
			for _, e := range d.m.out[p] {
				if cj := d.compOf[e.to]; cj != ci {
					reach[ci].or(reach[cj])
				}
			}
		}
	}

	links := make([][]int, n)
	var res *idaResult
	exhausted := false

search:
	for a := n - 1; a >= 0; a-- {
		if !cyclic[a] {
			continue
		}
		for b := a - 1; b >= 0; b-- {
			if !cyclic[b] || !reach[a].has(b) {
				continue
			}
			w, err := d.linkComponents(a, b, reach)
			if res != nil && stopsEarly(err) {
				d.log.Log("Degree search stopped early: %v", err)
				exhausted = true
				break search
			}
			if err != nil {
				return nil, err
			}
			if w == nil {
				continue
			}
			links[a] = append(links[a], b)
			if res == nil {
				res = &idaResult{witness: w}
			}
		}
	}
	if res == nil {
		return nil, nil
	}

	longest := make([]int, n)
	for ci := 0; ci < n; ci++ {
		longest[ci] = 1
		for _, b := range links[ci] {
			longest[ci] = max(longest[ci], longest[b]+1)
		}
		res.degree = max(res.degree, longest[ci])
	}
	res.partial = exhausted
	return res, nil
}

// stopsEarly reports whether err ends the degree search without voiding the
// pairs found so far.
func stopsEarly(err error) bool {
	return errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// linkComponents searches every candidate pair p in a, q in b.
func (d *detector) linkComponents(a, b int, reach []bitset) (*Witness, error) {
	ps := slices.Clone(d.comps[a])
	qs := slices.Clone(d.comps[b])
	slices.Sort(ps)
	slices.Sort(qs)
	for _, p := range ps {
		for _, q := range qs {
			word, err := d.tripleWord(p, q, a, b, reach)
			if err != nil {
				return nil, err
			}
			if word == nil {
				continue
			}
			w := &Witness{Prefix: d.m.shortestPrefix(p), Pump: string(word)}
			ok, err := d.complete(w)
			if err != nil {
				return nil, err
			}
			if ok {
				d.log.Log("Polynomial pair: positions %d and %d, pump %q", p, q, w.Pump)
				return w, nil
			}
		}
	}
	return nil, nil
}

// tripleWord runs a breadth-first search from (p,p,q) to (p,q,q) in the
// triple product and returns the word read, or nil if none exists. The first
// track stays in a, the third in b, the second in components between them.
func (d *detector) tripleWord(p, q, a, b int, reach []bitset) ([]rune, error) {
	type step struct {
		prev triple
		r    rune
	}
	src, dst := triple{p, p, q}, triple{p, q, q}
	via := map[triple]step{src: {}}
	queue := []triple{src}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if err := d.c.spend(1); err != nil {
			return nil, err
		}
		for _, e1 := range d.m.out[n.x] {
			if d.compOf[e1.to] != a {
				continue
			}
			for _, e2 := range d.m.out[n.y] {
				if !reach[d.compOf[e2.to]].has(b) {
					continue
				}
				s12 := e1.set.Intersect(e2.set)
				if s12.IsEmpty() {
					continue
				}
				for _, e3 := range d.m.out[n.z] {
					if d.compOf[e3.to] != b {
						continue
					}
					label := s12.Intersect(e3.set)
					if label.IsEmpty() {
						continue
					}
					to := triple{e1.to, e2.to, e3.to}
					if _, ok := via[to]; ok {
						continue
					}
					via[to] = step{prev: n, r: label.Min()}
					if to == dst {
						var word []rune
						for t := dst; t != src; t = via[t].prev {
							word = append(word, via[t].r)
						}
						slices.Reverse(word)
						return word, nil
					}
					queue = append(queue, to)
				}
			}
		}
	}
	return nil, nil
}
