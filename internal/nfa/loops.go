package nfa

// MarkLoops annotates the transitions of g with the loops they take part in.
// A transition whose target dominates its source closes a loop headed by the
// target and gets Back set; every transition into such a header gets Loop.
// It returns the number of closing transitions. Unreachable states are left
// unmarked.
func (g *Graph) MarkLoops() int {
	idom := g.dominators()
	headers := make([]bool, len(g.states))
	back := 0
	for u := range g.states {
		if idom[u] == NoState {
			continue
		}
		for j, t := range g.states[u].Out {
			if dominates(idom, t.To, StateID(u)) {
				g.states[u].Out[j].Back = true
				headers[t.To] = true
				back++
			}
		}
	}
	for u := range g.states {
		for j, t := range g.states[u].Out {
			if headers[t.To] {
				g.states[u].Out[j].Loop = int(t.To) + 1
			}
		}
	}
	return back
}

// dominators returns the immediate dominator of every state reachable from
// start, using the iterative algorithm of Cooper, Harvey and Kennedy. The
// start state is its own dominator; unreachable states map to NoState.
func (g *Graph) dominators() []StateID {
	n := len(g.states)
	idom := make([]StateID, n)
	for i := range idom {
		idom[i] = NoState
	}
	if g.start == NoState {
		return idom
	}

	post := g.postorder()
	rank := make([]int, n)
	for i := range rank {
		rank[i] = -1
	}
	for i, s := range post {
		rank[s] = i
	}
	preds := make([][]StateID, n)
	for u := range g.states {
		if rank[u] < 0 {
			continue
		}
		for _, t := range g.states[u].Out {
			preds[t.To] = append(preds[t.To], StateID(u))
		}
	}

	intersect := func(a, b StateID) StateID {
		for a != b {
			for rank[a] < rank[b] {
				a = idom[a]
			}
			for rank[b] < rank[a] {
				b = idom[b]
			}
		}
		return a
	}

	idom[g.start] = g.start
	for changed := true; changed; {
		changed = false
		for i := len(post) - 1; i >= 0; i-- {
			s := post[i]
			if s == g.start {
				continue
			}
			next := NoState
			for _, p := range preds[s] {
				if idom[p] == NoState {
					continue
				}
				if next == NoState {
					next = p
				} else {
					next = intersect(p, next)
				}
			}
			if next != NoState && idom[s] != next {
				idom[s] = next
				changed = true
			}
		}
	}
	return idom
}

// postorder lists the states reachable from start in depth-first postorder.
func (g *Graph) postorder() []StateID {
	type frame struct {
		state StateID
		next  int
	}
	seen := make([]bool, len(g.states))
	seen[g.start] = true
	stack := []frame{{state: g.start}}
	var post []StateID
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := g.states[top.state].Out
		if top.next >= len(out) {
			post = append(post, top.state)
			stack = stack[:len(stack)-1]
			continue
		}
		to := out[top.next].To
		top.next++
		if !seen[to] {
			seen[to] = true
			stack = append(stack, frame{state: to})
		}
	}
	return post
}

// dominates reports whether h dominates u under idom.
func dominates(idom []StateID, h, u StateID) bool {
	for {
		if u == h {
			return true
		}
		next := idom[u]
		if next == NoState || next == u {
			return false
		}
		u = next
	}
}
