package nfa

// StronglyConnected computes the strongly connected components of the graph
// reachable from roots, using Tarjan's algorithm with an explicit call stack so
// deep graphs cannot overflow the goroutine stack.
//
// succ returns the successors of a node; a non-nil error aborts the search and
// is returned unchanged, which lets callers poll for cancellation or enforce a
// node budget from inside the traversal. Components are returned in reverse
// topological order: a component appears before every component that reaches it.
func StronglyConnected[K comparable](roots []K, succ func(K) ([]K, error)) ([][]K, error) {
	type callFrame struct {
		node  K
		edges []K
		next  int
		child K
		// phase: 0=enter, 1=scan edges, 2=after child, 3=finish
		phase int
	}

	index := make(map[K]int)
	lowLink := make(map[K]int)
	onStack := make(map[K]bool)
	var stack []K
	var comps [][]K
	counter := 0

	for _, root := range roots {
		if _, seen := index[root]; seen {
			continue
		}
		callStack := []callFrame{{node: root}}

		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]

			switch frame.phase {
			case 0:
				index[frame.node] = counter
				lowLink[frame.node] = counter
				counter++
				stack = append(stack, frame.node)
				onStack[frame.node] = true

				edges, err := succ(frame.node)
				if err != nil {
					return nil, err
				}
				frame.edges = edges
				frame.phase = 1

			case 1:
				pushed := false
				for frame.next < len(frame.edges) {
					to := frame.edges[frame.next]
					frame.next++

					if _, seen := index[to]; !seen {
						frame.phase = 2
						frame.child = to
						callStack = append(callStack, callFrame{node: to})
						pushed = true
						break
					}
					if onStack[to] && index[to] < lowLink[frame.node] {
						lowLink[frame.node] = index[to]
					}
				}
				if !pushed {
					frame.phase = 3
				}

			case 2:
				if lowLink[frame.child] < lowLink[frame.node] {
					lowLink[frame.node] = lowLink[frame.child]
				}
				frame.phase = 1

			case 3:
				if lowLink[frame.node] == index[frame.node] {
					var comp []K
					for {
						w := stack[len(stack)-1]
						stack = stack[:len(stack)-1]
						onStack[w] = false
						comp = append(comp, w)
						if w == frame.node {
							break
						}
					}
					comps = append(comps, comp)
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	return comps, nil
}

// ComponentIndex maps every node to the position of its component in comps.
func ComponentIndex[K comparable](comps [][]K) map[K]int {
	compOf := make(map[K]int)
	for i, comp := range comps {
		for _, n := range comp {
			compOf[n] = i
		}
	}
	return compOf
}
