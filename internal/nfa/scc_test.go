package nfa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStronglyConnected(t *testing.T) {
	// 0 -> 1 -> 2 -> 0, 2 -> 3, 3 -> 4 -> 3, 5 isolated
	adj := map[int][]int{
		0: {1},
		1: {2},
		2: {0, 3},
		3: {4},
		4: {3},
	}
	succ := func(n int) ([]int, error) { return adj[n], nil }

	comps, err := StronglyConnected([]int{0, 5}, succ)
	require.NoError(t, err)
	require.Len(t, comps, 3)

	// Reverse topological order: {3,4} is finished before {0,1,2}.
	assert.ElementsMatch(t, []int{3, 4}, comps[0])
	assert.ElementsMatch(t, []int{0, 1, 2}, comps[1])
	assert.Equal(t, []int{5}, comps[2])

	idx := ComponentIndex(comps)
	assert.Equal(t, idx[0], idx[2])
	assert.NotEqual(t, idx[0], idx[3])
}

func TestStronglyConnectedDeepChain(t *testing.T) {
	const n = 200000
	succ := func(i int) ([]int, error) {
		if i+1 < n {
			return []int{i + 1}, nil
		}
		return []int{0}, nil
	}

	comps, err := StronglyConnected([]int{0}, succ)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Len(t, comps[0], n)
}

func TestStronglyConnectedAbort(t *testing.T) {
	errStop := errors.New("stop")
	calls := 0
	succ := func(i int) ([]int, error) {
		calls++
		if calls > 3 {
			return nil, errStop
		}
		return []int{i + 1}, nil
	}

	_, err := StronglyConnected([]int{0}, succ)
	assert.ErrorIs(t, err, errStop)
}
