package nfa

import (
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCharSetNormalizes(t *testing.T) {
	tests := []struct {
		name  string
		pairs []rune
		want  CharSet
	}{
		{"empty", nil, nil},
		{"single", []rune{'a', 'a'}, CharSet{{'a', 'a'}}},
		{"unsorted", []rune{'x', 'z', 'a', 'c'}, CharSet{{'a', 'c'}, {'x', 'z'}}},
		{"overlapping", []rune{'a', 'm', 'f', 'z'}, CharSet{{'a', 'z'}}},
		{"adjacent", []rune{'a', 'c', 'd', 'f'}, CharSet{{'a', 'f'}}},
		{"inverted dropped", []rune{'z', 'a'}, CharSet{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCharSet(tt.pairs...)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestCharSetOperations(t *testing.T) {
	lower := NewCharSet('a', 'z')
	digits := NewCharSet('0', '9')
	alnum := NewCharSet('0', '9', 'a', 'z')

	assert.True(t, lower.Contains('q'))
	assert.False(t, lower.Contains('Q'))
	assert.False(t, lower.Overlaps(digits))
	assert.True(t, lower.Overlaps(alnum))
	assert.True(t, lower.Intersect(digits).IsEmpty())
	assert.True(t, alnum.Intersect(lower).Equal(lower))
	assert.True(t, lower.Union(digits).Equal(alnum))
	assert.Equal(t, 'a', lower.Min())
	assert.Equal(t, '0', alnum.Min())

	comp := lower.Complement()
	assert.False(t, comp.Contains('m'))
	assert.True(t, comp.Contains('A'))
	assert.True(t, comp.Contains(unicode.MaxRune))
	assert.True(t, comp.Complement().Equal(lower))
	assert.True(t, CharSet(nil).Complement().IsFull())
}

func TestCharSetFoldCase(t *testing.T) {
	folded := Single('k').FoldCase()
	assert.True(t, folded.Contains('k'))
	assert.True(t, folded.Contains('K'))
	assert.True(t, folded.Contains('\u212A'), "Kelvin sign folds to k")

	digits := NewCharSet('0', '9')
	assert.True(t, digits.FoldCase().Equal(digits))
}

func TestCharSetString(t *testing.T) {
	tests := []struct {
		set  CharSet
		want string
	}{
		{NewCharSet('0', '9'), `\d`},
		{NewCharSet('0', '9', 'A', 'Z', '_', '_', 'a', 'z'), `\w`},
		{NewCharSet('a', 'z'), "[a-z]"},
		{NewCharSet('A', 'Z', 'a', 'z'), "[a-zA-Z]"},
		{Single('.'), `\.`},
		{Single('x'), "x"},
		{AnyCharNotNL(), "."},
		{NewCharSet('a', 'b', 'x', 'x'), "[abx]"},
		{NewCharSet('-', '-', 'a', 'c'), `[\-a-c]`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.set.String())
		})
	}
}

func TestPartition(t *testing.T) {
	sets := []CharSet{NewCharSet('a', 'z'), NewCharSet('m', 'p'), Single('0')}
	atoms := Partition(sets)
	require.NotEmpty(t, atoms)

	want := []Range{{'0', '0'}, {'a', 'l'}, {'m', 'p'}, {'q', 'z'}}
	assert.Equal(t, want, atoms)

	for _, atom := range atoms {
		for _, s := range sets {
			assert.Equal(t, s.Contains(atom.Lo), s.Contains(atom.Hi),
				"atom %v must lie fully inside or outside %v", atom, s)
		}
	}
}
