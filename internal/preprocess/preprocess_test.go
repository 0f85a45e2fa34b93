package preprocess

import (
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"none", TypeNone, false},
		{"", TypeNone, false},
		{"Precise", TypePrecise, false},
		{"NONPRECISE", TypeNonprecise, false},
		{"non-precise", TypeNonprecise, false},
		{"fuzzy", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Type {
	t.Helper()
	typ, err := ParseType(s)
	require.NoError(t, err)
	return typ
}

func TestNoneIsIdentity(t *testing.T) {
	for _, p := range []string{`a\Z`, `(?>x)`, `(a)\1`, ``} {
		out, err := ForType(TypeNone).ApplyRules(p)
		require.NoError(t, err)
		assert.Equal(t, p, out)
	}
}

func TestPreciseRules(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"end before newline", `a\Z`, `a(?:\n?\z)`},
		{"escaped backslash untouched", `a\\Z`, `a\\Z`},
		{"odd backslash run", `\\\Z`, `\\(?:\n?\z)`},
		{"escape char", `\e\[0m`, `\x1B\[0m`},
		{"control upper", `\cA`, `\x01`},
		{"control lower", `\cj`, `\x0A`},
		{"hspace", `a\h+b`, `a[` + horizontalSpace + `]+b`},
		{"hspace in class", `[a\h]`, `[a` + horizontalSpace + `]`},
		{"non hspace", `\H`, `[^` + horizontalSpace + `]`},
		{"linebreak", `x\Ry`, `x` + lineBreak + `y`},
		{"posix outside", `\p{Alpha}+`, `[[:alpha:]]+`},
		{"posix negated", `\P{Lower}`, `[[:^lower:]]`},
		{"posix in class", `[\p{Digit}x]`, `[[:digit:]x]`},
		{"xdigit", `\p{XDigit}`, `[[:xdigit:]]`},
		{"unicode is prefix", `\p{IsGreek}`, `\p{Greek}`},
		{"quoted group name", `(?'year'\d{4})`, `(?P<year>\d{4})`},
		{"plain pattern", `^(a+)+$`, `^(a+)+$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ForType(TypePrecise).ApplyRules(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)

			_, err = syntax.Parse(out, syntax.Perl)
			assert.NoError(t, err, "rewritten pattern %q must parse", out)
		})
	}
}

func TestNonpreciseRules(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"atomic group", `(?>a+)b`, `(?:a+)b`},
		{"possessive plus", `a++b`, `a+b`},
		{"possessive star", `x*+`, `x*`},
		{"possessive quest", `x?+y`, `x?y`},
		{"possessive counted", `a{2,3}+`, `a{2,3}`},
		{"plus inside class", `[++]x`, `[++]x`},
		{"escaped plus", `\++`, `\++`},
		{"numbered backref", `(a+)\1`, `(a+)(?:a+)`},
		{"named backref", `(?<w>\w+) \k<w>`, `(?<w>\w+) (?:\w+)`},
		{"nested backrefs", `(a(b))\2\1`, `(a(b))(?:b)(?:a(?:b))`},
		{"missing group", `(x)\9`, `(x)` + unresolvedBackref},
		{"lookahead", `foo(?=bar)`, `foo`},
		{"lookarounds", `(?<!x)y(?!z)`, `y`},
		{"lookahead with group", `a(?=(b))c`, `ac`},
		{"last match anchor", `\Gabc`, `abc`},
		{"precise rules still apply", `\h(?>x)`, `[` + horizontalSpace + `](?:x)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ForType(TypeNonprecise).ApplyRules(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)

			_, err = syntax.Parse(out, syntax.Perl)
			assert.NoError(t, err, "rewritten pattern %q must parse", out)
		})
	}
}

func TestSelfReferenceIsBounded(t *testing.T) {
	out, err := ForType(TypeNonprecise).ApplyRules(`(a\1)`)
	require.NoError(t, err)
	assert.Contains(t, out, unresolvedBackref)
	assert.NotContains(t, out, `\1`)
}

func TestNonpreciseUnbalanced(t *testing.T) {
	_, err := ForType(TypeNonprecise).ApplyRules(`(a(?=b)`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreprocess)
}

func TestScanGroups(t *testing.T) {
	groups, err := scanGroups(`(a)(?:b)(?P<n>c)[(]\((?=d)`)
	require.NoError(t, err)
	require.Len(t, groups, 4)

	assert.Equal(t, groupCapture, groups[0].kind)
	assert.Equal(t, 1, groups[0].number)
	assert.Equal(t, groupPlain, groups[1].kind)
	assert.Equal(t, 2, groups[2].number)
	assert.Equal(t, "n", groups[2].name)
	assert.Equal(t, groupLookaround, groups[3].kind)
}
