package codegen

import (
	"bytes"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

func TestLowerFirst(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"A", "a"},
		{"ABC", "aBC"},
		{"Hello", "hello"},
		{"hello", "hello"},
		{"X", "x"},
	}

	for _, tt := range tests {
		got := LowerFirst(tt.input)
		if got != tt.want {
			t.Errorf("LowerFirst(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestUpperFirst(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"a", "A"},
		{"abc", "Abc"},
		{"hello", "Hello"},
		{"Hello", "Hello"},
		{"x", "X"},
	}

	for _, tt := range tests {
		got := UpperFirst(tt.input)
		if got != tt.want {
			t.Errorf("UpperFirst(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"email", 0, "Email"},
		{"user email", 0, "UserEmail"},
		{"ipv4-address", 0, "Ipv4Address"},
		{"", 3, "Pattern3"},
		{"  --  ", 1, "Pattern1"},
		{"2fa code", 0, "Pattern2faCode"},
		{"héllo", 0, "HLlo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identifier(tt.name, tt.index); got != tt.want {
				t.Errorf("Identifier(%q, %d) = %q, want %q", tt.name, tt.index, got, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	entries := []Entry{
		{Name: "word", Pattern: `^[a-z]+$`, Verdict: "NO_IDA"},
		{Name: "word", Pattern: `^[A-Z]+$`},
		{Pattern: `x`},
		{Name: "patterns", Pattern: `y`},
	}

	f, err := Generate(Options{Package: "vetted", Source: "redos.yaml"}, entries)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, f); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	src := buf.String()
	// gofmt aligns the var block; compare with runs of spaces collapsed.
	compact := strings.Join(strings.Fields(src), " ")

	for _, want := range []string{
		"// Code generated by redos gen. DO NOT EDIT.",
		"// Source: redos.yaml",
		"package vetted",
		`Word = regexp.MustCompile("^[a-z]+$")`,
		`Word2 = regexp.MustCompile("^[A-Z]+$")`,
		`Pattern2 = regexp.MustCompile("x")`,
		`PatternPatterns = regexp.MustCompile("y")`,
		"// Backtracking analysis: NO_IDA.",
		"var Patterns = map[string]*regexp.Regexp{",
	} {
		if !strings.Contains(compact, want) {
			t.Errorf("generated source missing %q:\n%s", want, src)
		}
	}

	if _, err := parser.ParseFile(token.NewFileSet(), "vetted.go", src, 0); err != nil {
		t.Errorf("generated source does not parse: %v", err)
	}
}

func TestGenerateErrors(t *testing.T) {
	if _, err := Generate(Options{}, nil); err == nil {
		t.Error("expected error for empty package")
	}
	if _, err := Generate(Options{Package: "p"}, []Entry{{Pattern: `(?=x)`}}); err == nil {
		t.Error("expected error for a pattern regexp cannot compile")
	}
}

func TestGenerateTest(t *testing.T) {
	var buf bytes.Buffer
	f := GenerateTest(Options{Package: "vetted"}, []Entry{{Name: "word", Pattern: `^[a-z]+$`}})
	if err := Write(&buf, f); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	src := buf.String()
	if !strings.Contains(src, "func TestWordPattern(t *testing.T)") {
		t.Errorf("missing test function:\n%s", src)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "vetted_test.go", src, 0); err != nil {
		t.Errorf("generated test does not parse: %v", err)
	}
}
