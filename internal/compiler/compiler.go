// Package compiler lowers regex patterns to the NFA graphs the analysis runs on.
package compiler

import (
	"errors"
	"fmt"
	"regexp/syntax"
	"strings"

	"github.com/KromDaniel/redos/internal/nfa"
)

// ErrCompile is returned when a pattern cannot be parsed or lowered.
var ErrCompile = errors.New("failed to compile pattern")

// Mode selects how a pattern is turned into a graph.
type Mode int

const (
	// ModeProgram follows the instruction program of a backtracking matcher:
	// one state per instruction, alternatives ordered as the matcher tries them.
	ModeProgram Mode = iota
	// ModeThompson builds a textbook Thompson automaton from the syntax tree.
	ModeThompson
)

// String returns the upper-case mode name.
func (m Mode) String() string {
	switch m {
	case ModeProgram:
		return "PROGRAM"
	case ModeThompson:
		return "THOMPSON"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name. The empty string selects ModeProgram.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "program", "":
		return ModeProgram, nil
	case "thompson":
		return ModeThompson, nil
	}
	return 0, fmt.Errorf("unknown construction mode %q", s)
}

// Config holds the configuration for a single compilation.
type Config struct {
	Pattern string
	Mode    Mode
	Verbose bool
	Logger  *Logger // Overrides Verbose when set
}

// Compiled is a pattern lowered to an NFA graph.
type Compiled struct {
	Pattern  string
	Mode     Mode
	Graph    *nfa.Graph
	Features []string
	Length   LengthBounds
}

// Compiler turns one pattern into an NFA graph.
type Compiler struct {
	config Config
	logger *Logger
}

// New creates a new compiler instance.
func New(config Config) *Compiler {
	logger := config.Logger
	if logger == nil {
		logger = NewLogger(config.Verbose)
	}
	return &Compiler{config: config, logger: logger}
}

// Compile parses a pattern and builds its graph in the given mode.
func Compile(pattern string, mode Mode) (*nfa.Graph, error) {
	compiled, err := New(Config{Pattern: pattern, Mode: mode}).Compile()
	if err != nil {
		return nil, err
	}
	return compiled.Graph, nil
}

// Compile parses the configured pattern and builds its graph.
func (c *Compiler) Compile() (*Compiled, error) {
	c.logger.Section("Pattern Compilation")
	c.logger.Log("Pattern: %s", c.config.Pattern)
	c.logger.Log("Construction mode: %s", c.config.Mode)

	ast, err := syntax.Parse(c.config.Pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	// The checked tree has its alternations factored; the graph is built
	// from one that keeps every branch.
	tree, err := parseBranches(c.config.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	// No Simplify here: it rewrites (?:a+)+ into a+.
	expanded, err := expandRepeats(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	var g *nfa.Graph
	switch c.config.Mode {
	case ModeProgram:
		prog, err := syntax.Compile(expanded)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompile, err)
		}
		c.logger.Log("Program instructions: %d", len(prog.Inst))
		g = fromProgram(prog)
	case ModeThompson:
		g = fromSyntax(expanded)
	default:
		return nil, fmt.Errorf("%w: unknown construction mode %s", ErrCompile, c.config.Mode)
	}

	g = g.Trim()
	loops := g.MarkLoops()
	c.logger.Log("Graph states: %d, transitions: %d, loops: %d", g.NumStates(), g.NumTransitions(), loops)
	c.logger.Log("Has nested quantifiers: %v", detectNestedQuantifiers(ast))
	c.logger.Log("Has repeating captures: %v", hasRepeatingCaptures(ast))
	length := MatchLength(ast)
	c.logger.Log("Match length: min %d, max %d", length.Min, length.Max)

	return &Compiled{
		Pattern:  c.config.Pattern,
		Mode:     c.config.Mode,
		Graph:    g,
		Features: featureLabels(c.config.Pattern, ast),
		Length:   length,
	}, nil
}
