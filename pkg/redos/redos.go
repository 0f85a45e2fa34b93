// Package redos statically detects regular expressions vulnerable to
// catastrophic backtracking. It never runs the pattern: it builds the
// pattern's NFA and searches it for exponential (EDA) or polynomial (IDA)
// degree of ambiguity.
package redos

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/KromDaniel/redos/internal/analysis"
	"github.com/KromDaniel/redos/internal/compiler"
	"github.com/KromDaniel/redos/internal/preprocess"
)

// Result and strategy types shared with the analysis packages.
type (
	ResultKind       = analysis.ResultKind
	Witness          = analysis.Witness
	Stats            = analysis.Stats
	Construction     = compiler.Mode
	LengthBounds     = compiler.LengthBounds
	Preprocessing    = preprocess.Type
	LoopStrategy     = analysis.LoopStrategy
	PriorityStrategy = analysis.PriorityStrategy
)

// Result kinds.
const (
	EDA            = analysis.EDA
	NoEDA          = analysis.NoEDA
	IDA            = analysis.IDA
	NoIDA          = analysis.NoIDA
	TimeoutInEDA   = analysis.TimeoutInEDA
	TimeoutInIDA   = analysis.TimeoutInIDA
	AnalysisFailed = analysis.AnalysisFailed
)

// Configuration values.
const (
	ConstructionProgram  = compiler.ModeProgram
	ConstructionThompson = compiler.ModeThompson

	PreprocessNone       = preprocess.TypeNone
	PreprocessPrecise    = preprocess.TypePrecise
	PreprocessNonprecise = preprocess.TypeNonprecise

	Merging    = analysis.Merging
	Flattening = analysis.Flattening

	Unprioritise = analysis.Unprioritise
	Preserve     = analysis.Preserve
)

// Defaults applied by NewBuilder.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxStates       = 10_000
	DefaultMaxProductNodes = 2_000_000
)

// Config configures an Analyzer. Build one with NewBuilder.
type Config struct {
	// Construction selects how the pattern becomes an NFA
	Construction Construction

	// Preprocessing selects the rewrite rules applied before compilation
	Preprocessing Preprocessing

	// LoopRemoval selects the epsilon-loop eliminator
	LoopRemoval LoopStrategy

	// PriorityRemoval selects whether transition order is kept
	PriorityRemoval PriorityStrategy

	// TestIDA runs the polynomial search after a negative exponential one
	TestIDA bool

	// Timeout bounds one analysis; zero or less disables it
	Timeout time.Duration

	// MaxStates bounds the loop-free graph; zero disables the check
	MaxStates int

	// MaxProductNodes bounds each product search; zero disables the check
	MaxProductNodes int

	// Verbose prints compilation and analysis decisions to LogOutput
	Verbose bool

	// LogOutput receives verbose output (default: stderr)
	LogOutput io.Writer
}

// DefaultConfig returns the configuration NewBuilder starts from.
func DefaultConfig() Config {
	return Config{
		Construction:    ConstructionProgram,
		Preprocessing:   PreprocessNone,
		LoopRemoval:     Flattening,
		PriorityRemoval: Unprioritise,
		TestIDA:         true,
		Timeout:         DefaultTimeout,
		MaxStates:       DefaultMaxStates,
		MaxProductNodes: DefaultMaxProductNodes,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	switch c.Construction {
	case ConstructionProgram, ConstructionThompson:
	default:
		return fmt.Errorf("%w: construction %s", ErrInvalidConfig, c.Construction)
	}
	switch c.Preprocessing {
	case PreprocessNone, PreprocessPrecise, PreprocessNonprecise:
	default:
		return fmt.Errorf("%w: preprocessing %s", ErrInvalidConfig, c.Preprocessing)
	}
	if c.MaxStates < 0 {
		return fmt.Errorf("%w: max states cannot be negative", ErrInvalidConfig)
	}
	if c.MaxProductNodes < 0 {
		return fmt.Errorf("%w: max product nodes cannot be negative", ErrInvalidConfig)
	}
	// Strategy values are checked by analysis.NewAnalyser.
	return nil
}

// analysisRevision is bumped whenever a pattern may be classified
// differently, so verdicts cached by older builds stop matching.
const analysisRevision = 2

// Fingerprint identifies the settings that can change a verdict. Two
// configurations with the same fingerprint classify every pattern alike,
// timeouts aside.
func (c Config) Fingerprint() string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%s|%s|%s|%s|%t|%d|%d",
		analysisRevision, c.Construction, c.Preprocessing, c.LoopRemoval, c.PriorityRemoval,
		c.TestIDA, c.MaxStates, c.MaxProductNodes))
	return hex.EncodeToString(sum[:8])
}

// Builder assembles a Config.
type Builder struct {
	config Config
}

// NewBuilder returns a builder holding DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConstruction selects how the pattern is turned into an automaton.
func (b *Builder) WithConstruction(c Construction) *Builder {
	b.config.Construction = c
	return b
}

// WithPreprocessing selects the rewriting applied to the pattern before compiling.
func (b *Builder) WithPreprocessing(p Preprocessing) *Builder {
	b.config.Preprocessing = p
	return b
}

// WithEpsilonLoopRemoval selects how epsilon loops are eliminated.
func (b *Builder) WithEpsilonLoopRemoval(s LoopStrategy) *Builder {
	b.config.LoopRemoval = s
	return b
}

// WithPriorityRemoval selects whether transition priorities are kept.
func (b *Builder) WithPriorityRemoval(s PriorityStrategy) *Builder {
	b.config.PriorityRemoval = s
	return b
}

// WithIDA enables the polynomial search after an EDA-free result.
func (b *Builder) WithIDA(enabled bool) *Builder {
	b.config.TestIDA = enabled
	return b
}

// WithTimeout sets the timeout in whole seconds; zero or less disables it.
func (b *Builder) WithTimeout(seconds int) *Builder {
	return b.WithTimeoutDuration(time.Duration(seconds) * time.Second)
}

// WithTimeoutDuration sets the analysis timeout; zero or less disables it.
func (b *Builder) WithTimeoutDuration(d time.Duration) *Builder {
	b.config.Timeout = d
	return b
}

// WithMaxStates caps the states loop elimination may create; zero means no cap.
func (b *Builder) WithMaxStates(n int) *Builder {
	b.config.MaxStates = n
	return b
}

// WithMaxProductNodes caps the product nodes a detector may visit; zero means no cap.
func (b *Builder) WithMaxProductNodes(n int) *Builder {
	b.config.MaxProductNodes = n
	return b
}

// WithVerbose turns on the step-by-step analysis log.
func (b *Builder) WithVerbose(verbose bool) *Builder {
	b.config.Verbose = verbose
	return b
}

// WithLogOutput sets where the verbose log is written.
func (b *Builder) WithLogOutput(w io.Writer) *Builder {
	b.config.LogOutput = w
	return b
}

// Config returns a copy of the configuration built so far.
func (b *Builder) Config() Config {
	return b.config
}

// Build validates the configuration and returns an Analyzer.
func (b *Builder) Build() (*Analyzer, error) {
	return New(b.config)
}
