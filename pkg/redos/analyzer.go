package redos

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/KromDaniel/redos/internal/analysis"
	"github.com/KromDaniel/redos/internal/compiler"
	"github.com/KromDaniel/redos/internal/nfa"
	"github.com/KromDaniel/redos/internal/preprocess"
)

// cancelGrace is how long a cancelled worker may take to notice.
const cancelGrace = 2 * time.Second

// slashPattern matches the /pattern/flags notation.
var slashPattern = regexp.MustCompile(`(?s)^/(.*)/([a-zA-Z]*)$`)

// Analyzer classifies patterns. It is immutable and safe for concurrent use.
type Analyzer struct {
	config       Config
	analyser     *analysis.Analyser
	preprocessor preprocess.Preprocessor
	logger       *compiler.Logger
}

// New validates config and returns an Analyzer.
func New(config Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := compiler.NewLogger(config.Verbose)
	if config.LogOutput != nil {
		logger.SetOutput(config.LogOutput)
	}

	a, err := analysis.NewAnalyser(analysis.Settings{
		LoopStrategy:     config.LoopRemoval,
		PriorityStrategy: config.PriorityRemoval,
		MaxStates:        config.MaxStates,
		MaxProductNodes:  config.MaxProductNodes,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		config:       config,
		analyser:     a,
		preprocessor: preprocess.ForType(config.Preprocessing),
		logger:       logger,
	}, nil
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// IsVulnerable reports whether pattern has exponential or (when IDA testing
// is on) polynomial degree of ambiguity. Inconclusive analyses return an
// *AnalysisError, never false.
func (a *Analyzer) IsVulnerable(pattern string) (bool, error) {
	return a.IsVulnerableContext(context.Background(), pattern)
}

// IsVulnerableContext is IsVulnerable with a parent context. Cancelling ctx
// is reported like a timeout.
func (a *Analyzer) IsVulnerableContext(ctx context.Context, pattern string) (bool, error) {
	report, err := a.Analyze(ctx, pattern)
	if err != nil {
		return false, err
	}
	return report.Verdict()
}

// Analyze runs the full pipeline on pattern. The error is non-nil only when
// the pattern cannot be preprocessed or compiled; timeouts and failures are
// reported through the returned Report.
func (a *Analyzer) Analyze(ctx context.Context, pattern string) (*Report, error) {
	start := time.Now()
	report := &Report{ID: uuid.New(), Pattern: pattern}

	rewritten, err := a.prepare(pattern)
	if err != nil {
		return nil, err
	}
	report.Analyzed = rewritten

	compiled, err := compiler.New(compiler.Config{
		Pattern: rewritten,
		Mode:    a.config.Construction,
		Logger:  a.logger,
	}).Compile()
	if err != nil {
		return nil, err
	}
	report.Features = compiled.Features
	report.Length = compiled.Length

	out := a.run(ctx, compiled.Graph)
	report.Kind = out.Kind
	report.Vulnerable = out.Kind.Vulnerable()
	report.Witness = out.Witness
	report.Degree = out.Degree
	report.DegreeAtLeast = out.DegreeAtLeast
	report.Stats = out.Stats
	report.Duration = time.Since(start)
	if !out.Kind.Definitive() {
		report.err = &AnalysisError{Kind: out.Kind, Pattern: pattern, Err: out.Err}
		report.Error = report.err.Error()
	}
	return report, nil
}

// prepare strips the slash notation and applies the preprocessing rules.
func (a *Analyzer) prepare(pattern string) (string, error) {
	stripped := StripSlashes(pattern)
	if stripped != pattern {
		a.logger.Log("Stripped slash notation: %s", stripped)
	}
	rewritten, err := a.preprocessor.ApplyRules(stripped)
	if err != nil {
		return "", err
	}
	if rewritten != stripped {
		a.logger.Log("Preprocessed (%s): %s", a.config.Preprocessing, rewritten)
	}
	return rewritten, nil
}

// run races the analysis against the configured timeout. The worker polls
// the context itself; if it has not returned cancelGrace after the deadline
// the phase it was in decides the timeout kind.
func (a *Analyzer) run(ctx context.Context, g *nfa.Graph) analysis.Outcome {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	var phase atomic.Int32
	done := make(chan analysis.Outcome, 1)
	go func() {
		done <- a.analyser.Run(ctx, g, analysis.RunOptions{
			TestIDA: a.config.TestIDA,
			OnPhase: func(p analysis.Phase) { phase.Store(int32(p)) },
		})
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
	}

	grace := time.NewTimer(cancelGrace)
	defer grace.Stop()
	select {
	case out := <-done:
		return out
	case <-grace.C:
		p := analysis.Phase(phase.Load())
		a.logger.Log("Worker did not stop within %s of cancellation", cancelGrace)
		return analysis.Outcome{Kind: p.TimeoutKind(), Err: ctx.Err()}
	}
}

// StripSlashes removes the /pattern/flags notation. Flags i, m and s become
// inline flags; other flags are dropped.
func StripSlashes(pattern string) string {
	m := slashPattern.FindStringSubmatch(pattern)
	if m == nil {
		return pattern
	}
	var flags strings.Builder
	for _, f := range "ims" {
		if strings.ContainsRune(m[2], f) {
			flags.WriteRune(f)
		}
	}
	if flags.Len() == 0 {
		return m[1]
	}
	return fmt.Sprintf("(?%s)%s", flags.String(), m[1])
}

// IsVulnerable analyses pattern with the default configuration.
func IsVulnerable(pattern string) (bool, error) {
	a, err := NewBuilder().Build()
	if err != nil {
		return false, err
	}
	return a.IsVulnerable(pattern)
}
