// Package analysis decides whether a pattern graph has exponential or
// polynomial degree of ambiguity, the root cause of catastrophic
// backtracking.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/KromDaniel/redos/internal/nfa"
)

// Logger receives analysis decisions. compiler.Logger satisfies it.
type Logger interface {
	Log(format string, args ...any)
	Section(title string)
}

type nopLogger struct{}

func (nopLogger) Log(string, ...any) {}
func (nopLogger) Section(string)     {}

// Settings configure an Analyser. Zero limits disable the corresponding
// budget.
type Settings struct {
	LoopStrategy     LoopStrategy
	PriorityStrategy PriorityStrategy
	MaxStates        int
	MaxProductNodes  int
	Logger           Logger
}

// Stats describe the graphs one run worked on.
type Stats struct {
	States         int           `json:"states"`
	LoopFreeStates int           `json:"loop_free_states"`
	Positions      int           `json:"positions"`
	Edges          int           `json:"edges"`
	ProductNodes   int           `json:"product_nodes"`
	EDADuration    time.Duration `json:"eda_duration"`
	IDADuration    time.Duration `json:"ida_duration"`
}

// Outcome is the result of one detector or one full run.
type Outcome struct {
	Kind    ResultKind
	Witness *Witness
	// Degree is the polynomial degree for IDA results. When DegreeAtLeast
	// is set the search ran out of budget and the real degree may be higher.
	Degree        int
	DegreeAtLeast bool
	// Err carries the cause of timeouts and failures.
	Err   error
	Stats Stats
}

// RunOptions control one Run.
type RunOptions struct {
	TestIDA bool
	// OnPhase is called before each detector starts.
	OnPhase func(Phase)
}

func (o RunOptions) enter(p Phase) {
	if o.OnPhase != nil {
		o.OnPhase(p)
	}
}

// Analyser runs loop elimination, priority reduction and the detectors. It
// holds no per-run state and is safe for concurrent use.
type Analyser struct {
	settings   Settings
	eliminator LoopEliminator
	reducer    PriorityReducer
	log        Logger
}

// NewAnalyser validates the settings and picks the strategies.
func NewAnalyser(s Settings) (*Analyser, error) {
	eliminator, err := NewLoopEliminator(s.LoopStrategy, s.MaxStates)
	if err != nil {
		return nil, err
	}
	reducer, err := NewPriorityReducer(s.PriorityStrategy)
	if err != nil {
		return nil, err
	}
	log := s.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Analyser{settings: s, eliminator: eliminator, reducer: reducer, log: log}, nil
}

// Prepared is a graph after loop elimination and priority reduction, with
// its multigraph. It is read-only and may be shared by detectors.
type Prepared struct {
	Graph *nfa.Graph
	m     *multigraph
	stats Stats
}

// Prepare eliminates epsilon loops, reduces priorities and builds the
// multigraph the detectors search.
func (a *Analyser) Prepare(ctx context.Context, g *nfa.Graph) (*Prepared, error) {
	a.log.Section("Loop Elimination")
	loopFree, err := a.eliminator.Eliminate(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("eliminate epsilon loops: %w", err)
	}
	a.log.Log("%s: %d states -> %d states", a.settings.LoopStrategy, g.NumStates(), loopFree.NumStates())

	reduced := a.reducer.Reduce(loopFree)
	m, err := buildMultigraph(newCanceller(ctx, 0), reduced)
	if err != nil {
		return nil, fmt.Errorf("build multigraph: %w", err)
	}
	a.log.Log("Multigraph: %d positions, %d edges", len(m.state), m.edges)

	return &Prepared{
		Graph: reduced,
		m:     m,
		stats: Stats{
			States:         g.NumStates(),
			LoopFreeStates: loopFree.NumStates(),
			Positions:      len(m.state),
			Edges:          m.edges,
		},
	}, nil
}

// ContainsEDA classifies a prepared graph as EDA or NO_EDA.
func (a *Analyser) ContainsEDA(ctx context.Context, p *Prepared) (out Outcome) {
	ctx, span := startPhaseSpan(ctx, PhaseEDA)
	defer span.End()
	start := time.Now()
	c := newCanceller(ctx, a.settings.MaxProductNodes)
	defer func() {
		out.Stats = p.stats
		out.Stats.ProductNodes = c.used
		out.Stats.EDADuration = time.Since(start)
	}()
	defer a.recoverTo(PhaseEDA, &out)

	a.log.Section("EDA")
	d := newDetector(p.m, c, a.settings.PriorityStrategy == Preserve, a.log)
	w, err := d.findEDA()
	switch {
	case err != nil:
		return a.failure(PhaseEDA, err)
	case w != nil:
		a.log.Log("EDA witness: %s", w)
		return Outcome{Kind: EDA, Witness: w}
	}
	a.log.Log("No exponential ambiguity")
	return Outcome{Kind: NoEDA}
}

// ContainsIDA classifies a prepared graph as IDA or NO_IDA. It assumes the
// graph has no exponential ambiguity.
func (a *Analyser) ContainsIDA(ctx context.Context, p *Prepared) (out Outcome) {
	ctx, span := startPhaseSpan(ctx, PhaseIDA)
	defer span.End()
	start := time.Now()
	c := newCanceller(ctx, a.settings.MaxProductNodes)
	defer func() {
		out.Stats = p.stats
		out.Stats.ProductNodes = c.used
		out.Stats.IDADuration = time.Since(start)
	}()
	defer a.recoverTo(PhaseIDA, &out)

	a.log.Section("IDA")
	d := newDetector(p.m, c, a.settings.PriorityStrategy == Preserve, a.log)
	res, err := d.findIDA()
	switch {
	case err != nil:
		return a.failure(PhaseIDA, err)
	case res != nil:
		a.log.Log("IDA witness: %s, degree %d", res.witness, res.degree)
		return Outcome{Kind: IDA, Witness: res.witness, Degree: res.degree, DegreeAtLeast: res.partial}
	}
	a.log.Log("No polynomial ambiguity")
	return Outcome{Kind: NoIDA}
}

// Run analyses g: EDA first, then IDA when TestIDA is set and EDA found
// nothing. Every failure is reported through the outcome.
func (a *Analyser) Run(ctx context.Context, g *nfa.Graph, opts RunOptions) (out Outcome) {
	ctx, span := startRunSpan(ctx, a.settings, opts.TestIDA)
	start := time.Now()
	defer func() {
		setRunSpanResult(span, out)
		span.End()
		recordRunMetrics(ctx, a.settings, out, time.Since(start))
	}()

	opts.enter(PhaseEDA)
	p, failed := a.prepare(ctx, g)
	if failed != nil {
		return *failed
	}

	out = a.ContainsEDA(ctx, p)
	if out.Kind != NoEDA || !opts.TestIDA {
		return out
	}
	eda := out.Stats

	opts.enter(PhaseIDA)
	out = a.ContainsIDA(ctx, p)
	out.Stats.EDADuration = eda.EDADuration
	out.Stats.ProductNodes += eda.ProductNodes
	return out
}

// prepare wraps Prepare for Run, turning errors and panics into outcomes of
// the EDA phase.
func (a *Analyser) prepare(ctx context.Context, g *nfa.Graph) (p *Prepared, failed *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out := a.panicked(PhaseEDA, r)
			failed = &out
		}
	}()
	start := time.Now()
	p, err := a.Prepare(ctx, g)
	if err != nil {
		out := a.failure(PhaseEDA, err)
		out.Stats = Stats{States: g.NumStates(), EDADuration: time.Since(start)}
		return nil, &out
	}
	return p, nil
}

// failure maps an error to the outcome of the phase it interrupted.
func (a *Analyser) failure(phase Phase, err error) Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		a.log.Log("Cancelled during %s: %v", phase, err)
		return Outcome{Kind: phase.TimeoutKind(), Err: err}
	}
	a.log.Log("%s failed: %v", phase, err)
	return Outcome{Kind: AnalysisFailed, Err: err}
}

func (a *Analyser) recoverTo(phase Phase, out *Outcome) {
	if r := recover(); r != nil {
		*out = a.panicked(phase, r)
	}
}

func (a *Analyser) panicked(phase Phase, r any) Outcome {
	a.log.Log("%s panicked: %v\n%s", phase, r, debug.Stack())
	return Outcome{Kind: AnalysisFailed, Err: fmt.Errorf("%s panicked: %v", phase, r)}
}
