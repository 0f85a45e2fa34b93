package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/KromDaniel/redos/internal/config"
	"github.com/KromDaniel/redos/internal/telemetry"
	"github.com/KromDaniel/redos/pkg/redos"
)

// app holds state shared by every subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger

	configPath string
	verbose    bool
	trace      string
	flags      config.Analysis

	file      *config.File
	telemetry *telemetry.Provider
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:    out,
		errOut: errOut,
		log:    slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

func newRootCmd(a *app) *cobra.Command {
	var (
		ida             bool
		timeout         time.Duration
		maxStates       int
		maxProductNodes int
	)

	root := &cobra.Command{
		Use:   "redos",
		Short: "Detect regular expressions vulnerable to catastrophic backtracking",
		Long: `redos decides whether a regular expression can take exponential or
polynomial time on a backtracking matcher, and prints an attack string
when it can.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("ida") {
				a.flags.TestIDA = &ida
			}
			if flags.Changed("timeout") {
				a.flags.Timeout = &timeout
			}
			if flags.Changed("max-states") {
				a.flags.MaxStates = &maxStates
			}
			if flags.Changed("max-product-nodes") {
				a.flags.MaxProductNodes = &maxProductNodes
			}
			if a.verbose {
				a.log = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}

			if a.configPath != "" {
				f, err := config.Load(a.configPath)
				if err != nil {
					return err
				}
				a.file = f
			}
			return a.initTelemetry(cmd.Context(), cmd.Name() == "serve")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML configuration or pattern list")
	pf.StringVar(&a.flags.Construction, "construction", "", "NFA construction: program or thompson")
	pf.StringVar(&a.flags.Preprocessing, "preprocessing", "", "pattern rewriting: none, precise or nonprecise")
	pf.StringVar(&a.flags.EpsilonLoopRemoval, "loop-removal", "", "epsilon loop removal: flattening or merging")
	pf.StringVar(&a.flags.PriorityRemoval, "priority-removal", "", "priority removal: unprioritise or preserve")
	pf.BoolVar(&ida, "ida", true, "also test for polynomial (IDA) ambiguity")
	pf.DurationVar(&timeout, "timeout", redos.DefaultTimeout, "analysis time limit per pattern; 0 disables")
	pf.IntVar(&maxStates, "max-states", redos.DefaultMaxStates, "automaton size limit; 0 disables")
	pf.IntVar(&maxProductNodes, "max-product-nodes", redos.DefaultMaxProductNodes, "product graph size limit; 0 disables")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log analysis steps to stderr")
	pf.StringVar(&a.trace, "trace", telemetry.ExporterNone, "trace exporter: none or stdout")

	root.AddCommand(
		newCheckCmd(a),
		newScanCmd(a),
		newGenCmd(a),
		newServeCmd(a),
	)
	return root
}

// analyzer builds an Analyzer from defaults, the --config file, extra (an
// analysis section read by the command itself) and finally the flags.
func (a *app) analyzer(extra *config.Analysis) (*redos.Analyzer, error) {
	b := redos.NewBuilder()
	if a.file != nil {
		if err := a.file.Analysis.Apply(b); err != nil {
			return nil, fmt.Errorf("config %s: %w", a.configPath, err)
		}
	}
	if extra != nil {
		if err := extra.Apply(b); err != nil {
			return nil, err
		}
	}
	if err := a.flags.Apply(b); err != nil {
		return nil, err
	}
	if a.verbose {
		b.WithVerbose(true).WithLogOutput(a.errOut)
	}
	return b.Build()
}

func (a *app) initTelemetry(ctx context.Context, metrics bool) error {
	cfg := telemetry.DefaultConfig()
	cfg.TraceExporter = a.trace
	cfg.TraceOutput = a.errOut
	if !metrics {
		cfg.MetricExporter = telemetry.ExporterNone
	}
	p, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return err
	}
	a.telemetry = p
	return nil
}

func (a *app) shutdown() error {
	if a.telemetry == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.telemetry.Shutdown(ctx)
	a.telemetry = nil
	return err
}
