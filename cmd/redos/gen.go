package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/spf13/cobra"

	"github.com/KromDaniel/redos/internal/codegen"
	"github.com/KromDaniel/redos/pkg/redos"
)

type genOptions struct {
	pkg             string
	output          string
	withTest        bool
	allowVulnerable bool
}

func newGenCmd(a *app) *cobra.Command {
	var opts genOptions

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate Go regexp variables for patterns that pass analysis",
		Long: `gen analyses every pattern of the --config file and writes a Go file
declaring one regexp.MustCompile variable per pattern. It refuses to write
anything when a pattern is vulnerable or its analysis was inconclusive,
unless --allow-vulnerable is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.gen(cmd, opts); err != nil {
				return &exitError{code: exitVulnerable, err: err}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.pkg, "package", "p", "", "package name of the generated file (required)")
	f.StringVarP(&opts.output, "output", "o", "", "output file; stdout when empty")
	f.BoolVar(&opts.withTest, "with-test", false, "also write a _test.go file next to --output")
	f.BoolVar(&opts.allowVulnerable, "allow-vulnerable", false, "generate even when patterns are vulnerable or inconclusive")
	_ = cmd.MarkFlagRequired("package")
	return cmd
}

func (a *app) gen(cmd *cobra.Command, opts genOptions) error {
	if a.file == nil || len(a.file.Patterns) == 0 {
		return errors.New("gen needs --config with at least one pattern")
	}
	if opts.withTest && opts.output == "" {
		return errors.New("--with-test needs --output")
	}

	analyzer, err := a.analyzer(nil)
	if err != nil {
		return err
	}
	// Nonprecise rewrites change the matched language, so the generated
	// regexp would not be the pattern that was vetted.
	if analyzer.Config().Preprocessing == redos.PreprocessNonprecise {
		return errors.New("gen cannot use nonprecise preprocessing")
	}

	var (
		entries []codegen.Entry
		refused []string
	)
	for _, p := range a.file.Patterns {
		report, err := analyzer.Analyze(cmd.Context(), p.Pattern)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", p.Pattern, err)
		}
		if report.Vulnerable || report.Inconclusive() {
			refused = append(refused, fmt.Sprintf("%q: %s", p.Pattern, report.Kind))
			if !opts.allowVulnerable {
				continue
			}
		}
		entries = append(entries, codegen.Entry{
			Name:    p.Name,
			Pattern: report.Analyzed,
			Verdict: report.Kind.String(),
		})
	}
	if len(refused) > 0 && !opts.allowVulnerable {
		return fmt.Errorf("refusing to generate, %d patterns not safe:\n  %s",
			len(refused), strings.Join(refused, "\n  "))
	}
	for _, r := range refused {
		a.log.Warn("Generating unsafe pattern", "pattern", r)
	}

	source := filepath.Base(a.configPath)
	codeOpts := codegen.Options{Package: opts.pkg, Source: source}
	f, err := codegen.Generate(codeOpts, entries)
	if err != nil {
		return err
	}
	if err := writeGenerated(opts.output, a.out, f); err != nil {
		return err
	}
	if opts.withTest {
		testPath := strings.TrimSuffix(opts.output, ".go") + "_test.go"
		if err := writeGenerated(testPath, a.out, codegen.GenerateTest(codeOpts, entries)); err != nil {
			return err
		}
	}
	a.log.Info("Generated", "patterns", len(entries), "output", opts.output)
	return nil
}

func writeGenerated(path string, stdout io.Writer, f *jen.File) error {
	if path == "" || path == "-" {
		return codegen.Write(stdout, f)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := codegen.Write(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
