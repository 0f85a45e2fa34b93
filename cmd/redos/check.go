package main

import (
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check <pattern>...",
		Short: "Analyse patterns given on the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := a.analyzer(nil)
			if err != nil {
				return &exitError{code: exitInconclusive, err: err}
			}

			results := make([]result, 0, len(args))
			for _, pattern := range args {
				report, err := analyzer.Analyze(cmd.Context(), pattern)
				results = append(results, newResult("", pattern, report, err))
			}

			p := newPrinter(a.out)
			if asJSON {
				if err := p.json(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					p.result(r)
				}
			}

			if code := exitCode(results); code != exitSafe {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	return cmd
}
