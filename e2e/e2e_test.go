package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/KromDaniel/redos/pkg/redos"
)

// TestCase is one corpus entry.
type TestCase struct {
	Pattern string `json:"pattern"`
	Result  string `json:"result"`
	Degree  int    `json:"degree,omitempty"`
	// Backtracks marks patterns whose attack string must time out a
	// backtracking matcher.
	Backtracks bool     `json:"backtracks,omitempty"`
	Labels     []string `json:"labels,omitempty"`
}

const (
	exploitRepeats  = 32
	backtrackBudget = 200 * time.Millisecond
)

// TestE2E analyses every corpus pattern under each construction and loop
// strategy. Use -run to filter by label, e.g. -run "Polynomial".
func TestE2E(t *testing.T) {
	data, err := os.ReadFile("testdata.json")
	if err != nil {
		t.Fatalf("Failed to read test data: %v", err)
	}

	var testCases []TestCase
	if err := json.Unmarshal(data, &testCases); err != nil {
		t.Fatalf("Failed to parse test data: %v", err)
	}
	if len(testCases) == 0 {
		t.Fatal("No test cases found in testdata.json")
	}
	t.Logf("Running %d e2e test cases", len(testCases))

	builders := map[string]func() *redos.Builder{
		"Program/Flattening": func() *redos.Builder { return redos.NewBuilder() },
		"Program/Merging": func() *redos.Builder {
			return redos.NewBuilder().WithEpsilonLoopRemoval(redos.Merging)
		},
		"Thompson/Flattening": func() *redos.Builder {
			return redos.NewBuilder().WithConstruction(redos.ConstructionThompson)
		},
	}

	for i, tc := range testCases {
		for mode, builder := range builders {
			t.Run(buildTestName(tc, i+1)+"/"+mode, func(t *testing.T) {
				t.Parallel()

				analyzer, err := builder().Build()
				if err != nil {
					t.Fatalf("Failed to build analyzer: %v", err)
				}
				report, err := analyzer.Analyze(context.Background(), tc.Pattern)
				if err != nil {
					t.Fatalf("Failed to analyze pattern %q: %v", tc.Pattern, err)
				}
				if got := report.Kind.String(); got != tc.Result {
					t.Fatalf("Result mismatch (possible regression):\n"+
						"  Pattern: %s\n"+
						"  Expected: %s\n"+
						"  Actual: %s", tc.Pattern, tc.Result, got)
				}
				if tc.Degree != 0 && report.Degree != tc.Degree {
					t.Errorf("Degree = %d, want %d", report.Degree, tc.Degree)
				}
				if !report.Vulnerable {
					return
				}
				checkWitness(t, tc, report)
			})
		}
	}
}

// checkWitness verifies the attack string is rejected and, for patterns
// marked Backtracks, that it stalls a backtracking matcher.
func checkWitness(t *testing.T, tc TestCase, report *redos.Report) {
	t.Helper()
	if report.Witness == nil {
		t.Fatal("vulnerable report without witness")
	}
	attack := report.Witness.Exploit(exploitRepeats)

	full := regexp.MustCompile(`^(?:` + report.Analyzed + `)$`)
	if full.MatchString(attack) {
		t.Errorf("attack string %q matches %s; it must be rejected", attack, report.Analyzed)
	}

	if !tc.Backtracks {
		return
	}
	re := regexp2.MustCompile(report.Analyzed, regexp2.None)
	re.MatchTimeout = backtrackBudget
	start := time.Now()
	_, err := re.MatchString(attack)
	if err == nil {
		t.Errorf("backtracking matcher finished %q in %v; expected a timeout", attack, time.Since(start))
	}
}

// buildTestName joins the labels with the case index.
func buildTestName(tc TestCase, idx int) string {
	if len(tc.Labels) == 0 {
		return fmt.Sprintf("Case%03d", idx)
	}
	return fmt.Sprintf("%s_%03d", strings.Join(tc.Labels, "_"), idx)
}
