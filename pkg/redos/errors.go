package redos

import (
	"errors"
	"fmt"

	"github.com/KromDaniel/redos/internal/analysis"
	"github.com/KromDaniel/redos/internal/compiler"
	"github.com/KromDaniel/redos/internal/preprocess"
)

var (
	// ErrTimeout is returned when the analysis was cancelled before reaching
	// a verdict.
	ErrTimeout = errors.New("analysis timed out")

	// ErrAnalysisFailed is returned when the analysis could not complete,
	// for example because a resource budget was exhausted.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownStrategy is returned for unsupported loop or priority strategies.
	ErrUnknownStrategy = analysis.ErrUnknownStrategy

	// ErrCompile is returned for patterns that cannot be parsed.
	ErrCompile = compiler.ErrCompile

	// ErrPreprocess is returned when preprocessing fails.
	ErrPreprocess = preprocess.ErrPreprocess
)

// AnalysisError reports an inconclusive analysis. It matches ErrTimeout or
// ErrAnalysisFailed with errors.Is and unwraps to the underlying cause.
type AnalysisError struct {
	Kind    ResultKind
	Pattern string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: pattern %q", e.Kind, e.Pattern)
	}
	return fmt.Sprintf("%s: pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *AnalysisError) Unwrap() []error {
	errs := []error{ErrAnalysisFailed}
	if e.Kind == TimeoutInEDA || e.Kind == TimeoutInIDA {
		errs[0] = ErrTimeout
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
