package redos

import (
	"time"

	"github.com/google/uuid"
)

// Report is the full result of one analysis.
type Report struct {
	ID uuid.UUID `json:"id"`

	// Pattern is the input as given; Analyzed is what was compiled after
	// slash stripping and preprocessing.
	Pattern  string `json:"pattern"`
	Analyzed string `json:"analyzed_pattern"`

	Kind       ResultKind `json:"result"`
	Vulnerable bool       `json:"vulnerable"`
	Witness    *Witness   `json:"witness,omitempty"`
	Degree     int        `json:"degree,omitempty"`
	// DegreeAtLeast marks Degree as a lower bound.
	DegreeAtLeast bool     `json:"degree_at_least,omitempty"`
	Features      []string `json:"features"`
	// Length is the match length range in runes; Max is -1 when unbounded.
	Length   LengthBounds  `json:"length"`
	Stats    Stats         `json:"stats"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`

	err error
}

// Err returns the *AnalysisError of an inconclusive report, or nil.
func (r *Report) Err() error {
	return r.err
}

// Verdict maps the report to IsVulnerable's contract.
func (r *Report) Verdict() (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	return r.Vulnerable, nil
}

// Inconclusive reports whether the analysis timed out or failed.
func (r *Report) Inconclusive() bool {
	return !r.Kind.Definitive()
}
