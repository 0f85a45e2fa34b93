package analysis

import (
	"fmt"
	"strings"
)

// ResultKind is the terminal classification of one analysis run.
type ResultKind int

const (
	// EDA: exponential degree of ambiguity, catastrophic backtracking.
	EDA ResultKind = iota
	// NoEDA: no exponential ambiguity; IDA was not tested.
	NoEDA
	// IDA: infinite (polynomial) degree of ambiguity.
	IDA
	// NoIDA: neither exponential nor polynomial ambiguity.
	NoIDA
	// TimeoutInEDA: cancelled while looking for exponential ambiguity.
	TimeoutInEDA
	// TimeoutInIDA: cancelled while looking for polynomial ambiguity.
	TimeoutInIDA
	// AnalysisFailed: the analysis could not complete.
	AnalysisFailed
)

var resultKindNames = map[ResultKind]string{
	EDA:            "EDA",
	NoEDA:          "NO_EDA",
	IDA:            "IDA",
	NoIDA:          "NO_IDA",
	TimeoutInEDA:   "TIMEOUT_IN_EDA",
	TimeoutInIDA:   "TIMEOUT_IN_IDA",
	AnalysisFailed: "ANALYSIS_FAILED",
}

// String returns the upper-case name of the kind.
func (k ResultKind) String() string {
	if name, ok := resultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ResultKind) MarshalText() ([]byte, error) {
	if _, ok := resultKindNames[k]; !ok {
		return nil, fmt.Errorf("invalid result kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ResultKind) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for kind, n := range resultKindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", string(text))
}

// Vulnerable reports whether the kind is a definitive positive verdict.
func (k ResultKind) Vulnerable() bool {
	return k == EDA || k == IDA
}

// Definitive reports whether the kind is a verdict rather than a timeout or failure.
func (k ResultKind) Definitive() bool {
	switch k {
	case EDA, NoEDA, IDA, NoIDA:
		return true
	}
	return false
}

// Phase is the detector in flight.
type Phase int32

const (
	PhaseEDA Phase = iota
	PhaseIDA
)

// String returns the phase name.
func (p Phase) String() string {
	if p == PhaseIDA {
		return "IDA"
	}
	return "EDA"
}

// TimeoutKind returns the timeout classification for the phase.
func (p Phase) TimeoutKind() ResultKind {
	if p == PhaseIDA {
		return TimeoutInIDA
	}
	return TimeoutInEDA
}

// LoopStrategy selects the epsilon-loop eliminator.
type LoopStrategy int

const (
	// Merging collapses every epsilon cycle into one state.
	Merging LoopStrategy = iota
	// Flattening unrolls every epsilon cycle once.
	Flattening
)

// String returns the upper-case strategy name.
func (s LoopStrategy) String() string {
	switch s {
	case Merging:
		return "MERGING"
	case Flattening:
		return "FLATTENING"
	default:
		return fmt.Sprintf("LoopStrategy(%d)", int(s))
	}
}

// ParseLoopStrategy parses a strategy name, case-insensitively.
func ParseLoopStrategy(s string) (LoopStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MERGING", "MERGE":
		return Merging, nil
	case "FLATTENING", "FLATTEN", "":
		return Flattening, nil
	}
	return 0, fmt.Errorf("%w: epsilon loop removal %q", ErrUnknownStrategy, s)
}

// PriorityStrategy selects the priority reducer.
type PriorityStrategy int

const (
	// Unprioritise discards transition order.
	Unprioritise PriorityStrategy = iota
	// Preserve keeps transition order and models the matcher's early exit.
	Preserve
)

// String returns the upper-case strategy name.
func (s PriorityStrategy) String() string {
	switch s {
	case Unprioritise:
		return "UNPRIORITISE"
	case Preserve:
		return "PRESERVE"
	default:
		return fmt.Sprintf("PriorityStrategy(%d)", int(s))
	}
}

// ParsePriorityStrategy parses a strategy name, case-insensitively.
func ParsePriorityStrategy(s string) (PriorityStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNPRIORITISE", "UNPRIORITIZE", "":
		return Unprioritise, nil
	case "PRESERVE", "PRIORITISE", "PRIORITIZE":
		return Preserve, nil
	}
	return 0, fmt.Errorf("%w: priority removal %q", ErrUnknownStrategy, s)
}
