package compiler

// Size limits
const (
	// MaxExpandedNodes bounds the syntax tree after counted repetitions are
	// expanded. Patterns such as (a{1000}){1000} exceed it and fail to compile.
	MaxExpandedNodes = 200000
)

// Feature labels reported for a compiled pattern.
const (
	LabelAlternation       = "Alternation"
	LabelAnchored          = "Anchored"
	LabelCaptures          = "Captures"
	LabelCharClass         = "CharClass"
	LabelMultibyte         = "Multibyte"
	LabelNestedQuantifiers = "NestedQuantifiers"
	LabelNonCapturing      = "NonCapturing"
	LabelQuantifiers       = "Quantifiers"
	LabelRepeatingCaptures = "RepeatingCaptures"
	LabelSimple            = "Simple"
	LabelUnicodeCharClass  = "UnicodeCharClass"
	LabelWordBoundary      = "WordBoundary"
)

// MaxASCIIRune is the exclusive upper bound for ASCII characters.
const MaxASCIIRune = 128
