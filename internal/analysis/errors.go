package analysis

import "errors"

var (
	// ErrUnknownStrategy is returned for an eliminator or reducer name or
	// value this package does not implement.
	ErrUnknownStrategy = errors.New("unknown analysis strategy")

	// ErrResourceExhausted is returned when a derived graph or product search
	// outgrows its configured budget.
	ErrResourceExhausted = errors.New("analysis resource budget exhausted")
)
