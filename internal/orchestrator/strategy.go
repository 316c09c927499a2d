package orchestrator

import (
	"context"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// Strategy is one self-contained attempt at compiling and running source code
// through a specific backend.
//
// Attempt returns Unavailable when the backend cannot be used for this request
// and the next strategy should be tried, or Definitive when the backend
// produced a terminal result. A non-nil error is treated as Unavailable.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (Outcome, error)
}

// Outcome is the tagged result of a strategy attempt.
type Outcome struct {
	definitive bool
	result     *domain.ExecutionResult
	reason     string
}

// Unavailable reports that the strategy could not run and the chain should continue.
func Unavailable(reason string) Outcome {
	return Outcome{reason: reason}
}

// Definitive reports a terminal result that ends the fallback chain.
func Definitive(result *domain.ExecutionResult) Outcome {
	return Outcome{definitive: true, result: result}
}

// IsDefinitive returns true if the outcome ends the chain.
func (o Outcome) IsDefinitive() bool { return o.definitive && o.result != nil }

// Result returns the definitive result, or nil for Unavailable.
func (o Outcome) Result() *domain.ExecutionResult {
	if !o.definitive {
		return nil
	}
	return o.result
}

// Reason returns why the strategy was unavailable.
func (o Outcome) Reason() string { return o.reason }
