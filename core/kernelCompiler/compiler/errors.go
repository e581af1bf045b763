package compiler

import "fmt"

// CompilationStep identifies the stage of the compiler that raised an error.
type CompilationStep uint8

const (
	StepGeneral CompilationStep = iota
	StepScanner
	StepParser
	StepNormalizer
	StepOptimizer
	StepLabelRegisterMapping
	StepCodeGeneration
)

func (s CompilationStep) String() string {
	switch s {
	case StepGeneral:
		return "General"
	case StepScanner:
		return "Scanner"
	case StepParser:
		return "Parser"
	case StepNormalizer:
		return "Normalizer"
	case StepOptimizer:
		return "Optimizer"
	case StepLabelRegisterMapping:
		return "Label/Register Mapping"
	case StepCodeGeneration:
		return "Code Generation"
	default:
		return "Unknown"
	}
}

// CompilationError is the error type raised by all compiler stages. It
// carries the step the error originated in and an optional detail string
// describing the object the error relates to.
type CompilationError struct {
	Step    CompilationStep
	Message string
	Detail  string
}

func newCompilationError(step CompilationStep, message, detail string) *CompilationError {
	return &CompilationError{Step: step, Message: message, Detail: detail}
}

func (e *CompilationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Step, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Step, e.Message)
}

// Is reports whether target is a CompilationError of the same step, which
// lets callers match on the stage without comparing messages.
func (e *CompilationError) Is(target error) bool {
	t, ok := target.(*CompilationError)
	return ok && t.Step == e.Step && (t.Message == "" || t.Message == e.Message)
}

// Category sentinels for errors.Is checks against the raising stage.
var (
	ErrGeneral    = &CompilationError{Step: StepGeneral}
	ErrNormalizer = &CompilationError{Step: StepNormalizer}
	ErrOptimizer  = &CompilationError{Step: StepOptimizer}
)
