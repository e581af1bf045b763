package compiler

import "github.com/xyproto/env/v2"

// Configuration holds the tunable parameters of the optimizer. The defaults
// can be overridden via environment variables, e.g. for experiments on the
// effect of the common-subexpression window.
type Configuration struct {
	// MaxCommonExpressionDistance is the maximum number of instructions a
	// common subexpression may lie apart from its reuse for the elimination
	// to still be considered profitable.
	MaxCommonExpressionDistance int
	// PrecalculationDepth is the number of writer levels followed when
	// constant-folding operand values.
	PrecalculationDepth int
}

// DefaultConfiguration returns the configuration with all parameters at
// their default values, honoring environment overrides.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxCommonExpressionDistance: env.Int("VC4C_MAX_EXPRESSION_DISTANCE", 64),
		PrecalculationDepth:         env.Int("VC4C_PRECALCULATION_DEPTH", 3),
	}
}
