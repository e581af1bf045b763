package compiler

import "math"

// PrecalculateSFU computes the result the special functions unit would
// deliver to r4 for writing the given constant input to one of its trigger
// registers. The input must be a value known to hold the same float in every
// lane.
func PrecalculateSFU(reg Register, input Value) (Value, bool) {
	if !reg.IsSpecialFunctionsUnit() || !input.IsAllSame() {
		return Value{}, false
	}
	lit, ok := input.GetLiteralValue()
	if !ok {
		return Value{}, false
	}
	arg := float64(lit.Float())
	var result float64
	switch reg {
	case RegSFURecip:
		result = 1.0 / arg
	case RegSFURecipSqrt:
		result = 1.0 / math.Sqrt(arg)
	case RegSFUExp2:
		result = math.Exp2(arg)
	case RegSFULog2:
		result = math.Log2(arg)
	default:
		return Value{}, false
	}
	return NewLiteralValue(NewFloatLiteral(float32(result)), TypeFloat.ToVectorType(input.Type.VectorWidth)), true
}
