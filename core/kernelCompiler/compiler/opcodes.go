package compiler

import (
	"math"
	"math/bits"
)

// OpCode enumerates the ALU operations of the target. OpMov is not a hardware
// operation, it is the pseudo-opcode used for moves inside expression trees.
type OpCode uint8

const (
	OpNop OpCode = iota
	OpMov
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpAsr
	OpRor
	OpMin
	OpMax
	OpClz
	OpMul24
	OpFAdd
	OpFSub
	OpFMul
	OpFMin
	OpFMax
)

var opCodeNames = map[OpCode]string{
	OpNop: "nop", OpMov: "mov", OpAdd: "add", OpSub: "sub", OpAnd: "and",
	OpOr: "or", OpXor: "xor", OpNot: "not", OpShl: "shl", OpShr: "shr",
	OpAsr: "asr", OpRor: "ror", OpMin: "min", OpMax: "max", OpClz: "clz",
	OpMul24: "mul24", OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul",
	OpFMin: "fmin", OpFMax: "fmax",
}

func (op OpCode) String() string {
	if name, ok := opCodeNames[op]; ok {
		return name
	}
	return "?"
}

// NumOperands returns the operand count, 1 for the unary operations.
func (op OpCode) NumOperands() int {
	switch op {
	case OpNot, OpClz, OpMov:
		return 1
	case OpNop:
		return 0
	}
	return 2
}

// ReturnsFloat reports whether the result is a binary32 float.
func (op OpCode) ReturnsFloat() bool {
	switch op {
	case OpFAdd, OpFSub, OpFMul, OpFMin, OpFMax:
		return true
	}
	return false
}

// IsIdempotent reports f(a, a) == a.
func (op OpCode) IsIdempotent() bool {
	switch op {
	case OpAnd, OpOr, OpMin, OpMax, OpFMin, OpFMax:
		return true
	}
	return false
}

// IsSelfInverse reports f(a, a) == 0.
func (op OpCode) IsSelfInverse() bool {
	switch op {
	case OpSub, OpXor, OpFSub:
		return true
	}
	return false
}

// IsCommutative reports f(a, b) == f(b, a).
func (op OpCode) IsCommutative() bool {
	switch op {
	case OpAdd, OpAnd, OpOr, OpXor, OpMin, OpMax, OpMul24, OpFAdd, OpFMul, OpFMin, OpFMax:
		return true
	}
	return false
}

// IsAssociative reports f(f(a, b), c) == f(a, f(b, c)). Float addition and
// multiplication are treated as associative, the same liberty the hardware
// documentation takes for the purpose of constant folding.
func (op OpCode) IsAssociative() bool {
	switch op {
	case OpAdd, OpAnd, OpOr, OpXor, OpMin, OpMax, OpFAdd, OpFMul, OpFMin, OpFMax:
		return true
	}
	return false
}

func intValue(i int32) Value   { return NewLiteralValue(NewSignedLiteral(i), TypeInt32) }
func floatValue(f float32) Value { return NewLiteralValue(NewFloatLiteral(f), TypeFloat) }

// RightIdentity returns e with f(a, e) == a, if the operation has one.
func (op OpCode) RightIdentity() (Value, bool) {
	switch op {
	case OpAdd, OpSub, OpOr, OpXor, OpShl, OpShr, OpAsr, OpRor:
		return intValue(0), true
	case OpAnd:
		return intValue(-1), true
	case OpMul24:
		return intValue(1), true
	case OpFAdd, OpFSub:
		return floatValue(0), true
	case OpFMul:
		return floatValue(1), true
	case OpMin:
		return intValue(math.MaxInt32), true
	case OpMax:
		return intValue(math.MinInt32), true
	}
	return Value{}, false
}

// LeftIdentity returns e with f(e, a) == a, if the operation has one.
func (op OpCode) LeftIdentity() (Value, bool) {
	if !op.IsCommutative() {
		return Value{}, false
	}
	return op.RightIdentity()
}

// RightAbsorbingElement returns e with f(a, e) == e, if the operation has one.
func (op OpCode) RightAbsorbingElement() (Value, bool) {
	switch op {
	case OpAnd:
		return intValue(0), true
	case OpOr:
		return intValue(-1), true
	case OpMul24:
		return intValue(0), true
	case OpMin:
		return intValue(math.MinInt32), true
	case OpMax:
		return intValue(math.MaxInt32), true
	}
	return Value{}, false
}

// LeftAbsorbingElement returns e with f(e, a) == e, if the operation has one.
func (op OpCode) LeftAbsorbingElement() (Value, bool) {
	switch op {
	case OpShl, OpShr, OpAsr:
		// 0 shifted by anything stays 0
		return intValue(0), true
	}
	return op.RightAbsorbingElement()
}

// CalcLiteral evaluates the operation on literal operands. For unary
// operations the second literal is ignored.
func (op OpCode) CalcLiteral(a, b Literal) (Literal, bool) {
	switch op {
	case OpMov:
		return a, true
	case OpAdd:
		return NewLiteral(a.UnsignedInt() + b.UnsignedInt()), true
	case OpSub:
		return NewLiteral(a.UnsignedInt() - b.UnsignedInt()), true
	case OpAnd:
		return NewLiteral(a.UnsignedInt() & b.UnsignedInt()), true
	case OpOr:
		return NewLiteral(a.UnsignedInt() | b.UnsignedInt()), true
	case OpXor:
		return NewLiteral(a.UnsignedInt() ^ b.UnsignedInt()), true
	case OpNot:
		return NewLiteral(^a.UnsignedInt()), true
	case OpShl:
		return NewLiteral(a.UnsignedInt() << (b.UnsignedInt() & 0x1F)), true
	case OpShr:
		return NewLiteral(a.UnsignedInt() >> (b.UnsignedInt() & 0x1F)), true
	case OpAsr:
		return NewSignedLiteral(a.SignedInt() >> (b.UnsignedInt() & 0x1F)), true
	case OpRor:
		return NewLiteral(bits.RotateLeft32(a.UnsignedInt(), -int(b.UnsignedInt()&0x1F))), true
	case OpMin:
		if a.SignedInt() < b.SignedInt() {
			return a, true
		}
		return b, true
	case OpMax:
		if a.SignedInt() > b.SignedInt() {
			return a, true
		}
		return b, true
	case OpClz:
		return NewLiteral(uint32(bits.LeadingZeros32(a.UnsignedInt()))), true
	case OpMul24:
		return NewLiteral((a.UnsignedInt() & 0xFFFFFF) * (b.UnsignedInt() & 0xFFFFFF)), true
	case OpFAdd:
		return NewFloatLiteral(a.Float() + b.Float()), true
	case OpFSub:
		return NewFloatLiteral(a.Float() - b.Float()), true
	case OpFMul:
		return NewFloatLiteral(a.Float() * b.Float()), true
	case OpFMin:
		return NewFloatLiteral(float32(math.Min(float64(a.Float()), float64(b.Float())))), true
	case OpFMax:
		return NewFloatLiteral(float32(math.Max(float64(a.Float()), float64(b.Float())))), true
	}
	return Literal{}, false
}
