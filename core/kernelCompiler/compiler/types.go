package compiler

import (
	"fmt"
	"math"
)

// DataType describes the semantic type of a value: the scalar bit width, the
// number of vector elements and whether the scalar is a float or signed
// integer. Types are compared by value.
type DataType struct {
	ScalarBits  uint8
	VectorWidth uint8
	Float       bool
	Signed      bool
}

var (
	TypeUnknown = DataType{}
	TypeVoid    = DataType{ScalarBits: 0, VectorWidth: 1}
	TypeLabel   = DataType{ScalarBits: 0, VectorWidth: 0, Signed: true}
	TypeBool    = DataType{ScalarBits: 1, VectorWidth: 1}
	TypeInt8    = DataType{ScalarBits: 8, VectorWidth: 1, Signed: true}
	TypeInt16   = DataType{ScalarBits: 16, VectorWidth: 1, Signed: true}
	TypeInt32   = DataType{ScalarBits: 32, VectorWidth: 1, Signed: true}
	TypeInt64   = DataType{ScalarBits: 64, VectorWidth: 1, Signed: true}
	TypeFloat   = DataType{ScalarBits: 32, VectorWidth: 1, Float: true}
)

// ToVectorType returns the same scalar type with the given number of elements.
func (t DataType) ToVectorType(width uint8) DataType {
	t.VectorWidth = width
	return t
}

// ElementType strips the vector width off the type.
func (t DataType) ElementType() DataType {
	t.VectorWidth = 1
	return t
}

func (t DataType) IsLabel() bool {
	return t == TypeLabel
}

// IsSimpleType reports whether this is a plain scalar or vector type, i.e.
// neither a label nor unknown.
func (t DataType) IsSimpleType() bool {
	return t.ScalarBits > 0
}

func (t DataType) String() string {
	if t == TypeLabel {
		return "label"
	}
	if t.ScalarBits == 0 {
		return "?"
	}
	base := ""
	switch {
	case t.Float:
		base = "f32"
	case t.ScalarBits == 1:
		base = "bool"
	default:
		base = fmt.Sprintf("i%d", t.ScalarBits)
	}
	if t.VectorWidth > 1 {
		return fmt.Sprintf("<%d x %s>", t.VectorWidth, base)
	}
	return base
}

// Literal is a 32-bit constant bit pattern. The same pattern can be viewed as
// a signed integer, an unsigned integer or a binary32 float, depending on the
// type of the value carrying it.
type Literal struct {
	bits uint32
}

func NewLiteral(u uint32) Literal {
	return Literal{bits: u}
}

func NewSignedLiteral(i int32) Literal {
	return Literal{bits: uint32(i)}
}

func NewFloatLiteral(f float32) Literal {
	return Literal{bits: math.Float32bits(f)}
}

func NewBoolLiteral(b bool) Literal {
	if b {
		return Literal{bits: 1}
	}
	return Literal{bits: 0}
}

func (l Literal) UnsignedInt() uint32 { return l.bits }
func (l Literal) SignedInt() int32    { return int32(l.bits) }
func (l Literal) Float() float32      { return math.Float32frombits(l.bits) }
func (l Literal) IsTrue() bool        { return l.bits != 0 }

func (l Literal) String() string {
	return fmt.Sprintf("%d", l.SignedInt())
}
