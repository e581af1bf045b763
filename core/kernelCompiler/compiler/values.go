package compiler

import "fmt"

// SmallImmediate is a constant that can be encoded directly into an
// instruction instead of occupying a register-file slot.
type SmallImmediate int8

// ToSmallImmediate returns the encodable form of a literal, if the literal
// fits the immediate encoding range.
func ToSmallImmediate(lit Literal) (SmallImmediate, bool) {
	v := lit.SignedInt()
	if v >= -16 && v <= 15 {
		return SmallImmediate(v), true
	}
	return 0, false
}

type ValueKind uint8

const (
	ValUndefined ValueKind = iota
	ValLocal
	ValLiteral
	ValSmallImmediate
	ValRegister
)

// Value is an instruction operand or output: a reference to a local, a
// literal constant, a small immediate, a hardware register, or undefined.
// Values are compared by structural identity.
type Value struct {
	kind  ValueKind
	local *Local
	reg   Register
	lit   Literal
	imm   SmallImmediate
	Type  DataType
}

func UndefinedValue() Value {
	return Value{kind: ValUndefined}
}

func NewLocalValue(local *Local) Value {
	return Value{kind: ValLocal, local: local, Type: local.Type}
}

func NewTypedLocalValue(local *Local, typ DataType) Value {
	return Value{kind: ValLocal, local: local, Type: typ}
}

func NewLiteralValue(lit Literal, typ DataType) Value {
	return Value{kind: ValLiteral, lit: lit, Type: typ}
}

func NewImmediateValue(imm SmallImmediate, typ DataType) Value {
	return Value{kind: ValSmallImmediate, imm: imm, Type: typ}
}

func NewRegisterValue(reg Register, typ DataType) Value {
	return Value{kind: ValRegister, reg: reg, Type: typ}
}

func (v Value) Kind() ValueKind  { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == ValUndefined }

// Equals compares by structural identity: same local, register, literal or
// immediate. The carried type does not participate.
func (v Value) Equals(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValLocal:
		return v.local == other.local
	case ValLiteral:
		return v.lit == other.lit
	case ValSmallImmediate:
		return v.imm == other.imm
	case ValRegister:
		return v.reg == other.reg
	}
	return true
}

// CheckLocal returns the referenced local or nil.
func (v Value) CheckLocal() *Local {
	if v.kind == ValLocal {
		return v.local
	}
	return nil
}

// Local returns the referenced local, which must exist.
func (v Value) Local() *Local {
	if v.local == nil {
		panic("value is not a local reference")
	}
	return v.local
}

// CheckRegister returns the referenced register, if any.
func (v Value) CheckRegister() (Register, bool) {
	if v.kind == ValRegister {
		return v.reg, true
	}
	return Register{}, false
}

func (v Value) Reg() Register { return v.reg }

// CheckLiteral returns the plain literal, if this value is one.
func (v Value) CheckLiteral() (Literal, bool) {
	if v.kind == ValLiteral {
		return v.lit, true
	}
	return Literal{}, false
}

func (v Value) CheckImmediate() (SmallImmediate, bool) {
	if v.kind == ValSmallImmediate {
		return v.imm, true
	}
	return 0, false
}

// GetLiteralValue returns the constant bit pattern for literals and small
// immediates.
func (v Value) GetLiteralValue() (Literal, bool) {
	switch v.kind {
	case ValLiteral:
		return v.lit, true
	case ValSmallImmediate:
		return NewSignedLiteral(int32(v.imm)), true
	}
	return Literal{}, false
}

func (v Value) HasLocal(local *Local) bool {
	return v.kind == ValLocal && v.local == local
}

func (v Value) HasRegister(reg Register) bool {
	return v.kind == ValRegister && v.reg == reg
}

func (v Value) HasLiteral(lit Literal) bool {
	l, ok := v.GetLiteralValue()
	return ok && l == lit
}

// GetSingleWriter returns the only instruction writing this value's local,
// if the value is a local with exactly one writer.
func (v Value) GetSingleWriter() Instruction {
	if v.kind != ValLocal {
		return nil
	}
	return v.local.GetSingleWriter()
}

// GetConstantValue resolves this value to a constant, either directly or
// through its single writing instruction.
func (v Value) GetConstantValue() (Value, bool) {
	switch v.kind {
	case ValLiteral, ValSmallImmediate:
		return v, true
	case ValLocal:
		if writer := v.local.GetSingleWriter(); writer != nil {
			return writer.Precalculate(1)
		}
	}
	return Value{}, false
}

// IsAllSame reports whether all vector elements of this value are known to
// hold the same scalar, e.g. for scalar constants and the all-element
// replication register.
func (v Value) IsAllSame() bool {
	switch v.kind {
	case ValLiteral, ValSmallImmediate:
		return true
	case ValRegister:
		return v.reg == RegReplicateAll
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case ValLocal:
		return v.local.Name
	case ValLiteral:
		if v.Type.Float {
			return fmt.Sprintf("%g", v.lit.Float())
		}
		return v.lit.String()
	case ValSmallImmediate:
		return fmt.Sprintf("%d", v.imm)
	case ValRegister:
		return v.reg.String()
	}
	return "undef"
}
