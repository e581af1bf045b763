package compiler

import (
	"fmt"
	"strings"
)

// SubExpression is one operand of an Expression: either a plain value or a
// nested expression.
type SubExpression struct {
	value Value
	expr  *Expression
}

func NewValueSubExpression(value Value) SubExpression {
	return SubExpression{value: value}
}

func NewExprSubExpression(expr *Expression) SubExpression {
	return SubExpression{expr: expr}
}

// CheckValue returns the plain value, if this operand is one.
func (s SubExpression) CheckValue() (Value, bool) {
	if s.expr != nil {
		return Value{}, false
	}
	return s.value, true
}

// CheckExpression returns the nested expression, or nil.
func (s SubExpression) CheckExpression() *Expression { return s.expr }

// GetLiteralValue resolves the operand to a constant bit pattern, if
// possible.
func (s SubExpression) GetLiteralValue() (Literal, bool) {
	if s.expr != nil {
		if val, ok := s.expr.GetConstantExpression(); ok {
			return val.GetLiteralValue()
		}
		return Literal{}, false
	}
	return s.value.GetLiteralValue()
}

func (s SubExpression) key() string {
	if s.expr != nil {
		return "(" + s.expr.key() + ")"
	}
	if lit, ok := s.value.GetLiteralValue(); ok {
		// literals and equal small immediates compare equal
		return fmt.Sprintf("#%d", lit.UnsignedInt())
	}
	if local := s.value.CheckLocal(); local != nil {
		return local.Name
	}
	if reg, ok := s.value.CheckRegister(); ok {
		return reg.String()
	}
	return "undef"
}

func (s SubExpression) String() string {
	if s.expr != nil {
		return "(" + s.expr.String() + ")"
	}
	return s.value.String()
}

// Expression is the canonical value-level form of a computation, abstracted
// over the concrete instruction producing it. Two instructions computing the
// same expression produce the same canonical key, with commutative operands
// in a normalized order.
type Expression struct {
	Code        OpCode
	Arg0        SubExpression
	Arg1        SubExpression
	hasArg1     bool
	UnpackMode  Unpack
	PackMode    Pack
	Decorations InstructionDecorations
	// OutputType is the type of the value the expression computes.
	OutputType DataType
}

func newExpression(code OpCode, outputType DataType, arg0 SubExpression) *Expression {
	return &Expression{Code: code, OutputType: outputType, Arg0: arg0}
}

func newBinaryExpression(code OpCode, outputType DataType, arg0, arg1 SubExpression) *Expression {
	return &Expression{Code: code, OutputType: outputType, Arg0: arg0, Arg1: arg1, hasArg1: true}
}

// CreateExpression derives the value-level expression computed by the
// instruction. Instructions with conditional execution, side effects or a
// vector rotation have no derivable expression, their result is not a pure
// function of their arguments.
func CreateExpression(inst Instruction) *Expression {
	if inst == nil || inst.HasConditionalExecution() || inst.HasSideEffects() || inst.GetVectorRotation() != nil {
		return nil
	}
	out, ok := inst.GetOutput()
	if !ok {
		return nil
	}
	switch op := inst.(type) {
	case *Operation:
		var expr *Expression
		if second, hasSecond := op.GetSecondArg(); hasSecond {
			expr = newBinaryExpression(op.Op, out.Type, NewValueSubExpression(op.GetFirstArg()), NewValueSubExpression(second))
		} else {
			expr = newExpression(op.Op, out.Type, NewValueSubExpression(op.GetFirstArg()))
		}
		expr.UnpackMode = op.GetUnpackMode()
		expr.PackMode = op.GetPackMode()
		expr.Decorations = op.Decorations()
		return expr
	case *MoveOperation:
		expr := newExpression(OpMov, out.Type, NewValueSubExpression(op.GetSource()))
		expr.UnpackMode = op.GetUnpackMode()
		expr.PackMode = op.GetPackMode()
		expr.Decorations = op.Decorations()
		return expr
	case *LoadImmediate:
		expr := newExpression(OpMov, out.Type, NewValueSubExpression(NewLiteralValue(op.GetImmediate(), out.Type)))
		expr.Decorations = op.Decorations()
		return expr
	}
	return nil
}

// CreateRecursiveExpression expands the expression tree across the single
// writers of local operands, up to the given depth, folding constant
// sub-expressions back into plain values.
func CreateRecursiveExpression(inst Instruction, depth int) *Expression {
	expr := CreateExpression(inst)
	if expr == nil || depth <= 0 {
		return expr
	}
	expr.Arg0 = expandSubExpression(expr.Arg0, depth)
	if expr.hasArg1 {
		expr.Arg1 = expandSubExpression(expr.Arg1, depth)
	}
	return expr
}

func expandSubExpression(sub SubExpression, depth int) SubExpression {
	value, ok := sub.CheckValue()
	if !ok {
		return sub
	}
	local := value.CheckLocal()
	if local == nil {
		return sub
	}
	writer := local.GetSingleWriter()
	if writer == nil {
		return sub
	}
	inner := CreateRecursiveExpression(writer, depth-1)
	if inner == nil {
		return sub
	}
	if constant, ok := inner.GetConstantExpression(); ok {
		return NewValueSubExpression(constant)
	}
	return NewExprSubExpression(inner)
}

// HasSecondArg reports whether the expression is binary.
func (e *Expression) HasSecondArg() bool { return e.hasArg1 }

// GetConstantExpression resolves the expression to a single constant value,
// if all operands are constant and no data conversion applies.
func (e *Expression) GetConstantExpression() (Value, bool) {
	if e.UnpackMode != UnpackNone || e.PackMode != PackNone {
		return Value{}, false
	}
	firstLit, ok := e.Arg0.GetLiteralValue()
	if !ok {
		return Value{}, false
	}
	if e.Code == OpMov {
		return NewLiteralValue(firstLit, e.OutputType), true
	}
	secondLit := Literal{}
	if e.hasArg1 {
		if secondLit, ok = e.Arg1.GetLiteralValue(); !ok {
			return Value{}, false
		}
	} else if e.Code.NumOperands() > 1 {
		return Value{}, false
	}
	result, ok := e.Code.CalcLiteral(firstLit, secondLit)
	if !ok {
		return Value{}, false
	}
	return NewLiteralValue(result, e.OutputType), true
}

// IsConstant reports whether the expression resolves to a constant.
func (e *Expression) IsConstant() bool {
	_, ok := e.GetConstantExpression()
	return ok
}

// key returns the canonical identity of the expression. Operands of
// commutative operations are ordered by their keys, so both operand orders
// map to the same key.
func (e *Expression) key() string {
	first := e.Arg0.key()
	if !e.hasArg1 {
		return fmt.Sprintf("%s/%d/%d %s", e.Code, e.UnpackMode, e.PackMode, first)
	}
	second := e.Arg1.key()
	if e.Code.IsCommutative() && second < first {
		first, second = second, first
	}
	return fmt.Sprintf("%s/%d/%d %s %s", e.Code, e.UnpackMode, e.PackMode, first, second)
}

// Key returns the canonical identity of the expression, usable as cache key.
func (e *Expression) Key() string { return e.key() }

// References reports whether the expression reads the given local, directly
// or within a nested sub-expression.
func (e *Expression) References(local *Local) bool {
	return subExpressionReferences(e.Arg0, local) || (e.hasArg1 && subExpressionReferences(e.Arg1, local))
}

func subExpressionReferences(sub SubExpression, local *Local) bool {
	if value, ok := sub.CheckValue(); ok {
		return value.HasLocal(local)
	}
	if inner := sub.CheckExpression(); inner != nil {
		return inner.References(local)
	}
	return false
}

// IsEqual reports whether both expressions compute the same value.
func (e *Expression) IsEqual(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.key() == other.key()
}

func (e *Expression) String() string {
	parts := []string{e.Arg0.String()}
	if e.hasArg1 {
		parts = append(parts, e.Arg1.String())
	}
	return fmt.Sprintf("%s %s", e.Code, strings.Join(parts, ", "))
}

// CombineWith tries to fold this expression with the in-flight expressions
// still being computed for its local operands, collapsing two constant
// operands of an associative operator chain into one. Returns the combined
// expression, or nil if no combination applies.
func (e *Expression) CombineWith(inflight map[*Local]*Expression) *Expression {
	if !e.hasArg1 || e.UnpackMode != UnpackNone || e.PackMode != PackNone {
		return nil
	}
	// one operand must be the chained local, the other a constant
	innerExpr, otherArg := e.findInflightOperand(inflight)
	if innerExpr == nil {
		return nil
	}
	outerLit, ok := otherArg.GetLiteralValue()
	if !ok {
		return nil
	}
	if innerExpr.UnpackMode != UnpackNone || innerExpr.PackMode != PackNone || !innerExpr.hasArg1 {
		return nil
	}

	if e.Code == OpShl && innerExpr.Code == OpShl {
		// (x << a) << b == x << (a + b), both offsets below the lane width
		innerLit, ok := innerExpr.Arg1.GetLiteralValue()
		if !ok {
			return nil
		}
		if innerLit.UnsignedInt()+outerLit.UnsignedInt() >= 32 {
			return nil
		}
		sum, _ := OpAdd.CalcLiteral(innerLit, outerLit)
		return newBinaryExpression(OpShl, e.OutputType, innerExpr.Arg0,
			NewValueSubExpression(NewLiteralValue(sum, TypeInt32)))
	}

	if e.Code != innerExpr.Code || !e.Code.IsAssociative() || !e.Code.IsCommutative() {
		return nil
	}
	innerLit, innerOther, ok := innerExpr.splitConstantOperand()
	if !ok {
		return nil
	}
	folded, ok := e.Code.CalcLiteral(innerLit, outerLit)
	if !ok {
		return nil
	}
	litType := TypeInt32
	if e.Code.ReturnsFloat() {
		litType = TypeFloat
	}
	return newBinaryExpression(e.Code, e.OutputType, innerOther,
		NewValueSubExpression(NewLiteralValue(folded, litType)))
}

// findInflightOperand returns the in-flight expression computing one of the
// local operands, together with the other operand.
func (e *Expression) findInflightOperand(inflight map[*Local]*Expression) (*Expression, SubExpression) {
	if value, ok := e.Arg0.CheckValue(); ok {
		if local := value.CheckLocal(); local != nil {
			if inner := inflight[local]; inner != nil {
				return inner, e.Arg1
			}
		}
	}
	if value, ok := e.Arg1.CheckValue(); ok {
		if local := value.CheckLocal(); local != nil {
			if inner := inflight[local]; inner != nil {
				return inner, e.Arg0
			}
		}
	}
	return nil, SubExpression{}
}

// splitConstantOperand separates a binary expression into its constant
// operand and the remaining one.
func (e *Expression) splitConstantOperand() (Literal, SubExpression, bool) {
	if lit, ok := e.Arg0.GetLiteralValue(); ok {
		return lit, e.Arg1, true
	}
	if lit, ok := e.Arg1.GetLiteralValue(); ok {
		return lit, e.Arg0, true
	}
	return Literal{}, SubExpression{}, false
}

// InsertInstructions materializes the expression into instructions emplaced
// before the walker position, writing the final result to output. Nested
// sub-expressions are computed into fresh temporaries.
func (e *Expression) InsertInstructions(it *InstructionWalker, method *Method, output Value) {
	first := materializeOperand(it, method, e.Arg0)
	var inst Instruction
	if e.Code == OpMov {
		inst = NewMoveOperation(output, first)
	} else if e.hasArg1 {
		second := materializeOperand(it, method, e.Arg1)
		inst = NewBinaryOperation(e.Code, output, first, second)
	} else {
		inst = NewOperation(e.Code, output, first)
	}
	inst.SetUnpackMode(e.UnpackMode)
	inst.SetPackMode(e.PackMode)
	inst.AddDecorations(e.Decorations)
	it.Emplace(inst)
	it.NextInBlock()
}

func materializeOperand(it *InstructionWalker, method *Method, sub SubExpression) Value {
	if value, ok := sub.CheckValue(); ok {
		return value
	}
	expr := sub.CheckExpression()
	tmp := method.AddNewLocal(expr.OutputType, "%cse")
	expr.InsertInstructions(it, method, tmp)
	return tmp
}
