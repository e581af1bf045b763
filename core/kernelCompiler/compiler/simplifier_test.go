package compiler

import (
	"testing"
)

func testConfig() *Configuration {
	cfg := DefaultConfiguration()
	return &cfg
}

// firstBodyInstruction returns the first instruction after the entry label.
func firstBodyInstruction(t *testing.T, m *Method) Instruction {
	t.Helper()
	it := m.WalkAllInstructions()
	it.NextInMethod()
	if it.IsEndOfMethod() {
		t.Fatal("method has no instructions after the entry label")
	}
	return it.Get()
}

func runPass(t *testing.T, name string, m *Method) bool {
	t.Helper()
	pass, ok := Passes[name]
	if !ok {
		t.Fatalf("unknown pass %q", name)
	}
	changed, err := pass(m, testConfig())
	if err != nil {
		t.Fatalf("pass %q failed: %v", name, err)
	}
	return changed
}

func TestSimplifyIdentityOperand(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewBinaryOperation(OpAdd, out, a, NewLiteralValue(NewLiteral(0), TypeInt32)))

	if !runPass(t, "simplify-operations", m) {
		t.Fatal("expected the addition of zero to be simplified")
	}
	mov, ok := firstBodyInstruction(t, m).(*MoveOperation)
	if !ok {
		t.Fatalf("expected a move, got %s", firstBodyInstruction(t, m).String())
	}
	if !mov.GetSource().Equals(a) {
		t.Errorf("move should copy the non-identity operand, got %s", mov.GetSource().String())
	}
}

func TestSimplifyAbsorbingOperand(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewBinaryOperation(OpAnd, out, a, NewLiteralValue(NewLiteral(0), TypeInt32)))

	if !runPass(t, "simplify-operations", m) {
		t.Fatal("expected the conjunction with zero to be simplified")
	}
	mov, ok := firstBodyInstruction(t, m).(*MoveOperation)
	if !ok {
		t.Fatalf("expected a move, got %s", firstBodyInstruction(t, m).String())
	}
	if lit, ok := mov.GetSource().GetLiteralValue(); !ok || lit.UnsignedInt() != 0 {
		t.Errorf("move should copy the absorbing element, got %s", mov.GetSource().String())
	}
}

func TestSimplifyInPlaceIdentityIsErased(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewBinaryOperation(OpAdd, a, a, NewLiteralValue(NewLiteral(0), TypeInt32)))

	if !runPass(t, "simplify-operations", m) {
		t.Fatal("expected the in-place addition of zero to be removed")
	}
	if m.CountInstructions() != 1 {
		t.Errorf("expected only the label to remain, have %d instructions", m.CountInstructions())
	}
}

func TestSimplifyXorAllOnesBecomesNot(t *testing.T) {
	for _, literalFirst := range []bool{false, true} {
		m := NewMethod("kernel")
		a := m.AddNewLocal(TypeInt32, "")
		out := m.AddNewLocal(TypeInt32, "")
		allOnes := NewLiteralValue(NewSignedLiteral(-1), TypeInt32)
		if literalFirst {
			m.AppendToEnd(NewBinaryOperation(OpXor, out, allOnes, a))
		} else {
			m.AppendToEnd(NewBinaryOperation(OpXor, out, a, allOnes))
		}

		if !runPass(t, "simplify-operations", m) {
			t.Fatal("expected the exclusive-or with all ones to be rewritten")
		}
		op, ok := firstBodyInstruction(t, m).(*Operation)
		if !ok || op.Op != OpNot {
			t.Fatalf("expected a bitwise not, got %s", firstBodyInstruction(t, m).String())
		}
		if !op.GetFirstArg().Equals(a) {
			t.Errorf("not should negate the non-literal operand, got %s", op.GetFirstArg().String())
		}
	}
}

func TestSimplifyKeepsBooleanSelfInverse(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeBool, "")
	out := m.AddNewLocal(TypeBool, "")
	m.AppendToEnd(NewBinaryOperation(OpXor, out, a, a))

	if runPass(t, "simplify-operations", m) {
		t.Fatal("boolean self-inverse must survive, it encodes an inverted condition")
	}
}

func TestSimplifySelfMoveIsErased(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(a, a))

	if !runPass(t, "simplify-operations", m) {
		t.Fatal("expected the self-move to be removed")
	}
	if m.CountInstructions() != 1 {
		t.Errorf("expected only the label to remain, have %d instructions", m.CountInstructions())
	}
}

func TestFoldConstantsAddition(t *testing.T) {
	m := NewMethod("kernel")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewBinaryOperation(OpAdd, out,
		NewLiteralValue(NewLiteral(17), TypeInt32), NewLiteralValue(NewLiteral(25), TypeInt32)))

	if !runPass(t, "fold-constants", m) {
		t.Fatal("expected the constant addition to be folded")
	}
	mov, ok := firstBodyInstruction(t, m).(*MoveOperation)
	if !ok {
		t.Fatalf("expected a move of the result, got %s", firstBodyInstruction(t, m).String())
	}
	if lit, ok := mov.GetSource().GetLiteralValue(); !ok || lit.UnsignedInt() != 42 {
		t.Errorf("expected the folded value 42, got %s", mov.GetSource().String())
	}
}

func TestFoldConstantsSkipsFlagSetters(t *testing.T) {
	m := NewMethod("kernel")
	out := m.AddNewLocal(TypeInt32, "")
	op := NewBinaryOperation(OpAdd, out,
		NewLiteralValue(NewLiteral(1), TypeInt32), NewLiteralValue(NewLiteral(2), TypeInt32))
	op.SetSetFlags(true)
	m.AppendToEnd(op)

	if runPass(t, "fold-constants", m) {
		t.Fatal("a flag-setting operation must not be folded into a plain move")
	}
}

func TestFoldConstantsSkipsConditionalSelfXor(t *testing.T) {
	m := NewMethod("kernel")
	out := m.AddNewLocal(TypeInt32, "")
	five := NewLiteralValue(NewLiteral(5), TypeInt32)
	op := NewBinaryOperation(OpXor, out, five, five)
	op.SetCondition(CondZeroSet)
	m.AppendToEnd(op)

	if runPass(t, "fold-constants", m) {
		t.Fatal("the conditional self-xor zeroing one leg of a selection must survive")
	}
}

func TestEliminateReturnCreatesEndBlock(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(1), TypeInt32)))
	m.AppendToEnd(NewReturn())

	if !runPass(t, "eliminate-return", m) {
		t.Fatal("expected the return to be lowered")
	}
	end := m.FindBasicBlockByName(LastBlockName)
	if end == nil {
		t.Fatal("expected the end-of-function block to be created")
	}
	var branch *Branch
	m.ForAllInstructions(func(inst Instruction) {
		if b, ok := inst.(*Branch); ok {
			branch = b
		}
	})
	if branch == nil {
		t.Fatal("expected the return to be replaced by a branch")
	}
	if targets := branch.GetTargetLabels(); len(targets) != 1 || targets[0] != end.GetLabel().GetLabel() {
		t.Error("branch should target the end-of-function label")
	}
}

func TestPropagateMovesLiteralSource(t *testing.T) {
	m := NewMethod("kernel")
	tmp := m.AddNewLocal(TypeInt32, "")
	other := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(tmp, NewLiteralValue(NewLiteral(4), TypeInt32)))
	m.AppendToEnd(NewBinaryOperation(OpMul24, out, tmp, other))

	changed, err := PropagateMoves(m, testConfig())
	if err != nil {
		t.Fatalf("propagation failed: %v", err)
	}
	if !changed {
		t.Fatal("expected the literal to be propagated into the reader")
	}
	var op *Operation
	m.ForAllInstructions(func(inst Instruction) {
		if o, ok := inst.(*Operation); ok {
			op = o
		}
	})
	if op == nil {
		t.Fatal("the multiplication vanished")
	}
	if lit, ok := op.GetFirstArg().GetLiteralValue(); !ok || lit.UnsignedInt() != 4 {
		t.Errorf("expected the literal operand 4, got %s", op.GetFirstArg().String())
	}
	if tmp.Local().HasUsers(UseReader) {
		t.Error("the propagated local must have no readers left")
	}
}

func TestPropagateMovesStopsAtRedefinition(t *testing.T) {
	m := NewMethod("kernel")
	tmp := m.AddNewLocal(TypeInt32, "")
	other := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(tmp, NewLiteralValue(NewLiteral(4), TypeInt32)))
	m.AppendToEnd(NewMoveOperation(tmp, other))
	m.AppendToEnd(NewBinaryOperation(OpAdd, out, tmp, tmp))

	changed, err := PropagateMoves(m, testConfig())
	if err != nil {
		t.Fatalf("propagation failed: %v", err)
	}
	_ = changed
	var op *Operation
	m.ForAllInstructions(func(inst Instruction) {
		if o, ok := inst.(*Operation); ok {
			op = o
		}
	})
	if op == nil {
		t.Fatal("the addition vanished")
	}
	// only the value of the second move may reach the addition
	if lit, ok := op.GetFirstArg().GetLiteralValue(); ok && lit.UnsignedInt() == 4 {
		t.Error("the overwritten value 4 must not be propagated past the redefinition")
	}
}

func TestRewriteConstantSFUCall(t *testing.T) {
	m := NewMethod("kernel")
	out := m.AddNewLocal(TypeFloat, "")
	input := NewLiteralValue(NewFloatLiteral(2.0), TypeFloat)
	m.AppendToEnd(NewMoveOperation(NewRegisterValue(RegSFURecip, TypeFloat), input))
	m.AppendToEnd(NewNop(DelayWaitSFU))
	m.AppendToEnd(NewNop(DelayWaitSFU))
	m.AppendToEnd(NewMoveOperation(out, NewRegisterValue(RegSFUOut, TypeFloat)))

	if !runPass(t, "rewrite-constant-sfu", m) {
		t.Fatal("expected the constant SFU call to be rewritten")
	}
	if m.CountInstructions() != 2 {
		t.Fatalf("expected only label and result move to remain, have %d instructions", m.CountInstructions())
	}
	mov, ok := firstBodyInstruction(t, m).(*MoveOperation)
	if !ok {
		t.Fatalf("expected a move of the result, got %s", firstBodyInstruction(t, m).String())
	}
	lit, ok := mov.GetSource().GetLiteralValue()
	if !ok {
		t.Fatalf("expected a literal result, got %s", mov.GetSource().String())
	}
	if lit.Float() != 0.5 {
		t.Errorf("expected the reciprocal 0.5, got %v", lit.Float())
	}
}

func TestRewriteConstantSFUCallMissingNops(t *testing.T) {
	m := NewMethod("kernel")
	out := m.AddNewLocal(TypeFloat, "")
	input := NewLiteralValue(NewFloatLiteral(4.0), TypeFloat)
	m.AppendToEnd(NewMoveOperation(NewRegisterValue(RegSFURecip, TypeFloat), input))
	m.AppendToEnd(NewNop(DelayWaitSFU))
	m.AppendToEnd(NewMoveOperation(out, NewRegisterValue(RegSFUOut, TypeFloat)))

	if _, err := Passes["rewrite-constant-sfu"](m, testConfig()); err == nil {
		t.Fatal("expected an error for the missing second delay")
	}
}

func TestSimplifyRotationOfSplatBecomesMove(t *testing.T) {
	m := NewMethod("kernel")
	out := m.AddNewLocal(TypeInt32, "")
	rot := NewRotatedMoveOperation(out, NewLiteralValue(NewLiteral(7), TypeInt32), 3)
	rot.SetCondition(CondZeroSet)
	rot.AddDecorations(DecorationUnsignedResult)
	m.AppendToEnd(rot)

	if !runPass(t, "simplify-operations", m) {
		t.Fatal("expected the rotation of a splat value to be simplified")
	}
	mov, ok := firstBodyInstruction(t, m).(*MoveOperation)
	if !ok || mov.GetVectorRotation() != nil {
		t.Fatalf("expected a plain move without rotation, got %s", firstBodyInstruction(t, m).String())
	}
	if !mov.GetSource().HasLiteral(NewLiteral(7)) {
		t.Errorf("the splat source must be kept, got %s", mov.GetSource().String())
	}
	if mov.GetCondition() != CondZeroSet || !mov.HasDecoration(DecorationUnsignedResult) {
		t.Error("condition and decorations must survive the rewrite")
	}
}

func TestSimplifyKeepsRotationOfVaryingValue(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewRotatedMoveOperation(out, a, 3))

	if runPass(t, "simplify-operations", m) {
		t.Fatal("a rotation of a per-lane varying value must be kept")
	}
	mov, ok := firstBodyInstruction(t, m).(*MoveOperation)
	if !ok || mov.GetVectorRotation() == nil {
		t.Error("the rotation must still be attached")
	}
}

func TestPropagateMovesKeepsRotatedCopy(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	b := m.AddNewLocal(TypeInt32, "")
	tmp := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewRotatedMoveOperation(tmp, a, 2))
	m.AppendToEnd(NewBinaryOperation(OpXor, out, tmp, b))

	if runPass(t, "propagate-moves", m) {
		t.Fatal("reads of a rotated copy must not be replaced with its source")
	}
	var reader *Operation
	m.ForAllInstructions(func(inst Instruction) {
		if op, ok := inst.(*Operation); ok && op.Op == OpXor {
			reader = op
		}
	})
	if reader == nil || !reader.GetFirstArg().HasLocal(tmp.Local()) {
		t.Error("the reader must keep consuming the rotated copy")
	}
}

func TestPropagateMovesGeneralPurposeRegisterStopsAtWrite(t *testing.T) {
	m := NewMethod("kernel")
	src := Register{FilePhysicalA, 5}
	a := m.AddNewLocal(TypeInt32, "")
	tmp := m.AddNewLocal(TypeInt32, "")
	out1 := m.AddNewLocal(TypeInt32, "")
	out2 := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(tmp, NewRegisterValue(src, TypeInt32)))
	m.AppendToEnd(NewBinaryOperation(OpXor, out1, tmp, a))
	m.AppendToEnd(NewMoveOperation(NewRegisterValue(src, TypeInt32), a))
	m.AppendToEnd(NewBinaryOperation(OpXor, out2, tmp, a))

	if !runPass(t, "propagate-moves", m) {
		t.Fatal("expected the register read to be propagated into the first consumer")
	}
	var readers []*Operation
	m.ForAllInstructions(func(inst Instruction) {
		if op, ok := inst.(*Operation); ok && op.Op == OpXor {
			readers = append(readers, op)
		}
	})
	if len(readers) != 2 {
		t.Fatalf("expected both consumers to remain, have %d", len(readers))
	}
	if !readers[0].GetFirstArg().HasRegister(src) {
		t.Errorf("the first consumer should read the register directly, got %s", readers[0].String())
	}
	if !readers[1].GetFirstArg().HasLocal(tmp.Local()) {
		t.Errorf("the consumer behind the register write must keep the copy, got %s", readers[1].String())
	}
}
