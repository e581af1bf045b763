package compiler

import (
	"testing"
)

func TestWalkerTraversesAllBlocks(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(a, NewLiteralValue(NewLiteral(1), TypeInt32)))
	m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%second")
	m.AppendToEnd(NewMoveOperation(a, NewLiteralValue(NewLiteral(2), TypeInt32)))

	count := 0
	for it := m.WalkAllInstructions(); !it.IsEndOfMethod(); it.NextInMethod() {
		count++
	}
	if count != 4 {
		t.Errorf("expected 4 instructions across both blocks, visited %d", count)
	}
	if count != m.CountInstructions() {
		t.Errorf("walker count %d disagrees with instruction count %d", count, m.CountInstructions())
	}
}

func TestWalkerEraseReleasesUses(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	b := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(b, a))

	it := m.WalkAllInstructions()
	it.NextInMethod()
	it.Erase()
	if a.Local().HasUsers(UseReader) {
		t.Error("erasing the instruction must deregister the read")
	}
	if b.Local().HasUsers(UseWriter) {
		t.Error("erasing the instruction must deregister the write")
	}
	if m.CountInstructions() != 1 {
		t.Errorf("expected only the label to remain, have %d instructions", m.CountInstructions())
	}
}

func TestWalkerReleaseKeepsUses(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	b := m.AddNewLocal(TypeInt32, "")
	mov := NewMoveOperation(b, a)
	m.AppendToEnd(mov)

	it := m.WalkAllInstructions()
	it.NextInMethod()
	released := it.Release()
	if released != Instruction(mov) {
		t.Fatal("release must hand back the detached instruction")
	}
	if !a.Local().HasUsers(UseReader) || !b.Local().HasUsers(UseWriter) {
		t.Error("a released instruction keeps its use registrations")
	}
	if m.CountInstructions() != 1 {
		t.Errorf("the released instruction must leave the stream, have %d instructions", m.CountInstructions())
	}
}

func TestWalkerResetSwapsUses(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	b := m.AddNewLocal(TypeInt32, "")
	c := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(b, a))

	it := m.WalkAllInstructions()
	it.NextInMethod()
	it.Reset(NewMoveOperation(b, c))
	if a.Local().HasUsers(UseReader) {
		t.Error("the replaced instruction must release its read")
	}
	if !c.Local().HasUsers(UseReader) {
		t.Error("the replacement must register its read")
	}
	if writers := b.Local().CountUsers(UseWriter); writers != 1 {
		t.Errorf("expected exactly one writer of the output, have %d", writers)
	}
}

func TestWalkerEmplaceInsertsBeforeCursor(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(a, NewLiteralValue(NewLiteral(2), TypeInt32)))

	it := m.WalkAllInstructions()
	it.NextInMethod()
	it.Emplace(NewMoveOperation(a, NewLiteralValue(NewLiteral(1), TypeInt32)))
	if m.CountInstructions() != 3 {
		t.Fatalf("expected 3 instructions, have %d", m.CountInstructions())
	}
	// the cursor still points at the original instruction
	mov, ok := it.Get().(*MoveOperation)
	if !ok {
		t.Fatalf("cursor moved away from the original instruction, got %s", it.Get().String())
	}
	if lit, ok := mov.GetSource().GetLiteralValue(); !ok || lit.UnsignedInt() != 2 {
		t.Errorf("cursor should stay on the original move, got %s", mov.GetSource().String())
	}
	prev := it.Copy()
	prev.PreviousInBlock()
	emplaced, ok := prev.Get().(*MoveOperation)
	if !ok {
		t.Fatal("expected the emplaced move before the cursor")
	}
	if lit, ok := emplaced.GetSource().GetLiteralValue(); !ok || lit.UnsignedInt() != 1 {
		t.Errorf("the emplaced instruction should precede the original, got %s", emplaced.GetSource().String())
	}
}

func TestWalkerEraseRemovesBranchEdge(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(0), TypeInt32)))
	target := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%target")
	entry := m.GetBasicBlocks()[0]
	m.AppendToEnd(NewBranch(entry.GetLabel().GetLabel()))

	cfg := m.GetCFG()
	hasEdge := func() bool {
		for _, s := range cfg.GetSuccessors(target) {
			if s == entry {
				return true
			}
		}
		return false
	}
	if !hasEdge() {
		t.Fatal("expected the branch edge before removal")
	}

	it := target.Walk()
	it.NextInBlock()
	if _, ok := it.Get().(*Branch); !ok {
		t.Fatalf("expected the branch, got %s", it.Get().String())
	}
	it.Erase()
	if hasEdge() {
		t.Error("erasing the branch must drop the edge from the graph")
	}
}
