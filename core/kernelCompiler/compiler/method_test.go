package compiler

import (
	"errors"
	"testing"
)

func TestCreateLocalRejectsDuplicate(t *testing.T) {
	m := NewMethod("kernel")
	if _, err := m.CreateLocal(TypeInt32, "%val"); err != nil {
		t.Fatalf("creating the local failed: %v", err)
	}
	_, err := m.CreateLocal(TypeInt32, "%val")
	if err == nil {
		t.Fatal("expected an error for the duplicate name")
	}
	var compErr *CompilationError
	if !errors.As(err, &compErr) || compErr.Step != StepGeneral {
		t.Errorf("expected a general compilation error, got %v", err)
	}
}

func TestAddNewLocalNaming(t *testing.T) {
	m := NewMethod("kernel")
	first := m.AddNewLocal(TypeInt32, "")
	second := m.AddNewLocal(TypeInt32, "")
	named := m.AddNewLocal(TypeInt32, "%offset")
	if first.Local().Name == second.Local().Name {
		t.Error("temporaries must get distinct names")
	}
	if named.Local().Name == first.Local().Name {
		t.Error("prefixed temporaries must not collide with plain ones")
	}
	if m.FindLocal(named.Local().Name) != named.Local() {
		t.Error("the new local must be registered under its name")
	}
}

func TestFindOrCreateBuiltinIsIdempotent(t *testing.T) {
	m := NewMethod("kernel")
	first, err := m.FindOrCreateBuiltin(BuiltinLocalSizes)
	if err != nil {
		t.Fatalf("creating builtin failed: %v", err)
	}
	second, err := m.FindOrCreateBuiltin(BuiltinLocalSizes)
	if err != nil {
		t.Fatalf("looking up builtin failed: %v", err)
	}
	if first != second {
		t.Error("the builtin local must be created only once")
	}
	if !m.MetaData.UniformsUsed.IsUsed(BuiltinLocalSizes) {
		t.Error("creating the builtin must mark its uniform as used")
	}
}

func TestEmplaceLabelSplitsBlock(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	for i := 0; i < 4; i++ {
		m.AppendToEnd(NewMoveOperation(a, NewLiteralValue(NewLiteral(uint32(i)), TypeInt32)))
	}

	it := m.WalkAllInstructions()
	it.NextInMethod()
	it.NextInMethod()
	it.NextInMethod()
	labelLocal, err := m.CreateLocal(TypeLabel, "%split")
	if err != nil {
		t.Fatalf("creating label local failed: %v", err)
	}
	newIt, err := m.EmplaceLabel(it, NewBranchLabel(labelLocal))
	if err != nil {
		t.Fatalf("emplacing label failed: %v", err)
	}
	if _, ok := newIt.Get().(*BranchLabel); !ok {
		t.Fatalf("the walker should point at the inserted label, got %s", newIt.Get().String())
	}

	blocks := m.GetBasicBlocks()
	if len(blocks) != 2 {
		t.Fatalf("expected two blocks after the split, have %d", len(blocks))
	}
	if got := m.FindBasicBlockByName("%split"); got != blocks[1] {
		t.Error("the new block must be findable by its label name")
	}
	// 2 moves stay in front of the split, 2 follow the new label
	if n := len(blocks[1].instructions); n != 3 {
		t.Errorf("expected the label and two moved instructions in the new block, have %d", n)
	}
}

func TestRemoveBlockKeepsNonEmptyBlock(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(0), TypeInt32)))
	target := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%target")
	// appended instructions land in the last block
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(1), TypeInt32)))

	if m.RemoveBlock(target, false) {
		t.Error("a block with instructions must not be removed")
	}
	if len(m.GetBasicBlocks()) != 2 {
		t.Errorf("expected both blocks to survive, have %d", len(m.GetBasicBlocks()))
	}
}

func TestRemoveEmptyBlock(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(0), TypeInt32)))
	empty := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%empty")

	if !m.RemoveBlock(empty, false) {
		t.Fatal("expected the empty unreferenced block to be removed")
	}
	if len(m.GetBasicBlocks()) != 1 {
		t.Errorf("expected a single remaining block, have %d", len(m.GetBasicBlocks()))
	}
}

func TestCFGFollowsBranchInsertion(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(0), TypeInt32)))
	target := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%target")

	cfg := m.GetCFG()
	entry := m.GetBasicBlocks()[0]
	preds := cfg.GetPredecessors(target)
	if len(preds) != 1 || preds[0] != entry {
		t.Fatal("the new block should start as fallthrough successor of the entry")
	}

	// an unconditional branch from the target back to the entry must show
	// up in the incrementally patched graph
	entryLabel := entry.GetLabel().GetLabel()
	m.AppendToEnd(NewBranch(entryLabel))
	succs := cfg.GetSuccessors(target)
	found := false
	for _, s := range succs {
		if s == entry {
			found = true
		}
	}
	if !found {
		t.Error("the branch edge should be patched into the existing graph")
	}
}

func TestIsLocallyLimitedWithinWindow(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	tmp := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(tmp, a))
	m.AppendToEnd(NewBinaryOperation(OpAdd, out, tmp, a))

	it := m.WalkAllInstructions()
	it.NextInMethod()
	if !m.IsLocallyLimited(it, tmp.Local(), 2) {
		t.Error("both uses lie within two instructions of the write")
	}
}

func TestIsLocallyLimitedExceedsWindow(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	tmp := m.AddNewLocal(TypeInt32, "")
	out := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(tmp, a))
	for i := 0; i < 5; i++ {
		m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), a))
	}
	m.AppendToEnd(NewBinaryOperation(OpAdd, out, tmp, a))

	it := m.WalkAllInstructions()
	it.NextInMethod()
	if m.IsLocallyLimited(it, tmp.Local(), 2) {
		t.Error("the distant read lies outside the threshold window")
	}
}

func TestIsLocallyLimitedCountsPrecedingWrite(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	flag := m.AddNewLocal(TypeBool, "")
	m.AppendToEnd(NewMoveOperation(flag, a))
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), flag))

	// position the walker on the reader, the write directly before still
	// counts towards the usage window
	it := m.WalkAllInstructions()
	it.NextInMethod()
	it.NextInMethod()
	if !m.IsLocallyLimited(it, flag.Local(), 0) {
		t.Error("writer directly before and reader at the position are both in range")
	}
}

func TestIsLocallyLimitedUnconditionalBranch(t *testing.T) {
	m := NewMethod("kernel")
	a := m.AddNewLocal(TypeInt32, "")
	tmp := m.AddNewLocal(TypeInt32, "")
	m.AppendToEnd(NewMoveOperation(tmp, a))
	next := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%next")
	far := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%far")
	// jump over the block holding the remaining use
	farIt := far.WalkEnd()
	farIt.Emplace(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), tmp))
	entryIt := m.GetBasicBlocks()[0].WalkEnd()
	entryIt.Emplace(NewBranch(next.GetLabel().GetLabel()))
	_ = next

	it := m.WalkAllInstructions()
	it.NextInMethod()
	if m.IsLocallyLimited(it, tmp.Local(), 1) {
		t.Error("a use behind an unconditional branch to another block is not locally limited")
	}
}

func TestStackLayout(t *testing.T) {
	m := NewMethod("kernel")
	m.AddStackAllocation(TypeInt32, "%small", 4, 4)
	m.AddStackAllocation(TypeInt32.ToVectorType(4), "%big", 16, 16)
	m.GlobalDataSize = 20

	m.CalculateStackOffsets()
	small := m.FindStackAllocation("%small")
	big := m.FindStackAllocation("%big")
	if small == nil || big == nil {
		t.Fatal("stack allocations must be findable by name")
	}
	if big.Offset != 0 {
		t.Errorf("the most aligned allocation should come first, got offset %d", big.Offset)
	}
	if small.Offset < big.Offset+big.Size {
		t.Errorf("allocations must not overlap, small at %d", small.Offset)
	}
	size := m.CalculateStackSize()
	if size < 20 {
		t.Errorf("the stack frame must cover all allocations, got %d", size)
	}
	if size%8 != 0 {
		t.Errorf("the stack frame is aligned to 8 bytes, got %d", size)
	}
	if base := m.GetStackBaseOffset(); base < m.GlobalDataSize {
		t.Errorf("the stack base lies behind the global data, got %d", base)
	}
}

func TestMoveBlockReordersAndRebuildsCFG(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(0), TypeInt32)))
	second := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%second")
	third := m.CreateAndInsertNewBlock(len(m.GetBasicBlocks()), "%third")

	m.MoveBlock(2, 1)
	blocks := m.GetBasicBlocks()
	if len(blocks) != 3 || blocks[1] != third || blocks[2] != second {
		t.Fatal("expected the third block to be moved before the second")
	}
	cfg := m.GetCFG()
	if preds := cfg.GetPredecessors(third); len(preds) != 1 || preds[0] != blocks[0] {
		t.Error("the moved block should fall through from the entry")
	}
	if succs := cfg.GetSuccessors(third); len(succs) != 1 || succs[0] != second {
		t.Error("the moved block should fall through into the former second block")
	}
}

func TestMoveBlockIgnoresInvalidPositions(t *testing.T) {
	m := NewMethod("kernel")
	m.AppendToEnd(NewMoveOperation(m.AddNewLocal(TypeInt32, ""), NewLiteralValue(NewLiteral(0), TypeInt32)))
	entry := m.GetBasicBlocks()[0]

	m.MoveBlock(0, 5)
	m.MoveBlock(-1, 0)
	if blocks := m.GetBasicBlocks(); len(blocks) != 1 || blocks[0] != entry {
		t.Error("out-of-range moves must leave the block list untouched")
	}
}

func TestAddGlobalMovesStackBase(t *testing.T) {
	m := NewMethod("kernel")
	base := m.GetStackBaseOffset()
	global := m.AddGlobal(TypeInt32, "@lookup", NewLiteralValue(NewLiteral(42), TypeInt32), 6)
	if m.FindGlobal("@lookup") != global {
		t.Fatal("the global must be retrievable by name")
	}
	if global.Kind != LocalGlobal || !global.ResidesInMemory() {
		t.Error("a global is a memory-backed local")
	}
	if m.GlobalDataSize != 8 {
		t.Errorf("global data is word-aligned, got %d bytes", m.GlobalDataSize)
	}
	if got := m.GetStackBaseOffset(); got < base+8 {
		t.Errorf("the stack base must move behind the global data, got %d", got)
	}
	if m.CleanLocals() != 0 || m.FindLocal("@lookup") == nil {
		t.Error("an unused global must survive the locals sweep")
	}
}
