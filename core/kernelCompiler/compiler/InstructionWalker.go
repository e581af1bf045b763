package compiler

// InstructionWalker is a cursor identifying a (block, position) pair inside
// a Method. It owns no data of its own; all mutation of the instruction
// stream funnels through it, so the local user maps and the CFG stay
// synchronized with every replace/erase/insert.
type InstructionWalker struct {
	method *Method
	block  *BasicBlock
	index  int
}

// Copy returns an independent cursor at the same position.
func (it InstructionWalker) Copy() InstructionWalker {
	return it
}

// Equals reports whether both cursors identify the same position.
func (it InstructionWalker) Equals(other InstructionWalker) bool {
	return it.block == other.block && it.index == other.index
}

// GetBasicBlock returns the block the cursor is positioned in.
func (it InstructionWalker) GetBasicBlock() *BasicBlock { return it.block }

// IsEndOfMethod reports whether the cursor is past the last block.
func (it InstructionWalker) IsEndOfMethod() bool { return it.block == nil }

// IsEndOfBlock reports whether the cursor is past the last instruction of
// its block.
func (it InstructionWalker) IsEndOfBlock() bool {
	return it.block == nil || it.index >= len(it.block.instructions)
}

// IsStartOfBlock reports whether the cursor is at the block's label.
func (it InstructionWalker) IsStartOfBlock() bool {
	return it.block != nil && it.index == 0
}

// IsStartOfMethod reports whether the cursor is at the very first
// instruction of the method.
func (it InstructionWalker) IsStartOfMethod() bool {
	return it.IsStartOfBlock() && it.block.IsStartOfMethod()
}

// Has reports whether the cursor points at an instruction.
func (it InstructionWalker) Has() bool {
	return it.block != nil && it.index < len(it.block.instructions)
}

// Get returns the instruction at the cursor, or nil at an end position.
func (it InstructionWalker) Get() Instruction {
	if !it.Has() {
		return nil
	}
	return it.block.instructions[it.index]
}

// NextInBlock advances within the block, stopping at the end-of-block
// position.
func (it *InstructionWalker) NextInBlock() *InstructionWalker {
	if it.block != nil && it.index < len(it.block.instructions) {
		it.index++
	}
	return it
}

// PreviousInBlock steps back within the block, stopping at the label.
func (it *InstructionWalker) PreviousInBlock() *InstructionWalker {
	if it.index > 0 {
		it.index--
	}
	return it
}

// NextInMethod advances across block boundaries, ending up at the
// end-of-method sentinel after the last instruction.
func (it *InstructionWalker) NextInMethod() *InstructionWalker {
	if it.block == nil {
		return it
	}
	it.index++
	if it.index >= len(it.block.instructions) {
		if next := it.method.GetNextBlockAfter(it.block); next != nil {
			it.block = next
			it.index = 0
		} else {
			it.block = nil
			it.index = 0
		}
	}
	return it
}

// PreviousInMethod steps back across block boundaries.
func (it *InstructionWalker) PreviousInMethod() *InstructionWalker {
	if it.block == nil {
		if len(it.method.blocks) == 0 {
			return it
		}
		it.block = it.method.blocks[len(it.method.blocks)-1]
		it.index = len(it.block.instructions) - 1
		return it
	}
	if it.index > 0 {
		it.index--
	} else if prev := it.method.GetPreviousBlock(it.block); prev != nil {
		it.block = prev
		it.index = len(prev.instructions) - 1
	}
	return it
}

// Erase removes the instruction at the cursor, releasing all its use
// registrations. The cursor ends up at the following instruction (or the
// end-of-block position).
func (it *InstructionWalker) Erase() {
	if !it.Has() {
		panic("cannot erase at end position")
	}
	inst := it.block.instructions[it.index]
	var removedTargets []*Local
	if branch, ok := inst.(*Branch); ok {
		removedTargets = branch.GetTargetLabels()
	}
	inst.Release()
	it.block.instructions = append(it.block.instructions[:it.index], it.block.instructions[it.index+1:]...)
	if removedTargets != nil {
		it.method.updateCFGOnBranchRemoval(it.block, removedTargets)
	}
}

// Release detaches and returns the instruction at the cursor without
// dropping its use registrations, leaving the cursor at the following
// instruction. The caller takes over ownership.
func (it *InstructionWalker) Release() Instruction {
	if !it.Has() {
		panic("cannot release at end position")
	}
	inst := it.block.instructions[it.index]
	var removedTargets []*Local
	if branch, ok := inst.(*Branch); ok {
		removedTargets = branch.GetTargetLabels()
	}
	it.block.instructions = append(it.block.instructions[:it.index], it.block.instructions[it.index+1:]...)
	if removedTargets != nil {
		it.method.updateCFGOnBranchRemoval(it.block, removedTargets)
	}
	return inst
}

// Reset replaces the instruction at the cursor, releasing the old one.
func (it *InstructionWalker) Reset(replacement Instruction) {
	if !it.Has() {
		panic("cannot replace at end position")
	}
	old := it.block.instructions[it.index]
	if branch, ok := old.(*Branch); ok {
		defer it.method.updateCFGOnBranchRemoval(it.block, branch.GetTargetLabels())
	}
	old.Release()
	it.block.instructions[it.index] = replacement
	if _, ok := replacement.(*Branch); ok {
		it.method.updateCFGOnBranchInsertion(*it)
	}
}

// Emplace inserts the instruction before the cursor position; the cursor
// points at the inserted instruction afterwards.
func (it *InstructionWalker) Emplace(inst Instruction) {
	if it.block == nil {
		panic("cannot insert at end of method")
	}
	it.block.instructions = append(it.block.instructions, nil)
	copy(it.block.instructions[it.index+1:], it.block.instructions[it.index:])
	it.block.instructions[it.index] = inst
	if _, ok := inst.(*Branch); ok {
		it.method.updateCFGOnBranchInsertion(*it)
	}
}
