package compiler

import "github.com/ethereum/go-ethereum/log"

// Names of the blocks created implicitly by the Method container.
const (
	DefaultBlockName = "%start_of_function"
	LastBlockName    = "%end_of_function"
)

// BasicBlock is a maximal straight-line instruction sequence. The first
// instruction is always the block's BranchLabel; control leaves only at the
// end of the block.
type BasicBlock struct {
	method       *Method
	instructions []Instruction
}

func newBasicBlock(method *Method, label *BranchLabel) *BasicBlock {
	return &BasicBlock{method: method, instructions: []Instruction{label}}
}

// GetLabel returns the block's entry label instruction.
func (b *BasicBlock) GetLabel() *BranchLabel {
	if len(b.instructions) == 0 {
		return nil
	}
	label, _ := b.instructions[0].(*BranchLabel)
	return label
}

// Empty reports whether the block contains no instructions besides its label.
func (b *BasicBlock) Empty() bool {
	return len(b.instructions) <= 1
}

// CountInstructions returns the number of instructions including the label.
func (b *BasicBlock) CountInstructions() int {
	return len(b.instructions)
}

// Walk returns a walker at the block's label.
func (b *BasicBlock) Walk() InstructionWalker {
	return InstructionWalker{method: b.method, block: b, index: 0}
}

// WalkEnd returns a walker past the last instruction of the block, the
// position new instructions are appended at.
func (b *BasicBlock) WalkEnd() InstructionWalker {
	return InstructionWalker{method: b.method, block: b, index: len(b.instructions)}
}

// IsStartOfMethod reports whether this is the first block of the method.
func (b *BasicBlock) IsStartOfMethod() bool {
	return len(b.method.blocks) > 0 && b.method.blocks[0] == b
}

// FindWalkerForInstruction searches the block up to the limit position for
// the given instruction.
func (b *BasicBlock) FindWalkerForInstruction(inst Instruction, limit InstructionWalker) (InstructionWalker, bool) {
	end := len(b.instructions)
	if limit.block == b && limit.index < end {
		end = limit.index
	}
	for i := 0; i < end; i++ {
		if b.instructions[i] == inst {
			return InstructionWalker{method: b.method, block: b, index: i}, true
		}
	}
	return InstructionWalker{}, false
}

// ForPredecessors calls the consumer with a walker at the last instruction
// of every block which can transfer control into this one, either via an
// explicit branch or by falling through from the lexically previous block.
func (b *BasicBlock) ForPredecessors(consumer func(InstructionWalker)) {
	label := b.GetLabel()
	if label == nil {
		return
	}
	target := label.GetLabel()
	for _, other := range b.method.blocks {
		for i, inst := range other.instructions {
			branch, ok := inst.(*Branch)
			if !ok {
				continue
			}
			for _, t := range branch.GetTargetLabels() {
				if t == target {
					consumer(InstructionWalker{method: b.method, block: other, index: i})
					break
				}
			}
		}
	}
	if prev := b.method.GetPreviousBlock(b); prev != nil && prev.fallsThrough() {
		end := prev.WalkEnd()
		consumer(end.PreviousInBlock().Copy())
	}
}

// fallsThrough reports whether control can reach the lexically next block by
// running off the end of this one.
func (b *BasicBlock) fallsThrough() bool {
	for i := len(b.instructions) - 1; i > 0; i-- {
		if branch, ok := b.instructions[i].(*Branch); ok {
			if branch.IsUnconditional() {
				return false
			}
			continue
		}
		// branches are only followed by other branches at the block end
		break
	}
	return true
}

// Dump logs the instruction listing of the block.
func (b *BasicBlock) Dump() {
	for _, inst := range b.instructions {
		log.Debug(inst.String())
	}
}

func (b *BasicBlock) String() string {
	if label := b.GetLabel(); label != nil {
		return label.GetLabel().Name
	}
	return "(unnamed block)"
}
