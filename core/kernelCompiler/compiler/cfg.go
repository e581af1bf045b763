package compiler

import "github.com/ethereum/go-ethereum/log"

// ControlFlowGraph tracks the possible control transfers between the basic
// blocks of a Method. It is rebuilt lazily on first access after an
// invalidation and patched incrementally on block and branch mutation.
type ControlFlowGraph struct {
	successors   map[*BasicBlock]map[*BasicBlock]struct{}
	predecessors map[*BasicBlock]map[*BasicBlock]struct{}
}

func createCFG(method *Method) *ControlFlowGraph {
	cfg := &ControlFlowGraph{
		successors:   map[*BasicBlock]map[*BasicBlock]struct{}{},
		predecessors: map[*BasicBlock]map[*BasicBlock]struct{}{},
	}
	for _, block := range method.blocks {
		cfg.ensureNode(block)
	}
	for _, block := range method.blocks {
		cfg.recomputeOutgoing(method, block)
	}
	return cfg
}

func (cfg *ControlFlowGraph) ensureNode(block *BasicBlock) {
	if _, ok := cfg.successors[block]; !ok {
		cfg.successors[block] = map[*BasicBlock]struct{}{}
	}
	if _, ok := cfg.predecessors[block]; !ok {
		cfg.predecessors[block] = map[*BasicBlock]struct{}{}
	}
}

func (cfg *ControlFlowGraph) addEdge(from, to *BasicBlock) {
	cfg.ensureNode(from)
	cfg.ensureNode(to)
	cfg.successors[from][to] = struct{}{}
	cfg.predecessors[to][from] = struct{}{}
}

// recomputeOutgoing re-derives all edges leaving the block from its current
// instructions: explicit branch targets plus the fall-through successor.
func (cfg *ControlFlowGraph) recomputeOutgoing(method *Method, block *BasicBlock) {
	cfg.ensureNode(block)
	for successor := range cfg.successors[block] {
		delete(cfg.predecessors[successor], block)
	}
	cfg.successors[block] = map[*BasicBlock]struct{}{}
	for _, inst := range block.instructions {
		branch, ok := inst.(*Branch)
		if !ok {
			continue
		}
		for _, target := range branch.GetTargetLabels() {
			if targetBlock := method.FindBasicBlock(target); targetBlock != nil {
				cfg.addEdge(block, targetBlock)
			}
		}
	}
	if block.fallsThrough() {
		if next := method.GetNextBlockAfter(block); next != nil {
			cfg.addEdge(block, next)
		}
	}
}

// GetSuccessors returns the blocks control can transfer to from this block.
func (cfg *ControlFlowGraph) GetSuccessors(block *BasicBlock) []*BasicBlock {
	var successors []*BasicBlock
	for successor := range cfg.successors[block] {
		successors = append(successors, successor)
	}
	return successors
}

// GetPredecessors returns the blocks control can enter this block from.
func (cfg *ControlFlowGraph) GetPredecessors(block *BasicBlock) []*BasicBlock {
	var predecessors []*BasicBlock
	for predecessor := range cfg.predecessors[block] {
		predecessors = append(predecessors, predecessor)
	}
	return predecessors
}

func (cfg *ControlFlowGraph) updateOnBlockInsertion(method *Method, block *BasicBlock) {
	log.Debug("Updating CFG on block insertion", "block", block.String())
	cfg.ensureNode(block)
	if prev := method.GetPreviousBlock(block); prev != nil {
		cfg.recomputeOutgoing(method, prev)
	}
	cfg.recomputeOutgoing(method, block)
}

// updateOnBlockRemoval is called after the block has left the method's
// block list; prev is the block lexically preceding the removed one, whose
// fall-through successor changes.
func (cfg *ControlFlowGraph) updateOnBlockRemoval(method *Method, block, prev *BasicBlock) {
	log.Debug("Updating CFG on block removal", "block", block.String())
	for successor := range cfg.successors[block] {
		delete(cfg.predecessors[successor], block)
	}
	for predecessor := range cfg.predecessors[block] {
		delete(cfg.successors[predecessor], block)
	}
	delete(cfg.successors, block)
	delete(cfg.predecessors, block)
	if prev != nil {
		cfg.recomputeOutgoing(method, prev)
	}
}

func (cfg *ControlFlowGraph) updateOnBranchInsertion(method *Method, it InstructionWalker) {
	cfg.recomputeOutgoing(method, it.GetBasicBlock())
}

func (cfg *ControlFlowGraph) updateOnBranchRemoval(method *Method, block *BasicBlock, removedTargets []*Local) {
	log.Debug("Updating CFG on branch removal", "block", block.String(), "targets", len(removedTargets))
	cfg.recomputeOutgoing(method, block)
}
