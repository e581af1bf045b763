package compiler

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/log"
)

// Method is a single kernel function: its basic blocks, its locals and the
// kernel meta-data. The control-flow graph is created lazily on first access
// and patched incrementally on every block or branch mutation afterwards.
type Method struct {
	Name       string
	ReturnType DataType
	MetaData   KernelMetaData

	// GlobalDataSize is the number of bytes of module-global data laid out
	// in front of the in-memory stack.
	GlobalDataSize int

	blocks           []*BasicBlock
	locals           map[string]*Local
	parameters       []*Parameter
	globals          []*Global
	stackAllocations []*StackAllocation
	builtinLocals    [numBuiltinLocals]*Local

	cfg      *ControlFlowGraph
	tmpIndex int
}

func NewMethod(name string) *Method {
	return &Method{
		Name:       name,
		ReturnType: TypeVoid,
		locals:     map[string]*Local{},
	}
}

// FindLocal returns the local registered under the name, or nil.
func (m *Method) FindLocal(name string) *Local {
	return m.locals[name]
}

// CreateLocal registers a new named local. Registering a name twice is an
// error, the front end guarantees unique value names.
func (m *Method) CreateLocal(typ DataType, name string) (*Local, error) {
	if _, ok := m.locals[name]; ok {
		return nil, newCompilationError(StepGeneral, "Local is already defined for method", name)
	}
	local := newLocal(typ, name, localKindForType(typ))
	m.locals[name] = local
	m.addLocalData(local)
	return local, nil
}

func localKindForType(typ DataType) LocalKind {
	if typ.IsLabel() {
		return LocalLabel
	}
	return LocalGeneral
}

func (m *Method) findOrCreateLocal(typ DataType, name string) *Local {
	if local, ok := m.locals[name]; ok {
		return local
	}
	local, _ := m.CreateLocal(typ, name)
	return local
}

// AddNewLocal creates a uniquely named temporary local and returns a value
// referencing it. An empty prefix yields names of the form "%tmp.N".
func (m *Method) AddNewLocal(typ DataType, prefix string) Value {
	if prefix == "" || prefix == "%" {
		prefix = "%tmp"
	}
	name := fmt.Sprintf("%s.%d", prefix, m.tmpIndex)
	m.tmpIndex++
	local, err := m.CreateLocal(typ, name)
	if err != nil {
		// the temporary counter guarantees uniqueness
		panic(err)
	}
	return local.CreateReference()
}

// addLocalData decomposes long locals into their independent 32-bit lower
// and upper halves, which all following stages operate on.
func (m *Method) addLocalData(local *Local) {
	if local.Type.IsSimpleType() && local.Type.ScalarBits > 32 && local.Type.ScalarBits <= 64 {
		elementType := TypeInt32.ToVectorType(local.Type.VectorWidth)
		lower := m.findOrCreateLocal(elementType, local.Name+".lower")
		upper := m.findOrCreateLocal(elementType, local.Name+".upper")
		local.multiReg = &MultiRegisterData{Lower: lower, Upper: upper}
	}
}

// AddParameter registers a function parameter.
func (m *Method) AddParameter(typ DataType, name string, maxByteOffset int) *Parameter {
	local := newLocal(typ, name, LocalParameter)
	m.locals[name] = local
	m.addLocalData(local)
	param := &Parameter{Local: local, MaxByteOffset: maxByteOffset}
	m.parameters = append(m.parameters, param)
	return param
}

// FindParameter returns the parameter with the given name, or nil.
func (m *Method) FindParameter(name string) *Parameter {
	for _, param := range m.parameters {
		if param.Name == name {
			return param
		}
	}
	return nil
}

// GetParameters returns all function parameters in declaration order.
func (m *Method) GetParameters() []*Parameter {
	return m.parameters
}

// AddGlobal registers a module-level data object of the given byte size.
// Global data is laid out word-aligned in front of the in-memory stack, so
// the stack base offset moves with every registration.
func (m *Method) AddGlobal(typ DataType, name string, initial Value, size int) *Global {
	local := newLocal(typ, name, LocalGlobal)
	m.locals[name] = local
	global := &Global{Local: local, InitialValue: initial}
	m.globals = append(m.globals, global)
	if rem := size % 4; rem != 0 {
		size += 4 - rem
	}
	m.GlobalDataSize += size
	return global
}

// FindGlobal returns the global with the given name, or nil.
func (m *Method) FindGlobal(name string) *Global {
	for _, global := range m.globals {
		if global.Name == name {
			return global
		}
	}
	return nil
}

// AddStackAllocation registers a per-invocation scratch object. Allocations
// are kept ordered by decreasing alignment, so the first entry determines
// the stack-frame alignment.
func (m *Method) AddStackAllocation(typ DataType, name string, size, alignment int) *StackAllocation {
	if alignment < 1 {
		alignment = 1
	}
	local := newLocal(typ, name, LocalStackAllocation)
	m.locals[name] = local
	alloc := &StackAllocation{Local: local, Size: size, Alignment: alignment}
	m.stackAllocations = append(m.stackAllocations, alloc)
	sort.SliceStable(m.stackAllocations, func(i, j int) bool {
		return m.stackAllocations[i].Alignment > m.stackAllocations[j].Alignment
	})
	return alloc
}

// FindStackAllocation returns the stack allocation with the given name, or
// nil.
func (m *Method) FindStackAllocation(name string) *StackAllocation {
	for _, alloc := range m.stackAllocations {
		if alloc.Name == name {
			return alloc
		}
	}
	return nil
}

// FindBuiltin returns the builtin local of the given kind, if it was
// created.
func (m *Method) FindBuiltin(kind BuiltinLocalKind) *Local {
	if int(kind) >= len(m.builtinLocals) {
		return nil
	}
	return m.builtinLocals[kind]
}

// FindOrCreateBuiltin returns the local holding the given implicit kernel
// value, creating it and marking the corresponding UNIFORM as used on first
// access.
func (m *Method) FindOrCreateBuiltin(kind BuiltinLocalKind) (*Local, error) {
	if int(kind) >= len(m.builtinLocals) {
		return nil, newCompilationError(StepGeneral, "Unhandled built-in type", fmt.Sprintf("%d", kind))
	}
	if entry := m.builtinLocals[kind]; entry != nil {
		return entry, nil
	}
	name := ""
	typ := TypeInt32
	switch kind {
	case BuiltinWorkDimensions:
		name = "%work_dim"
	case BuiltinLocalSizes:
		name = "%local_sizes"
	case BuiltinLocalIDs:
		name = "%local_ids"
	case BuiltinNumGroupsX:
		name = "%num_groups_x"
	case BuiltinNumGroupsY:
		name = "%num_groups_y"
	case BuiltinNumGroupsZ:
		name = "%num_groups_z"
	case BuiltinGroupIDX:
		name = "%group_id_x"
	case BuiltinGroupIDY:
		name = "%group_id_y"
	case BuiltinGroupIDZ:
		name = "%group_id_z"
	case BuiltinGroupIDs:
		name = "%group_ids"
		typ = TypeInt32.ToVectorType(3)
	case BuiltinGlobalOffsetX:
		name = "%global_offset_x"
	case BuiltinGlobalOffsetY:
		name = "%global_offset_y"
	case BuiltinGlobalOffsetZ:
		name = "%global_offset_z"
	case BuiltinGlobalDataAddress:
		name = "%global_data_address"
	case BuiltinUniformAddress:
		name = "%uniform_address"
	case BuiltinMaxGroupIDX:
		name = "%max_group_id_x"
	case BuiltinMaxGroupIDY:
		name = "%max_group_id_y"
	case BuiltinMaxGroupIDZ:
		name = "%max_group_id_z"
	default:
		return nil, newCompilationError(StepGeneral, "Unhandled built-in type", fmt.Sprintf("%d", kind))
	}
	local := newLocal(typ, name, LocalBuiltin)
	local.Builtin = kind
	m.builtinLocals[kind] = local
	m.MetaData.UniformsUsed.SetUsed(kind, true)
	return local, nil
}

// GetBasicBlocks returns the blocks in their lexical order.
func (m *Method) GetBasicBlocks() []*BasicBlock {
	return m.blocks
}

// WalkAllInstructions returns a walker at the first instruction of the
// method, or the end-of-method position for an empty method.
func (m *Method) WalkAllInstructions() InstructionWalker {
	if len(m.blocks) == 0 {
		return InstructionWalker{method: m}
	}
	return m.blocks[0].Walk()
}

// ForAllInstructions calls the consumer for every instruction, without
// allowing mutation of the instruction stream.
func (m *Method) ForAllInstructions(consumer func(Instruction)) {
	for _, block := range m.blocks {
		for _, inst := range block.instructions {
			if inst != nil {
				consumer(inst)
			}
		}
	}
}

// CountInstructions returns the total number of instructions including
// labels.
func (m *Method) CountInstructions() int {
	count := 0
	for _, block := range m.blocks {
		count += len(block.instructions)
	}
	return count
}

// CleanEmptyInstructions removes placeholder gaps left behind by combining
// steps and returns the number of removed entries.
func (m *Method) CleanEmptyInstructions() int {
	num := 0
	for _, block := range m.blocks {
		kept := block.instructions[:0]
		for _, inst := range block.instructions {
			if inst != nil {
				kept = append(kept, inst)
			} else {
				num++
			}
		}
		block.instructions = kept
	}
	return num
}

// AppendToEnd appends the instruction to the last block. A BranchLabel
// starts a new block instead.
func (m *Method) AppendToEnd(inst Instruction) {
	if label, ok := inst.(*BranchLabel); ok {
		block := newBasicBlock(m, label)
		m.blocks = append(m.blocks, block)
		m.updateCFGOnBlockInsertion(block)
		return
	}
	m.checkAndCreateDefaultBasicBlock()
	last := m.blocks[len(m.blocks)-1]
	last.instructions = append(last.instructions, inst)
	if _, ok := inst.(*Branch); ok {
		it := last.WalkEnd()
		it.PreviousInBlock()
		m.updateCFGOnBranchInsertion(it)
	}
}

func (m *Method) checkAndCreateDefaultBasicBlock() {
	if len(m.blocks) != 0 {
		return
	}
	label := m.findOrCreateLocal(TypeLabel, DefaultBlockName)
	block := newBasicBlock(m, NewBranchLabel(label))
	m.blocks = append(m.blocks, block)
	m.updateCFGOnBlockInsertion(block)
}

// CleanLocals drops all locals no instruction uses anymore from the local
// registry. Parameters and stack allocations survive, they are referenced
// from outside the instruction stream.
func (m *Method) CleanLocals() int {
	numCleaned := 0
	for name, local := range m.locals {
		if local.Kind == LocalParameter || local.Kind == LocalGlobal || local.Kind == LocalStackAllocation {
			continue
		}
		if !local.HasUsers(UseBoth) {
			delete(m.locals, name)
			numCleaned++
		}
	}
	log.Debug("Cleaned unused locals from method", "count", numCleaned, "method", m.Name)
	return numCleaned
}

// GetNumLocals returns the number of registered locals.
func (m *Method) GetNumLocals() int {
	return len(m.locals)
}

// Dump logs the full instruction listing.
func (m *Method) Dump() {
	for _, block := range m.blocks {
		block.Dump()
	}
}

// FindBasicBlock returns the block whose label is the given local, or nil.
func (m *Method) FindBasicBlock(label *Local) *BasicBlock {
	for _, block := range m.blocks {
		if bl := block.GetLabel(); bl != nil && bl.GetLabel() == label {
			return block
		}
	}
	return nil
}

// FindBasicBlockByName returns the block with the given label name, or nil.
func (m *Method) FindBasicBlockByName(name string) *BasicBlock {
	for _, block := range m.blocks {
		if bl := block.GetLabel(); bl != nil && bl.GetLabel().Name == name {
			return block
		}
	}
	return nil
}

// RemoveBlock removes the block from the method. Unless overwriteUsages is
// set, a non-empty block or a block still explicitly branched to is left in
// place and false is returned.
func (m *Method) RemoveBlock(block *BasicBlock, overwriteUsages bool) bool {
	if !overwriteUsages {
		if !block.Empty() {
			return false
		}
		count := 0
		target := block.GetLabel().GetLabel()
		block.ForPredecessors(func(it InstructionWalker) {
			if branch, ok := it.Get().(*Branch); ok {
				for _, t := range branch.GetTargetLabels() {
					if t == target {
						count++
					}
				}
			}
		})
		if count > 0 {
			return false
		}
	}
	for i, candidate := range m.blocks {
		if candidate == block {
			log.Debug("Removing basic block from function", "block", block.String(), "method", m.Name)
			var prev *BasicBlock
			if i > 0 {
				prev = m.blocks[i-1]
			}
			m.blocks = append(m.blocks[:i], m.blocks[i+1:]...)
			m.updateCFGOnBlockRemoval(block, prev)
			return true
		}
	}
	log.Warn("Basic block was not found in this function", "block", block.String(), "method", m.Name)
	return false
}

// CreateAndInsertNewBlock creates a block with the given label name and
// inserts it at the position (in block order).
func (m *Method) CreateAndInsertNewBlock(position int, labelName string) *BasicBlock {
	label := m.findOrCreateLocal(TypeLabel, labelName)
	block := newBasicBlock(m, NewBranchLabel(label))
	m.blocks = append(m.blocks, nil)
	copy(m.blocks[position+1:], m.blocks[position:])
	m.blocks[position] = block
	m.updateCFGOnBlockInsertion(block)
	return block
}

// EmplaceLabel splits the instruction stream at the walker position: a new
// block headed by the label takes over all instructions from the position
// (inclusive) to the end of its block. Returns a walker at the new label.
func (m *Method) EmplaceLabel(it InstructionWalker, label *BranchLabel) (InstructionWalker, error) {
	if len(m.blocks) == 0 {
		block := newBasicBlock(m, label)
		m.blocks = append(m.blocks, block)
		m.updateCFGOnBlockInsertion(block)
		return block.Walk(), nil
	}
	blockIndex := -1
	for i, block := range m.blocks {
		if block == it.block {
			blockIndex = i
			break
		}
	}
	if blockIndex < 0 {
		detail := ""
		if it.Has() {
			detail = it.Get().String()
		}
		return InstructionWalker{}, newCompilationError(StepGeneral, "Failed to find basic block for instruction iterator", detail)
	}
	isStartOfBlock := it.IsStartOfBlock()
	insertAt := blockIndex
	if !isStartOfBlock {
		insertAt++
	}
	newBlock := newBasicBlock(m, label)
	m.blocks = append(m.blocks, nil)
	copy(m.blocks[insertAt+1:], m.blocks[insertAt:])
	m.blocks[insertAt] = newBlock
	m.updateCFGOnBlockInsertion(newBlock)
	for !isStartOfBlock && !it.IsEndOfBlock() {
		end := newBlock.WalkEnd()
		end.Emplace(it.Release())
	}
	return newBlock.Walk(), nil
}

// GetNextBlockAfter returns the block lexically following the given one, or
// nil.
func (m *Method) GetNextBlockAfter(block *BasicBlock) *BasicBlock {
	for i, candidate := range m.blocks {
		if candidate == block && i+1 < len(m.blocks) {
			return m.blocks[i+1]
		}
	}
	return nil
}

// GetPreviousBlock returns the block lexically preceding the given one, or
// nil.
func (m *Method) GetPreviousBlock(block *BasicBlock) *BasicBlock {
	for i, candidate := range m.blocks {
		if candidate == block && i > 0 {
			return m.blocks[i-1]
		}
	}
	return nil
}

// MoveBlock moves the block at origin so it ends up at position dest.
func (m *Method) MoveBlock(origin, dest int) {
	if origin == dest || origin < 0 || origin >= len(m.blocks) || dest < 0 || dest >= len(m.blocks) {
		return
	}
	block := m.blocks[origin]
	m.blocks = append(m.blocks[:origin], m.blocks[origin+1:]...)
	if dest > origin {
		dest--
	}
	m.blocks = append(m.blocks, nil)
	copy(m.blocks[dest+1:], m.blocks[dest:])
	m.blocks[dest] = block
	// lexical order changed, fall-through edges need a rebuild
	m.cfg = nil
}

// CalculateStackOffsets assigns every stack allocation its byte offset from
// the stack frame start. Space is simply reserved per allocation, lowered
// allocations get unique dummy offsets behind the real frame.
func (m *Method) CalculateStackOffsets() {
	stackBaseOffset := m.GetStackBaseOffset()
	currentOffset := 0
	for _, alloc := range m.stackAllocations {
		if alloc.IsLowered {
			continue
		}
		if rem := (stackBaseOffset + currentOffset) % alloc.Alignment; rem != 0 {
			currentOffset += alloc.Alignment - rem
		}
		alloc.Offset = currentOffset
		currentOffset += alloc.Size
	}
	for _, alloc := range m.stackAllocations {
		if !alloc.IsLowered {
			continue
		}
		if rem := (stackBaseOffset + currentOffset) % alloc.Alignment; rem != 0 {
			currentOffset += alloc.Alignment - rem
		}
		alloc.Offset = currentOffset
		currentOffset += alloc.Size
	}
}

// CalculateStackSize returns the aligned byte size of a single stack frame.
func (m *Method) CalculateStackSize() int {
	if len(m.stackAllocations) == 0 {
		return 0
	}
	var max *StackAllocation
	for _, alloc := range m.stackAllocations {
		if alloc.IsLowered {
			continue
		}
		if max == nil || alloc.Offset+alloc.Size > max.Offset+max.Size {
			max = alloc
		}
	}
	if max == nil {
		// all stack allocations are lowered to VPM or registers
		return 0
	}
	stackSize := max.Offset + max.Size
	maxAlignment := m.stackAllocations[0].Alignment
	if rem := stackSize % maxAlignment; rem != 0 {
		stackSize += maxAlignment - rem
	}
	// align the stack frame to at least 8 bytes, so following frames stay
	// aligned
	if rem := stackSize % 8; rem != 0 {
		stackSize += 8 - rem
	}
	return stackSize
}

// GetStackBaseOffset returns the byte offset of the first stack frame behind
// the module's global data.
func (m *Method) GetStackBaseOffset() int {
	baseOffset := m.GlobalDataSize
	maxAlignment := 1
	if len(m.stackAllocations) > 0 {
		maxAlignment = m.stackAllocations[0].Alignment
	}
	if rem := baseOffset % maxAlignment; rem != 0 {
		baseOffset += maxAlignment - rem
	}
	if rem := baseOffset % 8; rem != 0 {
		baseOffset += 8 - rem
	}
	return baseOffset
}

// GetCFG returns the method's control-flow graph, creating it on first
// access.
func (m *Method) GetCFG() *ControlFlowGraph {
	if m.cfg == nil {
		log.Debug("Creating/updating CFG for function", "method", m.Name)
		m.cfg = createCFG(m)
	}
	return m.cfg
}

func (m *Method) updateCFGOnBlockInsertion(block *BasicBlock) {
	if m.cfg == nil {
		return
	}
	m.cfg.updateOnBlockInsertion(m, block)
}

func (m *Method) updateCFGOnBlockRemoval(block, prev *BasicBlock) {
	if m.cfg == nil {
		return
	}
	m.cfg.updateOnBlockRemoval(m, block, prev)
}

func (m *Method) updateCFGOnBranchInsertion(it InstructionWalker) {
	if m.cfg == nil {
		return
	}
	m.cfg.updateOnBranchInsertion(m, it)
}

func (m *Method) updateCFGOnBranchRemoval(block *BasicBlock, removedTargets []*Local) {
	if m.cfg == nil {
		return
	}
	m.cfg.updateOnBranchRemoval(m, block, removedTargets)
}

// removeTrackedUser drops the instruction from the remaining-user set. For a
// combined operation, the constituents are registered as users, so they are
// dropped as well.
func removeTrackedUser(remainingUsers map[Instruction]struct{}, user Instruction) {
	delete(remainingUsers, user)
	if comb, ok := user.(*CombinedOperation); ok {
		if comb.First != nil {
			delete(remainingUsers, comb.First)
		}
		if comb.Second != nil {
			delete(remainingUsers, comb.Second)
		}
	}
}

func (m *Method) removeUsagesInBasicBlock(block *BasicBlock, remainingUsers map[Instruction]struct{}, usageRangeLeft *int) bool {
	it := block.Walk()
	for *usageRangeLeft >= 0 && !it.IsEndOfMethod() {
		removeTrackedUser(remainingUsers, it.Get())
		*usageRangeLeft--
		if branch, ok := it.Get().(*Branch); ok {
			for _, target := range branch.GetTargetLabels() {
				if successor := m.FindBasicBlock(target); successor != nil {
					if m.removeUsagesInBasicBlock(successor, remainingUsers, usageRangeLeft) {
						return true
					}
				}
			}
		}
		it.NextInMethod()
	}
	return len(remainingUsers) == 0
}

// IsLocallyLimited reports whether all uses of the local lie within the
// given number of instructions from the walker position, following branch
// targets. The instruction directly before the position also counts, the
// local may be written there, e.g. by the flag-setting half of a
// comparison.
func (m *Method) IsLocallyLimited(curIt InstructionWalker, local *Local, threshold int) bool {
	remainingUsers := make(map[Instruction]struct{})
	for user := range local.AllUsers() {
		remainingUsers[user] = struct{}{}
	}

	usageRangeLeft := threshold
	if !curIt.IsStartOfBlock() {
		prev := curIt.Copy()
		removeTrackedUser(remainingUsers, prev.PreviousInBlock().Get())
	}
	for usageRangeLeft >= 0 && !curIt.IsEndOfMethod() {
		removeTrackedUser(remainingUsers, curIt.Get())
		usageRangeLeft--
		if branch, ok := curIt.Get().(*Branch); ok {
			for _, target := range branch.GetTargetLabels() {
				if successor := m.FindBasicBlock(target); successor != nil {
					if m.removeUsagesInBasicBlock(successor, remainingUsers, &usageRangeLeft) {
						return true
					}
				}
			}
			if branch.IsUnconditional() {
				// control leaves here and the remaining usages are not all
				// within range along the successors
				return false
			}
		}
		curIt.NextInMethod()
	}
	return len(remainingUsers) == 0
}
