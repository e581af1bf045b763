package compiler

import (
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"
)

// EliminateDeadCode removes instructions whose result is proven unused:
// writes to locals which are never read, copies between locals holding the
// same value, reads of work-group UNIFORMs nobody consumes, writes to
// replication registers overwritten before any read and writes to locals
// overwritten before the next read.
func EliminateDeadCode(method *Method, config *Configuration) (bool, error) {
	hasChanged := false
	it := method.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		inst := it.Get()
		move, isMove := inst.(*MoveOperation)
		if !isSupportedForElimination(inst) {
			it.NextInMethod()
			continue
		}

		if outLocal := inst.CheckOutputLocal(); outLocal != nil && !inst.HasSideEffects() {
			// a local can be read before it is written (phi nodes, branches
			// backwards), so the reader check covers the whole method
			if !outLocal.IsParameter() && !outLocal.HasUsers(UseReader) {
				log.Debug("Removing instruction, since its output is never read", "instruction", inst.String())
				it.Erase()
				// the previous instruction may have become removable too
				it.PreviousInBlock()
				hasChanged = true
				continue
			}
			if isMove {
				if merged, err := tryMergeMoveLocals(it, move); err != nil {
					return hasChanged, err
				} else if merged {
					hasChanged = true
					continue
				}
			}
		}

		// reading a UNIFORM pops the FIFO and therefore counts as a side
		// effect, but dropping the read is safe as long as the metadata no
		// longer announces the value
		if isMove {
			outLocal := move.CheckOutputLocal()
			if outLocal != nil && move.GetSource().HasRegister(RegUniform) && !move.GetSignal().HasSideEffects() &&
				!move.DoesSetFlag() && !move.HasConditionalExecution() &&
				outLocal.Kind == LocalBuiltin && !outLocal.HasUsers(UseReader) {
				log.Debug("Removing read of work-group UNIFORM, since it is never used", "instruction", move.String())
				method.MetaData.UniformsUsed.SetUsed(outLocal.Builtin, false)
				it.Erase()
				hasChanged = true
				continue
			}
		}

		if _, ok := inst.CheckOutputRegister(); ok && !inst.HasSideEffects() {
			if isUnusedReplicationWrite(it) {
				log.Debug("Removing write to special purpose register which is never used", "instruction", inst.String())
				it.Erase()
				hasChanged = true
				continue
			}
		}

		if outLocal := inst.CheckOutputLocal(); outLocal != nil && !inst.HasSideEffects() {
			if isOverwrittenBeforeRead(it, outLocal) {
				log.Debug("Removing write to local which is overridden before the next read", "instruction", inst.String())
				it.Erase()
				hasChanged = true
				continue
			}
		}
		it.NextInMethod()
	}
	// not required for correctness, but keeps the registry small and gives
	// feedback on the effect of the elimination
	method.CleanLocals()
	return hasChanged, nil
}

func isSupportedForElimination(inst Instruction) bool {
	switch inst.(type) {
	case *Operation, *MoveOperation, *LoadImmediate:
		return true
	}
	return false
}

// tryMergeMoveLocals merges the source and destination local of a plain copy
// when the destination is written nowhere else, rewriting all readers of the
// destination to the source.
func tryMergeMoveLocals(it InstructionWalker, move *MoveOperation) (bool, error) {
	inLocal := move.GetSource().CheckLocal()
	outLocal := move.CheckOutputLocal()
	if inLocal == nil || outLocal == nil || !move.IsSimpleMove() {
		return false, nil
	}
	// phi elimination may have written the destination before with another
	// source, merging is only safe when this move is the only writer
	if outLocal.CountUsers(UseWriter) != 1 || inLocal.Type != outLocal.Type {
		return false, nil
	}
	log.Debug("Merging locals since they contain the same value", "source", inLocal.String(), "destination", outLocal.String())
	var mergeErr error
	outLocal.ForUsers(UseReader, func(user Instruction) {
		found := false
		for i, arg := range user.GetArguments() {
			if arg.HasLocal(outLocal) {
				user.SetArgument(i, NewTypedLocalValue(inLocal, arg.Type))
				found = true
			}
		}
		if !found && mergeErr == nil {
			mergeErr = newCompilationError(StepOptimizer, "Unsupported case of instruction merging", user.String())
		}
	})
	if mergeErr != nil {
		return false, mergeErr
	}
	it.Erase()
	return true, nil
}

// isUnusedReplicationWrite reports whether the instruction writes a
// replication register which is written again before any read.
func isUnusedReplicationWrite(it InstructionWalker) bool {
	inst := it.Get()
	if !inst.WritesRegister(RegAcc5) && !inst.WritesRegister(RegReplicateQuad) && !inst.WritesRegister(RegReplicateAll) {
		return false
	}
	checkIt := it.Copy()
	checkIt.NextInBlock()
	for !checkIt.IsEndOfBlock() {
		next := checkIt.Get()
		if next.WritesRegister(RegAcc5) || next.WritesRegister(RegReplicateQuad) || next.WritesRegister(RegReplicateAll) {
			return true
		}
		if next.ReadsRegister(RegAcc5) || next.ReadsRegister(RegReplicateQuad) || next.ReadsRegister(RegReplicateAll) {
			return false
		}
		checkIt.NextInBlock()
	}
	return false
}

// isOverwrittenBeforeRead reports whether the local written here is
// unconditionally written again within the block before any read.
func isOverwrittenBeforeRead(it InstructionWalker, local *Local) bool {
	checkIt := it.Copy()
	checkIt.NextInBlock()
	for !checkIt.IsEndOfBlock() {
		// a branch may hand the current value to another block
		if _, ok := checkIt.Get().(*Branch); ok {
			return false
		}
		if checkIt.Get().ReadsLocal(local) {
			return false
		}
		if checkIt.Get().WritesLocal(local) && !checkIt.Get().HasConditionalExecution() {
			return true
		}
		checkIt.NextInBlock()
	}
	return false
}

func isNoReadBetween(first, second InstructionWalker, reg Register) bool {
	first.NextInBlock()
	for !first.IsEndOfBlock() && !first.Equals(second) {
		inst := first.Get()
		// triggering a load of r4 or releasing the mutex also counts,
		// reading TMU/SFU/VPM depends on them
		if inst.ReadsRegister(reg) || inst.WritesRegister(reg) || inst.GetSignal().TriggersReadOfR4() ||
			inst.WritesRegister(RegMutex) {
			return false
		}
		// a VPM read also depends on the VPM read setup
		if reg.IsVertexPipelineMemory() {
			if outReg, ok := inst.CheckOutputRegister(); ok && outReg.IsVertexPipelineMemory() {
				return false
			}
		}
		first.NextInBlock()
	}
	return true
}

func accessesReplicationRegister(inst Instruction) bool {
	return inst.ReadsRegister(RegAcc5) || inst.ReadsRegister(RegReplicateAll) || inst.ReadsRegister(RegReplicateQuad) ||
		inst.WritesRegister(RegAcc5) || inst.WritesRegister(RegReplicateAll) || inst.WritesRegister(RegReplicateQuad)
}

// canMoveInstruction reports whether the instruction at source can be moved
// down to destination without reordering replication-register accesses.
func canMoveInstruction(source, destination InstructionWalker) bool {
	if !accessesReplicationRegister(source.Get()) {
		return true
	}
	it := source.Copy()
	it.NextInBlock()
	for !it.IsEndOfBlock() && !it.Equals(destination) {
		if accessesReplicationRegister(it.Get()) {
			return false
		}
		it.NextInBlock()
	}
	return true
}

// EliminateRedundantMoves removes or rewrites plain copies: self-moves,
// splicing a written-once source into its read-once consumer, relocating the
// computation of a value directly into the register write consuming it and
// inlining a moved register read into its single consumer.
func EliminateRedundantMoves(method *Method, config *Configuration) (bool, error) {
	codeChanged := false
	it := method.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		move, isMove := it.Get().(*MoveOperation)
		// phi nodes are read in another block and written more than once,
		// conversions, conditions and rotations change the copied value
		if isMove && !move.HasDecoration(DecorationPhiNode) && !move.HasPackMode() && !move.HasUnpackMode() &&
			!move.HasConditionalExecution() && move.GetVectorRotation() == nil {
			source := move.GetSource()
			output, _ := move.GetOutput()
			srcLocal := source.CheckLocal()
			outLocal := move.CheckOutputLocal()

			sourceUsedOnce := srcLocal != nil && source.GetSingleWriter() != nil && srcLocal.CountUsers(UseReader) == 1
			destUsedOnce := outLocal != nil && outLocal.GetSingleWriter() == Instruction(move) &&
				outLocal.CountUsers(UseReader) == 1
			// readers combined with a literal operand would provoke
			// register conflicts
			destUsedOnceWithoutLiteral := false
			if destUsedOnce {
				destUsedOnceWithoutLiteral = !outLocal.GetUsers(UseReader)[0].ReadsLiteral()
			}

			var sourceWriter InstructionWalker
			haveSourceWriter := false
			if writer := source.GetSingleWriter(); writer != nil {
				sourceWriter, haveSourceWriter = it.GetBasicBlock().FindWalkerForInstruction(writer, it)
			}
			var destinationReader InstructionWalker
			haveDestinationReader := false
			if outLocal != nil && outLocal.CountUsers(UseReader) == 1 {
				destinationReader, haveDestinationReader = it.GetBasicBlock().FindWalkerForInstruction(
					outLocal.GetUsers(UseReader)[0], it.GetBasicBlock().WalkEnd())
			}

			outReg, isOutReg := move.CheckOutputRegister()
			srcReg, isSrcReg := source.CheckRegister()

			switch {
			case source.Equals(output) && !move.HasOtherSideEffects(SideEffectSignal):
				if move.GetSignal() == SignalNone {
					log.Debug("Removing obsolete move", "instruction", move.String())
					it.Erase()
					it.PreviousInBlock()
				} else {
					log.Debug("Removing obsolete move with nop", "instruction", move.String())
					it.Reset(NewSignalingNop(DelayWaitRegister, move.GetSignal()))
				}
				codeChanged = true

			case !move.HasSideEffects() && sourceUsedOnce && destUsedOnceWithoutLiteral && haveDestinationReader &&
				source.Type == output.Type:
				// the type equality matters, reordering may otherwise move
				// the read (as type B) before the write (as type A)
				log.Debug("Removing obsolete move by replacing uses of the output with the input", "instruction", move.String())
				reader := destinationReader.Get()
				reader.ReplaceValue(output, source, UseReader)
				if _, readerIsMove := reader.(*MoveOperation); readerIsMove {
					reader.AddDecorations(ForwardDecorations(move.Decorations()))
				}
				it.Erase()
				it.PreviousInBlock()
				codeChanged = true

			case isOutReg && sourceUsedOnce && haveSourceWriter && !sourceWriter.Get().HasSideEffects() &&
				!move.GetSignal().HasSideEffects() && canMoveInstruction(sourceWriter, it) &&
				!move.WritesRegister(RegReplicateAll) && !move.WritesRegister(RegReplicateQuad) &&
				// peripheral registers cannot be written conditionally or
				// packed into
				(!outReg.HasSideEffectsOnWrite() || !sourceWriter.Get().HasConditionalExecution()) &&
				(!outReg.HasSideEffectsOnWrite() || !sourceWriter.Get().HasPackMode()):
				// replace the move by the operation calculating its source,
				// saving one instruction per register write
				log.Debug("Replacing obsolete move with instruction calculating its source", "instruction", move.String())
				setFlags := move.DoesSetFlag()
				sourceDecorations := ForwardDecorations(sourceWriter.Get().Decorations())
				released := sourceWriter.Release()
				// the detached writer sat before the cursor in this block
				it.index--
				it.Reset(released)
				it.Get().SetOutput(output)
				it.Get().SetSetFlags(setFlags)
				it.Get().AddDecorations(sourceDecorations)
				codeChanged = true

			case isSrcReg && destUsedOnce &&
				(destUsedOnceWithoutLiteral || srcReg.File == FilePhysicalAny || srcReg.File == FileAccumulator) &&
				haveDestinationReader && !move.GetSignal().HasSideEffects() && !move.DoesSetFlag() &&
				!destinationReader.Get().HasUnpackMode() && !destinationReader.Get().HasConditionalExecution() &&
				!destinationReader.Get().ReadsRegister(srcReg) &&
				isNoReadBetween(it, destinationReader, srcReg) &&
				// an instruction cannot read and write VPM at the same time
				!(source.HasRegister(RegVPMIO) && destinationReaderWritesVPM(destinationReader)):
				// the consumer can read the register directly
				log.Debug("Replacing obsolete move by inserting the source into the instruction consuming its result",
					"instruction", move.String())
				newInput := NewRegisterValue(srcReg, output.Type)
				reader := destinationReader.Get()
				for i := 0; i < len(reader.GetArguments()); i++ {
					if reader.AssertArgument(i).HasLocal(outLocal) {
						reader.SetArgument(i, newInput)
					}
				}
				if readerOut := reader.CheckOutputLocal(); readerOut != nil && readerOut.Reference() == nil {
					if outLocal.ResidesInMemory() {
						readerOut.SetReference(ReferenceData{Base: outLocal})
					} else if ref := outLocal.Reference(); ref != nil {
						readerOut.SetReference(*ref)
					}
				}
				it.Erase()
				it.PreviousInBlock()
				codeChanged = true
			}
		}
		it.NextInMethod()
	}
	return codeChanged, nil
}

func destinationReaderWritesVPM(reader InstructionWalker) bool {
	out, ok := reader.Get().GetOutput()
	return ok && out.HasRegister(RegVPMIO)
}

func canReplaceBitOp(op *Operation) bool {
	return !op.HasUnpackMode() && op.GetSideEffects()&SideEffectRegisterRead == 0
}

func isPowerTwo(val uint32) bool {
	return val != 0 && val&(val-1) == 0
}

func hasSingleByteExtractionWriter(val Value) bool {
	local := val.CheckLocal()
	if local == nil {
		return false
	}
	writer, ok := local.GetSingleWriter().(*MoveOperation)
	return ok && writer.GetVectorRotation() == nil && !writer.HasConditionalExecution() && !writer.HasPackMode() &&
		writer.GetUnpackMode().IsByteExtraction()
}

// EliminateRedundantBitOp applies the monotone absorption laws to AND/OR
// chains, removes byte masks on values already extracted from a single byte
// and downgrades shifts whose dropped bits are provably unused.
func EliminateRedundantBitOp(method *Method, config *Configuration) (bool, error) {
	replaced := false
	it := method.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		op, isOp := it.Get().(*Operation)
		if isOp && !op.HasConditionalExecution() {
			switch op.Op {
			case OpAnd:
				out := op.CheckOutputLocal()
				if out != nil && !op.ReadsLocal(out) {
					if loc := op.GetFirstArg().CheckLocal(); loc != nil {
						replaced = rewriteAndChain(out, loc, it, config) || replaced
					}
					if second, ok := op.GetSecondArg(); ok {
						if loc := second.CheckLocal(); loc != nil {
							replaced = rewriteAndChain(out, loc, it, config) || replaced
						}
					}
				}
				if rewriteRedundantByteMask(it, op) {
					replaced = true
				}
			case OpOr:
				out := op.CheckOutputLocal()
				if out != nil && !op.ReadsLocal(out) {
					if loc := op.GetFirstArg().CheckLocal(); loc != nil {
						replaced = rewriteOrChain(out, loc, it, config) || replaced
					}
					if second, ok := op.GetSecondArg(); ok {
						if loc := second.CheckLocal(); loc != nil {
							replaced = rewriteOrChain(out, loc, it, config) || replaced
						}
					}
				}
			case OpAsr:
				if rewriteSignedShift(op) {
					replaced = true
				}
			}
			// the ASR rewrite may have turned the operation into a SHR
			if op, isOp = it.Get().(*Operation); isOp && op.Op == OpShr {
				if rewriteShiftPair(op) {
					replaced = true
				}
			}
		}
		it.NextInMethod()
	}
	return replaced, nil
}

// rewriteAndChain scans forward for uses of (out = a AND b) combined again
// with one of its inputs: (a AND b) AND a keeps the conjunction, (a AND b)
// OR a collapses to a.
func rewriteAndChain(out, in *Local, walker InstructionWalker, config *Configuration) bool {
	replaced := false
	it := walker.Copy()
	it.NextInBlock()
	remaining := config.MaxCommonExpressionDistance
	for remaining > 0 && !it.IsEndOfBlock() {
		remaining--
		if op2, ok := it.Get().(*Operation); ok && canReplaceBitOp(op2) && op2.ReadsLocal(out) && op2.ReadsLocal(in) {
			if op2.Op == OpAnd {
				log.Debug("Replacing (a AND b) AND a with a AND b", "instruction", op2.String())
				output, _ := op2.GetOutput()
				mov := NewMoveOperation(output, out.CreateReference())
				mov.CopyExtrasFrom(it.Get())
				it.Reset(mov)
				replaced = true
			} else if op2.Op == OpOr {
				log.Debug("Replacing (a AND b) OR a with a", "instruction", op2.String())
				output, _ := op2.GetOutput()
				mov := NewMoveOperation(output, in.CreateReference())
				mov.CopyExtrasFrom(it.Get())
				it.Reset(mov)
				replaced = true
			}
		}
		it.NextInBlock()
	}
	return replaced
}

// rewriteOrChain is the dual of rewriteAndChain: (a OR b) AND a collapses to
// a, (a OR b) OR a keeps the disjunction.
func rewriteOrChain(out, in *Local, walker InstructionWalker, config *Configuration) bool {
	replaced := false
	it := walker.Copy()
	it.NextInBlock()
	remaining := config.MaxCommonExpressionDistance
	for remaining > 0 && !it.IsEndOfBlock() {
		remaining--
		if op2, ok := it.Get().(*Operation); ok && canReplaceBitOp(op2) && op2.ReadsLocal(out) && op2.ReadsLocal(in) {
			if op2.Op == OpAnd {
				log.Debug("Replacing (a OR b) AND a with a", "instruction", op2.String())
				output, _ := op2.GetOutput()
				mov := NewMoveOperation(output, in.CreateReference())
				mov.CopyExtrasFrom(it.Get())
				it.Reset(mov)
				replaced = true
			} else if op2.Op == OpOr {
				log.Debug("Replacing (a OR b) OR a with a OR b", "instruction", op2.String())
				output, _ := op2.GetOutput()
				mov := NewMoveOperation(output, out.CreateReference())
				mov.CopyExtrasFrom(it.Get())
				it.Reset(mov)
				replaced = true
			}
		}
		it.NextInBlock()
	}
	return replaced
}

// rewriteRedundantByteMask drops an AND with 255 on a value already
// zero-extended from a single byte by its writer's unpack mode.
func rewriteRedundantByteMask(it InstructionWalker, op *Operation) bool {
	hasByteMask := func(val Value) bool {
		constant, ok := val.GetConstantValue()
		return ok && constant.HasLiteral(NewLiteral(255))
	}
	for _, arg := range op.GetArguments() {
		if !hasByteMask(arg) {
			continue
		}
		otherArg, ok := op.FindOtherArgument(arg)
		if !ok || !hasSingleByteExtractionWriter(otherArg) {
			continue
		}
		log.Debug("Replacing redundant byte masking for value already extracted from single byte with move",
			"instruction", op.String())
		output, _ := op.GetOutput()
		mov := NewMoveOperation(output, otherArg)
		mov.CopyExtrasFrom(op)
		it.Reset(mov)
		return true
	}
	return false
}

// shiftedOutMask returns the mask of result bits an offset-bit right shift
// leaves untouched, i.e. not filled with leading sign or zero bits.
func shiftedOutMask(offsetLit Literal) uint32 {
	offset := offsetLit.UnsignedInt() & 0x1F
	if offset == 0 {
		return 0xFFFFFFFF
	}
	return uint32((uint64(1) << (32 - offset)) - 1)
}

// rewriteSignedShift downgrades an arithmetic right shift to a bitwise one
// when every reader masks away all sign-extended bits.
func rewriteSignedShift(op *Operation) bool {
	if op.DoesSetFlag() || op.HasPackMode() {
		return false
	}
	second, ok := op.GetSecondArg()
	if !ok {
		return false
	}
	lit, ok := second.GetLiteralValue()
	if !ok {
		return false
	}
	mask := shiftedOutMask(lit)
	out := op.CheckOutputLocal()
	if mask == 0xFFFFFFFF || out == nil {
		return false
	}
	output, _ := op.GetOutput()
	for user, use := range out.AllUsers() {
		if !use.ReadsLocal() {
			continue
		}
		userOp, ok := user.(*Operation)
		if !ok || userOp.Op != OpAnd || userOp.HasUnpackMode() {
			return false
		}
		otherArg, ok := userOp.FindOtherArgument(output)
		if !ok {
			return false
		}
		constant, ok := otherArg.GetConstantValue()
		if !ok {
			return false
		}
		otherLit, ok := constant.GetLiteralValue()
		if !ok || !isPowerTwo(otherLit.UnsignedInt()+1) || otherLit.UnsignedInt() > mask {
			return false
		}
	}
	log.Debug("Replacing arithmetic shift with simpler bit-wise shift", "instruction", op.String())
	op.Op = OpShr
	return true
}

// rewriteShiftPair collapses a left shift followed by a right shift with the
// same offset into a single mask.
func rewriteShiftPair(op *Operation) bool {
	if op.HasUnpackMode() || op.DoesSetFlag() {
		return false
	}
	second, ok := op.GetSecondArg()
	if !ok {
		return false
	}
	lit, ok := second.GetLiteralValue()
	if !ok {
		return false
	}
	mask := shiftedOutMask(lit)
	if mask == 0xFFFFFFFF {
		return false
	}
	writer, ok := op.GetFirstArg().GetSingleWriter().(*Operation)
	if !ok || writer.Op != OpShl || writer.HasPackMode() {
		return false
	}
	writerSecond, ok := writer.GetSecondArg()
	if !ok {
		return false
	}
	writerConst, haveWriterConst := writerSecond.GetConstantValue()
	opConst, haveOpConst := second.GetConstantValue()
	if !haveWriterConst || !haveOpConst || !writerConst.Equals(opConst) {
		return false
	}
	log.Debug("Replacing redundant left and right shift with same offset to and with mask", "instruction", op.String())
	op.ReplaceValue(op.GetFirstArg(), writer.GetFirstArg(), UseReader)
	op.ReplaceValue(second, NewLiteralValue(NewLiteral(mask), TypeInt32), UseReader)
	op.Op = OpAnd
	return true
}

// availableExpression is one entry of the per-block available-expression
// cache: the canonical expression, the instruction computing it and its
// position within the block.
type availableExpression struct {
	expr *Expression
	inst Instruction
	pos  int
}

// deriveAvailableExpression returns the cacheable expression computed by the
// instruction, requiring a local output and only local or constant operands.
func deriveAvailableExpression(inst Instruction) *Expression {
	if inst.CheckOutputLocal() == nil {
		return nil
	}
	expr := CreateExpression(inst)
	if expr == nil {
		return nil
	}
	if !subExpressionTracked(expr.Arg0) || (expr.HasSecondArg() && !subExpressionTracked(expr.Arg1)) {
		return nil
	}
	return expr
}

func subExpressionTracked(sub SubExpression) bool {
	value, ok := sub.CheckValue()
	if !ok {
		return false
	}
	if _, isReg := value.CheckRegister(); isReg {
		return false
	}
	return !value.IsUndefined()
}

// invalidateExpressions drops every cache entry referencing the redefined
// local, either as operand or as the output holding the cached value.
func invalidateExpressions(cache *lru.BasicLRU[string, availableExpression], redefined *Local) {
	for _, key := range cache.Keys() {
		entry, ok := cache.Peek(key)
		if !ok {
			continue
		}
		if entry.expr.References(redefined) {
			cache.Remove(key)
			continue
		}
		if outLocal := entry.inst.CheckOutputLocal(); outLocal == redefined {
			cache.Remove(key)
		}
	}
}

func expressionMaterializable(expr *Expression) bool {
	if _, ok := expr.Arg0.CheckValue(); !ok {
		return false
	}
	if expr.HasSecondArg() {
		if _, ok := expr.Arg1.CheckValue(); !ok {
			return false
		}
	}
	return true
}

// EliminateCommonSubexpressions replaces recomputations of an expression
// still available in the same block with a move from the prior result. The
// available set is bounded, reusing a result further away than the
// configured distance does not pay off against register pressure.
func EliminateCommonSubexpressions(method *Method, config *Configuration) (bool, error) {
	replacedSomething := false
	for _, block := range method.blocks {
		available := lru.NewBasicLRU[string, availableExpression](config.MaxCommonExpressionDistance)
		calculating := map[*Local]*Expression{}
		pos := 0
		for it := block.Walk(); !it.IsEndOfBlock(); it.NextInBlock() {
			inst := it.Get()
			out := inst.CheckOutputLocal()
			if out != nil {
				// drop stale state before deriving, the expression must not
				// depend on its own result
				delete(calculating, out)
				invalidateExpressions(&available, out)
			}
			expr := deriveAvailableExpression(inst)
			if expr == nil {
				pos++
				continue
			}

			key := expr.Key()
			if entry, ok := available.Get(key); ok && entry.inst != inst && pos-entry.pos <= config.MaxCommonExpressionDistance &&
				!expr.IsConstant() {
				// no gain in replacing constant loads with copies of a
				// local initialized to the same constant
				log.Debug("Found common subexpression", "instruction", inst.String(), "previous", entry.inst.String())
				output, _ := inst.GetOutput()
				prevOutput, _ := entry.inst.GetOutput()
				it.Reset(NewMoveOperation(output, prevOutput))
				replacedSomething = true
			} else if combined := expr.CombineWith(calculating); combined != nil && expressionMaterializable(combined) {
				log.Debug("Rewriting expression to combined form", "from", expr.String(), "to", combined.String())
				output, _ := inst.GetOutput()
				combined.InsertInstructions(&it, method, output)
				it.Erase()
				it.PreviousInBlock()
				replacedSomething = true
				newInst := it.Get()
				if loc := newInst.CheckOutputLocal(); loc != nil {
					calculating[loc] = combined
				}
				available.Add(combined.Key(), availableExpression{expr: combined, inst: newInst, pos: pos})
			} else {
				available.Add(key, availableExpression{expr: expr, inst: inst, pos: pos})
			}
			if out != nil {
				if _, ok := calculating[out]; !ok {
					calculating[out] = expr
				}
			}
			pos++
		}
	}
	return replacedSomething, nil
}
