package compiler

import "github.com/ethereum/go-ethereum/log"

// resolveConstantArg resolves the operand through its single writer to a
// constant, falling back to the operand itself.
func resolveConstantArg(value Value, depth int) Value {
	if writer := value.GetSingleWriter(); writer != nil {
		if constant, ok := writer.Precalculate(depth); ok {
			return constant
		}
	}
	return value
}

func valueHasLiteral(value Value, constant Value) bool {
	lit, ok := constant.GetLiteralValue()
	return ok && value.HasLiteral(lit)
}

func replacementMove(op *Operation, output, source Value) *MoveOperation {
	mov := NewMoveOperation(output, source)
	mov.SetCondition(op.GetCondition())
	mov.SetSetFlags(op.DoesSetFlag())
	mov.AddDecorations(op.Decorations())
	return mov
}

// SimplifyOperation rewrites operations whose result is determined by an
// operand being an identity or absorbing element of the opcode, self-inverse
// and idempotent operations on equal operands, XOR with all-ones into NOT,
// copies of a value onto itself and rotations of splat values.
func SimplifyOperation(method *Method, it InstructionWalker, config *Configuration) (InstructionWalker, bool) {
	changed := false
	if op, ok := it.Get().(*Operation); ok && op.IsSimpleOperation() {
		firstArg := resolveConstantArg(op.GetFirstArg(), config.PrecalculationDepth)
		secondArg, hasSecond := op.GetSecondArg()
		if hasSecond {
			secondArg = resolveConstantArg(secondArg, config.PrecalculationDepth)
		}

		rightIdentity, hasRightIdentity := op.Op.RightIdentity()
		leftIdentity, hasLeftIdentity := op.Op.LeftIdentity()
		rightAbsorbing, hasRightAbsorbing := op.Op.RightAbsorbingElement()
		leftAbsorbing, hasLeftAbsorbing := op.Op.LeftAbsorbingElement()

		output, _ := op.GetOutput()
		switch {
		case hasLeftAbsorbing && valueHasLiteral(firstArg, leftAbsorbing):
			log.Debug("Replacing operation absorbed by its first operand with move", "instruction", op.String())
			it.Reset(replacementMove(op, output, leftAbsorbing))
			changed = true
		case hasRightAbsorbing && hasSecond && valueHasLiteral(secondArg, rightAbsorbing):
			log.Debug("Replacing operation absorbed by its second operand with move", "instruction", op.String())
			it.Reset(replacementMove(op, output, rightAbsorbing))
			changed = true
		case op.Op.IsSelfInverse() && hasSecond && firstArg.Equals(secondArg) && firstArg.Type.ElementType() != TypeBool:
			// bool-typed self-inverses are kept, they encode inverted
			// conditions together with a companion or-instruction
			log.Debug("Replacing self-inverse operation on equal operands with move of zero", "instruction", op.String())
			it.Reset(replacementMove(op, output, NewLiteralValue(NewLiteral(0), output.Type)))
			changed = true
		case output.Equals(op.GetFirstArg()):
			if hasRightIdentity && hasSecond && valueHasLiteral(secondArg, rightIdentity) {
				log.Debug("Removing obsolete operation", "instruction", op.String())
				it.Erase()
				it.PreviousInBlock()
				changed = true
			} else if op.Op.IsIdempotent() && hasSecond && secondArg.Equals(firstArg) {
				log.Debug("Removing obsolete operation", "instruction", op.String())
				it.Erase()
				it.PreviousInBlock()
				changed = true
			}
		case hasSecond && output.Equals(op.AssertArgument(1)):
			if hasLeftIdentity && valueHasLiteral(firstArg, leftIdentity) {
				log.Debug("Removing obsolete operation", "instruction", op.String())
				it.Erase()
				it.PreviousInBlock()
				changed = true
			} else if op.Op.IsIdempotent() && secondArg.Equals(firstArg) && !firstArg.IsUndefined() {
				if _, isReg := firstArg.CheckRegister(); !isReg {
					log.Debug("Removing obsolete operation", "instruction", op.String())
					it.Erase()
					it.PreviousInBlock()
					changed = true
				}
			}
		default:
			if hasRightIdentity && hasSecond && valueHasLiteral(secondArg, rightIdentity) {
				log.Debug("Replacing operation with identity second operand with move", "instruction", op.String())
				it.Reset(replacementMove(op, output, op.GetFirstArg()))
				changed = true
			} else if hasLeftIdentity && hasSecond && valueHasLiteral(firstArg, leftIdentity) {
				log.Debug("Replacing operation with identity first operand with move", "instruction", op.String())
				it.Reset(replacementMove(op, output, op.AssertArgument(1)))
				changed = true
			} else if op.Op.IsIdempotent() && hasSecond && secondArg.Equals(firstArg) && !firstArg.IsUndefined() {
				if _, isReg := firstArg.CheckRegister(); !isReg {
					log.Debug("Replacing idempotent operation on equal operands with move", "instruction", op.String())
					it.Reset(replacementMove(op, output, op.AssertArgument(1)))
					changed = true
				}
			} else if op.Op == OpXor && hasSecond && op.GetFirstArg().HasLiteral(NewSignedLiteral(-1)) {
				// front ends emit ~%a as %a xor -1, turning it back frees
				// the local from a use-with-literal
				log.Debug("Replacing XOR with all-ones with NOT", "instruction", op.String())
				not := NewOperation(OpNot, output, op.AssertArgument(1))
				not.SetCondition(op.GetCondition())
				not.SetSetFlags(op.DoesSetFlag())
				not.AddDecorations(op.Decorations())
				it.Reset(not)
				changed = true
			} else if op.Op == OpXor && hasSecond && op.AssertArgument(1).HasLiteral(NewSignedLiteral(-1)) {
				log.Debug("Replacing XOR with all-ones with NOT", "instruction", op.String())
				not := NewOperation(OpNot, output, op.GetFirstArg())
				not.SetCondition(op.GetCondition())
				not.SetSetFlags(op.DoesSetFlag())
				not.AddDecorations(op.Decorations())
				it.Reset(not)
				changed = true
			}
		}
	} else if move, ok := it.Get().(*MoveOperation); ok {
		output, hasOutput := move.GetOutput()
		if hasOutput && move.GetSource().Equals(output) && move.IsSimpleMove() {
			log.Debug("Removing obsolete move", "instruction", move.String())
			it.Erase()
			it.PreviousInBlock()
			changed = true
		} else if move.GetVectorRotation() != nil && move.GetSource().IsAllSame() {
			// rotating a value equal in all lanes does not change it
			log.Debug("Replacing rotation of splat value with move", "instruction", move.String())
			move.clearVectorRotation()
			changed = true
		}
	}
	return it, changed
}

// FoldConstants replaces operations on constant operands with a move of the
// precalculated result. Flag setters and data conversions are skipped, a
// move cannot reproduce their behavior.
func FoldConstants(method *Method, it InstructionWalker, config *Configuration) (InstructionWalker, bool) {
	op, ok := it.Get().(*Operation)
	if !ok || op.DoesSetFlag() || op.HasUnpackMode() || op.HasPackMode() {
		return it, false
	}
	if !hasConstantLiteral(op.GetFirstArg()) {
		return it, false
	}
	if second, hasSecond := op.GetSecondArg(); hasSecond {
		if !hasConstantLiteral(second) {
			return it, false
		}
		if op.HasConditionalExecution() && op.Op == OpXor && second.Equals(op.GetFirstArg()) {
			// conditional "xor %r, val, val" is emitted on purpose to zero
			// one case of a selection, keep it for later combination
			return it, false
		}
	}
	if op.HasDecoration(DecorationConstantLoad) {
		// inserted to load this very constant, don't revert that
		return it, false
	}
	if value, ok := op.Precalculate(config.PrecalculationDepth); ok {
		log.Debug("Replacing operation with constant value", "instruction", op.String(), "value", value.String())
		output, _ := op.GetOutput()
		mov := NewMoveOperation(output, value)
		mov.CopyExtrasFrom(op)
		it.Reset(mov)
		return it, true
	}
	return it, false
}

func hasConstantLiteral(value Value) bool {
	constant, ok := value.GetConstantValue()
	if !ok {
		return false
	}
	_, ok = constant.GetLiteralValue()
	return ok
}

// EliminateReturn rewrites a return into a branch to the end-of-function
// block, creating that block if it does not exist yet.
func EliminateReturn(method *Method, it InstructionWalker, config *Configuration) (InstructionWalker, bool) {
	if _, ok := it.Get().(*Return); !ok {
		return it, false
	}
	target := method.FindBasicBlockByName(LastBlockName)
	if target == nil {
		target = method.CreateAndInsertNewBlock(len(method.blocks), LastBlockName)
	}
	log.Debug("Replacing return in kernel-function with branch to end-label")
	it.Reset(NewBranch(target.GetLabel().GetLabel()))
	return it, true
}

// createRegisterCheck returns the predicate deciding which instructions a
// propagated read of the source may legally be moved across.
func createRegisterCheck(src Value) func(Instruction) bool {
	reg, ok := src.CheckRegister()
	if !ok {
		return func(Instruction) bool { return true }
	}
	if reg == RegSFUOut {
		// r4 delivery, allow as long as nothing else writes r4
		return func(inst Instruction) bool {
			if outReg, ok := inst.CheckOutputRegister(); ok && outReg.TriggersReadOfR4() {
				return false
			}
			return !inst.GetSignal().TriggersReadOfR4()
		}
	}
	if reg == RegAcc5 {
		// allow as long as neither r5 nor any replication register is
		// written
		return func(inst Instruction) bool {
			outReg, ok := inst.CheckOutputRegister()
			return !ok || !outReg.IsReplicationClass()
		}
	}
	if reg.IsGeneralPurpose() {
		// plain storage, the read stays valid until the register is
		// written again
		return func(inst Instruction) bool {
			return !inst.WritesRegister(reg)
		}
	}
	// any other register did not get a proper check, do not move across
	// anything
	return func(Instruction) bool { return false }
}

// PropagateMoves substitutes reads of a moved local with the move's source,
// within the defining block only. Crossing block boundaries is unsafe in
// diamond-shaped control flow, a propagation into the join block can pick
// the wrong value.
func PropagateMoves(method *Method, config *Configuration) (bool, error) {
	replaced := false
	groupIDsLocal := method.FindBuiltin(BuiltinGroupIDs)
	it := method.WalkAllInstructions()
	for !it.IsEndOfMethod() {
		move, ok := it.Get().(*MoveOperation)
		if ok && move.GetVectorRotation() == nil && !move.HasConditionalExecution() && !move.HasPackMode() &&
			!move.HasUnpackMode() && propagationSourceAllowed(move) && !readsGroupIDs(move, groupIDsLocal) {
			oldValue, hasOutput := move.GetOutput()
			if hasOutput && oldValue.CheckLocal() != nil {
				newValue := move.GetSource()
				remainingReads := map[Instruction]struct{}{}
				for _, reader := range oldValue.Local().GetUsers(UseReader) {
					remainingReads[reader] = struct{}{}
				}
				// registers fixed to physical file B conflict with literal
				// operands in the same instruction
				skipLiteralReads := false
				if reg, ok := newValue.CheckRegister(); ok && reg.File == FilePhysicalB {
					skipLiteralReads = true
				}
				checkRegister := createRegisterCheck(newValue)

				it2 := it.Copy()
				it2.NextInBlock()
				for !it2.IsEndOfBlock() && len(remainingReads) > 0 {
					replacedThis := false
					if !skipLiteralReads || !it2.Get().ReadsLiteral() {
						for _, arg := range it2.Get().GetArguments() {
							if arg.Equals(oldValue) {
								replaced = true
								replacedThis = true
								it2.Get().ReplaceValue(oldValue, newValue, UseReader)
								delete(remainingReads, it2.Get())
							}
						}
					}
					if replacedThis {
						it2, _ = FoldConstants(method, it2, config)
					}
					if out, ok := it2.Get().GetOutput(); ok && out.Equals(oldValue) {
						break
					}
					if !checkRegister(it2.Get()) {
						break
					}
					it2.NextInBlock()
				}
			}
		}
		it.NextInMethod()
	}
	return replaced, nil
}

func propagationSourceAllowed(move *MoveOperation) bool {
	src := move.GetSource()
	if reg, ok := src.CheckRegister(); ok && reg.HasSideEffectsOnRead() {
		return false
	}
	if _, ok := move.CheckOutputRegister(); ok {
		return false
	}
	if move.ReadsLiteral() {
		lit, ok := src.GetLiteralValue()
		if !ok {
			return false
		}
		if _, ok := ToSmallImmediate(lit); !ok {
			return false
		}
	}
	return true
}

func readsGroupIDs(move *MoveOperation, groupIDs *Local) bool {
	// the handcrafted work-group loop relies on the group-ids local staying
	// in place
	return groupIDs != nil && move.ReadsLocal(groupIDs)
}

// RewriteConstantSFUCall replaces a special-functions-unit call on a
// constant input with a move of the precomputed result, dropping the call,
// both wait-nops and rewriting the r4 read.
func RewriteConstantSFUCall(method *Method, it InstructionWalker, config *Configuration) (InstructionWalker, bool, error) {
	inst := it.Get()
	if inst == nil {
		return it, false, nil
	}
	outReg, ok := inst.CheckOutputRegister()
	if !ok || !outReg.IsSpecialFunctionsUnit() {
		return it, false, nil
	}
	if inst.HasConditionalExecution() {
		// a conditional SFU write may have a conditional companion write
		return it, false, nil
	}
	if inst.HasOtherSideEffects(SideEffectRegisterWrite) {
		return it, false, nil
	}
	if inst.HasPackMode() || inst.HasUnpackMode() {
		return it, false, nil
	}
	constant, ok := inst.Precalculate(config.PrecalculationDepth)
	if !ok {
		return it, false, nil
	}
	result, ok := PrecalculateSFU(outReg, constant)
	if !ok {
		return it, false, nil
	}
	log.Debug("Replacing SFU call with constant input with move of result",
		"instruction", inst.String(), "result", result.String())

	it.Erase()
	numDelays := 2
	for numDelays != 0 && !it.IsEndOfBlock() {
		if nop, ok := it.Get().(*Nop); ok && nop.Delay == DelayWaitSFU {
			it.Erase()
			numDelays--
		} else {
			it.NextInBlock()
		}
	}
	if it.IsEndOfBlock() {
		return it, false, newCompilationError(StepOptimizer, "Failed to find both NOPs for waiting for SFU result", "")
	}
	for !it.IsEndOfBlock() {
		if it.Get().ReadsRegister(RegSFUOut) {
			output, _ := it.Get().GetOutput()
			mov := NewMoveOperation(output, result)
			mov.CopyExtrasFrom(it.Get())
			it.Reset(mov)
			break
		}
		it.NextInBlock()
	}
	if it.IsEndOfBlock() {
		return it, false, newCompilationError(StepOptimizer, "Failed to find the reading of the SFU result", "")
	}
	// revisit the rewritten instruction
	it.PreviousInBlock()
	return it, true, nil
}
