package compiler

import (
	"github.com/ethereum/go-ethereum/metrics"
)

// Pass is a single optimization step over a method. It reports whether it
// changed anything, so the caller can iterate the passes to a fixed point.
type Pass func(*Method, *Configuration) (bool, error)

var (
	deadCodeCounter      = metrics.NewRegisteredCounter("vc4c/optimizer/deadcode/removed", nil)
	simplifyCounter      = metrics.NewRegisteredCounter("vc4c/optimizer/simplification/rewritten", nil)
	foldCounter          = metrics.NewRegisteredCounter("vc4c/optimizer/constantfolding/folded", nil)
	sfuCounter           = metrics.NewRegisteredCounter("vc4c/optimizer/sfu/rewritten", nil)
	propagateCounter     = metrics.NewRegisteredCounter("vc4c/optimizer/movepropagation/applied", nil)
	redundantMoveCounter = metrics.NewRegisteredCounter("vc4c/optimizer/redundantmoves/removed", nil)
	bitOpCounter         = metrics.NewRegisteredCounter("vc4c/optimizer/bitops/rewritten", nil)
	cseCounter           = metrics.NewRegisteredCounter("vc4c/optimizer/subexpressions/replaced", nil)
	returnCounter        = metrics.NewRegisteredCounter("vc4c/optimizer/returns/lowered", nil)
)

// walkerPass lifts a per-instruction rewrite into a whole-method pass,
// counting each applied rewrite.
func walkerPass(counter metrics.Counter,
	rewrite func(*Method, InstructionWalker, *Configuration) (InstructionWalker, bool)) Pass {
	return func(method *Method, config *Configuration) (bool, error) {
		changed := false
		it := method.WalkAllInstructions()
		for !it.IsEndOfMethod() {
			next, applied := rewrite(method, it, config)
			if applied {
				changed = true
				counter.Inc(1)
			}
			it = next
			it.NextInMethod()
		}
		return changed, nil
	}
}

func walkerPassErr(counter metrics.Counter,
	rewrite func(*Method, InstructionWalker, *Configuration) (InstructionWalker, bool, error)) Pass {
	return func(method *Method, config *Configuration) (bool, error) {
		changed := false
		it := method.WalkAllInstructions()
		for !it.IsEndOfMethod() {
			next, applied, err := rewrite(method, it, config)
			if err != nil {
				return changed, err
			}
			if applied {
				changed = true
				counter.Inc(1)
			}
			it = next
			it.NextInMethod()
		}
		return changed, nil
	}
}

func countingPass(counter metrics.Counter, pass Pass) Pass {
	return func(method *Method, config *Configuration) (bool, error) {
		changed, err := pass(method, config)
		if changed {
			counter.Inc(1)
		}
		return changed, err
	}
}

// Passes maps pass names to their implementations. The order in which they
// are combined and iterated is up to the caller.
var Passes = map[string]Pass{
	"eliminate-dead-code":              countingPass(deadCodeCounter, EliminateDeadCode),
	"simplify-operations":              walkerPass(simplifyCounter, SimplifyOperation),
	"fold-constants":                   walkerPass(foldCounter, FoldConstants),
	"rewrite-constant-sfu":             walkerPassErr(sfuCounter, RewriteConstantSFUCall),
	"propagate-moves":                  countingPass(propagateCounter, PropagateMoves),
	"eliminate-redundant-move":         countingPass(redundantMoveCounter, EliminateRedundantMoves),
	"eliminate-redundant-bitop":        countingPass(bitOpCounter, EliminateRedundantBitOp),
	"common-subexpression-elimination": countingPass(cseCounter, EliminateCommonSubexpressions),
	"eliminate-return":                 walkerPass(returnCounter, EliminateReturn),
}
