package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestCompilationErrorFormat(t *testing.T) {
	err := newCompilationError(StepOptimizer, "Failed to find the reading of the SFU result", "")
	if got := err.Error(); !strings.HasPrefix(got, "[Optimizer]") {
		t.Errorf("the message should name the raising stage, got %q", got)
	}
	withDetail := newCompilationError(StepGeneral, "Local is already defined for method", "%val")
	if got := withDetail.Error(); !strings.Contains(got, "%val") {
		t.Errorf("the detail should appear in the message, got %q", got)
	}
}

func TestCompilationErrorCategoryMatch(t *testing.T) {
	err := newCompilationError(StepOptimizer, "Failed to find both NOPs for waiting for SFU result", "")
	if !errors.Is(err, ErrOptimizer) {
		t.Error("an optimizer error must match the optimizer category")
	}
	if errors.Is(err, ErrGeneral) {
		t.Error("an optimizer error must not match the general category")
	}
}
