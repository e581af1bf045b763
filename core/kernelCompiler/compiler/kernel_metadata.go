package compiler

import "math/bits"

// KernelUniforms records which implicit UNIFORMs (work-group info values)
// the kernel actually reads, one bit per builtin kind. Bits are cleared
// again when dead-code elimination proves a builtin unused.
type KernelUniforms struct {
	value uint64
}

// SetUsed sets or clears the used-bit for the given builtin kind.
func (u *KernelUniforms) SetUsed(kind BuiltinLocalKind, used bool) {
	if used {
		u.value |= 1 << uint(kind)
	} else {
		u.value &^= 1 << uint(kind)
	}
}

// IsUsed reports whether the builtin kind is marked as used.
func (u *KernelUniforms) IsUsed(kind BuiltinLocalKind) bool {
	return u.value&(1<<uint(kind)) != 0
}

// CountUniforms returns the number of implicit UNIFORMs in use.
func (u *KernelUniforms) CountUniforms() int {
	return bits.OnesCount64(u.value)
}

// The number of QPUs executing a work-group in parallel.
const numQPUs = 12

// KernelMetaData is the per-kernel meta-data shared with the host-side
// loader.
type KernelMetaData struct {
	// UniformsUsed tracks the implicit UNIFORMs actually read.
	UniformsUsed KernelUniforms
	// WorkGroupSizes is the compile-time work-group size, when fixed via
	// attribute.
	WorkGroupSizes [3]uint32
	// WorkGroupSizeHints is the preferred work-group size attribute.
	WorkGroupSizeHints [3]uint32
	// MergedWorkItemsFactor is the number of work-items merged into one QPU
	// execution.
	MergedWorkItemsFactor uint8
}

// GetFixedWorkGroupSize returns the attribute-fixed work-group size, if set.
func (m *KernelMetaData) GetFixedWorkGroupSize() (uint32, bool) {
	size := uint32(1)
	anySet := false
	for _, s := range m.WorkGroupSizes {
		if s > 0 {
			anySet = true
			size *= s
		}
	}
	if !anySet {
		return 0, false
	}
	return size, true
}

// GetMaximumWorkGroupSize returns the maximum number of work-items in a
// work-group for this kernel.
func (m *KernelMetaData) GetMaximumWorkGroupSize() uint32 {
	if fixed, ok := m.GetFixedWorkGroupSize(); ok {
		return fixed
	}
	factor := uint32(m.MergedWorkItemsFactor)
	if factor == 0 {
		factor = 1
	}
	return numQPUs * factor
}

// GetMaximumInstancesCount returns the maximum number of QPUs required for a
// single work-group.
func (m *KernelMetaData) GetMaximumInstancesCount() uint32 {
	factor := uint32(m.MergedWorkItemsFactor)
	if factor == 0 {
		factor = 1
	}
	if fixed, ok := m.GetFixedWorkGroupSize(); ok {
		count := fixed / factor
		if fixed%factor != 0 {
			count++
		}
		return count
	}
	return numQPUs
}
