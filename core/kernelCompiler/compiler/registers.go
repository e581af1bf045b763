package compiler

import "fmt"

// RegisterFile identifies which part of the register file a register lives in.
type RegisterFile uint8

const (
	FileNone        RegisterFile = 0
	FilePhysicalA   RegisterFile = 1 << 0
	FilePhysicalB   RegisterFile = 1 << 1
	FilePhysicalAny RegisterFile = FilePhysicalA | FilePhysicalB
	FileAccumulator RegisterFile = 1 << 2
)

// Register is a concrete hardware storage location. The address space follows
// the VideoCore IV register map, where addresses 32 and up are the peripheral
// and special-purpose registers shared between both physical files.
type Register struct {
	File RegisterFile
	Addr uint8
}

// The named special registers referenced by the optimizations.
var (
	RegNop           = Register{FilePhysicalAny, 39}
	RegUniform       = Register{FilePhysicalAny, 32}
	RegAcc5          = Register{FileAccumulator, 5}
	RegReplicateQuad = Register{FilePhysicalA, 37}
	RegReplicateAll  = Register{FilePhysicalB, 37}
	RegSFUOut        = Register{FileAccumulator, 4}
	RegTMUOut        = Register{FileAccumulator, 4}
	RegSFURecip      = Register{FilePhysicalAny, 52}
	RegSFURecipSqrt  = Register{FilePhysicalAny, 53}
	RegSFUExp2       = Register{FilePhysicalAny, 54}
	RegSFULog2       = Register{FilePhysicalAny, 55}
	RegTMU0Address   = Register{FilePhysicalAny, 56}
	RegTMU1Address   = Register{FilePhysicalAny, 60}
	RegVPMIO         = Register{FilePhysicalAny, 48}
	RegVPMInSetup    = Register{FilePhysicalA, 49}
	RegVPMOutSetup   = Register{FilePhysicalB, 49}
	RegVPMInWait     = Register{FilePhysicalA, 50}
	RegVPMOutWait    = Register{FilePhysicalB, 50}
	RegMutex         = Register{FilePhysicalAny, 51}
	RegHostInterrupt = Register{FilePhysicalAny, 38}
)

// IsSpecialFunctionsUnit reports whether writing this register starts a
// special-function computation (reciprocal, rsqrt, exp2, log2).
func (r Register) IsSpecialFunctionsUnit() bool {
	return r.Addr >= 52 && r.Addr <= 55
}

// TriggersReadOfR4 reports whether writing this register eventually delivers
// a result into the r4 accumulator (SFU calls and TMU address writes).
func (r Register) TriggersReadOfR4() bool {
	return r.IsSpecialFunctionsUnit() || r == RegTMU0Address || r == RegTMU1Address
}

// IsReplicationClass reports whether this register belongs to the r5
// replication hazard class, whose accesses must not be reordered against each
// other.
func (r Register) IsReplicationClass() bool {
	return r == RegAcc5 || r == RegReplicateQuad || r == RegReplicateAll
}

// IsVertexPipelineMemory reports whether this register accesses the VPM.
func (r Register) IsVertexPipelineMemory() bool {
	return r.Addr >= 48 && r.Addr <= 50
}

// HasSideEffectsOnRead reports whether reading this register modifies
// peripheral state (popping a UNIFORM, consuming a VPM word, locking the
// mutex).
func (r Register) HasSideEffectsOnRead() bool {
	return r == RegUniform || r.IsVertexPipelineMemory() || r == RegMutex
}

// HasSideEffectsOnWrite reports whether writing this register triggers
// peripheral behavior beyond storing the value.
func (r Register) HasSideEffectsOnWrite() bool {
	return r.IsSpecialFunctionsUnit() || r.IsVertexPipelineMemory() || r == RegMutex ||
		r == RegHostInterrupt || (r.Addr >= 56 && r.Addr <= 63)
}

// IsAccumulator reports whether the register is one of the r0-r5
// accumulators.
func (r Register) IsAccumulator() bool {
	return r.File == FileAccumulator
}

// IsGeneralPurpose reports whether the register is a plain physical-file
// register without any peripheral behavior.
func (r Register) IsGeneralPurpose() bool {
	return r.File != FileAccumulator && r.Addr < 32
}

func (r Register) String() string {
	switch r {
	case RegNop:
		return "-"
	case RegUniform:
		return "unif"
	case RegAcc5:
		return "r5"
	case RegReplicateQuad:
		return "rep_quad"
	case RegReplicateAll:
		return "rep_all"
	case RegSFUOut:
		return "r4"
	case RegSFURecip:
		return "sfu_recip"
	case RegSFURecipSqrt:
		return "sfu_rsqrt"
	case RegSFUExp2:
		return "sfu_exp2"
	case RegSFULog2:
		return "sfu_log2"
	case RegTMU0Address:
		return "tmu0s"
	case RegTMU1Address:
		return "tmu1s"
	case RegVPMIO:
		return "vpm"
	case RegMutex:
		return "mutex"
	}
	file := "?"
	switch r.File {
	case FilePhysicalA:
		file = "ra"
	case FilePhysicalB:
		file = "rb"
	case FilePhysicalAny:
		file = "r"
	case FileAccumulator:
		return fmt.Sprintf("r%d", r.Addr)
	}
	return fmt.Sprintf("%s%d", file, r.Addr)
}
