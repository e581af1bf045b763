package compiler

// LocalUseType selects which kind of use of a local is meant.
type LocalUseType uint8

const (
	UseReader LocalUseType = 1 << 0
	UseWriter LocalUseType = 1 << 1
	UseBoth   LocalUseType = UseReader | UseWriter
)

// LocalUse counts how often a single instruction reads and writes a local.
// An instruction referencing the same local in two argument slots has two
// reads recorded.
type LocalUse struct {
	NumReads  uint32
	NumWrites uint32
}

func (u LocalUse) ReadsLocal() bool  { return u.NumReads > 0 }
func (u LocalUse) WritesLocal() bool { return u.NumWrites > 0 }

// LocalKind discriminates the specializations of Local.
type LocalKind uint8

const (
	LocalGeneral LocalKind = iota
	LocalLabel
	LocalParameter
	LocalGlobal
	LocalStackAllocation
	LocalBuiltin
)

// BuiltinLocalKind enumerates the implicit kernel-context values handed to a
// kernel via UNIFORMs.
type BuiltinLocalKind uint8

const (
	BuiltinWorkDimensions BuiltinLocalKind = iota
	BuiltinLocalSizes
	BuiltinLocalIDs
	BuiltinNumGroupsX
	BuiltinNumGroupsY
	BuiltinNumGroupsZ
	BuiltinGroupIDX
	BuiltinGroupIDY
	BuiltinGroupIDZ
	BuiltinGroupIDs
	BuiltinGlobalOffsetX
	BuiltinGlobalOffsetY
	BuiltinGlobalOffsetZ
	BuiltinGlobalDataAddress
	BuiltinUniformAddress
	BuiltinMaxGroupIDX
	BuiltinMaxGroupIDY
	BuiltinMaxGroupIDZ
	numBuiltinLocals
)

// Local is a named, typed storage location abstracted over hardware
// registers. It owns the mapping from every instruction using it to the
// kind(s) of use, kept consistent by the instruction setters and the walker.
type Local struct {
	Name    string
	Type    DataType
	Kind    LocalKind
	Builtin BuiltinLocalKind

	users map[Instruction]*LocalUse

	// multiReg links a >32-bit local to its 32-bit lower/upper halves.
	multiReg *MultiRegisterData
	// reference carries addressing metadata towards a memory-backed local.
	reference *ReferenceData
}

// MultiRegisterData is the permanent decomposition of a 64-bit local into
// two independent 32-bit locals.
type MultiRegisterData struct {
	Lower *Local
	Upper *Local
}

// ReferenceData marks a local as holding an address derived from a
// memory-backed base local.
type ReferenceData struct {
	Base *Local
}

func newLocal(typ DataType, name string, kind LocalKind) *Local {
	return &Local{Name: name, Type: typ, Kind: kind, users: map[Instruction]*LocalUse{}}
}

// CreateReference returns a value referencing this local.
func (l *Local) CreateReference() Value {
	return NewLocalValue(l)
}

func (l *Local) IsParameter() bool { return l.Kind == LocalParameter }

// ResidesInMemory reports whether the local is backed by actual memory
// rather than a register.
func (l *Local) ResidesInMemory() bool {
	return l.Kind == LocalGlobal || l.Kind == LocalStackAllocation
}

// MultiRegister returns the lower/upper pair for long locals, or nil.
func (l *Local) MultiRegister() *MultiRegisterData { return l.multiReg }

// Reference returns the addressing metadata, or nil.
func (l *Local) Reference() *ReferenceData { return l.reference }

// SetReference attaches addressing metadata, keeping an existing entry.
func (l *Local) SetReference(ref ReferenceData) {
	if l.reference == nil {
		l.reference = &ref
	}
}

func (l *Local) addUser(user Instruction, use LocalUseType) {
	entry := l.users[user]
	if entry == nil {
		entry = &LocalUse{}
		l.users[user] = entry
	}
	if use&UseReader != 0 {
		entry.NumReads++
	}
	if use&UseWriter != 0 {
		entry.NumWrites++
	}
}

func (l *Local) removeUser(user Instruction, use LocalUseType) {
	entry := l.users[user]
	if entry == nil {
		return
	}
	if use&UseReader != 0 && entry.NumReads > 0 {
		entry.NumReads--
	}
	if use&UseWriter != 0 && entry.NumWrites > 0 {
		entry.NumWrites--
	}
	if entry.NumReads == 0 && entry.NumWrites == 0 {
		delete(l.users, user)
	}
}

// HasUsers reports whether any instruction uses the local in the given way.
func (l *Local) HasUsers(use LocalUseType) bool {
	for _, entry := range l.users {
		if use&UseReader != 0 && entry.ReadsLocal() {
			return true
		}
		if use&UseWriter != 0 && entry.WritesLocal() {
			return true
		}
	}
	return false
}

// CountUsers counts the instructions using the local in the given way.
func (l *Local) CountUsers(use LocalUseType) int {
	count := 0
	for _, entry := range l.users {
		if (use&UseReader != 0 && entry.ReadsLocal()) || (use&UseWriter != 0 && entry.WritesLocal()) {
			count++
		}
	}
	return count
}

// GetUsers returns the instructions using the local in the given way.
func (l *Local) GetUsers(use LocalUseType) []Instruction {
	var users []Instruction
	for user, entry := range l.users {
		if (use&UseReader != 0 && entry.ReadsLocal()) || (use&UseWriter != 0 && entry.WritesLocal()) {
			users = append(users, user)
		}
	}
	return users
}

// AllUsers returns a snapshot of the user map.
func (l *Local) AllUsers() map[Instruction]LocalUse {
	snapshot := make(map[Instruction]LocalUse, len(l.users))
	for user, entry := range l.users {
		snapshot[user] = *entry
	}
	return snapshot
}

// ForUsers calls the consumer for every instruction using the local in the
// given way. The consumer may mutate the use registrations.
func (l *Local) ForUsers(use LocalUseType, consumer func(Instruction)) {
	for _, user := range l.GetUsers(use) {
		consumer(user)
	}
}

// GetSingleWriter returns the only writing instruction, or nil if the local
// has no or several writers.
func (l *Local) GetSingleWriter() Instruction {
	var writer Instruction
	for user, entry := range l.users {
		if entry.WritesLocal() {
			if writer != nil {
				return nil
			}
			writer = user
		}
	}
	return writer
}

func (l *Local) String() string {
	return l.Type.String() + " " + l.Name
}

// Parameter is a function parameter local.
type Parameter struct {
	*Local
	// MaxByteOffset limits how far a pointer parameter is accessed, when
	// known from the front end.
	MaxByteOffset int
}

// Global is a module-level data object.
type Global struct {
	*Local
	InitialValue Value
}

// StackAllocation is a per-invocation scratch object on the in-memory stack.
type StackAllocation struct {
	*Local
	Size      int
	Alignment int
	Offset    int
	// IsLowered marks allocations placed into VPM or registers, which do
	// not occupy in-memory stack space.
	IsLowered bool
}
