package compiler

import (
	"fmt"
	"strings"
)

// ConditionCode is the conditional-execution predicate of an instruction.
type ConditionCode uint8

const (
	CondNever ConditionCode = iota
	CondAlways
	CondZeroSet
	CondZeroClear
	CondNegativeSet
	CondNegativeClear
	CondCarrySet
	CondCarryClear
)

func (c ConditionCode) String() string {
	switch c {
	case CondNever:
		return "never"
	case CondZeroSet:
		return "ifz"
	case CondZeroClear:
		return "ifnz"
	case CondNegativeSet:
		return "ifn"
	case CondNegativeClear:
		return "ifnn"
	case CondCarrySet:
		return "ifc"
	case CondCarryClear:
		return "ifnc"
	}
	return ""
}

// Signal is a side-channel hardware trigger issued together with an
// instruction.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalLoadTMU0
	SignalLoadTMU1
	SignalLoadAlpha
	SignalLoadColor
	SignalThreadSwitch
	SignalProgramEnd
)

// HasSideEffects reports whether issuing the signal changes hardware state.
func (s Signal) HasSideEffects() bool { return s != SignalNone }

// TriggersReadOfR4 reports whether the signal loads a value into r4.
func (s Signal) TriggersReadOfR4() bool {
	switch s {
	case SignalLoadTMU0, SignalLoadTMU1, SignalLoadAlpha, SignalLoadColor:
		return true
	}
	return false
}

func (s Signal) String() string {
	switch s {
	case SignalLoadTMU0:
		return "load_tmu0"
	case SignalLoadTMU1:
		return "load_tmu1"
	case SignalLoadAlpha:
		return "load_alpha"
	case SignalLoadColor:
		return "load_color"
	case SignalThreadSwitch:
		return "thrsw"
	case SignalProgramEnd:
		return "thrend"
	}
	return ""
}

// Pack is an output data-format conversion.
type Pack uint8

const (
	PackNone Pack = iota
	Pack16A
	Pack16B
	Pack8888
	PackSat32
)

// Unpack is an input data-format conversion.
type Unpack uint8

const (
	UnpackNone Unpack = iota
	Unpack16A
	Unpack16B
	Unpack8A
	Unpack8B
	Unpack8C
	Unpack8D
)

// IsByteExtraction reports whether the mode extracts a single byte,
// zero-extended to 32 bit.
func (u Unpack) IsByteExtraction() bool {
	return u >= Unpack8A && u <= Unpack8D
}

// VectorRotation is a per-lane cyclic shift applied to a move's source.
type VectorRotation struct {
	Offset SmallImmediate
}

// InstructionDecorations are extra facts attached to an instruction.
type InstructionDecorations uint32

const (
	DecorationPhiNode InstructionDecorations = 1 << iota
	DecorationConstantLoad
	DecorationUnsignedResult
	DecorationWorkGroupUniform
)

// ForwardDecorations filters the decorations which stay valid when the
// decorated result is forwarded through a move.
func ForwardDecorations(deco InstructionDecorations) InstructionDecorations {
	return deco & (DecorationUnsignedResult | DecorationWorkGroupUniform)
}

// SideEffectType classifies the possible side effects of an instruction.
type SideEffectType uint8

const (
	SideEffectFlags SideEffectType = 1 << iota
	SideEffectSignal
	SideEffectRegisterRead
	SideEffectRegisterWrite
	SideEffectBranch
)

// DelayType is the reason a Nop was inserted.
type DelayType uint8

const (
	DelayNone DelayType = iota
	DelayWaitSFU
	DelayWaitTMU
	DelayWaitRegister
	DelayBranch
)

// Instruction is the shared capability surface of all IR instruction
// variants. All argument and output mutation funnels through the setters so
// the local user maps stay consistent with the instruction stream.
type Instruction interface {
	GetOutput() (Value, bool)
	SetOutput(Value)
	CheckOutputLocal() *Local
	CheckOutputRegister() (Register, bool)
	GetArguments() []Value
	AssertArgument(index int) Value
	SetArgument(index int, value Value)
	ReplaceValue(oldValue, newValue Value, use LocalUseType) int

	DoesSetFlag() bool
	SetSetFlags(bool)
	GetCondition() ConditionCode
	SetCondition(ConditionCode)
	HasConditionalExecution() bool
	GetSignal() Signal
	SetSignal(Signal)
	GetPackMode() Pack
	GetUnpackMode() Unpack
	SetPackMode(Pack)
	SetUnpackMode(Unpack)
	HasPackMode() bool
	HasUnpackMode() bool
	GetVectorRotation() *VectorRotation

	GetSideEffects() SideEffectType
	HasSideEffects() bool
	HasOtherSideEffects(excluded SideEffectType) bool

	ReadsLocal(*Local) bool
	WritesLocal(*Local) bool
	ReadsRegister(Register) bool
	WritesRegister(Register) bool
	ReadsLiteral() bool

	AddDecorations(InstructionDecorations)
	HasDecoration(InstructionDecorations) bool
	Decorations() InstructionDecorations
	CopyExtrasFrom(Instruction)

	Precalculate(depth int) (Value, bool)
	Release()
	String() string
}

type baseInstruction struct {
	self        Instruction
	output      *Value
	args        []Value
	setFlags    bool
	condition   ConditionCode
	signal      Signal
	packMode    Pack
	unpackMode  Unpack
	decorations InstructionDecorations
}

func (b *baseInstruction) init(self Instruction, output *Value, args ...Value) {
	b.self = self
	b.condition = CondAlways
	b.args = args
	if output != nil && !output.IsUndefined() {
		b.output = output
	}
	if b.output != nil {
		if local := b.output.CheckLocal(); local != nil {
			local.addUser(self, UseWriter)
		}
	}
	for _, arg := range b.args {
		if local := arg.CheckLocal(); local != nil {
			local.addUser(self, UseReader)
		}
	}
}

func (b *baseInstruction) GetOutput() (Value, bool) {
	if b.output == nil {
		return Value{}, false
	}
	return *b.output, true
}

func (b *baseInstruction) SetOutput(value Value) {
	if b.output != nil {
		if local := b.output.CheckLocal(); local != nil {
			local.removeUser(b.self, UseWriter)
		}
	}
	if value.IsUndefined() {
		b.output = nil
		return
	}
	b.output = &value
	if local := value.CheckLocal(); local != nil {
		local.addUser(b.self, UseWriter)
	}
}

func (b *baseInstruction) CheckOutputLocal() *Local {
	if b.output == nil {
		return nil
	}
	return b.output.CheckLocal()
}

func (b *baseInstruction) CheckOutputRegister() (Register, bool) {
	if b.output == nil {
		return Register{}, false
	}
	return b.output.CheckRegister()
}

func (b *baseInstruction) GetArguments() []Value {
	args := make([]Value, len(b.args))
	copy(args, b.args)
	return args
}

func (b *baseInstruction) AssertArgument(index int) Value {
	if index >= len(b.args) {
		panic(fmt.Sprintf("instruction has no argument %d: %s", index, b.self.String()))
	}
	return b.args[index]
}

func (b *baseInstruction) SetArgument(index int, value Value) {
	if index >= len(b.args) {
		panic(fmt.Sprintf("instruction has no argument %d: %s", index, b.self.String()))
	}
	if local := b.args[index].CheckLocal(); local != nil {
		local.removeUser(b.self, UseReader)
	}
	b.args[index] = value
	if local := value.CheckLocal(); local != nil {
		local.addUser(b.self, UseReader)
	}
}

// ReplaceValue swaps every matching argument (UseReader) and/or the output
// (UseWriter) and returns the number of replacements.
func (b *baseInstruction) ReplaceValue(oldValue, newValue Value, use LocalUseType) int {
	replaced := 0
	if use&UseReader != 0 {
		for i, arg := range b.args {
			if arg.Equals(oldValue) {
				newArg := newValue
				newArg.Type = arg.Type
				b.SetArgument(i, newArg)
				replaced++
			}
		}
	}
	if use&UseWriter != 0 && b.output != nil && b.output.Equals(oldValue) {
		newOut := newValue
		newOut.Type = b.output.Type
		b.SetOutput(newOut)
		replaced++
	}
	return replaced
}

func (b *baseInstruction) DoesSetFlag() bool              { return b.setFlags }
func (b *baseInstruction) SetSetFlags(setFlags bool)      { b.setFlags = setFlags }
func (b *baseInstruction) GetCondition() ConditionCode    { return b.condition }
func (b *baseInstruction) SetCondition(c ConditionCode)   { b.condition = c }
func (b *baseInstruction) HasConditionalExecution() bool  { return b.condition != CondAlways }
func (b *baseInstruction) GetSignal() Signal              { return b.signal }
func (b *baseInstruction) SetSignal(s Signal)             { b.signal = s }
func (b *baseInstruction) GetPackMode() Pack              { return b.packMode }
func (b *baseInstruction) GetUnpackMode() Unpack          { return b.unpackMode }
func (b *baseInstruction) SetPackMode(p Pack)             { b.packMode = p }
func (b *baseInstruction) SetUnpackMode(u Unpack)         { b.unpackMode = u }
func (b *baseInstruction) HasPackMode() bool              { return b.packMode != PackNone }
func (b *baseInstruction) HasUnpackMode() bool            { return b.unpackMode != UnpackNone }
func (b *baseInstruction) GetVectorRotation() *VectorRotation { return nil }

func (b *baseInstruction) GetSideEffects() SideEffectType {
	var effects SideEffectType
	if b.setFlags {
		effects |= SideEffectFlags
	}
	if b.signal.HasSideEffects() {
		effects |= SideEffectSignal
	}
	if b.output != nil {
		if reg, ok := b.output.CheckRegister(); ok && reg.HasSideEffectsOnWrite() {
			effects |= SideEffectRegisterWrite
		}
	}
	for _, arg := range b.args {
		if reg, ok := arg.CheckRegister(); ok && reg.HasSideEffectsOnRead() {
			effects |= SideEffectRegisterRead
		}
	}
	return effects
}

func (b *baseInstruction) HasSideEffects() bool {
	return b.self.GetSideEffects() != 0
}

func (b *baseInstruction) HasOtherSideEffects(excluded SideEffectType) bool {
	return b.self.GetSideEffects()&^excluded != 0
}

func (b *baseInstruction) ReadsLocal(local *Local) bool {
	for _, arg := range b.args {
		if arg.HasLocal(local) {
			return true
		}
	}
	return false
}

func (b *baseInstruction) WritesLocal(local *Local) bool {
	return b.output != nil && b.output.HasLocal(local)
}

func (b *baseInstruction) ReadsRegister(reg Register) bool {
	for _, arg := range b.args {
		if arg.HasRegister(reg) {
			return true
		}
	}
	return false
}

func (b *baseInstruction) WritesRegister(reg Register) bool {
	return b.output != nil && b.output.HasRegister(reg)
}

func (b *baseInstruction) ReadsLiteral() bool {
	for _, arg := range b.args {
		if _, ok := arg.GetLiteralValue(); ok {
			return true
		}
	}
	return false
}

func (b *baseInstruction) AddDecorations(deco InstructionDecorations) {
	b.decorations |= deco
}

func (b *baseInstruction) HasDecoration(deco InstructionDecorations) bool {
	return b.decorations&deco == deco
}

func (b *baseInstruction) Decorations() InstructionDecorations { return b.decorations }

func (b *baseInstruction) CopyExtrasFrom(other Instruction) {
	if other == nil {
		return
	}
	if other.HasConditionalExecution() {
		b.condition = other.GetCondition()
	}
	if other.DoesSetFlag() {
		b.setFlags = true
	}
	if other.GetSignal() != SignalNone {
		b.signal = other.GetSignal()
	}
	if other.HasPackMode() {
		b.packMode = other.GetPackMode()
	}
	if other.HasUnpackMode() {
		b.unpackMode = other.GetUnpackMode()
	}
	b.decorations |= other.Decorations()
}

func (b *baseInstruction) Precalculate(depth int) (Value, bool) {
	return Value{}, false
}

// Release deregisters the instruction from all locals it references. Must be
// called exactly once when the instruction leaves the instruction stream.
func (b *baseInstruction) Release() {
	if b.output != nil {
		if local := b.output.CheckLocal(); local != nil {
			local.removeUser(b.self, UseWriter)
		}
	}
	for _, arg := range b.args {
		if local := arg.CheckLocal(); local != nil {
			local.removeUser(b.self, UseReader)
		}
	}
}

func (b *baseInstruction) extrasString() string {
	var parts []string
	if b.setFlags {
		parts = append(parts, "setf")
	}
	if b.condition != CondAlways {
		parts = append(parts, b.condition.String())
	}
	if b.signal != SignalNone {
		parts = append(parts, b.signal.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// Operation is a unary or binary ALU operation.
type Operation struct {
	baseInstruction
	Op OpCode
}

func NewOperation(op OpCode, output, first Value) *Operation {
	o := &Operation{Op: op}
	o.init(o, &output, first)
	return o
}

func NewBinaryOperation(op OpCode, output, first, second Value) *Operation {
	o := &Operation{Op: op}
	o.init(o, &output, first, second)
	return o
}

// GetFirstArg returns the first operand.
func (o *Operation) GetFirstArg() Value {
	return o.AssertArgument(0)
}

// GetSecondArg returns the second operand of a binary operation.
func (o *Operation) GetSecondArg() (Value, bool) {
	if len(o.args) < 2 {
		return Value{}, false
	}
	return o.args[1], true
}

// FindOtherArgument returns the operand which is not the given one.
func (o *Operation) FindOtherArgument(arg Value) (Value, bool) {
	if len(o.args) != 2 {
		return Value{}, false
	}
	if o.args[0].Equals(arg) {
		return o.args[1], true
	}
	if o.args[1].Equals(arg) {
		return o.args[0], true
	}
	return Value{}, false
}

// IsSimpleOperation reports whether the operation has no data conversion and
// no side effects, i.e. computes only its plain result.
func (o *Operation) IsSimpleOperation() bool {
	return !o.HasPackMode() && !o.HasUnpackMode() && !o.HasSideEffects()
}

// Precalculate resolves the operation to a constant by evaluating over the
// (recursively precalculated) constant values of its operands.
func (o *Operation) Precalculate(depth int) (Value, bool) {
	if o.HasPackMode() || o.HasUnpackMode() {
		return Value{}, false
	}
	firstLit, ok := precalculateValue(o.GetFirstArg(), depth)
	if !ok {
		return Value{}, false
	}
	secondLit := Literal{}
	if second, hasSecond := o.GetSecondArg(); hasSecond {
		if secondLit, ok = precalculateValue(second, depth); !ok {
			return Value{}, false
		}
	} else if o.Op.NumOperands() > 1 {
		return Value{}, false
	}
	result, ok := o.Op.CalcLiteral(firstLit, secondLit)
	if !ok {
		return Value{}, false
	}
	out, _ := o.GetOutput()
	return NewLiteralValue(result, out.Type), true
}

func precalculateValue(value Value, depth int) (Literal, bool) {
	if lit, ok := value.GetLiteralValue(); ok {
		return lit, true
	}
	if depth <= 0 {
		return Literal{}, false
	}
	if writer := value.GetSingleWriter(); writer != nil {
		if result, ok := writer.Precalculate(depth - 1); ok {
			return result.GetLiteralValue()
		}
	}
	return Literal{}, false
}

func (o *Operation) String() string {
	out := ""
	if v, ok := o.GetOutput(); ok {
		out = v.String() + ", "
	}
	args := make([]string, len(o.args))
	for i, arg := range o.args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s %s%s%s", o.Op, out, strings.Join(args, ", "), o.extrasString())
}

// MoveOperation copies its source to its output, optionally with a vector
// rotation.
type MoveOperation struct {
	baseInstruction
	rotation *VectorRotation
}

func NewMoveOperation(output, source Value) *MoveOperation {
	m := &MoveOperation{}
	m.init(m, &output, source)
	return m
}

func NewRotatedMoveOperation(output, source Value, offset SmallImmediate) *MoveOperation {
	m := &MoveOperation{rotation: &VectorRotation{Offset: offset}}
	m.init(m, &output, source)
	return m
}

// GetSource returns the copied value.
func (m *MoveOperation) GetSource() Value {
	return m.AssertArgument(0)
}

func (m *MoveOperation) SetSource(value Value) {
	m.SetArgument(0, value)
}

func (m *MoveOperation) GetVectorRotation() *VectorRotation { return m.rotation }

func (m *MoveOperation) clearVectorRotation() { m.rotation = nil }

// IsSimpleMove reports whether the move only copies data: no rotation, no
// conversion, no condition and no side effects.
func (m *MoveOperation) IsSimpleMove() bool {
	return m.rotation == nil && !m.HasPackMode() && !m.HasUnpackMode() &&
		!m.HasConditionalExecution() && !m.HasSideEffects()
}

func (m *MoveOperation) Precalculate(depth int) (Value, bool) {
	if m.rotation != nil || m.HasPackMode() || m.HasUnpackMode() {
		return Value{}, false
	}
	lit, ok := precalculateValue(m.GetSource(), depth)
	if !ok {
		return Value{}, false
	}
	out, _ := m.GetOutput()
	return NewLiteralValue(lit, out.Type), true
}

func (m *MoveOperation) String() string {
	out, _ := m.GetOutput()
	rot := ""
	if m.rotation != nil {
		rot = fmt.Sprintf(" (rot %d)", m.rotation.Offset)
	}
	return fmt.Sprintf("mov %s, %s%s%s", out.String(), m.GetSource().String(), rot, m.extrasString())
}

// LoadImmediate materializes a 32-bit constant.
type LoadImmediate struct {
	baseInstruction
	lit Literal
}

func NewLoadImmediate(output Value, lit Literal) *LoadImmediate {
	l := &LoadImmediate{lit: lit}
	l.init(l, &output)
	return l
}

func (l *LoadImmediate) GetImmediate() Literal { return l.lit }

func (l *LoadImmediate) Precalculate(depth int) (Value, bool) {
	out, _ := l.GetOutput()
	return NewLiteralValue(l.lit, out.Type), true
}

func (l *LoadImmediate) String() string {
	out, _ := l.GetOutput()
	return fmt.Sprintf("ldi %s, %s%s", out.String(), l.lit.String(), l.extrasString())
}

// Branch transfers control to one of its target labels.
type Branch struct {
	baseInstruction
	conditional bool
}

func NewBranch(target *Local) *Branch {
	b := &Branch{}
	b.init(b, nil, target.CreateReference())
	return b
}

func NewConditionalBranch(target *Local, cond ConditionCode) *Branch {
	b := &Branch{conditional: true}
	b.init(b, nil, target.CreateReference())
	b.SetCondition(cond)
	return b
}

// GetTargetLabels returns the label locals this branch can jump to.
func (b *Branch) GetTargetLabels() []*Local {
	targets := make([]*Local, 0, len(b.args))
	for _, arg := range b.args {
		if local := arg.CheckLocal(); local != nil {
			targets = append(targets, local)
		}
	}
	return targets
}

func (b *Branch) IsUnconditional() bool { return !b.conditional }

func (b *Branch) GetSideEffects() SideEffectType {
	return b.baseInstruction.GetSideEffects() | SideEffectBranch
}

func (b *Branch) String() string {
	targets := make([]string, 0, len(b.args))
	for _, t := range b.GetTargetLabels() {
		targets = append(targets, t.Name)
	}
	return fmt.Sprintf("br %s%s", strings.Join(targets, ", "), b.extrasString())
}

// BranchLabel marks the entry of a basic block.
type BranchLabel struct {
	baseInstruction
	label *Local
}

func NewBranchLabel(label *Local) *BranchLabel {
	l := &BranchLabel{label: label}
	l.init(l, nil)
	label.addUser(l, UseWriter)
	return l
}

func (l *BranchLabel) GetLabel() *Local { return l.label }

func (l *BranchLabel) Release() {
	l.label.removeUser(l, UseWriter)
	l.baseInstruction.Release()
}

func (l *BranchLabel) String() string {
	return fmt.Sprintf("label %s:", l.label.Name)
}

// Nop is a placeholder instruction, optionally tagged with the delay it
// waits out and a signal to fire.
type Nop struct {
	baseInstruction
	Delay DelayType
}

func NewNop(delay DelayType) *Nop {
	n := &Nop{Delay: delay}
	n.init(n, nil)
	return n
}

func NewSignalingNop(delay DelayType, signal Signal) *Nop {
	n := NewNop(delay)
	n.SetSignal(signal)
	return n
}

func (n *Nop) String() string {
	return "nop" + n.extrasString()
}

// Return is the pre-normalization return pseudo-instruction, lowered to a
// branch to the function's end label.
type Return struct {
	baseInstruction
}

func NewReturn() *Return {
	r := &Return{}
	r.init(r, nil)
	return r
}

func (r *Return) GetSideEffects() SideEffectType {
	return r.baseInstruction.GetSideEffects() | SideEffectBranch
}

func (r *Return) String() string { return "return" }

// CombinedOperation is two operations fused into a single hardware issue
// slot. Both constituents keep their own use registrations, so removing the
// combined instruction must release both.
type CombinedOperation struct {
	First  *Operation
	Second *Operation
}

func NewCombinedOperation(first, second *Operation) *CombinedOperation {
	return &CombinedOperation{First: first, Second: second}
}

func (c *CombinedOperation) each(f func(*Operation)) {
	if c.First != nil {
		f(c.First)
	}
	if c.Second != nil {
		f(c.Second)
	}
}

func (c *CombinedOperation) GetOutput() (Value, bool) {
	if c.First != nil {
		if out, ok := c.First.GetOutput(); ok {
			return out, true
		}
	}
	if c.Second != nil {
		return c.Second.GetOutput()
	}
	return Value{}, false
}

func (c *CombinedOperation) SetOutput(v Value) {
	panic("cannot set output of a combined operation")
}

func (c *CombinedOperation) CheckOutputLocal() *Local {
	if out, ok := c.GetOutput(); ok {
		return out.CheckLocal()
	}
	return nil
}

func (c *CombinedOperation) CheckOutputRegister() (Register, bool) {
	if out, ok := c.GetOutput(); ok {
		return out.CheckRegister()
	}
	return Register{}, false
}

func (c *CombinedOperation) GetArguments() []Value {
	var args []Value
	c.each(func(op *Operation) { args = append(args, op.GetArguments()...) })
	return args
}

func (c *CombinedOperation) AssertArgument(index int) Value {
	args := c.GetArguments()
	return args[index]
}

func (c *CombinedOperation) SetArgument(index int, value Value) {
	panic("cannot set argument of a combined operation")
}

func (c *CombinedOperation) ReplaceValue(oldValue, newValue Value, use LocalUseType) int {
	replaced := 0
	c.each(func(op *Operation) { replaced += op.ReplaceValue(oldValue, newValue, use) })
	return replaced
}

func (c *CombinedOperation) DoesSetFlag() bool {
	return (c.First != nil && c.First.DoesSetFlag()) || (c.Second != nil && c.Second.DoesSetFlag())
}

func (c *CombinedOperation) SetSetFlags(bool) { panic("cannot modify flags of a combined operation") }

func (c *CombinedOperation) GetCondition() ConditionCode {
	if c.First != nil {
		return c.First.GetCondition()
	}
	return CondAlways
}

func (c *CombinedOperation) SetCondition(ConditionCode) {
	panic("cannot modify condition of a combined operation")
}

func (c *CombinedOperation) HasConditionalExecution() bool {
	return (c.First != nil && c.First.HasConditionalExecution()) ||
		(c.Second != nil && c.Second.HasConditionalExecution())
}

func (c *CombinedOperation) GetSignal() Signal {
	if c.First != nil && c.First.GetSignal() != SignalNone {
		return c.First.GetSignal()
	}
	if c.Second != nil {
		return c.Second.GetSignal()
	}
	return SignalNone
}

func (c *CombinedOperation) SetSignal(Signal) { panic("cannot modify signal of a combined operation") }

func (c *CombinedOperation) GetPackMode() Pack {
	if c.First != nil && c.First.HasPackMode() {
		return c.First.GetPackMode()
	}
	if c.Second != nil {
		return c.Second.GetPackMode()
	}
	return PackNone
}

func (c *CombinedOperation) GetUnpackMode() Unpack {
	if c.First != nil && c.First.HasUnpackMode() {
		return c.First.GetUnpackMode()
	}
	if c.Second != nil {
		return c.Second.GetUnpackMode()
	}
	return UnpackNone
}

func (c *CombinedOperation) SetPackMode(Pack)     { panic("cannot modify a combined operation") }
func (c *CombinedOperation) SetUnpackMode(Unpack) { panic("cannot modify a combined operation") }

func (c *CombinedOperation) HasPackMode() bool   { return c.GetPackMode() != PackNone }
func (c *CombinedOperation) HasUnpackMode() bool { return c.GetUnpackMode() != UnpackNone }

func (c *CombinedOperation) GetVectorRotation() *VectorRotation { return nil }

func (c *CombinedOperation) GetSideEffects() SideEffectType {
	var effects SideEffectType
	c.each(func(op *Operation) { effects |= op.GetSideEffects() })
	return effects
}

func (c *CombinedOperation) HasSideEffects() bool { return c.GetSideEffects() != 0 }

func (c *CombinedOperation) HasOtherSideEffects(excluded SideEffectType) bool {
	return c.GetSideEffects()&^excluded != 0
}

func (c *CombinedOperation) ReadsLocal(local *Local) bool {
	found := false
	c.each(func(op *Operation) { found = found || op.ReadsLocal(local) })
	return found
}

func (c *CombinedOperation) WritesLocal(local *Local) bool {
	found := false
	c.each(func(op *Operation) { found = found || op.WritesLocal(local) })
	return found
}

func (c *CombinedOperation) ReadsRegister(reg Register) bool {
	found := false
	c.each(func(op *Operation) { found = found || op.ReadsRegister(reg) })
	return found
}

func (c *CombinedOperation) WritesRegister(reg Register) bool {
	found := false
	c.each(func(op *Operation) { found = found || op.WritesRegister(reg) })
	return found
}

func (c *CombinedOperation) ReadsLiteral() bool {
	found := false
	c.each(func(op *Operation) { found = found || op.ReadsLiteral() })
	return found
}

func (c *CombinedOperation) AddDecorations(deco InstructionDecorations) {
	c.each(func(op *Operation) { op.AddDecorations(deco) })
}

func (c *CombinedOperation) HasDecoration(deco InstructionDecorations) bool {
	found := false
	c.each(func(op *Operation) { found = found || op.HasDecoration(deco) })
	return found
}

func (c *CombinedOperation) Decorations() InstructionDecorations {
	var deco InstructionDecorations
	c.each(func(op *Operation) { deco |= op.Decorations() })
	return deco
}

func (c *CombinedOperation) CopyExtrasFrom(Instruction) {
	panic("cannot modify a combined operation")
}

func (c *CombinedOperation) Precalculate(depth int) (Value, bool) {
	return Value{}, false
}

func (c *CombinedOperation) Release() {
	c.each(func(op *Operation) { op.Release() })
}

func (c *CombinedOperation) String() string {
	parts := make([]string, 0, 2)
	c.each(func(op *Operation) { parts = append(parts, op.String()) })
	return strings.Join(parts, "; ")
}
