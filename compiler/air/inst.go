package air

import (
	"strconv"

	"github.com/slowlang/air/compiler/reg"
	"tlog.app/go/errors"
)

type (
	Opcode int

	// Tmp is a storage location operand.
	// Non-negative values are physical registers, negative ones are
	// virtual tmps not yet assigned by the register allocator.
	Tmp int

	Imm int64

	Cond string

	Addr struct {
		Base   Tmp
		Index  Tmp // NoTmp if unused
		Offset int32
	}

	Stack struct {
		Slot   *StackSlot
		Offset int32
	}

	// Arg is one of Tmp, Imm, Cond, Addr, Stack.
	Arg interface{}

	// Inst is anything with enumerable operands.
	Inst interface {
		Opcode() Opcode
		Operands() []Arg
	}

	// Clobberer is implemented by instructions with register effects
	// not expressed by their operands.
	Clobberer interface {
		ExtraClobberedRegs() reg.Set
		ExtraEarlyClobberedRegs() reg.Set
	}

	Op struct {
		Code Opcode
		Args []Arg
	}

	// Patch is an opaque instruction, typically a call to a helper stub.
	Patch struct {
		Op

		Name string

		// Clobbered registers are written after the inputs are read.
		Clobbered reg.Set
		// EarlyClobbered registers are written before the inputs are read.
		EarlyClobbered reg.Set
	}

	opInfo struct {
		name string
		args int // -1 for variadic
		succ int
		term bool
	}
)

const (
	Nop Opcode = iota
	Move
	MoveDouble
	Add64
	Sub64
	Mul64
	And64
	Or64
	Xor64
	AddDouble
	MulDouble
	Branch64
	Jump
	Ret
	Ret64
	RetDouble
	Oops
	PatchOp

	numOpcodes
)

const NoTmp Tmp = -1 << 30

var opInfos = [numOpcodes]opInfo{
	Nop:        {name: "Nop"},
	Move:       {name: "Move", args: 2},
	MoveDouble: {name: "MoveDouble", args: 2},
	Add64:      {name: "Add64", args: 3},
	Sub64:      {name: "Sub64", args: 3},
	Mul64:      {name: "Mul64", args: 3},
	And64:      {name: "And64", args: 3},
	Or64:       {name: "Or64", args: 3},
	Xor64:      {name: "Xor64", args: 3},
	AddDouble:  {name: "AddDouble", args: 3},
	MulDouble:  {name: "MulDouble", args: 3},
	Branch64:   {name: "Branch64", args: 3, succ: 2, term: true},
	Jump:       {name: "Jump", succ: 1, term: true},
	Ret:        {name: "Ret", term: true},
	Ret64:      {name: "Ret64", args: 1, term: true},
	RetDouble:  {name: "RetDouble", args: 1, term: true},
	Oops:       {name: "Oops", term: true},
	PatchOp:    {name: "Patch", args: -1},
}

func RegTmp(r reg.Reg) Tmp { return Tmp(r) }

func VirtTmp(i int) Tmp { return Tmp(-1 - i) }

func (t Tmp) IsReg() bool { return t >= 0 && reg.Reg(t).Valid() }

func (t Tmp) IsVirtual() bool { return t < 0 && t != NoTmp }

// Reg panics if t was not assigned a register.
func (t Tmp) Reg() reg.Reg {
	if !t.IsReg() {
		panic("air: tmp " + t.String() + " is not a register")
	}

	return reg.Reg(t)
}

func (t Tmp) String() string {
	switch {
	case t == NoTmp:
		return "<notmp>"
	case t.IsVirtual():
		return "%" + strconv.Itoa(int(-1-t))
	default:
		return reg.Reg(t).String()
	}
}

func (op Opcode) String() string {
	if op < 0 || op >= numOpcodes {
		return "Opcode(" + strconv.Itoa(int(op)) + ")"
	}

	return opInfos[op].name
}

func (op Opcode) IsTerminal() bool { return op >= 0 && op < numOpcodes && opInfos[op].term }

// NumSuccessors is the number of successors a block ending with op must have.
func (op Opcode) NumSuccessors() int { return opInfos[op].succ }

// OperandBank is the bank of plain register operands of op.
// ok is false if op puts no constraint on them.
func (op Opcode) OperandBank() (b reg.Bank, ok bool) {
	switch op {
	case MoveDouble, AddDouble, MulDouble, RetDouble:
		return reg.FP, true
	case Move, Add64, Sub64, Mul64, And64, Or64, Xor64, Branch64, Ret64:
		return reg.GP, true
	}

	return reg.GP, false
}

// CheckBanks reports register operands from the wrong bank.
// Address components are always general purpose.
func CheckBanks(inst Inst) error {
	bank, banked := inst.Opcode().OperandBank()

	for i, a := range inst.Operands() {
		switch a := a.(type) {
		case Tmp:
			if banked && a.IsReg() && a.Reg().Bank() != bank {
				return errors.New("arg %d: %v register in a %v operand", i, a.Reg().Bank(), bank)
			}
		case Addr:
			for _, t := range [...]Tmp{a.Base, a.Index} {
				if t.IsReg() && t.Reg().Bank() != reg.GP {
					return errors.New("arg %d: %v register in an address", i, t.Reg().Bank())
				}
			}
		}
	}

	return nil
}

func LookupOpcode(name string) (Opcode, bool) {
	for op, info := range opInfos {
		if info.name == name {
			return Opcode(op), true
		}
	}

	return 0, false
}

func NewOp(op Opcode, args ...Arg) *Op {
	return &Op{Code: op, Args: args}
}

func (x *Op) Opcode() Opcode  { return x.Code }
func (x *Op) Operands() []Arg { return x.Args }

func NewPatch(name string, clobbered, early reg.Set, args ...Arg) *Patch {
	return &Patch{
		Op:             Op{Code: PatchOp, Args: args},
		Name:           name,
		Clobbered:      clobbered,
		EarlyClobbered: early,
	}
}

func (x *Patch) ExtraClobberedRegs() reg.Set      { return x.Clobbered }
func (x *Patch) ExtraEarlyClobberedRegs() reg.Set { return x.EarlyClobbered }

// ForEachTmp calls f for each operand denoting a storage location,
// including address components.
func ForEachTmp(inst Inst, f func(t Tmp)) {
	for _, a := range inst.Operands() {
		switch a := a.(type) {
		case Tmp:
			f(a)
		case Addr:
			f(a.Base)

			if a.Index != NoTmp {
				f(a.Index)
			}
		}
	}
}

// ForEachReg calls f for each physical register inst touches,
// implicit clobbers included.
func ForEachReg(inst Inst, f func(r reg.Reg, w reg.Width)) {
	ForEachTmp(inst, func(t Tmp) {
		f(t.Reg(), reg.Width64)
	})

	c, ok := inst.(Clobberer)
	if !ok {
		return
	}

	for _, s := range [...]reg.Set{c.ExtraClobberedRegs(), c.ExtraEarlyClobberedRegs()} {
		s.Range(func(r reg.Reg, w reg.Width) bool {
			f(r, w)
			return true
		})
	}
}
