package air

import (
	"github.com/slowlang/air/compiler/reg"
	"tlog.app/go/errors"
)

// Validate checks code is well formed and fully register allocated.
func Validate(code *Code) (err error) {
	if len(code.Blocks) == 0 {
		return errors.New("no blocks")
	}

	for i, b := range code.Blocks {
		if b.Index != i {
			return errors.New("block %d: index %d", i, b.Index)
		}

		err = validateBlock(code, b)
		if err != nil {
			return errors.Wrap(err, "block %d", i)
		}
	}

	for i, s := range code.StackSlots {
		if s.Index != i || s.Size <= 0 {
			return errors.New("bad stack slot %d: %+v", i, s)
		}
	}

	return nil
}

func validateBlock(code *Code, b *BasicBlock) (err error) {
	if len(b.Insts) == 0 {
		return errors.New("empty block")
	}

	for i, inst := range b.Insts {
		op := inst.Opcode()

		if op < 0 || op >= numOpcodes {
			return errors.New("inst %d: bad opcode %v", i, op)
		}

		if last := i == len(b.Insts)-1; op.IsTerminal() != last {
			if last {
				return errors.New("inst %d: block does not end with a terminal", i)
			}

			return errors.New("inst %d: terminal %v in the middle of a block", i, op)
		}

		err = validateInst(code, inst)
		if err != nil {
			return errors.Wrap(err, "inst %d (%v)", i, op)
		}
	}

	op := b.Last().Opcode()

	if n := op.NumSuccessors(); n != len(b.Successors) {
		return errors.New("%v needs %d successors, have %d", op, n, len(b.Successors))
	}

	for _, s := range b.Successors {
		if s == nil || s.Index < 0 || s.Index >= len(code.Blocks) || code.Blocks[s.Index] != s {
			return errors.New("successor is not a block of the function")
		}
	}

	return nil
}

func validateInst(code *Code, inst Inst) (err error) {
	op := inst.Opcode()
	args := inst.Operands()

	if n := opInfos[op].args; n >= 0 && n != len(args) {
		return errors.New("expected %d args, have %d", n, len(args))
	}

	p, isPatch := inst.(*Patch)
	if (op == PatchOp) != isPatch {
		return errors.New("patch opcode mismatch")
	}

	if isPatch && p.Name == "" {
		return errors.New("patch without name")
	}

	// Banked opcodes move whole 64-bit words, others touch single bytes.
	access := 1
	if _, banked := op.OperandBank(); banked {
		access = 8
	}

	for j, a := range args {
		switch a := a.(type) {
		case Tmp, Imm, Cond:
		case Addr:
			if a.Base == NoTmp {
				return errors.New("arg %d: address without base", j)
			}
		case Stack:
			if a.Slot == nil || a.Slot.Index >= len(code.StackSlots) || code.StackSlots[a.Slot.Index] != a.Slot {
				return errors.New("arg %d: foreign stack slot", j)
			}

			if a.Offset < 0 || int(a.Offset)+access > a.Slot.Size {
				return errors.New("arg %d: %d byte access at offset %d out of slot %v of size %d", j, access, a.Offset, a.Slot, a.Slot.Size)
			}
		default:
			return errors.New("arg %d: unsupported arg %T", j, a)
		}
	}

	if op == Branch64 {
		if _, ok := args[0].(Cond); !ok {
			return errors.New("condition expected")
		}
	}

	ForEachTmp(inst, func(t Tmp) {
		if err == nil && !t.IsReg() {
			err = errors.New("unallocated tmp %v", t)
		}
	})
	if err != nil {
		return err
	}

	all := code.Arch.All()

	ForEachReg(inst, func(r reg.Reg, _ reg.Width) {
		if err == nil && !all.Contains(r) {
			err = errors.New("register %v is not defined by %v", r, code.Arch)
		}
	})
	if err != nil {
		return err
	}

	// The frame record is maintained by the prologue and epilogue only.
	// Addressing through the stack registers is fine.
	stack := code.Arch.StackRegs()

	for j, a := range args {
		if t, ok := a.(Tmp); ok && stack.Contains(t.Reg()) {
			return errors.New("arg %d: stack register %v used as an operand", j, code.Arch.Name(t.Reg()))
		}
	}

	return CheckBanks(inst)
}
