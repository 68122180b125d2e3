package air

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/air/compiler/reg"
)

// AppendText appends code in the form compiler/parse reads.
func (c *Code) AppendText(b []byte) []byte {
	b = hfmt.Appendf(b, "func %s\n", c.Name)
	b = hfmt.Appendf(b, "arch %s\n", c.Arch.String())

	if !c.mutable.Equal(c.Arch.MutableRegs()) {
		b = append(b, "mutable"...)
		b = c.appendRegs(b, c.mutable)
		b = append(b, '\n')
	}

	for _, s := range c.StackSlots {
		b = hfmt.Appendf(b, "slot %s %d", s.String()[1:], s.Size)

		if s.Kind == SlotLocked {
			b = append(b, " locked"...)
		}

		b = append(b, '\n')
	}

	for _, bb := range c.Blocks {
		b = hfmt.Appendf(b, "block %d", bb.Index)

		if len(bb.Successors) != 0 {
			b = append(b, " ->"...)

			for _, s := range bb.Successors {
				b = hfmt.Appendf(b, " %d", s.Index)
			}
		}

		b = append(b, '\n')

		for _, inst := range bb.Insts {
			b = append(b, '\t')
			b = c.AppendInst(b, inst)
			b = append(b, '\n')
		}
	}

	return b
}

func (c *Code) AppendInst(b []byte, inst Inst) []byte {
	b = append(b, inst.Opcode().String()...)

	p, isPatch := inst.(*Patch)
	if isPatch {
		b = append(b, ' ')
		b = append(b, p.Name...)
	}

	for i, a := range inst.Operands() {
		if i == 0 {
			b = append(b, ' ')
		} else {
			b = append(b, ", "...)
		}

		b = c.AppendArg(b, a)
	}

	if !isPatch {
		return b
	}

	if !p.Clobbered.Empty() {
		b = append(b, " clobber"...)
		b = c.appendRegs(b, p.Clobbered)
	}

	if !p.EarlyClobbered.Empty() {
		b = append(b, " early"...)
		b = c.appendRegs(b, p.EarlyClobbered)
	}

	return b
}

func (c *Code) AppendArg(b []byte, a Arg) []byte {
	switch a := a.(type) {
	case Tmp:
		return c.appendTmp(b, a)
	case Imm:
		return hfmt.Appendf(b, "$%d", int64(a))
	case Cond:
		return append(b, a...)
	case Addr:
		b = append(b, '[')
		b = c.appendTmp(b, a.Base)

		if a.Index != NoTmp {
			b = append(b, '+')
			b = c.appendTmp(b, a.Index)
		}

		if a.Offset != 0 {
			b = hfmt.Appendf(b, "%+d", a.Offset)
		}

		return append(b, ']')
	case Stack:
		b = append(b, a.Slot.String()...)

		if a.Offset != 0 {
			b = hfmt.Appendf(b, "%+d", a.Offset)
		}

		return b
	default:
		return hfmt.Appendf(b, "<%T>", a)
	}
}

func (c *Code) appendTmp(b []byte, t Tmp) []byte {
	if t.IsReg() {
		return append(b, c.Arch.Name(t.Reg())...)
	}

	return append(b, t.String()...)
}

func (c *Code) appendRegs(b []byte, s reg.Set) []byte {
	s.Range(func(r reg.Reg, w reg.Width) bool {
		b = append(b, ' ')
		b = append(b, c.Arch.Name(r)...)

		if w == reg.Width128 {
			b = append(b, ":128"...)
		}

		return true
	})

	return b
}
