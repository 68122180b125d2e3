package air

import (
	"context"

	"github.com/slowlang/air/compiler/reg"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// HandleCalleeSaves reserves a locked stack slot for every callee saved
// register the function touches and records where each one is saved.
func HandleCalleeSaves(ctx context.Context, code *Code) {
	HandleCalleeSavesWith(ctx, code, UsedRegs(code))
}

// UsedRegs returns every register referenced by any instruction of code.
// Vector halves are ignored.
func UsedRegs(code *Code) reg.Set {
	used := reg.NewBuilder()

	for _, b := range code.Blocks {
		for _, inst := range b.Insts {
			ForEachReg(inst, func(r reg.Reg, w reg.Width) {
				used.Add(r, w)
			})
		}
	}

	return used.BuildWithLowerBits()
}

// CalleeSavesToSave narrows used down to the registers the prologue must save.
func CalleeSavesToSave(code *Code, used reg.Set) reg.Set {
	b := reg.NewBuilder().Merge(used)

	b.Filter(code.Arch.CalleeSaves())
	b.Filter(code.MutableRegs())
	b.Exclude(code.Arch.StackRegs()) // frame pointer is saved by the frame record

	return b.BuildWithLowerBits()
}

// HandleCalleeSavesWith is HandleCalleeSaves for callers
// who already know which registers code uses.
func HandleCalleeSavesWith(ctx context.Context, code *Code, used reg.Set) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "air: handle callee saves", "func", code.Name, "arch", code.Arch.String())
	defer tr.Finish()

	save := CalleeSavesToSave(code, used)

	if tr.If("dump_callee_saves") {
		tr.Printw("callee saves", "used", used, "save", save, "save_str", save.Format(code.Arch))
	}

	if save.Empty() {
		return
	}

	regs := NewRegisterAtOffsetList(save)

	size := 0
	for _, e := range regs {
		size = max(size, -e.Offset)
	}

	if regs.SizeOfAreaInBytes() != size {
		panic(errors.New("%v: callee save area size mismatch: list %d, offsets %d", code.Name, regs.SizeOfAreaInBytes(), size))
	}

	stack := code.Arch.StackRegs()

	for _, e := range regs {
		if stack.Contains(e.Reg) {
			panic(errors.New("%v: stack register %v in callee saves", code.Name, code.Arch.Name(e.Reg)))
		}
	}

	slot := code.AddStackSlot(size, SlotLocked)
	slot.Name = "callee_saves"

	code.SetCalleeSaveRegisterAtOffsetList(regs, slot)

	tr.Printw("callee save area", "regs", save.Len(), "size", size, "slot", slot.Index)
}
