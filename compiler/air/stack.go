package air

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"
)

const StackAlign = 16

// AllocateStack assigns every stack slot its offset from the frame pointer.
//
// Locked slots are placed right below the frame record in creation order,
// so the first one ends at the frame pointer. Input declared locked slots
// precede the callee save area.
// Spill slots go below them, largest first.
func AllocateStack(ctx context.Context, code *Code) {
	if code.stackAllocated {
		return
	}

	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "air: allocate stack", "func", code.Name, "slots", len(code.StackSlots))
	defer tr.Finish()

	spills := heap.Heap[*StackSlot]{Less: spillLess}

	var pos int

	place := func(s *StackSlot) {
		pos = alignUp(pos+s.Size, slotAlign(s.Size))
		s.Offset = -pos

		tr.V("stack_slot").Printw("place slot", "slot", s, "name", s.Name)
	}

	for _, s := range code.StackSlots {
		if s.Kind == SlotLocked {
			place(s)
		} else {
			spills.Push(s)
		}
	}

	for spills.Len() != 0 {
		place(spills.Pop())
	}

	code.frameSize = alignUp(pos, StackAlign)
	code.stackAllocated = true

	tr.Printw("frame", "size", code.frameSize)
}

func spillLess(d []*StackSlot, i, j int) bool {
	if d[i].Size != d[j].Size {
		return d[i].Size > d[j].Size
	}

	return d[i].Index < d[j].Index
}

// slotAlign is the largest power of two dividing size, up to StackAlign.
func slotAlign(size int) int {
	a := size & -size

	return min(a, StackAlign)
}
