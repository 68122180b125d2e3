package air

import (
	"strconv"

	"github.com/slowlang/air/compiler/reg"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Code is a function in Air form.
	// It's owned by a single compilation and must not be shared between goroutines.
	Code struct {
		Name string
		Arch *reg.Arch

		Blocks     []*BasicBlock
		StackSlots []*StackSlot

		mutable reg.Set

		calleeSaves *CalleeSaveLayout

		stackAllocated bool
		frameSize      int
	}

	BasicBlock struct {
		Index int

		Insts      []Inst
		Successors []*BasicBlock
	}

	SlotKind int

	StackSlot struct {
		Index int
		Name  string
		Kind  SlotKind
		Size  int

		// Offset from the frame pointer, assigned by AllocateStack.
		Offset int
	}

	// CalleeSaveLayout is where the prologue saves callee saved registers.
	// Entry offsets are relative to the top of Slot.
	CalleeSaveLayout struct {
		Regs RegisterAtOffsetList
		Slot *StackSlot
	}
)

const (
	// SlotSpill slots may be moved around by stack allocation.
	SlotSpill SlotKind = iota
	// SlotLocked slots are placed first and are never coalesced.
	SlotLocked
)

func NewCode(name string, arch *reg.Arch) *Code {
	return &Code{
		Name:    name,
		Arch:    arch,
		mutable: arch.MutableRegs(),
	}
}

func (c *Code) AddBlock() *BasicBlock {
	b := &BasicBlock{Index: len(c.Blocks)}
	c.Blocks = append(c.Blocks, b)

	return b
}

func (c *Code) AddStackSlot(size int, kind SlotKind) *StackSlot {
	if size <= 0 {
		panic(errors.New("stack slot of size %d", size))
	}

	if c.stackAllocated {
		panic(errors.New("%v: stack slot added after stack allocation", c.Name))
	}

	s := &StackSlot{
		Index: len(c.StackSlots),
		Kind:  kind,
		Size:  size,
	}

	c.StackSlots = append(c.StackSlots, s)

	tlog.V("stack_slot").Printw("add stack slot", "func", c.Name, "slot", s.Index, "size", size, "kind", kind, "from", loc.Caller(1))

	return s
}

func (c *Code) SlotByName(name string) *StackSlot {
	for _, s := range c.StackSlots {
		if s.Name == name {
			return s
		}
	}

	return nil
}

// MutableRegs are the registers generated code is allowed to touch.
func (c *Code) MutableRegs() reg.Set { return c.mutable }

func (c *Code) SetMutableRegs(s reg.Set) { c.mutable = s }

func (c *Code) SetCalleeSaveRegisterAtOffsetList(regs RegisterAtOffsetList, slot *StackSlot) {
	if c.calleeSaves != nil {
		panic(errors.New("%v: callee saves already set", c.Name))
	}

	c.calleeSaves = &CalleeSaveLayout{
		Regs: regs,
		Slot: slot,
	}
}

// CalleeSaves returns nil if the function needs no callee save area.
func (c *Code) CalleeSaves() *CalleeSaveLayout { return c.calleeSaves }

func (c *Code) StackAllocated() bool { return c.stackAllocated }

// FrameSize is the number of bytes below the frame pointer,
// valid after AllocateStack.
func (c *Code) FrameSize() int { return c.frameSize }

func (c *Code) String() string { return string(c.AppendText(nil)) }

func (b *BasicBlock) Append(inst ...Inst) {
	b.Insts = append(b.Insts, inst...)
}

func (b *BasicBlock) Last() Inst {
	if len(b.Insts) == 0 {
		return nil
	}

	return b.Insts[len(b.Insts)-1]
}

func (b *BasicBlock) AddSuccessor(s ...*BasicBlock) {
	b.Successors = append(b.Successors, s...)
}

// Frame returns e's offset from the frame pointer.
// Valid after AllocateStack.
func (l *CalleeSaveLayout) Frame(e RegisterAtOffset) int {
	return l.Slot.Offset + l.Slot.Size + e.Offset
}

func (k SlotKind) String() string {
	if k == SlotLocked {
		return "locked"
	}

	return "spill"
}

func (s *StackSlot) String() string {
	if s.Name != "" {
		return "@" + s.Name
	}

	return "@stack" + strconv.Itoa(s.Index)
}

func (s *StackSlot) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 4)

	b = e.AppendKeyInt(b, "index", s.Index)
	b = e.AppendKeyInt(b, "kind", int(s.Kind))
	b = e.AppendKeyInt(b, "size", s.Size)
	b = e.AppendKeyInt(b, "offset", s.Offset)

	return b
}
