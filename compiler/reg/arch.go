package reg

import (
	"fmt"

	"tlog.app/go/errors"
)

type (
	// Arch describes the register file and the calling convention of a target.
	// Values are immutable after construction.
	Arch struct {
		name string

		names   [NumRegs]string
		aliases map[string]Reg

		all      Set
		callee   Set
		stack    Set
		reserved Set

		fp, sp Reg
	}

	ArchDesc struct {
		Name string

		// GPRs and FPRs are indexed by the register number within the bank.
		GPRs []string
		FPRs []string

		Aliases map[string]Reg

		CalleeSaves []Reg
		// CalleeSaveFPRWidth is the part of callee saved FP registers
		// the ABI preserves.
		CalleeSaveFPRWidth Width

		FramePointer Reg
		StackPointer Reg

		// Reserved registers are never handed to the allocator.
		Reserved []Reg
	}
)

var ErrUnknownArch = errors.New("unknown architecture")

var (
	ARM64 = MustNewArch(ArchDesc{
		Name: "arm64",
		GPRs: []string{
			"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
			"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
			"x16", "x17", "x18", "x19", "x20", "x21", "x22", "x23",
			"x24", "x25", "x26", "x27", "x28", "fp", "lr", "sp",
		},
		FPRs: seq("q", 32),
		Aliases: map[string]Reg{
			"x29": GPR(29),
			"x30": GPR(30),
			"ip0": GPR(16),
			"ip1": GPR(17),
		},
		CalleeSaves: append(
			seqRegs(GPR, 19, 30),
			seqRegs(FPR, 8, 16)...,
		),
		CalleeSaveFPRWidth: Width64,
		FramePointer:       GPR(29),
		StackPointer:       GPR(31),
		Reserved: []Reg{
			GPR(16), GPR(17), // scratch for the macro assembler
			GPR(18), // platform register
			GPR(30), // link register
		},
	})

	X86_64 = MustNewArch(ArchDesc{
		Name: "x86_64",
		GPRs: []string{
			"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
			"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		},
		FPRs:         seq("xmm", 16),
		CalleeSaves:  []Reg{GPR(3), GPR(5), GPR(12), GPR(13), GPR(14), GPR(15)},
		FramePointer: GPR(5),
		StackPointer: GPR(4),
		Reserved: []Reg{
			GPR(11), // scratch for the macro assembler
		},
	})

	Archs = []*Arch{ARM64, X86_64}
)

func MustNewArch(d ArchDesc) *Arch {
	a, err := NewArch(d)
	if err != nil {
		panic(err)
	}

	return a
}

func NewArch(d ArchDesc) (*Arch, error) {
	if len(d.GPRs) > NumGPRs || len(d.FPRs) > NumFPRs {
		return nil, errors.New("%v: too many registers", d.Name)
	}

	a := &Arch{
		name:    d.Name,
		aliases: map[string]Reg{},
		fp:      d.FramePointer,
		sp:      d.StackPointer,
	}

	all := NewBuilder()

	add := func(r Reg, name string) error {
		if name == "" {
			return nil
		}

		if _, ok := a.aliases[name]; ok {
			return errors.New("%v: duplicate register name %v", d.Name, name)
		}

		a.names[r] = name
		a.aliases[name] = r
		all.Add(r, r.Bank().Conservative())

		return nil
	}

	for i, n := range d.GPRs {
		if err := add(GPR(i), n); err != nil {
			return nil, err
		}
	}

	for i, n := range d.FPRs {
		if err := add(FPR(i), n); err != nil {
			return nil, err
		}
	}

	for n, r := range d.Aliases {
		if !r.Valid() || a.names[r] == "" {
			return nil, errors.New("%v: alias %v to unknown register %v", d.Name, n, r)
		}

		if _, ok := a.aliases[n]; ok {
			return nil, errors.New("%v: duplicate register name %v", d.Name, n)
		}

		a.aliases[n] = r
	}

	a.all = all.Build()

	check := func(what string, regs ...Reg) error {
		for _, r := range regs {
			if r == None {
				continue
			}

			if !r.Valid() || a.names[r] == "" {
				return errors.New("%v: %v register %v is not defined", d.Name, what, r)
			}
		}

		return nil
	}

	if err := check("callee save", d.CalleeSaves...); err != nil {
		return nil, err
	}

	if err := check("reserved", d.Reserved...); err != nil {
		return nil, err
	}

	if err := check("stack", d.FramePointer, d.StackPointer); err != nil {
		return nil, err
	}

	if d.StackPointer == None {
		return nil, errors.New("%v: no stack pointer", d.Name)
	}

	fprw := d.CalleeSaveFPRWidth
	if fprw == 0 {
		fprw = Width64
	}

	callee := NewBuilder()
	for _, r := range d.CalleeSaves {
		w := Width64
		if r.Bank() == FP {
			w = fprw
		}

		callee.Add(r, w)
	}

	a.callee = callee.Build()

	stack := NewBuilder(d.StackPointer)
	if d.FramePointer != None {
		stack.Add(d.FramePointer, Width64)
	}

	a.stack = stack.Build()
	a.reserved = Of(d.Reserved...)

	return a, nil
}

func LookupArch(name string) (*Arch, error) {
	for _, a := range Archs {
		if a.name == name {
			return a, nil
		}
	}

	return nil, errors.Wrap(ErrUnknownArch, "%q", name)
}

func (a *Arch) String() string { return a.name }

func (a *Arch) Name(r Reg) string {
	if a == nil || !r.Valid() || a.names[r] == "" {
		return r.String()
	}

	return a.names[r]
}

func (a *Arch) Lookup(name string) (Reg, bool) {
	r, ok := a.aliases[name]
	if !ok {
		return None, false
	}

	return r, true
}

// All registers the architecture defines, at their widest width.
func (a *Arch) All() Set { return a.all }

// CalleeSaves are the registers a called function must restore before returning.
func (a *Arch) CalleeSaves() Set { return a.callee }

// StackRegs are the stack and frame pointers.
func (a *Arch) StackRegs() Set { return a.stack }

func (a *Arch) Reserved() Set { return a.reserved }

// MutableRegs is the default set of registers generated code may touch.
func (a *Arch) MutableRegs() Set {
	return NewBuilder().Merge(a.all).Exclude(a.reserved).Build()
}

func (a *Arch) FramePointer() Reg { return a.fp }
func (a *Arch) StackPointer() Reg { return a.sp }

func seq(prefix string, n int) []string {
	r := make([]string, n)

	for i := range r {
		r[i] = fmt.Sprintf("%s%d", prefix, i)
	}

	return r
}

func seqRegs(mk func(int) Reg, from, to int) (r []Reg) {
	for i := from; i < to; i++ {
		r = append(r, mk(i))
	}

	return r
}
