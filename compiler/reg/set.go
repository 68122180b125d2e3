package reg

import (
	"strings"

	"github.com/slowlang/air/compiler/set"
	"tlog.app/go/tlog/tlwire"
)

type (
	// Builder is the mutable form of a register Set.
	//
	// Each register takes two bits: the lower one is set when the register
	// is present at all, the upper one when its full vector width matters.
	Builder struct {
		b set.Bits[int]
	}

	// Set is an immutable register set.
	Set struct {
		b set.Bits[int]
	}
)

func lo(r Reg) int { return int(r) * 2 }
func hi(r Reg) int { return int(r)*2 + 1 }

func NewBuilder(regs ...Reg) *Builder {
	b := &Builder{b: set.MakeBits(0)}

	for _, r := range regs {
		b.Add(r, Width64)
	}

	return b
}

// Of returns a set of registers each holding Width64.
func Of(regs ...Reg) Set {
	return NewBuilder(regs...).Build()
}

// OfWidth returns a set of registers of the given width.
func OfWidth(w Width, regs ...Reg) Set {
	b := NewBuilder()

	for _, r := range regs {
		b.Add(r, w)
	}

	return b.Build()
}

func (b *Builder) Add(r Reg, w Width) *Builder {
	if !r.Valid() {
		panic("reg: add invalid register " + r.String())
	}

	b.b.Set(lo(r))

	if w == Width128 && r.Bank() == FP {
		b.b.Set(hi(r))
	}

	return b
}

func (b *Builder) Remove(r Reg) *Builder {
	b.b.Clear(lo(r))
	b.b.Clear(hi(r))

	return b
}

func (b *Builder) Contains(r Reg) bool { return b.b.IsSet(lo(r)) }

func (b *Builder) Merge(s Set) *Builder {
	b.b.Merge(s.b)

	return b
}

// Filter keeps only registers also present in s.
// Widths are narrowed to the one in s.
func (b *Builder) Filter(s Set) *Builder {
	b.b.Intersect(s.b)

	return b
}

// Exclude removes every register of s regardless of width.
func (b *Builder) Exclude(s Set) *Builder {
	s.Range(func(r Reg, _ Width) bool {
		b.Remove(r)

		return true
	})

	return b
}

func (b *Builder) Build() Set {
	return Set{b: b.b.Copy()}
}

// BuildWithLowerBits builds a set where every register holds at most Width64.
func (b *Builder) BuildWithLowerBits() Set {
	s := Set{b: set.MakeBits(0)}

	b.b.Range(func(k int) bool {
		if k%2 == 0 {
			s.b.Set(k)
		}

		return true
	})

	return s
}

func (s Set) Contains(r Reg) bool { return s.b.IsSet(lo(r)) }

// Width returns zero if r is not in s.
func (s Set) Width(r Reg) Width {
	switch {
	case !s.b.IsSet(lo(r)):
		return 0
	case s.b.IsSet(hi(r)):
		return Width128
	default:
		return Width64
	}
}

// Len is the number of set registers.
func (s Set) Len() (n int) {
	s.Range(func(Reg, Width) bool {
		n++
		return true
	})

	return n
}

func (s Set) Empty() bool { return s.b.Empty() }

// Range iterates registers in ascending order.
func (s Set) Range(f func(r Reg, w Width) bool) {
	s.b.Range(func(k int) bool {
		if k%2 != 0 {
			return true
		}

		r := Reg(k / 2)

		return f(r, s.Width(r))
	})
}

func (s Set) Regs() (r []Reg) {
	s.Range(func(x Reg, _ Width) bool {
		r = append(r, x)
		return true
	})

	return r
}

func (s Set) Union(x Set) Set {
	c := s.b.Copy()
	c.Merge(x.b)

	return Set{b: c}
}

func (s Set) Intersect(x Set) Set {
	c := s.b.Copy()
	c.Intersect(x.b)

	return Set{b: c}
}

func (s Set) Subtract(x Set) Set {
	b := &Builder{b: s.b.Copy()}

	return Set{b: b.Exclude(x).b}
}

func (s Set) Equal(x Set) bool { return s.b.Equal(x.b) }

// SizeOfSetRegisters is the number of bytes needed to store every register
// of the set packed in ascending order, each aligned to its width.
// The total is rounded up to the largest alignment.
func (s Set) SizeOfSetRegisters() (size int) {
	align := 1

	s.Range(func(_ Reg, w Width) bool {
		size = alignUp(size, w.Align()) + w.Bytes()

		if w.Align() > align {
			align = w.Align()
		}

		return true
	})

	return alignUp(size, align)
}

func (s Set) Format(a *Arch) string {
	var b strings.Builder

	b.WriteByte('{')

	s.Range(func(r Reg, w Width) bool {
		if b.Len() > 1 {
			b.WriteString(", ")
		}

		b.WriteString(a.Name(r))

		if w == Width128 {
			b.WriteString(":128")
		}

		return true
	})

	b.WriteByte('}')

	return b.String()
}

func (s Set) String() string { return s.Format(nil) }

func (s Set) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(r Reg, _ Width) bool {
		b = e.AppendInt(b, int(r))

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func alignUp(x, a int) int {
	return (x + a - 1) / a * a
}
