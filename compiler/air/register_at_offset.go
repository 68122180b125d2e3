package air

import (
	"github.com/slowlang/air/compiler/reg"
	"tlog.app/go/tlog/tlwire"
)

type (
	RegisterAtOffset struct {
		Reg    reg.Reg
		Offset int
		Width  reg.Width
	}

	// RegisterAtOffsetList is ordered by register.
	// Offsets are negative, relative to the top of the save area.
	RegisterAtOffsetList []RegisterAtOffset
)

// NewRegisterAtOffsetList packs registers of s in ascending order,
// each aligned to its width. The first register lands at -size.
func NewRegisterAtOffsetList(s reg.Set) RegisterAtOffsetList {
	l := make(RegisterAtOffsetList, 0, s.Len())

	var pos int

	s.Range(func(r reg.Reg, w reg.Width) bool {
		pos = alignUp(pos, w.Align())

		l = append(l, RegisterAtOffset{Reg: r, Offset: pos, Width: w})

		pos += w.Bytes()

		return true
	})

	size := l.SizeOfAreaInBytes()

	for i := range l {
		l[i].Offset -= size
	}

	return l
}

// SizeOfAreaInBytes sums entry widths with alignment padding,
// rounded up to the largest alignment so every entry stays aligned
// relative to the area's top.
func (l RegisterAtOffsetList) SizeOfAreaInBytes() int {
	var size, align int

	for _, e := range l {
		a := e.Width.Align()

		size = alignUp(size, a) + e.Width.Bytes()

		if a > align {
			align = a
		}
	}

	if align == 0 {
		return 0
	}

	return alignUp(size, align)
}

func (l RegisterAtOffsetList) Find(r reg.Reg) (RegisterAtOffset, bool) {
	for _, e := range l {
		if e.Reg == r {
			return e, true
		}
	}

	return RegisterAtOffset{}, false
}

func (l RegisterAtOffsetList) Regs() reg.Set {
	b := reg.NewBuilder()

	for _, e := range l {
		b.Add(e.Reg, e.Width)
	}

	return b.Build()
}

func (e RegisterAtOffset) TlogAppend(b []byte) []byte {
	var en tlwire.Encoder

	b = en.AppendMap(b, 3)

	b = en.AppendKeyInt(b, "reg", int(e.Reg))
	b = en.AppendKeyInt(b, "offset", e.Offset)
	b = en.AppendKeyInt(b, "width", e.Width.Bytes())

	return b
}

func alignUp(x, a int) int {
	return (x + a - 1) / a * a
}
