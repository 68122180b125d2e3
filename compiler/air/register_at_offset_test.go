package air

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/air/compiler/reg"
)

func TestRegisterAtOffsetListPacked(t *testing.T) {
	l := NewRegisterAtOffsetList(reg.Of(reg.GPR(19), reg.GPR(20), reg.FPR(8)))

	assert.Equal(t, RegisterAtOffsetList{
		{Reg: reg.GPR(19), Offset: -24, Width: reg.Width64},
		{Reg: reg.GPR(20), Offset: -16, Width: reg.Width64},
		{Reg: reg.FPR(8), Offset: -8, Width: reg.Width64},
	}, l)

	assert.Equal(t, 24, l.SizeOfAreaInBytes())

	e, ok := l.Find(reg.GPR(20))
	assert.True(t, ok)
	assert.Equal(t, -16, e.Offset)

	_, ok = l.Find(reg.GPR(21))
	assert.False(t, ok)
}

func TestRegisterAtOffsetListMixedWidths(t *testing.T) {
	b := reg.NewBuilder(reg.GPR(1), reg.GPR(3))
	b.Add(reg.FPR(0), reg.Width128)
	b.Add(reg.FPR(1), reg.Width64)

	s := b.Build()
	l := NewRegisterAtOffsetList(s)

	// r1 at 0, r3 at 8, f0 at 16..32, f1 at 32..40, rounded to 48
	assert.Equal(t, RegisterAtOffsetList{
		{Reg: reg.GPR(1), Offset: -48, Width: reg.Width64},
		{Reg: reg.GPR(3), Offset: -40, Width: reg.Width64},
		{Reg: reg.FPR(0), Offset: -32, Width: reg.Width128},
		{Reg: reg.FPR(1), Offset: -16, Width: reg.Width64},
	}, l)

	assert.Equal(t, 48, l.SizeOfAreaInBytes())
	assert.Equal(t, s.SizeOfSetRegisters(), l.SizeOfAreaInBytes())

	for _, e := range l {
		assert.Zero(t, e.Offset%e.Width.Align(), "%v misaligned", e.Reg)
	}

	assert.True(t, s.Equal(l.Regs()))
}

func TestRegisterAtOffsetListEmpty(t *testing.T) {
	l := NewRegisterAtOffsetList(reg.Set{})

	assert.Empty(t, l)
	assert.Equal(t, 0, l.SizeOfAreaInBytes())
}
