package reg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegBank(t *testing.T) {
	assert.Equal(t, GP, GPR(0).Bank())
	assert.Equal(t, GP, GPR(31).Bank())
	assert.Equal(t, FP, FPR(0).Bank())
	assert.Equal(t, 8, FPR(8).Index())
	assert.Equal(t, "f8", FPR(8).String())
	assert.Equal(t, "r3", GPR(3).String())
	assert.Equal(t, "<noreg>", None.String())
}

func TestBuilderAlgebra(t *testing.T) {
	a := Of(GPR(1), GPR(2), GPR(3), FPR(4))
	b := Of(GPR(2), GPR(3), GPR(9))

	assert.Equal(t, []Reg{GPR(1), GPR(2), GPR(3), GPR(9), FPR(4)}, a.Union(b).Regs())
	assert.Equal(t, []Reg{GPR(2), GPR(3)}, a.Intersect(b).Regs())
	assert.Equal(t, []Reg{GPR(1), FPR(4)}, a.Subtract(b).Regs())

	assert.Equal(t, 4, a.Len())
	assert.True(t, Set{}.Empty())
	assert.Equal(t, 0, Set{}.Len())
}

func TestBuilderWidths(t *testing.T) {
	b := NewBuilder()
	b.Add(GPR(1), Width128)
	b.Add(FPR(2), Width128)
	b.Add(FPR(3), Width64)

	s := b.Build()

	assert.Equal(t, Width64, s.Width(GPR(1)), "gp registers are never wide")
	assert.Equal(t, Width128, s.Width(FPR(2)))
	assert.Equal(t, Width64, s.Width(FPR(3)))
	assert.Equal(t, Width(0), s.Width(FPR(4)))
	assert.Equal(t, 3, s.Len())

	low := b.BuildWithLowerBits()

	assert.Equal(t, Width64, low.Width(FPR(2)))
	assert.True(t, low.Equal(Of(GPR(1), FPR(2), FPR(3))))
}

func TestBuilderFilterNarrowsWidth(t *testing.T) {
	b := NewBuilder()
	b.Add(FPR(8), Width128)
	b.Add(FPR(9), Width128)

	b.Filter(Of(FPR(8)))

	s := b.Build()

	assert.Equal(t, []Reg{FPR(8)}, s.Regs())
	assert.Equal(t, Width64, s.Width(FPR(8)))
}

func TestBuilderExcludeRemovesWholeRegister(t *testing.T) {
	b := NewBuilder()
	b.Add(FPR(8), Width128)
	b.Add(GPR(5), Width64)

	b.Exclude(Of(FPR(8)))

	s := b.Build()

	assert.False(t, s.Contains(FPR(8)))
	assert.Equal(t, Width(0), s.Width(FPR(8)))
	assert.Equal(t, []Reg{GPR(5)}, s.Regs())
}

func TestBuildSnapshotIsImmutable(t *testing.T) {
	b := NewBuilder(GPR(1))
	s := b.Build()

	b.Add(GPR(2), Width64)
	b.Remove(GPR(1))

	assert.Equal(t, []Reg{GPR(1)}, s.Regs())
	assert.Equal(t, []Reg{GPR(2)}, b.Build().Regs())
}

func TestSizeOfSetRegisters(t *testing.T) {
	assert.Equal(t, 0, Set{}.SizeOfSetRegisters())
	assert.Equal(t, 8, Of(GPR(1)).SizeOfSetRegisters())
	assert.Equal(t, 24, Of(GPR(1), GPR(2), FPR(8)).SizeOfSetRegisters())

	b := NewBuilder(GPR(1))
	b.Add(FPR(2), Width128)

	// 8 bytes, 8 bytes padding, 16 bytes
	assert.Equal(t, 32, b.Build().SizeOfSetRegisters())
}

func TestArchTables(t *testing.T) {
	for _, a := range Archs {
		t.Run(a.String(), func(t *testing.T) {
			assert.False(t, a.StackRegs().Empty())
			assert.True(t, a.StackRegs().Contains(a.StackPointer()))
			assert.True(t, a.StackRegs().Contains(a.FramePointer()))

			a.CalleeSaves().Range(func(r Reg, _ Width) bool {
				assert.True(t, a.All().Contains(r), "%v", a.Name(r))
				return true
			})

			a.Reserved().Range(func(r Reg, _ Width) bool {
				assert.False(t, a.MutableRegs().Contains(r), "%v", a.Name(r))
				return true
			})
		})
	}
}

func TestARM64(t *testing.T) {
	a := ARM64

	x19, ok := a.Lookup("x19")
	require.True(t, ok)
	assert.Equal(t, GPR(19), x19)

	fp, ok := a.Lookup("x29")
	require.True(t, ok)
	assert.Equal(t, a.FramePointer(), fp)
	assert.Equal(t, "fp", a.Name(fp))

	_, ok = a.Lookup("x42")
	assert.False(t, ok)

	assert.True(t, a.CalleeSaves().Contains(GPR(19)))
	assert.True(t, a.CalleeSaves().Contains(GPR(28)))
	assert.False(t, a.CalleeSaves().Contains(GPR(9)))
	assert.Equal(t, Width64, a.CalleeSaves().Width(FPR(8)))
	assert.False(t, a.CalleeSaves().Contains(FPR(16)))

	assert.False(t, a.MutableRegs().Contains(GPR(16)))
	assert.Equal(t, Width128, a.MutableRegs().Width(FPR(0)))

	assert.Equal(t, "{x19, fp, q8}", Of(GPR(19), GPR(29), FPR(8)).Format(a))
}

func TestX86_64(t *testing.T) {
	a := X86_64

	rbx, ok := a.Lookup("rbx")
	require.True(t, ok)

	assert.True(t, a.CalleeSaves().Contains(rbx))
	assert.True(t, a.StackRegs().Equal(Of(GPR(4), GPR(5))))
	assert.False(t, a.All().Contains(GPR(16)))
}

func TestLookupArch(t *testing.T) {
	a, err := LookupArch("arm64")
	require.NoError(t, err)
	assert.Same(t, ARM64, a)

	_, err = LookupArch("mips")
	assert.Error(t, err)
}

func TestNewArchErrors(t *testing.T) {
	_, err := NewArch(ArchDesc{
		Name:         "dup",
		GPRs:         []string{"a", "a"},
		FramePointer: None,
		StackPointer: GPR(0),
	})
	assert.Error(t, err)

	_, err = NewArch(ArchDesc{
		Name:         "nosp",
		GPRs:         []string{"a", "b"},
		FramePointer: None,
		StackPointer: None,
	})
	assert.Error(t, err)

	_, err = NewArch(ArchDesc{
		Name:         "badcallee",
		GPRs:         []string{"a", "b"},
		CalleeSaves:  []Reg{GPR(5)},
		FramePointer: None,
		StackPointer: GPR(1),
	})
	assert.Error(t, err)

	a, err := NewArch(ArchDesc{
		Name:         "tiny",
		GPRs:         []string{"sp", "r1", "r2"},
		CalleeSaves:  []Reg{GPR(1)},
		FramePointer: None,
		StackPointer: GPR(0),
	})
	require.NoError(t, err)
	assert.True(t, a.StackRegs().Equal(Of(GPR(0))))
}
