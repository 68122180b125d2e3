package air

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateStackCalleeSavesOnTop(t *testing.T) {
	c := newCode(
		NewOp(Move, r1, r2),
	)

	spill8 := c.AddStackSlot(8, SlotSpill)
	spill16 := c.AddStackSlot(16, SlotSpill)
	spill4 := c.AddStackSlot(4, SlotSpill)

	ctx := context.Background()

	HandleCalleeSaves(ctx, c)
	AllocateStack(ctx, c)

	l := c.CalleeSaves()
	require.NotNil(t, l)

	assert.Equal(t, -16, l.Slot.Offset)
	assert.Equal(t, -16, l.Frame(l.Regs[0]))
	assert.Equal(t, -8, l.Frame(l.Regs[1]))

	assert.Equal(t, -32, spill16.Offset)
	assert.Equal(t, -40, spill8.Offset)
	assert.Equal(t, -44, spill4.Offset)

	assert.Equal(t, 48, c.FrameSize())
	assert.True(t, c.StackAllocated())
}

func TestAllocateStackIdempotent(t *testing.T) {
	c := newCode()
	s := c.AddStackSlot(24, SlotLocked)

	AllocateStack(context.Background(), c)
	AllocateStack(context.Background(), c)

	assert.Equal(t, -24, s.Offset)
	assert.Equal(t, 32, c.FrameSize())

	assert.Panics(t, func() {
		c.AddStackSlot(8, SlotSpill)
	})
}

func TestAllocateStackEmpty(t *testing.T) {
	c := newCode()

	AllocateStack(context.Background(), c)

	assert.Equal(t, 0, c.FrameSize())
}

func TestSlotAlign(t *testing.T) {
	for _, tc := range []struct{ size, align int }{
		{1, 1}, {4, 4}, {8, 8}, {12, 4}, {16, 16}, {24, 8}, {48, 16}, {64, 16},
	} {
		assert.Equal(t, tc.align, slotAlign(tc.size), "size %d", tc.size)
	}
}

func TestAddStackSlotBadSize(t *testing.T) {
	c := newCode()

	assert.Panics(t, func() { c.AddStackSlot(0, SlotSpill) })
}

func TestAllocateStackDeclaredLockedSlotFirst(t *testing.T) {
	c := newCode(
		NewOp(Move, r1, r2),
	)

	pinned := c.AddStackSlot(8, SlotLocked)

	ctx := context.Background()

	HandleCalleeSaves(ctx, c)
	AllocateStack(ctx, c)

	l := c.CalleeSaves()
	require.NotNil(t, l)

	assert.Equal(t, -8, pinned.Offset)
	assert.Equal(t, -32, l.Slot.Offset)

	assert.Equal(t, -32, l.Frame(l.Regs[0]))
	assert.Equal(t, -24, l.Frame(l.Regs[1]))

	for _, e := range l.Regs {
		off := l.Frame(e)

		assert.GreaterOrEqual(t, off, l.Slot.Offset)
		assert.LessOrEqual(t, off+e.Width.Bytes(), l.Slot.Offset+l.Slot.Size)
	}

	assert.Equal(t, 32, c.FrameSize())
}
