package back

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/air/compiler/air"
	"github.com/slowlang/air/compiler/parse"
	"github.com/slowlang/air/compiler/reg"
)

func compile(t *testing.T, text string) string {
	t.Helper()

	ctx := context.Background()

	funcs, err := parse.Parse(ctx, []byte(text), reg.ARM64)
	require.NoError(t, err)
	require.Len(t, funcs, 1)

	code := funcs[0]

	require.NoError(t, air.Validate(code))

	air.HandleCalleeSaves(ctx, code)
	air.AllocateStack(ctx, code)

	obj, err := New().CompileFunc(ctx, nil, code)
	require.NoError(t, err)

	t.Logf("result:\n%s", obj)

	return string(obj)
}

func TestSmoke(t *testing.T) {
	obj := compile(t, `
func f
block 0
	Move x19, x0
	Add64 x0, x20, x0
	Ret64 x0
`)

	assert.Equal(t, `// func f

.global f
.align 4
f:
	STP	FP, LR, [SP, #-16]!
	MOV	FP, SP
	SUB	SP, SP, #16
	STR	X19, [FP, #-16]
	STR	X20, [FP, #-8]
Lf_0:
	MOV	X0, X19
	ADD	X0, X0, X20
	LDR	X19, [FP, #-16]
	LDR	X20, [FP, #-8]
	MOV	SP, FP
	LDP	FP, LR, [SP], #16
	RET
`, obj)
}

func TestLeafNoCalleeSaves(t *testing.T) {
	obj := compile(t, `
func leaf
block 0
	Add64 x0, $1, x0
	Ret64 x0
`)

	assert.NotContains(t, obj, "SUB	SP")
	assert.NotContains(t, obj, "STR")
	assert.Contains(t, obj, "ADD	X0, X0, #1\n")
}

func TestFloatCalleeSaves(t *testing.T) {
	obj := compile(t, `
func g
block 0
	AddDouble q0, q9, q0
	RetDouble q0
`)

	assert.Contains(t, obj, "STR	D9, [FP, #-8]\n")
	assert.Contains(t, obj, "LDR	D9, [FP, #-8]\n")
	assert.Contains(t, obj, "FADD	D0, D0, D9\n")
}

func TestBranchesAndSlots(t *testing.T) {
	obj := compile(t, `
func loop
slot acc 8
block 0 -> 1
	Move $0, @acc
	Jump
block 1 -> 2 1
	Move @acc, x1
	Add64 x1, x0, x1
	Move x1, @acc
	Sub64 x0, $1, x0
	Branch64 eq, x0, $0
block 2
	Move @acc, x0
	Patch done x0 clobber x21
	Ret64 x0
`)

	assert.Contains(t, obj, "	MOVZ	X16, #0\n	STR	X16, [FP, #-16]\nLloop_1:\n", "fallthrough to the next block")
	assert.Contains(t, obj, "	LDR	X1, [FP, #-16]\n")
	assert.Contains(t, obj, "	CMP	X0, #0\n	B.EQ	Lloop_2\n	B	Lloop_1\nLloop_2:\n")
	assert.Contains(t, obj, "	BL	done")
	assert.Contains(t, obj, "STR	X21, [FP, #-8]\n")
	assert.Contains(t, obj, "SUB	SP, SP, #16\n")
}

func TestMoveWideImmediate(t *testing.T) {
	obj := compile(t, `
func w
block 0
	Move $0x123456789, x0
	Ret64 x0
`)

	assert.Contains(t, obj, "	MOVZ	X0, #26505\n	MOVK	X0, #9029, LSL #16\n	MOVK	X0, #1, LSL #32\n")
}

func TestCompileErrors(t *testing.T) {
	ctx := context.Background()

	code := air.NewCode("f", reg.ARM64)
	code.AddBlock().Append(air.NewOp(air.Ret))

	_, err := New().CompileFunc(ctx, nil, code)
	assert.Error(t, err, "stack is not allocated")

	x86 := air.NewCode("f", reg.X86_64)
	x86.AddBlock().Append(air.NewOp(air.Ret))
	air.AllocateStack(ctx, x86)

	_, err = New().CompileFunc(ctx, nil, x86)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCompileWrongBank(t *testing.T) {
	ctx := context.Background()

	code := air.NewCode("f", reg.ARM64)
	code.AddBlock().Append(
		air.NewOp(air.Move, air.RegTmp(reg.FPR(1)), air.RegTmp(reg.FPR(2))),
		air.NewOp(air.Ret),
	)
	air.AllocateStack(ctx, code)

	_, err := New().CompileFunc(ctx, nil, code)
	assert.Error(t, err)
}
