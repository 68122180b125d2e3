package back

import (
	"context"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/air/compiler/air"
	"github.com/slowlang/air/compiler/reg"
)

type (
	// Compiler emits arm64 assembly for stack allocated Air code.
	Compiler struct{}

	funContext struct {
		*air.Code

		label func(b *air.BasicBlock) string
	}
)

var ErrUnsupported = errors.New("unsupported")

// scratch is reserved by the arm64 arch table.
var scratch = air.RegTmp(reg.GPR(16))

var conds = map[air.Cond]string{
	"eq": "EQ", "ne": "NE",
	"lt": "LT", "le": "LE", "gt": "GT", "ge": "GE",
	"lo": "LO", "ls": "LS", "hi": "HI", "hs": "HS",
}

var aluOps = map[air.Opcode]string{
	air.Add64: "ADD",
	air.Sub64: "SUB",
	air.Mul64: "MUL",
	air.And64: "AND",
	air.Or64:  "ORR",
	air.Xor64: "EOR",

	air.AddDouble: "FADD",
	air.MulDouble: "FMUL",
}

func New() *Compiler {
	return &Compiler{}
}

func (c *Compiler) CompileFuncs(ctx context.Context, b []byte, funcs []*air.Code) (_ []byte, err error) {
	for i, f := range funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = c.CompileFunc(ctx, b, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func (c *Compiler) CompileFunc(ctx context.Context, b []byte, code *air.Code) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", code.Name, "arch", code.Arch.String())
	defer tr.Finish("err", &err)

	if code.Arch != reg.ARM64 {
		return nil, errors.Wrap(ErrUnsupported, "arch %v", code.Arch)
	}

	if !code.StackAllocated() {
		return nil, errors.New("stack is not allocated")
	}

	f := &funContext{Code: code}
	f.label = func(bb *air.BasicBlock) string {
		return sprintf("L%s_%d", code.Name, bb.Index)
	}

	b = hfmt.Appendf(b, `// func %s

.global %[1]s
.align 4
%[1]s:
	STP	FP, LR, [SP, #-16]!
	MOV	FP, SP
`, code.Name)

	if size := code.FrameSize(); size != 0 {
		b = hfmt.Appendf(b, "	SUB	SP, SP, #%d\n", size)
	}

	b = f.calleeSaves(b, "STR")

	for i, bb := range code.Blocks {
		b = hfmt.Appendf(b, "%s:\n", f.label(bb))

		var next *air.BasicBlock
		if i+1 < len(code.Blocks) {
			next = code.Blocks[i+1]
		}

		for j, inst := range bb.Insts {
			if tr.If("dump_inst") {
				tr.Printw("inst", "block", bb.Index, "i", j, "inst", string(code.AppendInst(nil, inst)))
			}

			b, err = f.inst(b, bb, next, inst)
			if err != nil {
				return nil, errors.Wrap(err, "block %d: inst %d (%s)", bb.Index, j, code.AppendInst(nil, inst))
			}
		}
	}

	return b, nil
}

func (f *funContext) inst(b []byte, bb, next *air.BasicBlock, inst air.Inst) (_ []byte, err error) {
	err = air.CheckBanks(inst)
	if err != nil {
		return nil, err
	}

	args := inst.Operands()

	switch op := inst.Opcode(); op {
	case air.Nop:
		return b, nil
	case air.Move:
		return f.move(b, args[0], args[1], reg.GP)
	case air.MoveDouble:
		return f.move(b, args[0], args[1], reg.FP)
	case air.Add64, air.Sub64, air.Mul64, air.And64, air.Or64, air.Xor64:
		return f.alu(b, aluOps[op], args, reg.GP)
	case air.AddDouble, air.MulDouble:
		return f.alu(b, aluOps[op], args, reg.FP)
	case air.Branch64:
		cond, ok := conds[args[0].(air.Cond)]
		if !ok {
			return nil, errors.New("unsupported condition %v", args[0])
		}

		b, err = f.cmp(b, args[1], args[2])
		if err != nil {
			return nil, err
		}

		b = hfmt.Appendf(b, "	B.%s	%s\n", cond, f.label(bb.Successors[0]))

		return f.jump(b, bb.Successors[1], next), nil
	case air.Jump:
		return f.jump(b, bb.Successors[0], next), nil
	case air.Ret:
		return f.ret(b), nil
	case air.Ret64:
		src, ok := args[0].(air.Tmp)
		if !ok {
			return nil, errors.New("register expected")
		}

		if src.Reg() != reg.GPR(0) {
			b = hfmt.Appendf(b, "	MOV	X0, %s\n", f.reg(src))
		}

		return f.ret(b), nil
	case air.RetDouble:
		src, ok := args[0].(air.Tmp)
		if !ok {
			return nil, errors.New("register expected")
		}

		if src.Reg() != reg.FPR(0) {
			b = hfmt.Appendf(b, "	FMOV	D0, %s\n", f.reg(src))
		}

		return f.ret(b), nil
	case air.Oops:
		return append(b, "	BRK	#0\n"...), nil
	case air.PatchOp:
		p := inst.(*air.Patch)

		return hfmt.Appendf(b, "	BL	%s // %s\n", p.Name, f.AppendInst(nil, inst)), nil
	default:
		return nil, errors.Wrap(ErrUnsupported, "opcode %v", op)
	}
}

func (f *funContext) move(b []byte, src, dst air.Arg, bank reg.Bank) (_ []byte, err error) {
	switch d := dst.(type) {
	case air.Tmp:
		switch s := src.(type) {
		case air.Tmp:
			mov := "MOV"
			if bank == reg.FP {
				mov = "FMOV"
			}

			return hfmt.Appendf(b, "	%s	%s, %s\n", mov, f.reg(d), f.reg(s)), nil
		case air.Imm:
			if bank == reg.FP {
				return nil, errors.Wrap(ErrUnsupported, "double immediate")
			}

			return movImm(b, f.reg(d), uint64(s)), nil
		case air.Addr, air.Stack:
			mem, err := f.mem(s)
			if err != nil {
				return nil, err
			}

			return hfmt.Appendf(b, "	LDR	%s, %s\n", f.reg(d), mem), nil
		}
	case air.Addr, air.Stack:
		mem, err := f.mem(d)
		if err != nil {
			return nil, err
		}

		r := ""

		switch s := src.(type) {
		case air.Tmp:
			r = f.reg(s)
		case air.Imm:
			if bank == reg.FP {
				return nil, errors.Wrap(ErrUnsupported, "double immediate")
			}

			r = f.reg(scratch)
			b = movImm(b, r, uint64(s))
		case air.Addr, air.Stack:
			if bank == reg.FP {
				return nil, errors.Wrap(ErrUnsupported, "double memory to memory move")
			}

			smem, err := f.mem(s)
			if err != nil {
				return nil, err
			}

			r = f.reg(scratch)
			b = hfmt.Appendf(b, "	LDR	%s, %s\n", r, smem)
		}

		if r != "" {
			return hfmt.Appendf(b, "	STR	%s, %s\n", r, mem), nil
		}
	}

	return nil, errors.New("unsupported move %T -> %T", src, dst)
}

func (f *funContext) alu(b []byte, op string, args []air.Arg, bank reg.Bank) (_ []byte, err error) {
	l, lok := args[0].(air.Tmp)
	dst, dok := args[2].(air.Tmp)

	if !lok || !dok {
		return nil, errors.New("register operands expected")
	}

	var r string

	switch x := args[1].(type) {
	case air.Tmp:
		r = f.reg(x)
	case air.Imm:
		if bank == reg.FP {
			return nil, errors.Wrap(ErrUnsupported, "double immediate")
		}

		if (op == "ADD" || op == "SUB") && x >= 0 && x < 4096 {
			r = sprintf("#%d", int64(x))
			break
		}

		r = f.reg(scratch)
		b = movImm(b, r, uint64(x))
	default:
		return nil, errors.New("unsupported operand %T", x)
	}

	return hfmt.Appendf(b, "	%s	%s, %s, %s\n", op, f.reg(dst), f.reg(l), r), nil
}

func (f *funContext) cmp(b []byte, l, r air.Arg) ([]byte, error) {
	lt, ok := l.(air.Tmp)
	if !ok {
		return nil, errors.New("register expected")
	}

	switch r := r.(type) {
	case air.Tmp:
		return hfmt.Appendf(b, "	CMP	%s, %s\n", f.reg(lt), f.reg(r)), nil
	case air.Imm:
		if r >= 0 && r < 4096 {
			return hfmt.Appendf(b, "	CMP	%s, #%d\n", f.reg(lt), int64(r)), nil
		}

		s := f.reg(scratch)
		b = movImm(b, s, uint64(r))

		return hfmt.Appendf(b, "	CMP	%s, %s\n", f.reg(lt), s), nil
	default:
		return nil, errors.New("unsupported operand %T", r)
	}
}

func (f *funContext) jump(b []byte, to, next *air.BasicBlock) []byte {
	if to == next {
		return b
	}

	return hfmt.Appendf(b, "	B	%s\n", f.label(to))
}

func (f *funContext) ret(b []byte) []byte {
	b = f.calleeSaves(b, "LDR")

	return append(b, `	MOV	SP, FP
	LDP	FP, LR, [SP], #16
	RET
`...)
}

// calleeSaves emits one store or load per saved register.
func (f *funContext) calleeSaves(b []byte, op string) []byte {
	l := f.CalleeSaves()
	if l == nil {
		return b
	}

	for _, e := range l.Regs {
		b = hfmt.Appendf(b, "	%s	%s, [FP, #%d]\n", op, regName(f.Arch, e.Reg, e.Width), l.Frame(e))
	}

	return b
}

func (f *funContext) mem(a air.Arg) (string, error) {
	switch a := a.(type) {
	case air.Addr:
		base := f.reg(a.Base)

		switch {
		case a.Index != air.NoTmp && a.Offset != 0:
			return "", errors.Wrap(ErrUnsupported, "address with both index and offset")
		case a.Index != air.NoTmp:
			return sprintf("[%s, %s]", base, f.reg(a.Index)), nil
		case a.Offset != 0:
			return sprintf("[%s, #%d]", base, a.Offset), nil
		default:
			return sprintf("[%s]", base), nil
		}
	case air.Stack:
		return sprintf("[FP, #%d]", a.Slot.Offset+int(a.Offset)), nil
	}

	return "", errors.New("memory operand expected: %T", a)
}

func (f *funContext) reg(t air.Tmp) string {
	return regName(f.Arch, t.Reg(), reg.Width64)
}

func regName(a *reg.Arch, r reg.Reg, w reg.Width) string {
	if r.Bank() == reg.FP {
		if w == reg.Width128 {
			return sprintf("Q%d", r.Index())
		}

		return sprintf("D%d", r.Index())
	}

	return strings.ToUpper(a.Name(r))
}

func movImm(b []byte, r string, v uint64) []byte {
	b = hfmt.Appendf(b, "	MOVZ	%s, #%d\n", r, v&0xffff)

	for sh := 16; sh < 64 && v>>sh != 0; sh += 16 {
		b = hfmt.Appendf(b, "	MOVK	%s, #%d, LSL #%d\n", r, (v>>sh)&0xffff, sh)
	}

	return b
}

func sprintf(format string, args ...interface{}) string {
	return string(hfmt.Appendf(nil, format, args...))
}
