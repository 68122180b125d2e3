package parse

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/air/compiler/air"
	"github.com/slowlang/air/compiler/reg"
)

type (
	// Parser reads Air in the form air.Code.AppendText writes.
	Parser struct {
		// Arch is used by functions without an arch directive.
		Arch *reg.Arch
	}

	state struct {
		*Parser

		funcs []*air.Code

		code *air.Code
		bb   *air.BasicBlock
		succ map[*air.BasicBlock][]int
	}
)

func ParseFile(ctx context.Context, name string, arch *reg.Arch) ([]*air.Code, error) {
	p := &Parser{Arch: arch}

	return p.ParseFile(ctx, name)
}

func Parse(ctx context.Context, text []byte, arch *reg.Arch) ([]*air.Code, error) {
	p := &Parser{Arch: arch}

	return p.ParseFileData(ctx, text)
}

func (p *Parser) ParseFile(ctx context.Context, name string) ([]*air.Code, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}

	return p.ParseFileData(ctx, data)
}

func (p *Parser) ParseFileData(ctx context.Context, b []byte) (funcs []*air.Code, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "parse: air", "size", len(b))
	defer tr.Finish("err", &err)

	s := &state{Parser: p}

	for n, line := range bytes.Split(b, []byte{'\n'}) {
		err = s.line(string(line))
		if err != nil {
			return nil, errors.Wrap(err, "line %d", n+1)
		}
	}

	err = s.finish()
	if err != nil {
		return nil, errors.Wrap(err, "func %v", s.code.Name)
	}

	tr.Printw("parsed", "funcs", len(s.funcs))

	return s.funcs, nil
}

func (s *state) line(l string) (err error) {
	if i := strings.Index(l, "//"); i >= 0 {
		l = l[:i]
	}

	f := strings.FieldsFunc(l, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r'
	})

	if len(f) == 0 {
		return nil
	}

	tlog.V("parse_line").Printw("line", "fields", f)

	if f[0] == "func" {
		return s.funcHeader(f)
	}

	if s.code == nil {
		return errors.New("func expected")
	}

	switch f[0] {
	case "arch":
		return s.arch(f)
	case "mutable":
		return s.mutable(f)
	case "slot":
		return s.slot(f)
	case "block":
		return s.block(f)
	}

	if s.bb == nil {
		return errors.New("block expected")
	}

	inst, err := s.inst(f)
	if err != nil {
		return err
	}

	s.bb.Append(inst)

	return nil
}

func (s *state) funcHeader(f []string) (err error) {
	if len(f) != 2 {
		return errors.New("usage: func NAME")
	}

	err = s.finish()
	if err != nil {
		return errors.Wrap(err, "func %v", s.code.Name)
	}

	if s.Arch == nil {
		return errors.New("no architecture")
	}

	s.code = air.NewCode(f[1], s.Arch)
	s.bb = nil
	s.succ = map[*air.BasicBlock][]int{}

	return nil
}

func (s *state) arch(f []string) error {
	if len(f) != 2 {
		return errors.New("usage: arch NAME")
	}

	if s.bb != nil || len(s.code.StackSlots) != 0 || !s.code.MutableRegs().Equal(s.code.Arch.MutableRegs()) {
		return errors.New("arch must go before the function body")
	}

	a, err := reg.LookupArch(f[1])
	if err != nil {
		return err
	}

	s.code.Arch = a
	s.code.SetMutableRegs(a.MutableRegs())

	return nil
}

func (s *state) mutable(f []string) error {
	regs, err := s.regs(f[1:])
	if err != nil {
		return err
	}

	s.code.SetMutableRegs(regs)

	return nil
}

func (s *state) slot(f []string) error {
	if len(f) < 3 || len(f) > 4 {
		return errors.New("usage: slot NAME SIZE [locked]")
	}

	if s.code.SlotByName(f[1]) != nil {
		return errors.New("duplicate slot %v", f[1])
	}

	size, err := strconv.Atoi(f[2])
	if err != nil || size <= 0 {
		return errors.New("bad slot size: %q", f[2])
	}

	kind := air.SlotSpill

	if len(f) == 4 {
		if f[3] != "locked" {
			return errors.New("unknown slot kind: %q", f[3])
		}

		kind = air.SlotLocked
	}

	slot := s.code.AddStackSlot(size, kind)
	slot.Name = f[1]

	return nil
}

func (s *state) block(f []string) error {
	if len(f) < 2 {
		return errors.New("usage: block N [-> SUCC...]")
	}

	idx, err := strconv.Atoi(f[1])
	if err != nil || idx != len(s.code.Blocks) {
		return errors.New("expected block %d, got %q", len(s.code.Blocks), f[1])
	}

	s.bb = s.code.AddBlock()

	if len(f) == 2 {
		return nil
	}

	if f[2] != "->" {
		return errors.New("-> expected")
	}

	for _, x := range f[3:] {
		n, err := strconv.Atoi(x)
		if err != nil {
			return errors.New("bad successor: %q", x)
		}

		s.succ[s.bb] = append(s.succ[s.bb], n)
	}

	return nil
}

func (s *state) inst(f []string) (air.Inst, error) {
	op, ok := air.LookupOpcode(f[0])
	if !ok {
		return nil, errors.New("unknown opcode: %q", f[0])
	}

	if op == air.PatchOp {
		return s.patch(f)
	}

	args := make([]air.Arg, 0, len(f)-1)

	for i, x := range f[1:] {
		if op == air.Branch64 && i == 0 {
			args = append(args, air.Cond(x))
			continue
		}

		a, err := s.arg(x)
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i)
		}

		args = append(args, a)
	}

	return air.NewOp(op, args...), nil
}

func (s *state) patch(f []string) (_ air.Inst, err error) {
	if len(f) < 2 {
		return nil, errors.New("usage: Patch NAME ARGS... [clobber REGS...] [early REGS...]")
	}

	var args []air.Arg
	var clobber, early reg.Set

	rest := f[2:]

	for len(rest) != 0 && rest[0] != "clobber" && rest[0] != "early" {
		a, err := s.arg(rest[0])
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", len(args))
		}

		args = append(args, a)
		rest = rest[1:]
	}

	for len(rest) != 0 {
		kw := rest[0]

		end := 1
		for end < len(rest) && rest[end] != "clobber" && rest[end] != "early" {
			end++
		}

		set, err := s.regs(rest[1:end])
		if err != nil {
			return nil, errors.Wrap(err, "%v", kw)
		}

		if kw == "clobber" {
			clobber = clobber.Union(set)
		} else {
			early = early.Union(set)
		}

		rest = rest[end:]
	}

	return air.NewPatch(f[1], clobber, early, args...), nil
}

func (s *state) arg(x string) (air.Arg, error) {
	if x == "" {
		return nil, errors.New("empty operand")
	}

	switch x[0] {
	case '$':
		v, err := strconv.ParseInt(x[1:], 0, 64)
		if err != nil {
			return nil, errors.New("bad immediate: %q", x)
		}

		return air.Imm(v), nil
	case '[':
		return s.addr(x)
	case '@':
		return s.stack(x)
	}

	return s.tmp(x)
}

func (s *state) tmp(x string) (air.Tmp, error) {
	if x == "" {
		return air.NoTmp, errors.New("empty operand")
	}

	if x[0] == '%' {
		n, err := strconv.Atoi(x[1:])
		if err != nil || n < 0 {
			return air.NoTmp, errors.New("bad tmp: %q", x)
		}

		return air.VirtTmp(n), nil
	}

	r, ok := s.code.Arch.Lookup(x)
	if !ok {
		return air.NoTmp, errors.New("unknown register: %q", x)
	}

	return air.RegTmp(r), nil
}

func (s *state) addr(x string) (a air.Arg, err error) {
	if !strings.HasSuffix(x, "]") {
		return nil, errors.New("] expected: %q", x)
	}

	parts := splitSigned(x[1 : len(x)-1])
	if len(parts) == 0 || parts[0][0] == '-' {
		return nil, errors.New("address base expected: %q", x)
	}

	addr := air.Addr{Index: air.NoTmp}

	addr.Base, err = s.tmp(strings.TrimPrefix(parts[0], "+"))
	if err != nil {
		return nil, err
	}

	for _, p := range parts[1:] {
		if off, err := strconv.ParseInt(p, 0, 32); err == nil {
			addr.Offset += int32(off)
			continue
		}

		if addr.Index != air.NoTmp || p[0] == '-' {
			return nil, errors.New("bad address: %q", x)
		}

		addr.Index, err = s.tmp(p[1:])
		if err != nil {
			return nil, err
		}
	}

	return addr, nil
}

func (s *state) stack(x string) (air.Arg, error) {
	parts := splitSigned(x[1:])
	if len(parts) == 0 || len(parts) > 2 {
		return nil, errors.New("bad stack reference: %q", x)
	}

	slot := s.code.SlotByName(parts[0])
	if slot == nil {
		return nil, errors.New("unknown stack slot: %q", x)
	}

	st := air.Stack{Slot: slot}

	if len(parts) == 2 {
		off, err := strconv.ParseInt(parts[1], 0, 32)
		if err != nil {
			return nil, errors.New("bad stack offset: %q", x)
		}

		st.Offset = int32(off)
	}

	return st, nil
}

func (s *state) regs(f []string) (reg.Set, error) {
	b := reg.NewBuilder()

	for _, x := range f {
		name, width, _ := strings.Cut(x, ":")

		r, ok := s.code.Arch.Lookup(name)
		if !ok {
			return reg.Set{}, errors.New("unknown register: %q", name)
		}

		w := reg.Width64

		switch width {
		case "", "64":
		case "128":
			w = reg.Width128
		default:
			return reg.Set{}, errors.New("bad width: %q", x)
		}

		b.Add(r, w)
	}

	return b.Build(), nil
}

func (s *state) finish() error {
	if s.code == nil {
		return nil
	}

	for b, succ := range s.succ {
		for _, n := range succ {
			if n < 0 || n >= len(s.code.Blocks) {
				return errors.New("block %d: no successor block %d", b.Index, n)
			}

			b.AddSuccessor(s.code.Blocks[n])
		}
	}

	s.funcs = append(s.funcs, s.code)
	s.succ = nil

	return nil
}

// splitSigned splits "a+b-8" into "a", "+b", "-8".
func splitSigned(x string) (r []string) {
	st := 0

	for i := 1; i < len(x); i++ {
		if x[i] == '+' || x[i] == '-' {
			r = append(r, x[st:i])
			st = i
		}
	}

	if st < len(x) {
		r = append(r, x[st:])
	}

	return r
}
