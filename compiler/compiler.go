package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/air/compiler/air"
	"github.com/slowlang/air/compiler/back"
	"github.com/slowlang/air/compiler/parse"
	"github.com/slowlang/air/compiler/reg"
)

func CompileFile(ctx context.Context, name string, arch *reg.Arch) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, arch)
}

func Compile(ctx context.Context, name string, text []byte, arch *reg.Arch) (obj []byte, err error) {
	funcs, err := Lower(ctx, name, text, arch)
	if err != nil {
		return nil, err
	}

	obj, err = back.New().CompileFuncs(ctx, nil, funcs)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return obj, nil
}

// Lower parses text and runs the frame passes on every function:
// callee saves first, then stack allocation.
func Lower(ctx context.Context, name string, text []byte, arch *reg.Arch) (funcs []*air.Code, err error) {
	funcs, err = parse.Parse(ctx, text, arch)
	if err != nil {
		return nil, errors.Wrap(err, "parse %v", name)
	}

	for _, code := range funcs {
		err = air.Validate(code)
		if err != nil {
			return nil, errors.Wrap(err, "validate %v", code.Name)
		}

		air.HandleCalleeSaves(ctx, code)
		air.AllocateStack(ctx, code)
	}

	return funcs, nil
}
