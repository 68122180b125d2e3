package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/air/compiler"
	"github.com/slowlang/air/compiler/air"
	"github.com/slowlang/air/compiler/reg"
)

func main() {
	calleeSavesCmd := &cli.Command{
		Name:        "calleesaves",
		Description: "print callee save layout of every function",
		Action:      calleeSavesAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile air to arm64 assembly",
		Action:      compileAct,
		Args:        cli.Args{},
	}

	regsCmd := &cli.Command{
		Name:        "regs",
		Description: "print architecture register sets",
		Action:      regsAct,
	}

	app := &cli.Command{
		Name:        "air",
		Description: "air is a tool for framing register allocated air code",
		Flags: []*cli.Flag{
			cli.NewFlag("arch", "arm64", "default target architecture"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			calleeSavesCmd,
			compileCmd,
			regsCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func calleeSavesAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	arch, err := reg.LookupArch(c.String("arch"))
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		funcs, err := compiler.Lower(ctx, a, text, arch)
		if err != nil {
			return errors.Wrap(err, "lower %v", a)
		}

		for _, code := range funcs {
			printCalleeSaves(code)
		}
	}

	return nil
}

func printCalleeSaves(code *air.Code) {
	fmt.Printf("func %s (%v) frame %d\n", code.Name, code.Arch, code.FrameSize())

	l := code.CalleeSaves()
	if l == nil {
		fmt.Printf("\tno callee saves\n")
		return
	}

	fmt.Printf("\tslot %v size %d at %d\n", l.Slot, l.Slot.Size, l.Slot.Offset)

	for _, e := range l.Regs {
		fmt.Printf("\t%-4s %-4v fp%+d\n", code.Arch.Name(e.Reg), e.Width, l.Frame(e))
	}
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	arch, err := reg.LookupArch(c.String("arch"))
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, arch)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("%s", obj)
	}

	return nil
}

func regsAct(c *cli.Command) (err error) {
	for _, a := range reg.Archs {
		fmt.Printf("%v\n", a)
		fmt.Printf("\tall         %s\n", a.All().Format(a))
		fmt.Printf("\tcallee save %s\n", a.CalleeSaves().Format(a))
		fmt.Printf("\tmutable     %s\n", a.MutableRegs().Format(a))
		fmt.Printf("\treserved    %s\n", a.Reserved().Format(a))
		fmt.Printf("\tstack       %s\n", a.StackRegs().Format(a))
	}

	return nil
}
