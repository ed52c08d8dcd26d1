package main

import (
	"fmt"
	"strconv"

	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/parser"
)

// handleRunCommand processes the `tribit run` subcommand.
// Usage:
//
//	tribit run prog.txt            # registers from the file
//	tribit run -a 117440 prog.txt  # override register A
//	tribit run -trace prog.txt     # one line per executed instruction
func handleRunCommand(args []string, e *env) error {
	fs := newFlagSet("run", e)
	trace := fs.Bool("trace", false, "Trace each instruction to stderr")
	seed := fs.String("a", "", "Initial value of register A")

	path, err := oneFile(fs, args, "program file")
	if err != nil {
		return err
	}

	in, p, err := parser.Load(path)
	if err != nil {
		return err
	}
	regs := in.Registers
	if *seed != "" {
		regs.A, err = strconv.ParseUint(*seed, 10, 64)
		if err != nil {
			return fmt.Errorf("-a: %q is not an unsigned 64-bit integer", *seed)
		}
	}

	m := bytecode.NewMachine(p, regs)
	m.StepLimit = e.m.Machine.StepLimit
	if *trace {
		m.Trace = e.stderr
	}

	out, err := m.Run()
	fmt.Fprintln(e.stdout, bytecode.FormatOutput(out))
	if err != nil {
		return err
	}
	e.log.Debugf("%s: %d steps, final %s", path, m.State().Steps, m.State().Registers)
	return nil
}

// handleDisasmCommand processes the `tribit disasm` subcommand.
func handleDisasmCommand(args []string, e *env) error {
	fs := newFlagSet("disasm", e)
	path, err := oneFile(fs, args, "program file")
	if err != nil {
		return err
	}

	in, p, err := parser.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprint(e.stdout, p.DisassembleWithName(path))
	fmt.Fprintf(e.stdout, "\n; Registers: %s\n", in.Registers)
	return nil
}
