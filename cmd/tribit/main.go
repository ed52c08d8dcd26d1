// tribit CLI - runs, disassembles and synthesizes seeds for tribit programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/tribit/manifest"
)

// Exit statuses.
const (
	exitOK         = 0
	exitError      = 1
	exitNoSolution = 2
)

// errNoSolution is returned by commands whose search came up empty.
var errNoSolution = errors.New("no solution")

// env carries what every subcommand needs.
type env struct {
	m      *manifest.Manifest
	stdout io.Writer
	stderr io.Writer
	log    commonlog.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("tribit", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "Verbose output")
	configDir := global.String("config", ".", "Directory to search upward for tribit.toml")
	stepLimit := global.Int("step-limit", 0, "Override the step limit of runs and searches")

	global.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tribit [options] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  run [-trace] [-a N] file        Run a program and print its output\n")
		fmt.Fprintf(stderr, "  solve [-parallel] [-o out.cbor] [-store db] file\n")
		fmt.Fprintf(stderr, "                                  Find the minimal self-printing seed\n")
		fmt.Fprintf(stderr, "  disasm file                     Print a program listing\n")
		fmt.Fprintf(stderr, "  verify record.cbor              Check a solution record\n")
		fmt.Fprintf(stderr, "  history [-store db]             List solved programs\n")
		fmt.Fprintf(stderr, "  init [dir]                      Write a default tribit.toml\n")
		fmt.Fprintf(stderr, "  lsp                             Start the language server on stdio\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return exitError
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitError
	}

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitError
	}
	if m == nil {
		m = manifest.Default()
	}
	if *stepLimit > 0 {
		m.Machine.StepLimit = *stepLimit
		m.Search.StepLimit = *stepLimit
	}

	verbosity := m.Log.Verbosity
	if *verbose {
		verbosity++
	}
	configureLogging(verbosity, m.Log.File)

	e := &env{
		m:      m,
		stdout: stdout,
		stderr: stderr,
		log:    commonlog.GetLogger("tribit.cli"),
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "run":
		err = handleRunCommand(rest, e)
	case "solve":
		err = handleSolveCommand(rest, e)
	case "disasm":
		err = handleDisasmCommand(rest, e)
	case "verify":
		err = handleVerifyCommand(rest, e)
	case "history":
		err = handleHistoryCommand(rest, e)
	case "init":
		err = handleInitCommand(rest, e)
	case "lsp":
		err = handleLSPCommand(rest, e)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		global.Usage()
		return exitError
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errNoSolution):
		fmt.Fprintln(stderr, err)
		return exitNoSolution
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

// configureLogging sends log output to path, or stderr when path is empty.
func configureLogging(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

// oneFile parses fs and returns its single positional argument.
func oneFile(fs *flag.FlagSet, args []string, what string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s requires exactly one %s", fs.Name(), what)
	}
	return fs.Arg(0), nil
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}
