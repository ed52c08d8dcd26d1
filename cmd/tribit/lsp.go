package main

import (
	"github.com/chazu/tribit/pkg/synth"
	"github.com/chazu/tribit/server"
)

// handleLSPCommand processes the `tribit lsp` subcommand. It serves on
// stdio until the client disconnects.
func handleLSPCommand(args []string, e *env) error {
	fs := newFlagSet("lsp", e)
	if err := fs.Parse(args); err != nil {
		return err
	}
	engine := server.NewEngine(synth.New(e.m.SynthOptions()...), e.m.Machine.StepLimit)
	return server.NewLSP(engine).Run()
}
