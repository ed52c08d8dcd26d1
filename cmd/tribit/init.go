package main

import (
	"github.com/chazu/tribit/manifest"
)

// handleInitCommand processes the `tribit init` subcommand, writing the
// default configuration to dir (or the working directory).
func handleInitCommand(args []string, e *env) error {
	fs := newFlagSet("init", e)
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	if err := manifest.Write(dir, manifest.Default()); err != nil {
		return err
	}
	e.log.Infof("wrote %s in %s", manifest.FileName, dir)
	return nil
}
