// Package manifest handles tribit.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/synth"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "tribit.toml"

// Manifest represents a tribit.toml configuration.
type Manifest struct {
	Machine Machine `toml:"machine"`
	Search  Search  `toml:"search"`
	Log     Log     `toml:"log"`
	Store   Store   `toml:"store"`

	// Dir is the directory containing the tribit.toml file (set at load time).
	Dir string `toml:"-"`
}

// Machine configures plain program runs.
type Machine struct {
	StepLimit int `toml:"step-limit"`
}

// Search configures the seed synthesizer.
type Search struct {
	StepLimit     int  `toml:"step-limit"`
	Parallel      bool `toml:"parallel"`
	ParallelDepth int  `toml:"parallel-depth"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Store configures the solution ledger.
type Store struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no tribit.toml exists.
func Default() *Manifest {
	return &Manifest{
		Machine: Machine{StepLimit: bytecode.DefaultStepLimit},
		Search:  Search{StepLimit: synth.DefaultStepLimit, ParallelDepth: 2},
	}
}

// Load parses a tribit.toml file from the given directory. Keys missing
// from the file keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a tribit.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects settings no component can honor.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Machine.StepLimit <= 0 {
		errs = append(errs, fmt.Errorf("machine.step-limit must be positive, got %d", m.Machine.StepLimit))
	}
	if m.Search.StepLimit <= 0 {
		errs = append(errs, fmt.Errorf("search.step-limit must be positive, got %d", m.Search.StepLimit))
	}
	if m.Search.ParallelDepth < 0 {
		errs = append(errs, fmt.Errorf("search.parallel-depth must not be negative, got %d", m.Search.ParallelDepth))
	}
	return errors.Join(errs...)
}

// StorePath returns the ledger path, resolved against Dir when relative.
// Returns "" when no store is configured.
func (m *Manifest) StorePath() string {
	if m.Store.Path == "" {
		return ""
	}
	if filepath.IsAbs(m.Store.Path) || m.Dir == "" {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// SynthOptions translates the [search] table into synthesizer options.
func (m *Manifest) SynthOptions() []synth.Option {
	opts := []synth.Option{synth.WithStepLimit(m.Search.StepLimit)}
	if m.Search.Parallel {
		opts = append(opts, synth.WithParallel(m.Search.ParallelDepth))
	}
	return opts
}

// Write encodes m as dir/tribit.toml. It refuses to overwrite an existing file.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
