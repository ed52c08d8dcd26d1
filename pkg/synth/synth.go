package synth

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/tribit/pkg/bytecode"
)

// DefaultStepLimit bounds each candidate run. Self-reproducing programs
// finish in a few hundred steps for any 64-bit seed.
const DefaultStepLimit = 100_000

// digitBits is the width of one search level.
const digitBits = 3

// Stats counts what the search did. Counters are updated atomically so a
// parallel search can share them.
type Stats struct {
	Runs           atomic.Int64 // candidate runs executed
	Matches        atomic.Int64 // candidates that reproduced their suffix
	Leaves         atomic.Int64 // candidates that reproduced the whole target
	PrunedMismatch atomic.Int64 // candidates whose output differed
	PrunedLimit    atomic.Int64 // candidates that hit the step limit
	PrunedBound    atomic.Int64 // digit ranges skipped by the bound
	PrunedOverflow atomic.Int64 // branches that would not fit in 64 bits
}

// Snapshot is a plain copy of Stats.
type Snapshot struct {
	Runs, Matches, Leaves                                   int64
	PrunedMismatch, PrunedLimit, PrunedBound, PrunedOverflow int64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Runs:           s.Runs.Load(),
		Matches:        s.Matches.Load(),
		Leaves:         s.Leaves.Load(),
		PrunedMismatch: s.PrunedMismatch.Load(),
		PrunedLimit:    s.PrunedLimit.Load(),
		PrunedBound:    s.PrunedBound.Load(),
		PrunedOverflow: s.PrunedOverflow.Load(),
	}
}

// Result is the outcome of a search.
type Result struct {
	Seed  uint64
	Found bool
	Stats Snapshot
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithStepLimit sets the step limit for each candidate run.
func WithStepLimit(n int) Option {
	return func(s *Synthesizer) { s.stepLimit = n }
}

// WithParallel fans the digit choices of the first depth levels out to
// goroutines. The result is the same as a sequential search.
func WithParallel(depth int) Option {
	return func(s *Synthesizer) { s.parallelDepth = depth }
}

// WithLogger sets the logger used for search progress.
func WithLogger(log commonlog.Logger) Option {
	return func(s *Synthesizer) { s.log = log }
}

// Synthesizer runs seed searches. It holds configuration only and may be
// shared between goroutines.
type Synthesizer struct {
	stepLimit     int
	parallelDepth int
	log           commonlog.Logger
}

// New creates a Synthesizer.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		stepLimit: DefaultStepLimit,
		log:       commonlog.GetLogger("tribit.synth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindMinimalSeed returns the smallest A (with B = C = 0) for which p
// prints its own stream.
func (s *Synthesizer) FindMinimalSeed(p *bytecode.Program) Result {
	return s.FindSeed(p, p.Stream())
}

// FindSeed returns the smallest A reachable by the digit search for which
// p prints target. An empty target is matched only by A = 0.
func (s *Synthesizer) FindSeed(p *bytecode.Program, target []uint8) Result {
	sr := &search{
		prog:   p,
		target: target,
		limit:  s.stepLimit,
		par:    s.parallelDepth,
	}

	if len(target) == 0 {
		sr.stats.Runs.Add(1)
		out, err := bytecode.RunWithLimit(p, bytecode.Registers{}, s.stepLimit)
		if err == nil && len(out) == 0 {
			sr.record(0)
		}
	} else {
		sr.descend(0, 1)
	}

	res := Result{Seed: sr.best, Found: sr.found, Stats: sr.stats.Snapshot()}
	if res.Found {
		s.log.Infof("seed %d for %d-value target after %d runs", res.Seed, len(target), res.Stats.Runs)
	} else {
		s.log.Infof("no seed for %d-value target after %d runs", len(target), res.Stats.Runs)
	}
	return res
}

// search is the state of one FindSeed call. Only best and found are
// shared between branches, guarded by mu.
type search struct {
	prog   *bytecode.Program
	target []uint8
	limit  int
	par    int

	mu    sync.Mutex
	best  uint64
	found bool

	stats Stats
}

// descend tries every digit below num against the last depth values of
// the target.
func (sr *search) descend(num uint64, depth int) {
	if num > math.MaxUint64>>digitBits {
		sr.stats.PrunedOverflow.Add(1)
		return
	}

	expected := sr.target[len(sr.target)-depth:]
	remaining := len(sr.target) - depth

	var g *errgroup.Group
	if depth <= sr.par && remaining > 0 {
		g = new(errgroup.Group)
	}

	for d := uint64(0); d < 1<<digitBits; d++ {
		candidate := num<<digitBits | d
		if sr.bounded(candidate, remaining) {
			// Later digits only raise the bound.
			sr.stats.PrunedBound.Add(1)
			break
		}

		sr.stats.Runs.Add(1)
		out, err := bytecode.RunWithLimit(sr.prog, bytecode.Registers{A: candidate}, sr.limit)
		if err != nil {
			sr.stats.PrunedLimit.Add(1)
			continue
		}
		if !slices.Equal(out, expected) {
			sr.stats.PrunedMismatch.Add(1)
			continue
		}
		sr.stats.Matches.Add(1)

		if remaining == 0 {
			sr.stats.Leaves.Add(1)
			sr.record(candidate)
			continue
		}

		if g != nil {
			g.Go(func() error {
				sr.descend(candidate, depth+1)
				return nil
			})
		} else {
			sr.descend(candidate, depth+1)
		}
	}

	if g != nil {
		g.Wait()
	}
}

// bounded reports whether every seed below candidate is at least the best
// seed already found.
func (sr *search) bounded(candidate uint64, remaining int) bool {
	sr.mu.Lock()
	best, found := sr.best, sr.found
	sr.mu.Unlock()

	if !found {
		return false
	}
	if candidate == 0 {
		return best == 0
	}
	shift := uint(remaining * digitBits)
	if shift >= 64 || candidate > math.MaxUint64>>shift {
		return true
	}
	return candidate<<shift >= best
}

func (sr *search) record(seed uint64) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if !sr.found || seed < sr.best {
		sr.best = seed
		sr.found = true
	}
}

// FindMinimalSeed searches with default options.
func FindMinimalSeed(p *bytecode.Program) (uint64, bool) {
	res := New().FindMinimalSeed(p)
	return res.Seed, res.Found
}

// Scan tries every A in [from, to) in order and returns the first that
// makes p print target. It is the brute-force reference for FindSeed and
// only practical for small ranges.
func Scan(p *bytecode.Program, target []uint8, from, to uint64, stepLimit int) (uint64, bool) {
	m := bytecode.NewMachine(p, bytecode.Registers{})
	m.StepLimit = stepLimit
	for a := from; a < to; a++ {
		m.Reset(bytecode.Registers{A: a})
		out, err := m.Run()
		if err == nil && slices.Equal(out, target) {
			return a, true
		}
	}
	return 0, false
}
