package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/chazu/tribit/manifest"
	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/dist"
	"github.com/chazu/tribit/pkg/parser"
	"github.com/chazu/tribit/pkg/store"
	"github.com/chazu/tribit/pkg/synth"
)

// handleSolveCommand processes the `tribit solve` subcommand.
// Usage:
//
//	tribit solve prog.txt                    # print the minimal seed
//	tribit solve -parallel prog.txt          # fan the first levels out
//	tribit solve -o seed.cbor prog.txt       # also write a solution record
//	tribit solve -store ledger.db prog.txt   # reuse and record in a ledger
func handleSolveCommand(args []string, e *env) error {
	fs := newFlagSet("solve", e)
	parallel := fs.Bool("parallel", e.m.Search.Parallel, "Search the first levels concurrently")
	output := fs.String("o", "", "Write a CBOR solution record to this path")
	storePath := fs.String("store", e.m.StorePath(), "SQLite ledger of solved programs")
	fresh := fs.Bool("fresh", false, "Search even if the ledger has an answer")

	path, err := oneFile(fs, args, "program file")
	if err != nil {
		return err
	}
	_, p, err := parser.Load(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var ledger *store.Store
	if *storePath != "" {
		ledger, err = store.Open(*storePath)
		if err != nil {
			return err
		}
		defer ledger.Close()
	}

	sol, err := solve(ctx, e, p, ledger, *parallel, *fresh)
	if err != nil {
		return err
	}

	if *output != "" {
		if err := dist.WriteSolution(*output, sol); err != nil {
			return err
		}
		e.log.Infof("wrote %s", *output)
	}

	if !sol.Found {
		return fmt.Errorf("%s: %w", path, errNoSolution)
	}
	fmt.Fprintln(e.stdout, sol.Seed)
	return nil
}

// solve answers from the ledger when it can, otherwise searches and
// records the result.
func solve(ctx context.Context, e *env, p *bytecode.Program, ledger *store.Store, parallel, fresh bool) (*dist.Solution, error) {
	h := dist.ProgramHash(p)

	if ledger != nil && !fresh {
		entry, err := ledger.Lookup(ctx, h)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.Answers(e.m.Search.StepLimit) {
			e.log.Infof("ledger hit for %s", h)
			return dist.NewSolution(p, entry.Seed, entry.Found, entry.Runs), nil
		}
	}

	opts := []synth.Option{synth.WithStepLimit(e.m.Search.StepLimit)}
	if parallel {
		opts = append(opts, synth.WithParallel(e.m.Search.ParallelDepth))
	}
	start := time.Now()
	res := synth.New(opts...).FindMinimalSeed(p)
	st := res.Stats
	e.log.Infof("searched %s in %s: runs=%d matches=%d pruned mismatch=%d limit=%d bound=%d overflow=%d",
		h, time.Since(start), st.Runs, st.Matches, st.PrunedMismatch, st.PrunedLimit, st.PrunedBound, st.PrunedOverflow)

	if ledger != nil {
		err := ledger.Put(ctx, store.Entry{
			Hash:      h,
			Program:   p.String(),
			Found:     res.Found,
			Seed:      res.Seed,
			Runs:      st.Runs,
			StepLimit: e.m.Search.StepLimit,
		})
		if err != nil {
			return nil, err
		}
	}
	return dist.NewSolution(p, res.Seed, res.Found, st.Runs), nil
}

// handleVerifyCommand processes the `tribit verify` subcommand.
func handleVerifyCommand(args []string, e *env) error {
	fs := newFlagSet("verify", e)
	path, err := oneFile(fs, args, "solution record")
	if err != nil {
		return err
	}

	sol, err := dist.ReadSolution(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := sol.Verify(e.m.Search.StepLimit); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !sol.Found {
		fmt.Fprintf(e.stdout, "ok: %x has no seed\n", sol.Hash)
		return nil
	}
	fmt.Fprintf(e.stdout, "ok: seed %d prints %s\n", sol.Seed, bytecode.FormatOutput(sol.Program))
	return nil
}

// handleHistoryCommand processes the `tribit history` subcommand.
func handleHistoryCommand(args []string, e *env) error {
	fs := newFlagSet("history", e)
	storePath := fs.String("store", e.m.StorePath(), "SQLite ledger of solved programs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *storePath == "" {
		return fmt.Errorf("history requires -store or [store] path in %s", manifest.FileName)
	}

	ledger, err := store.Open(*storePath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	entries, err := ledger.List(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tSEED\tRUNS\tSOLVED\tPROGRAM")
	for _, entry := range entries {
		seed := "-"
		if entry.Found {
			seed = fmt.Sprint(entry.Seed)
		}
		fmt.Fprintf(tw, "%.12s\t%s\t%d\t%s\t%s\n",
			entry.Hash, seed, entry.Runs, entry.SolvedAt.Format(time.RFC3339), entry.Program)
	}
	return tw.Flush()
}
