package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/dist"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutLookup(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := bytecode.MustDecode(0, 3, 5, 4, 3, 0)
	h := dist.ProgramHash(p)

	if e, err := s.Lookup(ctx, h); err != nil || e != nil {
		t.Fatalf("Lookup on empty store = %v, %v", e, err)
	}

	if err := s.Put(ctx, Entry{Hash: h, Program: p.String(), Found: true, Seed: 117440, Runs: 141, StepLimit: 5000}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	e, err := s.Lookup(ctx, h)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if e == nil {
		t.Fatal("Lookup returned nil after Put")
	}
	if !e.Found || e.Seed != 117440 || e.Runs != 141 || e.Program != "0,3,5,4,3,0" {
		t.Errorf("Lookup = %+v", e)
	}
	if e.Hash != h {
		t.Errorf("hash = %s, want %s", e.Hash, h)
	}
	if e.SolvedAt.IsZero() {
		t.Error("SolvedAt should default to now")
	}
	if e.StepLimit != 5000 {
		t.Errorf("StepLimit = %d, want 5000", e.StepLimit)
	}
}

func TestEntryAnswers(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		limit int
		want  bool
	}{
		{"miss under same limit", Entry{Found: false, StepLimit: 10}, 10, true},
		{"miss under lower limit", Entry{Found: false, StepLimit: 10}, 100000, false},
		{"seed under same limit", Entry{Found: true, StepLimit: 100000}, 100000, true},
		{"seed under other limit", Entry{Found: true, StepLimit: 100000}, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Answers(tt.limit); got != tt.want {
				t.Errorf("Answers(%d) = %v, want %v", tt.limit, got, tt.want)
			}
		})
	}
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	h := dist.ProgramHash(bytecode.MustDecode(5, 4))

	if err := s.Put(ctx, Entry{Hash: h, Program: "5,4", Found: false}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, Entry{Hash: h, Program: "5,4", Found: true, Seed: 5}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].Found || entries[0].Seed != 5 {
		t.Errorf("List = %+v", entries)
	}
}

func TestSeedAboveInt64(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	h := dist.ProgramHash(bytecode.MustDecode(0, 3))

	if err := s.Put(ctx, Entry{Hash: h, Program: "0,3", Found: true, Seed: math.MaxUint64}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	e, err := s.Lookup(ctx, h)
	if err != nil || e == nil {
		t.Fatalf("Lookup = %v, %v", e, err)
	}
	if e.Seed != math.MaxUint64 {
		t.Errorf("seed = %d, want %d", e.Seed, uint64(math.MaxUint64))
	}
}

func TestListOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	older := dist.ProgramHash(bytecode.MustDecode(0, 1))
	newer := dist.ProgramHash(bytecode.MustDecode(0, 2))
	base := time.Unix(1700000000, 0)

	if err := s.Put(ctx, Entry{Hash: older, Program: "0,1", SolvedAt: base}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, Entry{Hash: newer, Program: "0,2", SolvedAt: base.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Hash != newer || entries[1].Hash != older {
		t.Errorf("List order wrong: %+v", entries)
	}
}
