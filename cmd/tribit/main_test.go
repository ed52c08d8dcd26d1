package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/chazu/tribit/manifest"
	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/dist"
)

func writeProgram(t *testing.T, dir, name string, a uint64, program string) string {
	t.Helper()
	src := "Register A: " + strconv.FormatUint(a, 10) + "\nRegister B: 0\nRegister C: 0\n\nProgram: " + program + "\n"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCLI runs the CLI with its config rooted at dir.
func runCLI(t *testing.T, dir string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-config", dir}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunPrintsOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "p.txt", 729, "0,1,5,4,3,0")

	code, stdout, stderr := runCLI(t, dir, "run", path)
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if stdout != "4,6,3,5,6,3,5,2,1,0\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunOverridesA(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "p.txt", 0, "5,0,5,1,5,4")

	code, stdout, stderr := runCLI(t, dir, "run", "-a", "10", path)
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if stdout != "0,1,2\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunTrace(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "p.txt", 10, "5,0,5,1,5,4")

	code, _, stderr := runCLI(t, dir, "run", "-trace", path)
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if got := strings.Count(stderr, "out "); got != 3 {
		t.Errorf("trace has %d out lines, want 3:\n%s", got, stderr)
	}
}

func TestRunStepLimit(t *testing.T) {
	dir := t.TempDir()
	// Loops forever: A is never shifted.
	path := writeProgram(t, dir, "p.txt", 1, "5,4,3,0")

	code, _, stderr := runCLI(t, dir, "-step-limit", "100", "run", path)
	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "step limit") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunMalformed(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "p.txt", 0, "0,7")

	code, _, stderr := runCLI(t, dir, "run", path)
	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "p.txt") {
		t.Errorf("stderr should name the file: %q", stderr)
	}
}

func TestSolveAndVerify(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "quine.txt", 2024, "0,3,5,4,3,0")
	record := filepath.Join(dir, "quine.cbor")

	code, stdout, stderr := runCLI(t, dir, "solve", "-o", record, path)
	if code != exitOK {
		t.Fatalf("solve exit %d, stderr: %s", code, stderr)
	}
	if stdout != "117440\n" {
		t.Errorf("solve stdout = %q", stdout)
	}

	code, stdout, stderr = runCLI(t, dir, "verify", record)
	if code != exitOK {
		t.Fatalf("verify exit %d, stderr: %s", code, stderr)
	}
	if stdout != "ok: seed 117440 prints 0,3,5,4,3,0\n" {
		t.Errorf("verify stdout = %q", stdout)
	}
}

func TestSolveParallel(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "mixer.txt", 0, "2,4,1,1,7,5,1,5,4,0,5,5,0,3,3,0")

	code, stdout, stderr := runCLI(t, dir, "solve", "-parallel", path)
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if stdout != "164279024971453\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestSolveNoSolution(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "p.txt", 0, "0,1,5,4,3,0")
	record := filepath.Join(dir, "p.cbor")

	code, stdout, _ := runCLI(t, dir, "solve", "-o", record, path)
	if code != exitNoSolution {
		t.Fatalf("exit %d, want %d", code, exitNoSolution)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}

	// The negative result is still a valid record.
	code, stdout, stderr := runCLI(t, dir, "verify", record)
	if code != exitOK {
		t.Fatalf("verify exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "has no seed") {
		t.Errorf("verify stdout = %q", stdout)
	}
}

func TestVerifyRejectsTamperedRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "quine.txt", 0, "0,3,5,4,3,0")
	record := filepath.Join(dir, "quine.cbor")
	if code, _, stderr := runCLI(t, dir, "solve", "-o", record, path); code != exitOK {
		t.Fatalf("solve exit %d, stderr: %s", code, stderr)
	}

	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	// Flip the last byte of the hash, which precedes the found flag.
	i := bytes.Index(data, []byte{0x04, 0xf5})
	if i < 1 {
		t.Fatalf("found flag not located in %x", data)
	}
	data[i-1] ^= 0xff
	if err := os.WriteFile(record, data, 0644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runCLI(t, dir, "verify", record)
	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "hash mismatch") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestSolveStoreAndHistory(t *testing.T) {
	dir := t.TempDir()
	quine := writeProgram(t, dir, "quine.txt", 0, "0,3,5,4,3,0")
	none := writeProgram(t, dir, "none.txt", 0, "0,1,5,4,3,0")
	db := filepath.Join(dir, "ledger.db")

	if code, _, stderr := runCLI(t, dir, "solve", "-store", db, quine); code != exitOK {
		t.Fatalf("solve exit %d, stderr: %s", code, stderr)
	}
	if code, _, _ := runCLI(t, dir, "solve", "-store", db, none); code != exitNoSolution {
		t.Fatalf("solve exit %d, want %d", code, exitNoSolution)
	}

	// The second solve of the same program is answered from the ledger.
	code, stdout, stderr := runCLI(t, dir, "solve", "-store", db, quine)
	if code != exitOK || stdout != "117440\n" {
		t.Fatalf("cached solve = %d %q, stderr: %s", code, stdout, stderr)
	}

	code, stdout, stderr = runCLI(t, dir, "history", "-store", db)
	if code != exitOK {
		t.Fatalf("history exit %d, stderr: %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("history has %d lines, want header + 2:\n%s", len(lines), stdout)
	}
	if !strings.Contains(stdout, "117440") || !strings.Contains(stdout, "0,1,5,4,3,0") {
		t.Errorf("history missing entries:\n%s", stdout)
	}
}

func TestSolveIgnoresLedgerFromOtherStepLimit(t *testing.T) {
	dir := t.TempDir()
	quine := writeProgram(t, dir, "quine.txt", 0, "0,3,5,4,3,0")
	db := filepath.Join(dir, "ledger.db")

	// Ten steps cover three loop iterations; the quine needs six.
	if code, _, _ := runCLI(t, dir, "-step-limit", "10", "solve", "-store", db, quine); code != exitNoSolution {
		t.Fatalf("low limit solve exit %d, want %d", code, exitNoSolution)
	}

	code, stdout, stderr := runCLI(t, dir, "solve", "-store", db, quine)
	if code != exitOK || stdout != "117440\n" {
		t.Fatalf("default limit solve = %d %q, stderr: %s", code, stdout, stderr)
	}

	code, stdout, _ = runCLI(t, dir, "history", "-store", db)
	if code != exitOK || strings.Count(stdout, "\n") != 2 || !strings.Contains(stdout, "117440") {
		t.Errorf("history after re-solve:\n%s", stdout)
	}
}

func TestVerifyRejectsNonMinimalSeed(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "quine.cbor")
	sol := dist.NewSolution(bytecode.MustDecode(0, 3, 5, 4, 3, 0), 117443, true, 0)
	if err := dist.WriteSolution(record, sol); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runCLI(t, dir, "verify", record)
	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "not minimal") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestHistoryRequiresStore(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := runCLI(t, dir, "history")
	if code != exitError {
		t.Fatalf("exit %d, want %d", code, exitError)
	}
	if !strings.Contains(stderr, "-store") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestDisasm(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "quine.txt", 2024, "0,3,5,4,3,0")

	code, stdout, stderr := runCLI(t, dir, "disasm", path)
	if code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"0000  adv 3", "0002  out a", "0004  jnz 0", "; Registers: a=2024 b=0 c=0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("listing missing %q:\n%s", want, stdout)
		}
	}
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	if code, _, stderr := runCLI(t, dir, "init", dir); code != exitOK {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Search.StepLimit != manifest.Default().Search.StepLimit {
		t.Errorf("search step limit = %d", m.Search.StepLimit)
	}

	if code, _, _ := runCLI(t, dir, "init", dir); code != exitError {
		t.Errorf("second init exit %d, want %d", code, exitError)
	}
}

func TestConfigStepLimitApplies(t *testing.T) {
	dir := t.TempDir()
	cfg := "[machine]\nstep-limit = 50\n"
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	path := writeProgram(t, dir, "p.txt", 1, "5,4,3,0")

	code, _, stderr := runCLI(t, dir, "run", path)
	if code != exitError || !strings.Contains(stderr, "50") {
		t.Errorf("exit %d, stderr %q; want step limit 50 error", code, stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	if code, _, _ := runCLI(t, dir); code != exitError {
		t.Errorf("no command: exit %d", code)
	}
	if code, _, stderr := runCLI(t, dir, "frobnicate"); code != exitError || !strings.Contains(stderr, "Unknown command") {
		t.Errorf("unknown command: exit %d, stderr %q", code, stderr)
	}
	if code, _, _ := runCLI(t, dir, "run"); code != exitError {
		t.Errorf("run without file: exit %d", code)
	}
}
