// Package dist defines the portable records tribit writes for solved
// programs: a canonical CBOR encoding and a content hash over it.
package dist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/synth"
)

// RecordVersion is the current Solution format version.
const RecordVersion = 1

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Hash is the SHA-256 of a program's canonical encoding.
type Hash [32]byte

// String returns the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex string produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("dist: parse hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("dist: parse hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ProgramHash computes the content hash of a program. Two programs hash
// equal exactly when their streams are equal.
func ProgramHash(p *bytecode.Program) Hash {
	data, err := cborEncMode.Marshal(p.Stream())
	if err != nil {
		// A byte slice always encodes.
		panic(fmt.Sprintf("dist: encode program: %v", err))
	}
	return sha256.Sum256(data)
}

// Solution records the outcome of a seed search.
type Solution struct {
	Version int     `cbor:"1,keyasint"`
	Program []uint8 `cbor:"2,keyasint"`
	Hash    []byte  `cbor:"3,keyasint"`
	Found   bool    `cbor:"4,keyasint"`
	Seed    uint64  `cbor:"5,keyasint,omitempty"`
	Runs    int64   `cbor:"6,keyasint,omitempty"`
}

// NewSolution builds a record for p.
func NewSolution(p *bytecode.Program, seed uint64, found bool, runs int64) *Solution {
	h := ProgramHash(p)
	s := &Solution{
		Version: RecordVersion,
		Program: p.Stream(),
		Hash:    h[:],
		Found:   found,
		Runs:    runs,
	}
	if found {
		s.Seed = seed
	}
	return s
}

// MarshalSolution serializes a Solution to CBOR bytes.
func MarshalSolution(s *Solution) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSolution deserializes a Solution from CBOR bytes.
func UnmarshalSolution(data []byte) (*Solution, error) {
	var s Solution
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("dist: unmarshal solution: %w", err)
	}
	if s.Version != RecordVersion {
		return nil, fmt.Errorf("dist: unsupported solution version %d", s.Version)
	}
	return &s, nil
}

// WriteSolution writes a CBOR record to path.
func WriteSolution(path string, s *Solution) error {
	data, err := MarshalSolution(s)
	if err != nil {
		return fmt.Errorf("dist: marshal solution: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadSolution reads a CBOR record from path.
func ReadSolution(path string) (*Solution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalSolution(data)
}

// Decode rebuilds the recorded program.
func (s *Solution) Decode() (*bytecode.Program, error) {
	raw := make([]uint64, len(s.Program))
	for i, v := range s.Program {
		raw[i] = uint64(v)
	}
	return bytecode.Decode(raw)
}

// Verify checks that the record is internally consistent: the hash
// matches the program, a recorded seed makes the program print itself, and
// a fresh search under stepLimit agrees with the record. A seed that prints
// the program but is not the smallest one fails verification.
func (s *Solution) Verify(stepLimit int) error {
	p, err := s.Decode()
	if err != nil {
		return err
	}
	h := ProgramHash(p)
	if !slices.Equal(h[:], s.Hash) {
		return fmt.Errorf("dist: hash mismatch: record has %x, program hashes to %s", s.Hash, h)
	}
	if s.Found {
		out, err := bytecode.RunWithLimit(p, bytecode.Registers{A: s.Seed}, stepLimit)
		if err != nil {
			return fmt.Errorf("dist: seed %d: %w", s.Seed, err)
		}
		if !slices.Equal(out, s.Program) {
			return fmt.Errorf("dist: seed %d prints %s, want %s", s.Seed, bytecode.FormatOutput(out), p)
		}
	}

	res := synth.New(synth.WithStepLimit(stepLimit)).FindMinimalSeed(p)
	switch {
	case s.Found && !res.Found:
		return fmt.Errorf("dist: seed %d is not reachable by the search", s.Seed)
	case s.Found && res.Seed != s.Seed:
		return fmt.Errorf("dist: seed %d is not minimal, %d also prints the program", s.Seed, res.Seed)
	case !s.Found && res.Found:
		return fmt.Errorf("dist: record has no seed, but %d prints the program", res.Seed)
	}
	return nil
}
