package bytecode

import (
	"fmt"
	"io"
)

// DefaultStepLimit bounds runs that do not set their own limit.
const DefaultStepLimit = 1_000_000

// Registers holds the three machine registers.
type Registers struct {
	A, B, C uint64
}

func (r Registers) String() string {
	return fmt.Sprintf("a=%d b=%d c=%d", r.A, r.B, r.C)
}

// State is a snapshot of a Machine.
type State struct {
	PC        int
	Registers Registers
	Steps     int
	Output    []uint8
}

// Machine executes a Program. A Machine is not safe for concurrent use;
// Run creates a fresh one per call.
type Machine struct {
	prog   *Program
	pc     int
	regs   Registers
	steps  int
	output []uint8

	// StepLimit caps the number of executed instructions. Zero or
	// negative disables the cap.
	StepLimit int

	// Trace, when set, receives one line per executed instruction.
	Trace io.Writer
}

// NewMachine creates a machine at pc 0 with the given registers and
// DefaultStepLimit.
func NewMachine(p *Program, regs Registers) *Machine {
	m := &Machine{
		prog:      p,
		StepLimit: DefaultStepLimit,
	}
	m.Reset(regs)
	return m
}

// Reset rewinds the machine to pc 0 with new registers and empty output.
func (m *Machine) Reset(regs Registers) {
	m.pc = 0
	m.regs = regs
	m.steps = 0
	m.output = make([]uint8, 0, m.prog.Len()/2)
}

// Halted reports whether pc has run past the end of the program.
func (m *Machine) Halted() bool {
	return m.pc >= len(m.prog.code)
}

// State returns a snapshot of the machine. The output slice is a copy.
func (m *Machine) State() State {
	out := make([]uint8, len(m.output))
	copy(out, m.output)
	return State{PC: m.pc, Registers: m.regs, Steps: m.steps, Output: out}
}

// Step executes one instruction. It returns false without doing anything
// if the machine has already halted.
func (m *Machine) Step() bool {
	if m.Halted() {
		return false
	}

	pc := m.pc
	in := m.prog.instrs[pc/2]
	m.pc += 2

	switch in.Op {
	case OpAdv:
		m.regs.A = shr(m.regs.A, m.combo(in.Operand))
	case OpBxl:
		m.regs.B ^= uint64(in.Operand)
	case OpBst:
		m.regs.B = m.combo(in.Operand) & 0b111
	case OpJnz:
		if m.regs.A != 0 {
			m.pc = int(in.Operand)
		}
	case OpBxc:
		m.regs.B ^= m.regs.C
	case OpOut:
		m.output = append(m.output, uint8(m.combo(in.Operand)&0b111))
	case OpBdv:
		m.regs.B = shr(m.regs.A, m.combo(in.Operand))
	case OpCdv:
		m.regs.C = shr(m.regs.A, m.combo(in.Operand))
	}
	m.steps++

	if m.Trace != nil {
		fmt.Fprintf(m.Trace, "%04d  %-6s  %s  out=%s\n", pc, in, m.regs, FormatOutput(m.output))
	}
	return true
}

// Run steps the machine until it halts and returns the accumulated output.
// If StepLimit instructions execute without halting, Run returns the output
// so far together with a *StepLimitError.
func (m *Machine) Run() ([]uint8, error) {
	for !m.Halted() {
		if m.StepLimit > 0 && m.steps >= m.StepLimit {
			return m.output, &StepLimitError{Limit: m.StepLimit, PC: m.pc, Registers: m.regs}
		}
		m.Step()
	}
	return m.output, nil
}

// combo resolves a combo operand against the live registers. Decode has
// already rejected anything above MaxCombo.
func (m *Machine) combo(operand uint8) uint64 {
	switch operand {
	case ComboA:
		return m.regs.A
	case ComboB:
		return m.regs.B
	case ComboC:
		return m.regs.C
	default:
		return uint64(operand)
	}
}

// shr is a logical right shift that yields 0 once the shift covers the
// whole word.
func shr(v, n uint64) uint64 {
	if n >= 64 {
		return 0
	}
	return v >> n
}

// Run executes p from pc 0 with the given registers under DefaultStepLimit.
func Run(p *Program, regs Registers) ([]uint8, error) {
	return RunWithLimit(p, regs, DefaultStepLimit)
}

// RunWithLimit executes p with an explicit step limit.
func RunWithLimit(p *Program, regs Registers, limit int) ([]uint8, error) {
	m := NewMachine(p, regs)
	m.StepLimit = limit
	return m.Run()
}
