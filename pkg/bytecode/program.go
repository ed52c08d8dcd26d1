package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one decoded (opcode, operand) pair.
type Instruction struct {
	Op      Opcode
	Operand uint8
}

// String renders the instruction as "mnemonic operand", with combo
// operands shown as register names where they name one.
func (in Instruction) String() string {
	switch GetOpcodeInfo(in.Op).Operand {
	case OperandCombo:
		return in.Op.String() + " " + FormatCombo(in.Operand)
	case OperandIgnored:
		return in.Op.String()
	default:
		return in.Op.String() + " " + strconv.Itoa(int(in.Operand))
	}
}

// Program is a decoded, immutable instruction stream.
type Program struct {
	code   []uint8       // flat stream, two values per instruction
	instrs []Instruction // decoded once at load
}

// Decode validates a flat (opcode, operand) stream and returns the decoded
// Program. Every error it returns is a *MalformedProgramError.
func Decode(raw []uint64) (*Program, error) {
	if len(raw)%2 != 0 {
		return nil, &MalformedProgramError{
			Offset: len(raw) - 1,
			Value:  raw[len(raw)-1],
			Reason: fmt.Sprintf("odd stream length %d, missing operand", len(raw)),
		}
	}

	p := &Program{
		code:   make([]uint8, len(raw)),
		instrs: make([]Instruction, 0, len(raw)/2),
	}

	for i := 0; i < len(raw); i += 2 {
		opVal, operand := raw[i], raw[i+1]
		if opVal > uint64(OpCdv) {
			return nil, &MalformedProgramError{Offset: i, Value: opVal, Reason: "unknown opcode"}
		}
		if operand > uint64(MaxOperand) {
			return nil, &MalformedProgramError{Offset: i + 1, Value: operand, Reason: "operand is not a 3-bit value"}
		}

		op := Opcode(opVal)
		if op.UsesCombo() && operand > uint64(MaxCombo) {
			return nil, &MalformedProgramError{
				Offset: i + 1,
				Value:  operand,
				Reason: fmt.Sprintf("invalid combo operand for %s", op),
			}
		}
		if op.IsJump() && operand%2 != 0 {
			return nil, &MalformedProgramError{
				Offset: i + 1,
				Value:  operand,
				Reason: "jump target is not instruction aligned",
			}
		}

		p.code[i] = uint8(opVal)
		p.code[i+1] = uint8(operand)
		p.instrs = append(p.instrs, Instruction{Op: op, Operand: uint8(operand)})
	}

	return p, nil
}

// MustDecode is like Decode but panics on a malformed stream. It is meant
// for fixed programs in tests and examples.
func MustDecode(raw ...uint64) *Program {
	p, err := Decode(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the length of the flat stream (twice the instruction count).
func (p *Program) Len() int {
	return len(p.code)
}

// At returns the stream value at index i.
func (p *Program) At(i int) uint8 {
	return p.code[i]
}

// Stream returns a copy of the flat stream. This is also the output a
// self-reproducing seed must make the machine emit.
func (p *Program) Stream() []uint8 {
	out := make([]uint8, len(p.code))
	copy(out, p.code)
	return out
}

// Suffix returns a copy of the last n stream values.
func (p *Program) Suffix(n int) []uint8 {
	if n > len(p.code) {
		n = len(p.code)
	}
	out := make([]uint8, n)
	copy(out, p.code[len(p.code)-n:])
	return out
}

// Instructions returns a copy of the decoded instructions.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, len(p.instrs))
	copy(out, p.instrs)
	return out
}

// String renders the flat stream as comma-separated decimal values.
func (p *Program) String() string {
	return FormatOutput(p.code)
}

// FormatOutput renders output values as comma-separated decimal, the form
// in which programs are written and run results are reported.
func FormatOutput(values []uint8) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	return sb.String()
}
