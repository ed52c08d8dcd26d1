package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; tribit program, %d instructions\n", len(p.instrs)))
	sb.WriteString(fmt.Sprintf("; Stream: %s\n", p.String()))
	sb.WriteString("\n")

	// Code section
	sb.WriteString("; Code:\n")
	for i, in := range p.instrs {
		sb.WriteString(fmt.Sprintf("%04d  %-6s ; %s\n", i*2, in, in.Pseudo()))
	}

	return sb.String()
}

// DisassembleAt disassembles the instruction containing stream offset.
// Odd offsets resolve to the instruction whose operand they address.
func (p *Program) DisassembleAt(offset int) (string, bool) {
	if offset < 0 || offset >= len(p.code) {
		return "", false
	}
	in := p.instrs[offset/2]
	return fmt.Sprintf("%04d  %s ; %s", offset&^1, in, in.Pseudo()), true
}

// Pseudo renders the instruction as a one-line statement of its effect.
func (in Instruction) Pseudo() string {
	info := GetOpcodeInfo(in.Op)
	switch info.Operand {
	case OperandCombo:
		return fmt.Sprintf(info.Summary, FormatCombo(in.Operand))
	case OperandLiteral:
		return fmt.Sprintf(info.Summary, strconv.Itoa(int(in.Operand)))
	default:
		return info.Summary
	}
}
