package bytecode

import "fmt"

// Opcode represents a machine instruction. Opcodes are the 3-bit values
// 0 through 7; there are no others.
type Opcode byte

const (
	OpAdv Opcode = 0 // a = a >> combo
	OpBxl Opcode = 1 // b = b ^ literal
	OpBst Opcode = 2 // b = combo & 7
	OpJnz Opcode = 3 // if a != 0 { pc = literal }
	OpBxc Opcode = 4 // b = b ^ c, operand ignored
	OpOut Opcode = 5 // emit combo & 7
	OpBdv Opcode = 6 // b = a >> combo
	OpCdv Opcode = 7 // c = a >> combo
)

// OperandKind describes how an instruction interprets its operand.
type OperandKind uint8

const (
	// OperandLiteral uses the operand value verbatim.
	OperandLiteral OperandKind = iota
	// OperandCombo resolves 0-3 as literals and 4-6 as registers A-C.
	OperandCombo
	// OperandIgnored means the operand is fetched but unused.
	OperandIgnored
)

// String returns a human-readable name for OperandKind.
func (k OperandKind) String() string {
	switch k {
	case OperandLiteral:
		return "literal"
	case OperandCombo:
		return "combo"
	case OperandIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// OpcodeInfo provides metadata about each opcode for disassembly and validation.
type OpcodeInfo struct {
	Name    string      // Mnemonic
	Operand OperandKind // How the operand is interpreted
	Summary string      // Pseudo-code form, %s is the rendered operand
}

// opcodeInfoTable is indexed by opcode value.
var opcodeInfoTable = [...]OpcodeInfo{
	OpAdv: {"adv", OperandCombo, "a = a >> %s"},
	OpBxl: {"bxl", OperandLiteral, "b = b ^ %s"},
	OpBst: {"bst", OperandCombo, "b = %s & 7"},
	OpJnz: {"jnz", OperandLiteral, "if a != 0 goto %s"},
	OpBxc: {"bxc", OperandIgnored, "b = b ^ c"},
	OpOut: {"out", OperandCombo, "out %s & 7"},
	OpBdv: {"bdv", OperandCombo, "b = a >> %s"},
	OpCdv: {"cdv", OperandCombo, "c = a >> %s"},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", byte(op))}
}

// Valid reports whether op is one of the eight defined opcodes.
func (op Opcode) Valid() bool {
	return int(op) < len(opcodeInfoTable)
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// UsesCombo reports whether the operand is resolved as a combo operand.
func (op Opcode) UsesCombo() bool {
	return op.Valid() && opcodeInfoTable[op].Operand == OperandCombo
}

// IsJump returns true if this opcode may overwrite pc.
func (op Opcode) IsJump() bool {
	return op == OpJnz
}

// ParseOpcode looks up an opcode by mnemonic.
func ParseOpcode(name string) (Opcode, bool) {
	for i, info := range opcodeInfoTable {
		if info.Name == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

// AllOpcodes returns a slice of all defined opcodes in ascending order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, len(opcodeInfoTable))
	for i := range opcodeInfoTable {
		opcodes[i] = Opcode(i)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// Combo operand values naming registers.
const (
	ComboA uint8 = 4
	ComboB uint8 = 5
	ComboC uint8 = 6

	// MaxCombo is the largest valid combo operand.
	MaxCombo uint8 = ComboC
	// MaxOperand is the largest value any operand may hold.
	MaxOperand uint8 = 7
)

// FormatCombo renders a combo operand: the literal for 0-3, the register
// name for 4-6.
func FormatCombo(operand uint8) string {
	switch operand {
	case ComboA:
		return "a"
	case ComboB:
		return "b"
	case ComboC:
		return "c"
	}
	if operand <= 3 {
		return fmt.Sprintf("%d", operand)
	}
	return fmt.Sprintf("?%d", operand)
}
