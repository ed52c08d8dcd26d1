// Package bytecode implements the tribit machine: three unsigned 64-bit
// registers, a program counter, and eight instructions over 3-bit operands.
//
// # Program format
//
// A program is a flat stream of small integers read in (opcode, operand)
// pairs. The stream is decoded once by Decode into a Program holding typed
// Instructions; malformed streams (odd length, unknown opcode, out of range
// operand) are rejected there and never reach the execution loop. A jnz
// whose target is odd is rejected too: the pc only ever holds even offsets,
// so every jump lands on an opcode.
//
// # Operands
//
// Opcodes adv, bst, out, bdv and cdv take a combo operand: values 0-3 are
// literals, 4, 5 and 6 name registers A, B and C. The register is read at the
// moment the instruction executes. Opcodes bxl, jnz and bxc take a literal
// operand (bxc ignores it).
//
// # Execution
//
// A Machine runs a Program from pc 0 until pc moves past the last
// instruction. Every run is bounded by a step limit; a program that loops
// without shrinking A fails with a *StepLimitError instead of hanging.
//
// Run is the pure entry point: the same program and registers always give
// the same output.
package bytecode
