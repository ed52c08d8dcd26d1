// Package parser reads tribit program files: three register lines followed
// by a comma-separated program stream.
//
//	Register A: 729
//	Register B: 0
//	Register C: 0
//
//	Program: 0,1,5,4,3,0
package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/tribit/pkg/bytecode"
)

// Span locates a token in the source. Line and Col are 1-based; End is the
// column just past the token.
type Span struct {
	Line int
	Col  int
	End  int
}

// Input is a parsed program file.
type Input struct {
	Registers bytecode.Registers
	Program   []uint64

	// RegisterSpans locates the A, B and C values.
	RegisterSpans [3]Span
	// ProgramLabel locates the "Program" keyword.
	ProgramLabel Span
	// ProgramSpans locates each value of Program.
	ProgramSpans []Span
}

// Error is a parse or decode error with a source position.
type Error struct {
	Line int
	Col  int
	End  int
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var registerNames = [3]string{"A", "B", "C"}

// scanner walks the source line by line, skipping blank lines.
type scanner struct {
	lines []string
	pos   int // index of the next line
}

func (s *scanner) next() (string, int, bool) {
	for s.pos < len(s.lines) {
		line := strings.TrimRight(s.lines[s.pos], "\r")
		s.pos++
		if strings.TrimSpace(line) != "" {
			return line, s.pos, true
		}
	}
	return "", s.pos, false
}

// Parse parses a program file.
func Parse(src string) (*Input, error) {
	s := &scanner{lines: strings.Split(src, "\n")}
	in := &Input{}

	regs := [3]uint64{}
	for i, name := range registerNames {
		line, lineNo, ok := s.next()
		if !ok {
			return nil, &Error{Line: lineNo, Col: 1, End: 1, Msg: fmt.Sprintf("missing Register %s", name)}
		}
		val, span, err := parseRegister(line, lineNo, name)
		if err != nil {
			return nil, err
		}
		regs[i] = val
		in.RegisterSpans[i] = span
	}
	in.Registers = bytecode.Registers{A: regs[0], B: regs[1], C: regs[2]}

	line, lineNo, ok := s.next()
	if !ok {
		return nil, &Error{Line: lineNo, Col: 1, End: 1, Msg: "missing Program line"}
	}
	if err := parseProgram(in, line, lineNo); err != nil {
		return nil, err
	}

	if extra, extraNo, ok := s.next(); ok {
		col := firstNonSpace(extra)
		return nil, &Error{Line: extraNo, Col: col, End: len(extra) + 1, Msg: "unexpected content after Program line"}
	}

	return in, nil
}

// ParseFile reads and parses a program file.
func ParseFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	in, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

func parseRegister(line string, lineNo int, name string) (uint64, Span, error) {
	prefix := "Register " + name + ":"
	start := firstNonSpace(line) - 1
	if !strings.HasPrefix(line[start:], prefix) {
		return 0, Span{}, &Error{
			Line: lineNo, Col: start + 1, End: len(line) + 1,
			Msg: fmt.Sprintf("expected %q", prefix),
		}
	}

	rest := line[start+len(prefix):]
	valStart := start + len(prefix) + (len(rest) - len(strings.TrimLeft(rest, " \t")))
	text := strings.TrimSpace(rest)
	span := Span{Line: lineNo, Col: valStart + 1, End: valStart + len(text) + 1}
	if text == "" {
		return 0, span, &Error{Line: lineNo, Col: span.Col, End: span.Col, Msg: fmt.Sprintf("missing value for register %s", name)}
	}

	val, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, span, &Error{
			Line: lineNo, Col: span.Col, End: span.End,
			Msg: fmt.Sprintf("register %s: %q is not an unsigned 64-bit integer", name, text),
			Err: err,
		}
	}
	return val, span, nil
}

func parseProgram(in *Input, line string, lineNo int) error {
	const prefix = "Program:"
	start := firstNonSpace(line) - 1
	if !strings.HasPrefix(line[start:], prefix) {
		return &Error{Line: lineNo, Col: start + 1, End: len(line) + 1, Msg: fmt.Sprintf("expected %q", prefix)}
	}
	in.ProgramLabel = Span{Line: lineNo, Col: start + 1, End: start + len("Program") + 1}

	col := start + len(prefix)
	body := line[col:]
	if strings.TrimSpace(body) == "" {
		// An empty program is valid; it halts immediately.
		return nil
	}

	for _, field := range strings.Split(body, ",") {
		trimmed := strings.TrimSpace(field)
		lead := len(field) - len(strings.TrimLeft(field, " \t"))
		span := Span{Line: lineNo, Col: col + lead + 1, End: col + lead + len(trimmed) + 1}
		col += len(field) + 1

		if trimmed == "" {
			return &Error{Line: lineNo, Col: span.Col, End: span.Col, Msg: "empty program value"}
		}
		val, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return &Error{
				Line: lineNo, Col: span.Col, End: span.End,
				Msg: fmt.Sprintf("program value %q is not an unsigned integer", trimmed),
				Err: err,
			}
		}
		in.Program = append(in.Program, val)
		in.ProgramSpans = append(in.ProgramSpans, span)
	}
	return nil
}

func firstNonSpace(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t")) + 1
}

// Decode validates the program stream. A malformed stream is returned as
// an *Error positioned at the offending value, wrapping the
// *bytecode.MalformedProgramError.
func (in *Input) Decode() (*bytecode.Program, error) {
	p, err := bytecode.Decode(in.Program)
	if err == nil {
		return p, nil
	}

	var mpe *bytecode.MalformedProgramError
	if !errors.As(err, &mpe) {
		return nil, err
	}
	span := in.ProgramLabel
	if mpe.Offset >= 0 && mpe.Offset < len(in.ProgramSpans) {
		span = in.ProgramSpans[mpe.Offset]
	}
	return nil, &Error{Line: span.Line, Col: span.Col, End: span.End, Msg: mpe.Error(), Err: mpe}
}

// Load parses and decodes a program file in one step.
func Load(path string) (*Input, *bytecode.Program, error) {
	in, err := ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := in.Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, p, nil
}

// OffsetAt returns the program stream offset of the value at the given
// 1-based line and column, or -1.
func (in *Input) OffsetAt(line, col int) int {
	for i, sp := range in.ProgramSpans {
		if sp.Line == line && col >= sp.Col && col <= sp.End {
			return i
		}
	}
	return -1
}
