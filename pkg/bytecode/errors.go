package bytecode

import (
	"errors"
	"fmt"
)

// ErrMalformedProgram matches every *MalformedProgramError via errors.Is.
var ErrMalformedProgram = errors.New("malformed program")

// ErrStepLimit matches every *StepLimitError via errors.Is.
var ErrStepLimit = errors.New("step limit exceeded")

// MalformedProgramError reports a program stream that cannot be decoded.
// Offset is the index into the flat stream of the offending value.
type MalformedProgramError struct {
	Offset int
	Value  uint64
	Reason string
}

func (e *MalformedProgramError) Error() string {
	return fmt.Sprintf("malformed program at offset %d (value %d): %s", e.Offset, e.Value, e.Reason)
}

func (e *MalformedProgramError) Is(target error) bool {
	return target == ErrMalformedProgram
}

// StepLimitError signals that a run executed Limit instructions without
// halting. PC and Registers describe the machine at the moment it stopped.
type StepLimitError struct {
	Limit     int
	PC        int
	Registers Registers
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit of %d exceeded at pc %d (%s)", e.Limit, e.PC, e.Registers)
}

func (e *StepLimitError) Is(target error) bool {
	return target == ErrStepLimit
}

// IsStepLimit checks if an error is a step limit failure.
func IsStepLimit(err error) (*StepLimitError, bool) {
	var sle *StepLimitError
	if errors.As(err, &sle) {
		return sle, true
	}
	return nil, false
}
