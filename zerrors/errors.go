package zerrors

import (
	"errors"
	"strings"
)

// Story file / memory (M) errors
var (
	ErrInvalidStoryFile    = errors.New("M1|InvalidStoryFile: Story blob is truncated, has an unsupported version byte, or an inconsistent static-memory base.")
	ErrWriteToStaticMemory = errors.New("M2|WriteToStaticMemory: Byte write at or above the static-memory boundary.")
	ErrAddressOutOfRange   = errors.New("M3|AddressOutOfRange: Read or write outside the story image.")
)

// Decoder (D) errors
var (
	ErrInvalidAbbreviationIndex = errors.New("D1|InvalidAbbreviationIndex: Abbreviation index outside the 96-entry table.")
	ErrNestedAbbreviation       = errors.New("D2|NestedAbbreviation: Abbreviation text contains a further abbreviation code.")
	ErrInvalidDefaultProperty   = errors.New("D3|InvalidDefaultProperty: Default-property number outside 1..31.")
	ErrInvalidObject            = errors.New("D4|InvalidObject: Object number zero or past the end of the object table.")
	ErrInvalidProperty          = errors.New("D5|InvalidProperty: Property missing, or its length is not 1 or 2 bytes.")
	ErrIllegalInstruction       = errors.New("D6|IllegalInstruction: Opcode slot decodes as illegal, or the executor does not implement it.")
	ErrBadOperandShape          = errors.New("D7|BadOperandShape: Operand count or operand kind does not fit the opcode.")
)

// Interpreter (I) errors
var (
	ErrInvalidLocal       = errors.New("I1|InvalidLocal: Local variable index outside 1..15 or not present in the frame.")
	ErrInvalidGlobal      = errors.New("I2|InvalidGlobal: Global variable number outside 16..255.")
	ErrTooManyLocals      = errors.New("I3|TooManyLocals: Routine header claims more than 15 locals.")
	ErrDivideByZero       = errors.New("I4|DivideByZero: Division or modulo by zero.")
	ErrStackUnderflow     = errors.New("I5|StackUnderflow: Pop from an empty evaluation stack.")
	ErrNotRunning         = errors.New("I6|NotRunning: Step called while the interpreter is not in the running state.")
	ErrNotWaitingForInput = errors.New("I7|NotWaitingForInput: Input supplied while the interpreter is not waiting for it.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	nameDesc := parts[1]
	nameParts := strings.SplitN(nameDesc, ":", 2)
	if len(nameParts) < 1 {
		return errStr
	}
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}
