package bytecode

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Compile-time errors
// ---------------------------------------------------------------------------

// ParseError is the single compile-time error family. Every instance
// carries the source origin and line for diagnostics; parse errors are
// always fatal to the current compilation and are surfaced verbatim.
type ParseError struct {
	Origin  string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Origin, e.Line, e.Message)
}

// AsParseError unwraps err as a ParseError.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Run-time errors
//
// The VM never catches or retries: each of these unwinds the whole call
// stack to the top-level invoker.
// ---------------------------------------------------------------------------

// TypeError reports an operand of the wrong kind, naming both the
// operation and the offending type.
type TypeError struct {
	Op   string // Source-level operation symbol
	Type string // Name of the offending operand's type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: undefined for %s", e.Op, e.Type)
}

// ConversionError reports an attempted conversion the source type does
// not define (blocks define no conversions at all).
type ConversionError struct {
	From string
	To   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("no conversion from %s to %s", e.From, e.To)
}

// DivisionByZeroError reports a zero right operand for `/` or `%`.
// It is raised before any coercion of the right operand is attempted.
type DivisionByZeroError struct {
	Op string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("%s: division by zero", e.Op)
}

// IndexError reports an out-of-bounds index or range for an indexed
// get/set, or an empty operand for head/tail.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d out of bounds for length %d", e.Op, e.Index, e.Len)
}

// LimitError reports a string or list that would exceed the configured
// maximum container length.
type LimitError struct {
	Op   string
	Size int
	Max  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: container of length %d exceeds limit %d", e.Op, e.Size, e.Max)
}

// OverflowError reports integer arithmetic whose result does not fit in
// the inline integer payload.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: integer overflow", e.Op)
}

// UndefinedVariableError reports a read of a variable slot that was
// never assigned.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

// QuitError is the one run-time "error" that represents successful,
// intentional termination. It unwinds the VM immediately, carrying the
// requested exit status.
type QuitError struct {
	Status int
}

func (e *QuitError) Error() string {
	return fmt.Sprintf("quit with status %d", e.Status)
}

// IsQuit checks whether err is an intentional quit and extracts the
// exit status.
func IsQuit(err error) (int, bool) {
	var qe *QuitError
	if errors.As(err, &qe) {
		return qe.Status, true
	}
	return 0, false
}
