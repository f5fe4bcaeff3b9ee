// Package diag holds the diagnostics reported while narrowing and checking functions.
//
// Diagnostics are values: analyses keep going after reporting one.
package diag

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// DebugErrorPrinting makes diagnostics include the frame that reported them when printed
var DebugErrorPrinting = false

type ErrCode int

const (
	None ErrCode = iota
	ConstraintViolation
	UninferredTypeParameter
	NonExhaustiveMatch
	NarrowingDidNotConverge
	UnreachableCode
	InvalidNarrowing
	AssignmentMismatch
	IntersectionConflict
	InvalidVariance
)

var codeNames = [...]string{
	None:                    "None",
	ConstraintViolation:     "ConstraintViolation",
	UninferredTypeParameter: "UninferredTypeParameter",
	NonExhaustiveMatch:      "NonExhaustiveMatch",
	NarrowingDidNotConverge: "NarrowingDidNotConverge",
	UnreachableCode:         "UnreachableCode",
	InvalidNarrowing:        "InvalidNarrowing",
	AssignmentMismatch:      "AssignmentMismatch",
	IntersectionConflict:    "IntersectionConflict",
	InvalidVariance:         "InvalidVariance",
}

func (c ErrCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ErrCode(%d)", int(c))
}

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

func (c ErrCode) Severity() Severity {
	if c == UnreachableCode {
		return SeverityWarning
	}
	return SeverityError
}

// Location points at a statement of a function's flow graph.
// Index equal to the number of statements in the block denotes its terminator.
// Block is negative for diagnostics that are not tied to a statement, like
// those reported while constructing types.
type Location struct {
	Function string
	Block    int
	Index    int
}

// Unlocated is the Location of diagnostics reported outside any function
var Unlocated = Location{Block: -1}

func (l Location) At() Location { return l }

func (l Location) String() string {
	switch {
	case l.Block < 0 && l.Function == "":
		return "<types>"
	case l.Block < 0:
		return l.Function
	default:
		return fmt.Sprintf("%s:b%d#%d", l.Function, l.Block, l.Index)
	}
}

type Diagnostic interface {
	Error() string
	Code() ErrCode
	At() Location

	withLocation(Location) Diagnostic
	withStack([]byte) Diagnostic
	getStack() []byte
}

func FormatWithCode(e Diagnostic) string {
	if DebugErrorPrinting && e.getStack() != nil {
		lines := strings.Split(string(e.getStack()), "\n")
		frame := ""
		if len(lines) > 6 {
			frame = strings.TrimSpace(lines[6])
		}
		return fmt.Sprintf("%s:(N%03d) %s", frame, e.Code(), e.Error())
	}
	return fmt.Sprintf("(N%03d) %s", e.Code(), e.Error())
}

// Format renders a diagnostic on one line, prefixed by its severity and location
func Format(e Diagnostic) string {
	return fmt.Sprintf("%s %s: %s", e.At(), e.Code().Severity(), FormatWithCode(e))
}

func New[E Diagnostic](err E) Diagnostic {
	return err.withStack(debug.Stack())
}

// Locate returns a copy of d reported at loc
func Locate(d Diagnostic, loc Location) Diagnostic {
	return d.withLocation(loc)
}
