package diag

import (
	"fmt"
	"strings"
)

func joinStringers[S fmt.Stringer](s []S) string {
	strs := make([]string, len(s))
	for i, elem := range s {
		strs[i] = elem.String()
	}
	return strings.Join(strs, ", ")
}

type NewConstraintViolation struct {
	Location
	Param      string
	Resolved   fmt.Stringer
	Constraint fmt.Stringer
	stack      []byte
}

func (e NewConstraintViolation) Error() string {
	return fmt.Sprintf("type '%v' resolved for parameter %s does not satisfy its constraint '%v'", e.Resolved, e.Param, e.Constraint)
}
func (e NewConstraintViolation) Code() ErrCode    { return ConstraintViolation }
func (e NewConstraintViolation) getStack() []byte { return e.stack }
func (e NewConstraintViolation) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewConstraintViolation) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewUninferredTypeParameter struct {
	Location
	Param  string
	Callee string
	stack  []byte
}

func (e NewUninferredTypeParameter) Error() string {
	return fmt.Sprintf("could not infer type parameter %s of '%s' from its arguments, and it has no default", e.Param, e.Callee)
}
func (e NewUninferredTypeParameter) Code() ErrCode    { return UninferredTypeParameter }
func (e NewUninferredTypeParameter) getStack() []byte { return e.stack }
func (e NewUninferredTypeParameter) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewUninferredTypeParameter) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewNonExhaustiveMatch struct {
	Location
	Subject string
	// Missing holds the tag values of the unhandled variants, or the
	// spelling of the residual members when they carry no tag
	Missing []string
	stack   []byte
}

func (e NewNonExhaustiveMatch) Error() string {
	return fmt.Sprintf("match on '%s' is not exhaustive: unhandled %s", e.Subject, strings.Join(e.Missing, ", "))
}
func (e NewNonExhaustiveMatch) Code() ErrCode    { return NonExhaustiveMatch }
func (e NewNonExhaustiveMatch) getStack() []byte { return e.stack }
func (e NewNonExhaustiveMatch) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewNonExhaustiveMatch) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewNarrowingDidNotConverge struct {
	Location
	Iterations int
	stack      []byte
}

func (e NewNarrowingDidNotConverge) Error() string {
	return fmt.Sprintf("narrowing did not reach a fixpoint after %d iterations, falling back to declared types", e.Iterations)
}
func (e NewNarrowingDidNotConverge) Code() ErrCode    { return NarrowingDidNotConverge }
func (e NewNarrowingDidNotConverge) getStack() []byte { return e.stack }
func (e NewNarrowingDidNotConverge) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewNarrowingDidNotConverge) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewUnreachableCode struct {
	Location
	stack []byte
}

func (e NewUnreachableCode) Error() string    { return "unreachable code" }
func (e NewUnreachableCode) Code() ErrCode    { return UnreachableCode }
func (e NewUnreachableCode) getStack() []byte { return e.stack }
func (e NewUnreachableCode) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewUnreachableCode) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewInvalidNarrowing struct {
	Location
	Subject  string
	Declared fmt.Stringer
	Reason   string
	stack    []byte
}

func (e NewInvalidNarrowing) Error() string {
	return fmt.Sprintf("guard on '%s' of type '%v' can never hold: %s", e.Subject, e.Declared, e.Reason)
}
func (e NewInvalidNarrowing) Code() ErrCode    { return InvalidNarrowing }
func (e NewInvalidNarrowing) getStack() []byte { return e.stack }
func (e NewInvalidNarrowing) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewInvalidNarrowing) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewAssignmentMismatch struct {
	Location
	Target   string
	Declared fmt.Stringer
	Assigned fmt.Stringer
	stack    []byte
}

func (e NewAssignmentMismatch) Error() string {
	return fmt.Sprintf("type '%v' is not assignable to '%s' of type '%v'", e.Assigned, e.Target, e.Declared)
}
func (e NewAssignmentMismatch) Code() ErrCode    { return AssignmentMismatch }
func (e NewAssignmentMismatch) getStack() []byte { return e.stack }
func (e NewAssignmentMismatch) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewAssignmentMismatch) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewIntersectionConflict struct {
	Location
	Field string
	Types []fmt.Stringer
	stack []byte
}

func (e NewIntersectionConflict) Error() string {
	return fmt.Sprintf("field '%s' has incompatible types %s in intersection and collapses to never", e.Field, joinStringers(e.Types))
}
func (e NewIntersectionConflict) Code() ErrCode    { return IntersectionConflict }
func (e NewIntersectionConflict) getStack() []byte { return e.stack }
func (e NewIntersectionConflict) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewIntersectionConflict) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}

type NewInvalidVariance struct {
	Location
	Definition string
	Param      string
	Declared   string
	Actual     string
	stack      []byte
}

func (e NewInvalidVariance) Error() string {
	return fmt.Sprintf("type parameter %s of %s is declared %s but is used %s", e.Param, e.Definition, e.Declared, e.Actual)
}
func (e NewInvalidVariance) Code() ErrCode    { return InvalidVariance }
func (e NewInvalidVariance) getStack() []byte { return e.stack }
func (e NewInvalidVariance) withStack(stack []byte) Diagnostic {
	e.stack = stack
	return e
}
func (e NewInvalidVariance) withLocation(l Location) Diagnostic {
	e.Location = l
	return e
}
