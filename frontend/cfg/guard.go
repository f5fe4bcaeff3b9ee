package cfg

import (
	"fmt"
	"strconv"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
)

// Scope resolves the names a function refers to, so that the builder can
// recognise calls to type predicates and assertion functions
type Scope interface {
	Lookup(name string) (types.Type, bool)
}

// MapScope is a Scope backed by a map
type MapScope map[string]types.Type

func (s MapScope) Lookup(name string) (types.Type, bool) {
	t, ok := s[name]
	return t, ok
}

// Ref is a reference whose flow type the engine tracks: an identifier or a
// property path like container.value
type Ref struct {
	Key  string
	Expr ir.Expr
}

func (r Ref) String() string { return r.Key }

func refOf(e ir.Expr) (Ref, bool) {
	key, ok := ir.RefKey(e)
	return Ref{Key: key, Expr: e}, ok
}

// Guard is a predicate attached to the edges of a branch. The then edge
// of a branch is taken when the guard holds. Guards are immutable.
type Guard interface {
	fmt.Stringer
	// Negated reports whether the guard holds when its check fails,
	// as for `!==`
	Negated() bool
	negate() Guard
}

var (
	_ Guard = TypeofCheck{}
	_ Guard = InstanceofCheck{}
	_ Guard = InCheck{}
	_ Guard = Equality{}
	_ Guard = Truthiness{}
	_ Guard = DiscriminantEquals{}
	_ Guard = PredicateCall{}
	_ Guard = AssertionCall{}
)

// Negate returns the guard holding exactly when g does not
func Negate(g Guard) Guard {
	if g == nil {
		return nil
	}
	return g.negate()
}

func not(neg bool) string {
	if neg {
		return "!"
	}
	return ""
}

type TypeofCheck struct {
	Ref      Ref
	TypeName string
	Neg      bool
}

func (g TypeofCheck) Negated() bool { return g.Neg }
func (g TypeofCheck) negate() Guard { g.Neg = !g.Neg; return g }
func (g TypeofCheck) String() string {
	return fmt.Sprintf("%stypeof(%s, %q)", not(g.Neg), g.Ref, g.TypeName)
}

type InstanceofCheck struct {
	Ref  Ref
	Ctor ir.Expr
	Neg  bool
}

func (g InstanceofCheck) Negated() bool { return g.Neg }
func (g InstanceofCheck) negate() Guard { g.Neg = !g.Neg; return g }
func (g InstanceofCheck) String() string {
	return fmt.Sprintf("%sinstanceof(%s, %s)", not(g.Neg), g.Ref, ir.ExprString(g.Ctor))
}

type InCheck struct {
	Ref      Ref
	Property string
	Neg      bool
}

func (g InCheck) Negated() bool { return g.Neg }
func (g InCheck) negate() Guard { g.Neg = !g.Neg; return g }
func (g InCheck) String() string {
	return fmt.Sprintf("%sin(%s, %q)", not(g.Neg), g.Ref, g.Property)
}

// Operand is one side of an equality. Ref is only set when the side is a
// tracked reference.
type Operand struct {
	Expr  ir.Expr
	Ref   Ref
	IsRef bool
}

type Equality struct {
	Left, Right Operand
	Strict      bool
	Neg         bool
}

func (g Equality) Negated() bool { return g.Neg }
func (g Equality) negate() Guard { g.Neg = !g.Neg; return g }
func (g Equality) String() string {
	op := "=="
	if g.Strict {
		op = "==="
	}
	return fmt.Sprintf("%seq(%s %s %s)", not(g.Neg), ir.ExprString(g.Left.Expr), op, ir.ExprString(g.Right.Expr))
}

type Truthiness struct {
	Ref Ref
	Neg bool
}

func (g Truthiness) Negated() bool { return g.Neg }
func (g Truthiness) negate() Guard { g.Neg = !g.Neg; return g }
func (g Truthiness) String() string {
	return fmt.Sprintf("%struthy(%s)", not(g.Neg), g.Ref)
}

// DiscriminantEquals compares the tag field of an object reference to a literal,
// as in `s.kind === "circle"`
type DiscriminantEquals struct {
	Ref     Ref
	Field   string
	Literal *ir.Literal
	Strict  bool
	Neg     bool
}

// FieldRef is the reference to the discriminant field itself
func (g DiscriminantEquals) FieldRef() Ref {
	return Ref{Key: g.Ref.Key + "." + g.Field, Expr: &ir.Property{X: g.Ref.Expr, Name: g.Field}}
}

func (g DiscriminantEquals) Negated() bool { return g.Neg }
func (g DiscriminantEquals) negate() Guard { g.Neg = !g.Neg; return g }
func (g DiscriminantEquals) String() string {
	return fmt.Sprintf("%stag(%s.%s, %s)", not(g.Neg), g.Ref, g.Field, g.Literal.Value)
}

// PredicateCall is a call to a type predicate function like `isFish(pet)`.
// Narrowed is the declared predicate type, before instantiating generic callees.
type PredicateCall struct {
	Call     *ir.Call
	ArgIndex int
	Ref      Ref
	Narrowed types.Type
	Neg      bool
}

func (g PredicateCall) Negated() bool { return g.Neg }
func (g PredicateCall) negate() Guard { g.Neg = !g.Neg; return g }
func (g PredicateCall) String() string {
	return fmt.Sprintf("%spredicate(%s, %v)", not(g.Neg), g.Ref, g.Narrowed)
}

// AssertionCall is a statement calling an assertion function. It narrows
// the flow from the call onwards instead of creating a branch.
//
// For `asserts x is T` signatures Ref and Narrowed are set. For
// `asserts condition` signatures Cond holds the guard derived from the
// argument, and is nil when nothing can be learnt from it.
type AssertionCall struct {
	Call     *ir.Call
	ArgIndex int
	Ref      Ref
	Narrowed types.Type
	Cond     Guard
}

func (g AssertionCall) Negated() bool { return false }
func (g AssertionCall) negate() Guard { return g }
func (g AssertionCall) String() string {
	if g.Narrowed == nil {
		return fmt.Sprintf("assert(%v)", g.Cond)
	}
	return fmt.Sprintf("assert(%s, %v)", g.Ref, g.Narrowed)
}

// DeriveGuard computes the guard a condition expression establishes.
// It returns nil when the condition gives no information about any reference.
func DeriveGuard(cond ir.Expr, scope Scope) Guard {
	switch cond := cond.(type) {
	case *ir.Unary:
		if cond.Op == ir.OpNot {
			return Negate(DeriveGuard(cond.X, scope))
		}
	case *ir.Binary:
		switch {
		case cond.Op.IsEquality():
			return deriveEquality(cond)
		case cond.Op == ir.OpInstanceof:
			if ref, ok := refOf(cond.Left); ok {
				return InstanceofCheck{Ref: ref, Ctor: cond.Right}
			}
		case cond.Op == ir.OpIn:
			lit, isLit := cond.Left.(*ir.Literal)
			ref, ok := refOf(cond.Right)
			if isLit && ok && lit.Kind == ir.LitString {
				return InCheck{Ref: ref, Property: unquote(lit.Value)}
			}
		}
	case *ir.Call:
		pred, ok := predicateOf(cond, scope)
		if !ok || pred.Asserts || pred.Param >= len(cond.Args) {
			return nil
		}
		if ref, ok := refOf(cond.Args[pred.Param]); ok {
			return PredicateCall{Call: cond, ArgIndex: pred.Param, Ref: ref, Narrowed: pred.Type}
		}
	case *ir.Ident, *ir.Property:
		ref, _ := refOf(cond)
		if ref.Key != "" {
			return Truthiness{Ref: ref}
		}
	}
	return nil
}

func deriveEquality(cond *ir.Binary) Guard {
	neg := cond.Op.Negated()
	strict := cond.Op.Strict()
	left, right := cond.Left, cond.Right

	// typeof x === "string", in either order
	if _, ok := right.(*ir.Typeof); ok {
		left, right = right, left
	}
	if tof, ok := left.(*ir.Typeof); ok {
		lit, isLit := right.(*ir.Literal)
		ref, isRef := refOf(tof.X)
		if isLit && isRef && lit.Kind == ir.LitString {
			return TypeofCheck{Ref: ref, TypeName: unquote(lit.Value), Neg: neg}
		}
		return nil
	}

	// s.kind === "circle", in either order
	if _, ok := left.(*ir.Literal); ok {
		left, right = right, left
	}
	if prop, ok := left.(*ir.Property); ok {
		lit, isLit := right.(*ir.Literal)
		obj, isRef := refOf(prop.X)
		if isLit && isRef && lit.Kind != ir.LitNull && lit.Kind != ir.LitUndefined {
			return DiscriminantEquals{Ref: obj, Field: prop.Name, Literal: lit, Strict: strict, Neg: neg}
		}
	}

	l, lok := refOf(left)
	r, rok := refOf(right)
	if !lok && !rok {
		return nil
	}
	return Equality{
		Left:   Operand{Expr: left, Ref: l, IsRef: lok},
		Right:  Operand{Expr: right, Ref: r, IsRef: rok},
		Strict: strict,
		Neg:    neg,
	}
}

// predicateOf returns the predicate of the function called by call, if its
// callee resolves in scope to a signature with one
func predicateOf(call *ir.Call, scope Scope) (*types.Predicate, bool) {
	ident, ok := call.Callee.(*ir.Ident)
	if !ok || scope == nil {
		return nil, false
	}
	t, ok := scope.Lookup(ident.Name)
	if !ok {
		return nil, false
	}
	fn, ok := t.(*types.Func)
	if !ok || fn.Predicate == nil {
		return nil, false
	}
	return fn.Predicate, true
}

func unquote(s string) string {
	if unq, err := strconv.Unquote(s); err == nil {
		return unq
	}
	return s
}
