// Package ir holds the already-resolved intermediate representation the
// narrowing engine consumes: functions, statements and the expressions guards
// are derived from.
package ir

import (
	"github.com/cottand/narrow/frontend/types"
)

// Program is a set of functions together with the symbol table they refer to
type Program struct {
	// Types maps the names of declared types to their definitions, for
	// display. Types in the IR are already resolved.
	Types map[string]types.Type
	// Globals maps names visible to every function to their types, like the
	// signatures of called functions and constructors
	Globals   map[string]types.Type
	Functions []*Function
}

// Function returns the function named name, if it is part of p
func (p *Program) Function(name string) (*Function, bool) {
	for _, f := range p.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

type Param struct {
	Range
	Name string
	Type types.Type
}

type Function struct {
	Range
	Name       string
	TypeParams []*types.TypeParam
	Params     []Param
	// Result may be nil, meaning void
	Result types.Type
	Body   []Stmt
}

type Stmt interface {
	Positioner
	stmtNode()
}

type Expr interface {
	Positioner
	exprNode()
}

var (
	_ Stmt = (*Declare)(nil)
	_ Stmt = (*Assign)(nil)
	_ Stmt = (*If)(nil)
	_ Stmt = (*Switch)(nil)
	_ Stmt = (*While)(nil)
	_ Stmt = (*Break)(nil)
	_ Stmt = (*Continue)(nil)
	_ Stmt = (*Return)(nil)
	_ Stmt = (*ExprStmt)(nil)
	_ Stmt = (*Throw)(nil)
)

// Declare introduces a local variable. Type may be nil, in which case the
// declared type is the type of Init. Init may be nil.
type Declare struct {
	Range
	Name string
	Type types.Type
	Init Expr
}

// Assign stores Value into Target, which is an *Ident or a *Property
type Assign struct {
	Range
	Target Expr
	Value  Expr
}

type If struct {
	Range
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// Case groups the labels sharing one body. Control falls through to the
// next case when Body does not end in a jump.
type Case struct {
	Range
	Values []Expr
	Body   []Stmt
}

type Switch struct {
	Range
	Discriminant Expr
	Cases        []Case
	// Default is only meaningful when HasDefault is set, so that an empty
	// default clause can be told apart from a missing one
	Default    []Stmt
	HasDefault bool
}

type While struct {
	Range
	Cond Expr
	Body []Stmt
}

type Break struct{ Range }

type Continue struct{ Range }

// Return may have a nil Value
type Return struct {
	Range
	Value Expr
}

type ExprStmt struct {
	Range
	X Expr
}

type Throw struct {
	Range
	Value Expr
}

func (*Declare) stmtNode()  {}
func (*Assign) stmtNode()   {}
func (*If) stmtNode()       {}
func (*Switch) stmtNode()   {}
func (*While) stmtNode()    {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*Return) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
func (*Throw) stmtNode()    {}

var (
	_ Expr = (*Ident)(nil)
	_ Expr = (*Literal)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Unary)(nil)
	_ Expr = (*Typeof)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*New)(nil)
	_ Expr = (*Property)(nil)
	_ Expr = (*Conditional)(nil)
	_ Expr = (*ArrayLit)(nil)
	_ Expr = (*ObjectLit)(nil)
)

type Ident struct {
	Range
	Name string
}

type LitKind uint8

const (
	LitString LitKind = iota + 1
	LitNumber
	LitBoolean
	LitBigInt
	LitNull
	LitUndefined
)

// Literal holds the canonical spelling of a constant: strings are quoted
type Literal struct {
	Range
	Kind  LitKind
	Value string
}

type Op uint8

const (
	OpStrictEq Op = iota + 1
	OpStrictNeq
	OpEq
	OpNeq
	OpAnd
	OpOr
	OpInstanceof
	OpIn
	OpLt
	OpGt
	OpLe
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNot
	OpNeg
)

var opNames = [...]string{
	OpStrictEq:   "===",
	OpStrictNeq:  "!==",
	OpEq:         "==",
	OpNeq:        "!=",
	OpAnd:        "&&",
	OpOr:         "||",
	OpInstanceof: "instanceof",
	OpIn:         "in",
	OpLt:         "<",
	OpGt:         ">",
	OpLe:         "<=",
	OpGe:         ">=",
	OpAdd:        "+",
	OpSub:        "-",
	OpMul:        "*",
	OpDiv:        "/",
	OpMod:        "%",
	OpNot:        "!",
	OpNeg:        "-",
}

func (o Op) String() string { return opNames[o] }

// IsEquality reports whether o compares its operands for (in)equality
func (o Op) IsEquality() bool {
	return o == OpStrictEq || o == OpStrictNeq || o == OpEq || o == OpNeq
}

// Negated reports whether o is one of the inequality operators
func (o Op) Negated() bool { return o == OpStrictNeq || o == OpNeq }

// Strict reports whether o is === or !==
func (o Op) Strict() bool { return o == OpStrictEq || o == OpStrictNeq }

type Binary struct {
	Range
	Op    Op
	Left  Expr
	Right Expr
}

type Unary struct {
	Range
	Op Op
	X  Expr
}

type Typeof struct {
	Range
	X Expr
}

// Call may carry explicit type arguments, which take precedence over inference
type Call struct {
	Range
	Callee   Expr
	Args     []Expr
	TypeArgs []types.Type
}

type New struct {
	Range
	Callee Expr
	Args   []Expr
}

type Property struct {
	Range
	X    Expr
	Name string
}

type Conditional struct {
	Range
	Cond Expr
	Then Expr
	Else Expr
}

type ArrayLit struct {
	Range
	Elems []Expr
}

type ObjectField struct {
	Name  string
	Value Expr
}

type ObjectLit struct {
	Range
	Fields []ObjectField
}

func (*Ident) exprNode()       {}
func (*Literal) exprNode()     {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Typeof) exprNode()      {}
func (*Call) exprNode()        {}
func (*New) exprNode()         {}
func (*Property) exprNode()    {}
func (*Conditional) exprNode() {}
func (*ArrayLit) exprNode()    {}
func (*ObjectLit) exprNode()   {}

// RefKey returns the dotted path of a reference expression, like "s" or
// "container.value". ok is false for expressions whose value is not tracked.
func RefKey(e Expr) (key string, ok bool) {
	switch e := e.(type) {
	case *Ident:
		return e.Name, true
	case *Property:
		parent, ok := RefKey(e.X)
		if !ok {
			return "", false
		}
		return parent + "." + e.Name, true
	}
	return "", false
}
