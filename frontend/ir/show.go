package ir

import (
	"strings"
)

func ExprString(expr Expr) string {
	ctx := newShowContext()
	ctx.showExprWalker(expr, 0)
	return ctx.String()
}

// StmtString renders the head of a statement on one line, without nested bodies
func StmtString(stmt Stmt) string {
	ctx := newShowContext()
	ctx.showStmtHead(stmt)
	return ctx.String()
}

type showContext struct {
	*strings.Builder
}

func newShowContext() *showContext {
	return &showContext{Builder: &strings.Builder{}}
}

func precedence(op Op) int16 {
	switch op {
	case OpOr:
		return 2
	case OpAnd:
		return 3
	case OpEq, OpNeq, OpStrictEq, OpStrictNeq:
		return 5
	case OpLt, OpGt, OpLe, OpGe, OpIn, OpInstanceof:
		return 6
	case OpAdd, OpSub:
		return 8
	default:
		return 9
	}
}

// showExprWalker prints to ctx
//
// outerPrecedence is the precedence of the enclosing operator:
// 0 can be shown on its own, conditionals are 1, unary operators are 12
func (ctx *showContext) showExprWalker(expr Expr, outerPrecedence int16) {
	if expr == nil {
		ctx.WriteString("nil")
		return
	}
	switch expr := expr.(type) {
	case *Ident:
		ctx.WriteString(expr.Name)
	case *Literal:
		ctx.WriteString(expr.Value)
	case *Property:
		ctx.showExprWalker(expr.X, 13)
		ctx.WriteString(".")
		ctx.WriteString(expr.Name)
	case *Call:
		ctx.showExprWalker(expr.Callee, 13)
		if len(expr.TypeArgs) > 0 {
			ctx.WriteString("<")
			for i, t := range expr.TypeArgs {
				if i > 0 {
					ctx.WriteString(", ")
				}
				ctx.WriteString(t.String())
			}
			ctx.WriteString(">")
		}
		ctx.showArgs(expr.Args)
	case *New:
		ctx.WriteString("new ")
		ctx.showExprWalker(expr.Callee, 13)
		ctx.showArgs(expr.Args)
	case *Typeof:
		ctx.wrapIf(outerPrecedence > 12, func() {
			ctx.WriteString("typeof ")
			ctx.showExprWalker(expr.X, 12)
		})
	case *Unary:
		ctx.wrapIf(outerPrecedence > 12, func() {
			ctx.WriteString(expr.Op.String())
			ctx.showExprWalker(expr.X, 12)
		})
	case *Binary:
		prec := precedence(expr.Op)
		ctx.wrapIf(outerPrecedence > prec, func() {
			ctx.showExprWalker(expr.Left, prec)
			ctx.WriteString(" " + expr.Op.String() + " ")
			ctx.showExprWalker(expr.Right, prec+1)
		})
	case *Conditional:
		ctx.wrapIf(outerPrecedence > 1, func() {
			ctx.showExprWalker(expr.Cond, 2)
			ctx.WriteString(" ? ")
			ctx.showExprWalker(expr.Then, 1)
			ctx.WriteString(" : ")
			ctx.showExprWalker(expr.Else, 1)
		})
	case *ArrayLit:
		ctx.WriteString("[")
		for i, e := range expr.Elems {
			if i > 0 {
				ctx.WriteString(", ")
			}
			ctx.showExprWalker(e, 0)
		}
		ctx.WriteString("]")
	case *ObjectLit:
		if len(expr.Fields) == 0 {
			ctx.WriteString("{}")
			return
		}
		ctx.WriteString("{ ")
		for i, f := range expr.Fields {
			if i > 0 {
				ctx.WriteString(", ")
			}
			ctx.WriteString(f.Name + ": ")
			ctx.showExprWalker(f.Value, 0)
		}
		ctx.WriteString(" }")
	}
}

func (ctx *showContext) showArgs(args []Expr) {
	ctx.WriteString("(")
	for i, arg := range args {
		if i > 0 {
			ctx.WriteString(", ")
		}
		ctx.showExprWalker(arg, 0)
	}
	ctx.WriteString(")")
}

func (ctx *showContext) wrapIf(cond bool, f func()) {
	if cond {
		ctx.WriteString("(")
	}
	f()
	if cond {
		ctx.WriteString(")")
	}
}

func (ctx *showContext) showStmtHead(stmt Stmt) {
	switch stmt := stmt.(type) {
	case *Declare:
		ctx.WriteString("let " + stmt.Name)
		if stmt.Type != nil {
			ctx.WriteString(": " + stmt.Type.String())
		}
		if stmt.Init != nil {
			ctx.WriteString(" = ")
			ctx.showExprWalker(stmt.Init, 0)
		}
	case *Assign:
		ctx.showExprWalker(stmt.Target, 0)
		ctx.WriteString(" = ")
		ctx.showExprWalker(stmt.Value, 0)
	case *If:
		ctx.WriteString("if (")
		ctx.showExprWalker(stmt.Cond, 0)
		ctx.WriteString(")")
	case *Switch:
		ctx.WriteString("switch (")
		ctx.showExprWalker(stmt.Discriminant, 0)
		ctx.WriteString(")")
	case *While:
		ctx.WriteString("while (")
		ctx.showExprWalker(stmt.Cond, 0)
		ctx.WriteString(")")
	case *Break:
		ctx.WriteString("break")
	case *Continue:
		ctx.WriteString("continue")
	case *Return:
		ctx.WriteString("return")
		if stmt.Value != nil {
			ctx.WriteString(" ")
			ctx.showExprWalker(stmt.Value, 0)
		}
	case *ExprStmt:
		ctx.showExprWalker(stmt.X, 0)
	case *Throw:
		ctx.WriteString("throw ")
		ctx.showExprWalker(stmt.Value, 0)
	}
}
