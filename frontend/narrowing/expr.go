package narrowing

import (
	"strconv"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
)

// typeOf computes the type of expr under facts. Calls are instantiated
// through the constraint solver, whose diagnostics are reported at loc.
func (a *analyzer) typeOf(expr ir.Expr, facts Facts, loc cfg.Location) types.Type {
	ctx := a.ctx
	switch e := expr.(type) {
	case nil:
		return types.Undefined
	case *ir.Ident:
		if t, ok := a.resolve(e.Name, facts, true); ok {
			return t
		}
		if e.Name == "undefined" {
			return types.Undefined
		}
		a.logger.Debug("unresolved identifier", "name", e.Name)
		return types.Unknown
	case *ir.Property:
		if key, ok := ir.RefKey(e); ok {
			if t, ok := a.resolve(key, facts, true); ok {
				return t
			}
		}
		if t, ok := ctx.Property(a.typeOf(e.X, facts, loc), e.Name); ok {
			return t
		}
		return types.Unknown
	case *ir.Literal:
		return a.literalType(e)
	case *ir.Typeof:
		a.typeOf(e.X, facts, loc)
		names := make([]types.Type, len(types.TypeofNames))
		for i, n := range types.TypeofNames {
			names[i] = ctx.StringLiteral(n)
		}
		return ctx.Union(names...)
	case *ir.Unary:
		operand := a.typeOf(e.X, facts, loc)
		switch e.Op {
		case ir.OpNot:
			return types.Boolean
		case ir.OpNeg:
			if lit, ok := operand.(*types.Literal); ok && lit.Base == types.Number {
				if f, err := strconv.ParseFloat(lit.Value, 64); err == nil {
					return ctx.NumberLiteral(-f)
				}
			}
			if isAll(operand, types.BigInt) {
				return types.BigInt
			}
			return types.Number
		}
		return types.Unknown
	case *ir.Binary:
		return a.binaryType(e, facts, loc)
	case *ir.Conditional:
		a.typeOf(e.Cond, facts, loc)
		guard := cfg.DeriveGuard(e.Cond, a.scope)
		return ctx.Union(
			a.typeOf(e.Then, a.applyEdge(guard, facts, true), loc),
			a.typeOf(e.Else, a.applyEdge(guard, facts, false), loc),
		)
	case *ir.ArrayLit:
		elems := make([]types.Type, len(e.Elems))
		for i, el := range e.Elems {
			elems[i] = a.typeOf(el, facts, loc)
		}
		return ctx.Array(ctx.WidenLiteral(ctx.Union(elems...)))
	case *ir.ObjectLit:
		fields := make([]types.Field, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = types.Field{Name: f.Name, Type: a.typeOf(f.Value, facts, loc)}
		}
		return ctx.Object(fields)
	case *ir.Call:
		return a.callType(e.Callee, e.Args, e.TypeArgs, facts, loc, false)
	case *ir.New:
		return a.callType(e.Callee, e.Args, nil, facts, loc, true)
	}
	return types.Unknown
}

func (a *analyzer) literalType(lit *ir.Literal) types.Type {
	ctx := a.ctx
	switch lit.Kind {
	case ir.LitString:
		return ctx.Literal(types.String, lit.Value)
	case ir.LitNumber:
		if f, err := strconv.ParseFloat(lit.Value, 64); err == nil {
			return ctx.NumberLiteral(f)
		}
		return ctx.Literal(types.Number, lit.Value)
	case ir.LitBoolean:
		return ctx.BooleanLiteral(lit.Value == "true")
	case ir.LitBigInt:
		return ctx.Literal(types.BigInt, lit.Value)
	case ir.LitNull:
		return types.Null
	case ir.LitUndefined:
		return types.Undefined
	}
	return types.Unknown
}

// isAll reports whether every member of t has the base primitive p
func isAll(t types.Type, p *types.Primitive) bool {
	members := types.Members(t)
	for _, m := range members {
		if lit, ok := m.(*types.Literal); ok {
			m = lit.Base
		}
		if m != p {
			return false
		}
	}
	return len(members) > 0
}

func (a *analyzer) binaryType(e *ir.Binary, facts Facts, loc cfg.Location) types.Type {
	ctx := a.ctx
	left := a.typeOf(e.Left, facts, loc)
	switch e.Op {
	case ir.OpAnd:
		guard := cfg.DeriveGuard(e.Left, a.scope)
		right := a.typeOf(e.Right, a.applyEdge(guard, facts, true), loc)
		return ctx.Union(ctx.Filter(left, types.CanBeFalsy), right)
	case ir.OpOr:
		guard := cfg.DeriveGuard(e.Left, a.scope)
		right := a.typeOf(e.Right, a.applyEdge(guard, facts, false), loc)
		return ctx.Union(ctx.Filter(left, types.CanBeTruthy), right)
	}

	right := a.typeOf(e.Right, facts, loc)
	switch e.Op {
	case ir.OpAdd:
		switch {
		case isAll(left, types.String) || isAll(right, types.String):
			return types.String
		case isAll(left, types.Number) && isAll(right, types.Number):
			return types.Number
		case isAll(left, types.BigInt) && isAll(right, types.BigInt):
			return types.BigInt
		}
		return ctx.Union(types.String, types.Number)
	case ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		if isAll(left, types.BigInt) && isAll(right, types.BigInt) {
			return types.BigInt
		}
		return types.Number
	}
	// comparisons, equality, in and instanceof
	return types.Boolean
}

// callType instantiates the signature of callee for args and returns the
// resolved return type
func (a *analyzer) callType(callee ir.Expr, args []ir.Expr, explicit []types.Type, facts Facts, loc cfg.Location, construct bool) types.Type {
	argTypes := make([]types.Type, len(args))
	for i, arg := range args {
		argTypes[i] = a.typeOf(arg, facts, loc)
	}
	calleeType := a.typeOf(callee, facts, loc)
	if calleeType == types.Any {
		return types.Any
	}
	sig, ok := calleeType.(*types.Func)
	if !ok || sig.Construct != construct {
		a.logger.Debug("call of a non-function", "callee", callee, "type", calleeType)
		return types.Unknown
	}
	inst := a.ctx.Instantiate(ir.ExprString(callee), sig, argTypes, explicit)
	for _, d := range inst.Diagnostics {
		a.report(d, loc)
	}
	if sig.Predicate != nil && !sig.Predicate.Asserts {
		return types.Boolean
	}
	return inst.Ret
}

// instantiatePredicate resolves the narrowed type of a predicate or
// assertion call for the given arguments
func (a *analyzer) instantiatePredicate(call *ir.Call, declared types.Type, facts Facts) types.Type {
	sig, ok := a.quietType(call.Callee, facts).(*types.Func)
	if !ok || len(sig.TypeParams) == 0 {
		return declared
	}
	argTypes := make([]types.Type, len(call.Args))
	for i, arg := range call.Args {
		argTypes[i] = a.quietType(arg, facts)
	}
	inst := a.ctx.Instantiate(ir.ExprString(call.Callee), sig, argTypes, call.TypeArgs)
	if inst.Predicate == nil || inst.Predicate.Type == nil {
		return declared
	}
	return inst.Predicate.Type
}

// quietType is typeOf without reporting diagnostics, for expressions
// that are typed again where they are evaluated
func (a *analyzer) quietType(expr ir.Expr, facts Facts) types.Type {
	reporting := a.reporting
	a.reporting = false
	defer func() { a.reporting = reporting }()
	return a.typeOf(expr, facts, cfg.Location{})
}
