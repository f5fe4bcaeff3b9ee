package irload

import (
	"strconv"
	"text/scanner"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
)

// Precedence levels of expression operators
const (
	_ int = iota
	precLowest
	precTernary // ?:
	precOr      // ||
	precAnd     // &&
	precEquals  // ==, !=, ===, !==
	precCompare // <, >, <=, >=, in, instanceof
	precSum     // + or -
	precProduct // * or / or %
	precPrefix  // -X or !X or typeof X
	precCall    // f(X)
	precMember  // x.y or x[y]
)

var precedences = map[string]int{
	"?":          precTernary,
	"||":         precOr,
	"&&":         precAnd,
	"===":        precEquals,
	"!==":        precEquals,
	"==":         precEquals,
	"!=":         precEquals,
	"<":          precCompare,
	">":          precCompare,
	"<=":         precCompare,
	">=":         precCompare,
	"in":         precCompare,
	"instanceof": precCompare,
	"+":          precSum,
	"-":          precSum,
	"*":          precProduct,
	"/":          precProduct,
	"%":          precProduct,
	"(":          precCall,
	".":          precMember,
	"[":          precMember,
}

var binaryOps = map[string]ir.Op{
	"===":        ir.OpStrictEq,
	"!==":        ir.OpStrictNeq,
	"==":         ir.OpEq,
	"!=":         ir.OpNeq,
	"&&":         ir.OpAnd,
	"||":         ir.OpOr,
	"instanceof": ir.OpInstanceof,
	"in":         ir.OpIn,
	"<":          ir.OpLt,
	">":          ir.OpGt,
	"<=":         ir.OpLe,
	">=":         ir.OpGe,
	"+":          ir.OpAdd,
	"-":          ir.OpSub,
	"*":          ir.OpMul,
	"/":          ir.OpDiv,
	"%":          ir.OpMod,
}

func (p *parser) peekPrecedence() int {
	t := p.peek()
	if t.kind == scanner.String || t.kind == scanner.RawString {
		return 0
	}
	return precedences[t.text]
}

func (p *parser) parseExpr(precedence int) ir.Expr {
	left := p.parsePrefix()
	for p.err == nil && precedence < p.peekPrecedence() {
		left = p.parseInfix(left)
	}
	return left
}

func numberLiteral(at ir.Range, f float64) *ir.Literal {
	return &ir.Literal{Range: at, Kind: ir.LitNumber, Value: strconv.FormatFloat(f, 'g', -1, 64)}
}

func (p *parser) parsePrefix() ir.Expr {
	t := p.next()
	switch {
	case t.kind == scanner.String || t.kind == scanner.RawString:
		return &ir.Literal{Range: t.pos, Kind: ir.LitString, Value: strconv.Quote(unquote(t))}
	case t.kind == scanner.Int || t.kind == scanner.Float:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			p.fail(t, "invalid number %s", t)
		}
		return numberLiteral(t.pos, f)
	case t.kind == tokBigInt:
		return &ir.Literal{Range: t.pos, Kind: ir.LitBigInt, Value: t.text}
	case t.is("("):
		inner := p.parseExpr(precLowest)
		p.expect(")")
		return inner
	case t.is("["):
		return &ir.ArrayLit{Range: t.pos, Elems: p.parseList("]")}
	case t.is("{"):
		return p.parseObjectLit(t)
	case t.is("!"):
		return &ir.Unary{Range: t.pos, Op: ir.OpNot, X: p.parseExpr(precPrefix)}
	case t.is("-"):
		x := p.parseExpr(precPrefix)
		if lit, ok := x.(*ir.Literal); ok && lit.Kind == ir.LitNumber {
			f, _ := strconv.ParseFloat(lit.Value, 64)
			return numberLiteral(t.pos, -f)
		}
		return &ir.Unary{Range: t.pos, Op: ir.OpNeg, X: x}
	case t.kind == scanner.Ident:
		return p.parseName(t)
	}
	p.fail(t, "expected an expression, found %s", t)
	return &ir.Ident{Range: t.pos, Name: "_"}
}

func (p *parser) parseName(t token) ir.Expr {
	switch t.text {
	case "true", "false":
		return &ir.Literal{Range: t.pos, Kind: ir.LitBoolean, Value: t.text}
	case "null":
		return &ir.Literal{Range: t.pos, Kind: ir.LitNull, Value: "null"}
	case "undefined":
		return &ir.Literal{Range: t.pos, Kind: ir.LitUndefined, Value: "undefined"}
	case "typeof":
		return &ir.Typeof{Range: t.pos, X: p.parseExpr(precPrefix)}
	case "new":
		// the callee stops before the argument list
		callee := p.parseExpr(precCall)
		var args []ir.Expr
		if p.accept("(") {
			args = p.parseList(")")
		}
		return &ir.New{Range: t.pos, Callee: callee, Args: args}
	}
	return &ir.Ident{Range: t.pos, Name: t.text}
}

// parseList reads comma separated expressions up to the closing token end
func (p *parser) parseList(end string) []ir.Expr {
	var exprs []ir.Expr
	for p.err == nil && !p.peek().is(end) {
		exprs = append(exprs, p.parseExpr(precLowest))
		if !p.accept(",") {
			break
		}
	}
	p.expect(end)
	return exprs
}

func (p *parser) parseObjectLit(open token) ir.Expr {
	lit := &ir.ObjectLit{Range: open.pos}
	for p.err == nil && !p.peek().is("}") {
		at := p.peek()
		name := p.propertyName()
		var value ir.Expr
		if p.accept(":") {
			value = p.parseExpr(precLowest)
		} else {
			value = &ir.Ident{Range: at.pos, Name: name}
		}
		lit.Fields = append(lit.Fields, ir.ObjectField{Name: name, Value: value})
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return lit
}

func (p *parser) parseInfix(left ir.Expr) ir.Expr {
	at := ir.RangeOf(left)
	t := p.next()
	switch {
	case t.is("?"):
		then := p.parseExpr(precLowest)
		p.expect(":")
		return &ir.Conditional{Range: at, Cond: left, Then: then, Else: p.parseExpr(precLowest)}
	case t.is("("):
		return &ir.Call{Range: at, Callee: left, Args: p.parseList(")")}
	case t.is("."):
		return &ir.Property{Range: at, X: left, Name: p.expectIdent()}
	case t.is("["):
		key := p.next()
		var name string
		switch key.kind {
		case scanner.String, scanner.RawString:
			name = unquote(key)
		case scanner.Int:
			name = key.text
		default:
			p.fail(key, "only constant indexes are supported, found %s", key)
		}
		p.expect("]")
		return &ir.Property{Range: at, X: left, Name: name}
	case t.is("<"):
		if typeArgs, ok := p.tryTypeArgs(); ok {
			p.expect("(")
			return &ir.Call{Range: at, Callee: left, Args: p.parseList(")"), TypeArgs: typeArgs}
		}
	}
	op, ok := binaryOps[t.text]
	if !ok {
		p.fail(t, "unexpected %s", t)
		return left
	}
	return &ir.Binary{Range: at, Op: op, Left: left, Right: p.parseExpr(precedences[t.text])}
}

// tryTypeArgs reads the explicit type arguments of a call, like in
// `make<number>()`, just after the opening '<'. When the tokens cannot be
// type arguments, it consumes nothing and the '<' is a comparison.
func (p *parser) tryTypeArgs() ([]types.Type, bool) {
	start, prevErr := p.pos, p.err
	var args []types.Type
	for p.err == nil {
		args = append(args, p.parseType())
		if !p.accept(",") {
			break
		}
	}
	if p.err == nil && p.accept(">") && p.peek().is("(") {
		return args, true
	}
	p.pos, p.err = start, prevErr
	return nil, false
}
