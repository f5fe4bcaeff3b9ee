package irload

import (
	"fmt"
	"maps"
	"strconv"
	"text/scanner"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// parser reads types and expressions from the tokens of one YAML value.
//
// Like a Pratt parser without a separate error list, it keeps the first
// error in err and returns placeholders afterwards, so callers check err once
// they are done.
type parser struct {
	env    *typeEnv
	tokens []token
	pos    int
	// params are the type parameters in scope
	params map[string]*types.TypeParam
	err    error
}

func newParser(env *typeEnv, src string, at ir.Range, params map[string]*types.TypeParam) (*parser, error) {
	tokens, err := tokenize(src, at)
	if err != nil {
		return nil, err
	}
	return &parser{env: env, tokens: tokens, params: params}, nil
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	return p.tokens[min(p.pos+n, len(p.tokens)-1)]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != scanner.EOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if p.peek().is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) token {
	t := p.next()
	if !t.is(text) {
		p.fail(t, "expected '%s', found %s", text, t)
	}
	return t
}

func (p *parser) expectIdent() string {
	t := p.next()
	if t.kind != scanner.Ident {
		p.fail(t, "expected a name, found %s", t)
		return "_"
	}
	return t.text
}

// fail records the first error found
func (p *parser) fail(at token, format string, args ...any) {
	if p.err == nil {
		p.err = errors.Errorf("%s: %s", at.pos, fmt.Sprintf(format, args...))
	}
}

// finish checks every token was consumed
func (p *parser) finish() error {
	if t := p.peek(); p.err == nil && t.kind != scanner.EOF {
		p.fail(t, "unexpected %s", t)
	}
	return p.err
}

// unquote returns the NFC normalised value of a string token, so that
// literals spelled with different code point sequences are the same type
func unquote(t token) string {
	s, err := strconv.Unquote(t.text)
	if err != nil {
		s = t.text[1 : len(t.text)-1]
	}
	return norm.NFC.String(s)
}

// Types

func (p *parser) parseType() types.Type {
	ctx := p.env.ctx
	p.accept("|")
	first := p.parseIntersectionType()
	if !p.peek().is("|") {
		return first
	}
	members := []types.Type{first}
	for p.accept("|") {
		members = append(members, p.parseIntersectionType())
	}
	return ctx.Union(members...)
}

func (p *parser) parseIntersectionType() types.Type {
	first := p.parsePostfixType()
	if !p.peek().is("&") {
		return first
	}
	members := []types.Type{first}
	for p.accept("&") {
		members = append(members, p.parsePostfixType())
	}
	return p.env.ctx.Intersection(members...)
}

func (p *parser) parsePostfixType() types.Type {
	ctx := p.env.ctx
	if p.peek().is("readonly") {
		at := p.next()
		switch t := p.parsePostfixType().(type) {
		case *types.Array:
			return ctx.ReadonlyArray(t.Elem)
		case *types.Tuple:
			return ctx.Tuple(t.Elems, t.Rest, true)
		default:
			p.fail(at, "readonly only applies to arrays and tuples")
			return t
		}
	}
	t := p.parsePrimaryType()
	for p.peek().is("[") && p.peekAt(1).is("]") {
		p.next()
		p.next()
		t = ctx.Array(t)
	}
	return t
}

func (p *parser) parsePrimaryType() types.Type {
	ctx := p.env.ctx
	t := p.peek()
	switch {
	case t.kind == scanner.String || t.kind == scanner.RawString:
		p.next()
		return ctx.StringLiteral(unquote(t))
	case t.kind == scanner.Int || t.kind == scanner.Float:
		p.next()
		return p.numberType(t, false)
	case t.is("-"):
		p.next()
		return p.numberType(p.next(), true)
	case t.kind == tokBigInt:
		p.next()
		return ctx.Literal(types.BigInt, t.text)
	case t.is("{"):
		return p.parseObjectType()
	case t.is("["):
		return p.parseTupleType()
	case t.is("(") && p.startsParams():
		return p.parseFuncType(false)
	case t.is("("):
		p.next()
		inner := p.parseType()
		p.expect(")")
		return inner
	case t.is("<"):
		return p.parseFuncType(false)
	case t.is("new"):
		p.next()
		return p.parseFuncType(true)
	case t.kind == scanner.Ident:
		p.next()
		return p.resolveName(t)
	}
	p.next()
	p.fail(t, "expected a type, found %s", t)
	return types.Unknown
}

func (p *parser) numberType(t token, negative bool) types.Type {
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil || (t.kind != scanner.Int && t.kind != scanner.Float) {
		p.fail(t, "expected a number, found %s", t)
		return types.Number
	}
	if negative {
		f = -f
	}
	return p.env.ctx.NumberLiteral(f)
}

// startsParams tells a parameter list apart from a parenthesized type
func (p *parser) startsParams() bool {
	first, second := p.peekAt(1), p.peekAt(2)
	switch {
	case first.is(")"), first.is("..."):
		return true
	case first.kind == scanner.Ident:
		return second.is(":") || second.is("?") || second.is(",")
	}
	return false
}

func (p *parser) resolveName(t token) types.Type {
	ctx := p.env.ctx
	switch t.text {
	case "never":
		return types.Never
	case "unknown":
		return types.Unknown
	case "any":
		return types.Any
	case "void":
		return types.Void
	case "true", "false":
		return ctx.BooleanLiteral(t.text == "true")
	}
	if prim, ok := types.PrimitiveByName(t.text); ok {
		return prim
	}
	if tp, ok := p.params[t.text]; ok {
		return tp
	}

	var args []types.Type
	if p.accept("<") {
		args = append(args, p.parseType())
		for p.accept(",") {
			args = append(args, p.parseType())
		}
		p.expect(">")
	}
	resolved, err := p.env.resolve(t.text, args)
	if err != nil {
		p.fail(t, "%v", err)
		return types.Unknown
	}
	return resolved
}

func (p *parser) parseObjectType() types.Type {
	p.expect("{")
	var fields []types.Field
	var index []types.IndexSignature
	for p.err == nil && !p.peek().is("}") {
		if p.accept("[") {
			p.expectIdent()
			p.expect(":")
			key := p.parseType()
			p.expect("]")
			p.expect(":")
			index = append(index, types.IndexSignature{Key: key, Value: p.parseType()})
		} else {
			var field types.Field
			if p.peek().is("readonly") && !p.peekAt(1).is(":") && !p.peekAt(1).is("?") {
				p.next()
				field.Readonly = true
			}
			field.Name = p.propertyName()
			field.Optional = p.accept("?")
			p.expect(":")
			field.Type = p.parseType()
			fields = append(fields, field)
		}
		if !p.accept(";") && !p.accept(",") {
			break
		}
	}
	p.expect("}")
	return p.env.ctx.Object(fields, index...)
}

func (p *parser) propertyName() string {
	t := p.next()
	switch t.kind {
	case scanner.Ident:
		return t.text
	case scanner.String, scanner.RawString:
		return unquote(t)
	}
	p.fail(t, "expected a property name, found %s", t)
	return "_"
}

func (p *parser) parseTupleType() types.Type {
	p.expect("[")
	var elems []types.TupleElem
	var rest types.Type
	for p.err == nil && !p.peek().is("]") {
		if at := p.peek(); p.accept("...") {
			arr, ok := p.parseType().(*types.Array)
			if !ok {
				p.fail(at, "the rest of a tuple must be an array")
				break
			}
			rest = arr.Elem
		} else {
			elem := types.TupleElem{Type: p.parseType()}
			elem.Optional = p.accept("?")
			elems = append(elems, elem)
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect("]")
	return p.env.ctx.Tuple(elems, rest, false)
}

// parseTypeParams reads `<in T, U extends X = Y>` and brings the parameters
// into scope
func (p *parser) parseTypeParams() []*types.TypeParam {
	p.expect("<")
	scope := maps.Clone(p.params)
	if scope == nil {
		scope = make(map[string]*types.TypeParam)
	}
	p.params = scope
	var params []*types.TypeParam
	for p.err == nil {
		variance := types.VarianceNone
		if p.peek().is("in") && p.peekAt(1).kind == scanner.Ident {
			p.next()
			variance |= types.VarianceIn
		}
		if p.peek().is("out") && p.peekAt(1).kind == scanner.Ident {
			p.next()
			variance |= types.VarianceOut
		}
		tp := p.env.ctx.NewTypeParam(p.expectIdent(), nil, nil, variance)
		scope[tp.Name] = tp
		if p.accept("extends") {
			tp.Constraint = p.parseType()
		}
		if p.accept("=") {
			tp.Default = p.parseType()
		}
		params = append(params, tp)
		if !p.accept(",") {
			break
		}
	}
	p.expect(">")
	return params
}

// parseFuncType reads a signature like `<T>(x: T, y?: number) => x is string`
func (p *parser) parseFuncType(construct bool) types.Type {
	outer := p.params
	defer func() { p.params = outer }()
	sig := types.Func{Construct: construct}
	if p.peek().is("<") {
		sig.TypeParams = p.parseTypeParams()
	}
	p.expect("(")
	for p.err == nil && !p.peek().is(")") {
		param := types.Param{Name: p.expectIdent()}
		param.Optional = p.accept("?")
		p.expect(":")
		param.Type = p.parseType()
		sig.Params = append(sig.Params, param)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	p.expect("=>")
	p.parseReturn(&sig)
	return p.env.ctx.Func(sig)
}

func (p *parser) parseReturn(sig *types.Func) {
	paramIndex := func(name string) int {
		for i, param := range sig.Params {
			if param.Name == name {
				return i
			}
		}
		return -1
	}

	asserts := p.peek().is("asserts") && paramIndex(p.peekAt(1).text) >= 0
	if asserts {
		p.next()
	}
	if subject := p.peek(); asserts || p.peekAt(1).is("is") && paramIndex(subject.text) >= 0 {
		p.next()
		pred := &types.Predicate{Param: paramIndex(subject.text), Asserts: asserts}
		if p.accept("is") {
			pred.Type = p.parseType()
		}
		if pred.Type == nil && !asserts {
			p.fail(subject, "expected 'is' after %s", subject)
		}
		sig.Predicate = pred
		sig.Ret = types.Boolean
		if asserts {
			sig.Ret = types.Void
		}
		return
	}
	sig.Ret = p.parseType()
}
