package narrowing

import (
	"testing"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(name string) *ir.Ident { return &ir.Ident{Name: name} }
func strLit(s string) *ir.Literal { return &ir.Literal{Kind: ir.LitString, Value: `"` + s + `"`} }
func numLit(s string) *ir.Literal { return &ir.Literal{Kind: ir.LitNumber, Value: s} }
func nullLit() *ir.Literal        { return &ir.Literal{Kind: ir.LitNull, Value: "null"} }
func property(x ir.Expr, name string) *ir.Property {
	return &ir.Property{X: x, Name: name}
}
func binary(op ir.Op, l, r ir.Expr) *ir.Binary { return &ir.Binary{Op: op, Left: l, Right: r} }
func callOf(callee string, args ...ir.Expr) *ir.Call {
	return &ir.Call{Callee: ident(callee), Args: args}
}
func typeofIs(x ir.Expr, name string) *ir.Binary {
	return binary(ir.OpStrictEq, &ir.Typeof{X: x}, strLit(name))
}

func function(name string, params []ir.Param, body ...ir.Stmt) *ir.Function {
	return &ir.Function{Name: name, Params: params, Body: body}
}

func analyze(fn *ir.Function, ctx *types.TypeCtx, globals cfg.MapScope, opts Options) *Result {
	return Analyze(ctx, cfg.Build(fn, globals), globals, opts)
}

func typeAt(t *testing.T, r *Result, stmt ir.Stmt, ref string) string {
	t.Helper()
	ty, ok := r.TypeAt(stmt, ref)
	require.True(t, ok, "no flow type for %s", ref)
	return ty.String()
}

func codes(ds []diag.Diagnostic) []diag.ErrCode {
	var cs []diag.ErrCode
	for _, d := range ds {
		cs = append(cs, d.Code())
	}
	return cs
}

func shapes(ctx *types.TypeCtx) (shape, circle, square types.Type) {
	circle = ctx.Object([]types.Field{{Name: "kind", Type: ctx.StringLiteral("circle")}, {Name: "radius", Type: types.Number}})
	square = ctx.Object([]types.Field{{Name: "kind", Type: ctx.StringLiteral("square")}, {Name: "side", Type: types.Number}})
	return ctx.Union(circle, square), circle, square
}

func TestExhaustiveSwitch(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	shape, circle, square := shapes(ctx)
	s := ident("s")

	retRadius := &ir.Return{Value: property(s, "radius")}
	retSide := &ir.Return{Value: property(s, "side")}
	fn := function("area", []ir.Param{{Name: "s", Type: shape}},
		&ir.Switch{Discriminant: property(s, "kind"), Cases: []ir.Case{
			{Values: []ir.Expr{strLit("circle")}, Body: []ir.Stmt{retRadius}},
			{Values: []ir.Expr{strLit("square")}, Body: []ir.Stmt{retSide}},
		}},
	)

	r := analyze(fn, ctx, nil, Options{})
	assert.True(t, r.Converged)
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, circle.String(), typeAt(t, r, retRadius, "s"))
	assert.Equal(t, square.String(), typeAt(t, r, retSide, "s"))
	assert.Equal(t, "number", typeAt(t, r, retSide, "s.side"))
	assert.Equal(t, `"square"`, typeAt(t, r, retSide, "s.kind"))
}

func TestNonExhaustiveSwitch(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	shape, _, _ := shapes(ctx)
	s := ident("s")

	fn := function("area", []ir.Param{{Name: "s", Type: shape}},
		&ir.Switch{Discriminant: property(s, "kind"), Cases: []ir.Case{
			{Values: []ir.Expr{strLit("circle")}, Body: []ir.Stmt{&ir.Return{Value: property(s, "radius")}}},
		}},
	)

	r := analyze(fn, ctx, nil, Options{})
	require.Len(t, r.Diagnostics, 1)
	d := r.Diagnostics[0]
	assert.Equal(t, diag.NonExhaustiveMatch, d.Code())
	assert.Equal(t, `match on 's.kind' is not exhaustive: unhandled "square"`, d.Error())
	assert.Equal(t, "area:b0#0", d.At().String())
}

func TestSwitchOnFiniteUnion(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	dir := ctx.Union(ctx.StringLiteral("up"), ctx.StringLiteral("down"), ctx.StringLiteral("left"))
	d := ident("d")

	fn := function("move", []ir.Param{{Name: "d", Type: dir}},
		&ir.Switch{Discriminant: d, Cases: []ir.Case{
			{Values: []ir.Expr{strLit("up"), strLit("down")}, Body: []ir.Stmt{&ir.Return{Value: numLit("1")}}},
		}},
	)

	r := analyze(fn, ctx, nil, Options{})
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, `match on 'd' is not exhaustive: unhandled "left"`, r.Diagnostics[0].Error())

	// switching over an open type is never checked
	fn = function("open", []ir.Param{{Name: "d", Type: types.String}},
		&ir.Switch{Discriminant: d, Cases: []ir.Case{
			{Values: []ir.Expr{strLit("up")}, Body: []ir.Stmt{&ir.Return{}}},
		}},
	)
	assert.Empty(t, analyze(fn, ctx, nil, Options{}).Diagnostics)
}

func TestNeverBinding(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	shape, _, _ := shapes(ctx)
	s := ident("s")

	build := func(cases ...string) *ir.Function {
		var cs []ir.Case
		for _, c := range cases {
			cs = append(cs, ir.Case{Values: []ir.Expr{strLit(c)}, Body: []ir.Stmt{&ir.Return{Value: numLit("1")}}})
		}
		return function("area", []ir.Param{{Name: "s", Type: shape}},
			&ir.Switch{Discriminant: property(s, "kind"), Cases: cs, HasDefault: true, Default: []ir.Stmt{
				&ir.Declare{Name: "_exhaustive", Type: types.Never, Init: s},
				&ir.Return{Value: numLit("0")},
			}},
		)
	}

	r := analyze(build("circle", "square"), ctx, nil, Options{})
	assert.Empty(t, r.Diagnostics)

	r = analyze(build("circle"), ctx, nil, Options{})
	require.Len(t, r.Diagnostics, 1)
	d := r.Diagnostics[0]
	assert.Equal(t, diag.NonExhaustiveMatch, d.Code())
	assert.Equal(t, `match on 's' is not exhaustive: unhandled "square"`, d.Error())
	assert.Equal(t, "area:b3#0", d.At().String())
}

func TestNullishChecks(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x := ident("x")
	maybe := ctx.Union(types.Number, types.Null, types.Undefined)

	testCases := []struct {
		name      string
		op        ir.Op
		then      string
		otherwise string
	}{
		{name: "loose inequality", op: ir.OpNeq, then: "number", otherwise: ctx.Union(types.Null, types.Undefined).String()},
		{name: "loose equality", op: ir.OpEq, then: ctx.Union(types.Null, types.Undefined).String(), otherwise: "number"},
		{name: "strict inequality", op: ir.OpStrictNeq, then: ctx.Union(types.Number, types.Undefined).String(), otherwise: "null"},
		{name: "strict equality", op: ir.OpStrictEq, then: "null", otherwise: ctx.Union(types.Number, types.Undefined).String()},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			then := &ir.Return{Value: x}
			otherwise := &ir.Return{Value: numLit("0")}
			fn := function("f", []ir.Param{{Name: "x", Type: maybe}},
				&ir.If{Cond: binary(tc.op, x, nullLit()), Then: []ir.Stmt{then}},
				otherwise,
			)
			r := analyze(fn, ctx, nil, Options{})
			assert.Empty(t, r.Diagnostics)
			assert.Equal(t, tc.then, typeAt(t, r, then, "x"))
			assert.Equal(t, tc.otherwise, typeAt(t, r, otherwise, "x"))
		})
	}
}

func TestGuards(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	unit := ctx.Func(types.Func{Ret: types.Undefined})
	fish := ctx.Object([]types.Field{{Name: "swim", Type: unit}})
	bird := ctx.Object([]types.Field{{Name: "fly", Type: unit}})
	date := ctx.Object([]types.Field{{Name: "getTime", Type: ctx.Func(types.Func{Ret: types.Number})}})
	T := ctx.NewTypeParam("T", nil, nil, types.VarianceNone)

	globals := cfg.MapScope{
		"isFish": ctx.Func(types.Func{
			Params:    []types.Param{{Name: "pet", Type: ctx.Union(fish, bird)}},
			Ret:       types.Boolean,
			Predicate: &types.Predicate{Param: 0, Type: fish},
		}),
		"Date": ctx.Func(types.Func{Ret: date, Construct: true}),
	}
	x, pet, d := ident("x"), ident("pet"), ident("d")

	testCases := []struct {
		name      string
		param     string
		declared  types.Type
		cond      ir.Expr
		then      string
		otherwise string
	}{
		{
			name: "typeof", param: "x", declared: ctx.Union(types.String, types.Number),
			cond: typeofIs(x, "string"), then: "string", otherwise: "number",
		},
		{
			name: "typeof object keeps null", param: "x", declared: ctx.Union(date, types.Null, types.String),
			cond: typeofIs(x, "object"), then: ctx.Union(date, types.Null).String(), otherwise: "string",
		},
		{
			name: "typeof on a type parameter", param: "x", declared: T,
			cond: typeofIs(x, "string"), then: ctx.Intersection(T, types.String).String(), otherwise: "T",
		},
		{
			name: "typeof on unknown", param: "x", declared: types.Unknown,
			cond: typeofIs(x, "number"), then: "number", otherwise: "unknown",
		},
		{
			name: "in", param: "pet", declared: ctx.Union(fish, bird),
			cond: binary(ir.OpIn, strLit("swim"), pet), then: fish.String(), otherwise: bird.String(),
		},
		{
			name: "predicate", param: "pet", declared: ctx.Union(fish, bird),
			cond: callOf("isFish", pet), then: fish.String(), otherwise: bird.String(),
		},
		{
			name: "negated predicate", param: "pet", declared: ctx.Union(fish, bird),
			cond: &ir.Unary{Op: ir.OpNot, X: callOf("isFish", pet)}, then: bird.String(), otherwise: fish.String(),
		},
		{
			name: "instanceof", param: "d", declared: ctx.Union(date, types.String),
			cond: binary(ir.OpInstanceof, d, ident("Date")), then: date.String(), otherwise: "string",
		},
		{
			name: "truthiness", param: "x", declared: ctx.Union(types.String, types.Undefined),
			cond: x, then: "string", otherwise: ctx.Union(types.String, types.Undefined).String(),
		},
		{
			name: "conjunction", param: "x", declared: ctx.Union(types.String, types.Number, types.Null),
			cond:      binary(ir.OpAnd, binary(ir.OpStrictNeq, x, nullLit()), typeofIs(x, "number")),
			then:      "number",
			otherwise: ctx.Union(types.String, types.Null).String(),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			then := &ir.Return{Value: ident(tc.param)}
			otherwise := &ir.Return{Value: ident(tc.param)}
			fn := function("f", []ir.Param{{Name: tc.param, Type: tc.declared}},
				&ir.If{Cond: tc.cond, Then: []ir.Stmt{then}, Else: []ir.Stmt{otherwise}},
			)
			r := analyze(fn, ctx, globals, Options{})
			assert.Empty(t, r.Diagnostics)
			assert.Equal(t, tc.then, typeAt(t, r, then, tc.param))
			assert.Equal(t, tc.otherwise, typeAt(t, r, otherwise, tc.param))
		})
	}
}

func TestAssertionCall(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	globals := cfg.MapScope{
		"assertIsString": ctx.Func(types.Func{
			Params:    []types.Param{{Name: "v", Type: types.Unknown}},
			Ret:       types.Undefined,
			Predicate: &types.Predicate{Param: 0, Type: types.String, Asserts: true},
		}),
	}
	v := ident("v")
	before := &ir.ExprStmt{X: callOf("assertIsString", v)}
	after := &ir.Return{Value: v}
	fn := function("f", []ir.Param{{Name: "v", Type: ctx.Union(types.String, types.Number)}}, before, after)

	r := analyze(fn, ctx, globals, Options{})
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, ctx.Union(types.String, types.Number).String(), typeAt(t, r, before, "v"))
	assert.Equal(t, "string", typeAt(t, r, after, "v"))
}

func TestAssertionInsideBranch(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	globals := cfg.MapScope{
		"assertIsString": ctx.Func(types.Func{
			Params:    []types.Param{{Name: "v", Type: types.Unknown}},
			Ret:       types.Undefined,
			Predicate: &types.Predicate{Param: 0, Type: types.String, Asserts: true},
		}),
		"log": ctx.Func(types.Func{Params: []types.Param{{Name: "v", Type: types.Unknown}}, Ret: types.Undefined}),
	}
	v := ident("v")
	declared := ctx.Union(types.String, types.Number)

	// if (c) { assertIsString(v); if (d) { log(v) } log(v) } return v
	deep := &ir.ExprStmt{X: callOf("log", v)}
	sameBlock := &ir.ExprStmt{X: callOf("log", v)}
	joined := &ir.Return{Value: v}
	fn := function("f", []ir.Param{{Name: "v", Type: declared}, {Name: "c", Type: types.Boolean}, {Name: "d", Type: types.Boolean}},
		&ir.If{Cond: ident("c"), Then: []ir.Stmt{
			&ir.ExprStmt{X: callOf("assertIsString", v)},
			&ir.If{Cond: ident("d"), Then: []ir.Stmt{deep}},
			sameBlock,
		}},
		joined,
	)

	r := analyze(fn, ctx, globals, Options{})
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, "string", typeAt(t, r, deep, "v"))
	assert.Equal(t, "string", typeAt(t, r, sameBlock, "v"))
	assert.Equal(t, declared.String(), typeAt(t, r, joined, "v"), "the path skipping the assertion reaches the join")
}

func TestEqualityBetweenReferences(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x, y := ident("x"), ident("y")
	xType := ctx.Union(types.String, types.Number)
	yType := ctx.Union(types.String, types.Boolean)

	then := &ir.Return{Value: x}
	otherwise := &ir.Return{Value: y}
	fn := function("f", []ir.Param{{Name: "x", Type: xType}, {Name: "y", Type: yType}},
		&ir.If{Cond: binary(ir.OpStrictEq, x, y), Then: []ir.Stmt{then}, Else: []ir.Stmt{otherwise}},
	)

	r := analyze(fn, ctx, nil, Options{})
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, "string", typeAt(t, r, then, "x"))
	assert.Equal(t, "string", typeAt(t, r, then, "y"))
	// neither side is a unit type, so inequality proves nothing
	assert.Equal(t, xType.String(), typeAt(t, r, otherwise, "x"))
	assert.Equal(t, yType.String(), typeAt(t, r, otherwise, "y"))
}

func TestLoopConverges(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x := ident("x")
	declared := ctx.Union(types.String, types.Number)
	final := &ir.Return{Value: x}
	decl := &ir.Declare{Name: "x", Type: declared, Init: strLit("a")}
	fn := function("g", []ir.Param{{Name: "c", Type: types.Boolean}},
		decl,
		&ir.While{Cond: ident("c"), Body: []ir.Stmt{
			&ir.If{
				Cond: typeofIs(x, "string"),
				Then: []ir.Stmt{&ir.Assign{Target: x, Value: numLit("1")}},
				Else: []ir.Stmt{&ir.Assign{Target: x, Value: strLit("b")}},
			},
		}},
		final,
	)

	r := analyze(fn, ctx, nil, Options{})
	require.True(t, r.Converged)
	assert.Empty(t, r.Diagnostics)
	assert.LessOrEqual(t, r.Iterations, 4)
	assert.Equal(t, declared.String(), typeAt(t, r, final, "x"))
	assert.Equal(t, "false", typeAt(t, r, final, "c"))

	got, ok := r.Declared("x")
	require.True(t, ok)
	assert.Equal(t, declared, got)

	// after the declaration only, x holds a string
	exit := r.ExitTypes[r.Graph.Entry]
	narrowed, _ := exit.Get("x")
	assert.Equal(t, types.Type(types.String), narrowed)

	again := analyze(fn, ctx, nil, Options{MaxIterations: r.Iterations})
	assert.True(t, again.Converged)
	assert.Equal(t, r.Iterations, again.Iterations)
}

func TestLoopDoesNotConverge(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x := ident("x")
	declared := ctx.Union(types.String, types.Number)
	final := &ir.Return{Value: x}
	fn := function("g", []ir.Param{{Name: "c", Type: types.Boolean}},
		&ir.Declare{Name: "x", Type: declared, Init: strLit("a")},
		&ir.While{Cond: ident("c"), Body: []ir.Stmt{&ir.Assign{Target: x, Value: numLit("1")}}},
		final,
	)

	r := analyze(fn, ctx, nil, Options{MaxIterations: 1})
	assert.False(t, r.Converged)
	require.Equal(t, []diag.ErrCode{diag.NarrowingDidNotConverge}, codes(r.Diagnostics))
	assert.Equal(t, "g", r.Diagnostics[0].At().String())
	// every flow type falls back to the declared type
	assert.Equal(t, declared.String(), typeAt(t, r, final, "x"))
	assert.Equal(t, "boolean", typeAt(t, r, final, "c"))
}

func TestGenericCalls(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	T1 := ctx.NewTypeParam("T", nil, nil, types.VarianceNone)
	lengthy := ctx.Object([]types.Field{{Name: "length", Type: types.Number}})
	T2 := ctx.NewTypeParam("T", lengthy, nil, types.VarianceNone)
	T3 := ctx.NewTypeParam("T", nil, nil, types.VarianceNone)
	globals := cfg.MapScope{
		// <T>(arr: T[]) => T
		"first": ctx.Func(types.Func{TypeParams: []*types.TypeParam{T1}, Params: []types.Param{{Name: "arr", Type: ctx.Array(T1)}}, Ret: T1}),
		// <T extends { length: number }>(x: T) => number
		"getLength": ctx.Func(types.Func{TypeParams: []*types.TypeParam{T2}, Params: []types.Param{{Name: "x", Type: T2}}, Ret: types.Number}),
		// <T>() => T
		"make": ctx.Func(types.Func{TypeParams: []*types.TypeParam{T3}, Ret: T3}),
	}

	ret := &ir.Return{Value: ident("y")}
	fn := function("h", nil,
		&ir.Declare{Name: "y", Init: callOf("first", &ir.ArrayLit{Elems: []ir.Expr{numLit("1"), numLit("2"), numLit("3")}})},
		ret,
	)
	r := analyze(fn, ctx, globals, Options{})
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, "number", typeAt(t, r, ret, "y"))

	fn = function("h", nil,
		&ir.ExprStmt{X: callOf("getLength", numLit("1"))},
		&ir.ExprStmt{X: callOf("getLength", strLit("ok"))},
		&ir.ExprStmt{X: callOf("make")},
	)
	r = analyze(fn, ctx, globals, Options{})
	assert.Equal(t, []diag.ErrCode{diag.ConstraintViolation, diag.UninferredTypeParameter}, codes(r.Diagnostics))
	assert.Equal(t, "h:b0#0", r.Diagnostics[0].At().String())
	assert.Equal(t, "h:b0#2", r.Diagnostics[1].At().String())
}

func TestInvalidNarrowing(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	shape, _, _ := shapes(ctx)
	x, s := ident("x"), ident("s")
	globals := cfg.MapScope{"notCtor": types.Number}

	testCases := []struct {
		name     string
		param    string
		declared types.Type
		cond     ir.Expr
		message  string
	}{
		{
			name: "unknown typeof name", param: "x", declared: types.String,
			cond:    typeofIs(x, "strin"),
			message: `guard on 'x' of type 'string' can never hold: typeof never evaluates to "strin"`,
		},
		{
			name: "impossible typeof", param: "x", declared: types.String,
			cond:    typeofIs(x, "number"),
			message: `guard on 'x' of type 'string' can never hold: typeof is never "number"`,
		},
		{
			name: "unknown variant", param: "s", declared: shape,
			cond:    binary(ir.OpStrictEq, property(s, "kind"), strLit("triangle")),
			message: `guard on 's' of type '` + shape.String() + `' can never hold: no variant has kind "triangle"`,
		},
		{
			name: "not a constructor", param: "x", declared: types.String,
			cond:    binary(ir.OpInstanceof, x, ident("notCtor")),
			message: `guard on 'x' of type 'string' can never hold: 'notCtor' is not a constructor`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn := function("f", []ir.Param{{Name: tc.param, Type: tc.declared}},
				&ir.If{Cond: tc.cond, Then: []ir.Stmt{&ir.Return{Value: numLit("1")}}},
				&ir.Return{Value: numLit("0")},
			)
			r := analyze(fn, ctx, globals, Options{})
			require.Equal(t, []diag.ErrCode{diag.InvalidNarrowing}, codes(r.Diagnostics))
			assert.Equal(t, tc.message, r.Diagnostics[0].Error())
		})
	}
}

func TestNullComparisonIsAlwaysValid(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x := ident("x")
	fn := function("f", []ir.Param{{Name: "x", Type: types.String}},
		&ir.If{Cond: binary(ir.OpEq, x, nullLit()), Then: []ir.Stmt{&ir.Return{}}},
	)
	assert.Empty(t, analyze(fn, ctx, nil, Options{}).Diagnostics)
}

func TestAssignment(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x := ident("x")
	declared := ctx.Union(types.String, types.Number, types.Null)
	afterNull := &ir.Return{Value: x}
	mismatch := &ir.Assign{Target: x, Value: &ir.Literal{Kind: ir.LitBoolean, Value: "true"}}
	afterMismatch := &ir.Return{Value: x}

	fn := function("f", []ir.Param{{Name: "x", Type: declared}, {Name: "c", Type: types.Boolean}},
		&ir.If{
			Cond: ident("c"),
			Then: []ir.Stmt{&ir.Assign{Target: x, Value: nullLit()}, afterNull},
			Else: []ir.Stmt{mismatch, afterMismatch},
		},
	)
	r := analyze(fn, ctx, nil, Options{})
	require.Equal(t, []diag.ErrCode{diag.AssignmentMismatch}, codes(r.Diagnostics))
	assert.Equal(t, "f:b3#0", r.Diagnostics[0].At().String())
	assert.Equal(t, "null", typeAt(t, r, afterNull, "x"))
	assert.Equal(t, declared.String(), typeAt(t, r, afterMismatch, "x"))
}

func TestAssignmentForgetsPaths(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	shape, circle, _ := shapes(ctx)
	s := ident("s")
	other := ident("other")
	inside := &ir.Return{Value: s}
	reassigned := &ir.Return{Value: s}

	fn := function("f", []ir.Param{{Name: "s", Type: shape}, {Name: "other", Type: shape}},
		&ir.If{
			Cond: binary(ir.OpStrictEq, property(s, "kind"), strLit("circle")),
			Then: []ir.Stmt{
				inside,
			},
			Else: []ir.Stmt{
				&ir.Assign{Target: s, Value: other},
				reassigned,
			},
		},
	)
	r := analyze(fn, ctx, nil, Options{})
	assert.Empty(t, r.Diagnostics)
	assert.Equal(t, circle.String(), typeAt(t, r, inside, "s"))
	assert.Equal(t, `"circle"`, typeAt(t, r, inside, "s.kind"))
	assert.Equal(t, shape.String(), typeAt(t, r, reassigned, "s"))
	assert.Equal(t, ctx.Union(ctx.StringLiteral("circle"), ctx.StringLiteral("square")).String(), typeAt(t, r, reassigned, "s.kind"))
}

func TestUnreachableCodeIsReported(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	fn := function("f", nil,
		&ir.Return{Value: numLit("1")},
		&ir.ExprStmt{X: callOf("log")},
	)
	r := analyze(fn, ctx, nil, Options{})
	require.Equal(t, []diag.ErrCode{diag.UnreachableCode}, codes(r.Diagnostics))
	assert.Equal(t, diag.SeverityWarning, r.Diagnostics[0].Code().Severity())
}
