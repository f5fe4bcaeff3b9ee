package cfg

import (
	"slices"
	"testing"

	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(name string) *ir.Ident { return &ir.Ident{Name: name} }
func str(s string) *ir.Literal { return &ir.Literal{Kind: ir.LitString, Value: `"` + s + `"`} }
func num(s string) *ir.Literal { return &ir.Literal{Kind: ir.LitNumber, Value: s} }
func null() *ir.Literal        { return &ir.Literal{Kind: ir.LitNull, Value: "null"} }
func prop(x ir.Expr, name string) *ir.Property {
	return &ir.Property{X: x, Name: name}
}
func bin(op ir.Op, l, r ir.Expr) *ir.Binary { return &ir.Binary{Op: op, Left: l, Right: r} }
func call(callee string, args ...ir.Expr) *ir.Call {
	return &ir.Call{Callee: id(callee), Args: args}
}

func fn(body ...ir.Stmt) *ir.Function {
	return &ir.Function{Name: "f", Body: body}
}

func TestBuildIf(t *testing.T) {
	ret := &ir.Return{Value: id("x")}
	ifStmt := &ir.If{Cond: bin(ir.OpNeq, id("x"), null()), Then: []ir.Stmt{ret}}
	last := &ir.Return{Value: num("0")}
	g := Build(fn(ifStmt, last), nil)

	require.Len(t, g.Blocks, 3)
	branch, ok := g.Block(g.Entry).Term.(*Branch)
	require.True(t, ok)
	assert.Equal(t, BlockID(1), branch.Then)
	assert.Equal(t, BlockID(2), branch.Else)

	eq, ok := branch.Guard.(Equality)
	require.True(t, ok, "guard was %v", branch.Guard)
	assert.True(t, eq.Neg)
	assert.False(t, eq.Strict)
	assert.True(t, eq.Left.IsRef)
	assert.Equal(t, "x", eq.Left.Ref.Key)
	assert.False(t, eq.Right.IsRef)

	assert.Equal(t, []BlockID{0}, g.Block(1).Preds)
	assert.Equal(t, []BlockID{0}, g.Block(2).Preds)
	assert.Equal(t, Location{Block: 0, Index: 0}, g.Origins[ifStmt])
	assert.Equal(t, Location{Block: 1, Index: 0}, g.Origins[ret])
	assert.Equal(t, Location{Block: 2, Index: 0}, g.Origins[last])
	assert.Empty(t, g.Diagnostics)
}

func TestBuildLogicalOperatorsSplitBranches(t *testing.T) {
	cond := bin(ir.OpAnd,
		bin(ir.OpStrictNeq, id("x"), null()),
		bin(ir.OpStrictEq, &ir.Typeof{X: id("x")}, str("string")),
	)
	g := Build(fn(&ir.If{Cond: cond, Then: []ir.Stmt{&ir.ExprStmt{X: call("use", id("x"))}}}), nil)

	first := g.Block(g.Entry).Term.(*Branch)
	_, isEq := first.Guard.(Equality)
	assert.True(t, isEq)

	rhs := g.Block(first.Then)
	assert.Equal(t, "and.rhs", rhs.Label)
	second := rhs.Term.(*Branch)
	tof, ok := second.Guard.(TypeofCheck)
	require.True(t, ok)
	assert.Equal(t, "string", tof.TypeName)
	assert.Equal(t, first.Else, second.Else, "both conditions fail to the same block")
}

func TestBuildNotSwapsTargets(t *testing.T) {
	cond := &ir.Unary{Op: ir.OpNot, X: id("x")}
	g := Build(fn(&ir.If{Cond: cond, Then: []ir.Stmt{&ir.Return{}}}), nil)

	branch := g.Block(g.Entry).Term.(*Branch)
	assert.Equal(t, "if.join", g.Block(branch.Then).Label)
	assert.Equal(t, "if.then", g.Block(branch.Else).Label)
	truthy, ok := branch.Guard.(Truthiness)
	require.True(t, ok)
	assert.False(t, truthy.Neg)
}

func TestBuildWhile(t *testing.T) {
	g := Build(fn(
		&ir.Declare{Name: "i", Type: types.Number, Init: num("0")},
		&ir.While{
			Cond: bin(ir.OpLt, id("i"), num("10")),
			Body: []ir.Stmt{&ir.Assign{Target: id("i"), Value: bin(ir.OpAdd, id("i"), num("1"))}},
		},
	), nil)

	require.Len(t, g.Blocks, 4)
	header := g.Block(1)
	assert.True(t, header.LoopHeader)
	assert.ElementsMatch(t, []BlockID{0, 2}, header.Preds)
	assert.Nil(t, header.Term.(*Branch).Guard)
	assert.Equal(t, &Jump{Target: 1}, g.Block(2).Term)
	assert.Equal(t, []BlockID{0, 1, 2, 3}, slices.Sorted(slices.Values(g.ReversePostorder())))
}

func TestBuildBreakAndContinue(t *testing.T) {
	g := Build(fn(
		&ir.While{
			Cond: &ir.Literal{Kind: ir.LitBoolean, Value: "true"},
			Body: []ir.Stmt{
				&ir.If{Cond: id("done"), Then: []ir.Stmt{&ir.Break{}}, Else: []ir.Stmt{&ir.Continue{}}},
			},
		},
	), nil)

	header := g.Block(1)
	assert.Equal(t, &Jump{Target: 2}, header.Term, "a constant true condition always enters the body")
	exit := g.Block(3)
	assert.Equal(t, "loop.exit", exit.Label)
	assert.False(t, exit.Dead)

	join := g.Block(5)
	assert.Equal(t, "if.join", join.Label)
	assert.True(t, join.Dead)
	assert.ElementsMatch(t, []BlockID{0, 5, 6}, header.Preds)
	assert.Empty(t, g.Diagnostics)
}

func TestBuildSwitchFallthrough(t *testing.T) {
	sw := &ir.Switch{
		Discriminant: prop(id("s"), "kind"),
		Cases: []ir.Case{
			{Values: []ir.Expr{str("a"), str("b")}, Body: []ir.Stmt{&ir.ExprStmt{X: call("f")}}},
			{Values: []ir.Expr{str("c")}, Body: []ir.Stmt{&ir.Break{}}},
		},
	}
	g := Build(fn(sw), nil)

	term, ok := g.Block(g.Entry).Term.(*Switch)
	require.True(t, ok)
	require.Len(t, term.Cases, 3)
	assert.Equal(t, term.Cases[0].Target, term.Cases[1].Target, "grouped labels share a body")
	assert.False(t, term.HasDefault)

	exit := g.Block(term.Default)
	assert.Equal(t, "switch.exit", exit.Label)

	first, second := g.Block(term.Cases[0].Target), g.Block(term.Cases[2].Target)
	assert.Equal(t, []BlockID{0}, first.Preds)
	assert.Equal(t, &Jump{Target: second.ID}, first.Term)
	assert.ElementsMatch(t, []BlockID{0, first.ID}, second.Preds)
	assert.Equal(t, &Jump{Target: exit.ID}, second.Term)
	assert.ElementsMatch(t, []BlockID{0, second.ID}, exit.Preds)
}

func TestBuildSwitchWithDefault(t *testing.T) {
	sw := &ir.Switch{
		Discriminant: id("x"),
		Cases:        []ir.Case{{Values: []ir.Expr{num("1")}}},
		HasDefault:   true,
		Default:      []ir.Stmt{&ir.Return{Value: num("0")}},
	}
	g := Build(fn(sw), nil)
	term := g.Block(g.Entry).Term.(*Switch)
	assert.True(t, term.HasDefault)
	def := g.Block(term.Default)
	assert.Equal(t, "switch.default", def.Label)
	assert.Contains(t, def.Preds, term.Cases[0].Target, "the last case falls through into default")
}

func TestBuildUnreachableCode(t *testing.T) {
	g := Build(fn(
		&ir.Return{Value: num("1")},
		&ir.ExprStmt{X: call("f")},
	), nil)

	require.Len(t, g.Blocks, 2)
	assert.True(t, g.Block(1).Dead)
	require.Len(t, g.Diagnostics, 1)
	d := g.Diagnostics[0]
	assert.Equal(t, diag.UnreachableCode, d.Code())
	assert.Equal(t, diag.SeverityWarning, d.Code().Severity())
	assert.Equal(t, "f:b1#0", d.At().String())
}

func TestBuildNoWarningForImplicitReturn(t *testing.T) {
	g := Build(fn(
		&ir.If{Cond: id("c"), Then: []ir.Stmt{&ir.Return{}}, Else: []ir.Stmt{&ir.Throw{Value: str("no")}}},
	), nil)
	assert.True(t, g.Block(2).Dead, "the join after two jumps is dead")
	assert.Empty(t, g.Diagnostics)
}

func TestBuildConditionalDeclaration(t *testing.T) {
	decl := &ir.Declare{
		Name: "y",
		Type: types.Number,
		Init: &ir.Conditional{Cond: id("c"), Then: num("1"), Else: num("2")},
	}
	g := Build(fn(decl), nil)

	entry := g.Block(g.Entry)
	require.Len(t, entry.Nodes, 1)
	assert.True(t, entry.Nodes[0].Deferred)
	branch := entry.Term.(*Branch)
	for _, target := range []BlockID{branch.Then, branch.Else} {
		nodes := g.Block(target).Nodes
		require.Len(t, nodes, 1)
		assert.Equal(t, NodeAssign, nodes[0].Kind)
		assert.Equal(t, "y", nodes[0].Target.(*ir.Ident).Name)
		assert.Equal(t, decl, nodes[0].Stmt)
	}
	assert.Equal(t, Location{Block: 0, Index: 0}, g.Origins[decl])
}

func TestBuildAssertionCall(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	isString := ctx.Func(types.Func{
		Params:    []types.Param{{Name: "v", Type: types.Unknown}},
		Ret:       types.Void,
		Predicate: &types.Predicate{Param: 0, Type: types.String, Asserts: true},
	})
	assertCond := ctx.Func(types.Func{
		Params:    []types.Param{{Name: "cond", Type: types.Unknown}},
		Ret:       types.Void,
		Predicate: &types.Predicate{Param: 0, Asserts: true},
	})
	scope := MapScope{"assertIsString": isString, "assert": assertCond}

	g := Build(fn(
		&ir.ExprStmt{X: call("assertIsString", id("x"))},
		&ir.ExprStmt{X: call("assert", bin(ir.OpStrictNeq, id("y"), null()))},
		&ir.ExprStmt{X: call("log", id("x"))},
	), scope)

	nodes := g.Block(g.Entry).Nodes
	require.Len(t, nodes, 3)

	require.Equal(t, NodeAssert, nodes[0].Kind)
	byType := nodes[0].Guard.(AssertionCall)
	assert.Equal(t, "x", byType.Ref.Key)
	assert.Equal(t, types.Type(types.String), byType.Narrowed)

	require.Equal(t, NodeAssert, nodes[1].Kind)
	byCond := nodes[1].Guard.(AssertionCall)
	assert.Nil(t, byCond.Narrowed)
	eq, ok := byCond.Cond.(Equality)
	require.True(t, ok)
	assert.True(t, eq.Neg)
	assert.True(t, eq.Strict)

	assert.Equal(t, NodeEval, nodes[2].Kind)
}
