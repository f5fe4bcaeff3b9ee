package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *ir.Literal { return &ir.Literal{Kind: ir.LitString, Value: `"` + s + `"`} }

// shapeProgram declares area functions over circle | square, handling the
// given kinds each
func shapeProgram(ctx *types.TypeCtx, handled ...[]string) *ir.Program {
	circle := ctx.Object([]types.Field{{Name: "kind", Type: ctx.StringLiteral("circle")}, {Name: "radius", Type: types.Number}})
	square := ctx.Object([]types.Field{{Name: "kind", Type: ctx.StringLiteral("square")}, {Name: "side", Type: types.Number}})
	shape := ctx.Union(circle, square)

	program := &ir.Program{Types: map[string]types.Type{"Shape": shape}}
	for i, kinds := range handled {
		var cases []ir.Case
		for _, k := range kinds {
			cases = append(cases, ir.Case{Values: []ir.Expr{str(k)}, Body: []ir.Stmt{&ir.Return{}}})
		}
		program.Functions = append(program.Functions, &ir.Function{
			Name:   fmt.Sprintf("area%d", i),
			Params: []ir.Param{{Name: "s", Type: shape}},
			Body: []ir.Stmt{&ir.Switch{
				Discriminant: &ir.Property{X: &ir.Ident{Name: "s"}, Name: "kind"},
				Cases:        cases,
			}},
		})
	}
	return program
}

func TestAnalyzeProgram(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	var handled [][]string
	for i := range 24 {
		if i%3 == 0 {
			handled = append(handled, []string{"circle"})
		} else {
			handled = append(handled, []string{"circle", "square"})
		}
	}
	program := shapeProgram(ctx, handled...)

	report, err := AnalyzeProgram(context.Background(), ctx, program, Options{Parallelism: 4})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, report.RunID)
	require.Len(t, report.Results, len(program.Functions))

	for i, res := range report.Results {
		require.NotNil(t, res)
		assert.Equal(t, program.Functions[i], res.Function, "results are in declaration order")
		assert.True(t, res.Converged)
		if i%3 == 0 {
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, diag.NonExhaustiveMatch, res.Diagnostics[0].Code())
			assert.Equal(t, fmt.Sprintf("area%d:b0#0", i), res.Diagnostics[0].At().String())
		} else {
			assert.Empty(t, res.Diagnostics)
		}
	}

	errs := report.Diagnostics()
	assert.Equal(t, 8, errs.Len())
	assert.True(t, errs.HasError())
	for i, d := range errs.Errors() {
		assert.Equal(t, fmt.Sprintf("area%d:b0#0", i*3), d.At().String())
	}

	res, ok := report.Result("area3")
	require.True(t, ok)
	assert.Same(t, report.Results[3], res)
	_, ok = report.Result("missing")
	assert.False(t, ok)
}

func TestAnalyzeProgramSharesInterning(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	x := &ir.Ident{Name: "x"}
	maybe := ctx.Union(types.String, types.Null)

	var rets []*ir.Return
	program := &ir.Program{}
	for i := range 8 {
		ret := &ir.Return{Value: x}
		rets = append(rets, ret)
		program.Functions = append(program.Functions, &ir.Function{
			Name:   fmt.Sprintf("f%d", i),
			Params: []ir.Param{{Name: "x", Type: ctx.Union(maybe, types.Number)}},
			Body: []ir.Stmt{&ir.If{
				Cond: &ir.Binary{Op: ir.OpStrictEq, Left: &ir.Typeof{X: x}, Right: str("number")},
				Then: []ir.Stmt{&ir.Return{}},
			}, ret},
		})
	}

	report, err := AnalyzeProgram(context.Background(), ctx, program, Options{})
	require.NoError(t, err)
	for i, res := range report.Results {
		got, ok := res.TypeAt(rets[i], "x")
		require.True(t, ok)
		assert.Same(t, maybe, got, "types built concurrently are interned once")
	}
}

func TestAnalyzeProgramCancelled(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	program := shapeProgram(ctx, []string{"circle"}, []string{"square"})

	goCtx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := AnalyzeProgram(goCtx, ctx, program, Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 2)
	assert.Nil(t, report.Results[0])
	assert.Nil(t, report.Results[1])
	assert.Equal(t, 0, report.Diagnostics().Len())
}

func TestAnalyzeReportsTypeConstructionDiagnostics(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	tagged := func(tag string) types.Type {
		return ctx.Object([]types.Field{{Name: "kind", Type: ctx.StringLiteral(tag)}})
	}
	// <T>(x: T) => T & { kind: "b" }
	T := ctx.NewTypeParam("T", nil, nil, types.VarianceNone)
	retag := ctx.Func(types.Func{
		TypeParams: []*types.TypeParam{T},
		Params:     []types.Param{{Name: "x", Type: T}},
		Ret:        ctx.Intersection(T, tagged("b")),
	})
	call := &ir.Call{
		Callee: &ir.Ident{Name: "retag"},
		Args:   []ir.Expr{&ir.ObjectLit{Fields: []ir.ObjectField{{Name: "kind", Value: str("a")}}}},
	}
	fn := &ir.Function{Name: "f", Body: []ir.Stmt{&ir.ExprStmt{X: call}}}

	fork := ctx.Fork()
	res := Analyze(fork, fn, cfg.MapScope{"retag": retag}, Options{})
	var got []diag.ErrCode
	for _, d := range res.Diagnostics {
		got = append(got, d.Code())
	}
	require.Equal(t, []diag.ErrCode{diag.IntersectionConflict}, got)
	assert.Equal(t, "f", res.Diagnostics[0].At().String())
	assert.Equal(t, 0, ctx.Errors.Len(), "forks report to their own sink")
}
