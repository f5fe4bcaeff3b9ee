package types

import (
	"testing"

	"github.com/cottand/narrow/frontend/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantiate(t *testing.T) {
	ctx := NewEmptyTypeCtx()
	lengthy := ctx.Object([]Field{{Name: "length", Type: Number}})
	arrayLit := ctx.Tuple([]TupleElem{{Type: ctx.NumberLiteral(1)}, {Type: ctx.NumberLiteral(2)}, {Type: ctx.NumberLiteral(3)}}, nil, false)

	// <T>(arr: T[]) => T
	T1 := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	first := ctx.Func(Func{TypeParams: []*TypeParam{T1}, Params: []Param{{Name: "arr", Type: ctx.Array(T1)}}, Ret: T1})

	// <T extends { length: number }>(x: T) => number
	T2 := ctx.NewTypeParam("T", lengthy, nil, VarianceNone)
	getLength := ctx.Func(Func{TypeParams: []*TypeParam{T2}, Params: []Param{{Name: "x", Type: T2}}, Ret: Number})

	// <T>(a: T, b: T) => T
	T3 := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	pick := ctx.Func(Func{TypeParams: []*TypeParam{T3}, Params: []Param{{Name: "a", Type: T3}, {Name: "b", Type: T3}}, Ret: T3})

	// <T = string, U = T[]>() => U
	T4 := ctx.NewTypeParam("T", nil, String, VarianceNone)
	U4 := ctx.NewTypeParam("U", nil, ctx.Array(T4), VarianceNone)
	create := ctx.Func(Func{TypeParams: []*TypeParam{T4, U4}, Ret: U4})

	// <T>() => T
	T5 := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	make_ := ctx.Func(Func{TypeParams: []*TypeParam{T5}, Ret: T5})

	// <T>(x: T | undefined) => T
	T6 := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	orDefault := ctx.Func(Func{TypeParams: []*TypeParam{T6}, Params: []Param{{Name: "x", Type: ctx.Union(T6, Undefined)}}, Ret: T6})

	// Box<T> = { value: T }, List<T> = T[], Node<T> = { value: T; next: Node<T> | null }
	boxT := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	box := ctx.DefineGeneric("Box", boxT)
	ctx.SetBody(box, ctx.Object([]Field{{Name: "value", Type: boxT}}))
	listT := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	list := ctx.DefineGeneric("List", listT)
	ctx.SetBody(list, ctx.Array(listT))
	nodeT := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	node := ctx.DefineGeneric("Node", nodeT)
	ctx.SetBody(node, ctx.Object([]Field{
		{Name: "value", Type: nodeT},
		{Name: "next", Type: ctx.Union(ctx.Apply(node, nodeT), Null)},
	}))

	// <T>(b: { value: T }) => T
	T7 := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	unbox := ctx.Func(Func{TypeParams: []*TypeParam{T7}, Params: []Param{{Name: "b", Type: ctx.Object([]Field{{Name: "value", Type: T7}})}}, Ret: T7})

	// <T>(n: { next: { value: T } | null }) => T
	T8 := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	second := ctx.Func(Func{TypeParams: []*TypeParam{T8}, Params: []Param{{Name: "n", Type: ctx.Object([]Field{
		{Name: "next", Type: ctx.Union(ctx.Object([]Field{{Name: "value", Type: T8}}), Null)},
	})}}, Ret: T8})

	testCases := []struct {
		name     string
		sig      *Func
		args     []Type
		explicit []Type
		ret      Type
		codes    []diag.ErrCode
	}{
		{name: "array literal resolves to element type", sig: first, args: []Type{arrayLit}, ret: Number},
		{name: "array argument", sig: first, args: []Type{ctx.Array(ctx.Union(String, Null))}, ret: ctx.Union(String, Null)},
		{name: "constraint satisfied", sig: getLength, args: []Type{ctx.Array(Number)}, ret: Number},
		{name: "constraint violated", sig: getLength, args: []Type{Number}, ret: Number, codes: []diag.ErrCode{diag.ConstraintViolation}},
		{name: "candidates are joined", sig: pick, args: []Type{String, Number}, ret: ctx.Union(String, Number)},
		{name: "defaults", sig: create, ret: ctx.Array(String)},
		{name: "defaults after explicit", sig: create, explicit: []Type{Number}, ret: ctx.Array(Number)},
		{name: "uninferred", sig: make_, ret: Unknown, codes: []diag.ErrCode{diag.UninferredTypeParameter}},
		{name: "explicit", sig: make_, explicit: []Type{Boolean}, ret: Boolean},
		{name: "union parameter", sig: orDefault, args: []Type{ctx.Union(Number, Undefined)}, ret: Number},
		{name: "application against an object", sig: unbox, args: []Type{ctx.Apply(box, Number)}, ret: Number},
		{name: "application against an array", sig: first, args: []Type{ctx.Apply(list, String)}, ret: String},
		{name: "recursive application", sig: second, args: []Type{ctx.Apply(node, String)}, ret: String},
		{name: "application through a union parameter", sig: orDefault, args: []Type{ctx.Apply(box, Number)}, ret: ctx.Apply(box, Number)},
		{name: "explicit violating constraint", sig: getLength, explicit: []Type{Boolean}, args: []Type{True}, ret: Number, codes: []diag.ErrCode{diag.ConstraintViolation}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inst := ctx.Instantiate(tc.name, tc.sig, tc.args, tc.explicit)
			assert.Same(t, tc.ret, inst.Ret, "got %v", inst.Ret)
			var codes []diag.ErrCode
			for _, d := range inst.Diagnostics {
				codes = append(codes, d.Code())
			}
			assert.Equal(t, tc.codes, codes)
		})
	}
}

func TestConstraintViolationFallsBackToConstraint(t *testing.T) {
	ctx := NewEmptyTypeCtx()
	lengthy := ctx.Object([]Field{{Name: "length", Type: Number}})
	T := ctx.NewTypeParam("T", lengthy, nil, VarianceNone)
	identity := ctx.Func(Func{TypeParams: []*TypeParam{T}, Params: []Param{{Name: "x", Type: T}}, Ret: T})

	inst := ctx.Instantiate("identity", identity, []Type{Number}, nil)
	require.Len(t, inst.Diagnostics, 1)
	cv, ok := inst.Diagnostics[0].(diag.NewConstraintViolation)
	require.True(t, ok)
	assert.Equal(t, "T", cv.Param)
	assert.Equal(t, Number, cv.Resolved)
	assert.Equal(t, lengthy, cv.Constraint)

	assert.Same(t, lengthy, inst.Ret)
	assert.Same(t, lengthy, inst.Subst[T])
}

func TestInstantiatePredicate(t *testing.T) {
	ctx := NewEmptyTypeCtx()
	// <T>(value: unknown, sample: T) => value is T
	T := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	isLike := ctx.Func(Func{
		TypeParams: []*TypeParam{T},
		Params:     []Param{{Name: "value", Type: Unknown}, {Name: "sample", Type: T}},
		Ret:        Boolean,
		Predicate:  &Predicate{Param: 0, Type: T},
	})

	inst := ctx.Instantiate("isLike", isLike, []Type{Unknown, String}, nil)
	require.NotNil(t, inst.Predicate)
	assert.Same(t, String, inst.Predicate.Type)
	assert.Empty(t, inst.Diagnostics)
}

func TestSubstitute(t *testing.T) {
	ctx := NewEmptyTypeCtx()
	T := ctx.NewTypeParam("T", nil, nil, VarianceNone)
	U := ctx.NewTypeParam("U", nil, nil, VarianceNone)
	shape := ctx.Object([]Field{{Name: "a", Type: T}, {Name: "b", Type: ctx.Array(U)}})

	got := ctx.Substitute(shape, map[*TypeParam]Type{T: String})
	assert.Equal(t, "{ a: string; b: U[] }", got.String())
	assert.False(t, Mentions(got, []*TypeParam{T}))
	assert.True(t, Mentions(got, []*TypeParam{U}))

	assert.Same(t, shape, ctx.Substitute(shape, nil))
}
