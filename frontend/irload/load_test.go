package irload

import (
	"strings"
	"testing"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesDoc = `
types:
  Shape: '{ kind: "circle"; radius: number } | { kind: "square"; side: number }'
  Box<out T>: '{ value: T }'
globals:
  isString: '(x: unknown) => x is string'
functions:
  - name: area
    signature: '(s: Shape) => number'
    body:
      - switch: s.kind
        cases:
          - case: '"circle"'
            body:
              - return: s.radius
          - case: ['"square"']
            body:
              - return: s.side
  - name: unwrap
    signature: '<T>(b: Box<T>, fallback?: T) => T'
    body:
      - let: v
        type: T | undefined
        init: b.value
      - if: v === undefined
        then:
          - throw: '"missing"'
        else:
          - return: v
  - name: count
    body:
      - let: i
        init: 0
      - while: i < 10
        body:
          - assign: i
            value: i + 1
          - continue
      - do: isString(i)
      - switch: i
        default:
      - return
`

func TestLoad(t *testing.T) {
	ctx := types.NewEmptyTypeCtx()
	program, err := Load(strings.NewReader(shapesDoc), ctx)
	require.NoError(t, err)
	require.Len(t, program.Functions, 3)

	assert.Contains(t, program.Types, "Shape")
	assert.Equal(t, "Box<T>", program.Types["Box"].String())
	assert.ElementsMatch(t, []string{"isString", "area", "unwrap", "count"}, keys(program.Globals))
	assert.Equal(t, "(x: unknown) => x is string", program.Globals["isString"].String())

	area, ok := program.Function("area")
	require.True(t, ok)
	require.Len(t, area.Params, 1)
	assert.Same(t, program.Types["Shape"], area.Params[0].Type)
	assert.Equal(t, types.Number, area.Result)
	sw, ok := area.Body[0].(*ir.Switch)
	require.True(t, ok)
	assert.Equal(t, "s.kind", ir.ExprString(sw.Discriminant))
	require.Len(t, sw.Cases, 2)
	assert.Equal(t, `"square"`, ir.ExprString(sw.Cases[1].Values[0]))
	assert.Equal(t, "return s.side", ir.StmtString(sw.Cases[1].Body[0]))
	assert.False(t, sw.HasDefault)

	unwrap, _ := program.Function("unwrap")
	require.Len(t, unwrap.TypeParams, 1)
	tp := unwrap.TypeParams[0]
	assert.Same(t, tp, unwrap.Result)
	assert.Equal(t, "Box<T>", unwrap.Params[0].Type.String())
	assert.Equal(t, "undefined | T", unwrap.Params[1].Type.String(), "optional parameters may be undefined")
	decl := unwrap.Body[0].(*ir.Declare)
	assert.Equal(t, "let v: undefined | T = b.value", ir.StmtString(decl))
	branch := unwrap.Body[1].(*ir.If)
	assert.Equal(t, `throw "missing"`, ir.StmtString(branch.Then[0]))
	assert.Equal(t, "return v", ir.StmtString(branch.Else[0]))

	count, _ := program.Function("count")
	assert.Nil(t, count.Result)
	var heads []string
	for _, s := range count.Body {
		heads = append(heads, ir.StmtString(s))
	}
	assert.Equal(t, []string{"let i = 0", "while (i < 10)", "isString(i)", "switch (i)", "return"}, heads)
	loop := count.Body[1].(*ir.While)
	assert.IsType(t, &ir.Assign{}, loop.Body[0])
	assert.IsType(t, &ir.Continue{}, loop.Body[1])
	assert.True(t, count.Body[3].(*ir.Switch).HasDefault)
	assert.Nil(t, count.Body[4].(*ir.Return).Value)
}

func keys[V any](m map[string]V) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}

func TestLoadPositions(t *testing.T) {
	doc := "functions:\n  - name: f\n    signature: '(x: unknown) => void'\n    body:\n      - return: x\n"
	program, err := Load(strings.NewReader(doc), types.NewEmptyTypeCtx())
	require.NoError(t, err)

	ret := program.Functions[0].Body[0].(*ir.Return)
	assert.Equal(t, ir.Range{Line: 5, Column: 9}, ret.Range)
	assert.Equal(t, ir.Range{Line: 5, Column: 17}, ir.RangeOf(ret.Value))
}

func TestLoadEmpty(t *testing.T) {
	program, err := Load(strings.NewReader(""), types.NewEmptyTypeCtx())
	require.NoError(t, err)
	assert.Empty(t, program.Functions)
}

func TestLoadErrors(t *testing.T) {
	fn := func(signature, body string) string {
		return "functions:\n  - name: f\n    signature: '" + signature + "'\n    body:\n" + body
	}
	testCases := []struct {
		name     string
		doc      string
		expected string
	}{
		{"unknown section", "typez: {}\n", "field typez not found"},
		{"unknown statement", fn("() => void", "      - lett: x\n"), "statement has none of the keys"},
		{"unknown field", fn("() => void", "      - return: x\n        then: []\n"), `unknown field "then" in return statement`},
		{"two kinds", fn("() => void", "      - return: x\n        throw: x\n"), "statement is both"},
		{"bad expression", fn("() => void", "      - return: a +\n"), "in function f: 5:20: expected an expression, found end of input"},
		{"unknown type", fn("(s: Nope) => void", ""), "in function f: in signature: 3:21: unknown type Nope"},
		{"not a function", fn("string", ""), "signature must be a function type"},
		{"not assignable", fn("() => void", "      - assign: f()\n        value: 1\n"), "cannot assign to f()"},
		{"assign without value", fn("() => void", "      - assign: x\n"), "assign needs a value"},
		{"unknown bare word", fn("() => void", "      - stop\n"), `unknown statement "stop"`},
		{"case without value", fn("() => void", "      - switch: x\n        cases:\n          - body: []\n"), "case needs a value"},
		{"recursive alias", "types:\n  A: 'A[]'\n", "only generic types may be recursive"},
		{"self applied generic", "types:\n  Loop<T>: 'Loop<T>'\n", "in type Loop: body only refers back to Loop"},
		{"bad global", "globals:\n  g: '() =>'\n", "in global g"},
		{"duplicate function", "functions:\n  - name: f\n  - name: f\n", "function f is declared twice"},
		{"missing name", "functions:\n  - signature: '() => void'\n", "missing name"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.doc), types.NewEmptyTypeCtx())
			assert.ErrorContains(t, err, tc.expected)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml", types.NewEmptyTypeCtx())
	assert.ErrorContains(t, err, "reading program")
}
