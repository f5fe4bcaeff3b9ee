// Package irload decodes programs written as YAML documents into IR.
//
// A document declares named types, the globals functions may refer to, and
// the functions themselves. Types, signatures and expressions are written
// in TypeScript syntax inside YAML strings; statements are YAML mappings:
//
//	types:
//	  Shape: '{ kind: "circle"; radius: number } | { kind: "square"; side: number }'
//	  Box<out T>: '{ value: T }'
//	globals:
//	  isCircle: '(s: Shape) => s is { kind: "circle"; radius: number }'
//	functions:
//	  - name: area
//	    signature: '(s: Shape) => number'
//	    body:
//	      - switch: s.kind
//	        cases:
//	          - case: '"circle"'
//	            body:
//	              - return: s.radius
//
// Statements are `let` (with `type` and `init`), `assign` (with `value`),
// `if` (with `then` and `else`), `switch` (with `cases` and `default`),
// `while` (with `body`), `return`, `do` for expression statements, `throw`,
// and the bare words `break`, `continue` and `return`.
package irload

import (
	"bytes"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/cottand/narrow/internal/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var logger = log.DefaultLogger.With("section", "irload")

type programDoc struct {
	Types     map[string]yaml.Node `yaml:"types"`
	Globals   map[string]yaml.Node `yaml:"globals"`
	Functions []functionDoc        `yaml:"functions"`
}

type functionDoc struct {
	Name      string      `yaml:"name"`
	Signature yaml.Node   `yaml:"signature"`
	Body      []yaml.Node `yaml:"body"`
}

// LoadFile reads the program at path. Types are built with ctx.
func LoadFile(path string, ctx *types.TypeCtx) (*ir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading program")
	}
	program, err := Load(bytes.NewReader(data), ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return program, nil
}

// Load decodes a program from r. Types are built with ctx.
//
// Unknown fields, unknown type names and malformed expressions are errors.
func Load(r io.Reader, ctx *types.TypeCtx) (*ir.Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc programDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decoding program")
	}

	l := &loader{env: newTypeEnv(ctx)}
	decls := make(map[string]typeSource, len(doc.Types))
	for name, node := range doc.Types {
		decls[name] = typeSource{src: node.Value, at: valuePos(&node)}
	}
	if err := l.env.declare(decls); err != nil {
		return nil, errors.Wrap(err, "declaring types")
	}

	program := &ir.Program{
		Types:   l.env.declared(),
		Globals: make(map[string]types.Type, len(doc.Globals)+len(doc.Functions)),
	}
	for name, node := range doc.Globals {
		t, err := l.env.parseType(node.Value, valuePos(&node), nil)
		if err != nil {
			return nil, errors.Wrapf(err, "in global %s", name)
		}
		program.Globals[name] = t
	}

	for _, fd := range doc.Functions {
		fn, err := l.function(fd)
		if err != nil {
			return nil, errors.Wrapf(err, "in function %s", fd.Name)
		}
		if _, ok := program.Function(fn.Name); ok {
			return nil, errors.Errorf("function %s is declared twice", fn.Name)
		}
		program.Functions = append(program.Functions, fn)
		if _, ok := program.Globals[fn.Name]; !ok {
			program.Globals[fn.Name] = l.signatures[fn]
		}
	}
	logger.Debug("loaded program", "types", len(program.Types), "globals", len(program.Globals), "functions", len(program.Functions))
	return program, nil
}

type loader struct {
	env        *typeEnv
	signatures map[*ir.Function]*types.Func
}

// valuePos is the position of the first character of the value of n,
// inside its quotes if it has any
func valuePos(n *yaml.Node) ir.Range {
	at := ir.Range{Line: n.Line, Column: n.Column}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		at.Column++
	}
	return at
}

func nodeErr(n *yaml.Node, format string, args ...any) error {
	return errors.Errorf("%d:%d: "+format, append([]any{n.Line, n.Column}, args...)...)
}

func (l *loader) function(fd functionDoc) (*ir.Function, error) {
	if fd.Name == "" {
		return nil, errors.New("missing name")
	}
	fn := &ir.Function{Range: valuePos(&fd.Signature), Name: fd.Name}
	sigSrc := fd.Signature.Value
	if sigSrc == "" {
		sigSrc = "() => void"
	}
	t, err := l.env.parseType(sigSrc, valuePos(&fd.Signature), nil)
	if err != nil {
		return nil, errors.Wrap(err, "in signature")
	}
	sig, ok := t.(*types.Func)
	if !ok || sig.Construct {
		return nil, nodeErr(&fd.Signature, "signature must be a function type, found %v", t)
	}

	fn.TypeParams = sig.TypeParams
	for _, p := range sig.Params {
		paramType := p.Type
		if p.Optional {
			paramType = l.env.ctx.Union(paramType, types.Undefined)
		}
		fn.Params = append(fn.Params, ir.Param{Range: fn.Range, Name: p.Name, Type: paramType})
	}
	if sig.Ret != types.Void {
		fn.Result = sig.Ret
	}

	scope := make(map[string]*types.TypeParam, len(sig.TypeParams))
	for _, tp := range sig.TypeParams {
		scope[tp.Name] = tp
	}
	fn.Body, err = l.stmts(fd.Body, scope)
	if err != nil {
		return nil, err
	}
	if l.signatures == nil {
		l.signatures = make(map[*ir.Function]*types.Func)
	}
	l.signatures[fn] = sig
	return fn, nil
}

func (l *loader) stmts(nodes []yaml.Node, scope map[string]*types.TypeParam) ([]ir.Stmt, error) {
	stmts := make([]ir.Stmt, 0, len(nodes))
	for i := range nodes {
		s, err := l.stmt(&nodes[i], scope)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (l *loader) expr(n *yaml.Node, scope map[string]*types.TypeParam) (ir.Expr, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, nodeErr(n, "expected an expression")
	}
	p, err := newParser(l.env, n.Value, valuePos(n), scope)
	if err != nil {
		return nil, err
	}
	e := p.parseExpr(precLowest)
	if err := p.finish(); err != nil {
		return nil, err
	}
	return e, nil
}

// optionalExpr is like expr, but an empty value is no expression
func (l *loader) optionalExpr(n *yaml.Node, scope map[string]*types.TypeParam) (ir.Expr, error) {
	if n == nil || (n.Kind == yaml.ScalarNode && n.Value == "" && n.Style == 0) {
		return nil, nil
	}
	return l.expr(n, scope)
}

func (l *loader) block(n *yaml.Node, scope map[string]*types.TypeParam) ([]ir.Stmt, error) {
	if n == nil || n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, nodeErr(n, "expected a list of statements")
	}
	nodes := make([]yaml.Node, len(n.Content))
	for i, c := range n.Content {
		nodes[i] = *c
	}
	return l.stmts(nodes, scope)
}

// statement kinds, by their leading key, with the other keys they accept
var stmtKeys = map[string][]string{
	"let":      {"type", "init"},
	"assign":   {"value"},
	"if":       {"then", "else"},
	"switch":   {"cases", "default"},
	"while":    {"body"},
	"return":   nil,
	"do":       nil,
	"throw":    nil,
	"break":    nil,
	"continue": nil,
}

func (l *loader) stmt(n *yaml.Node, scope map[string]*types.TypeParam) (ir.Stmt, error) {
	at := ir.Range{Line: n.Line, Column: n.Column}
	if n.Kind == yaml.ScalarNode {
		switch n.Value {
		case "break":
			return &ir.Break{Range: at}, nil
		case "continue":
			return &ir.Continue{Range: at}, nil
		case "return":
			return &ir.Return{Range: at}, nil
		}
		return nil, nodeErr(n, "unknown statement %q", n.Value)
	}
	if n.Kind != yaml.MappingNode {
		return nil, nodeErr(n, "expected a statement")
	}

	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	kind := ""
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		fields[key] = n.Content[i+1]
		if _, isKind := stmtKeys[key]; isKind {
			if kind != "" {
				return nil, nodeErr(n.Content[i], "statement is both %s and %s", kind, key)
			}
			kind = key
		}
	}
	if kind == "" {
		return nil, nodeErr(n, "statement has none of the keys %s", strings.Join(slices.Sorted(maps.Keys(stmtKeys)), ", "))
	}
	for key := range fields {
		if key != kind && !slices.Contains(stmtKeys[kind], key) {
			return nil, nodeErr(n, "unknown field %q in %s statement", key, kind)
		}
	}
	head := fields[kind]

	switch kind {
	case "let":
		if head.Kind != yaml.ScalarNode || head.Value == "" {
			return nil, nodeErr(head, "let needs a variable name")
		}
		decl := &ir.Declare{Range: at, Name: head.Value}
		if typeNode, ok := fields["type"]; ok {
			t, err := l.env.parseType(typeNode.Value, valuePos(typeNode), scope)
			if err != nil {
				return nil, err
			}
			decl.Type = t
		}
		init, err := l.optionalExpr(fields["init"], scope)
		decl.Init = init
		return decl, err

	case "assign":
		target, err := l.expr(head, scope)
		if err != nil {
			return nil, err
		}
		if _, ok := ir.RefKey(target); !ok {
			return nil, nodeErr(head, "cannot assign to %s", ir.ExprString(target))
		}
		valueNode, ok := fields["value"]
		if !ok {
			return nil, nodeErr(n, "assign needs a value")
		}
		value, err := l.expr(valueNode, scope)
		return &ir.Assign{Range: at, Target: target, Value: value}, err

	case "if":
		cond, err := l.expr(head, scope)
		if err != nil {
			return nil, err
		}
		s := &ir.If{Range: at, Cond: cond}
		if s.Then, err = l.block(fields["then"], scope); err != nil {
			return nil, err
		}
		s.Else, err = l.block(fields["else"], scope)
		return s, err

	case "switch":
		return l.switchStmt(at, head, fields, scope)

	case "while":
		cond, err := l.expr(head, scope)
		if err != nil {
			return nil, err
		}
		body, err := l.block(fields["body"], scope)
		return &ir.While{Range: at, Cond: cond, Body: body}, err

	case "return":
		value, err := l.optionalExpr(head, scope)
		return &ir.Return{Range: at, Value: value}, err

	case "do":
		x, err := l.expr(head, scope)
		return &ir.ExprStmt{Range: at, X: x}, err

	case "throw":
		value, err := l.expr(head, scope)
		return &ir.Throw{Range: at, Value: value}, err

	case "break":
		return &ir.Break{Range: at}, nil
	}
	return &ir.Continue{Range: at}, nil
}

func (l *loader) switchStmt(at ir.Range, head *yaml.Node, fields map[string]*yaml.Node, scope map[string]*types.TypeParam) (ir.Stmt, error) {
	disc, err := l.expr(head, scope)
	if err != nil {
		return nil, err
	}
	s := &ir.Switch{Range: at, Discriminant: disc}
	if defaultNode, ok := fields["default"]; ok {
		s.HasDefault = true
		if s.Default, err = l.block(defaultNode, scope); err != nil {
			return nil, err
		}
	}

	cases := fields["cases"]
	if cases == nil {
		return s, nil
	}
	if cases.Kind != yaml.SequenceNode {
		return nil, nodeErr(cases, "expected a list of cases")
	}
	for _, cn := range cases.Content {
		c, err := l.switchCase(cn, scope)
		if err != nil {
			return nil, err
		}
		s.Cases = append(s.Cases, c)
	}
	return s, nil
}

func (l *loader) switchCase(n *yaml.Node, scope map[string]*types.TypeParam) (ir.Case, error) {
	c := ir.Case{Range: ir.Range{Line: n.Line, Column: n.Column}}
	if n.Kind != yaml.MappingNode {
		return c, nodeErr(n, "expected a case")
	}
	var values, body *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch key := n.Content[i].Value; key {
		case "case":
			values = n.Content[i+1]
		case "body":
			body = n.Content[i+1]
		default:
			return c, nodeErr(n.Content[i], "unknown field %q in case", key)
		}
	}
	if values == nil {
		return c, nodeErr(n, "case needs a value")
	}

	valueNodes := []*yaml.Node{values}
	if values.Kind == yaml.SequenceNode {
		valueNodes = values.Content
	}
	for _, vn := range valueNodes {
		v, err := l.expr(vn, scope)
		if err != nil {
			return c, err
		}
		c.Values = append(c.Values, v)
	}
	var err error
	c.Body, err = l.block(body, scope)
	return c, err
}
