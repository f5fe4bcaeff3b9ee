package irload

import (
	"maps"
	"slices"
	"strings"

	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/pkg/errors"
)

type typeSource struct {
	src string
	at  ir.Range
}

// typeEnv resolves the names of declared types. Plain aliases are parsed
// the first time they are used, so they may be declared in any order.
type typeEnv struct {
	ctx       *types.TypeCtx
	sources   map[string]typeSource
	named     map[string]types.Type
	generics  map[string]*types.GenericDef
	resolving map[string]bool
}

func newTypeEnv(ctx *types.TypeCtx) *typeEnv {
	return &typeEnv{
		ctx:       ctx,
		sources:   make(map[string]typeSource),
		named:     make(map[string]types.Type),
		generics:  make(map[string]*types.GenericDef),
		resolving: make(map[string]bool),
	}
}

// parseType parses src as a type, with params in scope
func (e *typeEnv) parseType(src string, at ir.Range, params map[string]*types.TypeParam) (types.Type, error) {
	p, err := newParser(e, src, at, params)
	if err != nil {
		return nil, err
	}
	t := p.parseType()
	if err := p.finish(); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *typeEnv) resolve(name string, args []types.Type) (types.Type, error) {
	if def, ok := e.generics[name]; ok {
		return e.apply(def, args)
	}
	if len(args) > 0 {
		return nil, errors.Errorf("type %s is not generic", name)
	}
	if t, ok := e.named[name]; ok {
		return t, nil
	}
	src, ok := e.sources[name]
	if !ok {
		return nil, errors.Errorf("unknown type %s", name)
	}
	if e.resolving[name] {
		return nil, errors.Errorf("type %s refers to itself: only generic types may be recursive", name)
	}
	e.resolving[name] = true
	defer delete(e.resolving, name)

	t, err := e.parseType(src.src, src.at, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "in type %s", name)
	}
	e.named[name] = t
	return t, nil
}

// apply instantiates def, filling the missing trailing arguments with the
// defaults of its parameters
func (e *typeEnv) apply(def *types.GenericDef, args []types.Type) (types.Type, error) {
	if len(args) > len(def.Params) {
		return nil, errors.Errorf("type %s takes %d type arguments, but got %d", def.Name, len(def.Params), len(args))
	}
	full := slices.Clone(args)
	subst := make(map[*types.TypeParam]types.Type, len(def.Params))
	for i, tp := range def.Params {
		if i < len(args) {
			subst[tp] = args[i]
			continue
		}
		if tp.Default == nil {
			return nil, errors.Errorf("type %s requires a type argument for %s", def.Name, tp.Name)
		}
		arg := e.ctx.Substitute(tp.Default, subst)
		subst[tp] = arg
		full = append(full, arg)
	}
	return e.ctx.Apply(def, full...), nil
}

// declare registers the types of a document. Keys like `Box<out T>` declare
// generic types, whose bodies are parsed once every generic is known so that
// they can refer to one another.
func (e *typeEnv) declare(decls map[string]typeSource) error {
	type pending struct {
		def  *types.GenericDef
		body typeSource
	}
	var bodies []pending
	for _, key := range slices.Sorted(maps.Keys(decls)) {
		src := decls[key]
		if !strings.Contains(key, "<") {
			e.sources[key] = src
			continue
		}
		p, err := newParser(e, key, src.at, nil)
		if err != nil {
			return errors.Wrapf(err, "in type %s", key)
		}
		name := p.expectIdent()
		params := p.parseTypeParams()
		if err := p.finish(); err != nil {
			return errors.Wrapf(err, "in type %s", key)
		}
		def := e.ctx.DefineGeneric(name, params...)
		e.generics[name] = def
		bodies = append(bodies, pending{def, src})
	}

	defs := make([]*types.GenericDef, 0, len(bodies))
	parsed := make([]types.Type, 0, len(bodies))
	for _, b := range bodies {
		scope := make(map[string]*types.TypeParam, len(b.def.Params))
		for _, tp := range b.def.Params {
			scope[tp.Name] = tp
		}
		body, err := e.parseType(b.body.src, b.body.at, scope)
		if err != nil {
			return errors.Wrapf(err, "in type %s", b.def.Name)
		}
		defs = append(defs, b.def)
		parsed = append(parsed, body)
	}
	e.ctx.SetBodies(defs, parsed)
	for _, def := range defs {
		if def.Circular() {
			return errors.Errorf("in type %s: body only refers back to %s", def.Name, def.Name)
		}
	}

	// resolve every alias now, so that errors surface even for unused types
	for _, name := range slices.Sorted(maps.Keys(e.sources)) {
		if _, err := e.resolve(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// declared returns every declared type by name. Generic types are
// applied to their own parameters.
func (e *typeEnv) declared() map[string]types.Type {
	res := maps.Clone(e.named)
	for name, def := range e.generics {
		args := make([]types.Type, len(def.Params))
		for i, tp := range def.Params {
			args[i] = tp
		}
		res[name] = e.ctx.Apply(def, args...)
	}
	return res
}
