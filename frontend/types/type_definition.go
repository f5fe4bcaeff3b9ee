package types

import (
	"slices"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// GenericDef is a named type with type parameters, like
// `type Box<out T> = { value: T }`. Applications of it are Applied types.
type GenericDef struct {
	Name   string
	Params []*TypeParam
	Body   Type

	variances []varianceInfo
	circular  bool
}

// DefineGeneric declares a generic type. Its body is set with SetBody, which
// allows the body to refer to the definition itself.
func (ctx *TypeCtx) DefineGeneric(name string, params ...*TypeParam) *GenericDef {
	return &GenericDef{Name: name, Params: params}
}

// SetBody completes def and checks the declared variance of its parameters,
// reporting InvalidVariance for parameters used against their annotation
func (ctx *TypeCtx) SetBody(def *GenericDef, body Type) {
	ctx.SetBodies([]*GenericDef{def}, []Type{body})
}

// SetBodies completes definitions that may refer to one another. Variances
// are inferred for all of them at once, so the order of defs does not matter.
func (ctx *TypeCtx) SetBodies(defs []*GenericDef, bodies []Type) {
	for i, def := range defs {
		def.Body = bodies[i]
	}
	for _, def := range defs {
		def.circular = unguardedReference(def)
	}
	ctx.inferVariances(defs)
	for _, def := range defs {
		ctx.logger.Debug("defined generic type", "name", def.Name, "variances", def.VarianceString())
	}
}

// Circular reports whether def expands back to an application of itself
// without going through an object, array, tuple or function type, like
// `type Loop<T> = Loop<T>`. Such a definition describes no values and is
// never expanded.
func (def *GenericDef) Circular() bool {
	return def.circular
}

func unguardedReference(def *GenericDef) bool {
	seen := set.New[*GenericDef](1)
	var reaches func(t Type) bool
	reaches = func(t Type) bool {
		switch t := t.(type) {
		case *Applied:
			if t.Def == def {
				return true
			}
			if t.Def.Body == nil || !seen.Insert(t.Def) {
				return false
			}
			return reaches(t.Def.Body)
		case *Union:
			return slices.ContainsFunc(t.Members, reaches)
		case *Intersection:
			return slices.ContainsFunc(t.Members, reaches)
		}
		return false
	}
	return def.Body != nil && reaches(def.Body)
}

// Variances returns the variance governing each parameter of def
func (def *GenericDef) Variances() []varianceInfo {
	if def.variances == nil {
		res := make([]varianceInfo, len(def.Params))
		for i := range res {
			res[i] = varianceInvariant
		}
		return res
	}
	return def.variances
}

// VarianceString describes how each parameter of def may vary
func (def *GenericDef) VarianceString() string {
	parts := make([]string, len(def.Params))
	for i, v := range def.Variances() {
		parts[i] = def.Params[i].Name + " " + v.String()
	}
	return strings.Join(parts, ", ")
}

func (def *GenericDef) String() string {
	params := make([]string, len(def.Params))
	for i, p := range def.Params {
		params[i] = p.Declaration()
	}
	return "type " + def.Name + "<" + strings.Join(params, ", ") + "> = " + def.Body.String()
}

// Expand replaces an application by the body of its definition
func (ctx *TypeCtx) Expand(a *Applied) Type {
	subst := make(map[*TypeParam]Type, len(a.Args))
	for i, p := range a.Def.Params {
		if i < len(a.Args) {
			subst[p] = a.Args[i]
		} else if p.Default != nil {
			subst[p] = ctx.Substitute(p.Default, subst)
		} else {
			subst[p] = Unknown
		}
	}
	return ctx.Substitute(a.Def.Body, subst)
}

// Substitute replaces the type parameters in t according to subst
func (ctx *TypeCtx) Substitute(t Type, subst map[*TypeParam]Type) Type {
	if len(subst) == 0 {
		return t
	}
	return ctx.doMap(t, func(t Type) Type {
		if tp, ok := t.(*TypeParam); ok {
			if replacement, ok := subst[tp]; ok {
				return replacement
			}
		}
		return nil
	})
}

// Mentions reports whether t refers to any of params
func Mentions(t Type, params []*TypeParam) bool {
	if tp, ok := t.(*TypeParam); ok {
		for _, p := range params {
			if p == tp {
				return true
			}
		}
		return false
	}
	for child := range t.children() {
		if Mentions(child, params) {
			return true
		}
	}
	return false
}

// doMap rebuilds t bottom-up. f may return a replacement for a type, or nil
// to have its children mapped instead.
func (ctx *TypeCtx) doMap(t Type, f func(Type) Type) Type {
	if replaced := f(t); replaced != nil {
		return replaced
	}
	mapped := func(t Type) Type { return ctx.doMap(t, f) }

	switch t := t.(type) {
	case *Union:
		members := make([]Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = mapped(m)
		}
		return ctx.Union(members...)
	case *Intersection:
		members := make([]Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = mapped(m)
		}
		return ctx.Intersection(members...)
	case *Object:
		fields := make([]Field, len(t.Fields))
		for i, field := range t.Fields {
			field.Type = mapped(field.Type)
			fields[i] = field
		}
		index := make([]IndexSignature, len(t.Index))
		for i, sig := range t.Index {
			index[i] = IndexSignature{Key: sig.Key, Value: mapped(sig.Value)}
		}
		return ctx.Object(fields, index...)
	case *Array:
		if t.Readonly {
			return ctx.ReadonlyArray(mapped(t.Elem))
		}
		return ctx.Array(mapped(t.Elem))
	case *Tuple:
		elems := make([]TupleElem, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = TupleElem{Type: mapped(e.Type), Optional: e.Optional}
		}
		var rest Type
		if t.Rest != nil {
			rest = mapped(t.Rest)
		}
		return ctx.Tuple(elems, rest, t.Readonly)
	case *Func:
		sig := Func{TypeParams: t.TypeParams, Construct: t.Construct, Ret: mapped(t.Ret)}
		sig.Params = make([]Param, len(t.Params))
		for i, p := range t.Params {
			p.Type = mapped(p.Type)
			sig.Params[i] = p
		}
		if t.Predicate != nil {
			pred := *t.Predicate
			if pred.Type != nil {
				pred.Type = mapped(pred.Type)
			}
			sig.Predicate = &pred
		}
		return ctx.Func(sig)
	case *Applied:
		args := make([]Type, len(t.Args))
		for i, arg := range t.Args {
			args[i] = mapped(arg)
		}
		return ctx.Apply(t.Def, args...)
	}
	return t
}
