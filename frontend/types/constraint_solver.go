package types

import (
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/internal/log"
	"github.com/hashicorp/go-set/v3"
)

var solverLogger = log.DefaultLogger.With("section", "solver")

// Instantiation is the outcome of resolving the type parameters of a
// generic signature at one call site
type Instantiation struct {
	Subst map[*TypeParam]Type
	// Params and Ret are the signature's parameter and return types after substitution
	Params []Type
	Ret    Type
	// Predicate is the substituted predicate of the signature, if it has one
	Predicate *Predicate
	// Diagnostics are Unlocated: callers place them at the call site
	Diagnostics []diag.Diagnostic
}

// Instantiate resolves the type parameters of sig from the argument types of a call.
//
// Explicit type arguments, when given, take precedence positionally.
// Otherwise every parameter type is unified against its argument, collecting
// candidates per type parameter; disagreeing candidates are joined into a
// union. A type parameter is always resolved to the argument's own type,
// never to its constraint. Parameters left without candidates use their
// default, or Unknown with an UninferredTypeParameter diagnostic. Resolved
// types failing their constraint are reported as ConstraintViolation and
// replaced by the constraint.
func (ctx *TypeCtx) Instantiate(name string, sig *Func, args []Type, explicit []Type) Instantiation {
	res := Instantiation{Subst: make(map[*TypeParam]Type, len(sig.TypeParams))}
	if len(sig.TypeParams) == 0 {
		res.Params = paramTypes(sig)
		res.Ret = sig.Ret
		res.Predicate = sig.Predicate
		return res
	}

	u := unifier{
		ctx:        ctx,
		params:     sig.TypeParams,
		candidates: make(map[*TypeParam][]Type),
		expanded:   set.New[typePair](0),
	}
	for i, p := range sig.Params {
		if i >= len(args) || args[i] == nil {
			continue
		}
		u.unify(p.Type, args[i])
	}

	for i, tp := range sig.TypeParams {
		if i < len(explicit) && explicit[i] != nil {
			res.Subst[tp] = explicit[i]
			continue
		}
		if cands := u.candidates[tp]; len(cands) > 0 {
			res.Subst[tp] = ctx.Union(cands...)
			continue
		}
		if tp.Default != nil {
			res.Subst[tp] = ctx.Substitute(tp.Default, res.Subst)
			continue
		}
		res.Subst[tp] = Unknown
		res.Diagnostics = append(res.Diagnostics, diag.New(diag.NewUninferredTypeParameter{
			Location: diag.Unlocated,
			Param:    tp.Name,
			Callee:   name,
		}))
	}

	// constraints may refer to other type parameters, so check them once
	// every parameter has a candidate
	resolved := make(map[*TypeParam]Type, len(res.Subst))
	for tp, t := range res.Subst {
		resolved[tp] = t
	}
	for _, tp := range sig.TypeParams {
		constraint := ctx.Substitute(tp.Constraint, resolved)
		if ctx.IsSubtype(resolved[tp], constraint) {
			continue
		}
		res.Diagnostics = append(res.Diagnostics, diag.New(diag.NewConstraintViolation{
			Location:   diag.Unlocated,
			Param:      tp.Name,
			Resolved:   resolved[tp],
			Constraint: constraint,
		}))
		res.Subst[tp] = constraint
	}

	res.Params = make([]Type, len(sig.Params))
	for i, p := range sig.Params {
		res.Params[i] = ctx.Substitute(p.Type, res.Subst)
	}
	res.Ret = ctx.Substitute(sig.Ret, res.Subst)
	if sig.Predicate != nil {
		pred := *sig.Predicate
		if pred.Type != nil {
			pred.Type = ctx.Substitute(pred.Type, res.Subst)
		}
		res.Predicate = &pred
	}
	solverLogger.Debug("instantiated call", "callee", name, "ret", res.Ret.String(), "diagnostics", len(res.Diagnostics))
	return res
}

func paramTypes(sig *Func) []Type {
	res := make([]Type, len(sig.Params))
	for i, p := range sig.Params {
		res[i] = p.Type
	}
	return res
}

type unifier struct {
	ctx        *TypeCtx
	params     []*TypeParam
	candidates map[*TypeParam][]Type
	// expanded holds the (parameter, application) pairs already unified
	// through the expansion of the application, for recursive definitions
	expanded *set.Set[typePair]
}

func (u *unifier) owns(tp *TypeParam) bool {
	for _, p := range u.params {
		if p == tp {
			return true
		}
	}
	return false
}

// unify matches the shape of a parameter type against an argument type,
// recording a candidate wherever the parameter mentions a type parameter
func (u *unifier) unify(param, arg Type) {
	if arg == Never || !Mentions(param, u.params) {
		return
	}
	if a, ok := arg.(*Applied); ok && u.needsExpansion(param, a) {
		if !a.Def.Circular() && u.expanded.Insert(typePair{param, a}) {
			u.unify(param, u.ctx.Expand(a))
		}
		return
	}
	switch p := param.(type) {
	case *TypeParam:
		if u.owns(p) {
			u.candidates[p] = append(u.candidates[p], arg)
		}
	case *Array:
		switch a := arg.(type) {
		case *Array:
			u.unify(p.Elem, a.Elem)
		case *Tuple:
			// an array literal informs the element type with its widened elements
			elems := make([]Type, 0, len(a.Elems)+1)
			for _, e := range a.Elems {
				elems = append(elems, u.ctx.WidenLiteral(e.Type))
			}
			if a.Rest != nil {
				elems = append(elems, a.Rest)
			}
			u.unify(p.Elem, u.ctx.Union(elems...))
		case *Union:
			u.unifyMembers(p, a)
		}
	case *Tuple:
		switch a := arg.(type) {
		case *Tuple:
			for i, e := range p.Elems {
				if i < len(a.Elems) {
					u.unify(e.Type, a.Elems[i].Type)
				}
			}
			if p.Rest != nil {
				for _, e := range a.Elems[min(len(p.Elems), len(a.Elems)):] {
					u.unify(p.Rest, e.Type)
				}
				if a.Rest != nil {
					u.unify(p.Rest, a.Rest)
				}
			}
		case *Union:
			u.unifyMembers(p, a)
		}
	case *Object:
		if au, ok := arg.(*Union); ok {
			u.unifyMembers(p, au)
			return
		}
		a, ok := u.ctx.apparent(arg)
		if !ok {
			return
		}
		for _, f := range p.Fields {
			if af, ok := a.Field(f.Name); ok {
				u.unify(f.Type, af.Type)
			}
		}
		for _, sig := range p.Index {
			key, _ := sig.Key.(*Primitive)
			if v, ok := a.IndexFor(key); ok {
				u.unify(sig.Value, v)
			}
		}
	case *Func:
		a, ok := arg.(*Func)
		if !ok {
			return
		}
		for i, pp := range p.Params {
			if i < len(a.Params) {
				u.unify(pp.Type, a.Params[i].Type)
			}
		}
		u.unify(p.Ret, a.Ret)
	case *Applied:
		if a, ok := arg.(*Applied); ok && a.Def == p.Def {
			for i := range p.Args {
				u.unify(p.Args[i], a.Args[i])
			}
			return
		}
		if !p.Def.Circular() {
			u.unify(u.ctx.Expand(p), arg)
		}
	case *Union:
		// `T | undefined` against `number | undefined` informs T with number:
		// argument members already covered by the fixed part of the union are
		// not candidates
		var fixed, generic []Type
		for _, m := range p.Members {
			if Mentions(m, u.params) {
				generic = append(generic, m)
			} else {
				fixed = append(fixed, m)
			}
		}
		fixedUnion := u.ctx.Union(fixed...)
		rest := u.ctx.Filter(arg, func(m Type) bool { return !u.ctx.IsSubtype(m, fixedUnion) })
		if rest == Never {
			return
		}
		for _, g := range generic {
			u.unify(g, rest)
		}
	case *Intersection:
		for _, m := range p.Members {
			u.unify(m, arg)
		}
	}
}

// needsExpansion tells whether a structured param can only be matched
// against the body of the application a. Type parameters take a as it is,
// unions and intersections pass it on to their members.
func (u *unifier) needsExpansion(param Type, a *Applied) bool {
	switch p := param.(type) {
	case *Array, *Tuple, *Object, *Func:
		return true
	case *Applied:
		return p.Def != a.Def
	}
	return false
}

// unifyMembers unifies a structured parameter type with each member of a
// union argument of the same shape
func (u *unifier) unifyMembers(param Type, arg *Union) {
	for _, m := range arg.Members {
		u.unify(param, m)
	}
}
