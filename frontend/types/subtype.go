package types

import (
	"github.com/hashicorp/go-set/v3"
)

type typePair struct {
	sub, super Type
}

func (p typePair) Hash() uint64 {
	return p.sub.Hash()*31 ^ p.super.Hash()*37
}

// subtypeChecker holds the pairs assumed to hold while expanding generic
// applications, so that recursive definitions terminate
type subtypeChecker struct {
	ctx     *TypeCtx
	assumed *set.HashSet[typePair, uint64]
	// usedAssumption is set when a result relied on an assumption, in which
	// case it must not be memoised
	usedAssumption bool
}

// IsSubtype reports whether every value of sub is a value of super.
//
// The relation is structural: object fields, array and tuple elements and
// return types are covariant, parameters are contravariant, extra source
// fields are allowed and readonly fields are ignored.
func (ctx *TypeCtx) IsSubtype(sub, super Type) bool {
	if sub == super {
		return true
	}
	key := typePair{sub, super}
	if cached, ok := ctx.subtypeMemo.Load(key); ok {
		return cached.(bool)
	}
	c := &subtypeChecker{ctx: ctx, assumed: set.NewHashSet[typePair, uint64](0)}
	res := c.check(sub, super)
	if !c.usedAssumption {
		ctx.subtypeMemo.Store(key, res)
	}
	return res
}

func (c *subtypeChecker) check(sub, super Type) bool {
	if sub == super {
		return true
	}
	switch {
	case super == Unknown, super == Any:
		return true
	case sub == Never:
		return true
	case sub == Any:
		return super != Never
	case super == Never, sub == Unknown:
		return false
	case super == Void:
		return sub == Undefined
	}

	switch s := sub.(type) {
	case *Union:
		for _, m := range s.Members {
			if !c.check(m, super) {
				return false
			}
		}
		return true
	case *TypeParam:
		return c.check(s.Constraint, super)
	}

	switch sup := super.(type) {
	case *Intersection:
		for _, m := range sup.Members {
			if !c.check(sub, m) {
				return false
			}
		}
		return true
	case *Union:
		if i, ok := sub.(*Intersection); ok && c.someMember(i, super) {
			return true
		}
		for _, m := range sup.Members {
			if c.check(sub, m) {
				return true
			}
		}
		// boolean is only assignable to a union holding both of its literals,
		// which normalisation collapses, so no special case is needed here
		return false
	}

	if i, ok := sub.(*Intersection); ok {
		return c.someMember(i, super)
	}

	if a, ok := sub.(*Applied); ok {
		if b, ok := super.(*Applied); ok && a.Def == b.Def {
			return c.appliedArgs(a, b)
		}
		if a.Def.Circular() {
			return false
		}
		return c.assuming(sub, super, func() bool { return c.check(c.ctx.Expand(a), super) })
	}
	if b, ok := super.(*Applied); ok {
		if b.Def.Circular() {
			return false
		}
		return c.assuming(sub, super, func() bool { return c.check(sub, c.ctx.Expand(b)) })
	}

	switch sup := super.(type) {
	case *Primitive:
		if lit, ok := sub.(*Literal); ok {
			return lit.Base == sup
		}
		return false
	case *Literal, *TypeParam, *Extreme:
		return false
	case *Object:
		return c.object(sub, sup)
	case *Array:
		return c.array(sub, sup)
	case *Tuple:
		return c.tuple(sub, sup)
	case *Func:
		return c.function(sub, sup)
	}
	return false
}

func (c *subtypeChecker) someMember(i *Intersection, super Type) bool {
	for _, m := range i.Members {
		if c.check(m, super) {
			return true
		}
	}
	return false
}

func (c *subtypeChecker) assuming(sub, super Type, f func() bool) bool {
	pair := typePair{sub, super}
	if c.assumed.Contains(pair) {
		c.usedAssumption = true
		return true
	}
	c.assumed.Insert(pair)
	defer c.assumed.Remove(pair)
	return f()
}

func (c *subtypeChecker) appliedArgs(a, b *Applied) bool {
	variances := a.Def.Variances()
	for i := range a.Args {
		x, y := a.Args[i], b.Args[i]
		if x == y {
			continue
		}
		v := variances[i]
		ok := v.covariant && c.check(x, y) || v.contravariant && c.check(y, x)
		if !ok {
			return false
		}
	}
	return true
}

// apparent returns the object shape whose fields are available on values of t,
// for types that are not object shapes themselves
func (ctx *TypeCtx) apparent(t Type) (*Object, bool) {
	switch t := t.(type) {
	case *Object:
		return t, true
	case *Literal:
		return ctx.apparent(t.Base)
	case *Primitive:
		switch t {
		case Null, Undefined:
			return nil, false
		case String:
			return ctx.Object([]Field{{Name: "length", Type: Number, Readonly: true}}), true
		}
		return ctx.Object(nil), true
	case *Array, *Tuple:
		return ctx.Object([]Field{{Name: "length", Type: Number}}), true
	case *Func:
		return ctx.Object(nil), true
	case *Applied:
		if t.Def.Circular() {
			return nil, false
		}
		return ctx.apparent(ctx.Expand(t))
	}
	return nil, false
}

func (c *subtypeChecker) object(sub Type, super *Object) bool {
	src, ok := c.ctx.apparent(sub)
	if !ok {
		return false
	}
	for _, want := range super.Fields {
		got, ok := src.Field(want.Name)
		if !ok {
			if !want.Optional {
				return false
			}
			continue
		}
		if got.Optional && !want.Optional {
			return false
		}
		if !c.check(got.Type, want.Type) {
			return false
		}
	}
	for _, sig := range super.Index {
		if sig.Key == Number {
			if !c.numericIndex(sub, sig.Value) {
				return false
			}
			continue
		}
		for _, f := range src.Fields {
			if !c.check(f.Type, sig.Value) {
				return false
			}
		}
		if v, ok := src.IndexFor(String); ok && !c.check(v, sig.Value) {
			return false
		}
	}
	return true
}

func (c *subtypeChecker) numericIndex(sub Type, value Type) bool {
	switch s := sub.(type) {
	case *Array:
		return c.check(s.Elem, value)
	case *Tuple:
		for _, e := range s.Elems {
			if !c.check(e.Type, value) {
				return false
			}
		}
		return s.Rest == nil || c.check(s.Rest, value)
	case *Object:
		if v, ok := s.IndexFor(Number); ok {
			return c.check(v, value)
		}
		return true
	}
	return false
}

func (c *subtypeChecker) array(sub Type, super *Array) bool {
	switch s := sub.(type) {
	case *Array:
		if s.Readonly && !super.Readonly {
			return false
		}
		return c.check(s.Elem, super.Elem)
	case *Tuple:
		if s.Readonly && !super.Readonly {
			return false
		}
		for _, e := range s.Elems {
			if !c.check(e.Type, super.Elem) {
				return false
			}
		}
		return s.Rest == nil || c.check(s.Rest, super.Elem)
	}
	return false
}

func (c *subtypeChecker) tuple(sub Type, super *Tuple) bool {
	s, ok := sub.(*Tuple)
	if !ok {
		return false
	}
	if s.Readonly && !super.Readonly {
		return false
	}
	for i, want := range super.Elems {
		if i >= len(s.Elems) {
			if !want.Optional {
				return false
			}
			if s.Rest != nil && !c.check(s.Rest, want.Type) {
				return false
			}
			continue
		}
		got := s.Elems[i]
		if got.Optional && !want.Optional {
			return false
		}
		if !c.check(got.Type, want.Type) {
			return false
		}
	}
	for _, extra := range s.Elems[min(len(super.Elems), len(s.Elems)):] {
		if super.Rest == nil || !c.check(extra.Type, super.Rest) {
			return false
		}
	}
	if s.Rest != nil {
		return super.Rest != nil && c.check(s.Rest, super.Rest)
	}
	return true
}

func (c *subtypeChecker) function(sub Type, super *Func) bool {
	s, ok := sub.(*Func)
	if !ok || s.Construct != super.Construct {
		return false
	}
	// the source may ignore trailing parameters, but may not require more
	// arguments than the target supplies
	if s.RequiredParams() > len(super.Params) {
		return false
	}
	for i, p := range s.Params {
		if i >= len(super.Params) {
			break
		}
		if !c.check(super.Params[i].Type, p.Type) {
			return false
		}
	}
	if super.Ret == Void {
		return true
	}
	return c.check(s.Ret, super.Ret)
}
