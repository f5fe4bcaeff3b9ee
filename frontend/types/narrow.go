package types

import (
	"slices"
)

// Narrow keeps the members of subject that are compatible with predicate.
//
// A member that is a subtype of predicate is kept whole. A member that is
// only partially covered, like string against "a", is replaced by the members
// of predicate it contains. Narrowing by Unknown or Any gains no information
// and narrowing Never is always Never.
func (ctx *TypeCtx) Narrow(subject, predicate Type) Type {
	switch {
	case predicate == Unknown, predicate == Any:
		return subject
	case subject == Never:
		return Never
	case subject == Unknown, subject == Any:
		return predicate
	}
	predMembers := expandedMembers(predicate)
	var kept []Type
	for _, m := range expandedMembers(subject) {
		if ctx.IsSubtype(m, predicate) {
			kept = append(kept, m)
			continue
		}
		if tp, ok := m.(*TypeParam); ok {
			if n := ctx.Narrow(tp.Constraint, predicate); n != Never {
				kept = append(kept, ctx.Intersection(tp, n))
			}
			continue
		}
		for _, p := range predMembers {
			if ctx.IsSubtype(p, m) {
				kept = append(kept, p)
			}
		}
	}
	return ctx.Union(kept...)
}

// Widen keeps the members of subject that are not compatible with predicate.
// It is the complement of Narrow used on the negated side of a guard.
func (ctx *TypeCtx) Widen(subject, predicate Type) Type {
	switch {
	case predicate == Unknown, predicate == Any:
		return Never
	case subject == Unknown, subject == Any:
		return subject
	}
	return ctx.Filter(subject, func(m Type) bool {
		return !ctx.IsSubtype(m, predicate)
	})
}

// Filter keeps the members of subject for which keep holds.
// boolean is considered as `true | false`.
func (ctx *TypeCtx) Filter(subject Type, keep func(Type) bool) Type {
	members := expandedMembers(subject)
	kept := slices.DeleteFunc(slices.Clone(members), func(m Type) bool { return !keep(m) })
	if len(kept) == len(members) {
		return subject
	}
	return ctx.Union(kept...)
}

// Overlaps reports whether a and b share at least one value
func (ctx *TypeCtx) Overlaps(a, b Type) bool {
	return ctx.Narrow(a, b) != Never
}

// WidenLiteral replaces every literal member of t by its primitive
func (ctx *TypeCtx) WidenLiteral(t Type) Type {
	members := Members(t)
	widened := make([]Type, len(members))
	for i, m := range members {
		if lit, ok := m.(*Literal); ok {
			widened[i] = lit.Base
			continue
		}
		widened[i] = m
	}
	return ctx.Union(widened...)
}

// IsUnit reports whether t has exactly one value, so that comparing
// against it proves equality on one side and difference on the other
func IsUnit(t Type) bool {
	switch t := t.(type) {
	case *Literal:
		return true
	case *Primitive:
		return t == Null || t == Undefined
	}
	return t == Void
}

// RemoveNullish removes null, undefined and void from t
func (ctx *TypeCtx) RemoveNullish(t Type) Type {
	return ctx.Filter(t, func(m Type) bool { return !IsNullish(m) })
}

func IsNullish(t Type) bool {
	return t == Null || t == Undefined || t == Void
}

// CanBeFalsy reports whether some value of the member m is falsy
func CanBeFalsy(m Type) bool {
	switch m := m.(type) {
	case *Literal:
		return m.Value == `""` || m.Value == "0" || m.Value == "-0" || m.Value == "0n" || m == False || m.Value == "NaN"
	case *Primitive:
		return m != Symbol
	case *Extreme:
		return m != Never
	case *TypeParam:
		return CanBeFalsy(m.Constraint) || m.Constraint == Unknown
	case *Union:
		return slices.ContainsFunc(m.Members, CanBeFalsy)
	}
	return false
}

// CanBeTruthy reports whether some value of the member m is truthy
func CanBeTruthy(m Type) bool {
	if IsNullish(m) || m == Never || m == False {
		return false
	}
	if lit, ok := m.(*Literal); ok {
		return !CanBeFalsy(lit)
	}
	return true
}

// TypeofTag returns the result of the typeof operator on values of the
// member m, or "" when it cannot be determined
func TypeofTag(m Type) string {
	switch m := m.(type) {
	case *Literal:
		return m.Base.String()
	case *Primitive:
		if m == Null {
			return "object"
		}
		return m.String()
	case *Object, *Array, *Tuple, *Applied:
		return "object"
	case *Func:
		return "function"
	case *TypeParam:
		return TypeofTag(m.Constraint)
	case *Intersection:
		tag := ""
		for _, im := range m.Members {
			switch t := TypeofTag(im); t {
			case "":
			case "object":
				tag = t
			default:
				return t
			}
		}
		return tag
	case *Extreme:
		if m == Void {
			return "undefined"
		}
	}
	return ""
}

// TypeofNames lists the strings the typeof operator can produce
var TypeofNames = []string{"string", "number", "boolean", "bigint", "symbol", "undefined", "object", "function"}

// TypeofType is the type of the values for which typeof returns name.
// ok is false for names typeof never produces.
func (ctx *TypeCtx) TypeofType(name string) (t Type, ok bool) {
	switch name {
	case "object":
		return ctx.Union(Null, ctx.Object(nil)), true
	case "function":
		return ctx.Func(Func{Params: []Param{{Name: "args", Type: ctx.Array(Any)}}, Ret: Unknown}), true
	}
	if p, ok := PrimitiveByName(name); ok && p != Null {
		return p, true
	}
	return nil, false
}
