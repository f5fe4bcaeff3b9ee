package types

import (
	"strconv"
)

// Presence tells whether values of a type carry a property
type Presence uint8

const (
	// PresenceUnknown is reported for types whose shape is not known, like unknown
	PresenceUnknown Presence = iota
	PresenceAbsent
	PresenceOptional
	PresenceRequired
)

// Property is the type of reading name on a value of type t, joined over the
// members of t carrying it. Optional fields include undefined.
// ok is false when no member of t declares the property.
func (ctx *TypeCtx) Property(t Type, name string) (prop Type, ok bool) {
	if t == Never {
		return Never, true
	}
	var found []Type
	for _, m := range Members(t) {
		if pt, ok := ctx.memberProperty(m, name); ok {
			found = append(found, pt)
		}
	}
	if len(found) == 0 {
		return nil, false
	}
	return ctx.Union(found...), true
}

func (ctx *TypeCtx) memberProperty(m Type, name string) (Type, bool) {
	switch m := m.(type) {
	case *Extreme:
		if m == Any || m == Unknown {
			return m, true
		}
		return nil, false
	case *Applied:
		if m.Def.Circular() {
			return nil, false
		}
		return ctx.Property(ctx.Expand(m), name)
	case *TypeParam:
		return ctx.Property(m.Constraint, name)
	case *Union:
		return ctx.Property(m, name)
	case *Intersection:
		var found []Type
		for _, im := range m.Members {
			if pt, ok := ctx.memberProperty(im, name); ok {
				found = append(found, pt)
			}
		}
		if len(found) == 0 {
			return nil, false
		}
		return ctx.Intersection(found...), true
	case *Array:
		if isIndex(name) {
			return m.Elem, true
		}
	case *Tuple:
		if i, err := strconv.Atoi(name); err == nil && i >= 0 {
			switch {
			case i < len(m.Elems) && m.Elems[i].Optional:
				return ctx.Union(m.Elems[i].Type, Undefined), true
			case i < len(m.Elems):
				return m.Elems[i].Type, true
			case m.Rest != nil:
				return m.Rest, true
			}
			return nil, false
		}
	}

	obj, ok := ctx.apparent(m)
	if !ok {
		return nil, false
	}
	if f, ok := obj.Field(name); ok {
		if f.Optional {
			return ctx.Union(f.Type, Undefined), true
		}
		return f.Type, true
	}
	if v, ok := obj.IndexFor(Number); ok && isIndex(name) {
		return v, true
	}
	if v, ok := obj.IndexFor(String); ok {
		return v, true
	}
	return nil, false
}

// PropertyPresence tells whether the member m of a union declares name,
// the way the in operator sees it
func (ctx *TypeCtx) PropertyPresence(m Type, name string) Presence {
	switch m := m.(type) {
	case *Extreme:
		if m == Any || m == Unknown {
			return PresenceUnknown
		}
		return PresenceAbsent
	case *Applied:
		if m.Def.Circular() {
			return PresenceUnknown
		}
		return ctx.PropertyPresence(ctx.Expand(m), name)
	case *TypeParam:
		return PresenceUnknown
	case *Union:
		best := PresenceAbsent
		for _, um := range m.Members {
			best = max(best, ctx.PropertyPresence(um, name))
		}
		return best
	case *Intersection:
		best := PresenceAbsent
		for _, im := range m.Members {
			best = max(best, ctx.PropertyPresence(im, name))
		}
		return best
	case *Primitive, *Literal:
		// in throws on primitives
		return PresenceAbsent
	}
	if _, ok := m.(*Tuple); ok && isIndex(name) {
		if _, ok := ctx.memberProperty(m, name); ok {
			return PresenceRequired
		}
		return PresenceAbsent
	}
	obj, ok := ctx.apparent(m)
	if !ok {
		return PresenceAbsent
	}
	if f, ok := obj.Field(name); ok {
		if f.Optional {
			return PresenceOptional
		}
		return PresenceRequired
	}
	if _, ok := obj.IndexFor(String); ok {
		return PresenceOptional
	}
	if _, ok := obj.IndexFor(Number); ok && isIndex(name) {
		return PresenceOptional
	}
	if _, ok := m.(*Array); ok && isIndex(name) {
		return PresenceOptional
	}
	return PresenceAbsent
}

func isIndex(name string) bool {
	i, err := strconv.Atoi(name)
	return err == nil && i >= 0
}
