package types

import (
	"fmt"
	"slices"

	"github.com/cottand/narrow/frontend/diag"
)

// Union normalises members into a single type: nested unions are flattened,
// never is dropped, duplicates are removed, literals already covered by their
// primitive are absorbed and `true | false` collapses to boolean.
// An empty union is Never and a union of one member is that member.
func (ctx *TypeCtx) Union(members ...Type) Type {
	flat := make([]Type, 0, len(members))
	for _, m := range members {
		switch m := m.(type) {
		case nil:
			continue
		case *Union:
			flat = append(flat, m.Members...)
		default:
			if m != Never {
				flat = append(flat, m)
			}
		}
	}
	switch {
	case slices.Contains(flat, Type(Any)):
		return Any
	case slices.Contains(flat, Type(Unknown)):
		return Unknown
	}
	if slices.Contains(flat, Type(True)) && slices.Contains(flat, Type(False)) {
		flat = append(flat, Boolean)
	}

	present := make(map[*Primitive]bool)
	for _, m := range flat {
		if p, ok := m.(*Primitive); ok {
			present[p] = true
		}
	}
	flat = slices.DeleteFunc(flat, func(m Type) bool {
		lit, ok := m.(*Literal)
		return ok && present[lit.Base]
	})
	flat = canonical(flat)

	switch len(flat) {
	case 0:
		return Never
	case 1:
		return flat[0]
	}
	u := &Union{Members: flat}
	u.hash = u.computeHash()
	return intern(ctx, u)
}

// Members returns the members of t if it is a union, otherwise t itself
func Members(t Type) []Type {
	if u, ok := t.(*Union); ok {
		return u.Members
	}
	if t == Never {
		return nil
	}
	return []Type{t}
}

// expandedMembers is Members with boolean split into its two literals
func expandedMembers(t Type) []Type {
	ms := Members(t)
	if !slices.Contains(ms, Type(Boolean)) {
		return ms
	}
	out := make([]Type, 0, len(ms)+1)
	for _, m := range ms {
		if m == Boolean {
			out = append(out, True, False)
			continue
		}
		out = append(out, m)
	}
	return out
}

// Intersection merges members into a single type.
//
// Unions are distributed over, distinct primitives or literals collapse to
// Never, and object shapes are merged field by field. A field whose types
// cannot be reconciled becomes never and is reported as an IntersectionConflict.
func (ctx *TypeCtx) Intersection(members ...Type) Type {
	flat := make([]Type, 0, len(members))
	for _, m := range members {
		if i, ok := m.(*Intersection); ok {
			flat = append(flat, i.Members...)
			continue
		}
		switch m {
		case nil, Unknown:
			continue
		case Never:
			return Never
		case Any:
			return Any
		}
		flat = append(flat, m)
	}

	for i, m := range flat {
		u, ok := m.(*Union)
		if !ok {
			continue
		}
		// (A | B) & C == (A & C) | (B & C)
		rest := slices.Delete(slices.Clone(flat), i, i+1)
		distributed := make([]Type, 0, len(u.Members))
		for _, um := range u.Members {
			distributed = append(distributed, ctx.Intersection(append([]Type{um}, rest...)...))
		}
		return ctx.Union(distributed...)
	}

	var atom Type
	var objects []*Object
	var others []Type
	for _, m := range flat {
		switch m := m.(type) {
		case *Primitive, *Literal:
			merged, ok := intersectAtoms(atom, m)
			if !ok {
				return Never
			}
			atom = merged
		case *Object:
			objects = append(objects, m)
		default:
			others = append(others, m)
		}
	}

	remaining := others
	if atom != nil {
		remaining = append(remaining, atom)
	}
	if len(objects) > 0 {
		remaining = append(remaining, ctx.mergeObjects(objects))
	}
	remaining = canonical(remaining)

	switch len(remaining) {
	case 0:
		return Unknown
	case 1:
		return remaining[0]
	}
	i := &Intersection{Members: remaining}
	i.hash = i.computeHash()
	return intern(ctx, i)
}

func intersectAtoms(prev, next Type) (Type, bool) {
	if prev == nil || prev == next {
		return next, true
	}
	switch {
	case baseOf(prev) != baseOf(next):
		return nil, false
	case isLiteral(prev) && isLiteral(next):
		// distinct literals of the same base
		return nil, false
	case isLiteral(prev):
		return prev, true
	default:
		return next, true
	}
}

func baseOf(t Type) *Primitive {
	switch t := t.(type) {
	case *Literal:
		return t.Base
	case *Primitive:
		return t
	}
	return nil
}

func isLiteral(t Type) bool {
	_, ok := t.(*Literal)
	return ok
}

func (ctx *TypeCtx) mergeObjects(objects []*Object) *Object {
	if len(objects) == 1 {
		return objects[0]
	}
	var order []string
	fieldsByName := make(map[string][]Field)
	var index []IndexSignature
	for _, o := range objects {
		for _, f := range o.Fields {
			if _, seen := fieldsByName[f.Name]; !seen {
				order = append(order, f.Name)
			}
			fieldsByName[f.Name] = append(fieldsByName[f.Name], f)
		}
		index = append(index, o.Index...)
	}

	merged := make([]Field, 0, len(order))
	for _, name := range order {
		fs := fieldsByName[name]
		field := Field{Name: name, Optional: true}
		fieldTypes := make([]Type, 0, len(fs))
		for _, f := range fs {
			field.Optional = field.Optional && f.Optional
			field.Readonly = field.Readonly || f.Readonly
			fieldTypes = append(fieldTypes, f.Type)
		}
		field.Type = ctx.Intersection(fieldTypes...)
		if field.Type == Never && !slices.Contains(fieldTypes, Type(Never)) {
			conflicting := make([]fmt.Stringer, len(fieldTypes))
			for i, t := range fieldTypes {
				conflicting[i] = t
			}
			ctx.report(diag.New(diag.NewIntersectionConflict{
				Location: diag.Unlocated,
				Field:    name,
				Types:    conflicting,
			}))
		}
		merged = append(merged, field)
	}
	return ctx.Object(merged, index...)
}
