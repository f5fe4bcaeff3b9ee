package narrowing

import (
	"cmp"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/hashicorp/go-set/v3"
)

// CheckExhaustive returns the NonExhaustiveMatch to report for subject when
// residual, the type left after every case of a match, is not never.
//
// When tagField is set, the unhandled variants are named by the values of
// that field. Otherwise, or for members without it, they are named by their
// own spelling.
func CheckExhaustive(ctx *types.TypeCtx, subject string, residual types.Type, tagField string) *diag.NewNonExhaustiveMatch {
	if residual == types.Never {
		return nil
	}
	missing := set.NewTreeSet[string](cmp.Compare[string])
	for _, m := range types.Members(residual) {
		if tagField == "" {
			missing.Insert(m.String())
			continue
		}
		tag, ok := ctx.Property(m, tagField)
		if !ok || !allUnits(tag) {
			missing.Insert(m.String())
			continue
		}
		for _, t := range types.Members(tag) {
			missing.Insert(t.String())
		}
	}
	return &diag.NewNonExhaustiveMatch{Subject: subject, Missing: missing.Slice()}
}

// allUnits reports whether t is a finite union of unit types, so that
// matching can exhaust it
func allUnits(t types.Type) bool {
	members := types.Members(t)
	for _, m := range members {
		if m != types.Boolean && !types.IsUnit(m) {
			return false
		}
	}
	return len(members) > 0
}

// TagField finds the discriminant of a union of object types: a field that
// every member declares with a unit type. It returns "" when there is none.
func TagField(ctx *types.TypeCtx, t types.Type) string {
	members := types.Members(t)
	if len(members) == 0 {
		return ""
	}
	first, ok := members[0].(*types.Object)
	if !ok {
		return ""
	}
candidates:
	for _, f := range first.Fields {
		for _, m := range members {
			ft, ok := ctx.Property(m, f.Name)
			if !ok || !allUnits(ft) {
				continue candidates
			}
		}
		return f.Name
	}
	return ""
}

// checkSwitch verifies that a switch without default covers every value of
// its discriminant, when that is a finite union or the tag of a
// discriminated union
func (a *analyzer) checkSwitch(term *cfg.Switch, facts Facts, loc cfg.Location) {
	if a.declaredOnly {
		return
	}
	subject, field := "", ""
	if prop, ok := term.Discriminant.(*ir.Property); ok {
		if key, ok := ir.RefKey(prop.X); ok {
			subject, field = key, prop.Name
		}
	}
	if subject == "" {
		key, ok := ir.RefKey(term.Discriminant)
		if !ok {
			return
		}
		subject = key
	}

	discriminant, _ := ir.RefKey(term.Discriminant)
	declared, ok := a.resolve(discriminant, Facts{}, false)
	if !ok || !allUnits(declared) {
		return
	}
	if field != "" {
		if obj, ok := a.resolve(subject, Facts{}, false); !ok || TagField(a.ctx, obj) != field {
			// a finite property of a plain object: check the property itself
			subject, field = discriminant, ""
		}
	}

	residual, ok := a.resolve(subject, a.defaultFacts(term, facts), true)
	if !ok {
		return
	}
	if missing := CheckExhaustive(a.ctx, discriminant, residual, field); missing != nil {
		a.report(*missing, loc)
	}
}

// checkNeverBinding checks the `const x: never = subject` idiom asserting
// that every variant of subject was handled before
func (a *analyzer) checkNeverBinding(subject string, facts Facts, loc cfg.Location) Facts {
	residual, ok := a.resolve(subject, facts, true)
	if !ok || a.declaredOnly {
		return facts
	}
	if missing := CheckExhaustive(a.ctx, subject, residual, TagField(a.ctx, residual)); missing != nil {
		a.report(*missing, loc)
	}
	return facts
}
