package narrowing

import (
	"fmt"
	"slices"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
)

// applyEdge narrows facts for the edge of a branch on g: the then edge when
// then is set. A nil guard narrows nothing.
func (a *analyzer) applyEdge(g cfg.Guard, facts Facts, then bool) Facts {
	if g == nil || a.declaredOnly {
		return facts
	}
	return a.applyCheck(g, facts, then != g.Negated())
}

// applyCheck narrows facts assuming the check of g, ignoring its negation,
// evaluated to positive
func (a *analyzer) applyCheck(g cfg.Guard, facts Facts, positive bool) Facts {
	ctx := a.ctx
	switch g := g.(type) {
	case cfg.TypeofCheck:
		return a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			return a.narrowTypeof(cur, g.TypeName, positive)
		})

	case cfg.InstanceofCheck:
		ctor, ok := a.quietType(g.Ctor, facts).(*types.Func)
		if !ok || !ctor.Construct {
			if positive {
				return a.narrowRef(facts, g.Ref.Key, func(types.Type) types.Type { return types.Never })
			}
			return facts
		}
		return a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			if positive {
				return ctx.Narrow(cur, ctor.Ret)
			}
			return ctx.Widen(cur, ctor.Ret)
		})

	case cfg.InCheck:
		return a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			return ctx.Filter(cur, func(m types.Type) bool {
				presence := ctx.PropertyPresence(m, g.Property)
				if positive {
					return presence != types.PresenceAbsent
				}
				return presence != types.PresenceRequired
			})
		})

	case cfg.Equality:
		leftType := a.quietType(g.Left.Expr, facts)
		rightType := a.quietType(g.Right.Expr, facts)
		if g.Left.IsRef {
			facts = a.narrowRef(facts, g.Left.Ref.Key, func(cur types.Type) types.Type {
				return a.narrowEquality(cur, rightType, g.Strict, positive)
			})
		}
		if g.Right.IsRef {
			facts = a.narrowRef(facts, g.Right.Ref.Key, func(cur types.Type) types.Type {
				return a.narrowEquality(cur, leftType, g.Strict, positive)
			})
		}
		return facts

	case cfg.Truthiness:
		return a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			if positive {
				return ctx.Filter(cur, types.CanBeTruthy)
			}
			return ctx.Filter(cur, types.CanBeFalsy)
		})

	case cfg.DiscriminantEquals:
		lit := a.literalType(g.Literal)
		facts = a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			return ctx.Filter(cur, func(m types.Type) bool {
				return a.variantMatches(m, g.Field, lit, positive)
			})
		})
		return a.narrowRef(facts, g.FieldRef().Key, func(cur types.Type) types.Type {
			return a.narrowEquality(cur, lit, g.Strict, positive)
		})

	case cfg.PredicateCall:
		narrowed := a.instantiatePredicate(g.Call, g.Narrowed, facts)
		return a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			if positive {
				return ctx.Narrow(cur, narrowed)
			}
			return ctx.Widen(cur, narrowed)
		})

	case cfg.AssertionCall:
		if g.Cond != nil {
			return a.applyEdge(g.Cond, facts, true)
		}
		if g.Narrowed == nil || g.Ref.Key == "" {
			return facts
		}
		narrowed := a.instantiatePredicate(g.Call, g.Narrowed, facts)
		return a.narrowRef(facts, g.Ref.Key, func(cur types.Type) types.Type {
			return ctx.Narrow(cur, narrowed)
		})
	}
	return facts
}

// narrowRef replaces the flow type of key by f applied to it. Narrowing a
// possible reference to never makes the facts unreachable.
func (a *analyzer) narrowRef(facts Facts, key string, f func(cur types.Type) types.Type) Facts {
	cur, ok := a.resolve(key, facts, true)
	if !ok {
		return facts
	}
	next := f(cur)
	if next == cur {
		return facts
	}
	if next == types.Never && cur != types.Never {
		facts.Unreachable = true
	}
	return facts.Set(key, next)
}

func (a *analyzer) narrowTypeof(cur types.Type, name string, positive bool) types.Type {
	ctx := a.ctx
	target, known := ctx.TypeofType(name)
	if !known {
		if positive {
			return types.Never
		}
		return cur
	}
	if cur == types.Unknown || cur == types.Any {
		if positive {
			return target
		}
		return cur
	}
	var kept []types.Type
	for _, m := range types.Members(cur) {
		tag := types.TypeofTag(m)
		switch {
		case tag == "" && positive:
			kept = append(kept, ctx.Narrow(m, target))
		case tag == "":
			kept = append(kept, m)
		case (tag == name) == positive:
			kept = append(kept, m)
		}
	}
	return ctx.Union(kept...)
}

func isNullishOnly(t types.Type) bool {
	members := types.Members(t)
	return len(members) > 0 && !slices.ContainsFunc(members, func(m types.Type) bool { return !types.IsNullish(m) })
}

// narrowEquality narrows cur knowing it equals (or, when positive is unset,
// differs from) a value of type other
func (a *analyzer) narrowEquality(cur, other types.Type, strict, positive bool) types.Type {
	ctx := a.ctx
	if !strict && isNullishOnly(other) {
		// == null and == undefined match both
		if !positive {
			return ctx.RemoveNullish(cur)
		}
		if cur == types.Unknown || cur == types.Any {
			return ctx.Union(types.Null, types.Undefined)
		}
		return ctx.Filter(cur, types.IsNullish)
	}
	if positive {
		return ctx.Narrow(cur, other)
	}
	if members := types.Members(other); len(members) == 1 && types.IsUnit(members[0]) {
		return ctx.Widen(cur, other)
	}
	return cur
}

// variantMatches reports whether the member m of an object union can have
// its field equal to lit (or differ from it, when positive is unset)
func (a *analyzer) variantMatches(m types.Type, field string, lit types.Type, positive bool) bool {
	switch m.(type) {
	case *types.TypeParam:
		return true
	case *types.Extreme:
		return m == types.Unknown || m == types.Any || !positive
	}
	ft, ok := a.ctx.Property(m, field)
	if positive {
		return ok && a.ctx.Overlaps(ft, lit)
	}
	return !ok || !types.IsUnit(ft) || ft != lit
}

// checkGuard reports an InvalidNarrowing when the check of g can never
// succeed for the declared type of the reference it narrows
func (a *analyzer) checkGuard(g cfg.Guard, facts Facts, loc cfg.Location) {
	if a.declaredOnly {
		return
	}
	var ref cfg.Ref
	reason := ""
	switch g := g.(type) {
	case cfg.TypeofCheck:
		ref = g.Ref
		if _, known := a.ctx.TypeofType(g.TypeName); !known {
			a.reportInvalid(ref, fmt.Sprintf("typeof never evaluates to %q", g.TypeName), loc)
			return
		}
		reason = fmt.Sprintf("typeof is never %q", g.TypeName)
	case cfg.InstanceofCheck:
		ref = g.Ref
		if ctor, ok := a.quietType(g.Ctor, facts).(*types.Func); !ok || !ctor.Construct {
			a.reportInvalid(ref, fmt.Sprintf("'%s' is not a constructor", ir.ExprString(g.Ctor)), loc)
			return
		}
		reason = fmt.Sprintf("no member is an instance of %s", ir.ExprString(g.Ctor))
	case cfg.InCheck:
		ref, reason = g.Ref, fmt.Sprintf("no member has a property '%s'", g.Property)
	case cfg.Equality:
		other := g.Right.Expr
		ref = g.Left.Ref
		if !g.Left.IsRef {
			other, ref = g.Left.Expr, g.Right.Ref
		}
		if isNullishOnly(a.quietType(other, facts)) {
			// comparing against null is always allowed
			return
		}
		reason = fmt.Sprintf("no value equals '%s'", ir.ExprString(other))
	case cfg.DiscriminantEquals:
		ref, reason = g.Ref, fmt.Sprintf("no variant has %s %s", g.Field, g.Literal.Value)
	case cfg.PredicateCall:
		ref, reason = g.Ref, fmt.Sprintf("no member satisfies %s", ir.ExprString(g.Call.Callee))
	case cfg.AssertionCall:
		if g.Cond != nil {
			a.checkGuard(g.Cond, facts, loc)
			return
		}
		ref, reason = g.Ref, fmt.Sprintf("no member satisfies %s", ir.ExprString(g.Call.Callee))
	default:
		// truthiness checks are always possible
		return
	}

	declared, ok := a.resolve(ref.Key, Facts{}, false)
	if !ok || declared == types.Never {
		return
	}
	// the other operands are evaluated under the current facts, the
	// reference under its declared type
	assumed := facts.Set(ref.Key, declared)
	if narrowed, _ := a.resolve(ref.Key, a.applyCheck(g, assumed, true), true); narrowed == types.Never {
		a.reportInvalid(ref, reason, loc)
	}
}

func (a *analyzer) reportInvalid(ref cfg.Ref, reason string, loc cfg.Location) {
	declared, ok := a.resolve(ref.Key, Facts{}, false)
	if !ok {
		declared = types.Unknown
	}
	a.report(diag.NewInvalidNarrowing{Subject: ref.Key, Declared: declared, Reason: reason}, loc)
}
