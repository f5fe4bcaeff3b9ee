package types

import (
	"github.com/cottand/narrow/frontend/diag"
)

// varianceInfo records in which direction an argument of a generic
// definition may vary while keeping applications related
type varianceInfo struct {
	covariant, contravariant bool
}

var (
	varianceBivariant     = varianceInfo{covariant: true, contravariant: true}
	varianceCovariant     = varianceInfo{covariant: true}
	varianceContravariant = varianceInfo{contravariant: true}
	varianceInvariant     = varianceInfo{}
)

func (v varianceInfo) String() string {
	switch v {
	case varianceBivariant:
		return "bivariantly"
	case varianceCovariant:
		return "covariantly"
	case varianceContravariant:
		return "contravariantly"
	default:
		return "invariantly"
	}
}

func (v varianceInfo) flip() varianceInfo {
	return varianceInfo{covariant: v.contravariant, contravariant: v.covariant}
}

// positions records whether a type parameter occurs in output (positive) or
// input (negative) positions of a type
type positions struct {
	positive, negative bool
}

// allowed is the variance permitted by a set of occurrences:
// unused parameters are bivariant and parameters used both ways are invariant
func (p positions) allowed() varianceInfo {
	return varianceInfo{covariant: !p.negative, contravariant: !p.positive}
}

func declaredVariance(v Variance) (varianceInfo, bool) {
	switch v {
	case VarianceOut:
		return varianceCovariant, true
	case VarianceIn:
		return varianceContravariant, true
	case VarianceInOut:
		return varianceInvariant, true
	}
	return varianceInfo{}, false
}

// occurrences walks t and records the polarity of every occurrence of param.
// Function parameters flip polarity. Applications of generic definitions
// compose with the current variance of the definition.
func occurrences(t Type, param *TypeParam, polarity bool, acc *positions) {
	switch t := t.(type) {
	case *TypeParam:
		if t != param {
			return
		}
		if polarity {
			acc.positive = true
		} else {
			acc.negative = true
		}
	case *Func:
		for _, p := range t.Params {
			occurrences(p.Type, param, !polarity, acc)
		}
		occurrences(t.Ret, param, polarity, acc)
		if t.Predicate != nil && t.Predicate.Type != nil {
			// a predicate type describes an input
			occurrences(t.Predicate.Type, param, !polarity, acc)
		}
	case *Applied:
		variances := t.Def.Variances()
		for i, arg := range t.Args {
			v := variances[i]
			if v.covariant != v.contravariant {
				occurrences(arg, param, polarity == v.covariant, acc)
			} else if v == varianceInvariant {
				occurrences(arg, param, polarity, acc)
				occurrences(arg, param, !polarity, acc)
			}
		}
	default:
		for child := range t.children() {
			occurrences(child, param, polarity, acc)
		}
	}
}

// inferVariances computes the variance of every parameter of defs, which may
// refer to one another, then checks declared variances against usage,
// reporting InvalidVariance on mismatch.
//
// Annotated parameters keep their declared variance. The others start
// bivariant and are restricted pass after pass until no variance changes;
// occurrences only grow as variances get stricter, so this terminates.
func (ctx *TypeCtx) inferVariances(defs []*GenericDef) {
	for _, def := range defs {
		def.variances = make([]varianceInfo, len(def.Params))
		for i, p := range def.Params {
			if declared, ok := declaredVariance(p.Variance); ok {
				def.variances[i] = declared
			} else {
				def.variances[i] = varianceBivariant
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, def := range defs {
			for i, p := range def.Params {
				if _, ok := declaredVariance(p.Variance); ok {
					continue
				}
				var acc positions
				occurrences(def.Body, p, true, &acc)
				if actual := acc.allowed(); actual != def.variances[i] {
					def.variances[i] = actual
					changed = true
				}
			}
		}
	}

	for _, def := range defs {
		for i, p := range def.Params {
			if _, ok := declaredVariance(p.Variance); !ok {
				continue
			}
			var acc positions
			occurrences(def.Body, p, true, &acc)
			actual, declared := acc.allowed(), def.variances[i]
			if (!declared.covariant || actual.covariant) && (!declared.contravariant || actual.contravariant) {
				continue
			}
			ctx.report(diag.New(diag.NewInvalidVariance{
				Location:   diag.Unlocated,
				Definition: def.Name,
				Param:      p.Name,
				Declared:   p.Variance.String(),
				Actual:     usage(acc),
			}))
		}
	}
}

func usage(p positions) string {
	switch {
	case p.positive && p.negative:
		return "in both input and output positions"
	case p.negative:
		return "in an input position"
	case p.positive:
		return "in an output position"
	default:
		return "nowhere"
	}
}
