package types

import (
	"cmp"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/internal/log"
	sortedset "github.com/xtgo/set"
)

var logger = log.DefaultLogger.With("section", "types")

// TypeCtx builds and relates types.
//
// Copies made with Fork share the interning table, so types built by
// different copies can be compared by identity, but report diagnostics to
// their own sink.
type TypeCtx struct {
	// Errors receives the diagnostics reported while constructing types,
	// like conflicting intersections
	Errors *diag.Errors

	logger *slog.Logger

	*TypeState
}

// TypeState is shared by every copy of a TypeCtx. It is safe for concurrent use.
type TypeState struct {
	table       internTable
	nextParamID atomic.Uint64
	// subtypeMemo caches the results of IsSubtype that did not depend on
	// assumptions made for recursive types
	subtypeMemo sync.Map
}

func NewEmptyTypeCtx() *TypeCtx {
	return &TypeCtx{
		Errors:    &diag.Errors{},
		logger:    logger,
		TypeState: &TypeState{table: internTable{buckets: make(map[uint64][]Type)}},
	}
}

// Fork returns a TypeCtx sharing the interning table of ctx with a fresh diagnostics sink
func (ctx *TypeCtx) Fork() *TypeCtx {
	return &TypeCtx{
		Errors:    &diag.Errors{},
		logger:    ctx.logger,
		TypeState: ctx.TypeState,
	}
}

// WithLogger returns a copy of ctx logging to l
func (ctx *TypeCtx) WithLogger(l *slog.Logger) *TypeCtx {
	cpy := *ctx
	cpy.logger = l
	return &cpy
}

func (ctx *TypeCtx) report(d diag.Diagnostic) {
	ctx.logger.Debug("type construction diagnostic", "diag", d.Error())
	ctx.Errors.With(d)
}

type internTable struct {
	mu      sync.RWMutex
	buckets map[uint64][]Type
}

// Size is the number of distinct composite types interned so far
func (s *TypeState) Size() int {
	s.table.mu.RLock()
	defer s.table.mu.RUnlock()
	n := 0
	for _, bucket := range s.table.buckets {
		n += len(bucket)
	}
	return n
}

func intern[T Type](ctx *TypeCtx, candidate T) T {
	t := &ctx.table
	h := candidate.Hash()
	t.mu.RLock()
	for _, existing := range t.buckets[h] {
		if existing.equal(candidate) {
			t.mu.RUnlock()
			return existing.(T)
		}
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// another writer may have won the race between the two locks
	for _, existing := range t.buckets[h] {
		if existing.equal(candidate) {
			return existing.(T)
		}
	}
	t.buckets[h] = append(t.buckets[h], candidate)
	return candidate
}

// Literal returns the unit type of base spelled value.
// Boolean literals are the True and False singletons.
func (ctx *TypeCtx) Literal(base *Primitive, value string) Type {
	switch {
	case base == Boolean && value == "true":
		return True
	case base == Boolean && value == "false":
		return False
	case base == Null:
		return Null
	case base == Undefined:
		return Undefined
	}
	return intern(ctx, &Literal{Base: base, Value: value})
}

func (ctx *TypeCtx) StringLiteral(s string) Type {
	return ctx.Literal(String, strconv.Quote(s))
}

func (ctx *TypeCtx) NumberLiteral(f float64) Type {
	return ctx.Literal(Number, strconv.FormatFloat(f, 'g', -1, 64))
}

func (ctx *TypeCtx) BooleanLiteral(b bool) Type {
	if b {
		return True
	}
	return False
}

// Object builds an object shape. When a field name repeats, the last one wins.
func (ctx *TypeCtx) Object(fields []Field, index ...IndexSignature) *Object {
	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	sorted := make([]Field, 0, len(byName))
	for _, f := range byName {
		sorted = append(sorted, f)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	o := &Object{Fields: sorted, Index: append([]IndexSignature(nil), index...)}
	o.hash = o.computeHash()
	return intern(ctx, o)
}

func (ctx *TypeCtx) Array(elem Type) *Array {
	a := &Array{Elem: elem}
	a.hash = a.computeHash()
	return intern(ctx, a)
}

func (ctx *TypeCtx) ReadonlyArray(elem Type) *Array {
	a := &Array{Elem: elem, Readonly: true}
	a.hash = a.computeHash()
	return intern(ctx, a)
}

// Tuple builds a tuple type. rest may be nil.
func (ctx *TypeCtx) Tuple(elems []TupleElem, rest Type, readonly bool) *Tuple {
	t := &Tuple{Elems: append([]TupleElem(nil), elems...), Rest: rest, Readonly: readonly}
	t.hash = t.computeHash()
	return intern(ctx, t)
}

// Func interns a copy of sig
func (ctx *TypeCtx) Func(sig Func) *Func {
	f := &sig
	f.TypeParams = append([]*TypeParam(nil), sig.TypeParams...)
	f.Params = append([]Param(nil), sig.Params...)
	if sig.Predicate != nil {
		pred := *sig.Predicate
		f.Predicate = &pred
	}
	if f.Ret == nil {
		f.Ret = Void
	}
	f.hash = f.computeHash()
	return intern(ctx, f)
}

// NewTypeParam declares a fresh type parameter. constraint may be nil for unbounded
// parameters, and def may be nil when there is no default.
func (ctx *TypeCtx) NewTypeParam(name string, constraint, def Type, variance Variance) *TypeParam {
	if constraint == nil {
		constraint = Unknown
	}
	return &TypeParam{
		Name:       name,
		Constraint: constraint,
		Default:    def,
		Variance:   variance,
		id:         ctx.nextParamID.Add(1),
	}
}

func (ctx *TypeCtx) Apply(def *GenericDef, args ...Type) *Applied {
	a := &Applied{Def: def, Args: append([]Type(nil), args...)}
	a.hash = a.computeHash()
	return intern(ctx, a)
}

// rank groups types in the canonical order of union members:
// primitives and their literals first, then structured types.
func rank(t Type) int {
	switch t := t.(type) {
	case *Literal:
		return int(t.Base.Kind) * 2
	case *Primitive:
		return int(t.Kind)*2 + 1
	case *Object:
		return 20
	case *Array:
		return 21
	case *Tuple:
		return 22
	case *Func:
		return 23
	case *Applied:
		return 24
	case *TypeParam:
		return 25
	case *Intersection:
		return 26
	default:
		return 30
	}
}

func compareTypes(a, b Type) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.String(), b.String()); c != 0 {
		return c
	}
	return cmp.Compare(a.Hash(), b.Hash())
}

// typeSlice sorts types canonically, for use with sort and xtgo/set
type typeSlice []Type

func (s typeSlice) Len() int           { return len(s) }
func (s typeSlice) Less(i, j int) bool { return compareTypes(s[i], s[j]) < 0 }
func (s typeSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// canonical sorts ts and removes duplicates in place
func canonical(ts []Type) []Type {
	data := typeSlice(ts)
	sort.Sort(data)
	n := sortedset.Uniq(data)
	return ts[:n]
}
