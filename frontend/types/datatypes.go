package types

import (
	"fmt"
	"hash/fnv"
	"iter"
	"slices"
	"strings"
)

// Type is an interned type. Two types obtained from the same TypeCtx are
// structurally equal if and only if they are the same pointer.
type Type interface {
	fmt.Stringer
	Hash() uint64
	// equal reports structural equality, assuming the children of both
	// types are already interned
	equal(other Type) bool
	children() iter.Seq[Type]
}

var (
	_ Type = (*Extreme)(nil)
	_ Type = (*Primitive)(nil)
	_ Type = (*Literal)(nil)
	_ Type = (*Union)(nil)
	_ Type = (*Intersection)(nil)
	_ Type = (*Object)(nil)
	_ Type = (*Array)(nil)
	_ Type = (*Tuple)(nil)
	_ Type = (*Func)(nil)
	_ Type = (*TypeParam)(nil)
	_ Type = (*Applied)(nil)
)

func noChildren(func(Type) bool) {}

// Extreme is one of the singletons Never, Unknown, Any and Void
type Extreme struct {
	Name string
	hash uint64
}

var (
	Never   = &Extreme{Name: "never", hash: 16777619}
	Unknown = &Extreme{Name: "unknown", hash: 1099511628211}
	Any     = &Extreme{Name: "any", hash: 2166136261}
	Void    = &Extreme{Name: "void", hash: 14695981039346656037}
)

func (t *Extreme) String() string           { return t.Name }
func (t *Extreme) Hash() uint64             { return t.hash }
func (t *Extreme) equal(other Type) bool    { return t == other }
func (t *Extreme) children() iter.Seq[Type] { return noChildren }

type PrimitiveKind uint8

const (
	StringKind PrimitiveKind = iota + 1
	NumberKind
	BooleanKind
	BigIntKind
	SymbolKind
	NullKind
	UndefinedKind
)

var primitiveNames = [...]string{
	StringKind:    "string",
	NumberKind:    "number",
	BooleanKind:   "boolean",
	BigIntKind:    "bigint",
	SymbolKind:    "symbol",
	NullKind:      "null",
	UndefinedKind: "undefined",
}

func (k PrimitiveKind) String() string { return primitiveNames[k] }

type Primitive struct {
	Kind PrimitiveKind
}

var (
	String    = &Primitive{Kind: StringKind}
	Number    = &Primitive{Kind: NumberKind}
	Boolean   = &Primitive{Kind: BooleanKind}
	BigInt    = &Primitive{Kind: BigIntKind}
	Symbol    = &Primitive{Kind: SymbolKind}
	Null      = &Primitive{Kind: NullKind}
	Undefined = &Primitive{Kind: UndefinedKind}
)

// PrimitiveByName returns the primitive spelled name, if there is one
func PrimitiveByName(name string) (*Primitive, bool) {
	for _, p := range []*Primitive{String, Number, Boolean, BigInt, Symbol, Null, Undefined} {
		if p.Kind.String() == name {
			return p, true
		}
	}
	return nil, false
}

func (t *Primitive) String() string           { return t.Kind.String() }
func (t *Primitive) Hash() uint64             { return uint64(t.Kind) * 2654435761 }
func (t *Primitive) equal(other Type) bool    { return t == other }
func (t *Primitive) children() iter.Seq[Type] { return noChildren }

// Literal is a unit type. Value is the canonical source spelling of the
// literal: strings are quoted, numbers use the shortest representation.
type Literal struct {
	Base  *Primitive
	Value string
}

var (
	True  = &Literal{Base: Boolean, Value: "true"}
	False = &Literal{Base: Boolean, Value: "false"}
)

func (t *Literal) String() string { return t.Value }
func (t *Literal) Hash() uint64 {
	const prime1 uint64 = 1299709
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(t.Value))
	return prime1*t.Base.Hash() ^ hasher.Sum64()
}
func (t *Literal) equal(other Type) bool {
	o, ok := other.(*Literal)
	return ok && o.Base == t.Base && o.Value == t.Value
}
func (t *Literal) children() iter.Seq[Type] { return noChildren }

// Union members are flattened, deduplicated and kept in canonical order.
// Build one with TypeCtx.Union.
type Union struct {
	Members []Type
	hash    uint64
}

func (t *Union) String() string {
	return joinTypes(t.Members, " | ", true)
}
func (t *Union) Hash() uint64 { return t.hash }
func (t *Union) equal(other Type) bool {
	o, ok := other.(*Union)
	return ok && slices.Equal(t.Members, o.Members)
}
func (t *Union) children() iter.Seq[Type] { return slices.Values(t.Members) }

// Intersection holds the members that could not be merged into one another.
// Build one with TypeCtx.Intersection.
type Intersection struct {
	Members []Type
	hash    uint64
}

func (t *Intersection) String() string {
	return joinTypes(t.Members, " & ", true)
}
func (t *Intersection) Hash() uint64 { return t.hash }
func (t *Intersection) equal(other Type) bool {
	o, ok := other.(*Intersection)
	return ok && slices.Equal(t.Members, o.Members)
}
func (t *Intersection) children() iter.Seq[Type] { return slices.Values(t.Members) }

type Field struct {
	Name     string
	Type     Type
	Optional bool
	Readonly bool
}

func (f Field) String() string {
	sb := strings.Builder{}
	if f.Readonly {
		sb.WriteString("readonly ")
	}
	sb.WriteString(f.Name)
	if f.Optional {
		sb.WriteString("?")
	}
	sb.WriteString(": ")
	sb.WriteString(f.Type.String())
	return sb.String()
}

type IndexSignature struct {
	Key   Type
	Value Type
}

// Object is a structural object shape. Fields are sorted by name.
type Object struct {
	Fields []Field
	Index  []IndexSignature
	hash   uint64
}

// Field looks up a field by name
func (t *Object) Field(name string) (Field, bool) {
	i, found := slices.BinarySearchFunc(t.Fields, name, func(f Field, name string) int {
		return strings.Compare(f.Name, name)
	})
	if !found {
		return Field{}, false
	}
	return t.Fields[i], true
}

// IndexFor returns the value type of the index signature accepting key, if any
func (t *Object) IndexFor(key *Primitive) (Type, bool) {
	for _, sig := range t.Index {
		if sig.Key == key {
			return sig.Value, true
		}
	}
	return nil, false
}

func (t *Object) String() string {
	if len(t.Fields) == 0 && len(t.Index) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(t.Fields)+len(t.Index))
	for _, sig := range t.Index {
		parts = append(parts, fmt.Sprintf("[key: %v]: %v", sig.Key, sig.Value))
	}
	for _, f := range t.Fields {
		parts = append(parts, f.String())
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}
func (t *Object) Hash() uint64 { return t.hash }
func (t *Object) equal(other Type) bool {
	o, ok := other.(*Object)
	return ok && slices.Equal(t.Fields, o.Fields) && slices.Equal(t.Index, o.Index)
}
func (t *Object) children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		for _, sig := range t.Index {
			if !yield(sig.Key) || !yield(sig.Value) {
				return
			}
		}
		for _, f := range t.Fields {
			if !yield(f.Type) {
				return
			}
		}
	}
}

type Array struct {
	Elem     Type
	Readonly bool
	hash     uint64
}

func (t *Array) String() string {
	elem := t.Elem.String()
	if needsParens(t.Elem) {
		elem = "(" + elem + ")"
	}
	if t.Readonly {
		return "readonly " + elem + "[]"
	}
	return elem + "[]"
}
func (t *Array) Hash() uint64 { return t.hash }
func (t *Array) equal(other Type) bool {
	o, ok := other.(*Array)
	return ok && o.Elem == t.Elem && o.Readonly == t.Readonly
}
func (t *Array) children() iter.Seq[Type] {
	return func(yield func(Type) bool) { yield(t.Elem) }
}

type TupleElem struct {
	Type     Type
	Optional bool
}

type Tuple struct {
	Elems []TupleElem
	// Rest may be nil
	Rest     Type
	Readonly bool
	hash     uint64
}

// Required is the number of elements a value of this tuple must have
func (t *Tuple) Required() int {
	n := 0
	for _, e := range t.Elems {
		if !e.Optional {
			n++
		}
	}
	return n
}

func (t *Tuple) String() string {
	parts := make([]string, 0, len(t.Elems)+1)
	for _, e := range t.Elems {
		s := e.Type.String()
		if e.Optional {
			s += "?"
		}
		parts = append(parts, s)
	}
	if t.Rest != nil {
		rest := t.Rest.String()
		if needsParens(t.Rest) {
			rest = "(" + rest + ")"
		}
		parts = append(parts, "..."+rest+"[]")
	}
	s := "[" + strings.Join(parts, ", ") + "]"
	if t.Readonly {
		return "readonly " + s
	}
	return s
}
func (t *Tuple) Hash() uint64 { return t.hash }
func (t *Tuple) equal(other Type) bool {
	o, ok := other.(*Tuple)
	return ok && slices.Equal(t.Elems, o.Elems) && o.Rest == t.Rest && o.Readonly == t.Readonly
}
func (t *Tuple) children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		for _, e := range t.Elems {
			if !yield(e.Type) {
				return
			}
		}
		if t.Rest != nil {
			yield(t.Rest)
		}
	}
}

type Param struct {
	Name     string
	Type     Type
	Optional bool
}

// Predicate describes a type predicate (`x is T`) or an assertion signature
// (`asserts x is T`, or `asserts x` when Type is nil).
type Predicate struct {
	Param   int
	Type    Type
	Asserts bool
}

type Func struct {
	TypeParams []*TypeParam
	Params     []Param
	Ret        Type
	// Predicate may be nil
	Predicate *Predicate
	// Construct marks constructor types, whose Ret is the constructed instance
	Construct bool
	hash      uint64
}

// RequiredParams is the number of arguments a call must supply
func (t *Func) RequiredParams() int {
	n := 0
	for _, p := range t.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

func (t *Func) String() string {
	sb := strings.Builder{}
	if t.Construct {
		sb.WriteString("new ")
	}
	if len(t.TypeParams) > 0 {
		sb.WriteString("<")
		for i, p := range t.TypeParams {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Declaration())
		}
		sb.WriteString(">")
	}
	sb.WriteString("(")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		name := p.Name
		if name == "" {
			name = fmt.Sprint("arg", i)
		}
		sb.WriteString(name)
		if p.Optional {
			sb.WriteString("?")
		}
		sb.WriteString(": ")
		sb.WriteString(p.Type.String())
	}
	sb.WriteString(") => ")
	switch pred := t.Predicate; {
	case pred == nil:
		sb.WriteString(t.Ret.String())
	case pred.Asserts && pred.Type == nil:
		sb.WriteString("asserts " + t.paramName(pred.Param))
	case pred.Asserts:
		sb.WriteString("asserts " + t.paramName(pred.Param) + " is " + pred.Type.String())
	default:
		sb.WriteString(t.paramName(pred.Param) + " is " + pred.Type.String())
	}
	return sb.String()
}

func (t *Func) paramName(i int) string {
	if i < len(t.Params) && t.Params[i].Name != "" {
		return t.Params[i].Name
	}
	return fmt.Sprint("arg", i)
}

func (t *Func) Hash() uint64 { return t.hash }
func (t *Func) equal(other Type) bool {
	o, ok := other.(*Func)
	if !ok || o.Ret != t.Ret || o.Construct != t.Construct {
		return false
	}
	if !slices.Equal(t.TypeParams, o.TypeParams) || !slices.Equal(t.Params, o.Params) {
		return false
	}
	if (t.Predicate == nil) != (o.Predicate == nil) {
		return false
	}
	return t.Predicate == nil || *t.Predicate == *o.Predicate
}
func (t *Func) children() iter.Seq[Type] {
	return func(yield func(Type) bool) {
		for _, p := range t.Params {
			if !yield(p.Type) {
				return
			}
		}
		if !yield(t.Ret) {
			return
		}
		if t.Predicate != nil && t.Predicate.Type != nil {
			yield(t.Predicate.Type)
		}
	}
}

type Variance uint8

const (
	// VarianceNone means no annotation was declared, so variance is inferred from usage
	VarianceNone Variance = iota
	VarianceOut
	VarianceIn
	VarianceInOut
)

func (v Variance) String() string {
	switch v {
	case VarianceOut:
		return "out"
	case VarianceIn:
		return "in"
	case VarianceInOut:
		return "in out"
	default:
		return ""
	}
}

// TypeParam is nominal: each declaration is distinct from every other one,
// even when they share a name and bounds.
type TypeParam struct {
	Name string
	// Constraint is Unknown when no bound was declared
	Constraint Type
	// Default may be nil
	Default  Type
	Variance Variance
	id       uint64
}

// Declaration renders the type parameter with its variance, bound and default
func (t *TypeParam) Declaration() string {
	sb := strings.Builder{}
	if t.Variance != VarianceNone {
		sb.WriteString(t.Variance.String() + " ")
	}
	sb.WriteString(t.Name)
	if t.Constraint != nil && t.Constraint != Unknown {
		sb.WriteString(" extends " + t.Constraint.String())
	}
	if t.Default != nil {
		sb.WriteString(" = " + t.Default.String())
	}
	return sb.String()
}

func (t *TypeParam) String() string           { return t.Name }
func (t *TypeParam) Hash() uint64             { return t.id * 6700417 }
func (t *TypeParam) equal(other Type) bool    { return t == other }
func (t *TypeParam) children() iter.Seq[Type] { return noChildren }

// Applied is a named generic type applied to arguments, like Box<number>
type Applied struct {
	Def  *GenericDef
	Args []Type
	hash uint64
}

func (t *Applied) String() string {
	return t.Def.Name + "<" + joinTypes(t.Args, ", ", false) + ">"
}
func (t *Applied) Hash() uint64 { return t.hash }
func (t *Applied) equal(other Type) bool {
	o, ok := other.(*Applied)
	return ok && o.Def == t.Def && slices.Equal(t.Args, o.Args)
}
func (t *Applied) children() iter.Seq[Type] { return slices.Values(t.Args) }

func needsParens(t Type) bool {
	switch t.(type) {
	case *Union, *Intersection, *Func:
		return true
	}
	return false
}

func joinTypes(ts []Type, sep string, parens bool) string {
	strs := make([]string, len(ts))
	for i, t := range ts {
		strs[i] = t.String()
		if parens && needsParens(t) {
			strs[i] = "(" + strs[i] + ")"
		}
	}
	return strings.Join(strs, sep)
}

// hashing helpers, following FNV-style mixing of the children's hashes

func hashTypes(seed, prime uint64, ts iter.Seq[Type]) uint64 {
	hash := seed
	for t := range ts {
		hash = hash*prime ^ t.Hash()
	}
	return hash
}

func hashFlags(flags ...bool) uint64 {
	var h uint64
	for i, f := range flags {
		if f {
			h |= 1 << i
		}
	}
	return h
}

func (t *Union) computeHash() uint64 {
	return hashTypes(32452843, 31, t.children())
}

func (t *Intersection) computeHash() uint64 {
	return hashTypes(15487469, 43, t.children())
}

func (t *Object) computeHash() uint64 {
	const prime1 uint64 = 15487469
	const prime2 uint64 = 32452843

	hasher := fnv.New64a()
	hash := prime2
	for _, sig := range t.Index {
		hash = hash*prime1 ^ sig.Key.Hash()
		hash = hash*prime1 ^ sig.Value.Hash()
	}
	for _, field := range t.Fields {
		hash = hash*prime1 ^ field.Type.Hash()
		hash = hash*prime1 ^ hashFlags(field.Optional, field.Readonly)
		_, _ = hasher.Write([]byte(field.Name))
		_, _ = hasher.Write([]byte{0})
	}
	return hash * hasher.Sum64()
}

func (t *Array) computeHash() uint64 {
	return t.Elem.Hash()*104729 ^ hashFlags(t.Readonly)
}

func (t *Tuple) computeHash() uint64 {
	const prime1 uint64 = 433
	const prime2 uint64 = 9973

	hash := prime2
	for _, elem := range t.Elems {
		hash = hash*prime1 ^ elem.Type.Hash()
		hash = hash*prime1 ^ hashFlags(elem.Optional)
	}
	if t.Rest != nil {
		hash = hash*prime1 ^ t.Rest.Hash()
	}
	return hash ^ hashFlags(false, t.Readonly)
}

func (t *Func) computeHash() uint64 {
	const prime1 uint64 = 10007
	hash := hashTypes(104729, prime1, t.children())
	for _, p := range t.TypeParams {
		hash = hash*prime1 ^ p.Hash()
	}
	hash = hash*prime1 ^ hashFlags(t.Construct)
	if t.Predicate != nil {
		hash = hash*prime1 ^ uint64(t.Predicate.Param+1) ^ hashFlags(false, t.Predicate.Asserts)
	}
	return hash
}

func (t *Applied) computeHash() uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(t.Def.Name))
	return hasher.Sum64() ^ hashTypes(14695981039346656037, 31, t.children())
}
