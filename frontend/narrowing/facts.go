package narrowing

import (
	"iter"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/narrow/frontend/types"
	sortedset "github.com/xtgo/set"
)

// Facts maps references to their flow types at one program point.
//
// Facts are persistent: every update returns a new value and leaves the
// receiver untouched, so the facts of a block can be handed to all of its
// successors without copying.
type Facts struct {
	m *immutable.SortedMap[string, types.Type]
	// Unreachable marks the facts of an edge no execution can take, because
	// a guard narrowed some reference to never
	Unreachable bool
}

func NewFacts() Facts {
	return Facts{m: immutable.NewSortedMap[string, types.Type](immutable.NewComparer(""))}
}

func (f Facts) Get(key string) (types.Type, bool) {
	if f.m == nil {
		return nil, false
	}
	return f.m.Get(key)
}

func (f Facts) Set(key string, t types.Type) Facts {
	if f.m == nil {
		f = NewFacts()
	}
	f.m = f.m.Set(key, t)
	return f
}

func (f Facts) Len() int {
	if f.m == nil {
		return 0
	}
	return f.m.Len()
}

// All iterates over the facts in key order
func (f Facts) All() iter.Seq2[string, types.Type] {
	return func(yield func(string, types.Type) bool) {
		if f.m == nil {
			return
		}
		itr := f.m.Iterator()
		for !itr.Done() {
			k, v, _ := itr.Next()
			if !yield(k, v) {
				return
			}
		}
	}
}

// Keys returns the references with a fact, sorted
func (f Facts) Keys() []string {
	keys := make([]string, 0, f.Len())
	for k := range f.All() {
		keys = append(keys, k)
	}
	return keys
}

// withoutPaths drops the facts about properties reachable from key,
// which an assignment to key invalidates
func (f Facts) withoutPaths(key string) Facts {
	if f.m == nil {
		return f
	}
	prefix := key + "."
	var stale []string
	itr := f.m.Iterator()
	itr.Seek(prefix)
	for !itr.Done() {
		k, _, _ := itr.Next()
		if !strings.HasPrefix(k, prefix) {
			break
		}
		stale = append(stale, k)
	}
	for _, k := range stale {
		f.m = f.m.Delete(k)
	}
	return f
}

func (f Facts) Equal(other Facts) bool {
	if f.Len() != other.Len() || f.Unreachable != other.Unreachable {
		return false
	}
	for k, v := range f.All() {
		if ov, ok := other.Get(k); !ok || ov != v {
			return false
		}
	}
	return true
}

func (f Facts) String() string {
	sb := strings.Builder{}
	sb.WriteString("{")
	first := true
	for k, v := range f.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(k + ": " + v.String())
	}
	sb.WriteString("}")
	if f.Unreachable {
		sb.WriteString(" unreachable")
	}
	return sb.String()
}

// join merges the facts flowing into a block. Only references known on
// every incoming edge are kept, with the union of their types. Unreachable
// edges are ignored unless no edge is reachable.
func join(ctx *types.TypeCtx, incoming []Facts) Facts {
	reachable := make([]Facts, 0, len(incoming))
	for _, f := range incoming {
		if !f.Unreachable {
			reachable = append(reachable, f)
		}
	}
	unreachable := len(reachable) == 0
	if unreachable {
		reachable = incoming
	}
	if len(reachable) == 1 {
		res := reachable[0]
		res.Unreachable = unreachable
		return res
	}

	keys := reachable[0].Keys()
	for _, f := range reachable[1:] {
		data := append(keys, f.Keys()...)
		n := sortedset.Inter(sort.StringSlice(data), len(keys))
		keys = data[:n]
	}

	res := NewFacts()
	res.Unreachable = unreachable
	for _, k := range keys {
		ts := make([]types.Type, len(reachable))
		for i, f := range reachable {
			ts[i], _ = f.Get(k)
		}
		res = res.Set(k, ctx.Union(ts...))
	}
	return res
}
