// Package narrowing computes the flow types of the references of a function
// by propagating facts over its control flow graph until they stabilise, and
// checks that matches over unions cover every variant.
package narrowing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"github.com/cottand/narrow/internal/log"
	"github.com/hashicorp/go-set/v3"
	"golang.org/x/tools/container/intsets"
)

var logger = log.DefaultLogger.With("section", "narrowing")

const DefaultMaxIterations = 64

type Options struct {
	// MaxIterations bounds the number of passes over the graph.
	// Zero means DefaultMaxIterations.
	MaxIterations int
	Logger        *slog.Logger
}

type Result struct {
	Graph *cfg.Graph
	// FlowTypes holds the facts at the entry of every reachable block
	FlowTypes map[cfg.BlockID]Facts
	// ExitTypes holds the facts of every reachable block after its
	// statements, before its terminator
	ExitTypes   map[cfg.BlockID]Facts
	Diagnostics []diag.Diagnostic
	// Converged is false when the fixpoint was not reached within
	// MaxIterations, in which case every flow type is the declared type
	Converged  bool
	Iterations int

	before   map[ir.Stmt]Facts
	analyzer *analyzer
}

// TypeAt returns the flow type of the reference ref (like "s" or "s.kind")
// just before stmt executes
func (r *Result) TypeAt(stmt ir.Stmt, ref string) (types.Type, bool) {
	facts, ok := r.before[stmt]
	if !ok {
		return nil, false
	}
	return r.analyzer.resolve(ref, facts, true)
}

// Declared returns the declared type of a parameter or local of the function
func (r *Result) Declared(name string) (types.Type, bool) {
	t, ok := r.analyzer.declared[name]
	return t, ok
}

type analyzer struct {
	ctx    *types.TypeCtx
	graph  *cfg.Graph
	scope  cfg.Scope
	logger *slog.Logger

	// declared holds the declared types of parameters and locals
	declared map[string]types.Type
	entry    map[cfg.BlockID]Facts
	exit     map[cfg.BlockID]Facts
	// switchGuards caches the guard of every case of a switch, as if each
	// case were written `discriminant === value`
	switchGuards map[*cfg.Switch][]cfg.Guard

	// declaredOnly disables narrowing, after the fixpoint failed to converge
	declaredOnly bool
	// reporting is set during the final pass, the only one emitting diagnostics
	reporting bool
	reported  *set.Set[string]
	diags     []diag.Diagnostic
	before    map[ir.Stmt]Facts
}

// Analyze computes the flow types of the references of g.
// scope resolves the names the function does not declare itself.
func Analyze(ctx *types.TypeCtx, g *cfg.Graph, scope cfg.Scope, opts Options) *Result {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	l := opts.Logger
	if l == nil {
		l = logger
	}
	a := &analyzer{
		ctx:          ctx,
		graph:        g,
		scope:        scope,
		logger:       l.With("function", g.Function.Name),
		declared:     make(map[string]types.Type),
		switchGuards: make(map[*cfg.Switch][]cfg.Guard),
		reported:     set.New[string](0),
		before:       make(map[ir.Stmt]Facts),
	}
	for _, p := range g.Function.Params {
		a.declared[p.Name] = p.Type
	}

	rpo := g.ReversePostorder()
	iterations, converged := a.fixpoint(rpo, opts.MaxIterations)
	if !converged {
		a.logger.Warn("narrowing did not converge", "iterations", iterations)
		a.declaredOnly = true
		a.fixpoint(rpo, 1)
		a.diags = append(a.diags, diag.Locate(
			diag.New(diag.NewNarrowingDidNotConverge{Iterations: opts.MaxIterations}),
			diag.Location{Function: g.Function.Name, Block: -1},
		))
	}

	a.reporting = true
	for _, id := range rpo {
		entry, ok := a.entry[id]
		if !ok {
			continue
		}
		block := g.Block(id)
		a.reportTerminator(block, a.transfer(block, entry))
	}

	a.logger.Debug("analysed function", "iterations", iterations, "converged", converged, "diagnostics", len(a.diags))
	return &Result{
		Graph:       g,
		FlowTypes:   a.entry,
		ExitTypes:   a.exit,
		Diagnostics: append(append([]diag.Diagnostic(nil), g.Diagnostics...), a.diags...),
		Converged:   converged,
		Iterations:  iterations,
		before:      a.before,
		analyzer:    a,
	}
}

// fixpoint runs passes over the blocks in reverse postorder, recomputing
// the blocks whose predecessors changed, until no block changes
func (a *analyzer) fixpoint(rpo []cfg.BlockID, maxIterations int) (iterations int, converged bool) {
	a.entry = make(map[cfg.BlockID]Facts, len(rpo))
	a.exit = make(map[cfg.BlockID]Facts, len(rpo))

	var dirty intsets.Sparse
	dirty.Insert(int(a.graph.Entry))
	for iterations = 1; iterations <= maxIterations; iterations++ {
		for _, id := range rpo {
			if !dirty.Remove(int(id)) {
				continue
			}
			block := a.graph.Block(id)
			in, ok := a.entryFacts(block)
			if !ok {
				continue
			}
			if prev, seen := a.entry[id]; seen && prev.Equal(in) {
				continue
			}
			a.entry[id] = in
			a.exit[id] = a.transfer(block, in)
			for _, succ := range block.Term.Successors() {
				dirty.Insert(int(succ))
			}
		}
		a.logger.Debug("finished pass", "iteration", iterations, "pending", dirty.Len())
		if dirty.IsEmpty() {
			return iterations, true
		}
	}
	return maxIterations, false
}

func (a *analyzer) entryFacts(b *cfg.Block) (Facts, bool) {
	if b.ID == a.graph.Entry {
		facts := NewFacts()
		for _, p := range a.graph.Function.Params {
			facts = facts.Set(p.Name, p.Type)
		}
		return facts, true
	}
	var incoming []Facts
	for _, p := range b.Preds {
		if _, processed := a.exit[p]; !processed {
			continue
		}
		incoming = append(incoming, a.edgeFacts(a.graph.Block(p), b.ID))
	}
	if len(incoming) == 0 {
		return Facts{}, false
	}
	return join(a.ctx, incoming), true
}

// edgeFacts computes the facts flowing from pred to succ
func (a *analyzer) edgeFacts(pred *cfg.Block, succ cfg.BlockID) Facts {
	facts := a.exit[pred.ID]
	switch term := pred.Term.(type) {
	case *cfg.Branch:
		if term.Guard == nil || term.Then == term.Else {
			return facts
		}
		return a.applyEdge(term.Guard, facts, succ == term.Then)
	case *cfg.Switch:
		guards := a.caseGuards(term)
		var contributions []Facts
		for i, c := range term.Cases {
			if c.Target == succ {
				contributions = append(contributions, a.applyEdge(guards[i], facts, true))
			}
		}
		if term.Default == succ {
			contributions = append(contributions, a.defaultFacts(term, facts))
		}
		return join(a.ctx, contributions)
	}
	return facts
}

// defaultFacts are the facts on the default edge of a switch, where no case matched
func (a *analyzer) defaultFacts(term *cfg.Switch, facts Facts) Facts {
	for _, g := range a.caseGuards(term) {
		facts = a.applyEdge(g, facts, false)
	}
	return facts
}

func (a *analyzer) caseGuards(term *cfg.Switch) []cfg.Guard {
	if guards, ok := a.switchGuards[term]; ok {
		return guards
	}
	guards := make([]cfg.Guard, len(term.Cases))
	for i, c := range term.Cases {
		cond := &ir.Binary{Range: ir.RangeOf(c.Value), Op: ir.OpStrictEq, Left: term.Discriminant, Right: c.Value}
		guards[i] = cfg.DeriveGuard(cond, a.scope)
	}
	a.switchGuards[term] = guards
	return guards
}

// transfer runs the statements of b over the facts at its entry
func (a *analyzer) transfer(b *cfg.Block, facts Facts) Facts {
	for i, n := range b.Nodes {
		loc := cfg.Location{Block: b.ID, Index: i}
		a.recordBefore(n.Stmt, facts)
		switch n.Kind {
		case cfg.NodeDeclare:
			facts = a.declare(n, facts, loc)
		case cfg.NodeAssign:
			facts = a.assign(n.Target, n.Value, facts, loc)
		case cfg.NodeEval:
			a.typeOf(n.Value, facts, loc)
		case cfg.NodeAssert:
			a.typeOf(n.Value, facts, loc)
			assertion := n.Guard.(cfg.AssertionCall)
			if a.reporting {
				a.checkGuard(assertion, facts, loc)
			}
			facts = a.applyEdge(assertion, facts, true)
		}
	}
	return facts
}

func (a *analyzer) recordBefore(stmt ir.Stmt, facts Facts) {
	if !a.reporting || stmt == nil {
		return
	}
	if _, ok := a.before[stmt]; !ok {
		a.before[stmt] = facts
	}
}

func (a *analyzer) declare(n cfg.Node, facts Facts, loc cfg.Location) Facts {
	declared := n.Type
	if declared == nil {
		if prev, ok := a.declared[n.Name]; ok {
			declared = prev
		} else if n.Value != nil {
			declared = a.ctx.WidenLiteral(a.typeOf(n.Value, facts, loc))
		} else {
			declared = types.Unknown
		}
	}
	a.declared[n.Name] = declared
	facts = facts.withoutPaths(n.Name)

	if declared == types.Never && n.Value != nil {
		if key, ok := ir.RefKey(n.Value); ok {
			return a.checkNeverBinding(key, facts, loc).Set(n.Name, types.Never)
		}
	}
	if n.Value == nil || n.Deferred {
		return facts.Set(n.Name, declared)
	}
	return a.assign(&ir.Ident{Range: ir.RangeOf(n.Stmt), Name: n.Name}, n.Value, facts, loc)
}

// assign stores the type of value into target. The flow type of target is
// its declared type reduced to the members the assigned type can inhabit.
func (a *analyzer) assign(target, value ir.Expr, facts Facts, loc cfg.Location) Facts {
	assigned := a.typeOf(value, facts, loc)
	key, ok := ir.RefKey(target)
	if !ok {
		return facts
	}
	facts = facts.withoutPaths(key)
	declared, ok := a.resolve(key, facts, false)
	if !ok {
		return facts.Set(key, assigned)
	}
	if a.declaredOnly {
		return facts.Set(key, declared)
	}
	if !a.ctx.IsSubtype(assigned, declared) {
		a.report(diag.NewAssignmentMismatch{Target: key, Declared: declared, Assigned: assigned}, loc)
		return facts.Set(key, declared)
	}
	reduced := a.ctx.Filter(declared, func(m types.Type) bool {
		for _, c := range types.Members(assigned) {
			if a.ctx.IsSubtype(c, m) {
				return true
			}
		}
		return false
	})
	if reduced == types.Never && assigned != types.Never {
		// assignable without matching a single member, like an object
		// type assigned to an intersection
		reduced = declared
	}
	return facts.Set(key, reduced)
}

// resolve finds the type of the reference key. With flow set, the facts
// are consulted first; otherwise declared types are used throughout.
// Property paths are resolved through the type of their parent.
func (a *analyzer) resolve(key string, facts Facts, flow bool) (types.Type, bool) {
	if flow {
		if t, ok := facts.Get(key); ok {
			return t, true
		}
	}
	dot := strings.LastIndexByte(key, '.')
	if dot < 0 {
		if t, ok := a.declared[key]; ok {
			return t, true
		}
		if a.scope != nil {
			return a.scope.Lookup(key)
		}
		return nil, false
	}
	parent, ok := a.resolve(key[:dot], facts, flow)
	if !ok {
		return nil, false
	}
	return a.ctx.Property(parent, key[dot+1:])
}

func (a *analyzer) diagLocation(loc cfg.Location) diag.Location {
	return a.graph.DiagLocation(loc)
}

// report emits d at loc during the reporting pass. The same diagnostic is
// only emitted once per location.
func (a *analyzer) report(d diag.Diagnostic, loc cfg.Location) {
	if !a.reporting {
		return
	}
	dl := a.diagLocation(loc)
	key := fmt.Sprintf("%s/%d/%s", dl, d.Code(), d.Error())
	if !a.reported.Insert(key) {
		return
	}
	a.logger.Debug("reporting diagnostic", "at", dl.String(), "code", d.Code().String())
	a.diags = append(a.diags, diag.Locate(diag.New(d), dl))
}

// reportTerminator emits the diagnostics of the terminator of b,
// given the facts at the end of b
func (a *analyzer) reportTerminator(b *cfg.Block, facts Facts) {
	loc := cfg.Location{Block: b.ID, Index: b.TermIndex()}
	switch term := b.Term.(type) {
	case *cfg.Branch:
		a.recordBefore(originOf(a.graph, loc), facts)
		a.typeOf(term.Cond, facts, loc)
		if term.Guard != nil {
			a.checkGuard(term.Guard, facts, loc)
		}
	case *cfg.Switch:
		a.recordBefore(term.Stmt, facts)
		a.typeOf(term.Discriminant, facts, loc)
		for i, c := range term.Cases {
			a.typeOf(c.Value, facts, loc)
			if g := a.caseGuards(term)[i]; g != nil {
				a.checkGuard(g, facts, loc)
			}
		}
		if !term.HasDefault {
			a.checkSwitch(term, facts, loc)
		}
	case *cfg.Return:
		if term.Stmt != nil {
			a.recordBefore(term.Stmt, facts)
		}
		if term.Value != nil {
			a.typeOf(term.Value, facts, loc)
		}
	case *cfg.Throw:
		a.recordBefore(term.Stmt, facts)
		a.typeOf(term.Value, facts, loc)
	}
}

// originOf finds the statement a terminator was lowered from, if any
func originOf(g *cfg.Graph, loc cfg.Location) ir.Stmt {
	for stmt, l := range g.Origins {
		if l == loc {
			return stmt
		}
	}
	return nil
}
