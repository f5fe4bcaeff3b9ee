// Package analysis runs the narrowing engine over the functions of a program.
//
// Analyze handles a single function. AnalyzeProgram analyses every function of
// a program concurrently, sharing one interning table, and returns the results
// in declaration order.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/cottand/narrow/frontend/cfg"
	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/narrowing"
	"github.com/cottand/narrow/frontend/types"
	"github.com/cottand/narrow/internal/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v3"
	"golang.org/x/sync/errgroup"
)

var logger = log.DefaultLogger.With("section", "analysis")

type Options struct {
	// MaxIterations bounds the fixpoint of every function,
	// see narrowing.Options
	MaxIterations int
	// Parallelism is the number of functions analysed at once.
	// Zero means runtime.GOMAXPROCS.
	Parallelism int
	Logger      *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger
}

// Result is the analysis of one function
type Result struct {
	Function *ir.Function
	Graph    *cfg.Graph
	// FlowTypes holds the facts at the entry of every reachable block
	FlowTypes map[cfg.BlockID]narrowing.Facts
	// ExitTypes holds the facts of every reachable block before its terminator
	ExitTypes   map[cfg.BlockID]narrowing.Facts
	Diagnostics []diag.Diagnostic
	Converged   bool
	Iterations  int

	flow *narrowing.Result
}

// TypeAt returns the flow type of the reference ref just before stmt
func (r *Result) TypeAt(stmt ir.Stmt, ref string) (types.Type, bool) {
	return r.flow.TypeAt(stmt, ref)
}

// Declared returns the declared type of a parameter or local
func (r *Result) Declared(name string) (types.Type, bool) {
	return r.flow.Declared(name)
}

// Analyze builds the flow graph of fn and narrows it. globals resolves the
// names fn refers to without declaring them, and may be nil.
//
// The diagnostics reported while constructing types for fn, like conflicting
// intersections found when instantiating a signature, are included in the
// result. ctx should therefore not be shared with concurrent analyses: use
// TypeCtx.Fork.
func Analyze(ctx *types.TypeCtx, fn *ir.Function, globals cfg.Scope, opts Options) *Result {
	l := opts.logger()
	before := ctx.Errors.Len()

	g := cfg.Build(fn, globals)
	flow := narrowing.Analyze(ctx, g, globals, narrowing.Options{
		MaxIterations: opts.MaxIterations,
		Logger:        l,
	})

	// the same intersection may be built on every pass of the fixpoint
	diagnostics := flow.Diagnostics
	seen := set.New[string](0)
	for _, d := range ctx.Errors.Errors()[before:] {
		if seen.Insert(d.Error()) {
			diagnostics = append(diagnostics, diag.Locate(d, diag.Location{Function: fn.Name, Block: -1}))
		}
	}
	return &Result{
		Function:    fn,
		Graph:       g,
		FlowTypes:   flow.FlowTypes,
		ExitTypes:   flow.ExitTypes,
		Diagnostics: diagnostics,
		Converged:   flow.Converged,
		Iterations:  flow.Iterations,
		flow:        flow,
	}
}

// Report holds the results of AnalyzeProgram, in the order the functions
// are declared
type Report struct {
	RunID   uuid.UUID
	Results []*Result
}

// Diagnostics returns every diagnostic of the report, function by function
func (r *Report) Diagnostics() *diag.Errors {
	errs := &diag.Errors{}
	for _, res := range r.Results {
		if res != nil {
			errs.With(res.Diagnostics...)
		}
	}
	return errs
}

// Result returns the result for the function named name
func (r *Report) Result(name string) (*Result, bool) {
	for _, res := range r.Results {
		if res != nil && res.Function.Name == name {
			return res, true
		}
	}
	return nil, false
}

// AnalyzeProgram analyses every function of program concurrently, with types
// built from ctx.
//
// Cancelling goCtx stops scheduling new functions; the returned report then
// has nil results for the functions that were not analysed, and the error
// wraps the context's.
func AnalyzeProgram(goCtx context.Context, ctx *types.TypeCtx, program *ir.Program, opts Options) (*Report, error) {
	report := &Report{
		RunID:   uuid.New(),
		Results: make([]*Result, len(program.Functions)),
	}
	l := slog.New(ir.SlogHandler(opts.logger().Handler())).With("run", report.RunID.String())
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	l.Info("analysing program", "functions", len(program.Functions), "parallelism", parallelism)

	globals := cfg.MapScope(program.Globals)
	group, groupCtx := errgroup.WithContext(goCtx)
	group.SetLimit(parallelism)
	for i, fn := range program.Functions {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			fnOpts := opts
			fnOpts.Logger = l
			report.Results[i] = Analyze(ctx.Fork().WithLogger(l.With("function", fn.Name)), fn, globals, fnOpts)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, fmt.Errorf("analysing program: %w", err)
	}
	if err := goCtx.Err(); err != nil {
		return report, fmt.Errorf("analysing program: %w", err)
	}

	errs := report.Diagnostics()
	l.Info("analysed program", "diagnostics", errs.Len(), "hasError", errs.HasError())
	l.Debug("program diagnostics", "diagnostics", errs)
	return report, nil
}
