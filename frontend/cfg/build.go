package cfg

import (
	"slices"

	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/internal/log"
	"github.com/cottand/narrow/util"
	"golang.org/x/tools/container/intsets"
)

var logger = log.DefaultLogger.With("section", "cfg")

type loopTargets struct {
	// continueTo is NoBlock for switch statements, which only catch break
	continueTo BlockID
	breakTo    BlockID
}

type builder struct {
	g     *Graph
	scope Scope
	// cur is nil after a jump, until the next statement opens a new block
	cur     *Block
	targets util.Stack[loopTargets]
}

// Build lowers the body of fn into a control flow graph. scope resolves the
// callees of the function, so that calls to predicates and assertion
// functions become guards. It performs no narrowing.
func Build(fn *ir.Function, scope Scope) *Graph {
	b := &builder{
		g: &Graph{
			Function: fn,
			Origins:  make(map[ir.Stmt]Location),
		},
		scope: scope,
	}
	entry := b.newBlock("entry")
	b.g.Entry = entry.ID
	b.cur = entry

	b.stmts(fn.Body)
	if b.cur != nil {
		b.cur.Term = &Return{}
	}
	b.markDead()

	logger.Debug("built graph", "function", fn.Name, "blocks", len(b.g.Blocks))
	return b.g
}

func (b *builder) newBlock(label string) *Block {
	block := &Block{ID: BlockID(len(b.g.Blocks)), Label: label}
	b.g.Blocks = append(b.g.Blocks, block)
	return block
}

// edge records from as a predecessor of to, once even when several case
// labels lead to the same block
func (b *builder) edge(from *Block, to BlockID) {
	target := b.g.Blocks[to]
	if !slices.Contains(target.Preds, from.ID) {
		target.Preds = append(target.Preds, from.ID)
	}
}

// terminate ends the current block with t and leaves no block open
func (b *builder) terminate(t Terminator) {
	b.cur.Term = t
	for _, succ := range t.Successors() {
		b.edge(b.cur, succ)
	}
	b.cur = nil
}

func (b *builder) jump(to *Block) {
	if b.cur != nil {
		b.terminate(&Jump{Target: to.ID})
	}
}

// open makes sure there is a current block to append to. Statements after
// a jump go to a fresh block without predecessors, found dead later.
func (b *builder) open() *Block {
	if b.cur == nil {
		b.cur = b.newBlock("unreachable")
	}
	return b.cur
}

func (b *builder) locate(stmt ir.Stmt, index int) {
	if _, ok := b.g.Origins[stmt]; !ok {
		b.g.Origins[stmt] = Location{Block: b.cur.ID, Index: index}
	}
}

func (b *builder) add(n Node) {
	b.locate(n.Stmt, len(b.cur.Nodes))
	b.cur.Nodes = append(b.cur.Nodes, n)
}

func (b *builder) locateTerm(stmt ir.Stmt) {
	b.locate(stmt, b.cur.TermIndex())
}

func (b *builder) stmts(stmts []ir.Stmt) {
	for _, s := range stmts {
		b.stmt(s)
	}
}

func (b *builder) stmt(s ir.Stmt) {
	b.open()
	switch s := s.(type) {
	case *ir.Declare:
		cond, isCond := s.Init.(*ir.Conditional)
		b.add(Node{Kind: NodeDeclare, Stmt: s, Name: s.Name, Type: s.Type, Value: s.Init, Deferred: isCond})
		if isCond {
			b.conditionalValue(s, &ir.Ident{Range: s.Range, Name: s.Name}, cond)
		}
	case *ir.Assign:
		if cond, ok := s.Value.(*ir.Conditional); ok {
			b.conditionalValue(s, s.Target, cond)
			return
		}
		b.add(Node{Kind: NodeAssign, Stmt: s, Target: s.Target, Value: s.Value})
	case *ir.ExprStmt:
		b.exprStmt(s)
	case *ir.If:
		b.ifStmt(s)
	case *ir.Switch:
		b.switchStmt(s)
	case *ir.While:
		b.whileStmt(s)
	case *ir.Break:
		b.locateTerm(s)
		if t, ok := b.innermost(false); ok {
			b.terminate(&Jump{Target: t.breakTo})
			return
		}
		logger.Warn("break outside of loop or switch", "at", s.Range.String())
		b.terminate(&Return{})
	case *ir.Continue:
		b.locateTerm(s)
		if t, ok := b.innermost(true); ok {
			b.terminate(&Jump{Target: t.continueTo})
			return
		}
		logger.Warn("continue outside of loop", "at", s.Range.String())
		b.terminate(&Return{})
	case *ir.Return:
		b.locateTerm(s)
		b.returnValue(s, s.Value)
	case *ir.Throw:
		b.locateTerm(s)
		b.terminate(&Throw{Stmt: s, Value: s.Value})
	}
}

// innermost finds the closest enclosing break (or continue) target
func (b *builder) innermost(forContinue bool) (loopTargets, bool) {
	for t := range b.targets.TopDown() {
		if !forContinue || t.continueTo.IsValid() {
			return t, true
		}
	}
	return loopTargets{}, false
}

func (b *builder) exprStmt(s *ir.ExprStmt) {
	call, ok := s.X.(*ir.Call)
	if !ok {
		b.add(Node{Kind: NodeEval, Stmt: s, Value: s.X})
		return
	}
	pred, ok := predicateOf(call, b.scope)
	if !ok || !pred.Asserts || pred.Param >= len(call.Args) {
		b.add(Node{Kind: NodeEval, Stmt: s, Value: s.X})
		return
	}
	arg := call.Args[pred.Param]
	guard := AssertionCall{Call: call, ArgIndex: pred.Param}
	if pred.Type == nil {
		guard.Cond = DeriveGuard(arg, b.scope)
	} else if ref, ok := refOf(arg); ok {
		guard.Ref = ref
		guard.Narrowed = pred.Type
	}
	b.add(Node{Kind: NodeAssert, Stmt: s, Value: s.X, Guard: guard})
}

// conditionalValue lowers `target = c ? a : b` into a branch assigning each side
func (b *builder) conditionalValue(s ir.Stmt, target ir.Expr, cond *ir.Conditional) {
	thenBlock, elseBlock := b.newBlock("cond.then"), b.newBlock("cond.else")
	join := b.newBlock("cond.join")
	b.locateTerm(s)
	b.cond(cond.Cond, thenBlock.ID, elseBlock.ID)

	for _, side := range []struct {
		block *Block
		value ir.Expr
	}{{thenBlock, cond.Then}, {elseBlock, cond.Else}} {
		b.cur = side.block
		if nested, ok := side.value.(*ir.Conditional); ok {
			b.conditionalValue(s, target, nested)
		} else {
			b.add(Node{Kind: NodeAssign, Stmt: s, Target: target, Value: side.value})
		}
		b.jump(join)
	}
	b.cur = join
}

func (b *builder) returnValue(s *ir.Return, value ir.Expr) {
	cond, ok := value.(*ir.Conditional)
	if !ok {
		b.terminate(&Return{Stmt: s, Value: value})
		return
	}
	thenBlock, elseBlock := b.newBlock("return.then"), b.newBlock("return.else")
	b.cond(cond.Cond, thenBlock.ID, elseBlock.ID)
	b.cur = thenBlock
	b.returnValue(s, cond.Then)
	b.cur = elseBlock
	b.returnValue(s, cond.Else)
}

// cond ends the current block with branches on e, going to t when e holds
// and to f otherwise. Logical operators and conditionals are split so that
// every branch carries the guard of one atomic condition.
func (b *builder) cond(e ir.Expr, t, f BlockID) {
	switch e := e.(type) {
	case *ir.Unary:
		if e.Op == ir.OpNot {
			b.cond(e.X, f, t)
			return
		}
	case *ir.Binary:
		switch e.Op {
		case ir.OpAnd:
			rhs := b.newBlock("and.rhs")
			b.cond(e.Left, rhs.ID, f)
			b.cur = rhs
			b.cond(e.Right, t, f)
			return
		case ir.OpOr:
			rhs := b.newBlock("or.rhs")
			b.cond(e.Left, t, rhs.ID)
			b.cur = rhs
			b.cond(e.Right, t, f)
			return
		}
	case *ir.Conditional:
		thenBlock, elseBlock := b.newBlock("ternary.then"), b.newBlock("ternary.else")
		b.cond(e.Cond, thenBlock.ID, elseBlock.ID)
		b.cur = thenBlock
		b.cond(e.Then, t, f)
		b.cur = elseBlock
		b.cond(e.Else, t, f)
		return
	case *ir.Literal:
		if e.Kind == ir.LitBoolean {
			if e.Value == "true" {
				b.terminate(&Jump{Target: t})
			} else {
				b.terminate(&Jump{Target: f})
			}
			return
		}
	}
	b.terminate(&Branch{Cond: e, Guard: DeriveGuard(e, b.scope), Then: t, Else: f})
}

func (b *builder) ifStmt(s *ir.If) {
	thenBlock := b.newBlock("if.then")
	join := b.newBlock("if.join")
	elseTarget := join
	if len(s.Else) > 0 {
		elseTarget = b.newBlock("if.else")
	}
	b.locateTerm(s)
	b.cond(s.Cond, thenBlock.ID, elseTarget.ID)

	b.cur = thenBlock
	b.stmts(s.Then)
	b.jump(join)

	if len(s.Else) > 0 {
		b.cur = elseTarget
		b.stmts(s.Else)
		b.jump(join)
	}
	b.cur = join
}

func (b *builder) whileStmt(s *ir.While) {
	header := b.newBlock("loop.header")
	header.LoopHeader = true
	body := b.newBlock("loop.body")
	exit := b.newBlock("loop.exit")

	b.jump(header)
	b.cur = header
	b.locateTerm(s)
	b.cond(s.Cond, body.ID, exit.ID)

	b.targets.Push(loopTargets{continueTo: header.ID, breakTo: exit.ID})
	b.cur = body
	b.stmts(s.Body)
	b.jump(header)
	b.targets.Pop()

	b.cur = exit
}

func (b *builder) switchStmt(s *ir.Switch) {
	exit := b.newBlock("switch.exit")
	caseBlocks := make([]*Block, len(s.Cases))
	term := &Switch{Stmt: s, Discriminant: s.Discriminant, Default: exit.ID, HasDefault: s.HasDefault}
	for i, c := range s.Cases {
		caseBlocks[i] = b.newBlock("switch.case")
		for _, v := range c.Values {
			term.Cases = append(term.Cases, SwitchCase{Value: v, Target: caseBlocks[i].ID})
		}
	}
	var defaultBlock *Block
	if s.HasDefault {
		defaultBlock = b.newBlock("switch.default")
		term.Default = defaultBlock.ID
	}
	b.locateTerm(s)
	b.terminate(term)

	b.targets.Push(loopTargets{continueTo: NoBlock, breakTo: exit.ID})
	for i, c := range s.Cases {
		b.cur = caseBlocks[i]
		b.stmts(c.Body)
		// fall through to the next clause
		switch {
		case i+1 < len(caseBlocks):
			b.jump(caseBlocks[i+1])
		case defaultBlock != nil:
			b.jump(defaultBlock)
		default:
			b.jump(exit)
		}
	}
	if defaultBlock != nil {
		b.cur = defaultBlock
		b.stmts(s.Default)
		b.jump(exit)
	}
	b.targets.Pop()
	b.cur = exit
}

func hasContent(block *Block) bool {
	if len(block.Nodes) > 0 {
		return true
	}
	switch t := block.Term.(type) {
	case *Return:
		return t.Stmt != nil
	case *Jump:
		return false
	}
	return true
}

// markDead flags the blocks not reachable from the entry, and reports the
// first block of every unreachable region holding statements
func (b *builder) markDead() {
	var reachable intsets.Sparse
	for _, id := range b.g.ReversePostorder() {
		reachable.Insert(int(id))
	}
	for _, block := range b.g.Blocks {
		if reachable.Has(int(block.ID)) {
			continue
		}
		block.Dead = true
		if len(block.Preds) == 0 && hasContent(block) {
			loc := b.g.DiagLocation(Location{Block: block.ID, Index: 0})
			b.g.Diagnostics = append(b.g.Diagnostics, diag.Locate(diag.New(diag.NewUnreachableCode{}), loc))
		}
	}
}
