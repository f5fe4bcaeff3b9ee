// Package cfg lowers the body of an ir.Function into a control flow graph of
// basic blocks. Conditions are split into guard-bearing branches, so the
// graph needs no further knowledge of && || ! or ?: once built.
package cfg

import (
	"fmt"
	"strings"

	"github.com/cottand/narrow/frontend/diag"
	"github.com/cottand/narrow/frontend/ir"
	"github.com/cottand/narrow/frontend/types"
	"golang.org/x/tools/container/intsets"
)

type BlockID int

// NoBlock is never the ID of a block
const NoBlock BlockID = -1

func (id BlockID) IsValid() bool { return id >= 0 }

type NodeKind uint8

const (
	// NodeDeclare introduces a local variable
	NodeDeclare NodeKind = iota + 1
	// NodeAssign stores Value into Target
	NodeAssign
	// NodeEval evaluates Value for its effects
	NodeEval
	// NodeAssert evaluates a call to an assertion function and narrows by Guard
	NodeAssert
)

// Node is a straight-line step of a block
type Node struct {
	Kind NodeKind
	// Stmt is the statement the node was lowered from
	Stmt ir.Stmt

	// Name and Type are set for NodeDeclare. Type may be nil when not annotated.
	Name string
	Type types.Type
	// Target is set for NodeAssign
	Target ir.Expr
	// Value may be nil for NodeDeclare
	Value ir.Expr
	// Deferred marks a NodeDeclare whose initial value is assigned by the
	// NodeAssign nodes of the branches following it
	Deferred bool
	// Guard is set for NodeAssert
	Guard Guard
}

type Terminator interface {
	fmt.Stringer
	Successors() []BlockID
}

var (
	_ Terminator = (*Branch)(nil)
	_ Terminator = (*Switch)(nil)
	_ Terminator = (*Jump)(nil)
	_ Terminator = (*Return)(nil)
	_ Terminator = (*Throw)(nil)
)

// Branch goes to Then when Cond holds and to Else otherwise.
// Guard is nil when the condition narrows nothing.
type Branch struct {
	Cond  ir.Expr
	Guard Guard
	Then  BlockID
	Else  BlockID
}

type SwitchCase struct {
	Value  ir.Expr
	Target BlockID
}

// Switch jumps to the first case whose value equals Discriminant, or to
// Default. Default is the block after the switch when HasDefault is unset.
type Switch struct {
	Stmt         *ir.Switch
	Discriminant ir.Expr
	Cases        []SwitchCase
	Default      BlockID
	HasDefault   bool
}

type Jump struct {
	Target BlockID
}

// Return may have a nil Stmt when it is the implicit return at the end of a function
type Return struct {
	Stmt  *ir.Return
	Value ir.Expr
}

type Throw struct {
	Stmt  *ir.Throw
	Value ir.Expr
}

func (t *Branch) Successors() []BlockID { return []BlockID{t.Then, t.Else} }
func (t *Switch) Successors() []BlockID {
	succs := make([]BlockID, 0, len(t.Cases)+1)
	for _, c := range t.Cases {
		succs = append(succs, c.Target)
	}
	return append(succs, t.Default)
}
func (t *Jump) Successors() []BlockID   { return []BlockID{t.Target} }
func (t *Return) Successors() []BlockID { return nil }
func (t *Throw) Successors() []BlockID  { return nil }

func (t *Branch) String() string {
	return fmt.Sprintf("branch %s [%v] -> b%d, b%d", ir.ExprString(t.Cond), t.Guard, t.Then, t.Else)
}
func (t *Switch) String() string {
	sb := strings.Builder{}
	sb.WriteString("switch " + ir.ExprString(t.Discriminant))
	for _, c := range t.Cases {
		fmt.Fprintf(&sb, " %s -> b%d;", ir.ExprString(c.Value), c.Target)
	}
	fmt.Fprintf(&sb, " default -> b%d", t.Default)
	return sb.String()
}
func (t *Jump) String() string { return fmt.Sprintf("jump b%d", t.Target) }
func (t *Return) String() string {
	if t.Value == nil {
		return "return"
	}
	return "return " + ir.ExprString(t.Value)
}
func (t *Throw) String() string { return "throw " + ir.ExprString(t.Value) }

type Block struct {
	ID    BlockID
	Label string
	Nodes []Node
	Term  Terminator
	Preds []BlockID
	// LoopHeader marks the target of a loop back edge
	LoopHeader bool
	// Dead marks blocks that cannot be reached from the entry
	Dead bool
}

// TermIndex is the statement index locating the terminator of b
func (b *Block) TermIndex() int { return len(b.Nodes) }

// Location is where a statement ended up in the graph
type Location struct {
	Block BlockID
	Index int
}

type Graph struct {
	Function *ir.Function
	Blocks   []*Block
	Entry    BlockID
	// Origins locates every statement of the function. Statements lowered
	// into several nodes are located at their first one.
	Origins map[ir.Stmt]Location
	// Diagnostics holds the UnreachableCode warnings found while building
	Diagnostics []diag.Diagnostic
}

func (g *Graph) Block(id BlockID) *Block { return g.Blocks[id] }

// DiagLocation converts a location of g into a diagnostic location
func (g *Graph) DiagLocation(l Location) diag.Location {
	return diag.Location{Function: g.Function.Name, Block: int(l.Block), Index: l.Index}
}

// ReversePostorder lists the blocks reachable from the entry so that, loops
// aside, every block comes after its predecessors
func (g *Graph) ReversePostorder() []BlockID {
	var visited intsets.Sparse
	var post []BlockID
	var visit func(id BlockID)
	visit = func(id BlockID) {
		if !visited.Insert(int(id)) {
			return
		}
		succs := g.Blocks[id].Term.Successors()
		for _, s := range succs {
			visit(s)
		}
		post = append(post, id)
	}
	visit(g.Entry)

	rpo := make([]BlockID, len(post))
	for i, id := range post {
		rpo[len(post)-1-i] = id
	}
	return rpo
}

func (g *Graph) String() string {
	sb := strings.Builder{}
	for _, b := range g.Blocks {
		fmt.Fprintf(&sb, "b%d (%s)", b.ID, b.Label)
		if b.LoopHeader {
			sb.WriteString(" loop")
		}
		if b.Dead {
			sb.WriteString(" dead")
		}
		fmt.Fprintf(&sb, " preds=%v\n", b.Preds)
		for _, n := range b.Nodes {
			sb.WriteString("  " + n.String() + "\n")
		}
		sb.WriteString("  " + b.Term.String() + "\n")
	}
	return sb.String()
}

func (n Node) String() string {
	switch n.Kind {
	case NodeDeclare:
		s := "let " + n.Name
		if n.Type != nil {
			s += ": " + n.Type.String()
		}
		if n.Value != nil && !n.Deferred {
			s += " = " + ir.ExprString(n.Value)
		}
		return s
	case NodeAssign:
		return ir.ExprString(n.Target) + " = " + ir.ExprString(n.Value)
	case NodeAssert:
		return ir.ExprString(n.Value) + " [" + n.Guard.String() + "]"
	default:
		return ir.ExprString(n.Value)
	}
}
