package checker

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// Usage-order checking: the single-pass evaluation discipline fixes the
// order in which parts of a shared stream can be read. A concatenation
// split must serve its first half before its second; emitting a
// concatenation reads its left operand's sources before its right; a
// zip interleaves its two sides. Each rule contributes required or
// forbidden precedence edges between usages, and the graph is accepted
// only while the two sets stay disjoint. Explicit buffering erases a
// stream's order constraints, which is exactly its purpose.

func (c *checker) checkOrder() error {
	ord := newOrdering()
	vars := make([][]ir.NodeID, len(c.g.Nodes))
	done := make([]bool, len(c.g.Nodes))

	for id := range c.g.Nodes {
		n := &c.g.Nodes[id]
		switch n.Kind {
		case ir.OpBound:
			src := n.Origin
			if n.Role != ir.RoleCatFst && n.Role != ir.RoleCatSnd {
				src = c.scrutineeOfBound(n)
			}
			ord.inPlaceOf(n.ID, c.varsOf(src, vars, done))
			if n.Role == ir.RoleCatSnd {
				if fst := c.splitSibling(n); fst != ir.NoNode {
					ord.ordered([]ir.NodeID{fst}, []ir.NodeID{n.ID})
				}
			}

		case ir.OpCat, ir.OpCons:
			ord.ordered(c.varsOf(n.Args[0], vars, done), c.varsOf(n.Args[1], vars, done))

		case ir.OpStarCase:
			if len(n.Branches) == 2 && len(n.Branches[1].Bound) == 2 {
				head, tail := n.Branches[1].Bound[0], n.Branches[1].Bound[1]
				ord.ordered([]ir.NodeID{head}, []ir.NodeID{tail})
			}

		case ir.OpCase:
			if len(n.Branches) == 2 {
				ord.unordered(n.Branches[0].Bound, n.Branches[1].Bound)
			}

		case ir.OpZip:
			ord.unordered(c.varsOf(n.Args[0], vars, done), c.varsOf(n.Args[1], vars, done))
		}

		if x, y, clash := ord.conflict(); clash {
			return &ir.TypeError{
				Code: ir.ErrOrderViolation,
				Message: fmt.Sprintf("%s must be consumed before %s, but the stream structure forbids that order",
					c.describe(x), c.describe(y)),
				Node:  x,
				Other: y,
			}
		}
	}
	return nil
}

// varsOf returns the order-tracked usages a node's consumption touches.
// Literals carry none, buffered streams deliberately none, and bound
// variables and inputs stand for themselves.
func (c *checker) varsOf(id ir.NodeID, memo [][]ir.NodeID, done []bool) []ir.NodeID {
	if done[id] {
		return memo[id]
	}
	done[id] = true
	n := c.g.Node(id)
	var vs []ir.NodeID
	switch n.Kind {
	case ir.OpVar, ir.OpBound:
		vs = []ir.NodeID{id}
	case ir.OpConst, ir.OpEps, ir.OpNil, ir.OpBuffer, ir.OpRelease:
		vs = nil
	case ir.OpCat, ir.OpCons:
		vs = union(c.varsOf(n.Args[0], memo, done), c.varsOf(n.Args[1], memo, done))
	case ir.OpInjL, ir.OpInjR, ir.OpRec:
		vs = c.varsOf(n.Args[0], memo, done)
	case ir.OpCase, ir.OpStarCase:
		for _, b := range n.Branches {
			vs = union(vs, c.varsOf(b.Exit, memo, done))
		}
	case ir.OpZip:
		vs = union(c.varsOf(n.Args[0], memo, done), c.varsOf(n.Args[1], memo, done))
		for _, b := range n.Branches {
			vs = union(vs, c.varsOf(b.Exit, memo, done))
		}
	}
	memo[id] = vs
	return vs
}

func (c *checker) scrutineeOfBound(n *ir.Node) ir.NodeID {
	origin := c.g.Node(n.Origin)
	idx := 0
	if n.Role == ir.RoleZipRight {
		idx = 1
	}
	return origin.Args[idx]
}

// splitSibling finds the first-half projection paired with a
// second-half projection of the same split.
func (c *checker) splitSibling(snd *ir.Node) ir.NodeID {
	for id := range c.g.Nodes {
		n := &c.g.Nodes[id]
		if n.Kind == ir.OpBound && n.Role == ir.RoleCatFst && n.Origin == snd.Origin {
			return n.ID
		}
	}
	return ir.NoNode
}

func (c *checker) describe(id ir.NodeID) string {
	n := c.g.Node(id)
	switch {
	case n.Kind == ir.OpVar:
		return fmt.Sprintf("input %q", n.Name)
	case n.Kind == ir.OpBound:
		return fmt.Sprintf("the %s binding of node %d", n.Role, n.Origin)
	default:
		return fmt.Sprintf("node %d", id)
	}
}

func union(a, b []ir.NodeID) []ir.NodeID {
	if len(a) == 0 {
		return b
	}
	seen := make(map[ir.NodeID]struct{}, len(a))
	out := append([]ir.NodeID{}, a...)
	for _, x := range a {
		seen[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := seen[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}
