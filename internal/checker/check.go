// Package checker decides whether a dataflow graph is well typed: every
// node gets a stream type, every stream is consumed exactly once, and
// the order streams are consumed in is realizable in a single pass
// without implicit buffering.
//
// Acceptance produces an ir.TypedGraph, the proof both evaluation
// backends require. Rejections are *ir.TypeError values naming the
// offending nodes; a structurally broken graph (dangling ids, missing
// branches) is reported as a plain error since it indicates a defective
// front end rather than an ill-typed program.
package checker

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// Check validates g and assigns every node its stream type. Input types
// are taken from the input nodes' annotations.
func Check(g *ir.Graph) (*ir.TypedGraph, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, fmt.Errorf("checker: empty graph")
	}
	if !g.Valid(g.Output) {
		return nil, fmt.Errorf("checker: output node %d out of range", g.Output)
	}
	c := &checker{
		g:     g,
		types: make([]ir.Type, len(g.Nodes)),
		state: make([]inferState, len(g.Nodes)),
	}
	for id := range g.Nodes {
		if _, err := c.infer(ir.NodeID(id)); err != nil {
			return nil, err
		}
	}
	if err := c.checkStructure(); err != nil {
		return nil, err
	}
	if err := c.checkConsumption(); err != nil {
		return nil, err
	}
	if err := c.checkOrder(); err != nil {
		return nil, err
	}
	return &ir.TypedGraph{Graph: g, Types: c.types}, nil
}

type inferState uint8

const (
	unvisited inferState = iota
	inferring
	inferred
)

type checker struct {
	g     *ir.Graph
	types []ir.Type
	state []inferState
}

func (c *checker) infer(id ir.NodeID) (ir.Type, error) {
	if !c.g.Valid(id) {
		return nil, fmt.Errorf("checker: node %d out of range", id)
	}
	switch c.state[id] {
	case inferred:
		return c.types[id], nil
	case inferring:
		return nil, fmt.Errorf("checker: node %d participates in a type cycle", id)
	}
	c.state[id] = inferring
	t, err := c.inferNode(c.g.Node(id))
	if err != nil {
		return nil, err
	}
	c.types[id] = t
	c.state[id] = inferred
	return t, nil
}

func (c *checker) inferArgs(n *ir.Node, want int) ([]ir.Type, error) {
	if len(n.Args) != want {
		return nil, fmt.Errorf("checker: node %d (%s) has %d args, want %d", n.ID, n.Kind, len(n.Args), want)
	}
	ts := make([]ir.Type, want)
	for i, a := range n.Args {
		t, err := c.infer(a)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

func (c *checker) inferNode(n *ir.Node) (ir.Type, error) {
	switch n.Kind {
	case ir.OpVar:
		if n.Ann == nil || !ir.WellFormed(n.Ann) {
			return nil, fmt.Errorf("checker: input %q has a malformed type annotation", n.Name)
		}
		return n.Ann, nil

	case ir.OpConst:
		k := ir.KindOf(n.Val)
		if k == ir.ElemInvalid {
			return nil, fmt.Errorf("checker: node %d has an invalid literal payload", n.ID)
		}
		return ir.Singleton{Elem: k}, nil

	case ir.OpEps:
		return ir.Eps{}, nil

	case ir.OpCat:
		ts, err := c.inferArgs(n, 2)
		if err != nil {
			return nil, err
		}
		return ir.Concat{Left: ts[0], Right: ts[1]}, nil

	case ir.OpBound:
		return c.inferBound(n)

	case ir.OpInjL, ir.OpInjR:
		ts, err := c.inferArgs(n, 1)
		if err != nil {
			return nil, err
		}
		ann, ok := n.Ann.(ir.Sum)
		if !ok {
			return nil, fmt.Errorf("checker: node %d (%s) lacks a sum annotation", n.ID, n.Kind)
		}
		side, name := ann.Left, "left"
		if n.Kind == ir.OpInjR {
			side, name = ann.Right, "right"
		}
		if !ir.TypeEqual(side, ts[0]) {
			return nil, &ir.TypeError{
				Code:    ir.ErrBranchMismatch,
				Message: name + " injection payload disagrees with the sum annotation",
				Node:    n.ID,
				Other:   n.Args[0],
				Want:    side.String(),
				Got:     ts[0].String(),
			}
		}
		return ann, nil

	case ir.OpCase:
		ts, err := c.inferArgs(n, 1)
		if err != nil {
			return nil, err
		}
		if _, ok := ts[0].(ir.Sum); !ok {
			return nil, &ir.TypeError{
				Code:    ir.ErrNotSum,
				Message: "case of a non-sum",
				Node:    n.Args[0],
				Other:   ir.NoNode,
				Want:    "Sum(_, _)",
				Got:     ts[0].String(),
			}
		}
		return c.inferBranchExits(n, 2)

	case ir.OpNil:
		ann, ok := n.Ann.(ir.Star)
		if !ok || !ir.WellFormed(ann) {
			return nil, fmt.Errorf("checker: node %d lacks a star annotation", n.ID)
		}
		return ann, nil

	case ir.OpCons:
		ts, err := c.inferArgs(n, 2)
		if err != nil {
			return nil, err
		}
		st, ok := ts[1].(ir.Star)
		if !ok {
			return nil, &ir.TypeError{
				Code:    ir.ErrNotStar,
				Message: "cons onto a non-star",
				Node:    n.Args[1],
				Other:   ir.NoNode,
				Want:    "Star(_)",
				Got:     ts[1].String(),
			}
		}
		if !ir.TypeEqual(st.Elem, ts[0]) {
			return nil, &ir.TypeError{
				Code:    ir.ErrBranchMismatch,
				Message: "cons element disagrees with the stream element type",
				Node:    n.Args[0],
				Other:   n.Args[1],
				Want:    st.Elem.String(),
				Got:     ts[0].String(),
			}
		}
		return st, nil

	case ir.OpStarCase:
		ts, err := c.inferArgs(n, 1)
		if err != nil {
			return nil, err
		}
		if _, ok := ts[0].(ir.Star); !ok {
			return nil, &ir.TypeError{
				Code:    ir.ErrNotStar,
				Message: "star case of a non-star",
				Node:    n.Args[0],
				Other:   ir.NoNode,
				Want:    "Star(_)",
				Got:     ts[0].String(),
			}
		}
		return c.inferBranchExits(n, 2)

	case ir.OpRec:
		ts, err := c.inferArgs(n, 1)
		if err != nil {
			return nil, err
		}
		if n.Loop < 0 || int(n.Loop) >= len(c.g.Loops) {
			return nil, fmt.Errorf("checker: node %d names an unknown loop %d", n.ID, n.Loop)
		}
		meta := c.g.Loop(n.Loop)
		scrut, err := c.infer(meta.Scrutinee)
		if err != nil {
			return nil, err
		}
		if !ir.TypeEqual(ts[0], scrut) {
			return nil, &ir.TypeError{
				Code:    ir.ErrBranchMismatch,
				Message: "recursive call argument disagrees with the loop scrutinee",
				Node:    n.ID,
				Other:   meta.Scrutinee,
				Want:    scrut.String(),
				Got:     ts[0].String(),
			}
		}
		result, err := c.infer(meta.NilExit)
		if err != nil {
			return nil, err
		}
		if n.Ann != nil && !ir.TypeEqual(n.Ann, result) {
			return nil, &ir.TypeError{
				Code:    ir.ErrBranchMismatch,
				Message: "recursive call annotation disagrees with the loop result",
				Node:    n.ID,
				Other:   meta.NilExit,
				Want:    result.String(),
				Got:     n.Ann.String(),
			}
		}
		return result, nil

	case ir.OpZip:
		ts, err := c.inferArgs(n, 2)
		if err != nil {
			return nil, err
		}
		for i, t := range ts {
			if _, ok := t.(ir.Star); !ok {
				return nil, &ir.TypeError{
					Code:    ir.ErrNotStar,
					Message: "zip of a non-star",
					Node:    n.Args[i],
					Other:   ir.NoNode,
					Want:    "Star(_)",
					Got:     t.String(),
				}
			}
		}
		if len(n.Branches) != 1 {
			return nil, fmt.Errorf("checker: node %d (zip) has %d branches, want 1", n.ID, len(n.Branches))
		}
		body, err := c.infer(n.Branches[0].Exit)
		if err != nil {
			return nil, err
		}
		return ir.Star{Elem: body}, nil

	case ir.OpBuffer:
		ts, err := c.inferArgs(n, 1)
		if err != nil {
			return nil, err
		}
		return ts[0], nil

	case ir.OpRelease:
		ts, err := c.inferArgs(n, 1)
		if err != nil {
			return nil, err
		}
		if c.g.Node(n.Args[0]).Kind != ir.OpBuffer {
			return nil, &ir.TypeError{
				Code:    ir.ErrUnmatchedBuffer,
				Message: "release of a non-buffer",
				Node:    n.Args[0],
				Other:   ir.NoNode,
			}
		}
		return ts[0], nil

	default:
		return nil, fmt.Errorf("checker: node %d has invalid kind %d", n.ID, n.Kind)
	}
}

// inferBound types the variable an eliminator binds from its
// scrutinee's type.
func (c *checker) inferBound(n *ir.Node) (ir.Type, error) {
	if !c.g.Valid(n.Origin) {
		return nil, fmt.Errorf("checker: bound node %d has a dangling origin", n.ID)
	}
	origin := c.g.Node(n.Origin)

	scrutineeOf := func(argIdx int) (ir.Type, ir.NodeID, error) {
		if argIdx >= len(origin.Args) {
			return nil, ir.NoNode, fmt.Errorf("checker: bound node %d origin %d lacks arg %d", n.ID, n.Origin, argIdx)
		}
		t, err := c.infer(origin.Args[argIdx])
		return t, origin.Args[argIdx], err
	}

	switch n.Role {
	case ir.RoleCatFst, ir.RoleCatSnd:
		t, err := c.infer(n.Origin)
		if err != nil {
			return nil, err
		}
		cat, ok := t.(ir.Concat)
		if !ok {
			return nil, &ir.TypeError{
				Code:    ir.ErrNotConcat,
				Message: "split of a non-concatenation",
				Node:    n.Origin,
				Other:   ir.NoNode,
				Want:    "Cat(_, _)",
				Got:     t.String(),
			}
		}
		if n.Role == ir.RoleCatFst {
			return cat.Left, nil
		}
		return cat.Right, nil

	case ir.RoleCaseLeft, ir.RoleCaseRight:
		t, sid, err := scrutineeOf(0)
		if err != nil {
			return nil, err
		}
		sum, ok := t.(ir.Sum)
		if !ok {
			return nil, &ir.TypeError{
				Code: ir.ErrNotSum, Message: "case of a non-sum",
				Node: sid, Other: ir.NoNode, Want: "Sum(_, _)", Got: t.String(),
			}
		}
		if n.Role == ir.RoleCaseLeft {
			return sum.Left, nil
		}
		return sum.Right, nil

	case ir.RoleConsHead, ir.RoleConsTail:
		t, sid, err := scrutineeOf(0)
		if err != nil {
			return nil, err
		}
		st, ok := t.(ir.Star)
		if !ok {
			return nil, &ir.TypeError{
				Code: ir.ErrNotStar, Message: "star case of a non-star",
				Node: sid, Other: ir.NoNode, Want: "Star(_)", Got: t.String(),
			}
		}
		if n.Role == ir.RoleConsHead {
			return st.Elem, nil
		}
		return st, nil

	case ir.RoleZipLeft, ir.RoleZipRight:
		idx := 0
		if n.Role == ir.RoleZipRight {
			idx = 1
		}
		t, sid, err := scrutineeOf(idx)
		if err != nil {
			return nil, err
		}
		st, ok := t.(ir.Star)
		if !ok {
			return nil, &ir.TypeError{
				Code: ir.ErrNotStar, Message: "zip of a non-star",
				Node: sid, Other: ir.NoNode, Want: "Star(_)", Got: t.String(),
			}
		}
		return st.Elem, nil

	default:
		return nil, fmt.Errorf("checker: bound node %d has invalid role %d", n.ID, n.Role)
	}
}

// inferBranchExits types a branching node from its arm exits, requiring
// every arm to produce the same type.
func (c *checker) inferBranchExits(n *ir.Node, arms int) (ir.Type, error) {
	if len(n.Branches) != arms {
		return nil, fmt.Errorf("checker: node %d (%s) has %d branches, want %d", n.ID, n.Kind, len(n.Branches), arms)
	}
	first, err := c.infer(n.Branches[0].Exit)
	if err != nil {
		return nil, err
	}
	for _, b := range n.Branches[1:] {
		t, err := c.infer(b.Exit)
		if err != nil {
			return nil, err
		}
		if !ir.TypeEqual(first, t) {
			return nil, &ir.TypeError{
				Code:    ir.ErrBranchMismatch,
				Message: "branch arms produce different types",
				Node:    n.Branches[0].Exit,
				Other:   b.Exit,
				Want:    first.String(),
				Got:     t.String(),
			}
		}
	}
	return first, nil
}

// checkStructure validates cross-references that type inference does
// not visit: loop metadata and recursive call placement.
func (c *checker) checkStructure() error {
	for i, meta := range c.g.Loops {
		if !c.g.Valid(meta.StarCase) || !c.g.Valid(meta.Scrutinee) || !c.g.Valid(meta.NilExit) {
			return fmt.Errorf("checker: loop %d has dangling node references", i)
		}
		if c.g.Node(meta.StarCase).Kind != ir.OpStarCase {
			return fmt.Errorf("checker: loop %d names node %d which is not a star case", i, meta.StarCase)
		}
	}
	for id := range c.g.Nodes {
		n := &c.g.Nodes[id]
		if n.Kind != ir.OpRec {
			continue
		}
		sc := c.g.Node(c.g.Loop(n.Loop).StarCase)
		if len(sc.Branches) != 2 || !sc.Branches[1].Contains(n.ID) {
			return fmt.Errorf("checker: node %d recurses outside its loop's cons arm", n.ID)
		}
	}
	return nil
}
