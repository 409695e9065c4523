// Package interp is the reference evaluator. It materializes the full
// token sequence of every node, which makes it slow and memory hungry
// but easy to trust: each graph operation maps directly onto one small
// function over complete values. The fusion backend is tested against
// it.
package interp

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// Run evaluates a checked graph against one token sequence per declared
// input and returns the output token sequence. Runtime errors are
// *ir.RuntimeError values; both backends report the same codes for the
// same inputs.
func Run(tg *ir.TypedGraph, inputs [][]ir.Token) ([]ir.Token, error) {
	g := tg.Graph
	if len(inputs) != len(g.Inputs) {
		return nil, fmt.Errorf("interp: got %d input sequences, want %d", len(inputs), len(g.Inputs))
	}
	ev := &evaluator{
		tg:     tg,
		g:      g,
		inputs: inputs,
		env:    make(map[ir.NodeID][]ir.Token),
		splits: make(map[ir.NodeID]*catSplit),
	}
	return ev.eval(g.Output)
}

type evaluator struct {
	tg     *ir.TypedGraph
	g      *ir.Graph
	inputs [][]ir.Token

	// env holds the materialized streams of bound variables. Linearity
	// guarantees each binding is read exactly once before a loop
	// iteration rebinds it, so a flat map suffices.
	env map[ir.NodeID][]ir.Token

	// splits caches the two halves of a Concat split, keyed by the split
	// source, so both projections share one materialization. An entry is
	// dropped once both halves are read; the next loop iteration then
	// splits the rebuilt source afresh.
	splits map[ir.NodeID]*catSplit
}

type catSplit struct {
	fst, snd         []ir.Token
	fstRead, sndRead bool
}

// catHalf materializes a Concat split's source on first touch of either
// projection and hands out the requested half.
func (ev *evaluator) catHalf(n *ir.Node) ([]ir.Token, error) {
	sp := ev.splits[n.Origin]
	if sp == nil {
		src, err := ev.eval(n.Origin)
		if err != nil {
			return nil, err
		}
		cat, ok := ev.tg.TypeOf(n.Origin).(ir.Concat)
		if !ok {
			return nil, fmt.Errorf("interp: split source %d is not a Concat", n.Origin)
		}
		cur := ir.NewCursor(src)
		fst, rerr := ir.ReadValue(cur, cat.Left)
		if rerr != nil {
			rerr.Node = n.ID
			return nil, rerr
		}
		sp = &catSplit{fst: fst, snd: cur.Rest()}
		ev.splits[n.Origin] = sp
	}
	var toks []ir.Token
	if n.Role == ir.RoleCatFst {
		toks, sp.fstRead = sp.fst, true
	} else {
		toks, sp.sndRead = sp.snd, true
	}
	if sp.fstRead && sp.sndRead {
		delete(ev.splits, n.Origin)
	}
	return toks, nil
}

func (ev *evaluator) eval(id ir.NodeID) ([]ir.Token, error) {
	n := ev.g.Node(id)
	switch n.Kind {
	case ir.OpVar:
		return ev.readInput(n)

	case ir.OpConst:
		return []ir.Token{ir.Val(n.Val)}, nil

	case ir.OpEps:
		return nil, nil

	case ir.OpCat:
		left, err := ev.eval(n.Args[0])
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(n.Args[1])
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case ir.OpBound:
		if n.Role == ir.RoleCatFst || n.Role == ir.RoleCatSnd {
			return ev.catHalf(n)
		}
		toks, ok := ev.env[id]
		if !ok {
			return nil, fmt.Errorf("interp: binding %d read before it was bound", id)
		}
		return toks, nil

	case ir.OpInjL:
		return ev.tagged(ir.TagLeft, n.Args[0])

	case ir.OpInjR:
		return ev.tagged(ir.TagRight, n.Args[0])

	case ir.OpCase:
		scrut, err := ev.eval(n.Args[0])
		if err != nil {
			return nil, err
		}
		return ev.evalCase(n, scrut)

	case ir.OpNil:
		return []ir.Token{ir.Done}, nil

	case ir.OpCons:
		head, err := ev.eval(n.Args[0])
		if err != nil {
			return nil, err
		}
		tail, err := ev.eval(n.Args[1])
		if err != nil {
			return nil, err
		}
		out := make([]ir.Token, 0, 1+len(head)+len(tail))
		out = append(out, ir.More)
		out = append(out, head...)
		return append(out, tail...), nil

	case ir.OpStarCase:
		scrut, err := ev.eval(n.Args[0])
		if err != nil {
			return nil, err
		}
		return ev.evalStarCase(n, scrut)

	case ir.OpRec:
		tail, err := ev.eval(n.Args[0])
		if err != nil {
			return nil, err
		}
		sc := ev.g.Node(ev.g.Loop(n.Loop).StarCase)
		return ev.evalStarCase(sc, tail)

	case ir.OpZip:
		return ev.evalZip(n)

	case ir.OpBuffer, ir.OpRelease:
		// Replaying a buffer materializes its source; the eager
		// evaluator materializes everything anyway.
		return ev.eval(n.Args[0])

	default:
		return nil, fmt.Errorf("interp: node %d has invalid kind %d", id, n.Kind)
	}
}

func (ev *evaluator) tagged(tag ir.Token, arg ir.NodeID) ([]ir.Token, error) {
	payload, err := ev.eval(arg)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Token, 0, 1+len(payload))
	out = append(out, tag)
	return append(out, payload...), nil
}

// readInput consumes the declared input in full: exactly one value of
// the declared type, with nothing left over.
func (ev *evaluator) readInput(n *ir.Node) ([]ir.Token, error) {
	idx := ev.g.InputIndex(n.Name)
	cur := ir.NewCursor(ev.inputs[idx])
	toks, rerr := ir.ReadValue(cur, n.Ann)
	if rerr != nil {
		rerr.Node = n.ID
		rerr.Input = idx
		return nil, rerr
	}
	if !cur.Exhausted() {
		e := ir.NewRuntimeError(ir.ErrCodeTrailingInput, "tokens remain after the declared input value")
		e.Node = n.ID
		e.Input = idx
		e.Got = fmt.Sprintf("%d extra tokens", cur.Remaining())
		return nil, e
	}
	return toks, nil
}

func (ev *evaluator) evalCase(n *ir.Node, scrut []ir.Token) ([]ir.Token, error) {
	if len(scrut) == 0 {
		return nil, ev.badStream(n.ID, "left or right", "empty stream")
	}
	var br ir.Branch
	switch scrut[0].Kind {
	case ir.KindTagLeft:
		br = n.Branches[0]
	case ir.KindTagRight:
		br = n.Branches[1]
	default:
		return nil, ev.badStream(n.ID, "left or right", scrut[0].String())
	}
	ev.env[br.Bound[0]] = scrut[1:]
	return ev.eval(br.Exit)
}

func (ev *evaluator) evalStarCase(n *ir.Node, scrut []ir.Token) ([]ir.Token, error) {
	if len(scrut) == 0 {
		return nil, ev.badStream(n.ID, "more or done", "empty stream")
	}
	switch scrut[0].Kind {
	case ir.KindDone:
		return ev.eval(n.Branches[0].Exit)
	case ir.KindMore:
		elem := ev.tg.TypeOf(n.Args[0]).(ir.Star).Elem
		cur := ir.NewCursor(scrut[1:])
		head, rerr := ir.ReadValue(cur, elem)
		if rerr != nil {
			rerr.Node = n.ID
			return nil, rerr
		}
		cons := n.Branches[1]
		ev.env[cons.Bound[0]] = head
		ev.env[cons.Bound[1]] = cur.Rest()
		return ev.eval(cons.Exit)
	default:
		return nil, ev.badStream(n.ID, "more or done", scrut[0].String())
	}
}

func (ev *evaluator) evalZip(n *ir.Node) ([]ir.Token, error) {
	xs, err := ev.eval(n.Args[0])
	if err != nil {
		return nil, err
	}
	ys, err := ev.eval(n.Args[1])
	if err != nil {
		return nil, err
	}
	elemX := ev.tg.TypeOf(n.Args[0]).(ir.Star).Elem
	elemY := ev.tg.TypeOf(n.Args[1]).(ir.Star).Elem
	body := n.Branches[0]

	cx, cy := ir.NewCursor(xs), ir.NewCursor(ys)
	out := []ir.Token{}
	for {
		tx, okx := cx.Next()
		ty, oky := cy.Next()
		if !okx || !oky {
			return nil, ev.badStream(n.ID, "more or done", "empty stream")
		}
		if tx.Kind == ir.KindDone && ty.Kind == ir.KindDone {
			return append(out, ir.Done), nil
		}
		if tx.Kind != ir.KindMore || ty.Kind != ir.KindMore {
			if tx.Kind == ir.KindDone || ty.Kind == ir.KindDone {
				e := ir.NewRuntimeError(ir.ErrCodeRaggedZip, "zipped streams have unequal lengths")
				e.Node = n.ID
				return nil, e
			}
			return nil, ev.badStream(n.ID, "more or done", tx.String())
		}
		ex, rerr := ir.ReadValue(cx, elemX)
		if rerr != nil {
			rerr.Node = n.ID
			return nil, rerr
		}
		ey, rerr := ir.ReadValue(cy, elemY)
		if rerr != nil {
			rerr.Node = n.ID
			return nil, rerr
		}
		ev.env[body.Bound[0]] = ex
		ev.env[body.Bound[1]] = ey
		pair, err := ev.eval(body.Exit)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.More)
		out = append(out, pair...)
	}
}

func (ev *evaluator) badStream(node ir.NodeID, want, got string) *ir.RuntimeError {
	e := ir.NewRuntimeError(ir.ErrCodeBadToken, "stream does not continue its declared type")
	e.Node = node
	e.Want = want
	e.Got = got
	return e
}
