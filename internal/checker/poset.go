package checker

import "github.com/alpha-convert/Yoink/internal/ir"

// partialOrder is a strict partial order over node ids with its
// transitive closure maintained on every insert. Edges are
// non-reflexive; adding x<x is ignored.
type partialOrder struct {
	succ map[ir.NodeID]map[ir.NodeID]struct{}
	pred map[ir.NodeID]map[ir.NodeID]struct{}
}

func newPartialOrder() *partialOrder {
	return &partialOrder{
		succ: make(map[ir.NodeID]map[ir.NodeID]struct{}),
		pred: make(map[ir.NodeID]map[ir.NodeID]struct{}),
	}
}

func (p *partialOrder) insert(x, y ir.NodeID) {
	if _, ok := p.succ[x]; !ok {
		p.succ[x] = make(map[ir.NodeID]struct{})
	}
	if _, ok := p.pred[y]; !ok {
		p.pred[y] = make(map[ir.NodeID]struct{})
	}
	p.succ[x][y] = struct{}{}
	p.pred[y][x] = struct{}{}
}

// add inserts x<y and every edge the transitive closure demands:
// each predecessor of x precedes each successor of y.
func (p *partialOrder) add(x, y ir.NodeID) {
	if x == y || p.has(x, y) {
		return
	}
	as := append(p.keys(p.pred[x]), x)
	bs := append(p.keys(p.succ[y]), y)
	for _, a := range as {
		for _, b := range bs {
			if a != b {
				p.insert(a, b)
			}
		}
	}
}

func (p *partialOrder) addAll(xs, ys []ir.NodeID) {
	for _, x := range xs {
		for _, y := range ys {
			p.add(x, y)
		}
	}
}

func (p *partialOrder) has(x, y ir.NodeID) bool {
	_, ok := p.succ[x][y]
	return ok
}

func (p *partialOrder) predecessors(x ir.NodeID) []ir.NodeID {
	return p.keys(p.pred[x])
}

func (p *partialOrder) successors(x ir.NodeID) []ir.NodeID {
	return p.keys(p.succ[x])
}

func (p *partialOrder) keys(m map[ir.NodeID]struct{}) []ir.NodeID {
	out := make([]ir.NodeID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// overlap returns an edge present in both orders, smallest pair first
// for deterministic error messages.
func (p *partialOrder) overlap(other *partialOrder) (x, y ir.NodeID, ok bool) {
	x, y = ir.NoNode, ir.NoNode
	for a, bs := range p.succ {
		for b := range bs {
			if !other.has(a, b) {
				continue
			}
			if !ok || a < x || (a == x && b < y) {
				x, y, ok = a, b, true
			}
		}
	}
	return x, y, ok
}

// ordering tracks which usages must precede which (required) and which
// precedences the stream structure rules out (forbidden). A program is
// order-consistent while the two stay disjoint.
type ordering struct {
	required  *partialOrder
	forbidden *partialOrder
}

func newOrdering() *ordering {
	return &ordering{required: newPartialOrder(), forbidden: newPartialOrder()}
}

// ordered records that every usage in xs comes before every usage in
// ys: the forward edges are required and the reverse edges forbidden.
func (r *ordering) ordered(xs, ys []ir.NodeID) {
	r.required.addAll(xs, ys)
	r.forbidden.addAll(ys, xs)
}

// unordered records that usages in xs and ys are interleaved or
// mutually exclusive: neither side may be required to precede the
// other.
func (r *ordering) unordered(xs, ys []ir.NodeID) {
	r.forbidden.addAll(xs, ys)
	r.forbidden.addAll(ys, xs)
}

// inPlaceOf lets x inherit the constraints its sources carried: the
// common required predecessors and successors of vars transfer to x.
func (r *ordering) inPlaceOf(x ir.NodeID, vars []ir.NodeID) {
	if len(vars) == 0 {
		return
	}
	preds := intersect(r.required.predecessors, vars)
	succs := intersect(r.required.successors, vars)
	r.required.addAll(preds, []ir.NodeID{x})
	r.required.addAll([]ir.NodeID{x}, succs)
}

// conflict returns a pair both required and forbidden, if any.
func (r *ordering) conflict() (x, y ir.NodeID, ok bool) {
	return r.required.overlap(r.forbidden)
}

func intersect(rel func(ir.NodeID) []ir.NodeID, vars []ir.NodeID) []ir.NodeID {
	common := make(map[ir.NodeID]int)
	for _, v := range vars {
		for _, u := range rel(v) {
			common[u]++
		}
	}
	var out []ir.NodeID
	for u, n := range common {
		if n == len(vars) {
			out = append(out, u)
		}
	}
	return out
}
