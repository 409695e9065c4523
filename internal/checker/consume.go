package checker

import (
	"fmt"
	"sort"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// Consumption checking: every stream except the output is consumed
// exactly once on every execution path. Consumption is path sensitive:
// a stream may be consumed inside the arms of a case as long as every
// arm consumes it, and exactly one of them runs. Loop and zip bodies
// run a data-dependent number of times, so streams from outside such a
// body must not be consumed inside it; the nil arm of a star case runs
// exactly once per evaluation and is transparent.

// pathElem is one branching decision enclosing a node.
type pathElem struct {
	branch ir.NodeID
	arm    int
}

// site is one place a stream is consumed.
type site struct {
	consumer ir.NodeID
	path     []pathElem
}

func (c *checker) checkConsumption() error {
	paths := c.nodePaths()

	sites := make(map[ir.NodeID][]site)
	splits := make(map[ir.NodeID][2][]ir.NodeID) // origin -> fst ids, snd ids
	for id := range c.g.Nodes {
		n := &c.g.Nodes[id]
		for _, a := range n.Args {
			sites[a] = append(sites[a], site{consumer: n.ID, path: paths[n.ID]})
		}
		for bi, br := range n.Branches {
			armPath := append(append([]pathElem{}, paths[n.ID]...), pathElem{n.ID, bi})
			sites[br.Exit] = append(sites[br.Exit], site{consumer: n.ID, path: armPath})
		}
		if n.Kind == ir.OpBound && (n.Role == ir.RoleCatFst || n.Role == ir.RoleCatSnd) {
			s := splits[n.Origin]
			if n.Role == ir.RoleCatFst {
				// The split pair jointly consumes the origin; count it
				// once, at the first projection.
				sites[n.Origin] = append(sites[n.Origin], site{consumer: n.ID, path: paths[n.ID]})
				s[0] = append(s[0], n.ID)
			} else {
				s[1] = append(s[1], n.ID)
			}
			splits[n.Origin] = s
		}
	}

	if err := c.checkSplits(splits, paths); err != nil {
		return err
	}

	if len(paths[c.g.Output]) != 0 {
		return fmt.Errorf("checker: output node %d lives inside a branch arm", c.g.Output)
	}
	if ss := sites[c.g.Output]; len(ss) > 0 {
		return &ir.TypeError{
			Code:    ir.ErrOrderViolation,
			Message: "output stream is also consumed",
			Node:    c.g.Output,
			Other:   ss[0].consumer,
		}
	}

	for id := range c.g.Nodes {
		nid := ir.NodeID(id)
		if nid == c.g.Output {
			continue
		}
		isBuffer := c.g.Nodes[id].Kind == ir.OpBuffer
		if isBuffer {
			for _, s := range sites[nid] {
				if c.g.Node(s.consumer).Kind != ir.OpRelease {
					return &ir.TypeError{
						Code:    ir.ErrUnmatchedBuffer,
						Message: "buffer consumed without a release",
						Node:    nid,
						Other:   s.consumer,
					}
				}
			}
		}
		err := c.cover(nid, paths[nid], sites[nid])
		if err != nil && isBuffer {
			err.Code = ir.ErrUnmatchedBuffer
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// nodePaths computes, for every node, the branching decisions enclosing
// it, outermost first.
func (c *checker) nodePaths() [][]pathElem {
	paths := make([][]pathElem, len(c.g.Nodes))
	type armRange struct {
		pathElem
		lo, hi ir.NodeID
	}
	var arms []armRange
	for id := range c.g.Nodes {
		n := &c.g.Nodes[id]
		for bi, br := range n.Branches {
			arms = append(arms, armRange{pathElem{n.ID, bi}, br.Lo, br.Hi})
		}
	}
	for id := range c.g.Nodes {
		nid := ir.NodeID(id)
		var enclosing []armRange
		for _, a := range arms {
			if nid >= a.lo && nid < a.hi {
				enclosing = append(enclosing, a)
			}
		}
		// Outer arms open earlier and close later.
		sort.Slice(enclosing, func(i, j int) bool {
			if enclosing[i].lo != enclosing[j].lo {
				return enclosing[i].lo < enclosing[j].lo
			}
			return enclosing[i].hi > enclosing[j].hi
		})
		p := make([]pathElem, len(enclosing))
		for i, a := range enclosing {
			p[i] = a.pathElem
		}
		paths[id] = p
	}
	return paths
}

// cover verifies that the sites consuming x form an exclusive, complete
// cover of the branching decisions below x's own position.
func (c *checker) cover(x ir.NodeID, own []pathElem, ss []site) *ir.TypeError {
	if len(ss) == 0 {
		return &ir.TypeError{
			Code:    ir.ErrOrderViolation,
			Message: "stream is never consumed",
			Node:    x,
			Other:   ir.NoNode,
		}
	}
	rel := make([]site, len(ss))
	for i, s := range ss {
		if !hasPrefix(s.path, own) {
			return &ir.TypeError{
				Code:    ir.ErrOrderViolation,
				Message: "stream consumed outside the arm that created it",
				Node:    x,
				Other:   s.consumer,
			}
		}
		rel[i] = site{consumer: s.consumer, path: s.path[len(own):]}
	}
	return c.coverRec(x, rel)
}

func (c *checker) coverRec(x ir.NodeID, ss []site) *ir.TypeError {
	for _, s := range ss {
		if len(s.path) == 0 {
			if len(ss) > 1 {
				other := ss[0].consumer
				if other == s.consumer {
					other = ss[1].consumer
				}
				return &ir.TypeError{
					Code:    ir.ErrOrderViolation,
					Message: "stream consumed more than once",
					Node:    x,
					Other:   other,
				}
			}
			return nil
		}
	}

	first := ss[0].path[0]
	for _, s := range ss[1:] {
		if s.path[0].branch != first.branch {
			return &ir.TypeError{
				Code:    ir.ErrOrderViolation,
				Message: "stream consumed under unrelated branches",
				Node:    x,
				Other:   s.consumer,
			}
		}
	}

	switch c.g.Node(first.branch).Kind {
	case ir.OpCase:
		var parts [2][]site
		for _, s := range ss {
			parts[s.path[0].arm] = append(parts[s.path[0].arm], site{consumer: s.consumer, path: s.path[1:]})
		}
		for arm, part := range parts {
			if len(part) == 0 {
				return &ir.TypeError{
					Code:    ir.ErrOrderViolation,
					Message: fmt.Sprintf("stream consumed on only one branch of node %d (arm %d never consumes it)", first.branch, arm),
					Node:    x,
					Other:   first.branch,
				}
			}
		}
		for _, part := range parts {
			if err := c.coverRec(x, part); err != nil {
				return err
			}
		}
		return nil

	case ir.OpStarCase:
		stripped := make([]site, len(ss))
		for i, s := range ss {
			if s.path[0].arm == 1 {
				return &ir.TypeError{
					Code:    ir.ErrOrderViolation,
					Message: "stream from outside a loop consumed inside its repeated arm",
					Node:    x,
					Other:   s.consumer,
				}
			}
			stripped[i] = site{consumer: s.consumer, path: s.path[1:]}
		}
		return c.coverRec(x, stripped)

	case ir.OpZip:
		return &ir.TypeError{
			Code:    ir.ErrOrderViolation,
			Message: "stream from outside a zip consumed inside its body",
			Node:    x,
			Other:   ss[0].consumer,
		}

	default:
		return &ir.TypeError{
			Code:    ir.ErrOrderViolation,
			Message: "stream consumed under a malformed branch",
			Node:    x,
			Other:   ss[0].consumer,
		}
	}
}

// checkSplits validates that every concatenation split binds exactly
// one first and one second projection, side by side.
func (c *checker) checkSplits(splits map[ir.NodeID][2][]ir.NodeID, paths [][]pathElem) error {
	for origin, pair := range splits {
		if len(pair[0]) != 1 || len(pair[1]) != 1 {
			other := ir.NoNode
			if len(pair[0]) > 1 {
				other = pair[0][1]
			} else if len(pair[1]) > 1 {
				other = pair[1][1]
			}
			return &ir.TypeError{
				Code:    ir.ErrOrderViolation,
				Message: "concatenation split without exactly one projection per half",
				Node:    origin,
				Other:   other,
			}
		}
		if !samePath(paths[pair[0][0]], paths[pair[1][0]]) {
			return &ir.TypeError{
				Code:    ir.ErrOrderViolation,
				Message: "split projections bound in different branch arms",
				Node:    pair[0][0],
				Other:   pair[1][0],
			}
		}
	}
	return nil
}

func hasPrefix(path, prefix []pathElem) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func samePath(a, b []pathElem) bool {
	return hasPrefix(a, b) && len(a) == len(b)
}
