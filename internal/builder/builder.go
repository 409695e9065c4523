// Package builder constructs dataflow graphs over ordered streams.
//
// A Builder accumulates nodes through one method per graph operation
// and seals the result with Finish. Errors are sticky: the first
// malformed request is recorded and every later call becomes a no-op,
// so a construction sequence can be written without per-call error
// checks and inspected once at Finish.
//
// The builder front-loads structural type errors (splitting a
// non-Concat, casing a non-Sum, and so on) so they surface at the call
// site that caused them. The checker remains authoritative: a graph
// that leaves Finish cleanly can still be rejected for branch
// mismatches, usage-order conflicts, or linearity violations.
package builder

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// Stream is a handle to one node of the graph under construction.
// Handles are only meaningful with the builder that created them.
type Stream struct {
	b  *Builder
	id ir.NodeID
}

// ID returns the underlying node id.
func (s Stream) ID() ir.NodeID { return s.id }

// Builder constructs an immutable dataflow graph.
type Builder struct {
	g        *ir.Graph
	types    []ir.Type // shallow types, parallel to g.Nodes
	err      error
	finished bool
	arms     int // open branch arm closures
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{g: &ir.Graph{}}
}

// Err returns the first construction error, or nil.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) Stream {
	if b.err == nil {
		b.err = err
	}
	return Stream{b: b, id: ir.NoNode}
}

func (b *Builder) failGraph(op, format string, args ...any) Stream {
	return b.fail(&GraphError{Op: op, Message: fmt.Sprintf(format, args...)})
}

func (b *Builder) ready(op string) bool {
	if b.err != nil {
		return false
	}
	if b.finished {
		b.failGraph(op, "builder already finished")
		return false
	}
	return true
}

func (b *Builder) valid(op string, streams ...Stream) bool {
	if !b.ready(op) {
		return false
	}
	for _, s := range streams {
		if s.b != b {
			b.failGraph(op, "stream handle from another builder")
			return false
		}
		if !b.g.Valid(s.id) {
			b.failGraph(op, "invalid stream handle")
			return false
		}
	}
	return true
}

func (b *Builder) add(n ir.Node, t ir.Type) Stream {
	id := b.g.Append(n)
	b.types = append(b.types, t)
	return Stream{b: b, id: id}
}

func (b *Builder) typeOf(s Stream) ir.Type { return b.types[s.id] }

// Var declares an input stream of type t. Declaration order is the
// order input token sequences must be supplied and consumed in.
func (b *Builder) Var(name string, t ir.Type) Stream {
	if !b.ready("var") {
		return Stream{b: b, id: ir.NoNode}
	}
	if name == "" {
		return b.failGraph("var", "empty input name")
	}
	if t == nil || !ir.WellFormed(t) {
		return b.failGraph("var", "malformed type for input %q", name)
	}
	if b.g.InputIndex(name) >= 0 {
		return b.failGraph("var", "duplicate input %q", name)
	}
	if b.arms > 0 {
		return b.failGraph("var", "input %q declared inside a branch arm", name)
	}
	s := b.add(ir.Node{Kind: ir.OpVar, Name: name, Ann: t}, t)
	b.g.Inputs = append(b.g.Inputs, s.id)
	return s
}

// EpsIntro creates the empty stream.
func (b *Builder) EpsIntro() Stream {
	if !b.ready("eps") {
		return Stream{b: b, id: ir.NoNode}
	}
	return b.add(ir.Node{Kind: ir.OpEps}, ir.Eps{})
}

// Const creates a literal Singleton stream carrying v.
func (b *Builder) Const(v ir.Value) Stream {
	if !b.ready("const") {
		return Stream{b: b, id: ir.NoNode}
	}
	if v == nil || ir.KindOf(v) == ir.ElemInvalid {
		return b.failGraph("const", "invalid literal payload")
	}
	return b.add(ir.Node{Kind: ir.OpConst, Val: v}, ir.Singleton{Elem: ir.KindOf(v)})
}

// ConcatIntro creates the stream of x immediately followed by y.
func (b *Builder) ConcatIntro(x, y Stream) Stream {
	if !b.valid("cat", x, y) {
		return Stream{b: b, id: ir.NoNode}
	}
	return b.add(
		ir.Node{Kind: ir.OpCat, Args: []ir.NodeID{x.id, y.id}},
		ir.Concat{Left: b.typeOf(x), Right: b.typeOf(y)},
	)
}

// ConcatElim splits a Concat stream into its two halves. The first
// projection must be fully consumed before the second.
func (b *Builder) ConcatElim(x Stream) (Stream, Stream) {
	none := Stream{b: b, id: ir.NoNode}
	if !b.valid("catsplit", x) {
		return none, none
	}
	cat, ok := b.typeOf(x).(ir.Concat)
	if !ok {
		b.fail(&ir.TypeError{
			Code:    ir.ErrNotConcat,
			Message: "split of a non-concatenation",
			Node:    x.id,
			Other:   ir.NoNode,
			Want:    "Cat(_, _)",
			Got:     b.typeOf(x).String(),
		})
		return none, none
	}
	fst := b.add(ir.Node{Kind: ir.OpBound, Origin: x.id, Role: ir.RoleCatFst}, cat.Left)
	snd := b.add(ir.Node{Kind: ir.OpBound, Origin: x.id, Role: ir.RoleCatSnd}, cat.Right)
	return fst, snd
}

// LeftInject tags x as the left side of Sum(type(x), right).
func (b *Builder) LeftInject(x Stream, right ir.Type) Stream {
	if !b.valid("inl", x) {
		return Stream{b: b, id: ir.NoNode}
	}
	if right == nil || !ir.WellFormed(right) {
		return b.failGraph("inl", "malformed right type")
	}
	ann := ir.Sum{Left: b.typeOf(x), Right: right}
	return b.add(ir.Node{Kind: ir.OpInjL, Args: []ir.NodeID{x.id}, Ann: ann}, ann)
}

// RightInject tags x as the right side of Sum(left, type(x)).
func (b *Builder) RightInject(x Stream, left ir.Type) Stream {
	if !b.valid("inr", x) {
		return Stream{b: b, id: ir.NoNode}
	}
	if left == nil || !ir.WellFormed(left) {
		return b.failGraph("inr", "malformed left type")
	}
	ann := ir.Sum{Left: left, Right: b.typeOf(x)}
	return b.add(ir.Node{Kind: ir.OpInjR, Args: []ir.NodeID{x.id}, Ann: ann}, ann)
}

// Case eliminates a Sum stream. Each arm receives the payload of its
// side; both arms must produce streams of the same type.
func (b *Builder) Case(x Stream, left, right func(Stream) Stream) Stream {
	if !b.valid("case", x) {
		return Stream{b: b, id: ir.NoNode}
	}
	sum, ok := b.typeOf(x).(ir.Sum)
	if !ok {
		return b.fail(&ir.TypeError{
			Code:    ir.ErrNotSum,
			Message: "case of a non-sum",
			Node:    x.id,
			Other:   ir.NoNode,
			Want:    "Sum(_, _)",
			Got:     b.typeOf(x).String(),
		})
	}
	if left == nil || right == nil {
		return b.failGraph("case", "nil branch builder")
	}
	c := b.add(ir.Node{Kind: ir.OpCase, Args: []ir.NodeID{x.id}, Loop: ir.NoLoop}, nil)
	lb := b.arm("case", c.id, []bind{{ir.RoleCaseLeft, sum.Left}}, func(vs []Stream) Stream {
		return left(vs[0])
	})
	rb := b.arm("case", c.id, []bind{{ir.RoleCaseRight, sum.Right}}, func(vs []Stream) Stream {
		return right(vs[0])
	})
	if b.err != nil {
		return Stream{b: b, id: ir.NoNode}
	}
	b.g.Node(c.id).Branches = []ir.Branch{lb, rb}
	b.types[c.id] = b.types[lb.Exit]
	return c
}

// NilIntro creates the empty Star(elem) stream.
func (b *Builder) NilIntro(elem ir.Type) Stream {
	if !b.ready("nil") {
		return Stream{b: b, id: ir.NoNode}
	}
	if elem == nil || !ir.WellFormed(elem) {
		return b.failGraph("nil", "malformed element type")
	}
	ann := ir.Star{Elem: elem}
	return b.add(ir.Node{Kind: ir.OpNil, Ann: ann}, ann)
}

// ConsIntro prepends element head to the Star stream tail.
func (b *Builder) ConsIntro(head, tail Stream) Stream {
	if !b.valid("cons", head, tail) {
		return Stream{b: b, id: ir.NoNode}
	}
	st, ok := b.typeOf(tail).(ir.Star)
	if !ok {
		return b.fail(&ir.TypeError{
			Code:    ir.ErrNotStar,
			Message: "cons onto a non-star",
			Node:    tail.id,
			Other:   ir.NoNode,
			Want:    "Star(_)",
			Got:     b.typeOf(tail).String(),
		})
	}
	return b.add(ir.Node{Kind: ir.OpCons, Args: []ir.NodeID{head.id, tail.id}}, st)
}

// Loop is the recursion handle passed to a star case cons arm. Rec is
// valid only while that arm is being built.
type Loop struct {
	b      *Builder
	id     ir.LoopID
	result ir.Type
	open   bool
}

// Rec re-enters the enclosing star case with tail as the new scrutinee.
// The produced stream has the loop's result type.
func (l *Loop) Rec(tail Stream) Stream {
	b := l.b
	if !b.valid("rec", tail) {
		return Stream{b: b, id: ir.NoNode}
	}
	if !l.open {
		return b.failGraph("rec", "recursive call outside its star case arm")
	}
	if l.result == nil {
		return b.failGraph("rec", "recursion result type not yet known")
	}
	return b.add(
		ir.Node{Kind: ir.OpRec, Args: []ir.NodeID{tail.id}, Loop: l.id, Ann: l.result},
		l.result,
	)
}

// StarCase eliminates a Star stream. The nil arm runs for the empty
// stream; the cons arm receives the head element, the tail stream, and
// a Loop handle for recursing over the tail. Both arms must produce
// streams of the same type, which fixes the loop's result type from the
// nil arm.
func (b *Builder) StarCase(x Stream, nilArm func() Stream, consArm func(head, tail Stream, l *Loop) Stream) Stream {
	if !b.valid("starcase", x) {
		return Stream{b: b, id: ir.NoNode}
	}
	st, ok := b.typeOf(x).(ir.Star)
	if !ok {
		return b.fail(&ir.TypeError{
			Code:    ir.ErrNotStar,
			Message: "star case of a non-star",
			Node:    x.id,
			Other:   ir.NoNode,
			Want:    "Star(_)",
			Got:     b.typeOf(x).String(),
		})
	}
	if nilArm == nil || consArm == nil {
		return b.failGraph("starcase", "nil branch builder")
	}
	sc, loopID := b.openStarCase(x)

	nb := b.arm("starcase", sc.id, nil, func([]Stream) Stream { return nilArm() })
	if b.err != nil {
		return Stream{b: b, id: ir.NoNode}
	}
	l := &Loop{b: b, id: loopID, result: b.types[nb.Exit], open: true}
	cb := b.arm("starcase", sc.id, consBinds(st), func(vs []Stream) Stream {
		return consArm(vs[0], vs[1], l)
	})
	l.open = false
	if b.err != nil {
		return Stream{b: b, id: ir.NoNode}
	}
	return b.sealStarCase(sc, loopID, nb, cb, b.types[nb.Exit])
}

// starCaseConsFirst builds the cons arm before the nil arm. The derived
// combinators use it when the result type only becomes known while the
// cons arm is being built; the nil arm builder receives that type.
func (b *Builder) starCaseConsFirst(op string, x Stream, consArm func(head, tail Stream, l *Loop) Stream, nilArm func(result ir.Type) Stream) Stream {
	if !b.valid(op, x) {
		return Stream{b: b, id: ir.NoNode}
	}
	st, ok := b.typeOf(x).(ir.Star)
	if !ok {
		return b.fail(&ir.TypeError{
			Code:    ir.ErrNotStar,
			Message: "star case of a non-star",
			Node:    x.id,
			Other:   ir.NoNode,
			Want:    "Star(_)",
			Got:     b.typeOf(x).String(),
		})
	}
	sc, loopID := b.openStarCase(x)

	l := &Loop{b: b, id: loopID, open: true}
	cb := b.arm(op, sc.id, consBinds(st), func(vs []Stream) Stream {
		return consArm(vs[0], vs[1], l)
	})
	l.open = false
	if b.err != nil {
		return Stream{b: b, id: ir.NoNode}
	}
	result := l.result
	if result == nil {
		result = b.types[cb.Exit]
	}
	nb := b.arm(op, sc.id, nil, func([]Stream) Stream { return nilArm(result) })
	if b.err != nil {
		return Stream{b: b, id: ir.NoNode}
	}
	return b.sealStarCase(sc, loopID, nb, cb, result)
}

func (b *Builder) openStarCase(x Stream) (Stream, ir.LoopID) {
	sc := b.add(ir.Node{Kind: ir.OpStarCase, Args: []ir.NodeID{x.id}}, nil)
	loopID := ir.LoopID(len(b.g.Loops))
	b.g.Loops = append(b.g.Loops, ir.LoopMeta{
		StarCase:  sc.id,
		Scrutinee: x.id,
		NilExit:   ir.NoNode,
	})
	b.g.Node(sc.id).Loop = loopID
	return sc, loopID
}

func (b *Builder) sealStarCase(sc Stream, loopID ir.LoopID, nb, cb ir.Branch, result ir.Type) Stream {
	b.g.Loops[loopID].NilExit = nb.Exit
	b.g.Node(sc.id).Branches = []ir.Branch{nb, cb}
	b.types[sc.id] = result
	return sc
}

func consBinds(st ir.Star) []bind {
	return []bind{{ir.RoleConsHead, st.Elem}, {ir.RoleConsTail, st}}
}

// ZipWith pairwise combines two Star streams. The body receives one
// element of each side and produces one output element; zipping streams
// of unequal length is a runtime error.
func (b *Builder) ZipWith(x, y Stream, body func(a, c Stream) Stream) Stream {
	if !b.valid("zip", x, y) {
		return Stream{b: b, id: ir.NoNode}
	}
	sx, okx := b.typeOf(x).(ir.Star)
	sy, oky := b.typeOf(y).(ir.Star)
	if !okx || !oky {
		bad, got := x.id, b.typeOf(x)
		if okx {
			bad, got = y.id, b.typeOf(y)
		}
		return b.fail(&ir.TypeError{
			Code:    ir.ErrNotStar,
			Message: "zip of a non-star",
			Node:    bad,
			Other:   ir.NoNode,
			Want:    "Star(_)",
			Got:     got.String(),
		})
	}
	if body == nil {
		return b.failGraph("zip", "nil body builder")
	}
	z := b.add(ir.Node{Kind: ir.OpZip, Args: []ir.NodeID{x.id, y.id}, Loop: ir.NoLoop}, nil)
	zb := b.arm("zip", z.id, []bind{{ir.RoleZipLeft, sx.Elem}, {ir.RoleZipRight, sy.Elem}}, func(vs []Stream) Stream {
		return body(vs[0], vs[1])
	})
	if b.err != nil {
		return Stream{b: b, id: ir.NoNode}
	}
	b.g.Node(z.id).Branches = []ir.Branch{zb}
	b.types[z.id] = ir.Star{Elem: b.types[zb.Exit]}
	return z
}

// Buffer materializes x so it can be consumed out of declared order.
// The stream is read in full at the buffer's position; Release replays
// it later. Every buffer must be released exactly once.
func (b *Builder) Buffer(x Stream) Stream {
	if !b.valid("buffer", x) {
		return Stream{b: b, id: ir.NoNode}
	}
	return b.add(ir.Node{Kind: ir.OpBuffer, Args: []ir.NodeID{x.id}}, b.typeOf(x))
}

// Release replays a buffered stream.
func (b *Builder) Release(x Stream) Stream {
	if !b.valid("release", x) {
		return Stream{b: b, id: ir.NoNode}
	}
	if b.g.Node(x.id).Kind != ir.OpBuffer {
		return b.fail(&ir.TypeError{
			Code:    ir.ErrUnmatchedBuffer,
			Message: "release of a non-buffer",
			Node:    x.id,
			Other:   ir.NoNode,
		})
	}
	return b.add(ir.Node{Kind: ir.OpRelease, Args: []ir.NodeID{x.id}}, b.typeOf(x))
}

// bind is one bound variable an arm introduces.
type bind struct {
	role ir.Role
	typ  ir.Type
}

// arm builds one branch arm: it creates the bound variable nodes, runs
// the arm closure, and records the [Lo, Hi) node range the arm created.
func (b *Builder) arm(op string, origin ir.NodeID, binds []bind, f func([]Stream) Stream) ir.Branch {
	lo := ir.NodeID(len(b.g.Nodes))
	vs := make([]Stream, len(binds))
	bound := make([]ir.NodeID, len(binds))
	for i, bd := range binds {
		vs[i] = b.add(ir.Node{Kind: ir.OpBound, Origin: origin, Role: bd.role}, bd.typ)
		bound[i] = vs[i].id
	}
	b.arms++
	exit := f(vs)
	b.arms--
	if b.err != nil {
		return ir.Branch{}
	}
	if exit.b != b || !b.g.Valid(exit.id) {
		b.failGraph(op, "branch builder returned an invalid stream")
		return ir.Branch{}
	}
	hi := ir.NodeID(len(b.g.Nodes))
	return ir.Branch{Bound: bound, Exit: exit.id, Lo: lo, Hi: hi}
}

// Finish seals the graph with out as its output stream. The builder
// cannot be used afterwards.
func (b *Builder) Finish(out Stream) (*ir.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.finished {
		return nil, &GraphError{Op: "finish", Message: "builder already finished"}
	}
	if b.arms > 0 {
		return nil, &GraphError{Op: "finish", Message: "finish inside a branch arm"}
	}
	if out.b != b || !b.g.Valid(out.id) {
		return nil, &GraphError{Op: "finish", Message: "invalid output stream handle"}
	}
	b.g.Output = out.id
	b.finished = true
	return b.g, nil
}
