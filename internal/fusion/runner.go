package fusion

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// runner is a pull stream of tokens. next returns ok=false on clean
// exhaustion; an error terminates the whole run.
type runner interface {
	next() (ir.Token, bool, error)
}

// machine is the per-run state: one cursor per input, the binding
// environment, and the split coordinators keyed by the stream they
// share. Loop iterations clear the entries of their arm's node range
// before rebinding.
type machine struct {
	p       *Program
	cursors []*ir.Cursor
	env     map[ir.NodeID]runner
	coords  map[ir.NodeID]*catCoord
}

func (m *machine) run(id ir.NodeID) runner { return m.p.steps[id](m) }

// split returns the coordinator over origin's stream, creating it on
// first use. Both halves of one elimination resolve to the same
// coordinator.
func (m *machine) split(origin ir.NodeID) *catCoord {
	if c, ok := m.coords[origin]; ok {
		return c
	}
	left := m.p.tg.TypeOf(origin).(ir.Concat).Left
	c := newCatCoord(m.run(origin), left)
	m.coords[origin] = c
	return c
}

// reset drops bindings and coordinators created by a previous pass over
// an arm, so the next iteration starts clean.
func (m *machine) reset(br ir.Branch) {
	for id := br.Lo; id < br.Hi; id++ {
		delete(m.env, id)
		delete(m.coords, id)
	}
}

func badStream(node ir.NodeID, want, got string) *ir.RuntimeError {
	e := ir.NewRuntimeError(ir.ErrCodeBadToken, "stream does not continue its declared type")
	e.Node = node
	e.Want = want
	e.Got = got
	return e
}

// litRunner replays a fixed token sequence.
type litRunner struct {
	toks []ir.Token
	pos  int
}

func (r *litRunner) next() (ir.Token, bool, error) {
	if r.pos >= len(r.toks) {
		return ir.Token{}, false, nil
	}
	t := r.toks[r.pos]
	r.pos++
	return t, true, nil
}

// chainRunner concatenates its sub-runners.
type chainRunner struct {
	rs []runner
	i  int
}

func (r *chainRunner) next() (ir.Token, bool, error) {
	for r.i < len(r.rs) {
		tok, ok, err := r.rs[r.i].next()
		if err != nil {
			return ir.Token{}, false, err
		}
		if ok {
			return tok, true, nil
		}
		r.i++
	}
	return ir.Token{}, false, nil
}

// varRunner reads one value of the declared type from an input cursor,
// validating each token against the type's shape. Once the value
// completes it requires the cursor to be exhausted.
type varRunner struct {
	m     *machine
	node  ir.NodeID
	input int
	shape *ir.Shape
	done  bool
}

func (r *varRunner) next() (ir.Token, bool, error) {
	cur := r.m.cursors[r.input]
	if r.done {
		return ir.Token{}, false, nil
	}
	if r.shape.Done() {
		// Zero-token type.
		r.done = true
		if !cur.Exhausted() {
			e := ir.NewRuntimeError(ir.ErrCodeTrailingInput, "tokens remain after the declared input value")
			e.Node = r.node
			e.Input = r.input
			e.Got = fmt.Sprintf("%d extra tokens", cur.Remaining())
			return ir.Token{}, false, e
		}
		return ir.Token{}, false, nil
	}
	tok, ok := cur.Next()
	if !ok {
		e := ir.NewRuntimeError(ir.ErrCodeShortInput, "token sequence exhausted mid-value")
		e.Node = r.node
		e.Input = r.input
		e.Want = r.shape.Expecting()
		e.Got = "end of input"
		return ir.Token{}, false, e
	}
	if err := r.shape.Feed(tok); err != nil {
		e := badStream(r.node, r.shape.Expecting(), tok.String())
		e.Input = r.input
		return ir.Token{}, false, e
	}
	if r.shape.Done() {
		r.done = true
		// Checked here rather than on a later pull: a consumer that
		// knows the type boundary never pulls past the final token.
		if !cur.Exhausted() {
			e := ir.NewRuntimeError(ir.ErrCodeTrailingInput, "tokens remain after the declared input value")
			e.Node = r.node
			e.Input = r.input
			e.Got = fmt.Sprintf("%d extra tokens", cur.Remaining())
			return ir.Token{}, false, e
		}
	}
	return tok, true, nil
}

// boundRunner resolves a binding to the runner installed by its
// controlling node, at first pull.
type boundRunner struct {
	m  *machine
	id ir.NodeID
	r  runner
}

func (r *boundRunner) next() (ir.Token, bool, error) {
	if r.r == nil {
		r.r = r.m.env[r.id]
		if r.r == nil {
			return ir.Token{}, false, fmt.Errorf("fusion: binding %d pulled before it was bound", r.id)
		}
	}
	return r.r.next()
}

// catCoord shares one Concat-typed producer between its two halves. The
// first half's extent is tracked by the left type's shape; tokens the
// second half forces past an unfinished first half are retained and
// replayed when the first half is finally pulled.
type catCoord struct {
	src      runner
	left     *ir.Shape
	buf      []ir.Token
	pos      int
	leftDone bool
}

func newCatCoord(src runner, left ir.Type) *catCoord {
	c := &catCoord{src: src, left: ir.NewShape(left)}
	c.leftDone = c.left.Done()
	return c
}

// pullLeft advances the producer by one token of the first half.
func (c *catCoord) pullLeft() (ir.Token, bool, error) {
	tok, ok, err := c.src.next()
	if err != nil {
		return ir.Token{}, false, err
	}
	if !ok {
		e := ir.NewRuntimeError(ir.ErrCodeShortInput, "token sequence exhausted mid-value")
		e.Want = c.left.Expecting()
		e.Got = "end of input"
		return ir.Token{}, false, e
	}
	if err := c.left.Feed(tok); err != nil {
		return ir.Token{}, false, badStream(ir.NoNode, c.left.Expecting(), tok.String())
	}
	if c.left.Done() {
		c.leftDone = true
	}
	return tok, true, nil
}

// fstRunner yields the first half: retained tokens first, then the
// producer until the left shape completes.
type fstRunner struct {
	c *catCoord
}

func (r *fstRunner) next() (ir.Token, bool, error) {
	c := r.c
	if c.pos < len(c.buf) {
		t := c.buf[c.pos]
		c.pos++
		return t, true, nil
	}
	if c.leftDone {
		return ir.Token{}, false, nil
	}
	return c.pullLeft()
}

// sndRunner yields the second half, first forcing any unread remainder
// of the first half into the coordinator's retained buffer.
type sndRunner struct {
	c *catCoord
}

func (r *sndRunner) next() (ir.Token, bool, error) {
	c := r.c
	for !c.leftDone {
		tok, _, err := c.pullLeft()
		if err != nil {
			return ir.Token{}, false, err
		}
		c.buf = append(c.buf, tok)
	}
	return c.src.next()
}

// caseRunner reads the scrutinee's tag, binds the payload to the chosen
// arm, and delegates to that arm's compiled body.
type caseRunner struct {
	m     *machine
	n     *ir.Node
	scrut runner
	inner runner
}

func (r *caseRunner) next() (ir.Token, bool, error) {
	if r.inner == nil {
		tok, ok, err := r.scrut.next()
		if err != nil {
			return ir.Token{}, false, err
		}
		if !ok {
			return ir.Token{}, false, badStream(r.n.ID, "left or right", "empty stream")
		}
		var br ir.Branch
		switch tok.Kind {
		case ir.KindTagLeft:
			br = r.n.Branches[0]
		case ir.KindTagRight:
			br = r.n.Branches[1]
		default:
			return ir.Token{}, false, badStream(r.n.ID, "left or right", tok.String())
		}
		r.m.reset(br)
		r.m.env[br.Bound[0]] = r.scrut
		r.inner = r.m.run(br.Exit)
	}
	return r.inner.next()
}

// starRunner drives one starcase (or one loop re-entry, which is the
// same starcase over the tail stream). On the more marker the element
// and the remaining tail share the scrutinee through a coordinator, so
// the arm's body pulls either binding in whatever order its own output
// requires.
type starRunner struct {
	m     *machine
	n     *ir.Node
	elem  ir.Type
	scrut runner
	inner runner
}

func newStarRunner(m *machine, n *ir.Node, elem ir.Type, scrut runner) *starRunner {
	return &starRunner{m: m, n: n, elem: elem, scrut: scrut}
}

func (r *starRunner) next() (ir.Token, bool, error) {
	if r.inner == nil {
		tok, ok, err := r.scrut.next()
		if err != nil {
			return ir.Token{}, false, err
		}
		if !ok {
			return ir.Token{}, false, badStream(r.n.ID, "more or done", "empty stream")
		}
		switch tok.Kind {
		case ir.KindDone:
			r.inner = r.m.run(r.n.Branches[0].Exit)
		case ir.KindMore:
			cons := r.n.Branches[1]
			r.m.reset(cons)
			c := newCatCoord(r.scrut, r.elem)
			r.m.env[cons.Bound[0]] = &fstRunner{c: c}
			r.m.env[cons.Bound[1]] = &sndRunner{c: c}
			r.inner = r.m.run(cons.Exit)
		default:
			return ir.Token{}, false, badStream(r.n.ID, "more or done", tok.String())
		}
	}
	return r.inner.next()
}

// zipRunner advances two star streams in lockstep, emitting one body
// stream per element pair.
type zipRunner struct {
	m            *machine
	n            *ir.Node
	elemX, elemY ir.Type
	x, y         runner

	body     runner
	bx, by   *boundedRunner
	finished bool
}

func (r *zipRunner) next() (ir.Token, bool, error) {
	for {
		if r.finished {
			return ir.Token{}, false, nil
		}
		if r.body != nil {
			tok, ok, err := r.body.next()
			if err != nil {
				return ir.Token{}, false, err
			}
			if ok {
				return tok, true, nil
			}
			// The body consumed both bindings; drain any residue so the
			// source streams sit at the next pair boundary.
			if err := drain(r.bx); err != nil {
				return ir.Token{}, false, err
			}
			if err := drain(r.by); err != nil {
				return ir.Token{}, false, err
			}
			r.body, r.bx, r.by = nil, nil, nil
			continue
		}
		tx, okx, err := r.x.next()
		if err != nil {
			return ir.Token{}, false, err
		}
		ty, oky, err := r.y.next()
		if err != nil {
			return ir.Token{}, false, err
		}
		if !okx || !oky {
			return ir.Token{}, false, badStream(r.n.ID, "more or done", "empty stream")
		}
		if tx.Kind == ir.KindDone && ty.Kind == ir.KindDone {
			r.finished = true
			return ir.Done, true, nil
		}
		if tx.Kind != ir.KindMore || ty.Kind != ir.KindMore {
			if tx.Kind == ir.KindDone || ty.Kind == ir.KindDone {
				e := ir.NewRuntimeError(ir.ErrCodeRaggedZip, "zipped streams have unequal lengths")
				e.Node = r.n.ID
				return ir.Token{}, false, e
			}
			return ir.Token{}, false, badStream(r.n.ID, "more or done", tx.String())
		}
		body := r.n.Branches[0]
		r.m.reset(body)
		r.bx = &boundedRunner{src: r.x, shape: ir.NewShape(r.elemX)}
		r.by = &boundedRunner{src: r.y, shape: ir.NewShape(r.elemY)}
		r.m.env[body.Bound[0]] = r.bx
		r.m.env[body.Bound[1]] = r.by
		r.body = r.m.run(body.Exit)
		return ir.More, true, nil
	}
}

func drain(r runner) error {
	for {
		_, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// boundedRunner yields exactly one value of a type from a longer
// stream, ending when the type's shape completes.
type boundedRunner struct {
	src   runner
	shape *ir.Shape
	done  bool
}

func (r *boundedRunner) next() (ir.Token, bool, error) {
	if r.done || r.shape.Done() {
		r.done = true
		return ir.Token{}, false, nil
	}
	tok, ok, err := r.src.next()
	if err != nil {
		return ir.Token{}, false, err
	}
	if !ok {
		e := ir.NewRuntimeError(ir.ErrCodeShortInput, "token sequence exhausted mid-value")
		e.Want = r.shape.Expecting()
		e.Got = "end of input"
		return ir.Token{}, false, e
	}
	if err := r.shape.Feed(tok); err != nil {
		return ir.Token{}, false, badStream(ir.NoNode, r.shape.Expecting(), tok.String())
	}
	if r.shape.Done() {
		r.done = true
	}
	return tok, true, nil
}
