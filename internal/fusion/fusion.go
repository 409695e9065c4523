// Package fusion is the streaming backend. Compile lowers a checked
// graph into one step closure per node; running the program pulls
// tokens through the closures in a single pass, so no node ever
// materializes a whole intermediate stream. Concat elimination and the
// head/tail split of a loop share their producer through a coordinator
// that retains only the tokens an out-of-order consumer forces it to
// hold.
//
// The backend agrees with internal/interp token for token on every
// checked graph, including the RuntimeError codes raised on malformed
// inputs.
package fusion

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// CompileErrorCode classifies compilation failures.
type CompileErrorCode string

// ErrCodeUnsupported marks a node shape the compiler has no lowering
// for. A graph accepted by the checker never triggers it; seeing one
// means the graph was constructed outside the builder.
const ErrCodeUnsupported CompileErrorCode = "UNSUPPORTED"

// CompileError reports a node the compiler could not lower.
type CompileError struct {
	Code    CompileErrorCode
	Node    ir.NodeID
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("fusion: %s: node %d: %s", e.Code, e.Node, e.Message)
}

// Program is a compiled graph. It is immutable and safe to run any
// number of times; each run gets its own machine state.
type Program struct {
	tg    *ir.TypedGraph
	steps []stepFn
}

// stepFn instantiates the runner for one node against a machine.
type stepFn func(m *machine) runner

// Compile lowers a checked graph. Every node compiles exactly once;
// branch arms are compiled ahead of time and selected per tag at run
// time.
func Compile(tg *ir.TypedGraph) (*Program, error) {
	g := tg.Graph
	p := &Program{tg: tg, steps: make([]stepFn, len(g.Nodes))}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		step, err := p.compileNode(n)
		if err != nil {
			return nil, err
		}
		p.steps[i] = step
	}
	return p, nil
}

func (p *Program) compileNode(n *ir.Node) (stepFn, error) {
	switch n.Kind {
	case ir.OpVar:
		idx := p.tg.Graph.InputIndex(n.Name)
		node, typ := n.ID, n.Ann
		return func(m *machine) runner {
			return &varRunner{m: m, node: node, input: idx, shape: ir.NewShape(typ)}
		}, nil

	case ir.OpConst:
		toks := []ir.Token{ir.Val(n.Val)}
		return func(m *machine) runner { return &litRunner{toks: toks} }, nil

	case ir.OpEps:
		return func(m *machine) runner { return &litRunner{} }, nil

	case ir.OpNil:
		toks := []ir.Token{ir.Done}
		return func(m *machine) runner { return &litRunner{toks: toks} }, nil

	case ir.OpCat:
		a, b := n.Args[0], n.Args[1]
		return func(m *machine) runner {
			return &chainRunner{rs: []runner{m.run(a), m.run(b)}}
		}, nil

	case ir.OpCons:
		a, b := n.Args[0], n.Args[1]
		return func(m *machine) runner {
			return &chainRunner{rs: []runner{
				&litRunner{toks: []ir.Token{ir.More}}, m.run(a), m.run(b),
			}}
		}, nil

	case ir.OpInjL, ir.OpInjR:
		tag := ir.TagLeft
		if n.Kind == ir.OpInjR {
			tag = ir.TagRight
		}
		arg := n.Args[0]
		return func(m *machine) runner {
			return &chainRunner{rs: []runner{
				&litRunner{toks: []ir.Token{tag}}, m.run(arg),
			}}
		}, nil

	case ir.OpBound:
		switch n.Role {
		case ir.RoleCatFst:
			origin := n.Origin
			return func(m *machine) runner { return &fstRunner{c: m.split(origin)} }, nil
		case ir.RoleCatSnd:
			origin := n.Origin
			return func(m *machine) runner { return &sndRunner{c: m.split(origin)} }, nil
		case ir.RoleCaseLeft, ir.RoleCaseRight, ir.RoleConsHead, ir.RoleConsTail,
			ir.RoleZipLeft, ir.RoleZipRight:
			// Bound by the controlling runner before the arm body is
			// instantiated.
			id := n.ID
			return func(m *machine) runner { return &boundRunner{m: m, id: id} }, nil
		default:
			return nil, &CompileError{
				Code: ErrCodeUnsupported, Node: n.ID,
				Message: fmt.Sprintf("binding with role %s", n.Role),
			}
		}

	case ir.OpCase:
		node := n
		return func(m *machine) runner {
			return &caseRunner{m: m, n: node, scrut: m.run(node.Args[0])}
		}, nil

	case ir.OpStarCase:
		node := n
		elem := p.tg.TypeOf(n.Args[0]).(ir.Star).Elem
		return func(m *machine) runner {
			return newStarRunner(m, node, elem, m.run(node.Args[0]))
		}, nil

	case ir.OpRec:
		sc := p.tg.Graph.Node(p.tg.Graph.Loop(n.Loop).StarCase)
		elem := p.tg.TypeOf(sc.Args[0]).(ir.Star).Elem
		tail := n.Args[0]
		return func(m *machine) runner {
			return newStarRunner(m, sc, elem, m.run(tail))
		}, nil

	case ir.OpZip:
		node := n
		ex := p.tg.TypeOf(n.Args[0]).(ir.Star).Elem
		ey := p.tg.TypeOf(n.Args[1]).(ir.Star).Elem
		return func(m *machine) runner {
			return &zipRunner{
				m: m, n: node, elemX: ex, elemY: ey,
				x: m.run(node.Args[0]), y: m.run(node.Args[1]),
			}
		}, nil

	case ir.OpBuffer, ir.OpRelease:
		// The retained tokens live in the split coordinator; by the time
		// a release pulls, its source already buffers whatever an
		// out-of-order read forced it to hold.
		arg := n.Args[0]
		return func(m *machine) runner { return m.run(arg) }, nil

	default:
		return nil, &CompileError{
			Code: ErrCodeUnsupported, Node: n.ID,
			Message: fmt.Sprintf("operation kind %d", n.Kind),
		}
	}
}

// Stream is a lazy run of a compiled program. The caller pulls tokens
// with Next; after Next returns ok=false, Err distinguishes completion
// from failure. No goroutines are involved.
type Stream struct {
	r    runner
	err  error
	done bool
}

// Next returns the next output token. ok=false means the stream ended;
// check Err.
func (s *Stream) Next() (ir.Token, bool) {
	if s.done || s.err != nil {
		return ir.Token{}, false
	}
	tok, ok, err := s.r.next()
	if err != nil {
		s.err = err
		return ir.Token{}, false
	}
	if !ok {
		s.done = true
		return ir.Token{}, false
	}
	return tok, true
}

// Err returns the error that terminated the stream, if any.
func (s *Stream) Err() error { return s.err }

// Stream starts a lazy run over one token sequence per declared input.
func (p *Program) Stream(inputs [][]ir.Token) *Stream {
	g := p.tg.Graph
	if len(inputs) != len(g.Inputs) {
		return &Stream{err: fmt.Errorf("fusion: got %d input sequences, want %d", len(inputs), len(g.Inputs))}
	}
	m := &machine{
		p:       p,
		cursors: make([]*ir.Cursor, len(inputs)),
		env:     make(map[ir.NodeID]runner),
		coords:  make(map[ir.NodeID]*catCoord),
	}
	for i, toks := range inputs {
		m.cursors[i] = ir.NewCursor(toks)
	}
	return &Stream{r: m.run(g.Output)}
}

// Run drives a lazy stream to completion and returns the full output
// token sequence.
func (p *Program) Run(inputs [][]ir.Token) ([]ir.Token, error) {
	s := p.Stream(inputs)
	var out []ir.Token
	for {
		tok, ok := s.Next()
		if !ok {
			if err := s.Err(); err != nil {
				return nil, err
			}
			return out, nil
		}
		out = append(out, tok)
	}
}
