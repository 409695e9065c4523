// Package compiler is the CUE front-end: it parses a program value into
// a dataflow graph through the builder. Uses CUE SDK's Go API directly
// (not CLI subprocess).
//
// A program is a struct with declared inputs and an output expression:
//
//	program: {
//		inputs: [{name: "xs", type: "Star(Int)"}]
//		output: {op: "map", of: {op: "var", name: "xs"}, bind: "e",
//			body: {op: "var", name: "e"}}
//	}
//
// Expressions are structs selected by their op field; branching ops
// carry bound-variable names, and rec refers to the innermost
// enclosing starcase loop.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/alpha-convert/Yoink/internal/builder"
	"github.com/alpha-convert/Yoink/internal/ir"
)

// CompileSource compiles CUE source text containing a program struct at
// the top-level path "program".
func CompileSource(src string) (*ir.Graph, []ir.Type, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, nil, formatCUEError(err)
	}
	prog := v.LookupPath(cue.ParsePath("program"))
	if !prog.Exists() {
		return nil, nil, &CompileError{
			Field:   "program",
			Message: "program struct is required",
			Pos:     v.Pos(),
		}
	}
	return CompileProgram(prog)
}

// CompileProgram parses a CUE program value into a graph plus the
// declared input types, in declaration order. The graph is structurally
// valid but not typechecked; callers run the checker next.
func CompileProgram(v cue.Value) (*ir.Graph, []ir.Type, error) {
	if err := v.Err(); err != nil {
		return nil, nil, formatCUEError(err)
	}
	pc := &programCompiler{
		b:     builder.New(),
		scope: make(map[string]builder.Stream),
	}
	inTypes, err := pc.declareInputs(v)
	if err != nil {
		return nil, nil, err
	}

	outVal := v.LookupPath(cue.ParsePath("output"))
	if !outVal.Exists() {
		return nil, nil, &CompileError{
			Field:   "output",
			Message: "output expression is required",
			Pos:     v.Pos(),
		}
	}
	out := pc.compileExpr(outVal)
	if pc.err != nil {
		return nil, nil, pc.err
	}
	g, err := pc.b.Finish(out)
	if err != nil {
		return nil, nil, err
	}
	return g, inTypes, nil
}

type programCompiler struct {
	b     *builder.Builder
	scope map[string]builder.Stream
	loops []*builder.Loop
	err   error
}

func (pc *programCompiler) declareInputs(v cue.Value) ([]ir.Type, error) {
	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if !inputsVal.Exists() {
		return nil, nil
	}
	iter, err := inputsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var types []ir.Type
	for i := 0; iter.Next(); i++ {
		in := iter.Value()
		name, err := in.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		typStr, err := in.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		typ, err := ParseType(typStr)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("inputs[%d].type", i),
				Message: err.Error(),
				Pos:     in.Pos(),
			}
		}
		pc.scope[name] = pc.b.Var(name, typ)
		types = append(types, typ)
	}
	return types, nil
}

// fail records the first error and returns a sentinel stream; the
// builder flags the sentinel as invalid so compilation unwinds cleanly.
func (pc *programCompiler) fail(v cue.Value, field, format string, args ...any) builder.Stream {
	if pc.err == nil {
		pc.err = &CompileError{Field: field, Message: fmt.Sprintf(format, args...), Pos: v.Pos()}
	}
	return builder.Stream{}
}

func (pc *programCompiler) failErr(err error) builder.Stream {
	if pc.err == nil {
		pc.err = formatCUEError(err)
	}
	return builder.Stream{}
}

// bind installs a scope entry for the duration of a branch body and
// returns the restore function. Shadowing an outer name is allowed.
func (pc *programCompiler) bind(name string, s builder.Stream) func() {
	old, had := pc.scope[name]
	pc.scope[name] = s
	return func() {
		if had {
			pc.scope[name] = old
		} else {
			delete(pc.scope, name)
		}
	}
}

func (pc *programCompiler) str(v cue.Value, field string) (string, bool) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		pc.fail(v, field, "field is required")
		return "", false
	}
	s, err := fv.String()
	if err != nil {
		pc.failErr(err)
		return "", false
	}
	return s, true
}

func (pc *programCompiler) sub(v cue.Value, field string) (cue.Value, bool) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		pc.fail(v, field, "field is required")
		return fv, false
	}
	return fv, true
}

func (pc *programCompiler) typ(v cue.Value, field string) (ir.Type, bool) {
	s, ok := pc.str(v, field)
	if !ok {
		return nil, false
	}
	t, err := ParseType(s)
	if err != nil {
		pc.fail(v, field, "%v", err)
		return nil, false
	}
	return t, true
}

func (pc *programCompiler) operand(v cue.Value, field string) (builder.Stream, bool) {
	fv, ok := pc.sub(v, field)
	if !ok {
		return builder.Stream{}, false
	}
	s := pc.compileExpr(fv)
	return s, pc.err == nil
}

func (pc *programCompiler) compileExpr(v cue.Value) builder.Stream {
	if pc.err != nil {
		return builder.Stream{}
	}
	op, ok := pc.str(v, "op")
	if !ok {
		return builder.Stream{}
	}
	switch op {
	case "var":
		name, ok := pc.str(v, "name")
		if !ok {
			return builder.Stream{}
		}
		s, bound := pc.scope[name]
		if !bound {
			return pc.fail(v, "name", "unbound name %q", name)
		}
		return s

	case "eps":
		return pc.b.EpsIntro()

	case "const":
		return pc.compileConst(v)

	case "cat":
		left, ok := pc.operand(v, "left")
		if !ok {
			return builder.Stream{}
		}
		right, ok := pc.operand(v, "right")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.ConcatIntro(left, right)

	case "split":
		return pc.compileSplit(v)

	case "inl":
		of, ok := pc.operand(v, "of")
		if !ok {
			return builder.Stream{}
		}
		right, ok := pc.typ(v, "right")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.LeftInject(of, right)

	case "inr":
		of, ok := pc.operand(v, "of")
		if !ok {
			return builder.Stream{}
		}
		left, ok := pc.typ(v, "left")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.RightInject(of, left)

	case "case":
		return pc.compileCase(v)

	case "nil":
		elem, ok := pc.typ(v, "elem")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.NilIntro(elem)

	case "cons":
		head, ok := pc.operand(v, "head")
		if !ok {
			return builder.Stream{}
		}
		tail, ok := pc.operand(v, "tail")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.ConsIntro(head, tail)

	case "starcase":
		return pc.compileStarCase(v)

	case "rec":
		if len(pc.loops) == 0 {
			return pc.fail(v, "rec", "rec outside a starcase cons arm")
		}
		tail, ok := pc.operand(v, "tail")
		if !ok {
			return builder.Stream{}
		}
		return pc.loops[len(pc.loops)-1].Rec(tail)

	case "zip":
		return pc.compileZip(v)

	case "buffer":
		of, ok := pc.operand(v, "of")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.Buffer(of)

	case "release":
		of, ok := pc.operand(v, "of")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.Release(of)

	case "map":
		return pc.compileMapLike(v, "map")

	case "concatmap":
		return pc.compileMapLike(v, "concatmap")

	case "concat":
		left, ok := pc.operand(v, "left")
		if !ok {
			return builder.Stream{}
		}
		right, ok := pc.operand(v, "right")
		if !ok {
			return builder.Stream{}
		}
		return pc.b.ConcatStreams(left, right)

	default:
		return pc.fail(v, "op", "unknown operation %q", op)
	}
}

func (pc *programCompiler) compileConst(v cue.Value) builder.Stream {
	fv, ok := pc.sub(v, "value")
	if !ok {
		return builder.Stream{}
	}
	switch fv.Kind() {
	case cue.IntKind:
		n, err := fv.Int64()
		if err != nil {
			return pc.failErr(err)
		}
		return pc.b.Const(ir.Int(n))
	case cue.StringKind:
		s, err := fv.String()
		if err != nil {
			return pc.failErr(err)
		}
		return pc.b.Const(ir.Str(s))
	case cue.BoolKind:
		t, err := fv.Bool()
		if err != nil {
			return pc.failErr(err)
		}
		return pc.b.Const(ir.Bool(t))
	default:
		// Floats in particular have no stream representation.
		return pc.fail(v, "value", "constants must be int, string, or bool")
	}
}

func (pc *programCompiler) compileSplit(v cue.Value) builder.Stream {
	of, ok := pc.operand(v, "of")
	if !ok {
		return builder.Stream{}
	}
	fstName, ok := pc.str(v, "fst")
	if !ok {
		return builder.Stream{}
	}
	sndName, ok := pc.str(v, "snd")
	if !ok {
		return builder.Stream{}
	}
	body, ok := pc.sub(v, "in")
	if !ok {
		return builder.Stream{}
	}
	fst, snd := pc.b.ConcatElim(of)
	restoreFst := pc.bind(fstName, fst)
	restoreSnd := pc.bind(sndName, snd)
	defer restoreFst()
	defer restoreSnd()
	return pc.compileExpr(body)
}

func (pc *programCompiler) compileCase(v cue.Value) builder.Stream {
	of, ok := pc.operand(v, "of")
	if !ok {
		return builder.Stream{}
	}
	left, okL := pc.sub(v, "left")
	right, okR := pc.sub(v, "right")
	if !okL || !okR {
		return builder.Stream{}
	}
	return pc.b.Case(of,
		pc.armFn(left),
		pc.armFn(right),
	)
}

// armFn compiles a {bind: name, body: expr} arm into a branch closure.
func (pc *programCompiler) armFn(arm cue.Value) func(builder.Stream) builder.Stream {
	return func(payload builder.Stream) builder.Stream {
		name, ok := pc.str(arm, "bind")
		if !ok {
			return builder.Stream{}
		}
		body, ok := pc.sub(arm, "body")
		if !ok {
			return builder.Stream{}
		}
		restore := pc.bind(name, payload)
		defer restore()
		return pc.compileExpr(body)
	}
}

func (pc *programCompiler) compileStarCase(v cue.Value) builder.Stream {
	of, ok := pc.operand(v, "of")
	if !ok {
		return builder.Stream{}
	}
	nilVal, okN := pc.sub(v, "nil")
	consVal, okC := pc.sub(v, "cons")
	if !okN || !okC {
		return builder.Stream{}
	}
	return pc.b.StarCase(of,
		func() builder.Stream {
			return pc.compileExpr(nilVal)
		},
		func(head, tail builder.Stream, l *builder.Loop) builder.Stream {
			headName, ok := pc.str(consVal, "head")
			if !ok {
				return builder.Stream{}
			}
			tailName, ok := pc.str(consVal, "tail")
			if !ok {
				return builder.Stream{}
			}
			body, ok := pc.sub(consVal, "body")
			if !ok {
				return builder.Stream{}
			}
			restoreHead := pc.bind(headName, head)
			restoreTail := pc.bind(tailName, tail)
			defer restoreHead()
			defer restoreTail()
			pc.loops = append(pc.loops, l)
			defer func() { pc.loops = pc.loops[:len(pc.loops)-1] }()
			return pc.compileExpr(body)
		},
	)
}

func (pc *programCompiler) compileZip(v cue.Value) builder.Stream {
	left, ok := pc.operand(v, "left")
	if !ok {
		return builder.Stream{}
	}
	right, ok := pc.operand(v, "right")
	if !ok {
		return builder.Stream{}
	}
	bindVal, ok := pc.sub(v, "bind")
	if !ok {
		return builder.Stream{}
	}
	body, ok := pc.sub(v, "body")
	if !ok {
		return builder.Stream{}
	}
	return pc.b.ZipWith(left, right, func(a, c builder.Stream) builder.Stream {
		leftName, ok := pc.str(bindVal, "left")
		if !ok {
			return builder.Stream{}
		}
		rightName, ok := pc.str(bindVal, "right")
		if !ok {
			return builder.Stream{}
		}
		restoreL := pc.bind(leftName, a)
		restoreR := pc.bind(rightName, c)
		defer restoreL()
		defer restoreR()
		return pc.compileExpr(body)
	})
}

func (pc *programCompiler) compileMapLike(v cue.Value, op string) builder.Stream {
	of, ok := pc.operand(v, "of")
	if !ok {
		return builder.Stream{}
	}
	name, ok := pc.str(v, "bind")
	if !ok {
		return builder.Stream{}
	}
	body, ok := pc.sub(v, "body")
	if !ok {
		return builder.Stream{}
	}
	f := func(e builder.Stream) builder.Stream {
		restore := pc.bind(name, e)
		defer restore()
		return pc.compileExpr(body)
	}
	if op == "map" {
		return pc.b.Map(of, f)
	}
	return pc.b.ConcatMap(of, f)
}
