package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-convert/Yoink/internal/checker"
	"github.com/alpha-convert/Yoink/internal/interp"
	"github.com/alpha-convert/Yoink/internal/ir"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		src  string
		want ir.Type
	}{
		{"Int", ir.Singleton{Elem: ir.ElemInt}},
		{"Str", ir.Singleton{Elem: ir.ElemStr}},
		{"Bool", ir.Singleton{Elem: ir.ElemBool}},
		{"Eps", ir.Eps{}},
		{"Cat(Int,Str)", ir.Concat{Left: ir.Singleton{Elem: ir.ElemInt}, Right: ir.Singleton{Elem: ir.ElemStr}}},
		{"Sum(Int, Eps)", ir.Sum{Left: ir.Singleton{Elem: ir.ElemInt}, Right: ir.Eps{}}},
		{"Star(Int)", ir.Star{Elem: ir.Singleton{Elem: ir.ElemInt}}},
		{" Star( Cat(Int, Sum(Str, Bool)) ) ", ir.Star{Elem: ir.Concat{
			Left:  ir.Singleton{Elem: ir.ElemInt},
			Right: ir.Sum{Left: ir.Singleton{Elem: ir.ElemStr}, Right: ir.Singleton{Elem: ir.ElemBool}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := ParseType(tt.src)
			require.NoError(t, err)
			assert.True(t, ir.TypeEqual(tt.want, got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseTypeRejects(t *testing.T) {
	for _, src := range []string{
		"", "Float", "Cat(Int)", "Cat(Int,Str,Bool)", "Star", "Star(Int", "Int trailing", "Cat(,Int)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseType(src)
			assert.Error(t, err)
		})
	}
}

// compileAndRun compiles source, typechecks, and evaluates against the
// interpreter.
func compileAndRun(t *testing.T, src string, inputs [][]ir.Token) ([]ir.Token, error) {
	t.Helper()
	g, inTypes, err := CompileSource(src)
	require.NoError(t, err)
	require.Len(t, inTypes, len(inputs))
	tg, err := checker.Check(g)
	require.NoError(t, err)
	return interp.Run(tg, inputs)
}

func TestCompileIdentity(t *testing.T) {
	src := `
program: {
	inputs: [{name: "xs", type: "Star(Int)"}]
	output: {op: "var", name: "xs"}
}`
	in := []ir.Token{ir.More, ir.Val(ir.Int(1)), ir.Done}
	got, err := compileAndRun(t, src, [][]ir.Token{in})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual(in, got))
}

func TestCompileMap(t *testing.T) {
	src := `
program: {
	inputs: [{name: "xs", type: "Star(Int)"}]
	output: {
		op: "map"
		of: {op: "var", name: "xs"}
		bind: "e"
		body: {op: "cat", left: {op: "var", name: "e"}, right: {op: "const", value: "!"}}
	}
}`
	got, err := compileAndRun(t, src, [][]ir.Token{{ir.More, ir.Val(ir.Int(7)), ir.Done}})
	require.NoError(t, err)
	want := []ir.Token{ir.More, ir.Val(ir.Int(7)), ir.Val(ir.Str("!")), ir.Done}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestCompileSplitWithBuffer(t *testing.T) {
	src := `
program: {
	inputs: [{name: "z", type: "Cat(Int,Str)"}]
	output: {
		op: "split"
		of: {op: "var", name: "z"}
		fst: "a"
		snd: "b"
		in: {
			op: "cat"
			left: {op: "var", name: "b"}
			right: {op: "release", of: {op: "buffer", of: {op: "var", name: "a"}}}
		}
	}
}`
	got, err := compileAndRun(t, src, [][]ir.Token{{ir.Val(ir.Int(1)), ir.Val(ir.Str("s"))}})
	require.NoError(t, err)
	want := []ir.Token{ir.Val(ir.Str("s")), ir.Val(ir.Int(1))}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestCompileCase(t *testing.T) {
	src := `
program: {
	inputs: [{name: "x", type: "Sum(Int,Str)"}]
	output: {
		op: "case"
		of: {op: "var", name: "x"}
		left: {bind: "p", body: {op: "inr", of: {op: "var", name: "p"}, left: "Str"}}
		right: {bind: "p", body: {op: "inl", of: {op: "var", name: "p"}, right: "Int"}}
	}
}`
	got, err := compileAndRun(t, src, [][]ir.Token{{ir.TagLeft, ir.Val(ir.Int(4))}})
	require.NoError(t, err)
	want := []ir.Token{ir.TagRight, ir.Val(ir.Int(4))}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestCompileStarCaseRec(t *testing.T) {
	// A hand-written identity loop exercising starcase, cons, and rec.
	src := `
program: {
	inputs: [{name: "xs", type: "Star(Int)"}]
	output: {
		op: "starcase"
		of: {op: "var", name: "xs"}
		nil: {op: "nil", elem: "Int"}
		cons: {
			head: "h"
			tail: "t"
			body: {
				op: "cons"
				head: {op: "var", name: "h"}
				tail: {op: "rec", tail: {op: "var", name: "t"}}
			}
		}
	}
}`
	in := []ir.Token{ir.More, ir.Val(ir.Int(1)), ir.More, ir.Val(ir.Int(2)), ir.Done}
	got, err := compileAndRun(t, src, [][]ir.Token{in})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual(in, got), "got %s", ir.FormatTokens(got))
}

func TestCompileZip(t *testing.T) {
	src := `
program: {
	inputs: [
		{name: "xs", type: "Star(Int)"},
		{name: "ys", type: "Star(Str)"},
	]
	output: {
		op: "zip"
		left: {op: "var", name: "xs"}
		right: {op: "var", name: "ys"}
		bind: {left: "a", right: "b"}
		body: {op: "cat", left: {op: "var", name: "a"}, right: {op: "var", name: "b"}}
	}
}`
	got, err := compileAndRun(t, src, [][]ir.Token{
		{ir.More, ir.Val(ir.Int(1)), ir.Done},
		{ir.More, ir.Val(ir.Str("a")), ir.Done},
	})
	require.NoError(t, err)
	want := []ir.Token{ir.More, ir.Val(ir.Int(1)), ir.Val(ir.Str("a")), ir.Done}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no_program", `other: 1`},
		{"no_output", `program: {inputs: [{name: "x", type: "Int"}]}`},
		{"unknown_op", `program: {output: {op: "frobnicate"}}`},
		{"unbound_name", `program: {output: {op: "var", name: "nope"}}`},
		{"bad_type", `program: {inputs: [{name: "x", type: "Float"}], output: {op: "var", name: "x"}}`},
		{"float_const", `program: {output: {op: "const", value: 1.5}}`},
		{"rec_outside_loop", `program: {inputs: [{name: "x", type: "Star(Int)"}], output: {op: "rec", tail: {op: "var", name: "x"}}}`},
		{"missing_arm_bind", `program: {
			inputs: [{name: "x", type: "Sum(Int,Int)"}]
			output: {
				op: "case"
				of: {op: "var", name: "x"}
				left: {body: {op: "eps"}}
				right: {bind: "p", body: {op: "var", name: "p"}}
			}
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CompileSource(tt.src)
			require.Error(t, err)
		})
	}
}

func TestCompileErrorCarriesField(t *testing.T) {
	_, _, err := CompileSource(`program: {output: {op: "var", name: "nope"}}`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "name", ce.Field)
}
