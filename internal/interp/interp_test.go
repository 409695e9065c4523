package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-convert/Yoink/internal/builder"
	"github.com/alpha-convert/Yoink/internal/checker"
	"github.com/alpha-convert/Yoink/internal/ir"
)

var (
	intTy  = ir.Singleton{Elem: ir.ElemInt}
	strTy  = ir.Singleton{Elem: ir.ElemStr}
	intStr = ir.Star{Elem: ir.Singleton{Elem: ir.ElemInt}}
)

func checked(t *testing.T, f func(b *builder.Builder) builder.Stream) *ir.TypedGraph {
	t.Helper()
	b := builder.New()
	out := f(b)
	g, err := b.Finish(out)
	require.NoError(t, err)
	tg, err := checker.Check(g)
	require.NoError(t, err)
	return tg
}

func ints(ns ...int64) []ir.Token {
	out := []ir.Token{}
	for _, n := range ns {
		out = append(out, ir.More, ir.Val(ir.Int(n)))
	}
	return append(out, ir.Done)
}

func TestRunIdentity(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		return b.Var("x", intStr)
	})
	in := ints(1, 2, 3)
	got, err := Run(tg, [][]ir.Token{in})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual(in, got), "got %s", ir.FormatTokens(got))
}

func TestRunSplitRoundTrip(t *testing.T) {
	// Splitting a concatenation and recombining its halves reproduces
	// the input token for token.
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		z := b.Var("z", ir.Concat{Left: intStr, Right: strTy})
		fst, snd := b.ConcatElim(z)
		return b.ConcatIntro(fst, snd)
	})
	in := append(ints(4, 5), ir.Val(ir.Str("end")))
	got, err := Run(tg, [][]ir.Token{in})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual(in, got), "got %s", ir.FormatTokens(got))
}

func TestRunCaseRouting(t *testing.T) {
	// Both arms produce Cat(Str, Int); only the prefix tells them apart.
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", ir.Sum{Left: intTy, Right: intTy})
		return b.Case(x,
			func(p builder.Stream) builder.Stream { return b.ConcatIntro(b.Const(ir.Str("left:")), p) },
			func(p builder.Stream) builder.Stream { return b.ConcatIntro(b.Const(ir.Str("right:")), p) },
		)
	})
	got, err := Run(tg, [][]ir.Token{{ir.TagLeft, ir.Val(ir.Int(9))}})
	require.NoError(t, err)
	want := []ir.Token{ir.Val(ir.Str("left:")), ir.Val(ir.Int(9))}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))

	got, err = Run(tg, [][]ir.Token{{ir.TagRight, ir.Val(ir.Int(5))}})
	require.NoError(t, err)
	want = []ir.Token{ir.Val(ir.Str("right:")), ir.Val(ir.Int(5))}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestRunMap(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", intStr)
		return b.Map(x, func(e builder.Stream) builder.Stream {
			return b.ConcatIntro(e, b.Const(ir.Str("!")))
		})
	})
	got, err := Run(tg, [][]ir.Token{ints(1, 2)})
	require.NoError(t, err)
	want := []ir.Token{
		ir.More, ir.Val(ir.Int(1)), ir.Val(ir.Str("!")),
		ir.More, ir.Val(ir.Int(2)), ir.Val(ir.Str("!")),
		ir.Done,
	}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestRunMapEmpty(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", intStr)
		return b.Map(x, func(e builder.Stream) builder.Stream { return e })
	})
	got, err := Run(tg, [][]ir.Token{{ir.Done}})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual([]ir.Token{ir.Done}, got))
}

func TestRunConcatStreams(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", intStr)
		y := b.Var("y", intStr)
		return b.ConcatStreams(x, y)
	})
	got, err := Run(tg, [][]ir.Token{ints(1, 2), ints(3)})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual(ints(1, 2, 3), got), "got %s", ir.FormatTokens(got))
}

func TestRunConcatMap(t *testing.T) {
	// Each element is repeated by consing it onto a singleton stream.
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", intStr)
		return b.ConcatMap(x, func(e builder.Stream) builder.Stream {
			return b.ConsIntro(e, b.NilIntro(intTy))
		})
	})
	got, err := Run(tg, [][]ir.Token{ints(7, 8)})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual(ints(7, 8), got), "got %s", ir.FormatTokens(got))
}

func TestRunZipWith(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", intStr)
		y := b.Var("y", ir.Star{Elem: strTy})
		return b.ZipWith(x, y, func(a, c builder.Stream) builder.Stream {
			return b.ConcatIntro(a, c)
		})
	})
	ys := []ir.Token{ir.More, ir.Val(ir.Str("a")), ir.More, ir.Val(ir.Str("b")), ir.Done}
	got, err := Run(tg, [][]ir.Token{ints(1, 2), ys})
	require.NoError(t, err)
	want := []ir.Token{
		ir.More, ir.Val(ir.Int(1)), ir.Val(ir.Str("a")),
		ir.More, ir.Val(ir.Int(2)), ir.Val(ir.Str("b")),
		ir.Done,
	}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestRunZipRagged(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", intStr)
		y := b.Var("y", intStr)
		return b.ZipWith(x, y, func(a, c builder.Stream) builder.Stream {
			return b.ConcatIntro(a, c)
		})
	})
	_, err := Run(tg, [][]ir.Token{ints(1, 2), ints(3)})
	require.Error(t, err)
	assert.True(t, ir.IsRaggedZip(err), "got %v", err)
}

func TestRunBufferSwapsHalves(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		z := b.Var("z", ir.Concat{Left: intTy, Right: strTy})
		fst, snd := b.ConcatElim(z)
		buf := b.Buffer(fst)
		return b.ConcatIntro(snd, b.Release(buf))
	})
	got, err := Run(tg, [][]ir.Token{{ir.Val(ir.Int(1)), ir.Val(ir.Str("s"))}})
	require.NoError(t, err)
	want := []ir.Token{ir.Val(ir.Str("s")), ir.Val(ir.Int(1))}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestRunSplitInsideMap(t *testing.T) {
	// Each element is split and its halves recombined swapped. The
	// shared split materialization is per iteration, not per graph.
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", ir.Star{Elem: ir.Concat{Left: intTy, Right: strTy}})
		return b.Map(x, func(e builder.Stream) builder.Stream {
			fst, snd := b.ConcatElim(e)
			return b.ConcatIntro(snd, b.Release(b.Buffer(fst)))
		})
	})
	in := []ir.Token{
		ir.More, ir.Val(ir.Int(1)), ir.Val(ir.Str("a")),
		ir.More, ir.Val(ir.Int(2)), ir.Val(ir.Str("b")),
		ir.Done,
	}
	got, err := Run(tg, [][]ir.Token{in})
	require.NoError(t, err)
	want := []ir.Token{
		ir.More, ir.Val(ir.Str("a")), ir.Val(ir.Int(1)),
		ir.More, ir.Val(ir.Str("b")), ir.Val(ir.Int(2)),
		ir.Done,
	}
	assert.True(t, ir.TokensEqual(want, got), "got %s", ir.FormatTokens(got))
}

func TestRunInputErrors(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		return b.Var("x", intStr)
	})
	tests := []struct {
		name  string
		in    []ir.Token
		check func(error) bool
	}{
		{"short", []ir.Token{ir.More, ir.Val(ir.Int(1))}, ir.IsShortInput},
		{"trailing", append(ints(1), ir.Done), ir.IsTrailingInput},
		{"bad_token", []ir.Token{ir.TagLeft}, ir.IsBadToken},
		{"wrong_payload_kind", []ir.Token{ir.More, ir.Val(ir.Str("x")), ir.Done}, ir.IsBadToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tg, [][]ir.Token{tt.in})
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestRunArityMismatch(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		return b.Var("x", intStr)
	})
	_, err := Run(tg, nil)
	require.Error(t, err)
}

func TestRunEpsAndConst(t *testing.T) {
	tg := checked(t, func(b *builder.Builder) builder.Stream {
		x := b.Var("x", ir.Eps{})
		return b.ConcatIntro(x, b.Const(ir.Bool(true)))
	})
	got, err := Run(tg, [][]ir.Token{{}})
	require.NoError(t, err)
	assert.True(t, ir.TokensEqual([]ir.Token{ir.Val(ir.Bool(true))}, got))
}
