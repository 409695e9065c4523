package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-convert/Yoink/internal/ir"
)

func TestBuildIdentity(t *testing.T) {
	b := New()
	x := b.Var("x", ir.Star{Elem: ir.Singleton{Elem: ir.ElemInt}})
	g, err := b.Finish(x)
	require.NoError(t, err)

	assert.Len(t, g.Inputs, 1)
	assert.Equal(t, x.ID(), g.Output)
	assert.Equal(t, "x", g.Node(g.Inputs[0]).Name)
	assert.True(t, ir.TypeEqual(ir.Star{Elem: ir.Singleton{Elem: ir.ElemInt}}, g.Node(g.Inputs[0]).Ann))
}

func TestBuildConcatSwapWithBuffer(t *testing.T) {
	b := New()
	x := b.Var("x", ir.Singleton{Elem: ir.ElemInt})
	y := b.Var("y", ir.Singleton{Elem: ir.ElemStr})
	bx := b.Buffer(x)
	out := b.ConcatIntro(y, b.Release(bx))
	g, err := b.Finish(out)
	require.NoError(t, err)

	assert.Equal(t, ir.OpCat, g.Node(g.Output).Kind)
	assert.Equal(t, ir.OpBuffer, g.Node(bx.ID()).Kind)
}

func TestBuildCaseRecordsArms(t *testing.T) {
	b := New()
	x := b.Var("x", ir.Sum{Left: ir.Singleton{Elem: ir.ElemInt}, Right: ir.Singleton{Elem: ir.ElemInt}})
	out := b.Case(x,
		func(p Stream) Stream { return p },
		func(p Stream) Stream { return p },
	)
	g, err := b.Finish(out)
	require.NoError(t, err)

	n := g.Node(out.ID())
	require.Equal(t, ir.OpCase, n.Kind)
	require.Len(t, n.Branches, 2)
	for i, arm := range n.Branches {
		require.Len(t, arm.Bound, 1, "arm %d", i)
		bound := g.Node(arm.Bound[0])
		assert.Equal(t, ir.OpBound, bound.Kind)
		assert.Equal(t, out.ID(), bound.Origin)
		assert.True(t, arm.Contains(arm.Bound[0]), "bound var inside arm range")
		assert.True(t, arm.Contains(arm.Exit) || arm.Exit == arm.Bound[0])
	}
	assert.Equal(t, ir.RoleCaseLeft, g.Node(n.Branches[0].Bound[0]).Role)
	assert.Equal(t, ir.RoleCaseRight, g.Node(n.Branches[1].Bound[0]).Role)
}

func TestBuildStarCaseRegistersLoop(t *testing.T) {
	b := New()
	elem := ir.Singleton{Elem: ir.ElemInt}
	x := b.Var("x", ir.Star{Elem: elem})
	out := b.StarCase(x,
		func() Stream { return b.NilIntro(elem) },
		func(h, tl Stream, l *Loop) Stream { return b.ConsIntro(h, l.Rec(tl)) },
	)
	g, err := b.Finish(out)
	require.NoError(t, err)

	n := g.Node(out.ID())
	require.Equal(t, ir.OpStarCase, n.Kind)
	require.Len(t, n.Branches, 2)
	assert.Empty(t, n.Branches[0].Bound, "nil arm binds nothing")
	assert.Len(t, n.Branches[1].Bound, 2, "cons arm binds head and tail")

	meta := g.Loop(n.Loop)
	assert.Equal(t, out.ID(), meta.StarCase)
	assert.Equal(t, x.ID(), meta.Scrutinee)
	assert.Equal(t, n.Branches[0].Exit, meta.NilExit)
}

func TestRecOutsideArmRejected(t *testing.T) {
	b := New()
	elem := ir.Singleton{Elem: ir.ElemInt}
	x := b.Var("x", ir.Star{Elem: elem})
	var escaped *Loop
	b.StarCase(x,
		func() Stream { return b.NilIntro(elem) },
		func(h, tl Stream, l *Loop) Stream {
			escaped = l
			return b.ConsIntro(h, l.Rec(tl))
		},
	)
	y := b.Var("y", ir.Star{Elem: elem})
	escaped.Rec(y)
	_, err := b.Finish(y)
	require.Error(t, err)
	assert.True(t, IsGraphError(err))
}

func TestFrontLoadedTypeErrors(t *testing.T) {
	intTy := ir.Singleton{Elem: ir.ElemInt}
	tests := []struct {
		name  string
		build func(b *Builder)
		code  ir.TypeErrorCode
	}{
		{"split_non_concat", func(b *Builder) {
			x := b.Var("x", intTy)
			b.ConcatElim(x)
		}, ir.ErrNotConcat},
		{"case_non_sum", func(b *Builder) {
			x := b.Var("x", intTy)
			b.Case(x, func(p Stream) Stream { return p }, func(p Stream) Stream { return p })
		}, ir.ErrNotSum},
		{"starcase_non_star", func(b *Builder) {
			x := b.Var("x", intTy)
			b.StarCase(x,
				func() Stream { return b.EpsIntro() },
				func(h, tl Stream, l *Loop) Stream { return h })
		}, ir.ErrNotStar},
		{"cons_non_star", func(b *Builder) {
			x := b.Var("x", intTy)
			b.ConsIntro(b.Const(ir.Int(1)), x)
		}, ir.ErrNotStar},
		{"zip_non_star", func(b *Builder) {
			x := b.Var("x", ir.Star{Elem: intTy})
			y := b.Var("y", intTy)
			b.ZipWith(x, y, func(a, c Stream) Stream { return a })
		}, ir.ErrNotStar},
		{"release_non_buffer", func(b *Builder) {
			x := b.Var("x", intTy)
			b.Release(x)
		}, ir.ErrUnmatchedBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			tt.build(b)
			err := b.Err()
			require.Error(t, err)
			assert.Equal(t, tt.code, ir.TypeCode(err))
		})
	}
}

func TestGraphErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
	}{
		{"duplicate_input", func(b *Builder) {
			b.Var("x", ir.Eps{})
			b.Var("x", ir.Eps{})
		}},
		{"empty_input_name", func(b *Builder) {
			b.Var("", ir.Eps{})
		}},
		{"malformed_type", func(b *Builder) {
			b.Var("x", ir.Star{})
		}},
		{"nil_literal", func(b *Builder) {
			b.Const(nil)
		}},
		{"foreign_handle", func(b *Builder) {
			other := New()
			y := other.Var("y", ir.Eps{})
			x := b.Var("x", ir.Eps{})
			b.ConcatIntro(x, y)
		}},
		{"input_inside_arm", func(b *Builder) {
			x := b.Var("x", ir.Star{Elem: ir.Eps{}})
			b.StarCase(x,
				func() Stream { return b.Var("late", ir.Eps{}) },
				func(h, tl Stream, l *Loop) Stream { return h })
		}},
		{"nil_branch_builder", func(b *Builder) {
			x := b.Var("x", ir.Sum{Left: ir.Eps{}, Right: ir.Eps{}})
			b.Case(x, nil, nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			tt.build(b)
			require.Error(t, b.Err())
			assert.True(t, IsGraphError(b.Err()), "got %v", b.Err())
		})
	}
}

func TestErrorsAreSticky(t *testing.T) {
	b := New()
	b.Const(nil) // first failure
	x := b.Var("x", ir.Eps{})
	assert.Equal(t, ir.NoNode, x.ID(), "calls after a failure are no-ops")
	_, err := b.Finish(x)
	require.Error(t, err)
	assert.True(t, IsGraphError(err))
}

func TestFinishTwice(t *testing.T) {
	b := New()
	x := b.Var("x", ir.Eps{})
	_, err := b.Finish(x)
	require.NoError(t, err)
	_, err = b.Finish(x)
	require.Error(t, err)
	assert.True(t, IsGraphError(err))
}
