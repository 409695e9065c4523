package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-convert/Yoink/internal/ir"
)

func kindCount(g *ir.Graph, k ir.OpKind) int {
	n := 0
	for i := range g.Nodes {
		if g.Nodes[i].Kind == k {
			n++
		}
	}
	return n
}

func TestMapExpandsToStarCase(t *testing.T) {
	b := New()
	intTy := ir.Singleton{Elem: ir.ElemInt}
	x := b.Var("x", ir.Star{Elem: intTy})
	out := b.Map(x, func(e Stream) Stream {
		return b.ConcatIntro(e, b.Const(ir.Str("!")))
	})
	g, err := b.Finish(out)
	require.NoError(t, err)

	n := g.Node(out.ID())
	require.Equal(t, ir.OpStarCase, n.Kind)
	assert.Equal(t, 1, kindCount(g, ir.OpRec))
	assert.Equal(t, 1, kindCount(g, ir.OpNil))
	assert.Equal(t, 1, kindCount(g, ir.OpCons))

	// Result type recorded on the recursion and the nil exit.
	wantOut := ir.Star{Elem: ir.Concat{Left: intTy, Right: ir.Singleton{Elem: ir.ElemStr}}}
	for i := range g.Nodes {
		if g.Nodes[i].Kind == ir.OpRec {
			assert.True(t, ir.TypeEqual(wantOut, g.Nodes[i].Ann))
		}
		if g.Nodes[i].Kind == ir.OpNil {
			assert.True(t, ir.TypeEqual(wantOut, g.Nodes[i].Ann))
		}
	}
}

func TestConcatStreamsNilArmIsSecondStream(t *testing.T) {
	b := New()
	elem := ir.Singleton{Elem: ir.ElemStr}
	x := b.Var("x", ir.Star{Elem: elem})
	y := b.Var("y", ir.Star{Elem: elem})
	out := b.ConcatStreams(x, y)
	g, err := b.Finish(out)
	require.NoError(t, err)

	n := g.Node(out.ID())
	require.Equal(t, ir.OpStarCase, n.Kind)
	assert.Equal(t, y.ID(), n.Branches[0].Exit, "empty first stream yields the second")
	assert.Equal(t, y.ID(), g.Loop(n.Loop).NilExit)
}

func TestConcatMapExpandsToNestedLoops(t *testing.T) {
	b := New()
	elem := ir.Singleton{Elem: ir.ElemInt}
	x := b.Var("x", ir.Star{Elem: elem})
	out := b.ConcatMap(x, func(e Stream) Stream {
		return b.ConsIntro(e, b.NilIntro(elem))
	})
	g, err := b.Finish(out)
	require.NoError(t, err)

	require.Equal(t, ir.OpStarCase, g.Node(out.ID()).Kind)
	assert.Equal(t, 2, kindCount(g, ir.OpStarCase), "outer loop plus inner concat loop")
	assert.Equal(t, 2, kindCount(g, ir.OpRec))
}

func TestConcatMapRejectsScalarElements(t *testing.T) {
	b := New()
	elem := ir.Singleton{Elem: ir.ElemInt}
	x := b.Var("x", ir.Star{Elem: elem})
	b.ConcatMap(x, func(e Stream) Stream { return e })
	require.Error(t, b.Err())
	assert.Equal(t, ir.ErrNotStar, ir.TypeCode(b.Err()))
}

func TestZipWithProducesStarOfBody(t *testing.T) {
	b := New()
	intTy := ir.Singleton{Elem: ir.ElemInt}
	strTy := ir.Singleton{Elem: ir.ElemStr}
	x := b.Var("x", ir.Star{Elem: intTy})
	y := b.Var("y", ir.Star{Elem: strTy})
	out := b.ZipWith(x, y, func(a, c Stream) Stream {
		return b.ConcatIntro(a, c)
	})
	g, err := b.Finish(out)
	require.NoError(t, err)

	n := g.Node(out.ID())
	require.Equal(t, ir.OpZip, n.Kind)
	require.Len(t, n.Branches, 1)
	require.Len(t, n.Branches[0].Bound, 2)
	assert.Equal(t, ir.RoleZipLeft, g.Node(n.Branches[0].Bound[0]).Role)
	assert.Equal(t, ir.RoleZipRight, g.Node(n.Branches[0].Bound[1]).Role)
}
