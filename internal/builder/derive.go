package builder

import "github.com/alpha-convert/Yoink/internal/ir"

// Derived combinators. Each expands into the primitive vocabulary at
// build time; the resulting graph contains only primitive nodes (plus
// the zip primitive, which has no single-scrutinee expansion).

// Map applies f to every element of the Star stream x.
//
// Expansion: starcase x { nil => nil; cons(h, t) => cons(f(h), rec(t)) }.
func (b *Builder) Map(x Stream, f func(Stream) Stream) Stream {
	if !b.ready("map") {
		return Stream{b: b, id: ir.NoNode}
	}
	if f == nil {
		return b.failGraph("map", "nil element builder")
	}
	return b.starCaseConsFirst("map", x,
		func(h, t Stream, l *Loop) Stream {
			fh := f(h)
			if b.err != nil {
				return fh
			}
			if fh.b != b || !b.g.Valid(fh.id) {
				return b.failGraph("map", "element builder returned an invalid stream")
			}
			l.result = ir.Star{Elem: b.typeOf(fh)}
			return b.ConsIntro(fh, l.Rec(t))
		},
		func(result ir.Type) Stream {
			return b.NilIntro(result.(ir.Star).Elem)
		})
}

// ConcatStreams produces the elements of x followed by the elements
// of y. Both must be Star streams of the same element type.
//
// Expansion: starcase x { nil => y; cons(h, t) => cons(h, rec(t)) }.
func (b *Builder) ConcatStreams(x, y Stream) Stream {
	if !b.valid("concat", x, y) {
		return Stream{b: b, id: ir.NoNode}
	}
	if _, ok := b.typeOf(y).(ir.Star); !ok {
		return b.fail(&ir.TypeError{
			Code:    ir.ErrNotStar,
			Message: "concat of a non-star",
			Node:    y.id,
			Other:   ir.NoNode,
			Want:    "Star(_)",
			Got:     b.typeOf(y).String(),
		})
	}
	return b.StarCase(x,
		func() Stream { return y },
		func(h, t Stream, l *Loop) Stream {
			return b.ConsIntro(h, l.Rec(t))
		})
}

// ConcatMap applies f to every element of x and concatenates the
// resulting streams. f must produce a Star stream.
//
// Expansion: starcase x { nil => nil; cons(h, t) => concat(f(h), rec(t)) }.
func (b *Builder) ConcatMap(x Stream, f func(Stream) Stream) Stream {
	if !b.ready("concatmap") {
		return Stream{b: b, id: ir.NoNode}
	}
	if f == nil {
		return b.failGraph("concatmap", "nil element builder")
	}
	return b.starCaseConsFirst("concatmap", x,
		func(h, t Stream, l *Loop) Stream {
			fh := f(h)
			if b.err != nil {
				return fh
			}
			if fh.b != b || !b.g.Valid(fh.id) {
				return b.failGraph("concatmap", "element builder returned an invalid stream")
			}
			st, ok := b.typeOf(fh).(ir.Star)
			if !ok {
				return b.fail(&ir.TypeError{
					Code:    ir.ErrNotStar,
					Message: "concatmap element builder produced a non-star",
					Node:    fh.id,
					Other:   ir.NoNode,
					Want:    "Star(_)",
					Got:     b.typeOf(fh).String(),
				})
			}
			l.result = st
			return b.ConcatStreams(fh, l.Rec(t))
		},
		func(result ir.Type) Stream {
			return b.NilIntro(result.(ir.Star).Elem)
		})
}
