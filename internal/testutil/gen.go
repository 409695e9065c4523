// Package testutil provides deterministic data generation for tests:
// random well-formed token sequences and a reproducible UUID source.
package testutil

import (
	"encoding/binary"
	"math/rand"

	"github.com/google/uuid"

	"github.com/alpha-convert/Yoink/internal/ir"
)

var words = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", ""}

// GenTokens returns a random well-formed token sequence of type t.
// maxDepth bounds the length of generated star streams; element count
// shrinks as nesting deepens so deeply nested stars stay small.
func GenTokens(rng *rand.Rand, t ir.Type, maxDepth int) []ir.Token {
	return appendValue(nil, rng, t, maxDepth)
}

func appendValue(out []ir.Token, rng *rand.Rand, t ir.Type, depth int) []ir.Token {
	switch t := t.(type) {
	case ir.Eps:
		return out
	case ir.Singleton:
		return append(out, ir.Val(genPayload(rng, t.Elem)))
	case ir.Concat:
		out = appendValue(out, rng, t.Left, depth)
		return appendValue(out, rng, t.Right, depth)
	case ir.Sum:
		if rng.Intn(2) == 0 {
			return appendValue(append(out, ir.TagLeft), rng, t.Left, depth)
		}
		return appendValue(append(out, ir.TagRight), rng, t.Right, depth)
	case ir.Star:
		n := 0
		if depth > 0 {
			n = rng.Intn(4)
		}
		for i := 0; i < n; i++ {
			out = appendValue(append(out, ir.More), rng, t.Elem, depth-1)
		}
		return append(out, ir.Done)
	default:
		panic("testutil: unknown type")
	}
}

func genPayload(rng *rand.Rand, k ir.ElemKind) ir.Value {
	switch k {
	case ir.ElemInt:
		return ir.Int(rng.Int63n(1000) - 500)
	case ir.ElemStr:
		return ir.Str(words[rng.Intn(len(words))])
	case ir.ElemBool:
		return ir.Bool(rng.Intn(2) == 0)
	default:
		panic("testutil: unknown element kind")
	}
}

// NewUUIDSequence returns a generator yielding a fixed increasing
// sequence of valid UUIDs, for tests that need stable run ids.
func NewUUIDSequence() func() uuid.UUID {
	var n uint64
	return func() uuid.UUID {
		n++
		var u uuid.UUID
		binary.BigEndian.PutUint64(u[8:], n)
		u[6] = 0x40 | (u[6] & 0x0f) // version 4
		u[8] = 0x80 | (u[8] & 0x3f) // RFC 4122 variant
		return u
	}
}
