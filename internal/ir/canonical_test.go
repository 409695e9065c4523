package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalTokensDeterministic(t *testing.T) {
	toks := []Token{More, Val(Str("a<b&c")), Val(Int(-3)), TagRight, Done}
	a, err := CanonicalTokens(toks)
	require.NoError(t, err)
	b, err := CanonicalTokens(toks)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// No HTML escaping in canonical strings.
	assert.Contains(t, string(a), `"a<b&c"`)
}

func TestCanonicalTokensDistinguishesPayloads(t *testing.T) {
	a, err := CanonicalTokens([]Token{Val(Int(1))})
	require.NoError(t, err)
	b, err := CanonicalTokens([]Token{Val(Str("1"))})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCanonicalStringNFC(t *testing.T) {
	// "e" + combining acute normalizes to the precomposed form.
	decomposed := "e\u0301"
	precomposed := "\u00e9"
	a, err := CanonicalTokens([]Token{Val(Str(decomposed))})
	require.NoError(t, err)
	b, err := CanonicalTokens([]Token{Val(Str(precomposed))})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalStringLineSeparators(t *testing.T) {
	// U+2028 and U+2029 appear literally, never as \u escapes.
	a, err := CanonicalTokens([]Token{Val(Str("x\u2028y\u2029z"))})
	require.NoError(t, err)
	assert.Contains(t, string(a), "x\u2028y\u2029z")
	assert.NotContains(t, string(a), `\u2028`)

	// A literal backslash followed by the text "u2028" stays escaped.
	b, err := CanonicalTokens([]Token{Val(Str(`\u2028`))})
	require.NoError(t, err)
	assert.Contains(t, string(b), `\\u2028`)
}

func TestCanonicalType(t *testing.T) {
	ty := Concat{Star{Singleton{ElemInt}}, Sum{Eps{}, Singleton{ElemStr}}}
	got := string(CanonicalType(ty))
	want := `{"kind":"cat","left":{"elem":{"elem":"Int","kind":"singleton"},"kind":"star"},` +
		`"right":{"kind":"sum","left":{"kind":"eps"},"right":{"elem":"Str","kind":"singleton"}}}`
	assert.Equal(t, want, got)
}

func TestGraphHashStable(t *testing.T) {
	build := func() *Graph {
		g := &Graph{}
		v := g.Append(Node{Kind: OpVar, Name: "x", Ann: Singleton{ElemInt}})
		g.Inputs = append(g.Inputs, v)
		c := g.Append(Node{Kind: OpConst, Val: Str("k")})
		out := g.Append(Node{Kind: OpCat, Args: []NodeID{v, c}})
		g.Output = out
		return g
	}
	h1 := MustGraphHash(build())
	h2 := MustGraphHash(build())
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestGraphHashSensitivity(t *testing.T) {
	g := &Graph{}
	v := g.Append(Node{Kind: OpVar, Name: "x", Ann: Singleton{ElemInt}})
	g.Inputs = append(g.Inputs, v)
	g.Output = v
	h1 := MustGraphHash(g)

	g2 := &Graph{}
	v2 := g2.Append(Node{Kind: OpVar, Name: "y", Ann: Singleton{ElemInt}})
	g2.Inputs = append(g2.Inputs, v2)
	g2.Output = v2
	assert.NotEqual(t, h1, MustGraphHash(g2), "input name is part of identity")
}

func TestHashDomainSeparation(t *testing.T) {
	// Identical canonical bytes under different domains must differ.
	data := []byte(`[]`)
	assert.NotEqual(t,
		hashWithDomain(DomainGraph, data),
		hashWithDomain(DomainTokens, data))
}

func TestDecodeTokensRoundTrip(t *testing.T) {
	toks := []Token{
		More, Val(Int(-3)), More, Val(Str("é")), Done,
		TagLeft, Val(Bool(true)), TagRight,
	}
	data, err := CanonicalTokens(toks)
	require.NoError(t, err)
	got, err := DecodeTokens(data)
	require.NoError(t, err)
	assert.True(t, TokensEqual(toks, got), "got %s", FormatTokens(got))
}

func TestDecodeTokensRejects(t *testing.T) {
	for name, data := range map[string]string{
		"unknown_kind":  `[{"kind":"boop"}]`,
		"float_payload": `[{"kind":"value","payload":1.5}]`,
		"null_payload":  `[{"kind":"value","payload":null}]`,
		"no_payload":    `[{"kind":"value"}]`,
		"not_an_array":  `{"kind":"done"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTokens([]byte(data))
			assert.Error(t, err)
		})
	}
}
