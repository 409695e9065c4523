package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeAcceptsWellFormedValues(t *testing.T) {
	tests := []struct {
		name string
		ty   Type
		toks []Token
	}{
		{"singleton", Singleton{ElemInt}, []Token{Val(Int(3))}},
		{"eps", Eps{}, nil},
		{"cat_no_punctuation",
			Concat{Singleton{ElemStr}, Singleton{ElemInt}},
			[]Token{Val(Str("a")), Val(Int(1))}},
		{"sum_left",
			Sum{Singleton{ElemInt}, Eps{}},
			[]Token{TagLeft, Val(Int(5))}},
		{"sum_right_eps",
			Sum{Singleton{ElemInt}, Eps{}},
			[]Token{TagRight}},
		{"star_empty", Star{Singleton{ElemInt}}, []Token{Done}},
		{"star_two",
			Star{Singleton{ElemInt}},
			[]Token{More, Val(Int(1)), More, Val(Int(2)), Done}},
		{"star_of_cat",
			Star{Concat{Singleton{ElemStr}, Singleton{ElemBool}}},
			[]Token{More, Val(Str("x")), Val(Bool(true)), Done}},
		{"nested_star",
			Star{Star{Singleton{ElemInt}}},
			[]Token{More, Done, More, More, Val(Int(7)), Done, Done}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewShape(tt.ty)
			for i, tok := range tt.toks {
				require.False(t, s.Done(), "complete before token %d", i)
				require.NoError(t, s.Feed(tok), "token %d (%s)", i, tok)
			}
			assert.True(t, s.Done())
		})
	}
}

func TestShapeRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name string
		ty   Type
		toks []Token // all but the last accepted, last rejected
	}{
		{"value_for_sum", Sum{Eps{}, Eps{}}, []Token{Val(Int(1))}},
		{"tag_for_singleton", Singleton{ElemInt}, []Token{TagLeft}},
		{"wrong_elem_kind", Singleton{ElemInt}, []Token{Val(Str("no"))}},
		{"value_for_star", Star{Singleton{ElemInt}}, []Token{Val(Int(1))}},
		{"done_mid_element",
			Star{Concat{Singleton{ElemInt}, Singleton{ElemInt}}},
			[]Token{More, Val(Int(1)), Done}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewShape(tt.ty)
			for _, tok := range tt.toks[:len(tt.toks)-1] {
				require.NoError(t, s.Feed(tok))
			}
			assert.Error(t, s.Feed(tt.toks[len(tt.toks)-1]))
		})
	}
}

func TestShapeRejectsTokensAfterCompletion(t *testing.T) {
	s := NewShape(Singleton{ElemBool})
	require.NoError(t, s.Feed(Val(Bool(true))))
	require.True(t, s.Done())
	assert.Error(t, s.Feed(Done))
}

func TestReadValueSplitsConcat(t *testing.T) {
	// A cursor holding two adjacent values: ReadValue takes exactly one.
	toks := []Token{More, Val(Int(1)), Done, Val(Str("rest"))}
	c := NewCursor(toks)

	got, rerr := ReadValue(c, Star{Singleton{ElemInt}})
	require.Nil(t, rerr)
	assert.True(t, TokensEqual([]Token{More, Val(Int(1)), Done}, got))
	assert.Equal(t, 1, c.Remaining())
}

func TestReadValueShortInput(t *testing.T) {
	c := NewCursor([]Token{More, Val(Int(1))})
	_, rerr := ReadValue(c, Star{Singleton{ElemInt}})
	require.NotNil(t, rerr)
	assert.Equal(t, ErrCodeShortInput, rerr.Code)
	assert.True(t, IsShortInput(rerr))
}

func TestReadValueBadToken(t *testing.T) {
	c := NewCursor([]Token{TagLeft})
	_, rerr := ReadValue(c, Star{Singleton{ElemInt}})
	require.NotNil(t, rerr)
	assert.Equal(t, ErrCodeBadToken, rerr.Code)
	assert.Equal(t, "more or done", rerr.Want)
}

func TestValidValue(t *testing.T) {
	ty := Sum{Singleton{ElemInt}, Star{Singleton{ElemStr}}}
	assert.True(t, ValidValue([]Token{TagLeft, Val(Int(1))}, ty))
	assert.True(t, ValidValue([]Token{TagRight, Done}, ty))
	assert.False(t, ValidValue([]Token{TagLeft, Val(Int(1)), Done}, ty), "trailing token")
	assert.False(t, ValidValue([]Token{TagLeft}, ty), "short")
}
