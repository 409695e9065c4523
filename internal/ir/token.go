package ir

import "fmt"

// TokenKind identifies one atomic unit of the runtime event protocol.
type TokenKind uint8

const (
	// KindValue carries a Singleton payload.
	KindValue TokenKind = iota + 1
	// KindTagLeft precedes the payload of a left-injected Sum.
	KindTagLeft
	// KindTagRight precedes the payload of a right-injected Sum.
	KindTagRight
	// KindMore precedes each element of a Star.
	KindMore
	// KindDone terminates a Star.
	KindDone
)

// String returns the wire name of the token kind.
func (k TokenKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindTagLeft:
		return "left"
	case KindTagRight:
		return "right"
	case KindMore:
		return "more"
	case KindDone:
		return "done"
	default:
		return "invalid"
	}
}

// Token is one event of the flat runtime protocol. Payload is non-nil
// only for KindValue tokens.
type Token struct {
	Kind    TokenKind
	Payload Value
}

// Val creates a VALUE token carrying v.
func Val(v Value) Token { return Token{Kind: KindValue, Payload: v} }

// Marker tokens. These carry no payload and may be compared directly.
var (
	TagLeft  = Token{Kind: KindTagLeft}
	TagRight = Token{Kind: KindTagRight}
	More     = Token{Kind: KindMore}
	Done     = Token{Kind: KindDone}
)

// TokenEqual reports equality of two tokens, payload included.
func TokenEqual(a, b Token) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != KindValue {
		return true
	}
	return ValueEqual(a.Payload, b.Payload)
}

// TokensEqual reports element-wise equality of two token sequences.
func TokensEqual(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !TokenEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// String renders a token for error messages and text output.
func (t Token) String() string {
	if t.Kind == KindValue {
		return fmt.Sprintf("value(%s)", FormatValue(t.Payload))
	}
	return t.Kind.String()
}

// FormatTokens renders a token sequence as a bracketed list.
func FormatTokens(toks []Token) string {
	s := "["
	for i, t := range toks {
		if i > 0 {
			s += " "
		}
		s += t.String()
	}
	return s + "]"
}
