package ir

import "fmt"

// Shape is a type-directed token acceptor: a stack machine that tracks
// how much of a value of some type has been observed. Feeding it the
// tokens of a well-formed value of that type, in order, drives it to
// completion; any token that cannot continue the type is rejected.
//
// Shape is the Go form of the type derivative: after each accepted token
// the stack holds exactly the residual type.
//
// The flat token protocol is self-delimiting: every type's token language
// has a statically decidable end, so Concat needs no punctuation marker
// between its halves.
type Shape struct {
	// stack of pending types, top at the end. Invariant: between calls
	// the top is never Concat or Eps (those are expanded away eagerly).
	stack []Type
}

// NewShape creates a Shape tracking a value of type t.
func NewShape(t Type) *Shape {
	s := &Shape{stack: make([]Type, 0, 8)}
	s.push(t)
	return s
}

// Reset re-arms the shape for a fresh value of type t, reusing storage.
func (s *Shape) Reset(t Type) {
	s.stack = s.stack[:0]
	s.push(t)
}

func (s *Shape) push(t Type) {
	s.stack = append(s.stack, t)
	s.normalize()
}

// normalize expands Concat frames and discards Eps frames until the top
// of the stack needs a token (or the stack is empty). Terminates because
// each expansion strictly descends into the finite type tree.
func (s *Shape) normalize() {
	for len(s.stack) > 0 {
		switch top := s.stack[len(s.stack)-1].(type) {
		case Eps:
			s.stack = s.stack[:len(s.stack)-1]
		case Concat:
			s.stack[len(s.stack)-1] = top.Right
			s.stack = append(s.stack, top.Left)
		default:
			return
		}
	}
}

// Done reports whether the tracked value is complete.
func (s *Shape) Done() bool { return len(s.stack) == 0 }

// Expecting describes the token(s) that would continue the value, for
// error messages.
func (s *Shape) Expecting() string {
	if len(s.stack) == 0 {
		return "end of value"
	}
	switch top := s.stack[len(s.stack)-1].(type) {
	case Singleton:
		return fmt.Sprintf("value(%s)", top.Elem)
	case Sum:
		return "left or right"
	case Star:
		return "more or done"
	default:
		return top.String()
	}
}

// Feed advances the shape by one token. It returns an error when the
// token cannot continue a value of the tracked type; the shape is left
// unchanged in that case.
func (s *Shape) Feed(tok Token) error {
	if len(s.stack) == 0 {
		return fmt.Errorf("value already complete, got %s", tok)
	}
	top := s.stack[len(s.stack)-1]
	switch t := top.(type) {
	case Singleton:
		if tok.Kind != KindValue {
			return fmt.Errorf("expected value(%s), got %s", t.Elem, tok)
		}
		if KindOf(tok.Payload) != t.Elem {
			return fmt.Errorf("expected value(%s), got %s", t.Elem, tok)
		}
		s.stack = s.stack[:len(s.stack)-1]
	case Sum:
		switch tok.Kind {
		case KindTagLeft:
			s.stack[len(s.stack)-1] = t.Left
		case KindTagRight:
			s.stack[len(s.stack)-1] = t.Right
		default:
			return fmt.Errorf("expected left or right, got %s", tok)
		}
	case Star:
		switch tok.Kind {
		case KindMore:
			// More introduces one element followed by the rest of the
			// star: keep Star below, element on top.
			s.stack = append(s.stack, t.Elem)
		case KindDone:
			s.stack = s.stack[:len(s.stack)-1]
		default:
			return fmt.Errorf("expected more or done, got %s", tok)
		}
	default:
		// Concat and Eps are expanded away by normalize.
		return fmt.Errorf("internal: unnormalized shape frame %T", top)
	}
	s.normalize()
	return nil
}

// Cursor is a read position over an in-memory token sequence.
type Cursor struct {
	toks []Token
	pos  int
}

// NewCursor creates a cursor over toks.
func NewCursor(toks []Token) *Cursor { return &Cursor{toks: toks} }

// Next returns the next token, or ok=false when exhausted.
func (c *Cursor) Next() (Token, bool) {
	if c.pos >= len(c.toks) {
		return Token{}, false
	}
	t := c.toks[c.pos]
	c.pos++
	return t, true
}

// Exhausted reports whether all tokens have been consumed.
func (c *Cursor) Exhausted() bool { return c.pos >= len(c.toks) }

// Remaining returns the number of unconsumed tokens.
func (c *Cursor) Remaining() int { return len(c.toks) - c.pos }

// Rest returns the unconsumed suffix without advancing.
func (c *Cursor) Rest() []Token { return c.toks[c.pos:] }

// ReadValue consumes exactly one value of type t from the cursor and
// returns its tokens. It reports SHORT_INPUT when the cursor runs out
// mid-value and BAD_TOKEN when a token cannot continue the type; the
// caller is expected to fill in node/input context.
func ReadValue(c *Cursor, t Type) ([]Token, *RuntimeError) {
	shape := NewShape(t)
	var out []Token
	for !shape.Done() {
		tok, ok := c.Next()
		if !ok {
			e := NewRuntimeError(ErrCodeShortInput, "token sequence exhausted mid-value")
			e.Want = shape.Expecting()
			e.Got = "end of input"
			return nil, e
		}
		if err := shape.Feed(tok); err != nil {
			e := NewRuntimeError(ErrCodeBadToken, "token does not continue the declared type")
			e.Want = shape.Expecting()
			e.Got = tok.String()
			return nil, e
		}
		out = append(out, tok)
	}
	return out, nil
}

// ValidValue reports whether toks is exactly one well-formed value of
// type t, with no tokens left over.
func ValidValue(toks []Token, t Type) bool {
	c := NewCursor(toks)
	if _, err := ReadValue(c, t); err != nil {
		return false
	}
	return c.Exhausted()
}
