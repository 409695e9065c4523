package ir

import "fmt"

// ElemKind identifies the payload kind carried by a Singleton stream.
// There is no float kind: float payloads break deterministic comparison
// of recorded traces.
type ElemKind uint8

const (
	ElemInvalid ElemKind = iota
	ElemStr
	ElemInt
	ElemBool
)

// String returns the surface syntax name of the element kind.
func (k ElemKind) String() string {
	switch k {
	case ElemStr:
		return "Str"
	case ElemInt:
		return "Int"
	case ElemBool:
		return "Bool"
	default:
		return "Invalid"
	}
}

// Type is a sealed interface over the five stream type formers.
// Only Singleton, Concat, Sum, Star, and Eps implement it.
// Types are immutable values compared with TypeEqual.
type Type interface {
	isType() // Sealed - only the five formers implement it
	String() string
}

// Singleton is the type of a stream carrying exactly one payload value.
type Singleton struct {
	Elem ElemKind
}

func (Singleton) isType() {}

func (t Singleton) String() string { return t.Elem.String() }

// Concat is the type of an A-stream immediately followed by a B-stream.
// A consumer must fully consume the left portion before any event of the
// right portion becomes observable.
type Concat struct {
	Left  Type
	Right Type
}

func (Concat) isType() {}

func (t Concat) String() string {
	return fmt.Sprintf("Cat(%s, %s)", t.Left, t.Right)
}

// Sum is the type of a stream that is either a left-tagged A-stream or a
// right-tagged B-stream. The tag precedes the payload on the wire.
type Sum struct {
	Left  Type
	Right Type
}

func (Sum) isType() {}

func (t Sum) String() string {
	return fmt.Sprintf("Sum(%s, %s)", t.Left, t.Right)
}

// Star is the type of a possibly-empty, statically-unbounded sequence of
// element streams, delimited on the wire by More/Done markers.
type Star struct {
	Elem Type
}

func (Star) isType() {}

func (t Star) String() string { return fmt.Sprintf("Star(%s)", t.Elem) }

// Eps is the empty stream type. It carries no events.
type Eps struct{}

func (Eps) isType() {}

func (Eps) String() string { return "Eps" }

// TypeEqual reports structural equality of two types.
func TypeEqual(a, b Type) bool {
	switch x := a.(type) {
	case Singleton:
		y, ok := b.(Singleton)
		return ok && x.Elem == y.Elem
	case Concat:
		y, ok := b.(Concat)
		return ok && TypeEqual(x.Left, y.Left) && TypeEqual(x.Right, y.Right)
	case Sum:
		y, ok := b.(Sum)
		return ok && TypeEqual(x.Left, y.Left) && TypeEqual(x.Right, y.Right)
	case Star:
		y, ok := b.(Star)
		return ok && TypeEqual(x.Elem, y.Elem)
	case Eps:
		_, ok := b.(Eps)
		return ok
	default:
		return false
	}
}

// WellFormed rejects malformed nestings supplied by an external builder:
// nil components and invalid element kinds.
func WellFormed(t Type) bool {
	switch x := t.(type) {
	case Singleton:
		return x.Elem == ElemStr || x.Elem == ElemInt || x.Elem == ElemBool
	case Concat:
		return x.Left != nil && x.Right != nil && WellFormed(x.Left) && WellFormed(x.Right)
	case Sum:
		return x.Left != nil && x.Right != nil && WellFormed(x.Left) && WellFormed(x.Right)
	case Star:
		return x.Elem != nil && WellFormed(x.Elem)
	case Eps:
		return true
	default:
		return false
	}
}
