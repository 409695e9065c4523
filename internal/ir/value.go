package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a sealed interface over Singleton payloads.
// Only StrVal, IntVal, and BoolVal implement it. NO floats - float
// payloads are forbidden (they break deterministic trace comparison).
type Value interface {
	value() // Sealed - only these types implement it
}

// StrVal is a string payload.
type StrVal string

func (StrVal) value() {}

// IntVal is an integer payload. Always int64, never float64.
type IntVal int64

func (IntVal) value() {}

// BoolVal is a boolean payload.
type BoolVal bool

func (BoolVal) value() {}

// Str creates a StrVal.
func Str(s string) StrVal { return StrVal(s) }

// Int creates an IntVal.
func Int(n int64) IntVal { return IntVal(n) }

// Bool creates a BoolVal.
func Bool(b bool) BoolVal { return BoolVal(b) }

// KindOf returns the element kind a value inhabits.
func KindOf(v Value) ElemKind {
	switch v.(type) {
	case StrVal:
		return ElemStr
	case IntVal:
		return ElemInt
	case BoolVal:
		return ElemBool
	default:
		return ElemInvalid
	}
}

// ValueEqual reports equality of two payloads. Values of different kinds
// are never equal.
func ValueEqual(a, b Value) bool {
	switch x := a.(type) {
	case StrVal:
		y, ok := b.(StrVal)
		return ok && x == y
	case IntVal:
		y, ok := b.(IntVal)
		return ok && x == y
	case BoolVal:
		y, ok := b.(BoolVal)
		return ok && x == y
	default:
		return false
	}
}

// FormatValue renders a payload for error messages and text output.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case StrVal:
		return fmt.Sprintf("%q", string(x))
	case IntVal:
		return fmt.Sprintf("%d", int64(x))
	case BoolVal:
		return fmt.Sprintf("%t", bool(x))
	default:
		return "<invalid>"
	}
}

// MarshalValue marshals a payload to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch x := v.(type) {
	case StrVal:
		return json.Marshal(string(x))
	case IntVal:
		return json.Marshal(int64(x))
	case BoolVal:
		return json.Marshal(bool(x))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes a JSON scalar into a Value with strict
// validation: floats and null are rejected, only string/int/bool allowed.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ConvertValue(raw)
}

// ConvertValue converts a decoded Go scalar (string, bool, int variants,
// json.Number) into a Value. Floats and null are rejected.
func ConvertValue(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return StrVal(x), nil
	case bool:
		return BoolVal(x), nil
	case int:
		return IntVal(int64(x)), nil
	case int64:
		return IntVal(x), nil
	case json.Number:
		s := string(x)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("float payloads are forbidden: %s", s)
		}
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IntVal(n), nil
	case nil:
		return nil, fmt.Errorf("null payload is forbidden: only string, int, bool allowed")
	case float64, float32:
		return nil, fmt.Errorf("float payloads are forbidden: %v", x)
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", raw)
	}
}
