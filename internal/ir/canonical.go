package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Canonical JSON encodings of types, tokens, and graphs, used for
// content-addressed identity and for byte-comparable trace output.
// The encoding follows RFC 8785: NFC-normalized strings, no HTML
// escaping, no floats, and fixed key order (all keys here are ASCII
// literals emitted in sorted order, so UTF-16 key sorting is trivial).

// CanonicalType encodes a type.
func CanonicalType(t Type) []byte {
	var buf bytes.Buffer
	writeCanonicalType(&buf, t)
	return buf.Bytes()
}

func writeCanonicalType(buf *bytes.Buffer, t Type) {
	switch x := t.(type) {
	case Singleton:
		fmt.Fprintf(buf, `{"elem":%q,"kind":"singleton"}`, x.Elem.String())
	case Concat:
		buf.WriteString(`{"kind":"cat","left":`)
		writeCanonicalType(buf, x.Left)
		buf.WriteString(`,"right":`)
		writeCanonicalType(buf, x.Right)
		buf.WriteByte('}')
	case Sum:
		buf.WriteString(`{"kind":"sum","left":`)
		writeCanonicalType(buf, x.Left)
		buf.WriteString(`,"right":`)
		writeCanonicalType(buf, x.Right)
		buf.WriteByte('}')
	case Star:
		buf.WriteString(`{"elem":`)
		writeCanonicalType(buf, x.Elem)
		buf.WriteString(`,"kind":"star"}`)
	case Eps:
		buf.WriteString(`{"kind":"eps"}`)
	}
}

// CanonicalTokens encodes a token sequence. Two token sequences are
// equal exactly when their canonical encodings are byte-equal, so the
// encoding doubles as the comparison key for recorded runs.
func CanonicalTokens(toks []Token) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, tok := range toks {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalToken(&buf, tok); err != nil {
			return nil, fmt.Errorf("token[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeCanonicalToken(buf *bytes.Buffer, tok Token) error {
	if tok.Kind != KindValue {
		fmt.Fprintf(buf, `{"kind":%q}`, tok.Kind.String())
		return nil
	}
	buf.WriteString(`{"kind":"value","payload":`)
	if err := writeCanonicalValue(buf, tok.Payload); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalValue(buf *bytes.Buffer, v Value) error {
	switch x := v.(type) {
	case StrVal:
		s, err := canonicalString(string(x))
		if err != nil {
			return err
		}
		buf.Write(s)
		return nil
	case IntVal:
		fmt.Fprintf(buf, "%d", int64(x))
		return nil
	case BoolVal:
		fmt.Fprintf(buf, "%t", bool(x))
		return nil
	default:
		return fmt.Errorf("unsupported payload type: %T", v)
	}
}

// DecodeTokens parses a token sequence from its canonical JSON form.
// It accepts exactly what CanonicalTokens emits; float and null
// payloads are rejected.
func DecodeTokens(data []byte) ([]Token, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	toks := make([]Token, 0, len(raw))
	for i, r := range raw {
		switch r.Kind {
		case "value":
			if len(r.Payload) == 0 {
				return nil, fmt.Errorf("token[%d]: value token without payload", i)
			}
			v, err := UnmarshalValue(r.Payload)
			if err != nil {
				return nil, fmt.Errorf("token[%d]: %w", i, err)
			}
			toks = append(toks, Val(v))
		case "left":
			toks = append(toks, TagLeft)
		case "right":
			toks = append(toks, TagRight)
		case "more":
			toks = append(toks, More)
		case "done":
			toks = append(toks, Done)
		default:
			return nil, fmt.Errorf("token[%d]: unknown kind %q", i, r.Kind)
		}
	}
	return toks, nil
}

// CanonicalGraph encodes a graph. Node IDs are dense creation-order
// indices, so the encoding is deterministic for a given build sequence.
func CanonicalGraph(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"loops":[`)
	for i, l := range g.Loops {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `{"nil_exit":%d,"scrutinee":%d,"starcase":%d}`,
			l.NilExit, l.Scrutinee, l.StarCase)
	}
	buf.WriteString(`],"nodes":[`)
	for i := range g.Nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalNode(&buf, &g.Nodes[i]); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}
	fmt.Fprintf(&buf, `],"output":%d}`, g.Output)
	return buf.Bytes(), nil
}

func writeCanonicalNode(buf *bytes.Buffer, n *Node) error {
	buf.WriteByte('{')
	if n.Ann != nil {
		buf.WriteString(`"ann":`)
		writeCanonicalType(buf, n.Ann)
		buf.WriteByte(',')
	}
	buf.WriteString(`"args":[`)
	for i, a := range n.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, "%d", a)
	}
	buf.WriteString(`],"branches":[`)
	for i, b := range n.Branches {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"bound":[`)
		for j, id := range b.Bound {
			if j > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, "%d", id)
		}
		fmt.Fprintf(buf, `],"exit":%d,"hi":%d,"lo":%d}`, b.Exit, b.Hi, b.Lo)
	}
	fmt.Fprintf(buf, `],"kind":%q`, n.Kind.String())
	if n.Kind == OpStarCase || n.Kind == OpRec {
		fmt.Fprintf(buf, `,"loop":%d`, n.Loop)
	}
	if n.Kind == OpVar {
		s, err := canonicalString(n.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, `,"name":%s`, s)
	}
	if n.Kind == OpBound {
		fmt.Fprintf(buf, `,"origin":%d,"role":%q`, n.Origin, n.Role.String())
	}
	if n.Kind == OpConst {
		buf.WriteString(`,"val":`)
		if err := writeCanonicalValue(buf, n.Val); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// canonicalString encodes a string per RFC 8785: NFC-normalized, no
// HTML escaping, and U+2028/U+2029 left as literal characters.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// json.Encoder escapes U+2028/U+2029 for JavaScript embedding;
	// RFC 8785 forbids that. Unescape them, respecting backslash
	// parity so a literal backslash followed by "u2028" text stays
	// escaped.
	return unescapeLineSeparators(result), nil
}

func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	var out []byte
	slashes := 0
	for i := 0; i < len(data); {
		if data[i] == '\\' && i+5 < len(data) && slashes%2 == 0 &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if out == nil {
				out = append(out, data[:i]...)
			}
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 6
			continue
		}
		if data[i] == '\\' {
			slashes++
		} else {
			slashes = 0
		}
		if out != nil {
			out = append(out, data[i])
		}
		i++
	}
	if out == nil {
		return data
	}
	return out
}
