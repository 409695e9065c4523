package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// ParseType parses the surface type syntax: Int, Str, Bool, Eps,
// Cat(A,B), Sum(A,B), Star(T). Whitespace is insignificant.
func ParseType(s string) (ir.Type, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("type %q: trailing input at offset %d", s, p.pos)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("type %q: expected %q at offset %d", p.src, string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) parse() (ir.Type, error) {
	p.skipSpace()
	name := p.ident()
	switch strings.ToLower(name) {
	case "int":
		return ir.Singleton{Elem: ir.ElemInt}, nil
	case "str":
		return ir.Singleton{Elem: ir.ElemStr}, nil
	case "bool":
		return ir.Singleton{Elem: ir.ElemBool}, nil
	case "eps":
		return ir.Eps{}, nil
	case "cat", "sum":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		left, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		right, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		if strings.ToLower(name) == "cat" {
			return ir.Concat{Left: left, Right: right}, nil
		}
		return ir.Sum{Left: left, Right: right}, nil
	case "star":
		if err := p.expect('('); err != nil {
			return nil, err
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return ir.Star{Elem: elem}, nil
	case "":
		return nil, fmt.Errorf("type %q: expected a type name at offset %d", p.src, p.pos)
	default:
		return nil, fmt.Errorf("type %q: unknown type %q", p.src, name)
	}
}
