package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// Scenario is one conformance case: an inline CUE program, token
// sequences for its inputs, and the expected outcome. Every scenario
// runs on both backends; the differential assertion is always on.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Program is inline CUE source with a top-level program struct.
	Program string `yaml:"program"`

	// Inputs holds one token list per declared input, in declaration
	// order.
	Inputs []TokenList `yaml:"inputs"`

	// Expect specifies the expected outcome: either an output token
	// list or a runtime error code, not both.
	Expect ExpectClause `yaml:"expect"`
}

// ExpectClause is the expected outcome of a scenario.
type ExpectClause struct {
	Output TokenList `yaml:"output,omitempty"`
	Error  string    `yaml:"error,omitempty"`
}

// TokenList is a token sequence with a YAML shorthand: markers are the
// bare strings "more", "done", "left", "right"; values are one-key
// maps like {value: 3}. String payloads always use the map form, so
// they never collide with marker names.
type TokenList []ir.Token

// UnmarshalYAML implements yaml.Unmarshaler.
func (tl *TokenList) UnmarshalYAML(node *yaml.Node) error {
	var raw []any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	toks := make([]ir.Token, 0, len(raw))
	for i, item := range raw {
		tok, err := tokenFromYAML(item)
		if err != nil {
			return fmt.Errorf("token[%d]: %w", i, err)
		}
		toks = append(toks, tok)
	}
	*tl = toks
	return nil
}

func tokenFromYAML(item any) (ir.Token, error) {
	switch x := item.(type) {
	case string:
		switch x {
		case "more":
			return ir.More, nil
		case "done":
			return ir.Done, nil
		case "left":
			return ir.TagLeft, nil
		case "right":
			return ir.TagRight, nil
		default:
			return ir.Token{}, fmt.Errorf("unknown marker %q (string payloads use {value: %q})", x, x)
		}
	case map[string]any:
		raw, ok := x["value"]
		if !ok || len(x) != 1 {
			return ir.Token{}, fmt.Errorf("value tokens are one-key maps {value: ...}, got %v", x)
		}
		v, err := ir.ConvertValue(raw)
		if err != nil {
			return ir.Token{}, err
		}
		return ir.Val(v), nil
	default:
		return ir.Token{}, fmt.Errorf("tokens are marker strings or {value: ...} maps, got %T", item)
	}
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.Expect.Error != "" && s.Expect.Output != nil {
		return fmt.Errorf("expect: output and error are mutually exclusive")
	}
	if s.Expect.Error == "" && s.Expect.Output == nil {
		return fmt.Errorf("expect: either output or error is required")
	}
	return nil
}
