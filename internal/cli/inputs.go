package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alpha-convert/Yoink/internal/harness"
	"github.com/alpha-convert/Yoink/internal/ir"
)

// inputsFile is the on-disk shape for run inputs: one token list per
// declared input, in declaration order, using the scenario token
// shorthand.
type inputsFile struct {
	Inputs []harness.TokenList `yaml:"inputs"`
}

// LoadInputs reads a YAML inputs file into token sequences.
func LoadInputs(path string) ([][]ir.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs file: %w", err)
	}
	var f inputsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse inputs file: %w", err)
	}
	inputs := make([][]ir.Token, len(f.Inputs))
	for i, in := range f.Inputs {
		inputs[i] = in
	}
	return inputs, nil
}
