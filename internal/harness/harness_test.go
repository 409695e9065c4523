package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-convert/Yoink/internal/ir"
)

func TestScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := LoadScenario(path)
			require.NoError(t, err)
			_, err = Run(sc)
			assert.NoError(t, err)
		})
	}
}

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"identity", "annotate", "swap"} {
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, sc))
		})
	}
}

func TestTokenListYAML(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: tags
program: "program: {}"
inputs:
  - ["left", {value: true}, "right", {value: -2}, {value: "more"}]
expect:
  error: BAD_TOKEN
`))
	require.NoError(t, err)
	require.Len(t, sc.Inputs, 1)
	want := []ir.Token{
		ir.TagLeft, ir.Val(ir.Bool(true)), ir.TagRight, ir.Val(ir.Int(-2)), ir.Val(ir.Str("more")),
	}
	assert.True(t, ir.TokensEqual(want, sc.Inputs[0]),
		"got %s", ir.FormatTokens(sc.Inputs[0]))
}

func TestParseScenarioRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown_field", "name: x\nprogram: p\nexpectation: {}\nexpect: {error: E}"},
		{"no_name", "program: p\nexpect: {error: E}"},
		{"no_program", "name: x\nexpect: {error: E}"},
		{"no_expect", "name: x\nprogram: p"},
		{"both_outcomes", "name: x\nprogram: p\nexpect: {output: [\"done\"], error: E}"},
		{"bad_marker", "name: x\nprogram: p\ninputs: [[\"maybe\"]]\nexpect: {error: E}"},
		{"float_value", "name: x\nprogram: p\ninputs: [[{value: 1.5}]]\nexpect: {error: E}"},
		{"two_key_value", "name: x\nprogram: p\ninputs: [[{value: 1, extra: 2}]]\nexpect: {error: E}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestRunRejectsWrongExpectation(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong
program: |
  program: {
    inputs: [{name: "xs", type: "Star(Int)"}]
    output: {op: "var", name: "xs"}
  }
inputs:
  - ["done"]
expect:
  output: ["more", {value: 1}, "done"]
`))
	require.NoError(t, err)
	_, err = Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected")
}

func TestRunRejectsInputArityMismatch(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: arity
program: |
  program: {
    inputs: [{name: "xs", type: "Star(Int)"}]
    output: {op: "var", name: "xs"}
  }
inputs: []
expect:
  output: ["done"]
`))
	require.NoError(t, err)
	_, err = Run(sc)
	assert.Error(t, err)
}
