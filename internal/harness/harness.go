// Package harness runs conformance scenarios: small YAML cases that
// compile an inline CUE program, execute it on both backends, and
// assert the two agree with each other and with the expected outcome.
package harness

import (
	"fmt"

	"github.com/alpha-convert/Yoink/internal/checker"
	"github.com/alpha-convert/Yoink/internal/compiler"
	"github.com/alpha-convert/Yoink/internal/ir"
	"github.com/alpha-convert/Yoink/internal/trace"
)

// Result holds both backends' outcomes for a scenario. By the time Run
// returns it without error, the backends agree, so Output and ErrCode
// describe both.
type Result struct {
	Scenario *Scenario
	Output   []ir.Token
	ErrCode  string
}

// Run executes a scenario on both backends. It fails when the program
// does not compile or typecheck, when the backends diverge, or when
// the agreed outcome differs from the scenario's expectation.
func Run(sc *Scenario) (*Result, error) {
	g, inTypes, err := compiler.CompileSource(sc.Program)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if len(sc.Inputs) != len(inTypes) {
		return nil, fmt.Errorf("scenario %s: %d inputs for %d declared", sc.Name, len(sc.Inputs), len(inTypes))
	}
	tg, err := checker.Check(g)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	inputs := make([][]ir.Token, len(sc.Inputs))
	for i, in := range sc.Inputs {
		inputs[i] = in
	}

	iOut, iCode, err := trace.Execute(tg, trace.BackendInterp, inputs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: interp: %w", sc.Name, err)
	}
	fOut, fCode, err := trace.Execute(tg, trace.BackendFused, inputs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: fused: %w", sc.Name, err)
	}

	if iCode != fCode {
		return nil, fmt.Errorf("scenario %s: backends diverge: interp %q, fused %q", sc.Name, iCode, fCode)
	}
	if iCode == "" && !ir.TokensEqual(iOut, fOut) {
		return nil, fmt.Errorf("scenario %s: backends diverge: interp %s, fused %s",
			sc.Name, ir.FormatTokens(iOut), ir.FormatTokens(fOut))
	}

	res := &Result{Scenario: sc, Output: iOut, ErrCode: iCode}
	if err := checkExpectation(sc, res); err != nil {
		return nil, err
	}
	return res, nil
}

func checkExpectation(sc *Scenario, res *Result) error {
	if sc.Expect.Error != "" {
		if res.ErrCode != sc.Expect.Error {
			return fmt.Errorf("scenario %s: expected error %s, got %q %s",
				sc.Name, sc.Expect.Error, res.ErrCode, ir.FormatTokens(res.Output))
		}
		return nil
	}
	if res.ErrCode != "" {
		return fmt.Errorf("scenario %s: expected output, got error %s", sc.Name, res.ErrCode)
	}
	if !ir.TokensEqual(res.Output, sc.Expect.Output) {
		return fmt.Errorf("scenario %s: expected %s, got %s",
			sc.Name, ir.FormatTokens(sc.Expect.Output), ir.FormatTokens(res.Output))
	}
	return nil
}
