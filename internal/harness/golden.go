package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/alpha-convert/Yoink/internal/ir"
)

// RunWithGolden executes a scenario and compares its canonical trace
// snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) error {
	t.Helper()

	res, err := Run(sc)
	if err != nil {
		return err
	}
	snap, err := snapshot(res)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, snap)
	return nil
}

// snapshot renders a result as canonical JSON: fixed key order, token
// arrays in their canonical encoding, so golden comparison is byte
// equality.
func snapshot(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"error":%q,"inputs":[`, res.ErrCode)
	for i, in := range res.Scenario.Inputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := ir.CanonicalTokens(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		buf.Write(data)
	}
	fmt.Fprintf(&buf, `],"name":%q,"output":`, res.Scenario.Name)
	out, err := ir.CanonicalTokens(res.Output)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	buf.Write(out)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
