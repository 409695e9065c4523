package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alpha-convert/Yoink/internal/harness"
)

// TestReport is the JSON payload for a test invocation.
type TestReport struct {
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Results []ScenarioResult `json:"results"`
}

// ScenarioResult is one scenario's outcome.
type ScenarioResult struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long:  "Loads YAML scenarios and runs each program on both backends, checking that the backends agree and that the outcome matches the expectation.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			report := TestReport{Results: []ScenarioResult{}}
			for _, path := range args {
				res := ScenarioResult{File: path, Passed: true}
				sc, err := harness.LoadScenario(path)
				if err != nil {
					res.Passed = false
					res.Error = err.Error()
				} else {
					res.Name = sc.Name
					if _, err := harness.Run(sc); err != nil {
						res.Passed = false
						res.Error = err.Error()
					}
				}
				if res.Passed {
					report.Passed++
				} else {
					report.Failed++
				}
				report.Results = append(report.Results, res)
			}

			if opts.Format == "json" {
				if err := formatter.Success(report); err != nil {
					return err
				}
			} else {
				var sb strings.Builder
				for _, res := range report.Results {
					if res.Passed {
						fmt.Fprintf(&sb, "PASS %s (%s)\n", res.Name, res.File)
					} else {
						fmt.Fprintf(&sb, "FAIL %s: %s\n", res.File, res.Error)
					}
				}
				fmt.Fprintf(&sb, "%d passed, %d failed", report.Passed, report.Failed)
				if err := formatter.Success(sb.String()); err != nil {
					return err
				}
			}

			if report.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d scenarios failed", report.Failed))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	return cmd
}
