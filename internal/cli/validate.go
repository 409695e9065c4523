package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alpha-convert/Yoink/internal/checker"
	"github.com/alpha-convert/Yoink/internal/compiler"
	"github.com/alpha-convert/Yoink/internal/ir"
)

// ValidateReport is the JSON payload for a successful validate.
type ValidateReport struct {
	GraphHash string   `json:"graph_hash"`
	Inputs    []string `json:"inputs"`
	Output    string   `json:"output"`
	Nodes     int      `json:"nodes"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program.cue>",
		Short: "Compile and typecheck a program",
		Long:  "Compiles a CUE program to its dataflow graph and runs the usage checker. Reports the graph hash and the inferred stream types.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			src, err := os.ReadFile(args[0])
			if err != nil {
				formatter.Error("READ_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to read program", err)
			}

			g, _, err := compiler.CompileSource(string(src))
			if err != nil {
				formatter.Error("COMPILE_ERROR", err.Error())
				return WrapExitError(ExitFailure, "program does not compile", err)
			}
			hash, err := ir.GraphHash(g)
			if err != nil {
				formatter.Error("HASH_ERROR", err.Error())
				return WrapExitError(ExitFailure, "failed to hash graph", err)
			}
			tg, err := checker.Check(g)
			if err != nil {
				code := "TYPE_ERROR"
				if tc := ir.TypeCode(err); tc != "" {
					code = string(tc)
				}
				formatter.Error(code, err.Error())
				return WrapExitError(ExitFailure, "program does not typecheck", err)
			}

			report := ValidateReport{
				GraphHash: hash,
				Output:    tg.OutputType().String(),
				Nodes:     len(g.Nodes),
			}
			for _, t := range g.InputTypes() {
				report.Inputs = append(report.Inputs, t.String())
			}

			if opts.Format == "json" {
				return formatter.Success(report)
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "ok: %s\n", args[0])
			fmt.Fprintf(&sb, "  graph hash: %s\n", report.GraphHash)
			for i, t := range report.Inputs {
				fmt.Fprintf(&sb, "  input %d: %s\n", i, t)
			}
			fmt.Fprintf(&sb, "  output: %s", report.Output)
			return formatter.Success(sb.String())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	return cmd
}
