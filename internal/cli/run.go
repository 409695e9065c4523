package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alpha-convert/Yoink/internal/checker"
	"github.com/alpha-convert/Yoink/internal/compiler"
	"github.com/alpha-convert/Yoink/internal/ir"
	"github.com/alpha-convert/Yoink/internal/trace"
)

// RunReport is the JSON payload for a run.
type RunReport struct {
	GraphHash string          `json:"graph_hash"`
	Backends  []BackendResult `json:"backends"`
	RunIDs    []string        `json:"run_ids,omitempty"`
}

// BackendResult is one backend's outcome within a RunReport.
type BackendResult struct {
	Backend string `json:"backend"`
	Output  string `json:"output,omitempty"`
	ErrCode string `json:"err_code,omitempty"`

	tokens []ir.Token
}

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var backend string
	var record bool
	var storePath string

	cmd := &cobra.Command{
		Use:   "run <program.cue> <inputs.yaml>",
		Short: "Run a program on token inputs",
		Long:  "Compiles and typechecks a program, then executes it on the selected backend. With --backend both, the outputs are compared and any divergence is an error.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			backends, err := selectBackends(backend)
			if err != nil {
				formatter.Error("BAD_BACKEND", err.Error())
				return WrapExitError(ExitCommandError, "invalid backend", err)
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				formatter.Error("READ_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to read program", err)
			}
			inputs, err := LoadInputs(args[1])
			if err != nil {
				formatter.Error("READ_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to read inputs", err)
			}

			g, _, err := compiler.CompileSource(string(src))
			if err != nil {
				formatter.Error("COMPILE_ERROR", err.Error())
				return WrapExitError(ExitFailure, "program does not compile", err)
			}
			if got, want := len(inputs), len(g.Inputs); got != want {
				msg := fmt.Sprintf("%d input streams for %d declared inputs", got, want)
				formatter.Error("ARITY_MISMATCH", msg)
				return NewExitError(ExitFailure, msg)
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

			report := RunReport{GraphHash: hash}
			for _, b := range backends {
				formatter.VerboseLog("executing on %s", b)
				out, errCode, err := trace.Execute(tg, b, inputs)
				if err != nil {
					formatter.Error("EXEC_ERROR", err.Error())
					return WrapExitError(ExitFailure, "execution failed", err)
				}
				res := BackendResult{Backend: b, ErrCode: errCode, tokens: out}
				if errCode == "" {
					res.Output = ir.FormatTokens(out)
				}
				report.Backends = append(report.Backends, res)
			}

			if len(report.Backends) == 2 {
				a, b := report.Backends[0], report.Backends[1]
				if a.ErrCode != b.ErrCode || a.Output != b.Output {
					msg := fmt.Sprintf("backends diverge: interp %s%s, fused %s%s",
						a.Output, a.ErrCode, b.Output, b.ErrCode)
					formatter.Error("DIVERGENCE", msg)
					return NewExitError(ExitFailure, msg)
				}
			}

			if record {
				ids, err := recordRuns(cmd, storePath, string(src), hash, inputs, report.Backends)
				if err != nil {
					formatter.Error("STORE_ERROR", err.Error())
					return WrapExitError(ExitCommandError, "failed to record run", err)
				}
				report.RunIDs = ids
			}

			if opts.Format == "json" {
				return formatter.Success(report)
			}
			var sb strings.Builder
			for _, b := range report.Backends {
				if b.ErrCode != "" {
					fmt.Fprintf(&sb, "%s: error %s\n", b.Backend, b.ErrCode)
				} else {
					fmt.Fprintf(&sb, "%s: %s\n", b.Backend, b.Output)
				}
			}
			for _, id := range report.RunIDs {
				fmt.Fprintf(&sb, "recorded: %s\n", id)
			}
			return formatter.Success(strings.TrimRight(sb.String(), "\n"))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&backend, "backend", "both", "backend to run (interp|fused|both)")
	cmd.Flags().BoolVar(&record, "record", false, "record the run in the trace store")
	cmd.Flags().StringVar(&storePath, "store", "yoink.db", "path to the trace store")
	return cmd
}

func selectBackends(name string) ([]string, error) {
	switch name {
	case trace.BackendInterp:
		return []string{trace.BackendInterp}, nil
	case trace.BackendFused:
		return []string{trace.BackendFused}, nil
	case "both":
		return []string{trace.BackendInterp, trace.BackendFused}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q: must be interp, fused, or both", name)
	}
}

func recordRuns(cmd *cobra.Command, storePath, program, hash string, inputs [][]ir.Token, results []BackendResult) ([]string, error) {
	store, err := trace.Open(storePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ids := make([]string, 0, len(results))
	for _, res := range results {
		id, err := store.Record(cmd.Context(), trace.Recording{
			GraphHash: hash,
			Backend:   res.Backend,
			Program:   program,
			Inputs:    inputs,
			Output:    res.tokens,
			ErrCode:   res.ErrCode,
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}
