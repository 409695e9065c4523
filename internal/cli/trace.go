package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alpha-convert/Yoink/internal/ir"
	"github.com/alpha-convert/Yoink/internal/trace"
)

// RunSummary is one run in a trace listing.
type RunSummary struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	CreatedAt string `json:"created_at"`
	GraphHash string `json:"graph_hash"`
	Backend   string `json:"backend"`
	ErrCode   string `json:"err_code,omitempty"`
}

// NewTraceCommand creates the trace command group.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the run store",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "yoink.db", "path to the trace store")

	cmd.AddCommand(newTraceListCommand(opts, &storePath))
	cmd.AddCommand(newTraceShowCommand(opts, &storePath))
	return cmd
}

func newTraceListCommand(opts *RootOptions, storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			store, err := trace.Open(*storePath)
			if err != nil {
				formatter.Error("STORE_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to open store", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context())
			if err != nil {
				formatter.Error("STORE_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to list runs", err)
			}

			summaries := make([]RunSummary, 0, len(runs))
			for _, r := range runs {
				summaries = append(summaries, RunSummary{
					ID:        r.ID.String(),
					Seq:       r.Seq,
					CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
					GraphHash: r.GraphHash,
					Backend:   r.Backend,
					ErrCode:   r.ErrCode,
				})
			}

			if opts.Format == "json" {
				return formatter.Success(summaries)
			}
			if len(summaries) == 0 {
				return formatter.Success("no recorded runs")
			}
			var sb strings.Builder
			for i, s := range summaries {
				outcome := "ok"
				if s.ErrCode != "" {
					outcome = s.ErrCode
				}
				fmt.Fprintf(&sb, "%4d  %s  %s  %-6s  %s", s.Seq, s.ID, s.CreatedAt, s.Backend, outcome)
				if i < len(summaries)-1 {
					sb.WriteByte('\n')
				}
			}
			return formatter.Success(sb.String())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newTraceShowCommand(opts *RootOptions, storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			id, err := uuid.Parse(args[0])
			if err != nil {
				formatter.Error("BAD_RUN_ID", err.Error())
				return WrapExitError(ExitCommandError, "invalid run id", err)
			}
			store, err := trace.Open(*storePath)
			if err != nil {
				formatter.Error("STORE_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to open store", err)
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), id)
			if err != nil {
				formatter.Error("NOT_FOUND", err.Error())
				return WrapExitError(ExitFailure, "run not found", err)
			}

			if opts.Format == "json" {
				inputs := make([]string, len(run.Inputs))
				for i, in := range run.Inputs {
					inputs[i] = ir.FormatTokens(in)
				}
				return formatter.Success(map[string]any{
					"id":         run.ID.String(),
					"seq":        run.Seq,
					"created_at": run.CreatedAt.UTC().Format(time.RFC3339Nano),
					"graph_hash": run.GraphHash,
					"backend":    run.Backend,
					"program":    run.Program,
					"inputs":     inputs,
					"output":     ir.FormatTokens(run.Output),
					"err_code":   run.ErrCode,
				})
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "run %s (seq %d)\n", run.ID, run.Seq)
			fmt.Fprintf(&sb, "  recorded: %s on %s\n", run.CreatedAt.UTC().Format(time.RFC3339), run.Backend)
			fmt.Fprintf(&sb, "  graph hash: %s\n", run.GraphHash)
			for i, in := range run.Inputs {
				fmt.Fprintf(&sb, "  input %d: %s\n", i, ir.FormatTokens(in))
			}
			if run.ErrCode != "" {
				fmt.Fprintf(&sb, "  error: %s\n", run.ErrCode)
			} else {
				fmt.Fprintf(&sb, "  output: %s\n", ir.FormatTokens(run.Output))
			}
			fmt.Fprintf(&sb, "  program:\n%s", indent(run.Program, "    "))
			return formatter.Success(strings.TrimRight(sb.String(), "\n"))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
