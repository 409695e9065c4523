package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alpha-convert/Yoink/internal/ir"
	"github.com/alpha-convert/Yoink/internal/trace"
)

// ReplayReport is the JSON payload for a replay.
type ReplayReport struct {
	RunID    string          `json:"run_id"`
	Backend  string          `json:"recorded_backend"`
	Backends []BackendResult `json:"backends"`
	Matches  bool            `json:"matches"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Replay a recorded run",
		Long:  "Recompiles a recorded program, verifies its graph hash, re-executes the recorded inputs on both backends, and compares each outcome against the recording byte for byte.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			id, err := uuid.Parse(args[0])
			if err != nil {
				formatter.Error("BAD_RUN_ID", err.Error())
				return WrapExitError(ExitCommandError, "invalid run id", err)
			}
			store, err := trace.Open(storePath)
			if err != nil {
				formatter.Error("STORE_ERROR", err.Error())
				return WrapExitError(ExitCommandError, "failed to open store", err)
			}
			defer store.Close()

			run, results, err := store.Replay(cmd.Context(), id)
			if err != nil {
				formatter.Error("REPLAY_ERROR", err.Error())
				return WrapExitError(ExitFailure, "replay failed", err)
			}

			report := ReplayReport{RunID: run.ID.String(), Backend: run.Backend, Matches: true}
			for _, res := range results {
				br := BackendResult{Backend: res.Backend, ErrCode: res.ErrCode}
				if res.ErrCode == "" {
					br.Output = ir.FormatTokens(res.Output)
				}
				report.Backends = append(report.Backends, br)
				if !res.Matches {
					report.Matches = false
				}
			}

			if opts.Format == "json" {
				if err := formatter.Success(report); err != nil {
					return err
				}
			} else {
				var sb strings.Builder
				fmt.Fprintf(&sb, "run %s (seq %d, recorded on %s)\n", run.ID, run.Seq, run.Backend)
				for i, res := range results {
					status := "match"
					if !res.Matches {
						status = "DIVERGED"
					}
					outcome := res.ErrCode
					if outcome == "" {
						outcome = ir.FormatTokens(res.Output)
					}
					fmt.Fprintf(&sb, "  %s: %s %s", res.Backend, status, outcome)
					if i < len(results)-1 {
						sb.WriteByte('\n')
					}
				}
				if err := formatter.Success(sb.String()); err != nil {
					return err
				}
			}

			if !report.Matches {
				return NewExitError(ExitFailure, "replay diverged from recording")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&storePath, "store", "yoink.db", "path to the trace store")
	return cmd
}
