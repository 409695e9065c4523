package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alpha-convert/Yoink/internal/checker"
	"github.com/alpha-convert/Yoink/internal/compiler"
	"github.com/alpha-convert/Yoink/internal/fusion"
	"github.com/alpha-convert/Yoink/internal/interp"
	"github.com/alpha-convert/Yoink/internal/ir"
)

// BackendInterp and BackendFused name the two evaluation backends in
// run records.
const (
	BackendInterp = "interp"
	BackendFused  = "fused"
)

// ReplayResult reports one backend's replay outcome against the
// recording.
type ReplayResult struct {
	Backend string
	Output  []ir.Token
	ErrCode string
	Matches bool
}

// Replay re-executes a recorded run's inputs through both backends and
// verifies each reproduces the recorded outcome byte for byte. A
// divergence is reported in the results, not as an error; the returned
// error covers runs that can no longer be replayed at all (missing row,
// program no longer compiles, graph hash mismatch).
func (s *Store) Replay(ctx context.Context, id uuid.UUID) (Run, []ReplayResult, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("replay %s: %w", id, err)
	}
	slog.Debug("replaying run", "id", id, "seq", run.Seq, "backend", run.Backend)

	g, _, err := compiler.CompileSource(run.Program)
	if err != nil {
		return run, nil, fmt.Errorf("replay %s: recorded program does not compile: %w", id, err)
	}
	hash, err := ir.GraphHash(g)
	if err != nil {
		return run, nil, fmt.Errorf("replay %s: %w", id, err)
	}
	if hash != run.GraphHash {
		return run, nil, fmt.Errorf("replay %s: graph hash %s does not match recorded %s", id, hash, run.GraphHash)
	}
	tg, err := checker.Check(g)
	if err != nil {
		return run, nil, fmt.Errorf("replay %s: recorded program no longer typechecks: %w", id, err)
	}

	wantOutput, err := ir.CanonicalTokens(run.Output)
	if err != nil {
		return run, nil, fmt.Errorf("replay %s: %w", id, err)
	}

	var results []ReplayResult
	for _, backend := range []string{BackendInterp, BackendFused} {
		out, code, err := Execute(tg, backend, run.Inputs)
		if err != nil {
			return run, nil, fmt.Errorf("replay %s on %s: %w", id, backend, err)
		}
		slog.Debug("replay executed", "id", id, "backend", backend, "err_code", code)
		res := ReplayResult{Backend: backend, Output: out, ErrCode: code}
		if code == run.ErrCode {
			if code != "" {
				res.Matches = true
			} else {
				gotOutput, err := ir.CanonicalTokens(out)
				if err != nil {
					return run, nil, fmt.Errorf("replay %s on %s: %w", id, backend, err)
				}
				res.Matches = bytes.Equal(wantOutput, gotOutput)
			}
		}
		results = append(results, res)
	}
	return run, results, nil
}

// Execute runs a checked graph on the named backend. Runtime failures
// come back as their error code; any other failure is returned as an
// error.
func Execute(tg *ir.TypedGraph, backend string, inputs [][]ir.Token) ([]ir.Token, string, error) {
	var out []ir.Token
	var err error
	switch backend {
	case BackendInterp:
		out, err = interp.Run(tg, inputs)
	case BackendFused:
		var p *fusion.Program
		p, err = fusion.Compile(tg)
		if err != nil {
			return nil, "", err
		}
		out, err = p.Run(inputs)
	default:
		return nil, "", fmt.Errorf("unknown backend %q", backend)
	}
	if err != nil {
		var rerr *ir.RuntimeError
		if errors.As(err, &rerr) {
			return nil, string(rerr.Code), nil
		}
		return nil, "", err
	}
	return out, "", nil
}
