package sandbox

import (
	"context"

	"github.com/paicy-t/stratloop/internal/types"
)

// FakeRunner returns a fixed sequence of results, cycling if the stream
// runs past the end. Used by tests that exercise the Iteration Executor
// without a Docker daemon.
type FakeRunner struct {
	Results []ExecutionResult
	next    int
}

// Execute returns the next configured result.
func (r *FakeRunner) Execute(ctx context.Context, artifact types.StrategyArtifact) (ExecutionResult, error) {
	if len(r.Results) == 0 {
		return ExecutionResult{ExecutionSuccess: false, ErrorKind: types.ErrorKindSandboxUnavail}, nil
	}
	res := r.Results[r.next%len(r.Results)]
	r.next++
	return res, nil
}
