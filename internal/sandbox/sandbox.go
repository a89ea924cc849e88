// Package sandbox executes a strategy artifact inside an isolated,
// resource-capped environment and reports the raw result back to the
// Metrics Extractor. No code path in this package ever runs an artifact
// outside the sandbox.
package sandbox

import (
	"context"
	"time"

	"github.com/paicy-t/stratloop/internal/types"
)

// ExecutionResult is what a sandbox run hands back to the caller: whether
// the process completed, its raw report blob (if any), and the wall time
// spent.
type ExecutionResult struct {
	ExecutionSuccess bool
	ReportBlob       []byte
	Stdout           string
	Stderr           string
	Duration         time.Duration
	ErrorKind        types.ErrorKind
	ErrorDetail      string
}

// Runner executes one validated strategy artifact and returns its result.
// Implementations must never return an error for a strategy that merely
// failed to execute correctly — that is reported through
// ExecutionResult.ExecutionSuccess/ErrorKind; Runner's error return is
// reserved for sandbox infrastructure failures (SANDBOX_UNAVAILABLE).
type Runner interface {
	Execute(ctx context.Context, artifact types.StrategyArtifact) (ExecutionResult, error)
}
