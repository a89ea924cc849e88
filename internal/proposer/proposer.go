// Package proposer defines the single external interface stratloop calls
// to obtain a new strategy artifact, plus a deterministic fake used by
// tests and an OpenAI-backed implementation used in production.
package proposer

import (
	"context"

	"github.com/paicy-t/stratloop/internal/types"
)

// Proposer generates one new strategy artifact given composed guidance
// text. Implementations must respect ctx's deadline (the Iteration
// Executor bounds every proposer call at 120 seconds).
type Proposer interface {
	Propose(ctx context.Context, guidance string) (types.StrategyArtifact, error)
}
