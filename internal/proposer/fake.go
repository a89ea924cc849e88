package proposer

import (
	"context"
	"time"

	"github.com/paicy-t/stratloop/internal/fingerprint"
	"github.com/paicy-t/stratloop/internal/types"
)

// FakeProposer returns artifacts from a fixed, caller-supplied list in
// order. Used by tests.
type FakeProposer struct {
	Sources []string
	next    int
}

// Propose returns the next configured source, wrapping around if the
// stream runs past the end of Sources.
func (p *FakeProposer) Propose(ctx context.Context, guidance string) (types.StrategyArtifact, error) {
	if len(p.Sources) == 0 {
		return types.StrategyArtifact{}, ErrEmptyResponse
	}
	src := p.Sources[p.next%len(p.Sources)]
	p.next++

	return types.StrategyArtifact{
		Fingerprint: fingerprint.Of(src),
		Source:      src,
		CreatedAt:   time.Now(),
	}, nil
}
