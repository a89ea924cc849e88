package sandbox

import (
	"context"
	"testing"

	"github.com/paicy-t/stratloop/internal/types"
)

func TestFakeRunnerCyclesResults(t *testing.T) {
	r := &FakeRunner{Results: []ExecutionResult{
		{ExecutionSuccess: true, ReportBlob: []byte(`{"sharpe":1}`)},
		{ExecutionSuccess: false, ErrorKind: types.ErrorKindTimeout},
	}}

	first, err := r.Execute(context.Background(), types.StrategyArtifact{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !first.ExecutionSuccess {
		t.Fatal("expected first result to succeed")
	}

	second, _ := r.Execute(context.Background(), types.StrategyArtifact{})
	if second.ExecutionSuccess {
		t.Fatal("expected second result to fail")
	}

	third, _ := r.Execute(context.Background(), types.StrategyArtifact{})
	if !third.ExecutionSuccess {
		t.Fatal("expected cycle back to first result")
	}
}

func TestFakeRunnerEmptyReportsUnavailable(t *testing.T) {
	r := &FakeRunner{}
	res, err := r.Execute(context.Background(), types.StrategyArtifact{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ErrorKind != types.ErrorKindSandboxUnavail {
		t.Fatalf("expected SANDBOX_UNAVAILABLE, got %v", res.ErrorKind)
	}
}

func TestCPUWindowAllAbove(t *testing.T) {
	w := &cpuWindow{cap: 3}
	w.add(96)
	w.add(97)
	if w.allAbove(95) {
		t.Fatal("expected window not yet full to not trigger")
	}
	w.add(98)
	if !w.allAbove(95) {
		t.Fatal("expected full window all above threshold to trigger")
	}
}
