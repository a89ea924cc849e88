package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paicy-t/stratloop/internal/alert"
	"github.com/paicy-t/stratloop/internal/champion"
	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/diversity"
	"github.com/paicy-t/stratloop/internal/feedback"
	"github.com/paicy-t/stratloop/internal/history"
	"github.com/paicy-t/stratloop/internal/manifest"
	"github.com/paicy-t/stratloop/internal/proposer"
	"github.com/paicy-t/stratloop/internal/sandbox"
	"github.com/paicy-t/stratloop/internal/types"
)

func newTestStream(t *testing.T, p proposer.Proposer, r sandbox.Runner) (*Stream, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()

	m := manifest.FromFields([]manifest.Field{{Name: "close"}, {Name: "open"}})

	historyPath := filepath.Join(dir, "history.jsonl")
	h, err := history.Open(historyPath, nil)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	c, err := champion.Open(filepath.Join(dir, "champion.json"), cfg.Champion, nil)
	if err != nil {
		t.Fatalf("champion.Open: %v", err)
	}

	ft, err := feedback.OpenFailureTracker(filepath.Join(dir, "failures.json"))
	if err != nil {
		t.Fatalf("OpenFailureTracker: %v", err)
	}

	div := diversity.NewMonitor(cfg.Diversity)
	am := alert.NewManager(cfg.Alerts, nil)

	return NewStream(p, r, m, h, c, ft, div, am, cfg, nil), historyPath
}

func TestRunProfitableIterationPromotesChampion(t *testing.T) {
	p := &proposer.FakeProposer{Sources: []string{
		"def strategy():\n    price = get(\"close\")\n    simulate(price)\n",
	}}
	r := &sandbox.FakeRunner{Results: []sandbox.ExecutionResult{
		{ExecutionSuccess: true, ReportBlob: []byte(`{"sharpe": 1.5, "total_return": 0.2, "max_drawdown": -0.1}`)},
	}}
	s, historyPath := newTestStream(t, p, r)

	rec, err := s.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Outcome != types.OutcomeProfitable {
		t.Fatalf("expected PROFITABLE, got %v (detail=%s)", rec.Outcome, rec.ErrorDetail)
	}
	if s.Champion.Current() == nil {
		t.Fatal("expected champion to be set after profitable iteration")
	}
	if !rec.ChampionUpdate {
		t.Fatal("expected record to report champion_update = true")
	}
	if rec.ArtifactText == "" {
		t.Fatal("expected artifact_text to be populated on the record")
	}
	if !rec.ValidationOK {
		t.Fatal("expected validation_ok = true for a clean artifact")
	}

	tail, err := history.Tail(historyPath, 1, nil)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(tail) != 1 || !tail[0].ChampionUpdate {
		t.Fatalf("expected the persisted history record to carry champion_update = true, got %+v", tail)
	}
}

func TestRunValidationFailureExhaustsRetryBudget(t *testing.T) {
	p := &proposer.FakeProposer{Sources: []string{
		"def strategy():\n    eval(\"1\")\n    simulate(None)\n",
	}}
	r := &sandbox.FakeRunner{}
	s, _ := newTestStream(t, p, r)

	rec, err := s.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Outcome != types.OutcomeFailed {
		t.Fatalf("expected FAILED, got %v", rec.Outcome)
	}
	if rec.ErrorKind != types.ErrorKindValidation {
		t.Fatalf("expected VALIDATION error kind, got %v", rec.ErrorKind)
	}
	if rec.ValidationRetries != defaultValidationRetryBudget {
		t.Fatalf("expected retry budget fully spent (%d), got %d", defaultValidationRetryBudget, rec.ValidationRetries)
	}
}

func TestRunSandboxUnavailable(t *testing.T) {
	p := &proposer.FakeProposer{Sources: []string{
		"def strategy():\n    price = get(\"close\")\n    simulate(price)\n",
	}}
	r := &sandbox.FakeRunner{} // empty Results -> SANDBOX_UNAVAILABLE
	s, _ := newTestStream(t, p, r)

	rec, err := s.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.ErrorKind != types.ErrorKindSandboxUnavail {
		t.Fatalf("expected SANDBOX_UNAVAILABLE, got %v", rec.ErrorKind)
	}
}

func TestRunPreservationViolationBlocksPromotionButStillExecutes(t *testing.T) {
	// The first Run establishes a champion with lookback=20. The second
	// Run's proposer keeps drifting lookback on every retry, so the
	// bounded preservation re-validation retry (spec §4.12 step 5) is
	// exhausted and the violation carries into execution rather than
	// being silently resolved by a later retry landing back on 20.
	p := &proposer.FakeProposer{Sources: []string{
		"def strategy():\n    lookback = 20\n    price = get(\"close\")\n    simulate(price)\n",
		"def strategy():\n    lookback = 40\n    price = get(\"close\")\n    simulate(price)\n",
		"def strategy():\n    lookback = 45\n    price = get(\"close\")\n    simulate(price)\n",
		"def strategy():\n    lookback = 50\n    price = get(\"close\")\n    simulate(price)\n",
	}}
	r := &sandbox.FakeRunner{Results: []sandbox.ExecutionResult{
		{ExecutionSuccess: true, ReportBlob: []byte(`{"sharpe": 1.0, "total_return": 0.2, "max_drawdown": -0.1}`)},
		{ExecutionSuccess: true, ReportBlob: []byte(`{"sharpe": 5.0, "total_return": 0.3, "max_drawdown": -0.1}`)},
	}}
	s, _ := newTestStream(t, p, r)

	first, err := s.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run(0): %v", err)
	}
	if !first.ChampionUpdate {
		t.Fatal("expected first profitable iteration to be promoted")
	}

	second, err := s.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run(1): %v", err)
	}
	if second.Outcome != types.OutcomeProfitable {
		t.Fatalf("expected sandbox execution to still run to PROFITABLE, got %v", second.Outcome)
	}
	if len(second.PreservationViolations) == 0 {
		t.Fatal("expected lookback drift beyond the critical 5%% tolerance to be flagged")
	}
	if second.ValidationRetries != defaultValidationRetryBudget {
		t.Fatalf("expected preservation retry budget fully spent (%d), got %d", defaultValidationRetryBudget, second.ValidationRetries)
	}
	if second.ChampionUpdate {
		t.Fatal("expected preservation violation to block promotion despite the higher Sharpe")
	}
}
