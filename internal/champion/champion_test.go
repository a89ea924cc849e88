package champion

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/types"
)

func f(v float64) *float64 { return &v }

func testConfig() config.ChampionConfig {
	return config.ChampionConfig{
		ProbationPeriod:             2,
		ProbationMinImprovement:     0.10,
		PostProbationMinImprovement: 0.05,
		MinSharpe:                   0.5,
		CalmarRetention:             0.90,
		DrawdownTolerance:           1.10,
	}
}

func profitable(index int, sharpe float64) types.IterationRecord {
	return types.IterationRecord{
		Index:   index,
		Outcome: types.OutcomeProfitable,
		Metrics: types.StrategyMetrics{ExecutionSuccess: true, Sharpe: f(sharpe)},
	}
}

// Scenario 1: cold start, first profitable iteration becomes champion and
// is seeded with probation_remaining = 2.
func TestFirstProfitableBecomesChampion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, err := Open(path, testConfig(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	promoted, err := tr.Consider(profitable(0, 1.0))
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if !promoted {
		t.Fatal("expected first profitable iteration to be promoted")
	}
	if tr.Current().ProbationRemaining != 2 {
		t.Fatalf("expected probation_remaining 2, got %d", tr.Current().ProbationRemaining)
	}
}

// A first profitable iteration below the minimum Sharpe floor (rule 6)
// must not be promoted (Invariant 5 / §8 testable property 5).
func TestFirstIterationBelowFloorNotPromoted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)

	promoted, err := tr.Consider(profitable(0, 0.3))
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if promoted {
		t.Fatal("expected sub-floor Sharpe to be rejected by the minimum floor")
	}
	if tr.Current() != nil {
		t.Fatal("expected no champion to be established")
	}
}

// Scenario 2: champion sharpe 1.21, candidate 1.27, still on probation so
// min_improvement = 0.10 requires 1.331; candidate must not promote.
func TestAntiChurnRejectionDuringProbation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	if _, err := tr.Consider(profitable(0, 1.21)); err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if tr.Current().ProbationRemaining != 2 {
		t.Fatalf("expected probation_remaining 2 after first promotion, got %d", tr.Current().ProbationRemaining)
	}

	promoted, err := tr.Consider(profitable(1, 1.27))
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if promoted {
		t.Fatal("expected candidate below the 1.331 probation threshold to be rejected")
	}
	if tr.Current().Iteration != 0 {
		t.Fatalf("expected champion to remain at iteration 0, got %d", tr.Current().Iteration)
	}
}

// Scenario 3: post-probation acceptance. probation_remaining only
// decrements on promotion, so two qualifying promotions exhaust it
// before a candidate clearing just the 0.05 post-probation
// min_improvement (rather than the 0.10 probation rate) can promote.
func TestPostProbationAcceptance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)

	if _, err := tr.Consider(profitable(0, 1.0)); err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if tr.Current().ProbationRemaining != 2 {
		t.Fatalf("expected probation_remaining 2, got %d", tr.Current().ProbationRemaining)
	}

	// Requires >= 1.0*1.10 = 1.10.
	if promoted, err := tr.Consider(profitable(1, 1.15)); err != nil || !promoted {
		t.Fatalf("expected promotion at iteration 1, promoted=%v err=%v", promoted, err)
	}
	if tr.Current().ProbationRemaining != 1 {
		t.Fatalf("expected probation_remaining 1, got %d", tr.Current().ProbationRemaining)
	}

	// Requires >= 1.15*1.10 = 1.265.
	if promoted, err := tr.Consider(profitable(2, 1.30)); err != nil || !promoted {
		t.Fatalf("expected promotion at iteration 2, promoted=%v err=%v", promoted, err)
	}
	if tr.Current().ProbationRemaining != 0 {
		t.Fatalf("expected probation_remaining 0, got %d", tr.Current().ProbationRemaining)
	}

	// Now post-probation: requires >= 1.30*1.05 = 1.365, not 1.43.
	promoted, err := tr.Consider(profitable(3, 1.40))
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if !promoted {
		t.Fatal("expected post-probation candidate at 1.40 to clear the 1.365 threshold")
	}
	if tr.Current().Iteration != 3 {
		t.Fatalf("expected champion to move to iteration 3, got %d", tr.Current().Iteration)
	}
}

func TestPreservationViolationBlocksPromotion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	if _, err := tr.Consider(profitable(0, 1.0)); err != nil {
		t.Fatalf("Consider: %v", err)
	}

	rec := profitable(1, 5.0)
	rec.PreservationViolations = []string{"lookback_window drifted outside tolerance"}
	promoted, err := tr.Consider(rec)
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if promoted {
		t.Fatal("expected preservation violation to block promotion regardless of Sharpe improvement")
	}
}

func TestCalmarRetentionBlocksPromotion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	champRec := profitable(0, 1.0)
	champRec.Metrics.CalmarRatio = f(2.0)
	if _, err := tr.Consider(champRec); err != nil {
		t.Fatalf("Consider: %v", err)
	}

	candidate := profitable(1, 5.0)
	candidate.Metrics.CalmarRatio = f(1.0) // below 90% retention of 2.0
	promoted, err := tr.Consider(candidate)
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if promoted {
		t.Fatal("expected insufficient Calmar retention to block promotion")
	}
}

func TestDrawdownToleranceBlocksPromotion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	champRec := profitable(0, 1.0)
	champRec.Metrics.MaxDrawdown = f(-0.10)
	if _, err := tr.Consider(champRec); err != nil {
		t.Fatalf("Consider: %v", err)
	}

	candidate := profitable(1, 5.0)
	candidate.Metrics.MaxDrawdown = f(-0.30) // worse than -0.11 tolerance
	promoted, err := tr.Consider(candidate)
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if promoted {
		t.Fatal("expected drawdown beyond tolerance to block promotion")
	}
}

func TestExecutionGateBlocksPromotion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)

	rec := profitable(0, 5.0)
	rec.Metrics.ExecutionSuccess = false
	promoted, err := tr.Consider(rec)
	if err != nil {
		t.Fatalf("Consider: %v", err)
	}
	if promoted {
		t.Fatal("expected execution failure to block promotion even with a qualifying Sharpe")
	}
}

func TestRollbackToMissingIterationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	_, err := tr.RollbackTo(42, nil)
	if !errors.Is(err, ErrNoSuchIteration) {
		t.Fatalf("expected ErrNoSuchIteration, got %v", err)
	}
}

func TestRollbackToIneligibleTargetErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	history := []types.IterationRecord{profitable(7, 0.1)}

	_, err := tr.RollbackTo(7, history)
	if !errors.Is(err, ErrRollbackTargetIneligible) {
		t.Fatalf("expected ErrRollbackTargetIneligible, got %v", err)
	}
}

func TestRollbackToEligibleTargetPromotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champion.json")
	tr, _ := Open(path, testConfig(), nil)
	history := []types.IterationRecord{profitable(7, 1.5)}

	promoted, err := tr.RollbackTo(7, history)
	if err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}
	if !promoted {
		t.Fatal("expected eligible rollback target to be restored as champion")
	}
	if tr.Current().Iteration != 7 {
		t.Fatalf("expected champion iteration 7, got %d", tr.Current().Iteration)
	}
}
