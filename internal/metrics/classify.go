package metrics

import "github.com/paicy-t/stratloop/internal/types"

const coverageThreshold = 0.6

// Classify maps a single StrategyMetrics to an OutcomeLevel, given whether
// the run executed at all. Coverage exactly at the threshold with
// sharpe == 0 lands on VALID_METRICS, not PROFITABLE: the sharpe > 0
// condition is strict.
func Classify(executionSuccess bool, m types.StrategyMetrics) types.OutcomeLevel {
	if !executionSuccess {
		return types.OutcomeFailed
	}
	if m.Coverage < coverageThreshold {
		return types.OutcomeExecuted
	}
	if m.Sharpe != nil && *m.Sharpe > 0 {
		return types.OutcomeProfitable
	}
	return types.OutcomeValidMetrics
}

// ClassifyBatch classifies N results together: PROFITABLE iff mean
// coverage is at least the threshold and at least 40% of results are
// individually profitable; otherwise it steps down through the same
// table using the weakest satisfied condition across the batch. An
// empty batch is FAILED.
func ClassifyBatch(executionSuccess []bool, ms []types.StrategyMetrics) types.OutcomeLevel {
	n := len(ms)
	if n == 0 || len(executionSuccess) != n {
		return types.OutcomeFailed
	}

	var coverageSum float64
	profitableCount := 0
	weakest := types.OutcomeProfitable
	anyExecuted := false

	for i, m := range ms {
		coverageSum += m.Coverage
		level := Classify(executionSuccess[i], m)
		if level == types.OutcomeProfitable {
			profitableCount++
		}
		if executionSuccess[i] {
			anyExecuted = true
		}
		if level < weakest {
			weakest = level
		}
	}

	if !anyExecuted {
		return types.OutcomeFailed
	}

	coverageMean := coverageSum / float64(n)
	profitableFraction := float64(profitableCount) / float64(n)

	if coverageMean >= coverageThreshold && profitableFraction >= 0.4 {
		return types.OutcomeProfitable
	}
	return weakest
}
