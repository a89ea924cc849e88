// Package champion tracks the current best-known strategy for a stream
// and gates promotion through the six rules §4.8 defines: execution
// success, a probation-aware Sharpe improvement, Calmar retention,
// drawdown tolerance, preservation, and an absolute Sharpe floor.
package champion

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/paicy-t/stratloop/internal/atomicfile"
	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/types"
)

// Tracker persists and gates champion promotion for one stream.
type Tracker struct {
	path    string
	cfg     config.ChampionConfig
	logger  *zap.Logger
	current *types.Champion
}

// Open loads the champion document at path if it exists, or starts with
// no champion.
func Open(path string, cfg config.ChampionConfig, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{path: path, cfg: cfg, logger: logger}

	var c types.Champion
	if err := atomicfile.ReadJSON(path, &c); err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, err
	}
	t.current = &c
	return t, nil
}

// Current returns the current champion, or nil if none has been set.
func (t *Tracker) Current() *types.Champion {
	return t.current
}

// Consider evaluates a completed iteration against the current champion
// under the six gated rules of §4.8, in order:
//
//  1. execution gate: rec.Metrics.ExecutionSuccess and rec.Outcome at
//     least VALID_METRICS;
//  2. primary Sharpe gate, multiplicative: with no champion yet, any
//     positive Sharpe qualifies; otherwise the candidate must clear the
//     champion's Sharpe by a factor of (1 + min_improvement), where
//     min_improvement is 0.10 while the champion is on probation and
//     0.05 after;
//  3. Calmar retention: when both ratios are defined, the candidate must
//     retain at least 90% of the champion's Calmar ratio;
//  4. drawdown tolerance: when both are defined, the candidate's maximum
//     drawdown must be no more than 10% worse than the champion's;
//  5. preservation: the candidate must carry no preservation violations;
//  6. minimum floor: the candidate's Sharpe must be at least 0.5.
//
// A rejection driven solely by rule 2 while the champion is still on
// probation is logged at INFO as an anti-churn rejection; it does not
// otherwise affect tracker state. On promotion Consider persists the new
// champion atomically; it returns whether a promotion occurred.
func (t *Tracker) Consider(rec types.IterationRecord) (bool, error) {
	ok, rule2Only := t.evaluate(rec)
	if !ok {
		if rule2Only && t.current != nil && t.current.ProbationRemaining > 0 {
			t.logger.Info("champion: anti-churn rejection during probation",
				zap.Int("iteration", rec.Index),
				zap.Int("champion_iteration", t.current.Iteration))
		}
		return false, nil
	}

	reason := "first profitable iteration"
	if t.current != nil {
		reason = "candidate cleared all promotion gates"
	}
	t.promote(rec, reason)
	return true, t.persist()
}

// evaluate applies rules 1-6 in order and reports whether the candidate
// passes all of them, plus whether rule 2 was the sole failure (the
// anti-churn case).
func (t *Tracker) evaluate(rec types.IterationRecord) (pass bool, rule2Only bool) {
	// Rule 1: execution gate.
	if !rec.Metrics.ExecutionSuccess || rec.Outcome < types.OutcomeValidMetrics {
		return false, false
	}

	// Rule 2: primary Sharpe gate.
	if !t.passesSharpeGate(rec.Metrics) {
		return false, t.current != nil
	}
	rule2Passed := true

	if t.current != nil {
		// Rule 3: Calmar retention.
		if !passesCalmarGate(t.current.Metrics, rec.Metrics, t.cfg.CalmarRetention) {
			return false, false
		}

		// Rule 4: drawdown tolerance.
		if !passesDrawdownGate(t.current.Metrics, rec.Metrics, t.cfg.DrawdownTolerance) {
			return false, false
		}
	}

	// Rule 5: preservation gate.
	if len(rec.PreservationViolations) > 0 {
		return false, false
	}

	// Rule 6: minimum floor.
	if rec.Metrics.Sharpe == nil || *rec.Metrics.Sharpe < t.cfg.MinSharpe {
		return false, false
	}

	return true, !rule2Passed
}

// passesSharpeGate applies rule 2: with no champion, any positive Sharpe
// qualifies; otherwise the candidate must clear the champion's Sharpe by
// (1 + min_improvement), multiplicatively.
func (t *Tracker) passesSharpeGate(candidate types.StrategyMetrics) bool {
	if candidate.Sharpe == nil {
		return false
	}
	if t.current == nil {
		return *candidate.Sharpe > 0
	}
	if t.current.Metrics.Sharpe == nil {
		return *candidate.Sharpe > 0
	}
	minImprovement := t.cfg.PostProbationMinImprovement
	if t.current.ProbationRemaining > 0 {
		minImprovement = t.cfg.ProbationMinImprovement
	}
	required := *t.current.Metrics.Sharpe * (1 + minImprovement)
	return *candidate.Sharpe >= required
}

// passesCalmarGate applies rule 3: when both ratios are defined, the
// candidate must retain at least retention of the champion's Calmar
// ratio. The gate is vacuously satisfied when either side is undefined.
func passesCalmarGate(champion, candidate types.StrategyMetrics, retention float64) bool {
	if champion.CalmarRatio == nil || candidate.CalmarRatio == nil {
		return true
	}
	return *candidate.CalmarRatio >= *champion.CalmarRatio*retention
}

// passesDrawdownGate applies rule 4: when both drawdowns are defined,
// the candidate's drawdown (a non-positive figure) may worsen by no
// more than the configured tolerance factor.
func passesDrawdownGate(champion, candidate types.StrategyMetrics, tolerance float64) bool {
	if champion.MaxDrawdown == nil || candidate.MaxDrawdown == nil {
		return true
	}
	return *candidate.MaxDrawdown >= *champion.MaxDrawdown*tolerance
}

// RollbackTo replaces the current champion with the record found at
// targetIteration within history, provided that record still clears the
// execution gate (rule 1) and the minimum Sharpe floor (rule 6).
func (t *Tracker) RollbackTo(targetIteration int, history []types.IterationRecord) (bool, error) {
	for _, rec := range history {
		if rec.Index != targetIteration {
			continue
		}
		if !rec.Metrics.ExecutionSuccess || rec.Outcome < types.OutcomeValidMetrics {
			return false, ErrRollbackTargetIneligible
		}
		if rec.Metrics.Sharpe == nil || *rec.Metrics.Sharpe < t.cfg.MinSharpe {
			return false, ErrRollbackTargetIneligible
		}
		t.promote(rec, "manual rollback")
		return true, t.persist()
	}
	return false, ErrNoSuchIteration
}

func (t *Tracker) promote(rec types.IterationRecord, reason string) {
	now := time.Now()
	prevEvents := []types.ChampionEvent{}
	probationRemaining := t.cfg.ProbationPeriod
	if t.current != nil {
		prevEvents = t.current.History
		probationRemaining = t.current.ProbationRemaining
		if probationRemaining > 0 {
			probationRemaining--
		}
	}
	t.current = &types.Champion{
		Iteration:          rec.Index,
		Fingerprint:        rec.Fingerprint,
		ArtifactText:       rec.ArtifactText,
		Metrics:            rec.Metrics,
		EstablishedAt:      now,
		ProbationRemaining: probationRemaining,
		History: append(prevEvents, types.ChampionEvent{
			Iteration: rec.Index,
			Action:    "promote",
			Reason:    reason,
			At:        now,
		}),
	}
}

func (t *Tracker) persist() error {
	return atomicfile.WriteJSON(t.path, t.current)
}

// UpdateSuccessPatterns attaches the ParameterPattern set extracted from
// the current champion's artifact (§3, §4.9) and persists it. It is a
// no-op if no champion has been established.
func (t *Tracker) UpdateSuccessPatterns(patterns []types.ParameterPattern) error {
	if t.current == nil {
		return nil
	}
	t.current.SuccessPatterns = patterns
	return t.persist()
}
