// Package executor implements the Iteration Executor: the per-stream,
// single-threaded state machine that sequences guidance composition,
// proposal, validation, sandbox execution, metrics extraction, outcome
// classification, champion promotion, and history/diversity
// bookkeeping for every iteration.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paicy-t/stratloop/internal/alert"
	"github.com/paicy-t/stratloop/internal/champion"
	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/diversity"
	"github.com/paicy-t/stratloop/internal/feedback"
	"github.com/paicy-t/stratloop/internal/fingerprint"
	"github.com/paicy-t/stratloop/internal/history"
	"github.com/paicy-t/stratloop/internal/manifest"
	"github.com/paicy-t/stratloop/internal/metrics"
	"github.com/paicy-t/stratloop/internal/proposer"
	"github.com/paicy-t/stratloop/internal/sandbox"
	"github.com/paicy-t/stratloop/internal/types"
	"github.com/paicy-t/stratloop/internal/validator"
)

const defaultExplorationBurst = 5
const defaultValidationRetryBudget = 2

// Stream owns one iteration stream's History and Champion files plus the
// collaborators it drives. Its Run method is the only writer to Champion
// and History; it must be called from a single goroutine per stream.
type Stream struct {
	Proposer  proposer.Proposer
	Runner    sandbox.Runner
	Manifest  *manifest.Manifest
	History   *history.History
	Champion  *champion.Tracker
	Failures  *feedback.FailureTracker
	Diversity *diversity.Monitor
	Alerts    *alert.Manager
	Cfg       *config.Config
	Logger    *zap.Logger

	explorationRemaining int
	validationRetryBudget int
}

// NewStream wires a Stream's validation retry budget and logger defaults.
func NewStream(p proposer.Proposer, r sandbox.Runner, m *manifest.Manifest, h *history.History, c *champion.Tracker, f *feedback.FailureTracker, d *diversity.Monitor, a *alert.Manager, cfg *config.Config, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		Proposer: p, Runner: r, Manifest: m, History: h, Champion: c,
		Failures: f, Diversity: d, Alerts: a, Cfg: cfg, Logger: logger,
		validationRetryBudget: defaultValidationRetryBudget,
	}
}

// Run executes one full iteration of the state machine: compose
// guidance, propose, validate (with bounded retry), check preservation
// (with its own bounded retry; non-blocking once exhausted), execute in
// the sandbox, extract and classify metrics, consider champion
// promotion, and persist.
func (s *Stream) Run(ctx context.Context, index int) (types.IterationRecord, error) {
	start := time.Now()
	explore := s.explorationRemaining > 0
	diversityLow := s.Diversity.SequenceDiversity() < s.Cfg.Diversity.MinSequenceDiversity
	retryBudget := s.validationRetryBudget
	preservationRetryBudget := s.validationRetryBudget
	retries := 0
	strictRetry := false

	var (
		artifact               types.StrategyArtifact
		valRes                 *validator.Result
		preservationViolations []string
	)

	for {
		guidance := feedback.Compose(feedback.ComposeInput{
			Champion:        s.Champion.Current(),
			Failures:        s.Failures.All(),
			Explore:         explore,
			IterationIndex:  index,
			DiversityStride: s.Cfg.Diversity.DiversityStride,
			DiversityLow:    diversityLow,
			StrictRetry:     strictRetry,
		})

		proposeCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
		candidate, err := s.Proposer.Propose(proposeCtx, guidance.Text)
		cancel()
		if err != nil {
			return s.finish(index, start, types.IterationRecord{
				Index: index, StartedAt: start, FinishedAt: time.Now(),
				Outcome: types.OutcomeFailed, ErrorKind: types.ErrorKindProposer,
				ErrorDetail: err.Error(), FeedbackUsedDigest: guidance.Digest, ExplorationMode: explore,
			})
		}
		artifact = candidate
		if artifact.Fingerprint == "" {
			artifact.Fingerprint = fingerprint.Of(artifact.Source)
		}

		res, err := validator.Validate(ctx, artifact.Source, s.Manifest)
		if err != nil {
			return s.finish(index, start, types.IterationRecord{
				Index: index, Fingerprint: artifact.Fingerprint, ArtifactText: artifact.Source,
				StartedAt: start, FinishedAt: time.Now(),
				Outcome: types.OutcomeFailed, ErrorKind: types.ErrorKindValidation,
				ErrorDetail: err.Error(), FeedbackUsedDigest: guidance.Digest, ExplorationMode: explore,
			})
		}
		valRes = res

		if !valRes.Valid {
			if retryBudget > 0 {
				retryBudget--
				retries++
				continue
			}
			return s.finish(index, start, types.IterationRecord{
				Index: index, Fingerprint: artifact.Fingerprint, ArtifactText: artifact.Source,
				StartedAt: start, FinishedAt: time.Now(),
				Outcome: types.OutcomeFailed, ErrorKind: types.ErrorKindValidation,
				ErrorDetail:        violationSummary(valRes),
				ValidationRetries:  retries, FeedbackUsedDigest: guidance.Digest, ExplorationMode: explore,
			})
		}

		// Step 5 (spec §4.12): re-validate preservation against the
		// champion's ParameterPatterns before submitting to the sandbox.
		// Violations within a non-exhausted retry budget send the
		// proposer back through Compose with stricter directives
		// (StrictRetry); an exhausted budget carries the violations
		// forward and still proceeds to execution.
		violations, err := feedback.CheckPreservation(s.Champion.Current(), artifact.Source)
		if err != nil {
			s.Logger.Warn("executor: preservation check failed", zap.Error(err))
			violations = nil
		}
		if len(violations) > 0 && preservationRetryBudget > 0 {
			preservationRetryBudget--
			retries++
			strictRetry = true
			continue
		}
		preservationViolations = violations
		break
	}

	execResult, err := s.Runner.Execute(ctx, artifact)
	if err != nil {
		return s.finish(index, start, types.IterationRecord{
			Index: index, Fingerprint: artifact.Fingerprint, ArtifactText: artifact.Source,
			StartedAt: start, FinishedAt: time.Now(),
			Outcome: types.OutcomeFailed, ErrorKind: types.ErrorKindSandboxUnavail,
			ErrorDetail: err.Error(), ValidationRetries: retries, ExplorationMode: explore,
		})
	}
	if execResult.ErrorKind == types.ErrorKindSandboxUnavail {
		return s.finish(index, start, types.IterationRecord{
			Index: index, Fingerprint: artifact.Fingerprint, ArtifactText: artifact.Source,
			StartedAt: start, FinishedAt: time.Now(),
			Outcome: types.OutcomeFailed, ErrorKind: types.ErrorKindSandboxUnavail,
			ErrorDetail: execResult.ErrorDetail, ValidationRetries: retries, ExplorationMode: explore,
		})
	}

	m := metrics.Extract(execResult.ReportBlob)
	m.ExecutionSuccess = execResult.ExecutionSuccess
	outcome := metrics.Classify(execResult.ExecutionSuccess, m)

	rec := types.IterationRecord{
		Index: index, Fingerprint: artifact.Fingerprint, ArtifactText: artifact.Source,
		StartedAt: start, FinishedAt: time.Now(),
		ValidationOK: valRes.Valid,
		Outcome:      outcome, Metrics: m,
		ErrorKind: execResult.ErrorKind, ErrorDetail: execResult.ErrorDetail,
		ValidationRetries: retries, ExplorationMode: explore,
	}

	if len(preservationViolations) > 0 {
		rec.PreservationViolations = preservationViolations
		if rec.ErrorKind == types.ErrorKindNone {
			rec.ErrorKind = types.ErrorKindPreservation
		}
	}

	promoted, err := s.Champion.Consider(rec)
	if err != nil {
		s.Logger.Warn("executor: champion consider failed", zap.Error(err))
	}
	rec.ChampionUpdate = promoted

	if promoted {
		if patterns, err := feedback.ExtractParameterPatterns(artifact.Source); err != nil {
			s.Logger.Warn("executor: parameter pattern extraction failed", zap.Error(err))
		} else if err := s.Champion.UpdateSuccessPatterns(patterns); err != nil {
			s.Logger.Warn("executor: failed to persist success patterns", zap.Error(err))
		}
	}

	return s.finish(index, start, rec)
}

// finish appends the record to history, records failures, updates
// diversity, and adjusts exploration mode — step 9-10 of the state
// machine, run for every terminal path through Run. It does not call
// the Alert Manager; the Stream holds it but never evaluates it.
func (s *Stream) finish(index int, start time.Time, rec types.IterationRecord) (types.IterationRecord, error) {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	if err := s.History.Append(rec); err != nil {
		return rec, err
	}

	if rec.ErrorKind != types.ErrorKindNone {
		_ = s.Failures.Record(rec.ErrorKind, rec.ErrorDetail, index)
	}

	var metricVal float64
	hasMetric := rec.Metrics.Sharpe != nil
	if hasMetric {
		metricVal = *rec.Metrics.Sharpe
	}
	s.Diversity.Update(rec.Fingerprint, metricVal, hasMetric)

	if s.Diversity.Converged(s.Cfg.Diversity.ConvergenceWindow, s.Cfg.Diversity.StagnationWindow) {
		s.explorationRemaining = defaultExplorationBurst
	} else if s.explorationRemaining > 0 {
		s.explorationRemaining--
	}

	return rec, nil
}

func violationSummary(res *validator.Result) string {
	if len(res.Violations) == 0 {
		return "validation failed"
	}
	return res.Violations[0].Message
}
