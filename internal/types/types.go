// Package types defines the data model shared by every stratloop
// component: the strategy artifact a proposer emits, the metrics and
// outcome classification a sandbox run produces, and the records that
// accumulate across an iteration stream (history, champion, patterns,
// alerts).
package types

import "time"

// FieldReference names one canonical market-data field accessed by a
// strategy artifact, together with the line on which it was referenced.
type FieldReference struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// StrategyArtifact is a single proposed strategy: the source text produced
// by a Proposer, plus its identity and the lineage it was derived from.
type StrategyArtifact struct {
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	ParentIndex *int      `json:"parent_index,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorKind classifies why an iteration did not reach PROFITABLE. The set
// is exhaustive per the error handling design: VALIDATION and PRESERVATION
// are observational (they shape the next iteration's guidance but never
// abort the stream); SANDBOX_UNAVAILABLE, TIMEOUT and PROPOSER are
// transient and recorded but non-fatal; SECURITY_KILLED names a Runtime
// Monitor kill, though no code path sets it on a record or raises an
// AlertEvent for it; CONFIG is fatal at startup.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindPreservation   ErrorKind = "preservation"
	ErrorKindSandboxUnavail ErrorKind = "sandbox_unavailable"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindSecurityKilled ErrorKind = "security_killed"
	ErrorKindExtraction     ErrorKind = "extraction"
	ErrorKindProposer       ErrorKind = "proposer"
	ErrorKindConfig         ErrorKind = "config"
)

// OutcomeLevel is the ordered classification of an iteration's result.
// The ordering FAILED < EXECUTED < VALID_METRICS < PROFITABLE holds for
// every comparison operator defined on it.
type OutcomeLevel int

const (
	OutcomeFailed OutcomeLevel = iota
	OutcomeExecuted
	OutcomeValidMetrics
	OutcomeProfitable
)

// String renders the outcome level the way it is persisted and displayed.
func (o OutcomeLevel) String() string {
	switch o {
	case OutcomeFailed:
		return "FAILED"
	case OutcomeExecuted:
		return "EXECUTED"
	case OutcomeValidMetrics:
		return "VALID_METRICS"
	case OutcomeProfitable:
		return "PROFITABLE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the outcome level as its string form.
func (o OutcomeLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + o.String() + `"`), nil
}

// UnmarshalJSON parses the outcome level from its string form.
func (o *OutcomeLevel) UnmarshalJSON(b []byte) error {
	s := string(b)
	s = trimQuotes(s)
	switch s {
	case "FAILED":
		*o = OutcomeFailed
	case "EXECUTED":
		*o = OutcomeExecuted
	case "VALID_METRICS":
		*o = OutcomeValidMetrics
	case "PROFITABLE":
		*o = OutcomeProfitable
	default:
		return ErrUnknownOutcomeLevel
	}
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// StrategyMetrics holds the fields a backtest report can supply. Pointer
// fields distinguish "absent" from "zero". Coverage is the fraction of the
// three required fields (Sharpe, TotalReturn, MaxDrawdown) that are
// present; CalmarRatio is derived as AnnualReturn / |MaxDrawdown| when
// both are present, never read directly off the report.
type StrategyMetrics struct {
	ExecutionSuccess bool      `json:"execution_success"`
	Sharpe           *float64  `json:"sharpe,omitempty"`
	TotalReturn      *float64  `json:"total_return,omitempty"`
	MaxDrawdown      *float64  `json:"max_drawdown,omitempty"`
	CalmarRatio      *float64  `json:"calmar_ratio,omitempty"`
	AnnualReturn     *float64  `json:"annual_return,omitempty"`
	WinRate          *float64  `json:"win_rate,omitempty"`
	TradeCount       *int      `json:"trade_count,omitempty"`
	Coverage         float64   `json:"coverage"`
	ErrorKind        ErrorKind `json:"error_kind,omitempty"`
}

// IterationRecord is the append-only journal entry for a single iteration.
type IterationRecord struct {
	Index                 int             `json:"iteration_index"`
	Fingerprint           string          `json:"artifact_fingerprint"`
	ArtifactText          string          `json:"artifact_text"`
	StartedAt             time.Time       `json:"started_at"`
	FinishedAt            time.Time       `json:"finished_at"`
	ValidationOK          bool            `json:"validation_ok"`
	Outcome               OutcomeLevel    `json:"outcome_level"`
	Metrics               StrategyMetrics `json:"metrics"`
	ChampionUpdate        bool            `json:"champion_update"`
	PreservationViolations []string       `json:"preservation_violations,omitempty"`
	ErrorKind             ErrorKind       `json:"error_kind,omitempty"`
	ErrorDetail           string          `json:"error_detail,omitempty"`
	ValidationRetries     int             `json:"validation_retries"`
	FeedbackUsedDigest    string          `json:"feedback_used_digest,omitempty"`
	ExplorationMode       bool            `json:"exploration_mode"`
}

// Champion is the current best-known strategy for a stream, together with
// the probation counter the promotion policy decrements.
type Champion struct {
	Fingerprint        string             `json:"fingerprint"`
	ArtifactText       string             `json:"artifact_text"`
	Metrics            StrategyMetrics    `json:"metrics"`
	Iteration          int                `json:"iteration_index"`
	EstablishedAt      time.Time          `json:"established_at"`
	SuccessPatterns    []ParameterPattern `json:"success_patterns"`
	ProbationRemaining int                `json:"probation_remaining"`
	History            []ChampionEvent    `json:"history"`
}

// ChampionEvent records one promotion or rollback decision for audit.
type ChampionEvent struct {
	Iteration int       `json:"iteration"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Criticality tags how tightly a ParameterPattern must be preserved across
// iterations.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityModerate Criticality = "moderate"
)

// ParameterPattern names one parameter of the champion artifact, the
// value it held there, and how tightly that value must be preserved in
// future proposals (§4.9 preservation directives, §4.8 rule 5).
type ParameterPattern struct {
	ParameterName   string      `json:"parameter_name"`
	ValueAtChampion string      `json:"value_at_champion"`
	Criticality     Criticality `json:"criticality"`
}

// FailurePattern accumulates which error kinds recur and why, so the
// prompt composer can warn the proposer away from them.
type FailurePattern struct {
	ErrorKind     ErrorKind `json:"error_kind"`
	Description   string    `json:"description"`
	Occurrences   int       `json:"occurrences"`
	LastIteration int       `json:"last_iteration"`
}

// AlertKind names the condition that raised an AlertEvent.
type AlertKind string

const (
	AlertKindHighMemory        AlertKind = "high_memory"
	AlertKindDiversityCollapse AlertKind = "diversity_collapse"
	AlertKindChampionStaleness AlertKind = "champion_staleness"
	AlertKindLowSuccessRate    AlertKind = "low_success_rate"
	AlertKindOrphanedSandboxes AlertKind = "orphaned_sandboxes"
	AlertKindSecurityEvent     AlertKind = "security_killed"
)

// AlertEvent is a single threshold breach raised to subscribers.
type AlertEvent struct {
	Kind      AlertKind `json:"kind"`
	Iteration int       `json:"iteration"`
	Detail    string    `json:"detail"`
	At        time.Time `json:"at"`
}
