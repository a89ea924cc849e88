// Package metrics turns a sandbox run's raw report blob into
// StrategyMetrics and classifies the result into an OutcomeLevel.
package metrics

import (
	"encoding/json"
	"math"

	"github.com/paicy-t/stratloop/internal/types"
)

// rawReport is the tolerant intermediate shape a backtest report blob is
// decoded into before NaN/Inf values are dropped.
type rawReport struct {
	Sharpe       *float64 `json:"sharpe"`
	TotalReturn  *float64 `json:"total_return"`
	MaxDrawdown  *float64 `json:"max_drawdown"`
	AnnualReturn *float64 `json:"annual_return"`
	WinRate      *float64 `json:"win_rate"`
	TradeCount   *int     `json:"trade_count"`
}

// Extract parses a report blob into StrategyMetrics. It never returns an
// error: a malformed blob yields an all-absent StrategyMetrics with zero
// coverage, leaving classification (and therefore FAILED/EXECUTED
// distinction) to the caller. ExecutionSuccess is left at its zero value;
// the caller sets it from the sandbox's ExecutionResult once Extract
// returns, since StrategyMetrics is the unit the Champion Tracker's
// execution gate (rule 1) reads.
func Extract(reportBlob []byte) types.StrategyMetrics {
	var raw rawReport
	if err := json.Unmarshal(reportBlob, &raw); err != nil {
		return types.StrategyMetrics{}
	}

	m := types.StrategyMetrics{
		Sharpe: dropNonFinite(raw.Sharpe),
		TotalReturn:      dropNonFinite(raw.TotalReturn),
		MaxDrawdown:      dropNonFinite(raw.MaxDrawdown),
		AnnualReturn:     dropNonFinite(raw.AnnualReturn),
		WinRate:          dropNonFinite(raw.WinRate),
		TradeCount:       raw.TradeCount,
	}

	present := 0
	for _, p := range []*float64{m.Sharpe, m.TotalReturn, m.MaxDrawdown} {
		if p != nil {
			present++
		}
	}
	m.Coverage = float64(present) / 3.0

	m.CalmarRatio = calmar(m.AnnualReturn, m.MaxDrawdown)
	return m
}

// calmar derives calmar_ratio = annual_return / |max_drawdown| per the
// data model; it is never read directly off the report.
func calmar(annualReturn, maxDrawdown *float64) *float64 {
	if annualReturn == nil || maxDrawdown == nil || *maxDrawdown == 0 {
		return nil
	}
	v := *annualReturn / math.Abs(*maxDrawdown)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func dropNonFinite(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}
