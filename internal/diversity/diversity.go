// Package diversity tracks how structurally different recent strategy
// proposals are from one another, and reports convergence when the
// stream has simultaneously gone low-diversity and stagnant.
package diversity

import "github.com/paicy-t/stratloop/internal/config"

// Monitor holds the rolling fingerprint window plus the consecutive-tick
// counters convergence and collapse detection need.
type Monitor struct {
	cfg    config.DiversityConfig
	window []string

	belowThresholdStreak int
	belowCollapseStreak  int
	bestMetric           float64
	haveBest             bool
	stagnantStreak       int
}

// NewMonitor constructs a Monitor with the given configuration.
func NewMonitor(cfg config.DiversityConfig) *Monitor {
	return &Monitor{cfg: cfg}
}

// Update records one iteration's structural fingerprint and its outcome
// metric (callers pass hasMetric=false when the iteration produced no
// usable metric), advancing every streak counter, and returns the
// sequence diversity after this update.
func (m *Monitor) Update(fingerprint string, candidateMetric float64, hasMetric bool) float64 {
	m.window = append(m.window, fingerprint)
	if len(m.window) > m.cfg.WindowSize {
		m.window = m.window[len(m.window)-m.cfg.WindowSize:]
	}

	div := m.SequenceDiversity()

	if div < m.cfg.MinSequenceDiversity {
		m.belowThresholdStreak++
	} else {
		m.belowThresholdStreak = 0
	}

	if div <= collapseThreshold {
		m.belowCollapseStreak++
	} else {
		m.belowCollapseStreak = 0
	}

	if hasMetric {
		if !m.haveBest || candidateMetric > m.bestMetric {
			m.bestMetric = candidateMetric
			m.haveBest = true
			m.stagnantStreak = 0
		} else {
			m.stagnantStreak++
		}
	}

	return div
}

// collapseThreshold is the diversity_collapse alert's default X (0.1);
// the caller decides Y (ticks) when calling DiversityCollapsed.
const collapseThreshold = 0.1

// SequenceDiversity is the fraction of distinct fingerprints in the
// current window relative to window length. An empty window is 0.
func (m *Monitor) SequenceDiversity() float64 {
	if len(m.window) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(m.window))
	for _, f := range m.window {
		seen[f] = struct{}{}
	}
	return float64(len(seen)) / float64(len(m.window))
}

// PopulationDiversity computes the mean pairwise dissimilarity over a
// structural hash of each strategy's factor set, for population-evolution
// mode. Identical hashes contribute 0 dissimilarity to the mean.
func PopulationDiversity(structuralHashes []string) float64 {
	n := len(structuralHashes)
	if n < 2 {
		return 0
	}
	var pairs, dissimilar int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs++
			if structuralHashes[i] != structuralHashes[j] {
				dissimilar++
			}
		}
	}
	return float64(dissimilar) / float64(pairs)
}

// Converged reports whether diversity has been below MinSequenceDiversity
// for at least convergenceWindow consecutive updates AND the best
// observed metric has not improved for at least stagnationWindow
// consecutive updates. Reporting convergence is a signal only; it is up
// to the caller (Iteration Executor, Alert Manager) to act on it.
func (m *Monitor) Converged(convergenceWindow, stagnationWindow int) bool {
	return m.belowThresholdStreak >= convergenceWindow && m.stagnantStreak >= stagnationWindow
}

// DiversityCollapsed reports whether diversity has stayed at or below the
// fixed 0.1 collapse threshold (the value of an all-identical 10-entry
// window) for at least collapseTicks consecutive updates —
// the faster-firing, stagnation-independent condition behind the Alert
// Manager's diversity_collapse alert (default Y=5).
func (m *Monitor) DiversityCollapsed(collapseTicks int) bool {
	return m.belowCollapseStreak >= collapseTicks
}
