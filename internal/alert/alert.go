// Package alert evaluates the fixed set of thresholded conditions on
// every update tick and notifies subscribers of structured AlertEvents,
// holding each alert kind under a per-kind suppression window.
package alert

import (
	"time"

	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/types"
)

// Manager evaluates thresholds and fans out AlertEvents to subscribers
// registered at startup. Subscribers are called synchronously and in
// registration order; a subscriber that wants to decouple from the
// caller's goroutine should hand the event off itself.
type Manager struct {
	cfg            config.AlertsConfig
	subscribers    []func(types.AlertEvent)
	lastEmitted    map[types.AlertKind]time.Time
	suppressedCount map[types.AlertKind]int
	now            func() time.Time
}

// NewManager constructs a Manager. now defaults to time.Now when nil,
// overridable for deterministic tests.
func NewManager(cfg config.AlertsConfig, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		cfg:             cfg,
		lastEmitted:     make(map[types.AlertKind]time.Time),
		suppressedCount: make(map[types.AlertKind]int),
		now:             now,
	}
}

// Subscribe registers a callback invoked for every non-suppressed alert.
func (m *Manager) Subscribe(fn func(types.AlertEvent)) {
	m.subscribers = append(m.subscribers, fn)
}

// Tick is the snapshot of stream state that Evaluate checks against all
// five thresholded conditions.
type Tick struct {
	Iteration            int
	HostMemoryPercent     float64
	DiversityCollapsed    bool
	IterationsSinceChampionUpdate int
	SuccessRateInWindow   float64
	LiveSandboxCount      int
}

// Evaluate runs one tick of threshold checks and emits any breaching,
// non-suppressed alerts. It returns the events actually emitted (after
// suppression).
func (m *Manager) Evaluate(t Tick) []types.AlertEvent {
	var emitted []types.AlertEvent

	check := func(kind types.AlertKind, breach bool, detail string) {
		if !breach {
			return
		}
		m.emit(kind, t.Iteration, detail, &emitted)
	}

	check(types.AlertKindHighMemory, t.HostMemoryPercent > m.cfg.HighMemoryPercent, "host memory usage exceeded threshold")
	check(types.AlertKindDiversityCollapse, t.DiversityCollapsed, "diversity collapsed below threshold")
	check(types.AlertKindChampionStaleness, t.IterationsSinceChampionUpdate >= m.cfg.ChampionStalenessIters, "no champion update for configured iteration count")
	check(types.AlertKindLowSuccessRate, t.SuccessRateInWindow < m.cfg.LowSuccessRate, "success rate fell below threshold")
	check(types.AlertKindOrphanedSandboxes, t.LiveSandboxCount > m.cfg.OrphanedSandboxLimit, "live sandbox count exceeded limit")

	return emitted
}

// EmitSecurityKilled emits a security_killed event for a container kill,
// bypassing Evaluate's tick-based checks since a kill is an
// edge-triggered event, not a level breach. The sandbox RuntimeMonitor
// does not call it; it reports kills only through its own OnKill
// callback, and cmd/sl run does not connect the two.
func (m *Manager) EmitSecurityKilled(iteration int, detail string) []types.AlertEvent {
	var emitted []types.AlertEvent
	m.emit(types.AlertKindSecurityEvent, iteration, detail, &emitted)
	return emitted
}

func (m *Manager) emit(kind types.AlertKind, iteration int, detail string, out *[]types.AlertEvent) {
	now := m.now()
	if last, ok := m.lastEmitted[kind]; ok {
		if now.Sub(last) < time.Duration(m.cfg.SuppressionWindowSeconds)*time.Second {
			m.suppressedCount[kind]++
			return
		}
	}
	m.lastEmitted[kind] = now
	ev := types.AlertEvent{Kind: kind, Iteration: iteration, Detail: detail, At: now}
	*out = append(*out, ev)
	for _, sub := range m.subscribers {
		sub(ev)
	}
}

// SuppressedCount returns how many events of kind have been suppressed
// since startup.
func (m *Manager) SuppressedCount(kind types.AlertKind) int {
	return m.suppressedCount[kind]
}
