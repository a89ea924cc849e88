package alert

import (
	"testing"
	"time"

	"github.com/paicy-t/stratloop/internal/config"
	"github.com/paicy-t/stratloop/internal/types"
)

func testConfig() config.AlertsConfig {
	return config.AlertsConfig{
		SuppressionWindowSeconds: 300,
		HighMemoryPercent:        80,
		ChampionStalenessIters:   20,
		LowSuccessRate:           0.2,
		OrphanedSandboxLimit:     3,
	}
}

func TestEvaluateEmitsBreachingConditions(t *testing.T) {
	clock := time.Unix(0, 0)
	m := NewManager(testConfig(), func() time.Time { return clock })

	events := m.Evaluate(Tick{HostMemoryPercent: 90, SuccessRateInWindow: 1, LiveSandboxCount: 1})
	if len(events) != 1 || events[0].Kind != types.AlertKindHighMemory {
		t.Fatalf("expected one high_memory alert, got %+v", events)
	}
}

func TestSuppressionWindowDropsRepeats(t *testing.T) {
	clock := time.Unix(0, 0)
	m := NewManager(testConfig(), func() time.Time { return clock })

	m.Evaluate(Tick{HostMemoryPercent: 90, SuccessRateInWindow: 1})
	events := m.Evaluate(Tick{HostMemoryPercent: 90, SuccessRateInWindow: 1})
	if len(events) != 0 {
		t.Fatalf("expected repeat within suppression window to be dropped, got %+v", events)
	}
	if m.SuppressedCount(types.AlertKindHighMemory) != 1 {
		t.Fatalf("expected suppressed count 1, got %d", m.SuppressedCount(types.AlertKindHighMemory))
	}

	clock = clock.Add(301 * time.Second)
	events = m.Evaluate(Tick{HostMemoryPercent: 90, SuccessRateInWindow: 1})
	if len(events) != 1 {
		t.Fatalf("expected alert to re-fire after suppression window elapses, got %+v", events)
	}
}

func TestSubscribersNotified(t *testing.T) {
	m := NewManager(testConfig(), nil)
	var got []types.AlertEvent
	m.Subscribe(func(e types.AlertEvent) { got = append(got, e) })

	m.Evaluate(Tick{SuccessRateInWindow: 1, LiveSandboxCount: 10})
	if len(got) != 1 || got[0].Kind != types.AlertKindOrphanedSandboxes {
		t.Fatalf("expected subscriber notified of orphaned_sandboxes, got %+v", got)
	}
}
