package diversity

import (
	"testing"

	"github.com/paicy-t/stratloop/internal/config"
)

func testConfig() config.DiversityConfig {
	return config.DiversityConfig{
		WindowSize:           10,
		MinSequenceDiversity: 0.5,
		ConvergenceWindow:    3,
		StagnationWindow:     3,
	}
}

func TestSequenceDiversityAllIdenticalWindow(t *testing.T) {
	m := NewMonitor(testConfig())
	for i := 0; i < 10; i++ {
		m.Update("same-fingerprint", 0, false)
	}
	got := m.SequenceDiversity()
	want := 0.1 // 1 unique / 10
	if got != want {
		t.Fatalf("expected diversity %v, got %v", want, got)
	}
}

func TestConvergenceRequiresBothLowDiversityAndStagnation(t *testing.T) {
	m := NewMonitor(testConfig())
	for i := 0; i < 5; i++ {
		m.Update("same", 1.0, true) // identical fingerprint, identical metric: both streaks grow
	}
	if !m.Converged(3, 3) {
		t.Fatal("expected convergence after sustained low diversity and stagnation")
	}
}

func TestNoConvergenceWhenMetricStillImproving(t *testing.T) {
	m := NewMonitor(testConfig())
	for i := 0; i < 5; i++ {
		m.Update("same", float64(i), true) // diversity collapses but metric keeps improving
	}
	if m.Converged(3, 3) {
		t.Fatal("expected no convergence while metric keeps improving")
	}
}

func TestDiversityCollapsed(t *testing.T) {
	m := NewMonitor(testConfig())
	// Diversity first reaches 0.1 (1 unique / 10) on the 10th identical
	// update; four more keep it there for Y=5 consecutive ticks.
	for i := 0; i < 14; i++ {
		m.Update("same", 0, false)
	}
	if !m.DiversityCollapsed(5) {
		t.Fatal("expected diversity collapse after 14 identical updates with Y=5")
	}
}

func TestPopulationDiversity(t *testing.T) {
	identical := []string{"a", "a", "a"}
	if got := PopulationDiversity(identical); got != 0 {
		t.Fatalf("expected 0 dissimilarity for identical hashes, got %v", got)
	}
	distinct := []string{"a", "b"}
	if got := PopulationDiversity(distinct); got != 1 {
		t.Fatalf("expected full dissimilarity for distinct hashes, got %v", got)
	}
}
