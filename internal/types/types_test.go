package types

import "testing"

func TestOutcomeLevelOrdering(t *testing.T) {
	levels := []OutcomeLevel{OutcomeFailed, OutcomeExecuted, OutcomeValidMetrics, OutcomeProfitable}
	for i := 0; i < len(levels)-1; i++ {
		if !(levels[i] < levels[i+1]) {
			t.Fatalf("expected %v < %v", levels[i], levels[i+1])
		}
	}
}

func TestOutcomeLevelJSONRoundTrip(t *testing.T) {
	for _, want := range []OutcomeLevel{OutcomeFailed, OutcomeExecuted, OutcomeValidMetrics, OutcomeProfitable} {
		b, err := want.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got OutcomeLevel
		if err := got.UnmarshalJSON(b); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: want %v got %v", want, got)
		}
	}
}

func TestOutcomeLevelUnmarshalUnknown(t *testing.T) {
	var o OutcomeLevel
	if err := o.UnmarshalJSON([]byte(`"NOT_A_LEVEL"`)); err == nil {
		t.Fatal("expected error for unknown outcome level")
	}
}
