package validator

import (
	"context"
	"testing"

	"github.com/paicy-t/stratloop/internal/manifest"
)

func testManifest() *manifest.Manifest {
	return manifest.FromFields([]manifest.Field{
		{Name: "close"}, {Name: "open"}, {Name: "sma_20"},
	})
}

func TestValidateAcceptsCleanStrategy(t *testing.T) {
	src := `
def strategy():
    price = get("close")
    lagged = shift(price, 1)
    simulate(lagged)
`
	res, err := Validate(context.Background(), src, testManifest())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, got violations: %+v", res.Violations)
	}
	if len(res.FieldRefs) != 1 || res.FieldRefs[0].Name != "close" {
		t.Fatalf("expected one field ref 'close', got %+v", res.FieldRefs)
	}
}

func TestValidateRejectsForbiddenCall(t *testing.T) {
	src := `
def strategy():
    eval("1+1")
    simulate(None)
`
	res, err := Validate(context.Background(), src, testManifest())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid due to eval() call")
	}
}

func TestValidateRejectsUnknownField(t *testing.T) {
	src := `
def strategy():
    price = get("clsoe")
    simulate(price)
`
	res, err := Validate(context.Background(), src, testManifest())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid due to unknown field")
	}
}

func TestValidateRejectsNonPositiveOffset(t *testing.T) {
	src := `
def strategy():
    price = get("close")
    lagged = shift(price, 0)
    simulate(lagged)
`
	res, err := Validate(context.Background(), src, testManifest())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid due to non-positive shift")
	}
}

func TestValidateRequiresExactlyOneSimulateCall(t *testing.T) {
	src := `
def strategy():
    price = get("close")
`
	res, err := Validate(context.Background(), src, testManifest())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Valid {
		t.Fatal("expected invalid due to missing simulate() call")
	}
}

func TestValidateCollectsNumericParameters(t *testing.T) {
	src := `
def strategy():
    lookback = 20
    threshold = -1.5
    price = get("close")
    label = "ignored"
    simulate(price)
`
	res, err := Validate(context.Background(), src, testManifest())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, got violations: %+v", res.Violations)
	}
	byName := map[string]float64{}
	for _, p := range res.Parameters {
		byName[p.Name] = p.Value
	}
	if byName["lookback"] != 20 {
		t.Fatalf("expected lookback=20, got %+v", byName)
	}
	if byName["threshold"] != -1.5 {
		t.Fatalf("expected threshold=-1.5, got %+v", byName)
	}
	if _, ok := byName["label"]; ok {
		t.Fatal("expected non-numeric assignment to be skipped")
	}
}
