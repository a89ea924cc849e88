package feedback

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paicy-t/stratloop/internal/types"
)

// Canonical preservation tolerances (§4.9): critical parameters may
// drift 5% from their champion value, moderate parameters 20%. These
// are the tolerances the actual preservation gate (§4.8 rule 5) always
// applies; a bounded re-validation retry may ask the proposer for
// tighter margins in its guidance text, but the gate itself never
// tightens — loosening what "preserved" means per retry would make the
// gate non-deterministic.
const (
	criticalTolerance = 0.05
	moderateTolerance = 0.20
)

// Directive is one preservation instruction derived from a champion's
// ParameterPattern: keep this parameter within tolerance of its
// champion value.
type Directive struct {
	ParameterName   string
	ValueAtChampion string
	Criticality     types.Criticality
	Tolerance       float64
}

// Directives converts a champion's success patterns into preservation
// directives, or nil if no champion (or no recorded patterns) exists.
func Directives(champion *types.Champion) []Directive {
	if champion == nil {
		return nil
	}
	out := make([]Directive, 0, len(champion.SuccessPatterns))
	for _, p := range champion.SuccessPatterns {
		out = append(out, Directive{
			ParameterName:   p.ParameterName,
			ValueAtChampion: p.ValueAtChampion,
			Criticality:     p.Criticality,
			Tolerance:       toleranceFor(p.Criticality),
		})
	}
	return out
}

func toleranceFor(c types.Criticality) float64 {
	if c == types.CriticalityCritical {
		return criticalTolerance
	}
	return moderateTolerance
}

// CheckPreservation extracts the candidate artifact's parameters and
// compares each one named in the champion's success patterns against
// its recorded tolerance. It returns one violation description per
// parameter that drifted beyond tolerance, or is referenced by the
// champion's patterns but missing from the candidate entirely. A
// candidate that introduces parameters the champion never had is not a
// violation: preservation constrains what the champion already relies
// on, not what the candidate may add.
func CheckPreservation(champion *types.Champion, candidateSource string) ([]string, error) {
	if champion == nil || len(champion.SuccessPatterns) == 0 {
		return nil, nil
	}

	candidateParams, err := ExtractParameterPatterns(candidateSource)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(candidateParams))
	for _, p := range candidateParams {
		byName[p.ParameterName] = p.ValueAtChampion
	}

	var violations []string
	for _, pattern := range champion.SuccessPatterns {
		raw, ok := byName[pattern.ParameterName]
		if !ok {
			violations = append(violations, fmt.Sprintf(
				"%s: %s parameter present in champion is missing from candidate",
				pattern.ParameterName, pattern.Criticality))
			continue
		}

		championValue, err1 := strconv.ParseFloat(pattern.ValueAtChampion, 64)
		candidateValue, err2 := strconv.ParseFloat(raw, 64)
		if err1 != nil || err2 != nil {
			continue
		}

		tolerance := toleranceFor(pattern.Criticality)
		if !withinTolerance(championValue, candidateValue, tolerance) {
			violations = append(violations, fmt.Sprintf(
				"%s: %s parameter drifted from %s to %s, outside ±%.0f%% tolerance",
				pattern.ParameterName, pattern.Criticality, pattern.ValueAtChampion, raw, tolerance*100))
		}
	}
	return violations, nil
}

func withinTolerance(base, candidate, tolerance float64) bool {
	if base == 0 {
		return candidate == 0
	}
	return math.Abs(candidate-base)/math.Abs(base) <= tolerance
}
