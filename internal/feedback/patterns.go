package feedback

import (
	"context"
	"strconv"
	"strings"

	"github.com/paicy-t/stratloop/internal/types"
	"github.com/paicy-t/stratloop/internal/validator"
)

// criticalParameterNames lists the substrings that mark a parameter as
// critical for preservation purposes: the knobs a backtest's edge is
// usually most sensitive to (lookback windows, entry/exit thresholds,
// risk limits). Anything else numeric found in the artifact is
// moderate — still worth preserving loosely, but not load-bearing in
// the same way.
var criticalParameterNames = []string{
	"lookback", "window", "period", "threshold",
	"stop_loss", "take_profit", "stop", "target",
}

// ExtractParameterPatterns walks a champion artifact's source and
// returns the ParameterPattern set its numeric parameters form, tagging
// each with a criticality heuristic on the parameter's name.
func ExtractParameterPatterns(source string) ([]types.ParameterPattern, error) {
	res, err := validator.Validate(context.Background(), source, nil)
	if err != nil {
		return nil, err
	}

	patterns := make([]types.ParameterPattern, 0, len(res.Parameters))
	seen := make(map[string]bool, len(res.Parameters))
	for _, p := range res.Parameters {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		patterns = append(patterns, types.ParameterPattern{
			ParameterName:   p.Name,
			ValueAtChampion: formatParameterValue(p.Value),
			Criticality:     criticalityOf(p.Name),
		})
	}
	return patterns, nil
}

func criticalityOf(name string) types.Criticality {
	lower := strings.ToLower(name)
	for _, marker := range criticalParameterNames {
		if strings.Contains(lower, marker) {
			return types.CriticalityCritical
		}
	}
	return types.CriticalityModerate
}

func formatParameterValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
