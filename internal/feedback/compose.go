// Package feedback builds the guidance text handed to the proposer for
// the next iteration, and accumulates the parameter and failure patterns
// that guidance draws on.
package feedback

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paicy-t/stratloop/internal/types"
)

// Guidance is the composed prompt material for one iteration, plus its
// content digest for journaling.
type Guidance struct {
	Text   string `json:"text"`
	Digest string `json:"digest"`
}

// ComposeInput bundles everything Compose may draw a guidance section
// from. Champion, Recent, and Failures may all be nil/empty; each
// contributes a section only when it has something to say.
type ComposeInput struct {
	Champion        *types.Champion
	Recent          []types.IterationRecord
	Failures        []types.FailurePattern
	Explore         bool
	IterationIndex  int
	DiversityStride int
	DiversityLow    bool
	StrictRetry     bool
}

// Compose builds guidance from the current champion (including its
// preserved parameter patterns), recent history, known failure
// patterns, and the stream's exploration/diversity state.
func Compose(in ComposeInput) Guidance {
	var b strings.Builder

	fmt.Fprintf(&b, "Iteration %d.\n", in.IterationIndex)

	if in.Champion != nil {
		fmt.Fprintf(&b, "Current champion (iteration %d): sharpe=%s, calmar=%s, total_return=%s.\n",
			in.Champion.Iteration, fmtPtr(in.Champion.Metrics.Sharpe),
			fmtPtr(in.Champion.Metrics.CalmarRatio), fmtPtr(in.Champion.Metrics.TotalReturn))
		writePreservationSection(&b, in.Champion, in.StrictRetry)
	} else {
		b.WriteString("No champion yet; any PROFITABLE strategy clearing the minimum Sharpe floor will be promoted.\n")
	}

	if n := len(in.Recent); n > 0 {
		recent := in.Recent
		if n > 5 {
			recent = in.Recent[n-5:]
		}
		b.WriteString("Recent outcomes: ")
		parts := make([]string, 0, len(recent))
		for _, r := range recent {
			parts = append(parts, r.Outcome.String())
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(".\n")
	}

	if len(in.Failures) > 0 {
		b.WriteString("Avoid these recurring failure modes:\n")
		for _, fp := range in.Failures {
			fmt.Fprintf(&b, "- %s (%s): seen %d times, most recently at iteration %d.\n",
				fp.ErrorKind, fp.Description, fp.Occurrences, fp.LastIteration)
		}
	}

	switch {
	case diversityForcing(in):
		b.WriteString("Diversity is low (or this is a diversity-forcing iteration): deviate on at least one major parameter from the champion, rather than a minor refinement.\n")
	case in.Explore:
		b.WriteString("This iteration favors exploration: propose a strategy structurally different from the champion.\n")
	default:
		b.WriteString("This iteration favors exploitation: propose a refinement of the champion.\n")
	}

	text := b.String()
	return Guidance{Text: text, Digest: digest(text)}
}

// diversityForcing reports whether this iteration must force diversity:
// either the index lands on a diversity_stride multiple, or the
// Diversity Monitor has already reported the population below its
// threshold.
func diversityForcing(in ComposeInput) bool {
	if in.DiversityLow {
		return true
	}
	if in.DiversityStride > 0 && in.IterationIndex > 0 && in.IterationIndex%in.DiversityStride == 0 {
		return true
	}
	return false
}

// writePreservationSection lists the champion's preserved parameters and
// their tolerances (§4.9). When strictRetry is set (a bounded
// re-validation retry after a preservation-violating candidate), the
// guidance text asks for tighter margins than the canonical tolerance —
// this affects only the text shown to the proposer, never the real gate
// CheckPreservation enforces.
func writePreservationSection(b *strings.Builder, champion *types.Champion, strictRetry bool) {
	directives := Directives(champion)
	if len(directives) == 0 {
		return
	}
	b.WriteString("Preserve these parameters from the champion:\n")
	for _, d := range directives {
		tolerance := d.Tolerance
		if strictRetry {
			tolerance /= 2
		}
		fmt.Fprintf(b, "- %s (%s): keep within ±%.0f%% of %s.\n",
			d.ParameterName, d.Criticality, tolerance*100, d.ValueAtChampion)
	}
	if strictRetry {
		b.WriteString("The previous candidate violated preservation tolerances; apply stricter margins than usual this time.\n")
	}
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "absent"
	}
	b, _ := json.Marshal(*v)
	return string(b)
}
