package feedback

import (
	"os"

	"github.com/paicy-t/stratloop/internal/atomicfile"
	"github.com/paicy-t/stratloop/internal/types"
)

// FailureTracker accumulates FailurePattern entries keyed by error kind
// and a coarse description, persisted the same atomic-JSON way as the
// champion document. Entries are never deleted; occurrence counts only
// grow, matching the monotonic-growth invariant on FailurePatterns.
type FailureTracker struct {
	path     string
	patterns map[string]*types.FailurePattern
}

// OpenFailureTracker loads the persisted pattern set at path, or starts
// empty if it does not exist yet.
func OpenFailureTracker(path string) (*FailureTracker, error) {
	ft := &FailureTracker{path: path, patterns: make(map[string]*types.FailurePattern)}

	var list []types.FailurePattern
	if err := atomicfile.ReadJSON(path, &list); err != nil {
		if os.IsNotExist(err) {
			return ft, nil
		}
		return nil, err
	}
	for i := range list {
		p := list[i]
		ft.patterns[key(p.ErrorKind, p.Description)] = &p
	}
	return ft, nil
}

func key(kind types.ErrorKind, desc string) string {
	return string(kind) + "|" + desc
}

// Record bumps (or creates) the pattern for a failed/non-profitable
// iteration's error kind and description.
func (ft *FailureTracker) Record(kind types.ErrorKind, description string, iteration int) error {
	k := key(kind, description)
	p, ok := ft.patterns[k]
	if !ok {
		p = &types.FailurePattern{ErrorKind: kind, Description: description}
		ft.patterns[k] = p
	}
	p.Occurrences++
	p.LastIteration = iteration
	return ft.persist()
}

// All returns every known failure pattern, most recently updated first.
func (ft *FailureTracker) All() []types.FailurePattern {
	out := make([]types.FailurePattern, 0, len(ft.patterns))
	for _, p := range ft.patterns {
		out = append(out, *p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].LastIteration > out[j-1].LastIteration; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (ft *FailureTracker) persist() error {
	return atomicfile.WriteJSON(ft.path, ft.All())
}
