// Package manifest loads the canonical catalogue of market-data field
// names a strategy artifact is allowed to reference, and answers
// membership queries against it in O(1) time and nearest-match queries
// by a linear scan of the catalogue.
package manifest

import (
	"os"
	"sort"

	"github.com/xrash/smetrics"
	"gopkg.in/yaml.v3"
)

// Field describes one canonical field entry in the catalogue.
type Field struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// catalogue is the on-disk shape of the field manifest file.
type catalogue struct {
	Fields []Field `yaml:"fields"`
}

// Manifest is the loaded, queryable field catalogue.
type Manifest struct {
	names map[string]struct{}
	all   []string
}

// Load reads and parses the YAML catalogue at path.
func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c catalogue
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if len(c.Fields) == 0 {
		return nil, ErrManifestEmpty
	}
	return FromFields(c.Fields), nil
}

// FromFields builds a Manifest directly from a field list, used by tests
// and by Load.
func FromFields(fields []Field) *Manifest {
	m := &Manifest{names: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		m.names[f.Name] = struct{}{}
		m.all = append(m.all, f.Name)
	}
	sort.Strings(m.all)
	return m
}

// IsValid reports whether name is a canonical field.
func (m *Manifest) IsValid(name string) bool {
	_, ok := m.names[name]
	return ok
}

// AllCanonicalNames returns every canonical field name in sorted order.
func (m *Manifest) AllCanonicalNames() []string {
	out := make([]string, len(m.all))
	copy(out, m.all)
	return out
}

// Suggest returns the nearest canonical name to an unknown field name, by
// Jaro-Winkler similarity with a Levenshtein-distance cutoff of 2, ties
// broken alphabetically. Returns "" if nothing is within the cutoff.
func (m *Manifest) Suggest(unknown string) string {
	const maxEditDistance = 2
	best := ""
	bestScore := -1.0
	for _, name := range m.all {
		if smetrics.WagnerFischer(unknown, name, 1, 1, 1) > maxEditDistance {
			continue
		}
		score := smetrics.JaroWinkler(unknown, name, 0.7, 4)
		if score > bestScore || (score == bestScore && (best == "" || name < best)) {
			bestScore = score
			best = name
		}
	}
	return best
}
