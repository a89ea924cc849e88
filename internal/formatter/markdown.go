package formatter

import (
	"fmt"
	"io"
	"strings"
)

// Markdown renders rows as a GitHub-flavored markdown table.
type Markdown struct {
	out     io.Writer
	headers []string
	wrote   bool
}

// NewMarkdown returns a Markdown renderer writing to w.
func NewMarkdown(w io.Writer, headers ...string) *Markdown {
	return &Markdown{out: w, headers: headers}
}

// AddRow appends one row, writing the header and separator first if this
// is the first row.
func (m *Markdown) AddRow(values ...string) {
	if !m.wrote {
		fmt.Fprintf(m.out, "| %s |\n", strings.Join(m.headers, " | "))
		seps := make([]string, len(m.headers))
		for i := range seps {
			seps[i] = "---"
		}
		fmt.Fprintf(m.out, "| %s |\n", strings.Join(seps, " | "))
		m.wrote = true
	}
	cells := make([]string, len(m.headers))
	for i := range cells {
		if i < len(values) {
			cells[i] = values[i]
		}
	}
	fmt.Fprintf(m.out, "| %s |\n", strings.Join(cells, " | "))
}
