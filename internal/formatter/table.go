// Package formatter renders command output as a table, JSON, or
// markdown, selected by the --output flag.
package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table accumulates rows and renders them as aligned columns.
type Table struct {
	out     *tabwriter.Writer
	headers []string
	wrote   bool
}

// NewTable returns a Table that writes to w once Render is called.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		out:     tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// AddRow appends one row. Values beyond the header count are dropped;
// short rows are padded with empty cells.
func (t *Table) AddRow(values ...string) {
	if !t.wrote {
		t.writeHeader()
		t.wrote = true
	}
	cells := make([]string, len(t.headers))
	for i := range cells {
		if i < len(values) {
			cells[i] = values[i]
		}
	}
	fmt.Fprintln(t.out, strings.Join(cells, "\t"))
}

func (t *Table) writeHeader() {
	fmt.Fprintln(t.out, strings.Join(t.headers, "\t"))
	rules := make([]string, len(t.headers))
	for i, h := range t.headers {
		rules[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.out, strings.Join(rules, "\t"))
}

// Render flushes buffered rows to the underlying writer.
func (t *Table) Render() error {
	if !t.wrote {
		t.writeHeader()
	}
	return t.out.Flush()
}
