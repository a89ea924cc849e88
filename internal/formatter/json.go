package formatter

import (
	"encoding/json"
	"io"
)

// RenderJSON marshals v indented to w.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
