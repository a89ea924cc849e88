// Package validator statically inspects a strategy artifact's source text
// before it is ever handed to the sandbox: it walks the Python AST (the
// language strategies are authored in) looking for forbidden constructs,
// extracts every market-data field reference for the manifest check, and
// verifies the single-simulate-call and positive-offset invariants.
package validator

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/paicy-t/stratloop/internal/manifest"
	"github.com/paicy-t/stratloop/internal/types"
)

// forbiddenCalls names callables that must never appear in a strategy
// artifact, because they would let the strategy escape the declarative
// surface it is meant to stay within.
var forbiddenCalls = map[string]bool{
	"eval":        true,
	"exec":        true,
	"compile":     true,
	"open":        true,
	"__import__":  true,
}

// forbiddenImports names modules a strategy artifact must never import.
var forbiddenImports = map[string]bool{
	"os":         true,
	"subprocess": true,
	"socket":     true,
	"sys":        true,
	"importlib":  true,
}

// Violation is one static-validation failure, positioned by source line so
// violations can be reported in file order.
type Violation struct {
	Line    int
	Message string
}

// Parameter is a named numeric literal assigned at any nesting depth of a
// strategy artifact (e.g. lookback = 20), the unit the preservation
// subsystem extracts ParameterPattern entries from.
type Parameter struct {
	Name  string
	Value float64
	Raw   string
	Line  int
}

// Result is the outcome of validating one artifact.
type Result struct {
	Valid         bool
	Violations    []Violation
	FieldRefs     []types.FieldReference
	SimulateCalls int
	Parameters    []Parameter
}

// Validate parses source as Python and checks it against every static
// rule. It never returns an error for malformed source; a parse failure
// itself becomes a Violation at line 0 so callers always get a Result.
func Validate(ctx context.Context, source string, m *manifest.Manifest) (*Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("validator: parse: %w", err)
	}
	defer tree.Close()

	res := &Result{Valid: true}
	walk(tree.RootNode(), content, m, res)
	if tree.RootNode().HasError() {
		res.Valid = false
		res.Violations = append(res.Violations, Violation{Line: 0, Message: "source does not parse as Python"})
	}

	if res.SimulateCalls != 1 {
		res.Valid = false
		res.Violations = append(res.Violations, Violation{
			Line:    0,
			Message: fmt.Sprintf("expected exactly one simulate(...) call, found %d", res.SimulateCalls),
		})
	}

	sort.SliceStable(res.Violations, func(i, j int) bool {
		return res.Violations[i].Line < res.Violations[j].Line
	})
	if len(res.Violations) > 0 {
		res.Valid = false
	}
	return res, nil
}

func walk(n *sitter.Node, content []byte, m *manifest.Manifest, res *Result) {
	if n == nil {
		return
	}
	text := func(node *sitter.Node) string {
		return string(content[node.StartByte():node.EndByte()])
	}
	line := func(node *sitter.Node) int {
		return int(node.StartPoint().Row) + 1
	}

	switch n.Type() {
	case "call":
		fn := n.ChildByFieldName("function")
		if fn != nil {
			name := text(fn)
			if forbiddenCalls[name] {
				res.Violations = append(res.Violations, Violation{
					Line:    line(n),
					Message: fmt.Sprintf("forbidden call to %s", name),
				})
			}
			if name == "simulate" {
				res.SimulateCalls++
			}
			if name == "get" || name == "indicator" {
				collectFieldRef(n, content, m, res)
			}
			if name == "shift" || name == "offset" {
				checkOffsetArg(n, content, res)
			}
		}
	case "import_statement", "import_from_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			name := text(child)
			if forbiddenImports[name] {
				res.Violations = append(res.Violations, Violation{
					Line:    line(n),
					Message: fmt.Sprintf("forbidden import of %s", name),
				})
			}
		}
	case "assignment":
		collectParameter(n, content, res)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), content, m, res)
	}
}

func collectFieldRef(call *sitter.Node, content []byte, m *manifest.Manifest, res *Result) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	first := args.NamedChild(0)
	name := string(content[first.StartByte():first.EndByte()])
	name = trimStringLiteral(name)
	line := int(call.StartPoint().Row) + 1

	res.FieldRefs = append(res.FieldRefs, types.FieldReference{Name: name, Line: line})

	if m != nil && !m.IsValid(name) {
		msg := fmt.Sprintf("unknown field %q", name)
		if s := m.Suggest(name); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		res.Violations = append(res.Violations, Violation{Line: line, Message: msg})
	}
}

// collectParameter records `name = <numeric literal>` assignments as
// candidate ParameterPattern sources. Assignments to anything but a
// bare identifier, or whose right-hand side is not a plain numeric
// literal, are skipped: those are expressions whose "value" isn't a
// single preservable constant.
func collectParameter(n *sitter.Node, content []byte, res *Result) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return
	}
	raw := string(content[right.StartByte():right.EndByte()])
	value, ok := parseNumericLiteral(raw)
	if !ok {
		return
	}
	res.Parameters = append(res.Parameters, Parameter{
		Name:  string(content[left.StartByte():left.EndByte()]),
		Value: value,
		Raw:   raw,
		Line:  int(n.StartPoint().Row) + 1,
	})
}

func parseNumericLiteral(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func checkOffsetArg(call *sitter.Node, content []byte, res *Result) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	first := args.NamedChild(int(args.NamedChildCount()) - 1)
	lit := string(content[first.StartByte():first.EndByte()])
	n := 0
	neg := false
	for i, r := range lit {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return // not a plain integer literal, skip the check
		}
		n = n*10 + int(r-'0')
	}
	if neg || n <= 0 {
		res.Violations = append(res.Violations, Violation{
			Line:    int(call.StartPoint().Row) + 1,
			Message: "shift/offset argument must be a positive integer",
		})
	}
}

func trimStringLiteral(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
