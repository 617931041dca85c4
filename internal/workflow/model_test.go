package workflow

import (
	"strings"
	"testing"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

const sampleYAML = `
name: Invoice Entry
description: Fill the invoice form
version: "1.2"
variables:
  customer:
    type: string
    label: Customer name
    default: ACME
steps:
  - id: open
    tool_name: open_application
    arguments:
      app_name: BestPlanPro
  - id: fill
    tool_name: type_into_element
    arguments:
      selector: "role:Edit && nativeid:dob"
      text_to_type: "{{customer}}"
    retry:
      count: 3
      backoff_ms: 50
    delay_ms: 10
  - id: submit
    tool_name: click_element
    arguments:
      selector: "role:Button && name:Submit"
    continue_on_error: true
`

type fakeChecker map[string]bool

func (f fakeChecker) Has(name string) bool { return f[name] }

func allTools() fakeChecker {
	return fakeChecker{
		"open_application":  true,
		"type_into_element": true,
		"click_element":     true,
	}
}

func TestParse_Document(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Name != "Invoice Entry" || len(doc.Steps) != 3 {
		t.Fatalf("document: %+v", doc)
	}
	if doc.Steps[1].Retry == nil || doc.Steps[1].Retry.Count != 3 {
		t.Fatalf("retry: %+v", doc.Steps[1].Retry)
	}
	if !doc.Steps[2].ContinueOnError {
		t.Fatalf("continue_on_error not parsed")
	}
	if v := doc.Variables["customer"]; v.Default != "ACME" {
		t.Fatalf("variable default: %v", v.Default)
	}
	if err := doc.Validate(allTools()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParse_SchemaRejectsMalformedDocuments(t *testing.T) {
	cases := []string{
		"description: no name or steps",
		"name: x\nsteps: []",
		"name: x\nsteps:\n  - tool_name: t",       // missing id
		"name: x\nsteps:\n  - id: a",              // missing tool_name
		"name: x\nsteps:\n  - id: a\n    tool_name: t\n    delay_ms: -5",
	}
	for _, in := range cases {
		if _, err := Parse([]byte(in)); uia.KindOf(err) != uia.KindInvalidArgument {
			t.Fatalf("Parse(%q): expected InvalidArgument, got %v", in, err)
		}
	}
}

func TestValidate_DuplicateStepID(t *testing.T) {
	doc := &Document{Name: "x", Steps: []Step{
		{ID: "a", ToolName: "open_application"},
		{ID: "a", ToolName: "open_application"},
	}}
	err := doc.Validate(allTools())
	if uia.KindOf(err) != uia.KindInvalidArgument || !strings.Contains(err.Error(), "duplicate step id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestValidate_UnknownTool(t *testing.T) {
	doc := &Document{Name: "x", Steps: []Step{{ID: "a", ToolName: "frobnicate"}}}
	if err := doc.Validate(allTools()); uia.KindOf(err) != uia.KindInvalidArgument {
		t.Fatalf("expected unknown-tool error, got %v", err)
	}
}

func TestValidate_ParserExactlyOneSource(t *testing.T) {
	doc := &Document{Name: "x", Steps: []Step{{
		ID: "a", ToolName: "open_application",
		Parser: &ParserDef{JavascriptCode: "return 1;", JavascriptFilePath: "/tmp/x.js"},
	}}}
	if err := doc.Validate(allTools()); uia.KindOf(err) != uia.KindInvalidArgument {
		t.Fatalf("expected parser validation error, got %v", err)
	}
	doc.Steps[0].Parser = &ParserDef{}
	if err := doc.Validate(allTools()); uia.KindOf(err) != uia.KindInvalidArgument {
		t.Fatalf("expected parser validation error for empty def, got %v", err)
	}
}

func TestSubstituteVariables(t *testing.T) {
	vars := map[string]any{
		"name":      "Calculator",
		"count":     3,
		"s1_result": map[string]any{"pid": 42},
	}
	cases := []struct{ in, want string }{
		{"app:{{name}}", "app:Calculator"},
		{"{{ name }}", "Calculator"},
		{"{{count}} items", "3 items"},
		{"{{missing}}", "{{missing}}"},
		{"plain", "plain"},
		{"{{s1_result}}", `{"pid":42}`},
	}
	for _, tc := range cases {
		if got := SubstituteVariables(tc.in, vars); got != tc.want {
			t.Fatalf("SubstituteVariables(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// Substitution is lexical and non-recursive: a substituted value that
// itself looks like a reference is not expanded again.
func TestSubstituteVariables_NonRecursive(t *testing.T) {
	vars := map[string]any{"a": "{{b}}", "b": "X"}
	if got := SubstituteVariables("{{a}}", vars); got != "{{b}}" {
		t.Fatalf("recursive expansion happened: %q", got)
	}
}

func TestSubstituteInValue_WalksNestedArguments(t *testing.T) {
	vars := map[string]any{"sel": "role:Button"}
	in := map[string]any{
		"selector": "{{sel}}",
		"nested":   map[string]any{"list": []any{"{{sel}}", 7}},
	}
	out := substituteInValue(in, vars).(map[string]any)
	if out["selector"] != "role:Button" {
		t.Fatalf("top-level substitution: %v", out["selector"])
	}
	nested := out["nested"].(map[string]any)["list"].([]any)
	if nested[0] != "role:Button" || nested[1] != 7 {
		t.Fatalf("nested substitution: %v", nested)
	}
}
