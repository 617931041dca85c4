package selector

import (
	"strings"
	"testing"
)

func TestParse_BasicRole(t *testing.T) {
	sel := Parse("role:Button")
	r, ok := sel.(Role)
	if !ok {
		t.Fatalf("expected Role, got %T", sel)
	}
	if r.Role != "Button" || r.Name != "" {
		t.Fatalf("unexpected role node: %+v", r)
	}
}

func TestParse_AndSelector(t *testing.T) {
	sel := Parse("role:Button && name:Calculate")
	a, ok := sel.(And)
	if !ok {
		t.Fatalf("expected And, got %T", sel)
	}
	if len(a.Operands) != 2 {
		t.Fatalf("operands: got %d", len(a.Operands))
	}
	if r, ok := a.Operands[0].(Role); !ok || r.Role != "Button" {
		t.Fatalf("first operand: %#v", a.Operands[0])
	}
	if n, ok := a.Operands[1].(Name); !ok || n.Value != "Calculate" {
		t.Fatalf("second operand: %#v", a.Operands[1])
	}
}

func TestParse_OrSelector(t *testing.T) {
	sel := Parse("role:Button || role:Link")
	o, ok := sel.(Or)
	if !ok {
		t.Fatalf("expected Or, got %T", sel)
	}
	if len(o.Operands) != 2 {
		t.Fatalf("operands: got %d", len(o.Operands))
	}
}

func TestParse_CommaAsOr(t *testing.T) {
	sel := Parse("role:Button, role:Link")
	if _, ok := sel.(Or); !ok {
		t.Fatalf("expected Or from comma, got %T", sel)
	}
}

func TestParse_MultipleAndConditions(t *testing.T) {
	sel := Parse("role:Button && name:Plus && visible:true")
	a, ok := sel.(And)
	if !ok {
		t.Fatalf("expected And, got %T", sel)
	}
	if len(a.Operands) != 3 {
		t.Fatalf("expected flat And of 3, got %d", len(a.Operands))
	}
	if v, ok := a.Operands[2].(Visible); !ok || !v.Value {
		t.Fatalf("third operand: %#v", a.Operands[2])
	}
}

func TestParse_ChainSelector(t *testing.T) {
	sel := Parse("role:Window >> role:Button")
	c, ok := sel.(Chain)
	if !ok {
		t.Fatalf("expected Chain, got %T", sel)
	}
	if len(c.Steps) != 2 {
		t.Fatalf("steps: got %d", len(c.Steps))
	}
}

func TestParse_ChainFlattens(t *testing.T) {
	sel := Parse("role:Window >> role:Group >> (role:Button && name:Calculate)")
	c, ok := sel.(Chain)
	if !ok {
		t.Fatalf("expected Chain, got %T", sel)
	}
	if len(c.Steps) != 3 {
		t.Fatalf("steps: got %d", len(c.Steps))
	}
	if a, ok := c.Steps[2].(And); !ok || len(a.Operands) != 2 {
		t.Fatalf("third step: %#v", c.Steps[2])
	}
}

// The Calculator scenario: chains of parenthesised conjunctions must keep
// their grouping.
func TestParse_ChainWithParenthesesAndBoolean(t *testing.T) {
	sel := Parse("(role:Window && name:Calculator) >> (role:Custom && nativeid:NavView)")
	c, ok := sel.(Chain)
	if !ok {
		t.Fatalf("expected Chain, got %T: %v", sel, sel)
	}
	if len(c.Steps) != 2 {
		t.Fatalf("steps: got %d", len(c.Steps))
	}
	first, ok := c.Steps[0].(And)
	if !ok {
		t.Fatalf("first step: %#v", c.Steps[0])
	}
	if r, ok := first.Operands[0].(Role); !ok || r.Role != "Window" {
		t.Fatalf("first step role: %#v", first.Operands[0])
	}
	if n, ok := first.Operands[1].(Name); !ok || n.Value != "Calculator" {
		t.Fatalf("first step name: %#v", first.Operands[1])
	}
	second, ok := c.Steps[1].(And)
	if !ok {
		t.Fatalf("second step: %#v", c.Steps[1])
	}
	if r, ok := second.Operands[0].(Role); !ok || r.Role != "Custom" {
		t.Fatalf("second step role: %#v", second.Operands[0])
	}
	if id, ok := second.Operands[1].(NativeID); !ok || id.Value != "NavView" {
		t.Fatalf("second step nativeid: %#v", second.Operands[1])
	}
}

func TestParse_NamesWithSpaces(t *testing.T) {
	sel := Parse("(role:Window && name:Best Plan Pro) >> nativeid:dob")
	c, ok := sel.(Chain)
	if !ok {
		t.Fatalf("expected Chain, got %T", sel)
	}
	a := c.Steps[0].(And)
	if n, ok := a.Operands[1].(Name); !ok || n.Value != "Best Plan Pro" {
		t.Fatalf("name with spaces: %#v", a.Operands[1])
	}
	if id, ok := c.Steps[1].(NativeID); !ok || id.Value != "dob" {
		t.Fatalf("nativeid: %#v", c.Steps[1])
	}
}

func TestParse_ComplexBooleanExpression(t *testing.T) {
	sel := Parse("(role:Button && name:OK) || (role:Link && name:Submit)")
	o, ok := sel.(Or)
	if !ok {
		t.Fatalf("expected Or, got %T", sel)
	}
	for i, op := range o.Operands {
		if a, ok := op.(And); !ok || len(a.Operands) != 2 {
			t.Fatalf("operand %d: %#v", i, op)
		}
	}
}

func TestParse_NestedParentheses(t *testing.T) {
	sel := Parse("((role:Button && name:OK) || (role:Link && name:Submit))")
	if o, ok := sel.(Or); !ok || len(o.Operands) != 2 {
		t.Fatalf("expected Or of 2, got %#v", sel)
	}
}

func TestParse_LeafForms(t *testing.T) {
	cases := []struct {
		in   string
		want Selector
	}{
		{"text:Calculate", Text{Value: "Calculate"}},
		{"#button-123", ID{Value: "button-123"}},
		{"id:button-123", ID{Value: "button-123"}},
		{"nativeid:button-plus", NativeID{Value: "button-plus"}},
		{"classname:btn-primary", ClassName{Value: "btn-primary"}},
		{"visible:true", Visible{Value: true}},
		{"visible:FALSE", Visible{Value: false}},
		{"nth:2", Nth{Index: 2}},
		{"nth:-1", Nth{Index: -1}},
		{"app:Calculator", App{Name: "Calculator"}},
		{"path:/0/2/1", Path{Value: "/0/2/1"}},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		if got != tc.want {
			t.Fatalf("Parse(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestParse_PosLeaf(t *testing.T) {
	sel := Parse("pos:100,250")
	a, ok := sel.(Attributes)
	if !ok {
		t.Fatalf("expected Attributes, got %T", sel)
	}
	if a.Attrs["x"] != "100" || a.Attrs["y"] != "250" {
		t.Fatalf("pos attrs: %#v", a.Attrs)
	}
}

func TestParse_AttributePair(t *testing.T) {
	sel := Parse("automation-state=ready")
	a, ok := sel.(Attributes)
	if !ok {
		t.Fatalf("expected Attributes, got %T", sel)
	}
	if a.Attrs["automation-state"] != "ready" {
		t.Fatalf("attrs: %#v", a.Attrs)
	}
}

func TestParse_NotSelector(t *testing.T) {
	sel := Parse("!name:Cancel")
	n, ok := sel.(Not)
	if !ok {
		t.Fatalf("expected Not, got %T", sel)
	}
	if inner, ok := n.Inner.(Name); !ok || inner.Value != "Cancel" {
		t.Fatalf("inner: %#v", n.Inner)
	}
}

func TestParse_NthAsChainStep(t *testing.T) {
	sel := Parse("role:Button >> nth:2")
	c, ok := sel.(Chain)
	if !ok {
		t.Fatalf("expected Chain, got %T", sel)
	}
	if n, ok := c.Steps[1].(Nth); !ok || n.Index != 2 {
		t.Fatalf("nth step: %#v", c.Steps[1])
	}
}

func TestParse_InvalidInputs(t *testing.T) {
	cases := []struct {
		in      string
		wantSub string
	}{
		{"role:Button &&", "expected selector"},
		{"(role:Button && name:Test", "unmatched '('"},
		{"role:Button)", "unmatched ')'"},
		{"bogus:value", "unknown selector keyword"},
		{"", "empty selector"},
		{"nth:abc", "expects an integer"},
		{"visible:maybe", "true or false"},
		{"!", "expected selector"},
		{"role:Button || ", "expected selector"},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		inv, ok := got.(Invalid)
		if !ok {
			t.Fatalf("Parse(%q) = %#v, want Invalid", tc.in, got)
		}
		if inv.Message == "" {
			t.Fatalf("Parse(%q): Invalid with empty message", tc.in)
		}
		if !strings.Contains(inv.Message, tc.wantSub) {
			t.Fatalf("Parse(%q) message %q does not contain %q", tc.in, inv.Message, tc.wantSub)
		}
	}
}

// Parse must be total: arbitrary garbage never panics and always yields a
// node.
func TestParse_Totality(t *testing.T) {
	inputs := []string{
		"(((((", ")))))", "&&&&", ">>>>", "!!!!!", "#", "::::",
		"role:", "a=b && c=d || !e=f >> (g=h)",
		"role:Button && (name:X || name:Y) >> nth:-3",
		strings.Repeat("(role:A && ", 50) + "name:B" + strings.Repeat(")", 50),
		"\\&\\&", "name:a\\,b",
	}
	for _, in := range inputs {
		sel := Parse(in)
		if sel == nil {
			t.Fatalf("Parse(%q) returned nil", in)
		}
	}
}

func TestParse_EscapedComma(t *testing.T) {
	sel := Parse("name:a\\,b")
	n, ok := sel.(Name)
	if !ok {
		t.Fatalf("expected Name, got %#v", sel)
	}
	if n.Value != "a,b" {
		t.Fatalf("escaped value: %q", n.Value)
	}
}

func TestParse_LegacyRoleNameForm(t *testing.T) {
	sel := Parse("role:Button|name:Calculate")
	r, ok := sel.(Role)
	if !ok {
		t.Fatalf("expected Role, got %T", sel)
	}
	if r.Role != "Button" || r.Name != "Calculate" {
		t.Fatalf("legacy form: %+v", r)
	}
}

func TestIsInvalid_Propagation(t *testing.T) {
	sel := Parse("role:Button")
	if _, bad := IsInvalid(sel); bad {
		t.Fatalf("valid selector reported invalid")
	}
	nested := Chain{Steps: []Selector{Role{Role: "Window"}, Invalid{Message: "boom"}}}
	msg, bad := IsInvalid(nested)
	if !bad || msg != "boom" {
		t.Fatalf("nested invalid not detected: %q %v", msg, bad)
	}
}
