package tools

import (
	"context"
	"testing"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia/uiatest"
)

func builtinsFixture(t *testing.T) (*Registry, *uiatest.Engine) {
	t.Helper()
	eng := uiatest.NewEngine(
		uiatest.N("Window", "Calculator",
			uiatest.N("Edit", "Expression").WithNativeID("CalculatorResults"),
			uiatest.N("Button", "Plus"),
			uiatest.N("Button", "Equals"),
		).WithPID(4242),
	)
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, Deps{Engine: eng}); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return reg, eng
}

func TestRegistry_UnknownToolIsInvalidArgument(t *testing.T) {
	reg, _ := builtinsFixture(t)
	_, err := reg.Execute(context.Background(), "frobnicate", nil)
	if uia.KindOf(err) != uia.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestRegistry_SchemaRejectsBadArguments(t *testing.T) {
	reg, _ := builtinsFixture(t)
	// click_element requires a selector.
	_, err := reg.Execute(context.Background(), "click_element", map[string]any{})
	if uia.KindOf(err) != uia.KindInvalidArgument {
		t.Fatalf("expected schema rejection, got %v", err)
	}
	// delay_ms must be non-negative.
	_, err = reg.Execute(context.Background(), "delay", map[string]any{"delay_ms": -1})
	if uia.KindOf(err) != uia.KindInvalidArgument {
		t.Fatalf("expected schema rejection, got %v", err)
	}
}

func TestClickElement_DrivesTheTree(t *testing.T) {
	reg, eng := builtinsFixture(t)
	out, err := reg.Execute(context.Background(), "click_element", map[string]any{
		"selector":   "role:Button && name:Plus",
		"timeout_ms": 1000,
	})
	if err != nil {
		t.Fatalf("click_element: %v", err)
	}
	if m := out.(map[string]any); m["element"] != "Plus" {
		t.Fatalf("result: %#v", out)
	}
	btn, err := uia.ParseLocator(eng, "name:Plus").WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if btn.Node().(*uiatest.Node).Clicks != 1 {
		t.Fatalf("click not delivered")
	}
}

func TestTypeIntoElement_WritesValue(t *testing.T) {
	reg, eng := builtinsFixture(t)
	_, err := reg.Execute(context.Background(), "type_into_element", map[string]any{
		"selector":     "role:Edit",
		"text_to_type": "2+2",
		"timeout_ms":   1000,
	})
	if err != nil {
		t.Fatalf("type_into_element: %v", err)
	}
	field, _ := uia.ParseLocator(eng, "role:Edit").WithTimeout(time.Second).First(context.Background())
	if field.Attributes().Value != "2+2" {
		t.Fatalf("value: %q", field.Attributes().Value)
	}
}

func TestValidateElement_AbsenceIsNotAnError(t *testing.T) {
	reg, _ := builtinsFixture(t)
	out, err := reg.Execute(context.Background(), "validate_element", map[string]any{
		"selector":   "role:Tab && name:Missing",
		"timeout_ms": 100,
	})
	if err != nil {
		t.Fatalf("validate_element: %v", err)
	}
	if m := out.(map[string]any); m["exists"] != false {
		t.Fatalf("result: %#v", out)
	}
}

func TestGetWindowTree_ReturnsUITree(t *testing.T) {
	reg, _ := builtinsFixture(t)
	out, err := reg.Execute(context.Background(), "get_window_tree", map[string]any{
		"pid": 4242,
	})
	if err != nil {
		t.Fatalf("get_window_tree: %v", err)
	}
	tree, ok := out.(map[string]any)["ui_tree"].(*uia.UINode)
	if !ok {
		t.Fatalf("result: %#v", out)
	}
	if tree.Attributes.Name != "Calculator" || len(tree.Children) != 3 {
		t.Fatalf("tree: %+v", tree)
	}
}

func TestRunCommand_Executes(t *testing.T) {
	reg, _ := builtinsFixture(t)
	out, err := reg.Execute(context.Background(), "run_command", map[string]any{
		"unix_command": "echo hello",
	})
	if err != nil {
		t.Fatalf("run_command: %v", err)
	}
	m := out.(map[string]any)
	if m["stdout"] != "hello\n" || m["exit_status"] != 0 {
		t.Fatalf("output: %#v", m)
	}
}

func TestExtractElementsData_CollectsRows(t *testing.T) {
	reg, _ := builtinsFixture(t)
	out, err := reg.Execute(context.Background(), "extract_elements_data", map[string]any{
		"selector":   "role:Button",
		"timeout_ms": 1000,
	})
	if err != nil {
		t.Fatalf("extract_elements_data: %v", err)
	}
	m := out.(map[string]any)
	if m["count"] != 2 {
		t.Fatalf("count: %v", m["count"])
	}
}

func TestExecuteBrowserScript_DegradesWithoutBridge(t *testing.T) {
	reg, _ := builtinsFixture(t)
	out, err := reg.Execute(context.Background(), "execute_browser_script", map[string]any{
		"script": "document.title",
	})
	if err != nil {
		t.Fatalf("execute_browser_script: %v", err)
	}
	m := out.(map[string]any)
	if m["connected"] != false || m["result"] != nil {
		t.Fatalf("result: %#v", m)
	}
}

func TestWaitForElement_ConditionMet(t *testing.T) {
	reg, eng := builtinsFixture(t)
	go func() {
		time.Sleep(50 * time.Millisecond)
		eng.RootNode().AddChild(uiatest.N("Window", "Late", uiatest.N("Button", "Ready")))
	}()
	out, err := reg.Execute(context.Background(), "wait_for_element", map[string]any{
		"selector":   "name:Ready",
		"condition":  "visible",
		"timeout_ms": 2000,
	})
	if err != nil {
		t.Fatalf("wait_for_element: %v", err)
	}
	if m := out.(map[string]any); m["met"] != true {
		t.Fatalf("result: %#v", out)
	}
}
