package uia

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/highlight"
)

// Element is a handle to a live accessibility node. The engine owns the
// underlying node; elements are shared references and never outlive their
// engine. Identity is stable for the lifetime of the node within one
// process session.
type Element struct {
	eng  Engine
	node Node

	mu sync.Mutex
	id string
}

// NewElement wraps a platform node. Engines call this from every lookup.
func NewElement(eng Engine, node Node) *Element {
	return &Element{eng: eng, node: node}
}

// Node exposes the underlying platform node. The recorder's synthesiser
// uses it for equality checks.
func (e *Element) Node() Node { return e.node }

// Engine returns the owning engine.
func (e *Element) Engine() Engine { return e.eng }

// Attributes reads the node's current property set.
func (e *Element) Attributes() Attributes { return e.node.Attributes() }

// Role returns the node's role string.
func (e *Element) Role() string { return e.node.Attributes().Role }

// Name returns the node's name, if any.
func (e *Element) Name() string { return e.node.Attributes().Name }

// Bounds returns the node rectangle in physical pixels.
func (e *Element) Bounds() (*Bounds, error) {
	b := e.node.Attributes().Bounds
	if b == nil {
		return nil, ErrPlatform("element has no bounds")
	}
	return b, nil
}

// ProcessID returns the owning process id.
func (e *Element) ProcessID() int { return e.node.Attributes().ProcessID }

// ProcessName resolves the owning process image name through the cached
// pid lookup.
func (e *Element) ProcessName() (string, error) {
	return ProcessName(e.eng, e.node.Attributes().ProcessID)
}

// Children returns direct child elements.
func (e *Element) Children() ([]*Element, error) {
	nodes, err := e.node.Children()
	if err != nil {
		return nil, platformErr("children", err)
	}
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NewElement(e.eng, n))
	}
	return out, nil
}

// Parent returns the parent element, or nil at the root.
func (e *Element) Parent() (*Element, error) {
	p, err := e.node.Parent()
	if err != nil {
		return nil, platformErr("parent", err)
	}
	if p == nil {
		return nil, nil
	}
	return NewElement(e.eng, p), nil
}

// Text concatenates descendant text-like content down to maxDepth levels
// below the element (0 means the element itself only; the default is 1).
// Fragments are trimmed and deduplicated in document order.
func (e *Element) Text(maxDepth int) string {
	if maxDepth < 0 {
		maxDepth = 1
	}
	seen := map[string]bool{}
	var parts []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		parts = append(parts, s)
	}
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		a := n.Attributes()
		if v := a.Value; v != "" {
			add(v)
		}
		if isTextRole(a.Role) || depth == 0 {
			add(a.Name)
		}
		if depth >= maxDepth {
			return
		}
		kids, err := n.Children()
		if err != nil {
			return
		}
		for _, k := range kids {
			walk(k, depth+1)
		}
	}
	walk(e.node, 0)
	return strings.Join(parts, " ")
}

func isTextRole(role string) bool {
	switch normalizeRole(role) {
	case "text", "statictext", "label", "document", "listitem", "link", "hyperlink", "button":
		return true
	}
	return false
}

func platformErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return wrapError(KindPlatformError, err, "%s failed", op)
}

// Action surface. Every action fails with a typed error when the underlying
// node no longer exists, the action is unsupported for the role, or the
// platform denies it.

func (e *Element) Click() error       { return platformErr("click", e.node.Click()) }
func (e *Element) DoubleClick() error { return platformErr("double_click", e.node.DoubleClick()) }
func (e *Element) RightClick() error  { return platformErr("right_click", e.node.RightClick()) }
func (e *Element) Hover() error       { return platformErr("hover", e.node.Hover()) }
func (e *Element) Focus() error       { return platformErr("focus", e.node.Focus()) }

func (e *Element) TypeText(text string, useClipboard bool) error {
	return platformErr("type_text", e.node.TypeText(text, useClipboard))
}

func (e *Element) PressKey(chord string) error {
	return platformErr("press_key", e.node.PressKey(chord))
}

func (e *Element) SetValue(value string) error {
	return platformErr("set_value", e.node.SetValue(value))
}

func (e *Element) Scroll(direction string, amount float64) error {
	return platformErr("scroll", e.node.Scroll(direction, amount))
}

func (e *Element) Invoke() error { return platformErr("invoke", e.node.Invoke()) }

func (e *Element) SelectOption(option string) error {
	return platformErr("select_option", e.node.SelectOption(option))
}

func (e *Element) ListOptions() ([]string, error) {
	opts, err := e.node.ListOptions()
	return opts, platformErr("list_options", err)
}

func (e *Element) IsToggled() (bool, error) {
	v, err := e.node.IsToggled()
	return v, platformErr("is_toggled", err)
}

func (e *Element) SetToggled(state bool) error {
	return platformErr("set_toggled", e.node.SetToggled(state))
}

func (e *Element) ActivateWindow() error { return platformErr("activate_window", e.node.ActivateWindow()) }
func (e *Element) Minimize() error       { return platformErr("minimize", e.node.Minimize()) }
func (e *Element) Maximize() error       { return platformErr("maximize", e.node.Maximize()) }
func (e *Element) CloseWindow() error    { return platformErr("close", e.node.Close()) }

func (e *Element) Capture() (*Screenshot, error) {
	s, err := e.node.Capture()
	return s, platformErr("capture", err)
}

func (e *Element) ExecuteBrowserScript(ctx context.Context, script string) (string, error) {
	out, err := e.node.ExecuteBrowserScript(ctx, script)
	return out, platformErr("execute_browser_script", err)
}

// Highlight draws a transient rectangle over the element bounds. The handle
// closes itself after duration; Close is idempotent.
func (e *Element) Highlight(color uint32, duration time.Duration, label string, pos highlight.LabelPosition, font *highlight.FontStyle) (*highlight.Handle, error) {
	b, err := e.Bounds()
	if err != nil {
		return nil, err
	}
	opts := highlight.Options{
		Color:         color,
		Duration:      duration,
		Label:         label,
		LabelPosition: pos,
	}
	if font != nil {
		opts.Font = *font
	}
	return highlight.Show(highlight.Rect{X: b.X, Y: b.Y, W: b.Width, H: b.Height}, opts)
}
